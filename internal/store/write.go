package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/mergepoint/internal/ir"
	"github.com/roach88/mergepoint/internal/merge"
)

// InsertBatch commits records for point in one transaction.
//
// Every identity is checked against the stored rows inside the transaction:
//   - same binding: skipped (idempotent)
//   - different binding: the batch is rolled back with an identity-conflict
//     *merge.Error
//
// New records get consecutive seq values after the last one issued for point
// and share one merge_batches row. A batch with nothing new writes nothing and
// returns 0.
func (s *Store) InsertBatch(ctx context.Context, point, batchID string, records []ir.MergeRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if point == "" {
		return 0, fmt.Errorf("insert batch: merge point is required")
	}
	if batchID == "" {
		return 0, fmt.Errorf("insert batch: batch id is required")
	}

	rows := make([]recordRow, len(records))
	for i, rec := range records {
		row, err := encodeRecord(rec)
		if err != nil {
			return 0, fmt.Errorf("insert batch: %w", err)
		}
		rows[i] = row
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("insert batch: begin: %w", err)
	}
	defer tx.Rollback()

	fresh := make([]recordRow, 0, len(rows))
	pending := make(map[string]int, len(rows))
	for i, row := range rows {
		existing, found, err := lookupBinding(ctx, tx, point, row.identity)
		if err != nil {
			return 0, fmt.Errorf("insert batch: %w", err)
		}
		if !found {
			j, dup := pending[row.identity]
			if !dup {
				pending[row.identity] = i
				fresh = append(fresh, row)
				continue
			}
			existing = rows[j]
		}
		if existing.originIndex == row.originIndex &&
			existing.originName == row.originName &&
			existing.originKey == row.originKey {
			continue
		}
		stored, err := decodeBinding(existing.originIndex, existing.originName, existing.originKey)
		if err != nil {
			return 0, fmt.Errorf("insert batch: identity %s: %w", row.identity, err)
		}
		return 0, merge.NewIdentityConflictError(point, records[i].Identity, stored, records[i].Binding)
	}

	if len(fresh) == 0 {
		return 0, nil
	}

	// Batches are never deleted, so the last batch bounds every seq ever
	// issued for point, including purged records.
	var batchSeq, seq int64
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0), COALESCE(MAX(first_seq + record_count - 1), 0)
		FROM merge_batches
		WHERE merge_point = ?
	`, point).Scan(&batchSeq, &seq); err != nil {
		return 0, fmt.Errorf("insert batch: seq: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO merge_batches (batch_id, merge_point, seq, first_seq, record_count)
		VALUES (?, ?, ?, ?, ?)
	`, batchID, point, batchSeq+1, seq+1, len(fresh)); err != nil {
		return 0, fmt.Errorf("insert batch %s: %w", batchID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO merge_records (merge_point, identity, origin_index, origin_name, origin_key, batch_id, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("insert batch: prepare: %w", err)
	}
	defer stmt.Close()

	for _, row := range fresh {
		seq++
		if _, err := stmt.ExecContext(ctx,
			point, row.identity, row.originIndex, row.originName, row.originKey, batchID, seq,
		); err != nil {
			return 0, fmt.Errorf("insert record %s: %w", row.identity, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert batch: commit: %w", err)
	}
	return len(fresh), nil
}

// lookupBinding reads the stored binding columns of one identity.
func lookupBinding(ctx context.Context, tx *sql.Tx, point, identity string) (recordRow, bool, error) {
	row := recordRow{identity: identity}
	err := tx.QueryRowContext(ctx, `
		SELECT origin_index, origin_name, origin_key
		FROM merge_records
		WHERE merge_point = ? AND identity = ?
	`, point, identity).Scan(&row.originIndex, &row.originName, &row.originKey)
	if errors.Is(err, sql.ErrNoRows) {
		return recordRow{}, false, nil
	}
	if err != nil {
		return recordRow{}, false, fmt.Errorf("lookup identity %s: %w", identity, err)
	}
	return row, true, nil
}

// DeleteRecords removes the given identities of point in one transaction and
// returns how many rows existed. Batch rows are kept as audit history.
func (s *Store) DeleteRecords(ctx context.Context, point string, ids []ir.Identity) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, 0, len(ids)+1)
	args = append(args, point)
	for _, id := range ids {
		args = append(args, id.String())
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("delete records: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM merge_records WHERE merge_point = ? AND identity IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete records: rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("delete records: commit: %w", err)
	}
	return int(n), nil
}
