package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/mergepoint/internal/ir"
	"github.com/roach88/mergepoint/internal/merge"
)

// Batch is one committed insert batch.
type Batch struct {
	ID          string `json:"batch_id"`
	MergePoint  string `json:"merge_point"`
	Seq         int64  `json:"seq"`
	FirstSeq    int64  `json:"first_seq"`
	RecordCount int    `json:"record_count"`
}

// GetRecord returns the record for id, or merge.ErrNotFound.
func (s *Store) GetRecord(ctx context.Context, point string, id ir.Identity) (ir.MergeRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT identity, origin_index, origin_name, origin_key, batch_id, seq
		FROM merge_records
		WHERE merge_point = ? AND identity = ?
	`, point, id.String())

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.MergeRecord{}, fmt.Errorf("record %s: %w", id, merge.ErrNotFound)
	}
	if err != nil {
		return ir.MergeRecord{}, fmt.Errorf("get record %s: %w", id, err)
	}
	return rec, nil
}

// ListRecords returns every record of point.
// Results are ordered by seq ASC, identity COLLATE BINARY ASC.
func (s *Store) ListRecords(ctx context.Context, point string) ([]ir.MergeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity, origin_index, origin_name, origin_key, batch_id, seq
		FROM merge_records
		WHERE merge_point = ?
		ORDER BY seq ASC, identity COLLATE BINARY ASC
	`, point)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []ir.MergeRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list records: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

// ListBatches returns the committed batches of point ordered by seq.
func (s *Store) ListBatches(ctx context.Context, point string) ([]Batch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT batch_id, merge_point, seq, first_seq, record_count
		FROM merge_batches
		WHERE merge_point = ?
		ORDER BY seq ASC, batch_id COLLATE BINARY ASC
	`, point)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.MergePoint, &b.Seq, &b.FirstSeq, &b.RecordCount); err != nil {
			return nil, fmt.Errorf("list batches: scan: %w", err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return batches, nil
}

// MergePoints returns the names of every merge point with stored records,
// sorted by name.
func (s *Store) MergePoints(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT merge_point
		FROM merge_records
		ORDER BY merge_point COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list merge points: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list merge points: scan: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (ir.MergeRecord, error) {
	var (
		identity    string
		originIndex int
		originName  string
		originKey   string
		rec         ir.MergeRecord
	)
	if err := row.Scan(&identity, &originIndex, &originName, &originKey, &rec.BatchID, &rec.Seq); err != nil {
		return ir.MergeRecord{}, err
	}

	id, err := ir.ParseIdentity(identity)
	if err != nil {
		return ir.MergeRecord{}, err
	}
	binding, err := decodeBinding(originIndex, originName, originKey)
	if err != nil {
		return ir.MergeRecord{}, fmt.Errorf("identity %s: %w", identity, err)
	}
	rec.Identity = id
	rec.Binding = binding
	return rec, nil
}
