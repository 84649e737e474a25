package merge

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/mergepoint/internal/ir"
)

// Reconcile reports merge records whose origin row no longer exists.
//
// Upstream deletion is an out-of-band event; records are never removed
// implicitly. Run Reconcile periodically and Purge what it reports once the
// deletion is confirmed.
func (t *Table) Reconcile(ctx context.Context) ([]ir.MergeRecord, error) {
	records, err := t.store.ListRecords(ctx, t.registry.Name())
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	dangling := []ir.MergeRecord{}
	for _, rec := range records {
		live, err := t.originExists(ctx, rec)
		if err != nil {
			return nil, fmt.Errorf("reconcile: %w", err)
		}
		if !live {
			dangling = append(dangling, rec)
		}
	}

	t.logger.Info("reconcile finished", "records", len(records), "dangling", len(dangling))
	return dangling, nil
}

// Purge deletes dangling merge records. Every id must exist and its origin row
// must be gone; otherwise nothing is deleted. Returns the number removed.
func (t *Table) Purge(ctx context.Context, ids []ir.Identity) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	for _, id := range ids {
		rec, err := t.Get(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("purge: %w", err)
		}
		live, err := t.originExists(ctx, rec)
		if err != nil {
			return 0, fmt.Errorf("purge: %w", err)
		}
		if live {
			return 0, fmt.Errorf("purge: record %s: origin %s: %w", id, rec.Binding.Origin, ErrOriginExists)
		}
	}

	n, err := t.store.DeleteRecords(ctx, t.registry.Name(), ids)
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	t.logger.Info("purged dangling records", "requested", len(ids), "deleted", n)
	return n, nil
}

func (t *Table) originExists(ctx context.Context, rec ir.MergeRecord) (bool, error) {
	src, err := t.sourceFor(rec)
	if err != nil {
		return false, err
	}
	ok, err := src.Matches(ctx, rec.Binding.Key)
	if errors.Is(err, ErrOriginNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("source %s: %w", src.Name(), err)
	}
	return ok, nil
}
