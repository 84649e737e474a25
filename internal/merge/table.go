package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/mergepoint/internal/ir"
)

// Store is the backing store of merge records. It is the only shared mutable
// resource of a merge point and must be safe for concurrent use.
type Store interface {
	// InsertBatch commits records for point as one transaction under batchID.
	// A record whose identity already exists with the same binding is
	// skipped. A record whose identity exists with a different binding
	// aborts the whole batch with an identity-conflict *Error; this check
	// must happen inside the transaction so concurrent writers cannot both
	// commit divergent bindings. Returns the number of new records.
	InsertBatch(ctx context.Context, point, batchID string, records []ir.MergeRecord) (int, error)

	// GetRecord returns the record for id or ErrNotFound.
	GetRecord(ctx context.Context, point string, id ir.Identity) (ir.MergeRecord, error)

	// ListRecords returns every record of point ordered by seq, then identity.
	ListRecords(ctx context.Context, point string) ([]ir.MergeRecord, error)

	// DeleteRecords removes the given records atomically and returns how
	// many existed.
	DeleteRecords(ctx context.Context, point string, ids []ir.Identity) (int, error)
}

// Table is one merge point: a registry of origins and its merge records.
// A Table holds no mutable state of its own and is safe for concurrent use.
type Table struct {
	store    Store
	registry *Registry
	batchIDs BatchIDGenerator
	logger   *slog.Logger
}

// Option configures a Table.
type Option func(*Table)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Table) { t.logger = l }
}

// WithBatchIDGenerator overrides batch id generation, for tests.
func WithBatchIDGenerator(g BatchIDGenerator) Option {
	return func(t *Table) { t.batchIDs = g }
}

// NewTable creates a merge table over store for the merge point registry
// declares.
func NewTable(store Store, registry *Registry, opts ...Option) *Table {
	t := &Table{
		store:    store,
		registry: registry,
		batchIDs: UUIDv7Generator{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("merge_point", registry.Name())
	return t
}

// Name returns the merge point name.
func (t *Table) Name() string { return t.registry.Name() }

// Registry returns the merge point's registry.
func (t *Table) Registry() *Registry { return t.registry }

// InsertResult describes one committed Insert batch.
type InsertResult struct {
	Identities []ir.Identity // One per candidate, in input order
	Inserted   int           // Records new to the store; 0 for a no-op batch
	BatchID    string        // Empty when nothing was written
}

// Insert admits a batch of candidate keys as merge records.
//
// Each key is resolved against the registry and its identity derived from the
// full origin key. All keys are validated before anything is written; any
// orphan, exclusivity, invalid-key or in-batch conflict failure aborts the
// batch and every failure is returned, joined. The remaining records are
// committed in one transaction. Keys that are already merged with the same
// binding are no-ops.
//
// Returns one identity per candidate, in input order. Duplicates in the input
// return the same identity twice.
func (t *Table) Insert(ctx context.Context, candidates []ir.Object) ([]ir.Identity, error) {
	res, err := t.InsertBatch(ctx, candidates)
	if err != nil {
		return nil, err
	}
	return res.Identities, nil
}

// InsertBatch is Insert returning the batch bookkeeping as well.
func (t *Table) InsertBatch(ctx context.Context, candidates []ir.Object) (InsertResult, error) {
	if len(candidates) == 0 {
		return InsertResult{Identities: []ir.Identity{}}, nil
	}
	point := t.registry.Name()

	ids := make([]ir.Identity, len(candidates))
	records := make([]ir.MergeRecord, 0, len(candidates))
	pending := make(map[ir.Identity]int, len(candidates))
	var errs []error

	for i, key := range candidates {
		res, err := t.registry.Resolve(ctx, key)
		if err != nil {
			var me *Error
			if errors.As(err, &me) {
				errs = append(errs, err)
				continue
			}
			return InsertResult{}, fmt.Errorf("insert: key %d: %w", i, err)
		}

		binding := res.Binding()
		if name, ok := nullAttribute(binding.Key); ok {
			errs = append(errs, NewInvalidKeyError(point, key,
				fmt.Sprintf("origin %s has a null key attribute %q", binding.Origin, name)))
			continue
		}
		id, err := ir.Derive(binding.Key)
		if err != nil {
			errs = append(errs, NewInvalidKeyError(point, key, err.Error()))
			continue
		}
		ids[i] = id

		if j, seen := pending[id]; seen {
			if !records[j].Binding.Same(binding) {
				errs = append(errs, NewIdentityConflictError(point, id, records[j].Binding, binding))
			}
			continue
		}
		pending[id] = len(records)
		records = append(records, ir.MergeRecord{Identity: id, Binding: binding})
	}

	if len(errs) > 0 {
		t.logger.Warn("merge batch rejected",
			"candidates", len(candidates),
			"failures", len(errs),
		)
		if len(errs) == 1 {
			return InsertResult{}, errs[0]
		}
		return InsertResult{}, errors.Join(errs...)
	}

	if err := ctx.Err(); err != nil {
		return InsertResult{}, fmt.Errorf("insert: %w", err)
	}

	batchID := t.batchIDs.Generate()
	inserted, err := t.store.InsertBatch(ctx, point, batchID, records)
	if err != nil {
		if IsIdentityConflict(err) {
			t.logger.Error("identity conflict", "batch_id", batchID, "error", err)
		}
		return InsertResult{}, fmt.Errorf("insert: %w", err)
	}

	if inserted == 0 {
		t.logger.Debug("merge batch was a no-op (idempotent)", "candidates", len(candidates))
		return InsertResult{Identities: ids}, nil
	}
	t.logger.Info("merge batch committed",
		"batch_id", batchID,
		"candidates", len(candidates),
		"inserted", inserted,
	)
	return InsertResult{Identities: ids, Inserted: inserted, BatchID: batchID}, nil
}

func nullAttribute(key ir.Object) (string, bool) {
	for _, name := range key.SortedKeys() {
		if ir.IsNull(key[name]) {
			return name, true
		}
	}
	return "", false
}

// Get returns the merge record for id, or ErrNotFound.
func (t *Table) Get(ctx context.Context, id ir.Identity) (ir.MergeRecord, error) {
	rec, err := t.store.GetRecord(ctx, t.registry.Name(), id)
	if err != nil {
		return ir.MergeRecord{}, fmt.Errorf("get %s: %w", id, err)
	}
	return rec, nil
}

// Records returns every merge record ordered by insertion.
func (t *Table) Records(ctx context.Context) ([]ir.MergeRecord, error) {
	recs, err := t.store.ListRecords(ctx, t.registry.Name())
	if err != nil {
		return nil, fmt.Errorf("records: %w", err)
	}
	return recs, nil
}

// Source returns the origin relation id is bound to and the full origin key.
func (t *Table) Source(ctx context.Context, id ir.Identity) (Source, ir.Object, error) {
	rec, err := t.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	src, err := t.sourceFor(rec)
	if err != nil {
		return nil, nil, err
	}
	return src, rec.Binding.Key, nil
}

// sourceFor maps a stored binding back to its declared source. A record whose
// origin index or name no longer matches the registry means the configuration
// changed under existing identities, which is not supported.
func (t *Table) sourceFor(rec ir.MergeRecord) (Source, error) {
	src, ok := t.registry.Source(rec.Binding.OriginIndex)
	if !ok || src.Name() != rec.Binding.Origin {
		return nil, fmt.Errorf("record %s is bound to origin %d (%s), which is not declared at that index",
			rec.Identity, rec.Binding.OriginIndex, rec.Binding.Origin)
	}
	return src, nil
}
