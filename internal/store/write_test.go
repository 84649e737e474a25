package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/roach88/mergepoint/internal/ir"
	"github.com/roach88/mergepoint/internal/merge"
)

func TestInsertBatch_Basic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	recs := []ir.MergeRecord{
		createTestRecord(0, "A", ir.Object{"s": ir.Int(3)}),
		createTestRecord(1, "B", ir.Object{"s": ir.Int(3), "p": ir.Int(0)}),
	}

	n, err := s.InsertBatch(ctx, testPoint, "batch-1", recs)
	if err != nil {
		t.Fatalf("InsertBatch() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("inserted = %d, want 2", n)
	}

	var originKey, batchID string
	var seq int64
	err = s.db.QueryRow(`
		SELECT origin_key, batch_id, seq FROM merge_records
		WHERE merge_point = ? AND identity = ?
	`, testPoint, recs[1].Identity.String()).Scan(&originKey, &batchID, &seq)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if originKey != `{"p":0,"s":3}` {
		t.Errorf("origin_key = %q, want canonical JSON", originKey)
	}
	if batchID != "batch-1" {
		t.Errorf("batch_id = %q, want batch-1", batchID)
	}
	if seq != 2 {
		t.Errorf("seq = %d, want 2", seq)
	}
}

func TestInsertBatch_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := createTestRecord(0, "A", ir.Object{"s": ir.Int(3)})

	if _, err := s.InsertBatch(ctx, testPoint, "batch-1", []ir.MergeRecord{rec}); err != nil {
		t.Fatalf("first InsertBatch() failed: %v", err)
	}
	n, err := s.InsertBatch(ctx, testPoint, "batch-2", []ir.MergeRecord{rec})
	if err != nil {
		t.Fatalf("second InsertBatch() failed: %v", err)
	}
	if n != 0 {
		t.Errorf("second insert inserted %d, want 0", n)
	}

	batches, err := s.ListBatches(ctx, testPoint)
	if err != nil {
		t.Fatalf("ListBatches() failed: %v", err)
	}
	if len(batches) != 1 {
		t.Errorf("got %d batches, want 1 (no-op batch must not be recorded)", len(batches))
	}
}

func TestInsertBatch_DuplicateWithinBatch(t *testing.T) {
	s := createTestStore(t)

	rec := createTestRecord(0, "A", ir.Object{"s": ir.Int(3)})
	n, err := s.InsertBatch(context.Background(), testPoint, "batch-1", []ir.MergeRecord{rec, rec})
	if err != nil {
		t.Fatalf("InsertBatch() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("inserted = %d, want 1", n)
	}
}

func TestInsertBatch_IdentityConflictAbortsBatch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	key := ir.Object{"s": ir.Int(3)}
	first := createTestRecord(0, "A", key)
	if _, err := s.InsertBatch(ctx, testPoint, "batch-1", []ir.MergeRecord{first}); err != nil {
		t.Fatalf("InsertBatch() failed: %v", err)
	}

	// Same identity, different origin: must never overwrite.
	divergent := first
	divergent.Binding = ir.Binding{OriginIndex: 1, Origin: "B", Key: key}
	other := createTestRecord(0, "A", ir.Object{"s": ir.Int(4)})

	_, err := s.InsertBatch(ctx, testPoint, "batch-2", []ir.MergeRecord{other, divergent})
	if !merge.IsIdentityConflict(err) {
		t.Fatalf("InsertBatch() error = %v, want identity conflict", err)
	}

	var me *merge.Error
	if !errors.As(err, &me) {
		t.Fatalf("error is not *merge.Error: %T", err)
	}
	if me.Existing == nil || me.Existing.Origin != "A" {
		t.Errorf("Existing = %+v, want origin A", me.Existing)
	}

	recs, err := s.ListRecords(ctx, testPoint)
	if err != nil {
		t.Fatalf("ListRecords() failed: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("got %d records, want 1 (conflicting batch must roll back)", len(recs))
	}
	if recs[0].Binding.Origin != "A" {
		t.Errorf("stored binding changed to %q", recs[0].Binding.Origin)
	}
}

func TestInsertBatch_SeqMonotonicAfterDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a := createTestRecord(0, "A", ir.Object{"s": ir.Int(1)})
	b := createTestRecord(0, "A", ir.Object{"s": ir.Int(2)})
	c := createTestRecord(0, "A", ir.Object{"s": ir.Int(3)})

	if _, err := s.InsertBatch(ctx, testPoint, "batch-1", []ir.MergeRecord{a, b}); err != nil {
		t.Fatalf("InsertBatch() failed: %v", err)
	}
	if _, err := s.DeleteRecords(ctx, testPoint, []ir.Identity{b.Identity}); err != nil {
		t.Fatalf("DeleteRecords() failed: %v", err)
	}
	if _, err := s.InsertBatch(ctx, testPoint, "batch-2", []ir.MergeRecord{c}); err != nil {
		t.Fatalf("InsertBatch() failed: %v", err)
	}

	got, err := s.GetRecord(ctx, testPoint, c.Identity)
	if err != nil {
		t.Fatalf("GetRecord() failed: %v", err)
	}
	if got.Seq != 3 {
		t.Errorf("seq = %d, want 3 (purged seq values are not reused)", got.Seq)
	}
}

func TestInsertBatch_MergePointsAreIndependent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := createTestRecord(0, "A", ir.Object{"s": ir.Int(3)})
	for _, point := range []string{"Tracking", "Curation"} {
		n, err := s.InsertBatch(ctx, point, "batch-"+point, []ir.MergeRecord{rec})
		if err != nil {
			t.Fatalf("InsertBatch(%s) failed: %v", point, err)
		}
		if n != 1 {
			t.Errorf("InsertBatch(%s) inserted %d, want 1", point, n)
		}
	}

	points, err := s.MergePoints(ctx)
	if err != nil {
		t.Fatalf("MergePoints() failed: %v", err)
	}
	if len(points) != 2 || points[0] != "Curation" || points[1] != "Tracking" {
		t.Errorf("MergePoints() = %v", points)
	}
}

func TestInsertBatch_InvalidRecords(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		rec  ir.MergeRecord
	}{
		{"zero identity", ir.MergeRecord{Binding: ir.Binding{Origin: "A", Key: ir.Object{"s": ir.Int(1)}}}},
		{"no origin", createTestRecord(0, "", ir.Object{"s": ir.Int(1)})},
		{"negative index", createTestRecord(-1, "A", ir.Object{"s": ir.Int(1)})},
		{"null key value", ir.MergeRecord{
			Identity: ir.MustDerive(ir.Object{"s": ir.Null{}}),
			Binding:  ir.Binding{Origin: "A", Key: ir.Object{"s": ir.Null{}}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.InsertBatch(ctx, testPoint, "batch", []ir.MergeRecord{tt.rec}); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}

	if _, err := s.InsertBatch(ctx, testPoint, "", []ir.MergeRecord{createTestRecord(0, "A", ir.Object{"s": ir.Int(1)})}); err == nil {
		t.Error("expected error for empty batch id")
	}
}

func TestInsertBatch_ConcurrentSameKey(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec := createTestRecord(0, "A", ir.Object{"s": ir.Int(3)})

	var wg sync.WaitGroup
	inserted := make([]int, 8)
	errs := make([]error, 8)
	for i := range inserted {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inserted[i], errs[i] = s.InsertBatch(ctx, testPoint, "batch-"+string(rune('a'+i)), []ir.MergeRecord{rec})
		}(i)
	}
	wg.Wait()

	total := 0
	for i, err := range errs {
		if err != nil {
			t.Fatalf("writer %d failed: %v", i, err)
		}
		total += inserted[i]
	}
	if total != 1 {
		t.Errorf("total inserted = %d, want exactly 1", total)
	}
}

func TestDeleteRecords(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a := createTestRecord(0, "A", ir.Object{"s": ir.Int(1)})
	b := createTestRecord(0, "A", ir.Object{"s": ir.Int(2)})
	if _, err := s.InsertBatch(ctx, testPoint, "batch-1", []ir.MergeRecord{a, b}); err != nil {
		t.Fatalf("InsertBatch() failed: %v", err)
	}

	missing := ir.MustDerive(ir.Object{"s": ir.Int(99)})
	n, err := s.DeleteRecords(ctx, testPoint, []ir.Identity{a.Identity, missing})
	if err != nil {
		t.Fatalf("DeleteRecords() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	if _, err := s.GetRecord(ctx, testPoint, a.Identity); !errors.Is(err, merge.ErrNotFound) {
		t.Errorf("GetRecord() after delete error = %v, want ErrNotFound", err)
	}

	n, err = s.DeleteRecords(ctx, testPoint, nil)
	if err != nil || n != 0 {
		t.Errorf("DeleteRecords(nil) = %d, %v", n, err)
	}
}
