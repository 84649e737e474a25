package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/mergepoint/internal/ir"
)

const testPoint = "Tracking"

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord builds a record bound to origin index/name with key.
func createTestRecord(index int, origin string, key ir.Object) ir.MergeRecord {
	return ir.MergeRecord{
		Identity: ir.MustDerive(key),
		Binding:  ir.Binding{OriginIndex: index, Origin: origin, Key: key},
	}
}
