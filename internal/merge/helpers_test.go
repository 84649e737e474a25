package merge_test

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/mergepoint/internal/ir"
	"github.com/roach88/mergepoint/internal/merge"
	"github.com/roach88/mergepoint/internal/source"
	"github.com/roach88/mergepoint/internal/store"
)

// fixture is the two-origin merge point used throughout:
//
//	A(s)    attrs x
//	B(s, p) attrs y
type fixture struct {
	a, b  *source.Memory
	store *store.Store
	table *merge.Table
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	a := source.NewMemory("A", []string{"s"}, []string{"x"})
	b := source.NewMemory("B", []string{"s", "p"}, []string{"y"})
	a.MustPut(ir.Object{"s": ir.Int(3), "x": ir.String("a3")})
	a.MustPut(ir.Object{"s": ir.Int(4), "x": ir.String("a4")})
	b.MustPut(ir.Object{"s": ir.Int(3), "p": ir.Int(0), "y": ir.Int(30)})
	b.MustPut(ir.Object{"s": ir.Int(5), "p": ir.Int(1), "y": ir.Int(51)})

	s := openStore(t)
	reg, err := merge.NewRegistry("Tracking", a, b)
	require.NoError(t, err)

	return &fixture{
		a:     a,
		b:     b,
		store: s,
		table: merge.NewTable(s, reg, merge.WithLogger(discardLogger())),
	}
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "merge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func key(kv ...any) ir.Object {
	obj := make(ir.Object, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		switch v := kv[i+1].(type) {
		case int:
			obj[kv[i].(string)] = ir.Int(v)
		case string:
			obj[kv[i].(string)] = ir.String(v)
		case ir.Value:
			obj[kv[i].(string)] = v
		default:
			panic("key: unsupported value")
		}
	}
	return obj
}
