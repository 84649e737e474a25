package source

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mergepoint/internal/ir"
	"github.com/roach88/mergepoint/internal/merge"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTrackingTable(t *testing.T) *Table {
	t.Helper()
	ctx := context.Background()

	tbl, err := NewTable(openTestDB(t), TableSpec{
		Name:       "TrackingV1",
		Table:      "tracking_v1",
		Key:        []string{"nwb_file_name", "interval", "params_name"},
		Attributes: []string{"n_frames", "camera"},
	})
	require.NoError(t, err)
	require.NoError(t, tbl.CreateTable(ctx))

	require.NoError(t, tbl.InsertRow(ctx, ir.Object{
		"nwb_file_name": ir.String("m1.nwb"),
		"interval":      ir.String("epoch 1"),
		"params_name":   ir.String("default"),
		"n_frames":      ir.Int(1200),
		"camera":        ir.String("top"),
	}))
	require.NoError(t, tbl.InsertRow(ctx, ir.Object{
		"nwb_file_name": ir.String("m1.nwb"),
		"interval":      ir.String("epoch 2"),
		"params_name":   ir.String("default"),
		"n_frames":      ir.Int(900),
	}))
	return tbl
}

func TestNewTableValidates(t *testing.T) {
	db := openTestDB(t)

	tests := []struct {
		name string
		spec TableSpec
	}{
		{"bad table", TableSpec{Table: "drop table", Key: []string{"s"}}},
		{"no key", TableSpec{Table: "t"}},
		{"bad column", TableSpec{Table: "t", Key: []string{"s;"}}},
		{"duplicate column", TableSpec{Table: "t", Key: []string{"s"}, Attributes: []string{"s"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(db, tt.spec)
			assert.Error(t, err)
		})
	}

	tbl, err := NewTable(db, TableSpec{Table: "sessions", Key: []string{"s"}})
	require.NoError(t, err)
	assert.Equal(t, "sessions", tbl.Name(), "name defaults to the table")
}

func TestTableMatches(t *testing.T) {
	ctx := context.Background()
	tbl := newTrackingTable(t)

	ok, err := tbl.Matches(ctx, ir.Object{"nwb_file_name": ir.String("m1.nwb"), "interval": ir.String("epoch 2"), "params_name": ir.String("default")})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tbl.Matches(ctx, ir.Object{"nwb_file_name": ir.String("m2.nwb")})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTableResolveFullKey(t *testing.T) {
	ctx := context.Background()
	tbl := newTrackingTable(t)

	full, err := tbl.ResolveFullKey(ctx, ir.Object{"interval": ir.String("epoch 1")})
	require.NoError(t, err)
	assert.Equal(t, ir.Object{
		"nwb_file_name": ir.String("m1.nwb"),
		"interval":      ir.String("epoch 1"),
		"params_name":   ir.String("default"),
	}, full)

	_, err = tbl.ResolveFullKey(ctx, ir.Object{"nwb_file_name": ir.String("m1.nwb")})
	assert.ErrorContains(t, err, "more than one row")

	_, err = tbl.ResolveFullKey(ctx, ir.Object{"interval": ir.String("epoch 9")})
	assert.True(t, errors.Is(err, merge.ErrOriginNotFound))
}

func TestTableNonKeyAttributes(t *testing.T) {
	ctx := context.Background()
	tbl := newTrackingTable(t)

	key := ir.Object{"nwb_file_name": ir.String("m1.nwb"), "interval": ir.String("epoch 2"), "params_name": ir.String("default")}
	attrs, err := tbl.NonKeyAttributes(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, ir.Object{"n_frames": ir.Int(900), "camera": ir.Null{}}, attrs)

	deleted, err := tbl.DeleteRow(ctx, key)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = tbl.NonKeyAttributes(ctx, key)
	assert.True(t, errors.Is(err, merge.ErrOriginNotFound))

	_, err = tbl.DeleteRow(ctx, ir.Object{"interval": ir.String("epoch 1")})
	assert.ErrorContains(t, err, "full key")
}

func TestTableWithoutAttributes(t *testing.T) {
	ctx := context.Background()
	tbl, err := NewTable(openTestDB(t), TableSpec{Table: "raw", Key: []string{"s"}})
	require.NoError(t, err)
	require.NoError(t, tbl.CreateTable(ctx))
	require.NoError(t, tbl.InsertRow(ctx, ir.Object{"s": ir.Int(3)}))

	attrs, err := tbl.NonKeyAttributes(ctx, ir.Object{"s": ir.Int(3)})
	require.NoError(t, err)
	assert.Empty(t, attrs)

	_, err = tbl.NonKeyAttributes(ctx, ir.Object{"s": ir.Int(4)})
	assert.True(t, errors.Is(err, merge.ErrOriginNotFound))
}

func TestTableRejectsRealColumns(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	_, err := db.Exec(`CREATE TABLE scores (s INTEGER PRIMARY KEY, score REAL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO scores VALUES (1, 0.5)`)
	require.NoError(t, err)

	tbl, err := NewTable(db, TableSpec{Table: "scores", Key: []string{"s"}, Attributes: []string{"score"}})
	require.NoError(t, err)

	_, err = tbl.NonKeyAttributes(ctx, ir.Object{"s": ir.Int(1)})
	assert.ErrorContains(t, err, "score")
}

func TestTableInsertRowUnknownAttribute(t *testing.T) {
	tbl := newTrackingTable(t)
	err := tbl.InsertRow(context.Background(), ir.Object{"nwb_file_name": ir.String("x"), "bogus": ir.Int(1)})
	assert.ErrorContains(t, err, "unknown attribute")
}
