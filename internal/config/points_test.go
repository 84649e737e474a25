package config_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mergepoint/internal/config"
	"github.com/roach88/mergepoint/internal/ir"
	"github.com/roach88/mergepoint/internal/merge"
	"github.com/roach88/mergepoint/internal/source"
	"github.com/roach88/mergepoint/internal/store"
	"github.com/roach88/mergepoint/internal/testutil"
)

func TestBuild(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "merge.db"))
	require.NoError(t, err)
	defer st.Close()

	cfg, err := config.Load(filepath.Join("testdata", "tracking.yaml"))
	require.NoError(t, err)

	points, err := config.Build(cfg, st.DB(), st, merge.WithLogger(testutil.DiscardLogger()))
	require.NoError(t, err)
	assert.Equal(t, []string{"PositionOutput", "Curation"}, points.Names())

	def, err := points.Lookup("")
	require.NoError(t, err)
	assert.Equal(t, "PositionOutput", def.Name())

	cur, err := points.Lookup("Curation")
	require.NoError(t, err)
	src, ok := cur.Registry().Source(0)
	require.True(t, ok)
	assert.Equal(t, "curation_v1", src.Name())

	_, err = points.Lookup("Nope")
	assert.ErrorContains(t, err, "unknown merge point")

	// The registry reads the configured SQL table.
	tbl := src.(*source.Table)
	require.NoError(t, tbl.CreateTable(ctx))
	require.NoError(t, tbl.InsertRow(ctx, ir.Object{"sorting_id": ir.String("s-1")}))

	ids, err := cur.Insert(ctx, []ir.Object{{"sorting_id": ir.String("s-1")}})
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "merge.db"))
	require.NoError(t, err)
	defer st.Close()

	_, err = config.Build(&config.Config{}, st.DB(), st)
	assert.ErrorContains(t, err, "(inline)")
}

func TestNewPointsRejectsDuplicates(t *testing.T) {
	f := testutil.NewTracking(t)

	_, err := config.NewPoints(f.Table, f.Table)
	assert.ErrorContains(t, err, "duplicate merge point")

	p, err := config.NewPoints(f.Table)
	require.NoError(t, err)
	got, err := p.Lookup(testutil.TrackingPoint)
	require.NoError(t, err)
	assert.Same(t, f.Table, got)

	empty, err := config.NewPoints()
	require.NoError(t, err)
	_, err = empty.Lookup("")
	assert.Error(t, err)
}
