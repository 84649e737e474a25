package testutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/roach88/mergepoint/internal/config"
	"github.com/roach88/mergepoint/internal/ir"
	"github.com/roach88/mergepoint/internal/merge"
	"github.com/roach88/mergepoint/internal/source"
	"github.com/roach88/mergepoint/internal/store"
)

// TrackingPoint is the merge point name of the tracking fixture.
const TrackingPoint = "PositionOutput"

// TrackingYAML declares the fixture: a computed tracking method keyed by
// recording, interval and parameter set, and an imported method keyed by
// recording and interval only.
const TrackingYAML = `merge_points:
  - name: PositionOutput
    sources:
      - name: TrackingV1
        table: tracking_v1
        key: [nwb_file_name, interval, params_name]
        attributes: [n_frames, camera]
      - name: ImportedPose
        table: imported_pose
        key: [nwb_file_name, interval]
        attributes: [pose_source]
`

// Tracking is a ready merge point over two seeded SQLite origin tables.
type Tracking struct {
	Store    *store.Store
	Config   *config.Config
	Points   *config.Points
	Table    *merge.Table
	V1       *source.Table
	Imported *source.Table
	BatchIDs *SequentialBatchIDs
}

// Seeded origin rows.
var (
	V1Epoch1 = ir.Object{
		"nwb_file_name": ir.String("m1.nwb"),
		"interval":      ir.String("epoch 1"),
		"params_name":   ir.String("default"),
		"n_frames":      ir.Int(1200),
		"camera":        ir.String("top"),
	}
	V1Epoch2 = ir.Object{
		"nwb_file_name": ir.String("m1.nwb"),
		"interval":      ir.String("epoch 2"),
		"params_name":   ir.String("default"),
		"n_frames":      ir.Int(900),
	}
	ImportedEpoch1 = ir.Object{
		"nwb_file_name": ir.String("m2.nwb"),
		"interval":      ir.String("epoch 1"),
		"pose_source":   ir.String("dlc"),
	}
)

// NewTracking opens a store under t.TempDir(), creates and seeds both origin
// tables and builds the merge point. Batch ids are sequential and logs are
// discarded.
func NewTracking(t testing.TB) *Tracking {
	t.Helper()
	return NewTrackingAt(t, filepath.Join(t.TempDir(), "tracking.db"))
}

// NewTrackingAt is NewTracking with an explicit database path. Reopening an
// existing path keeps stored merge records and skips seeding.
func NewTrackingAt(t testing.TB, path string) *Tracking {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg, err := config.ParseYAML([]byte(TrackingYAML))
	if err != nil {
		t.Fatalf("parse fixture config: %v", err)
	}

	mp, _ := cfg.Point(TrackingPoint)
	reg, err := mp.Registry(st.DB())
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	v1 := mustTable(t, reg, "TrackingV1")
	imported := mustTable(t, reg, "ImportedPose")

	for _, seed := range []struct {
		tbl  *source.Table
		rows []ir.Object
	}{
		{v1, []ir.Object{V1Epoch1, V1Epoch2}},
		{imported, []ir.Object{ImportedEpoch1}},
	} {
		if err := seed.tbl.CreateTable(ctx); err != nil {
			t.Fatalf("create table: %v", err)
		}
		for _, row := range seed.rows {
			ok, err := seed.tbl.Matches(ctx, row.Project(seed.tbl.KeySchema()))
			if err != nil {
				t.Fatalf("probe seed row: %v", err)
			}
			if ok {
				continue
			}
			if err := seed.tbl.InsertRow(ctx, row); err != nil {
				t.Fatalf("seed row: %v", err)
			}
		}
	}

	batchIDs := NewSequentialBatchIDs("")
	points, err := config.Build(cfg, st.DB(), st,
		merge.WithLogger(DiscardLogger()),
		merge.WithBatchIDGenerator(batchIDs),
	)
	if err != nil {
		t.Fatalf("build merge points: %v", err)
	}
	table, err := points.Lookup(TrackingPoint)
	if err != nil {
		t.Fatalf("lookup merge point: %v", err)
	}

	return &Tracking{
		Store:    st,
		Config:   cfg,
		Points:   points,
		Table:    table,
		V1:       v1,
		Imported: imported,
		BatchIDs: batchIDs,
	}
}

func mustTable(t testing.TB, reg *merge.Registry, name string) *source.Table {
	t.Helper()
	i, ok := reg.IndexOf(name)
	if !ok {
		t.Fatalf("fixture source %s not declared", name)
	}
	src, _ := reg.Source(i)
	return src.(*source.Table)
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
