package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mergepoint/internal/ir"
)

func TestGolden_TrackingLifecycle(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "tracking_lifecycle.yaml"))
	require.NoError(t, err)

	require.NoError(t, RunWithGolden(t, scenario))
}

func TestSnapshot_Format(t *testing.T) {
	key := ir.Object{"s": ir.Int(3)}
	id := ir.MustDerive(key)

	result := NewResult()
	result.MergePoint = "Point"
	result.AddTrace(TraceEvent{Op: OpSeed, Source: "A", Count: 1})
	result.AddTrace(TraceEvent{Op: OpInsert, Keys: []ir.Object{key}, Identities: []ir.Identity{id}, Count: 1, BatchID: "batch-0001"})
	result.AddTrace(TraceEvent{Op: OpDelete, Source: "A", Keys: []ir.Object{key}, Errors: []string{"NOT_FOUND"}})

	got := string(Snapshot("format", result))
	want := "scenario: format\n" +
		"merge_point: Point\n" +
		"\n" +
		"trace:\n" +
		"  [1] seed A rows=1\n" +
		"  [2] insert keys=1 inserted=1 batch=batch-0001\n" +
		"      bcd6f14f04b4b576ab4c597d988b8120 {\"s\":3}\n" +
		"  [3] delete A failed=NOT_FOUND\n" +
		"      - {\"s\":3}\n" +
		"\n" +
		"union:\n"
	assert.Equal(t, want, got)
}

func TestSnapshot_Deterministic(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "tracking_lifecycle.yaml"))
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, string(Snapshot(scenario.Name, first)), string(Snapshot(scenario.Name, second)))
}
