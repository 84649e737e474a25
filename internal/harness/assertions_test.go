package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mergepoint/internal/ir"
	"github.com/roach88/mergepoint/internal/testutil"
)

// mergedTracking inserts both epochs of TrackingV1 and the imported epoch,
// then deletes the imported origin row.
func mergedTracking(t *testing.T) *AssertionContext {
	t.Helper()
	ctx := context.Background()
	tr := testutil.NewTracking(t)

	_, err := tr.Table.Insert(ctx, []ir.Object{
		testutil.V1Epoch1.Project(tr.V1.KeySchema()),
		testutil.V1Epoch2.Project(tr.V1.KeySchema()),
		testutil.ImportedEpoch1.Project(tr.Imported.KeySchema()),
	})
	require.NoError(t, err)

	_, err = tr.Imported.DeleteRow(ctx, testutil.ImportedEpoch1.Project(tr.Imported.KeySchema()))
	require.NoError(t, err)

	union, err := tr.Table.UnionView(ctx)
	require.NoError(t, err)
	return &AssertionContext{Ctx: ctx, Table: tr.Table, Union: union}
}

func TestAssertRecordCount(t *testing.T) {
	actx := mergedTracking(t)

	assert.NoError(t, assertRecordCount(actx, Assertion{Type: AssertRecordCount, Count: 3}))

	err := assertRecordCount(actx, Assertion{Type: AssertRecordCount, Count: 2})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "2 records", ae.Expected)
	assert.Equal(t, "3 records", ae.Actual)
}

func TestAssertBoundTo(t *testing.T) {
	actx := mergedTracking(t)
	key := map[string]interface{}{"nwb_file_name": "m1.nwb", "interval": "epoch 2", "params_name": "default"}

	assert.NoError(t, assertBoundTo(actx, Assertion{Type: AssertBoundTo, Key: key, Origin: "TrackingV1"}))

	err := assertBoundTo(actx, Assertion{Type: AssertBoundTo, Key: key, Origin: "ImportedPose"})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "bound to TrackingV1[0]", ae.Actual)
}

func TestAssertBoundTo_NoRecord(t *testing.T) {
	actx := mergedTracking(t)

	err := assertBoundTo(actx, Assertion{Type: AssertBoundTo, Key: m9Key, Origin: "ImportedPose"})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "no record", ae.Actual)
}

func TestAssertNotMerged(t *testing.T) {
	actx := mergedTracking(t)

	assert.NoError(t, assertNotMerged(actx, Assertion{Type: AssertNotMerged, Key: m9Key}))

	err := assertNotMerged(actx, Assertion{Type: AssertNotMerged, Key: m2Key})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Actual, "bound to ImportedPose")
}

func TestAssertDangling(t *testing.T) {
	actx := mergedTracking(t)

	assert.NoError(t, assertDangling(actx, Assertion{Type: AssertDangling, Count: 1}))

	err := assertDangling(actx, Assertion{Type: AssertDangling, Count: 0})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "1 dangling records", ae.Actual)
}

func TestAssertUnionRow_SubsetMatch(t *testing.T) {
	actx := mergedTracking(t)

	err := assertUnionRow(actx.Union, Assertion{
		Type:   AssertUnionRow,
		Where:  map[string]interface{}{"interval": "epoch 1", "nwb_file_name": "m1.nwb"},
		Expect: map[string]interface{}{"n_frames": 1200, "camera": "top", "pose_source": nil},
	})
	assert.NoError(t, err)
}

func TestAssertUnionRow_DanglingRowIsPadded(t *testing.T) {
	actx := mergedTracking(t)

	err := assertUnionRow(actx.Union, Assertion{
		Type:   AssertUnionRow,
		Where:  map[string]interface{}{"nwb_file_name": "m2.nwb"},
		Expect: map[string]interface{}{"pose_source": nil, "params_name": nil},
	})
	assert.NoError(t, err)
}

func TestAssertUnionRow_ValueMismatch(t *testing.T) {
	actx := mergedTracking(t)

	err := assertUnionRow(actx.Union, Assertion{
		Type:   AssertUnionRow,
		Where:  map[string]interface{}{"interval": "epoch 2"},
		Expect: map[string]interface{}{"n_frames": 1200},
	})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "n_frames = 1200", ae.Expected)
	assert.Equal(t, "n_frames = 900", ae.Actual)
}

func TestAssertUnionRow_AmbiguousWhere(t *testing.T) {
	actx := mergedTracking(t)

	err := assertUnionRow(actx.Union, Assertion{
		Type:   AssertUnionRow,
		Where:  map[string]interface{}{"nwb_file_name": "m1.nwb"},
		Expect: map[string]interface{}{"params_name": "default"},
	})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "2 rows matched", ae.Actual)
}

func TestAssertUnionRow_UnknownColumn(t *testing.T) {
	actx := mergedTracking(t)

	err := assertUnionRow(actx.Union, Assertion{
		Type:   AssertUnionRow,
		Where:  map[string]interface{}{"interval": "epoch 2"},
		Expect: map[string]interface{}{"speed": 1},
	})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, `column "speed" to exist`, ae.Expected)
}

func TestAssertUnionOrigins(t *testing.T) {
	actx := mergedTracking(t)

	assert.NoError(t, assertUnionOrigins(actx.Union, Assertion{
		Type:    AssertUnionOrigins,
		Origins: []string{"TrackingV1", "TrackingV1", "ImportedPose"},
	}))

	err := assertUnionOrigins(actx.Union, Assertion{
		Type:    AssertUnionOrigins,
		Origins: []string{"ImportedPose", "TrackingV1", "TrackingV1"},
	})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "[TrackingV1 TrackingV1 ImportedPose]", ae.Actual)
}

func TestEvaluateAssertions_AttachesTrace(t *testing.T) {
	actx := mergedTracking(t)
	result := NewResult()
	result.AddTrace(TraceEvent{Op: OpSeed, Source: "TrackingV1", Count: 2})

	msgs := EvaluateAssertions(result, []Assertion{
		{Type: AssertRecordCount, Count: 3},
		{Type: AssertDangling, Count: 5},
		{Type: "trace_contains"},
	}, actx)

	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "Assertion failed: dangling")
	assert.Contains(t, msgs[0], "Full trace:")
	assert.Contains(t, msgs[0], "[1] seed TrackingV1 rows=2")
	assert.Contains(t, msgs[1], `unknown assertion type "trace_contains"`)
}

func TestEvaluateAssertions_NoContext(t *testing.T) {
	msgs := EvaluateAssertions(NewResult(), []Assertion{{Type: AssertRecordCount}}, nil)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "requires a merge table context")
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertBoundTo,
		Expected: "bound to A",
		Actual:   "bound to B[1]",
		Trace: []TraceEvent{
			{Step: 1, Op: OpInsert, Keys: []ir.Object{{"s": ir.Int(3)}}, Count: 1, BatchID: "batch-0001"},
			{Step: 2, Op: OpPurge, Keys: []ir.Object{{"s": ir.Int(3)}}, Errors: []string{CodeOriginExists}},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: bound_to")
	assert.Contains(t, msg, "Expected: bound to A")
	assert.Contains(t, msg, "Actual: bound to B[1]")
	assert.Contains(t, msg, "[1] insert keys=1 inserted=1 batch=batch-0001")
	assert.Contains(t, msg, "[2] purge keys=1 refused=ORIGIN_EXISTS")
}
