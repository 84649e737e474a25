package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/mergepoint/internal/config"
	"github.com/roach88/mergepoint/internal/ir"
	"github.com/roach88/mergepoint/internal/merge"
	"github.com/roach88/mergepoint/internal/source"
	"github.com/roach88/mergepoint/internal/store"
	"github.com/roach88/mergepoint/internal/testutil"
)

// Error codes for step failures that are not *merge.Error.
const (
	CodeOriginExists = "ORIGIN_EXISTS"
	CodeNotFound     = "NOT_FOUND"
)

// Harness executes one scenario against one merge table.
type Harness struct {
	store    *store.Store
	table    *merge.Table
	batchIDs *testutil.SequentialBatchIDs
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. Origin tables are created
// from the declarations, seeded from setup, then the flow runs step by step.
// A step whose outcome differs from its expect clause fails the result but
// does not stop the flow. Errors returned by Run are harness failures: an
// unusable declaration or a setup step that could not be applied.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	batchIDs := testutil.NewSequentialBatchIDs("")
	logger := testutil.DiscardLogger()
	points, err := config.Build(scenario.Config(), st.DB(), st,
		merge.WithLogger(logger),
		merge.WithBatchIDGenerator(batchIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build merge points: %w", err)
	}
	table, err := points.Lookup(scenario.Point)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		store:    st,
		table:    table,
		batchIDs: batchIDs,
		logger:   logger,
	}

	if err := h.createTables(ctx, points); err != nil {
		return nil, err
	}

	result := NewResult()
	result.MergePoint = table.Name()

	if err := h.executeSetup(ctx, scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	union, err := table.UnionView(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute union view: %w", err)
	}
	result.Union = union

	actx := &AssertionContext{Ctx: ctx, Table: table, Union: union}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	h.logger.Debug("scenario finished",
		"scenario", scenario.Name,
		"batch_ids_issued", h.batchIDs.Issued(),
		"pass", result.Pass,
	)
	return result, nil
}

// createTables creates the origin table of every declared source.
func (h *Harness) createTables(ctx context.Context, points *config.Points) error {
	for _, name := range points.Names() {
		t, err := points.Lookup(name)
		if err != nil {
			return err
		}
		for _, src := range t.Registry().Sources() {
			tbl, ok := src.(*source.Table)
			if !ok {
				return fmt.Errorf("source %s is not a SQL table", src.Name())
			}
			if err := tbl.CreateTable(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// sourceTable returns the declared source named name.
func (h *Harness) sourceTable(name string) (*source.Table, error) {
	reg := h.table.Registry()
	i, ok := reg.IndexOf(name)
	if !ok {
		return nil, fmt.Errorf("source %q is not declared by %s", name, reg.Name())
	}
	src, _ := reg.Source(i)
	tbl, ok := src.(*source.Table)
	if !ok {
		return nil, fmt.Errorf("source %s is not a SQL table", name)
	}
	return tbl, nil
}

// executeSetup seeds origin rows. Setup steps must succeed.
func (h *Harness) executeSetup(ctx context.Context, setup []SeedStep, result *Result) error {
	for i, step := range setup {
		tbl, err := h.sourceTable(step.Source)
		if err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		rows, err := toObjects(step.Rows)
		if err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		for j, row := range rows {
			if err := tbl.InsertRow(ctx, row); err != nil {
				return fmt.Errorf("setup[%d].rows[%d]: %w", i, j, err)
			}
		}
		result.AddTrace(TraceEvent{Op: OpSeed, Source: step.Source, Count: len(rows)})
		h.logger.Debug("setup step completed", "step", i, "source", step.Source, "rows", len(rows))
	}
	return nil
}

// executeFlow runs all flow steps and checks their expect clauses.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		var (
			ev  TraceEvent
			err error
		)
		switch step.Op() {
		case OpInsert:
			ev, err = h.insert(ctx, step.Insert)
		case OpDelete:
			ev, err = h.delete(ctx, step.Delete)
		case OpPurge:
			ev, err = h.purge(ctx, step.Purge)
		default:
			return fmt.Errorf("flow[%d]: no operation", i)
		}

		codes, classified := errorCodes(err)
		if err != nil && !classified {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
		ev.Errors = codes
		result.AddTrace(ev)

		for _, msg := range checkExpect(i, step.Expect, ev) {
			result.AddError(msg)
		}
		h.logger.Debug("flow step completed", "step", i, "op", ev.Op, "errors", codes)
	}
	return nil
}

func (h *Harness) insert(ctx context.Context, raw []map[string]interface{}) (TraceEvent, error) {
	ev := TraceEvent{Op: OpInsert}
	keys, err := toObjects(raw)
	if err != nil {
		return ev, err
	}
	ev.Keys = keys

	res, err := h.table.InsertBatch(ctx, keys)
	if err != nil {
		return ev, err
	}
	ev.Identities = res.Identities
	ev.Count = res.Inserted
	ev.BatchID = res.BatchID
	return ev, nil
}

func (h *Harness) delete(ctx context.Context, step *DeleteStep) (TraceEvent, error) {
	ev := TraceEvent{Op: OpDelete, Source: step.Source}
	key, err := ir.ObjectFromGo(step.Key)
	if err != nil {
		return ev, err
	}
	ev.Keys = []ir.Object{key}

	tbl, err := h.sourceTable(step.Source)
	if err != nil {
		return ev, err
	}
	deleted, err := tbl.DeleteRow(ctx, key)
	if err != nil {
		return ev, err
	}
	if deleted {
		ev.Count = 1
	}
	return ev, nil
}

func (h *Harness) purge(ctx context.Context, raw []map[string]interface{}) (TraceEvent, error) {
	ev := TraceEvent{Op: OpPurge}
	keys, err := toObjects(raw)
	if err != nil {
		return ev, err
	}
	ev.Keys = keys

	ids := make([]ir.Identity, len(keys))
	for i, key := range keys {
		id, err := ir.Derive(key)
		if err != nil {
			return ev, err
		}
		ids[i] = id
	}
	ev.Identities = ids

	n, err := h.table.Purge(ctx, ids)
	if err != nil {
		return ev, err
	}
	ev.Count = n
	return ev, nil
}

// errorCodes classifies a step error. Merge errors yield their codes; purge
// refusals yield CodeOriginExists or CodeNotFound. Anything else is not
// classified and aborts the run.
func errorCodes(err error) ([]string, bool) {
	if err == nil {
		return nil, true
	}
	if failures := merge.Errors(err); len(failures) > 0 {
		codes := make([]string, len(failures))
		for i, me := range failures {
			codes[i] = string(me.Code)
		}
		return codes, true
	}
	switch {
	case errors.Is(err, merge.ErrOriginExists):
		return []string{CodeOriginExists}, true
	case errors.Is(err, merge.ErrNotFound):
		return []string{CodeNotFound}, true
	}
	return nil, false
}

// checkExpect compares an observed step with its expect clause.
func checkExpect(index int, expect *ExpectClause, ev TraceEvent) []string {
	var msgs []string
	if expect == nil {
		if len(ev.Errors) > 0 {
			msgs = append(msgs, fmt.Sprintf("flow[%d]: %s failed with %v, expected success", index, ev.Op, ev.Errors))
		}
		return msgs
	}

	want := slices.Clone(expect.Errors)
	got := slices.Clone(ev.Errors)
	slices.Sort(want)
	slices.Sort(got)
	if !slices.Equal(want, got) {
		msgs = append(msgs, fmt.Sprintf("flow[%d]: %s errors = %v, expected %v", index, ev.Op, ev.Errors, expect.Errors))
	}
	if len(ev.Errors) > 0 {
		return msgs
	}

	if expect.Inserted != nil && ev.Count != *expect.Inserted {
		msgs = append(msgs, fmt.Sprintf("flow[%d]: inserted %d, expected %d", index, ev.Count, *expect.Inserted))
	}
	if expect.Deleted != nil && ev.Count != *expect.Deleted {
		msgs = append(msgs, fmt.Sprintf("flow[%d]: deleted %d, expected %d", index, ev.Count, *expect.Deleted))
	}
	return msgs
}

func toObjects(raw []map[string]interface{}) ([]ir.Object, error) {
	out := make([]ir.Object, len(raw))
	for i, m := range raw {
		obj, err := ir.ObjectFromGo(m)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = obj
	}
	return out, nil
}
