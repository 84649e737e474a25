package harness

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/mergepoint/internal/ir"
	"github.com/roach88/mergepoint/internal/merge"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", ev.Step, ev.summary())
		}
	}
	return buf.String()
}

// AssertionContext provides what assertions are evaluated against.
type AssertionContext struct {
	Ctx   context.Context
	Table *merge.Table
	Union *merge.Union
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var msgs []string

	for i, assertion := range assertions {
		var err error
		if actx == nil || actx.Table == nil || actx.Union == nil {
			err = fmt.Errorf("assertion[%d]: %s requires a merge table context", i, assertion.Type)
		} else {
			switch assertion.Type {
			case AssertRecordCount:
				err = assertRecordCount(actx, assertion)
			case AssertBoundTo:
				err = assertBoundTo(actx, assertion)
			case AssertNotMerged:
				err = assertNotMerged(actx, assertion)
			case AssertDangling:
				err = assertDangling(actx, assertion)
			case AssertUnionRow:
				err = assertUnionRow(actx.Union, assertion)
			case AssertUnionOrigins:
				err = assertUnionOrigins(actx.Union, assertion)
			default:
				err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
			}
		}

		var ae *AssertionError
		if errors.As(err, &ae) {
			ae.Trace = result.Trace
		}
		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	return msgs
}

// assertRecordCount checks the number of stored merge records.
func assertRecordCount(actx *AssertionContext, a Assertion) error {
	records, err := actx.Table.Records(actx.Ctx)
	if err != nil {
		return err
	}
	if len(records) != a.Count {
		return &AssertionError{
			Type:     AssertRecordCount,
			Expected: fmt.Sprintf("%d records", a.Count),
			Actual:   fmt.Sprintf("%d records", len(records)),
		}
	}
	return nil
}

// assertBoundTo checks that the record of a full origin key exists and is
// bound to the expected origin.
func assertBoundTo(actx *AssertionContext, a Assertion) error {
	key, id, err := keyIdentity(a.Key)
	if err != nil {
		return err
	}

	rec, err := actx.Table.Get(actx.Ctx, id)
	if errors.Is(err, merge.ErrNotFound) {
		return &AssertionError{
			Type:     AssertBoundTo,
			Expected: fmt.Sprintf("record %s for %s bound to %s", id, formatObject(key), a.Origin),
			Actual:   "no record",
		}
	}
	if err != nil {
		return err
	}
	if rec.Binding.Origin != a.Origin {
		return &AssertionError{
			Type:     AssertBoundTo,
			Expected: fmt.Sprintf("record %s bound to %s", id, a.Origin),
			Actual:   fmt.Sprintf("bound to %s[%d]", rec.Binding.Origin, rec.Binding.OriginIndex),
		}
	}
	return nil
}

// assertNotMerged checks that no record exists for a full origin key.
func assertNotMerged(actx *AssertionContext, a Assertion) error {
	key, id, err := keyIdentity(a.Key)
	if err != nil {
		return err
	}

	rec, err := actx.Table.Get(actx.Ctx, id)
	if errors.Is(err, merge.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return &AssertionError{
		Type:     AssertNotMerged,
		Expected: fmt.Sprintf("no record for %s", formatObject(key)),
		Actual:   fmt.Sprintf("record %s bound to %s", rec.Identity, rec.Binding.Origin),
	}
}

// assertDangling checks the number of records Reconcile reports.
func assertDangling(actx *AssertionContext, a Assertion) error {
	dangling, err := actx.Table.Reconcile(actx.Ctx)
	if err != nil {
		return err
	}
	if len(dangling) != a.Count {
		return &AssertionError{
			Type:     AssertDangling,
			Expected: fmt.Sprintf("%d dangling records", a.Count),
			Actual:   fmt.Sprintf("%d dangling records", len(dangling)),
		}
	}
	return nil
}

// assertUnionRow checks that exactly one union row matches Where and that
// it carries every Expect value. A null in Expect requires a padded
// attribute.
func assertUnionRow(u *merge.Union, a Assertion) error {
	where, err := ir.ObjectFromGo(a.Where)
	if err != nil {
		return fmt.Errorf("union_row where: %w", err)
	}
	expect, err := ir.ObjectFromGo(a.Expect)
	if err != nil {
		return fmt.Errorf("union_row expect: %w", err)
	}

	matched := u.Restrict(where)
	if matched.Len() != 1 {
		return &AssertionError{
			Type:     AssertUnionRow,
			Expected: fmt.Sprintf("exactly one union row where %s", formatObject(where)),
			Actual:   fmt.Sprintf("%d rows matched", matched.Len()),
		}
	}

	row := matched.Rows[0]
	for _, name := range expect.SortedKeys() {
		got, ok := row.Values[name]
		if !ok {
			return &AssertionError{
				Type:     AssertUnionRow,
				Expected: fmt.Sprintf("column %q to exist", name),
				Actual:   fmt.Sprintf("columns: %s", formatObject(row.Values)),
			}
		}
		if !ir.Equal(got, expect[name]) {
			return &AssertionError{
				Type:     AssertUnionRow,
				Expected: fmt.Sprintf("%s = %s", name, formatValue(expect[name])),
				Actual:   fmt.Sprintf("%s = %s", name, formatValue(got)),
			}
		}
	}
	return nil
}

// assertUnionOrigins checks the origin of every union row, in order.
func assertUnionOrigins(u *merge.Union, a Assertion) error {
	got := make([]string, len(u.Rows))
	for i, r := range u.Rows {
		got[i] = r.Origin
	}
	if !slices.Equal(got, a.Origins) {
		return &AssertionError{
			Type:     AssertUnionOrigins,
			Expected: fmt.Sprintf("%v", a.Origins),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

func keyIdentity(raw map[string]interface{}) (ir.Object, ir.Identity, error) {
	key, err := ir.ObjectFromGo(raw)
	if err != nil {
		return nil, ir.Identity{}, fmt.Errorf("key: %w", err)
	}
	id, err := ir.Derive(key)
	if err != nil {
		return nil, ir.Identity{}, err
	}
	return key, id, nil
}

func formatObject(obj ir.Object) string {
	data, err := obj.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("%v", map[string]ir.Value(obj))
	}
	return string(data)
}

func formatValue(v ir.Value) string {
	data, err := ir.MarshalValue(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
