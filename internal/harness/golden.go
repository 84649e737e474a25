package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a scenario result as stable text for golden comparison:
// the trace with every identity the flow produced, then the union view.
//
//	scenario: tracking_lifecycle
//	merge_point: PositionOutput
//
//	trace:
//	  [1] seed TrackingV1 rows=1
//	  [2] insert keys=1 inserted=1 batch=batch-0001
//	      9c1e... {"interval":"epoch 1",...}
//
//	union:
//	  9c1e... TrackingV1[0] {"interval":"epoch 1",...}
func Snapshot(scenarioName string, result *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", scenarioName)
	fmt.Fprintf(&b, "merge_point: %s\n", result.MergePoint)

	b.WriteString("\ntrace:\n")
	for _, ev := range result.Trace {
		fmt.Fprintf(&b, "  [%d] %s\n", ev.Step, ev.summary())
		for _, line := range ev.details() {
			fmt.Fprintf(&b, "      %s\n", line)
		}
	}

	b.WriteString("\nunion:\n")
	if result.Union != nil {
		for _, r := range result.Union.Rows {
			state := ""
			if r.Dangling {
				state = " dangling"
			}
			fmt.Fprintf(&b, "  %s %s[%d]%s %s\n", r.Identity, r.Origin, r.OriginIndex, state, formatObject(r.Values))
		}
	}
	return []byte(b.String())
}

// summary is the one-line form of an event.
func (ev TraceEvent) summary() string {
	failed := strings.Join(ev.Errors, ",")
	switch ev.Op {
	case OpSeed:
		return fmt.Sprintf("seed %s rows=%d", ev.Source, ev.Count)
	case OpInsert:
		if failed != "" {
			return fmt.Sprintf("insert keys=%d rejected=%s", len(ev.Keys), failed)
		}
		s := fmt.Sprintf("insert keys=%d inserted=%d", len(ev.Keys), ev.Count)
		if ev.BatchID != "" {
			s += " batch=" + ev.BatchID
		}
		return s
	case OpDelete:
		if failed != "" {
			return fmt.Sprintf("delete %s failed=%s", ev.Source, failed)
		}
		return fmt.Sprintf("delete %s deleted=%d", ev.Source, ev.Count)
	case OpPurge:
		if failed != "" {
			return fmt.Sprintf("purge keys=%d refused=%s", len(ev.Keys), failed)
		}
		return fmt.Sprintf("purge keys=%d deleted=%d", len(ev.Keys), ev.Count)
	default:
		return ev.Op
	}
}

// details lists the keys of an event, each with its identity when known.
func (ev TraceEvent) details() []string {
	lines := make([]string, len(ev.Keys))
	for i, key := range ev.Keys {
		if i < len(ev.Identities) {
			lines[i] = fmt.Sprintf("%s %s", ev.Identities[i], formatObject(key))
		} else {
			lines[i] = "- " + formatObject(key)
		}
	}
	return lines
}

// RunWithGolden executes a scenario, fails t if it does not pass and compares
// its snapshot against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Errorf("%s: %s", scenario.Name, msg)
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already computed result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Snapshot(scenarioName, result))
	return nil
}
