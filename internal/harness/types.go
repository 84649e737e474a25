package harness

import (
	"github.com/roach88/mergepoint/internal/ir"
	"github.com/roach88/mergepoint/internal/merge"
)

// Step operations recorded in the trace.
const (
	OpSeed   = "seed"
	OpInsert = "insert"
	OpDelete = "delete"
	OpPurge  = "purge"
)

// TraceEvent records the observed outcome of one setup or flow step.
type TraceEvent struct {
	Step       int           `json:"step"`
	Op         string        `json:"op"`
	Source     string        `json:"source,omitempty"`
	Keys       []ir.Object   `json:"keys,omitempty"`
	Identities []ir.Identity `json:"identities,omitempty"`
	Count      int           `json:"count"` // rows seeded, records inserted, rows or records deleted
	BatchID    string        `json:"batch_id,omitempty"`
	Errors     []string      `json:"errors,omitempty"` // error codes of a failed step
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// MergePoint is the merge point the flow ran against.
	MergePoint string `json:"merge_point"`

	// Trace holds one event per setup and flow step, in order.
	Trace []TraceEvent `json:"trace"`

	// Union is the union view after the flow.
	Union *merge.Union `json:"union,omitempty"`

	// Errors contains expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends ev, numbering it after the previous event.
func (r *Result) AddTrace(ev TraceEvent) {
	ev.Step = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
