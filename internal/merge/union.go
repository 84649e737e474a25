package merge

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/mergepoint/internal/ir"
)

// Column is one attribute of a union view.
type Column struct {
	Name string `json:"name"`
	Key  bool   `json:"key"`
}

// Row is one merge identity in a union view. Values holds every column of the
// view; columns owned by other origins are ir.Null.
//
// A Dangling row's origin row no longer exists upstream. Only its key
// attributes are populated.
type Row struct {
	Identity    ir.Identity `json:"identity"`
	OriginIndex int         `json:"origin_index"`
	Origin      string      `json:"origin"`
	Values      ir.Object   `json:"values"`
	Dangling    bool        `json:"dangling,omitempty"`
}

// Union is a snapshot of a merge point's union view.
type Union struct {
	MergePoint string   `json:"merge_point"`
	Columns    []Column `json:"columns"`
	Rows       []Row    `json:"rows"`

	index map[ir.Identity]int
}

// UnionView computes the union of every origin's attributes keyed by merge
// identity, from the current contents of the store and the origins. Nothing
// is cached between calls.
//
// Rows are grouped by origin in declaration order and ordered by insertion
// within an origin: the concatenation of one projection per source.
func (t *Table) UnionView(ctx context.Context) (*Union, error) {
	records, err := t.store.ListRecords(ctx, t.registry.Name())
	if err != nil {
		return nil, fmt.Errorf("union view: %w", err)
	}

	keyCols, attrCols := t.registry.Columns()
	u := &Union{
		MergePoint: t.registry.Name(),
		Columns:    make([]Column, 0, len(keyCols)+len(attrCols)),
	}
	for _, c := range keyCols {
		u.Columns = append(u.Columns, Column{Name: c, Key: true})
	}
	for _, c := range attrCols {
		u.Columns = append(u.Columns, Column{Name: c})
	}

	projections := make([][]Row, t.registry.Len())
	dangling := 0
	for _, rec := range records {
		src, err := t.sourceFor(rec)
		if err != nil {
			return nil, fmt.Errorf("union view: %w", err)
		}

		row := Row{
			Identity:    rec.Identity,
			OriginIndex: rec.Binding.OriginIndex,
			Origin:      rec.Binding.Origin,
			Values:      make(ir.Object, len(u.Columns)),
		}
		for _, c := range u.Columns {
			row.Values[c.Name] = ir.Null{}
		}
		for k, v := range rec.Binding.Key {
			row.Values[k] = v
		}

		attrs, err := src.NonKeyAttributes(ctx, rec.Binding.Key)
		switch {
		case errors.Is(err, ErrOriginNotFound):
			row.Dangling = true
			dangling++
		case err != nil:
			return nil, fmt.Errorf("union view: source %s: %w", src.Name(), err)
		default:
			for _, a := range src.Attributes() {
				if v, ok := attrs[a]; ok && v != nil {
					row.Values[a] = v
				}
			}
		}

		projections[rec.Binding.OriginIndex] = append(projections[rec.Binding.OriginIndex], row)
	}

	u.index = make(map[ir.Identity]int, len(records))
	u.Rows = make([]Row, 0, len(records))
	for _, projection := range projections {
		for _, row := range projection {
			if _, dup := u.index[row.Identity]; dup {
				return nil, fmt.Errorf("union view: identity %s appears in more than one origin", row.Identity)
			}
			u.index[row.Identity] = len(u.Rows)
			u.Rows = append(u.Rows, row)
		}
	}

	if dangling > 0 {
		t.logger.Warn("union view contains dangling records", "dangling", dangling)
	}
	return u, nil
}

// Len returns the number of rows.
func (u *Union) Len() int { return len(u.Rows) }

// Row returns the row for id.
func (u *Union) Row(id ir.Identity) (Row, bool) {
	if u.index == nil {
		for _, r := range u.Rows {
			if r.Identity == id {
				return r, true
			}
		}
		return Row{}, false
	}
	i, ok := u.index[id]
	if !ok {
		return Row{}, false
	}
	return u.Rows[i], true
}

// Restrict returns the rows whose values equal every attribute of match.
// An attribute that is not a column never matches. This is the join hook for
// downstream consumers that hold partial keys rather than identities.
func (u *Union) Restrict(match ir.Object) *Union {
	out := &Union{
		MergePoint: u.MergePoint,
		Columns:    u.Columns,
		index:      make(map[ir.Identity]int),
	}
	for _, r := range u.Rows {
		if rowMatches(r, match) {
			out.index[r.Identity] = len(out.Rows)
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

func rowMatches(r Row, match ir.Object) bool {
	for k, want := range match {
		got, ok := r.Values[k]
		if !ok || !ir.Equal(got, want) {
			return false
		}
	}
	return true
}

// Identities returns the identities of all rows in order.
func (u *Union) Identities() []ir.Identity {
	ids := make([]ir.Identity, len(u.Rows))
	for i, r := range u.Rows {
		ids[i] = r.Identity
	}
	return ids
}
