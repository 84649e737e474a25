package queryir

import "github.com/roach88/mergepoint/internal/ir"

// Query is a sealed interface; only types in this package implement it.
type Query interface {
	queryNode()
}

// Predicate is a sealed filter condition.
type Predicate interface {
	predicateNode()
}

// Select restricts a relation and projects columns.
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY <order_by>
//
// An empty OrderBy orders by all projected columns so results are stable.
type Select struct {
	From    string
	Columns []string
	Filter  Predicate // nil = no filter
	OrderBy []string
	Limit   int // 0 = unlimited
}

func (Select) queryNode() {}

// Count counts the rows of a relation matching Filter.
type Count struct {
	From   string
	Filter Predicate
}

func (Count) queryNode() {}

// Delete removes the rows of a relation matching Filter. Filter is required;
// whole-relation deletes are not expressible.
type Delete struct {
	From   string
	Filter Predicate
}

func (Delete) queryNode() {}

// Equals is attribute = literal. A Null value compiles to IS NULL.
type Equals struct {
	Field string
	Value ir.Value
}

func (Equals) predicateNode() {}

// And is a conjunction; an empty And is vacuously true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Restrict builds the conjunction of attribute equalities for a key, in
// canonical attribute order.
func Restrict(key ir.Object) Predicate {
	if len(key) == 0 {
		return nil
	}
	preds := make([]Predicate, 0, len(key))
	for _, name := range key.SortedKeys() {
		preds = append(preds, Equals{Field: name, Value: key[name]})
	}
	return And{Predicates: preds}
}
