// Package querysql compiles queryir queries to parameterised SQLite SQL.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/mergepoint/internal/ir"
	"github.com/roach88/mergepoint/internal/queryir"
)

// Compile converts a query to SQL and its bound parameters.
//
// Identifiers are validated and double-quoted. Values are never interpolated.
// Every Select carries an ORDER BY so results are deterministic.
func Compile(q queryir.Query) (string, []any, error) {
	if err := queryir.Validate(q); err != nil {
		return "", nil, fmt.Errorf("compile: %w", err)
	}

	switch query := q.(type) {
	case queryir.Select:
		return compileSelect(query)
	case *queryir.Select:
		return compileSelect(*query)
	case queryir.Count:
		return compileCount(query)
	case *queryir.Count:
		return compileCount(*query)
	case queryir.Delete:
		return compileDelete(query)
	case *queryir.Delete:
		return compileDelete(*query)
	default:
		return "", nil, fmt.Errorf("compile: unsupported query type: %T", q)
	}
}

func compileSelect(q queryir.Select) (string, []any, error) {
	where, params, err := compileWhere(q.Filter)
	if err != nil {
		return "", nil, err
	}

	order := q.OrderBy
	if len(order) == 0 {
		order = q.Columns
	}
	orderParts := make([]string, len(order))
	for i, c := range order {
		orderParts[i] = quote(c) + " ASC"
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		quoteList(q.Columns),
		quote(q.From),
		where,
		strings.Join(orderParts, ", "))
	if q.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	return sql, params, nil
}

func compileCount(q queryir.Count) (string, []any, error) {
	where, params, err := compileWhere(q.Filter)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", quote(q.From), where), params, nil
}

func compileDelete(q queryir.Delete) (string, []any, error) {
	where, params, err := compileWhere(q.Filter)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("DELETE FROM %s%s", quote(q.From), where), params, nil
}

func compileWhere(p queryir.Predicate) (string, []any, error) {
	if p == nil {
		return "", nil, nil
	}
	sql, params, err := compilePredicate(p)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}
	return " WHERE " + sql, params, nil
}

func compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return compileEquals(pred)
	case *queryir.Equals:
		return compileEquals(*pred)
	case queryir.And:
		return compileAnd(pred)
	case *queryir.And:
		return compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileEquals(eq queryir.Equals) (string, []any, error) {
	if ir.IsNull(eq.Value) {
		return quote(eq.Field) + " IS NULL", nil, nil
	}
	param, err := ToParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("field %s: %w", eq.Field, err)
	}
	return quote(eq.Field) + " = ?", []any{param}, nil
}

func compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, sub := range and.Predicates {
		sql, subParams, err := compilePredicate(sub)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, subParams...)
	}
	return strings.Join(parts, " AND "), params, nil
}

// ToParam converts a scalar value to a driver parameter.
// Arrays and objects have no column representation and are rejected.
func ToParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case nil, ir.Null:
		return nil, nil
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Bool:
		return bool(val), nil
	default:
		return nil, fmt.Errorf("value of type %T cannot be a SQL parameter", v)
	}
}

func quote(ident string) string {
	return `"` + ident + `"`
}

func quoteList(idents []string) string {
	parts := make([]string, len(idents))
	for i, id := range idents {
		parts[i] = quote(id)
	}
	return strings.Join(parts, ", ")
}
