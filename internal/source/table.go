package source

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/mergepoint/internal/ir"
	"github.com/roach88/mergepoint/internal/merge"
	"github.com/roach88/mergepoint/internal/queryir"
	"github.com/roach88/mergepoint/internal/querysql"
)

var _ merge.Source = (*Table)(nil)

// TableSpec declares an SQL-backed origin relation.
type TableSpec struct {
	Name       string   // Origin name; defaults to Table
	Table      string   // SQL table name
	Key        []string // Primary-key columns
	Attributes []string // Non-key columns exposed to the union view
}

// Table is an origin relation stored in an SQL table.
// Column values must be integers, text or NULL; REAL columns are rejected
// when read because floats cannot take part in identities.
type Table struct {
	db    *sql.DB
	spec  TableSpec
	heads []string
}

// NewTable validates spec and binds it to db. The table itself is not
// touched; use CreateTable when the merge point owns its fixtures.
func NewTable(db *sql.DB, spec TableSpec) (*Table, error) {
	if spec.Name == "" {
		spec.Name = spec.Table
	}
	if !queryir.ValidIdentifier(spec.Table) {
		return nil, fmt.Errorf("source %s: invalid table name %q", spec.Name, spec.Table)
	}
	if len(spec.Key) == 0 {
		return nil, fmt.Errorf("source %s: key schema is empty", spec.Name)
	}
	heads := make([]string, 0, len(spec.Key)+len(spec.Attributes))
	for _, c := range append(slices.Clone(spec.Key), spec.Attributes...) {
		if !queryir.ValidIdentifier(c) {
			return nil, fmt.Errorf("source %s: invalid column name %q", spec.Name, c)
		}
		if slices.Contains(heads, c) {
			return nil, fmt.Errorf("source %s: column %q declared twice", spec.Name, c)
		}
		heads = append(heads, c)
	}

	spec.Key = slices.Clone(spec.Key)
	spec.Attributes = slices.Clone(spec.Attributes)
	return &Table{db: db, spec: spec, heads: heads}, nil
}

// Name implements merge.Source.
func (t *Table) Name() string { return t.spec.Name }

// KeySchema implements merge.Source.
func (t *Table) KeySchema() []string { return slices.Clone(t.spec.Key) }

// Attributes implements merge.Source.
func (t *Table) Attributes() []string { return slices.Clone(t.spec.Attributes) }

// Spec returns the declaration the table was built from.
func (t *Table) Spec() TableSpec { return t.spec }

// Matches implements merge.Source.
func (t *Table) Matches(ctx context.Context, key ir.Object) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("%s: empty key", t.spec.Name)
	}
	query, params, err := querysql.Compile(queryir.Count{
		From:   t.spec.Table,
		Filter: queryir.Restrict(key),
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", t.spec.Name, err)
	}

	var n int
	if err := t.db.QueryRowContext(ctx, query, params...).Scan(&n); err != nil {
		return false, fmt.Errorf("%s: count: %w", t.spec.Name, err)
	}
	return n > 0, nil
}

// ResolveFullKey implements merge.Source.
func (t *Table) ResolveFullKey(ctx context.Context, key ir.Object) (ir.Object, error) {
	return t.selectOne(ctx, t.spec.Key, key)
}

// NonKeyAttributes implements merge.Source.
func (t *Table) NonKeyAttributes(ctx context.Context, fullKey ir.Object) (ir.Object, error) {
	if len(t.spec.Attributes) == 0 {
		if _, err := t.selectOne(ctx, t.spec.Key, fullKey.Project(t.spec.Key)); err != nil {
			return nil, err
		}
		return ir.Object{}, nil
	}
	return t.selectOne(ctx, t.spec.Attributes, fullKey.Project(t.spec.Key))
}

// selectOne reads columns of the single row matching key.
func (t *Table) selectOne(ctx context.Context, columns []string, key ir.Object) (ir.Object, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("%s: empty key", t.spec.Name)
	}
	query, params, err := querysql.Compile(queryir.Select{
		From:    t.spec.Table,
		Columns: columns,
		Filter:  queryir.Restrict(key),
		OrderBy: t.spec.Key,
		Limit:   2,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.spec.Name, err)
	}

	rows, err := t.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", t.spec.Name, err)
	}
	defer rows.Close()

	var found []ir.Object
	for rows.Next() {
		obj, err := scanObject(rows, columns)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.spec.Name, err)
		}
		found = append(found, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", t.spec.Name, err)
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%s: %w", t.spec.Name, merge.ErrOriginNotFound)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%s: partial key matches more than one row", t.spec.Name)
	}
}

func scanObject(rows *sql.Rows, columns []string) (ir.Object, error) {
	raw := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	obj := make(ir.Object, len(columns))
	for i, c := range columns {
		v, err := ir.FromGo(raw[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c, err)
		}
		obj[c] = v
	}
	return obj, nil
}

// CreateTable creates the backing table if it does not exist. Columns carry no
// declared type so SQLite stores values exactly as bound.
func (t *Table) CreateTable(ctx context.Context) error {
	cols := make([]string, len(t.heads))
	for i, c := range t.heads {
		cols[i] = `"` + c + `"`
	}
	keys := make([]string, len(t.spec.Key))
	for i, k := range t.spec.Key {
		keys[i] = `"` + k + `"`
	}

	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s" (%s, PRIMARY KEY (%s))`,
		t.spec.Table, strings.Join(cols, ", "), strings.Join(keys, ", "))
	if _, err := t.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%s: create table: %w", t.spec.Name, err)
	}
	return nil
}

// InsertRow writes one row, the way an upstream pipeline stage would.
// Attributes missing from row are stored as NULL.
func (t *Table) InsertRow(ctx context.Context, row ir.Object) error {
	cols := make([]string, len(t.heads))
	marks := make([]string, len(t.heads))
	params := make([]any, len(t.heads))
	for i, c := range t.heads {
		cols[i] = `"` + c + `"`
		marks[i] = "?"
		p, err := querysql.ToParam(row[c])
		if err != nil {
			return fmt.Errorf("%s: column %s: %w", t.spec.Name, c, err)
		}
		params[i] = p
	}
	for name := range row {
		if !slices.Contains(t.heads, name) {
			return fmt.Errorf("%s: unknown attribute %q", t.spec.Name, name)
		}
	}

	stmt := fmt.Sprintf(`INSERT INTO "%s" (%s) VALUES (%s)`,
		t.spec.Table, strings.Join(cols, ", "), strings.Join(marks, ", "))
	if _, err := t.db.ExecContext(ctx, stmt, params...); err != nil {
		return fmt.Errorf("%s: insert row: %w", t.spec.Name, err)
	}
	return nil
}

// DeleteRow removes the row with the given full key, as an upstream deletion.
func (t *Table) DeleteRow(ctx context.Context, key ir.Object) (bool, error) {
	if !covers(key, t.spec.Key) {
		return false, fmt.Errorf("%s: delete needs the full key", t.spec.Name)
	}
	stmt, params, err := querysql.Compile(queryir.Delete{
		From:   t.spec.Table,
		Filter: queryir.Restrict(key.Project(t.spec.Key)),
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", t.spec.Name, err)
	}

	res, err := t.db.ExecContext(ctx, stmt, params...)
	if err != nil {
		return false, fmt.Errorf("%s: delete row: %w", t.spec.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: rows affected: %w", t.spec.Name, err)
	}
	return n > 0, nil
}
