package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mergepoint/internal/ir"
	"github.com/roach88/mergepoint/internal/queryir"
)

func TestCompileSelect(t *testing.T) {
	sql, params, err := Compile(queryir.Select{
		From:    "tracking_b",
		Columns: []string{"subject", "session", "led"},
		Filter:  queryir.Restrict(ir.Object{"subject": ir.String("m1"), "session": ir.Int(2)}),
		OrderBy: []string{"subject", "session"},
	})
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT "subject", "session", "led" FROM "tracking_b" WHERE "session" = ? AND "subject" = ? ORDER BY "subject" ASC, "session" ASC`,
		sql)
	assert.Equal(t, []any{int64(2), "m1"}, params)
}

func TestCompileSelectDefaultOrderAndLimit(t *testing.T) {
	sql, params, err := Compile(&queryir.Select{
		From:    "t",
		Columns: []string{"a", "b"},
		Limit:   2,
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT "a", "b" FROM "t" ORDER BY "a" ASC, "b" ASC LIMIT 2`, sql)
	assert.Empty(t, params)
}

func TestCompileCount(t *testing.T) {
	sql, params, err := Compile(queryir.Count{
		From:   "t",
		Filter: queryir.Restrict(ir.Object{"ok": ir.Bool(true), "gone": ir.Null{}}),
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM "t" WHERE "gone" IS NULL AND "ok" = ?`, sql)
	assert.Equal(t, []any{true}, params)
}

func TestCompileDelete(t *testing.T) {
	sql, params, err := Compile(queryir.Delete{
		From:   "t",
		Filter: queryir.Restrict(ir.Object{"k": ir.String("x")}),
	})
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "t" WHERE "k" = ?`, sql)
	assert.Equal(t, []any{"x"}, params)

	_, _, err = Compile(queryir.Delete{From: "t"})
	assert.Error(t, err)
}

func TestCompileEmptyAnd(t *testing.T) {
	sql, _, err := Compile(queryir.Count{From: "t", Filter: queryir.And{}})
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM "t" WHERE 1 = 1`, sql)
}

func TestCompileRejectsInvalid(t *testing.T) {
	_, _, err := Compile(queryir.Count{From: `x"; DROP TABLE y; --`})
	assert.Error(t, err)

	_, _, err = Compile(queryir.Count{
		From:   "t",
		Filter: queryir.Equals{Field: "a", Value: ir.Array{ir.Int(1)}},
	})
	assert.Error(t, err)
}

func TestToParam(t *testing.T) {
	p, err := ToParam(ir.String("x"))
	require.NoError(t, err)
	assert.Equal(t, "x", p)

	p, err = ToParam(ir.Null{})
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = ToParam(ir.Object{})
	assert.Error(t, err)
}
