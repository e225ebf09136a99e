package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/finbench/internal/metric"
)

func TestCompile_SingleLineAndColumn(t *testing.T) {
	frag, params, err := Compile(metric.Selector{Lines: []string{"CA"}, Columns: []string{"TOTAL"}})
	require.NoError(t, err)
	assert.Equal(t, "line = ? AND col = ?", frag)
	assert.Equal(t, []any{"CA", "TOTAL"}, params)
}

func TestCompile_MultipleLines_SortedOrder(t *testing.T) {
	frag, params, err := Compile(metric.Selector{Lines: []string{"CL", "CA", "CB"}})
	require.NoError(t, err)
	assert.Equal(t, "line IN (?, ?, ?)", frag)
	// IN list parameters are sorted for deterministic SQL.
	assert.Equal(t, []any{"CA", "CB", "CL"}, params)
}

func TestCompile_ColumnOnly(t *testing.T) {
	frag, params, err := Compile(metric.Selector{Columns: []string{"TOTAL"}})
	require.NoError(t, err)
	assert.Equal(t, "col = ?", frag)
	assert.Equal(t, []any{"TOTAL"}, params)
}

func TestCompile_EmptySelectorRejected(t *testing.T) {
	_, _, err := Compile(metric.Selector{})
	assert.Error(t, err)
}

func TestSumQuery_Shape(t *testing.T) {
	query, params, err := SumQuery(metric.Selector{Lines: []string{"CA"}, Columns: []string{"TOTAL"}})
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT COALESCE(SUM(value), 0), COUNT(*) FROM line_items WHERE entity_id = ? AND period = ? AND line = ? AND col = ?",
		query)
	assert.Equal(t, []any{"CA", "TOTAL"}, params)
}

func TestGroupSumQuery_Shape(t *testing.T) {
	query, params, err := GroupSumQuery(metric.Selector{Lines: []string{"CL"}})
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT entity_id, COALESCE(SUM(value), 0), COUNT(*) FROM line_items WHERE period = ? AND line = ? GROUP BY entity_id ORDER BY entity_id ASC",
		query)
	assert.Equal(t, []any{"CL"}, params)
}

func TestCompile_Deterministic(t *testing.T) {
	s := metric.Selector{Lines: []string{"B", "A"}, Columns: []string{"Y", "X"}}
	frag1, params1, err := Compile(s)
	require.NoError(t, err)
	frag2, params2, err := Compile(s)
	require.NoError(t, err)
	assert.Equal(t, frag1, frag2)
	assert.Equal(t, params1, params2)
}
