// Package selector compiles line-item aggregate selectors to parameterized
// SQL fragments for the SQLite line-item store.
//
// All values are parameterized, never interpolated, and IN lists are emitted
// in sorted code order so compiled SQL is deterministic for a given selector.
package selector

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/finbench/internal/metric"
)

// Compile converts a selector to a WHERE fragment over the line_items table.
// Returns (fragment, params, error). The fragment never includes the
// entity/period constraint; callers add those to scope the query.
//
// An empty Lines or Columns slice places no constraint on that code. A
// selector with no constraint at all is rejected: it would sum an entity's
// entire filing, which is never a meaningful aggregate.
func Compile(s metric.Selector) (string, []any, error) {
	if s.Empty() {
		return "", nil, fmt.Errorf("compile selector: no line or column constraint")
	}

	var clauses []string
	var params []any

	if frag, args := inClause("line", s.Lines); frag != "" {
		clauses = append(clauses, frag)
		params = append(params, args...)
	}
	if frag, args := inClause("col", s.Columns); frag != "" {
		clauses = append(clauses, frag)
		params = append(params, args...)
	}

	return strings.Join(clauses, " AND "), params, nil
}

// SumQuery builds the aggregate query for one entity/period: the selector's
// matching rows summed, plus the contributing row count so callers can
// distinguish "sums to zero" from "no rows at all".
func SumQuery(s metric.Selector) (string, []any, error) {
	where, params, err := Compile(s)
	if err != nil {
		return "", nil, err
	}
	query := fmt.Sprintf(
		"SELECT COALESCE(SUM(value), 0), COUNT(*) FROM line_items WHERE entity_id = ? AND period = ? AND %s",
		where)
	// entity_id and period placeholders come first
	return query, params, nil
}

// GroupSumQuery builds the per-entity aggregate query for a whole period:
// one row per entity with the selector's sum and contributing row count,
// ordered by entity for deterministic results. The benchmark fallback path
// uses this to resolve a formula term for every entity in one query instead
// of rescanning per entity.
func GroupSumQuery(s metric.Selector) (string, []any, error) {
	where, params, err := Compile(s)
	if err != nil {
		return "", nil, err
	}
	query := fmt.Sprintf(
		"SELECT entity_id, COALESCE(SUM(value), 0), COUNT(*) FROM line_items WHERE period = ? AND %s GROUP BY entity_id ORDER BY entity_id ASC",
		where)
	// period placeholder comes first
	return query, params, nil
}

// inClause builds "col IN (?, ...)" with codes in sorted order, or
// "col = ?" for a single code. Returns empty fragment for no codes.
func inClause(col string, codes []string) (string, []any) {
	if len(codes) == 0 {
		return "", nil
	}
	sorted := append([]string(nil), codes...)
	sort.Strings(sorted)

	if len(sorted) == 1 {
		return fmt.Sprintf("%s = ?", col), []any{sorted[0]}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(sorted)), ", ")
	params := make([]any, len(sorted))
	for i, c := range sorted {
		params[i] = c
	}
	return fmt.Sprintf("%s IN (%s)", col, placeholders), params
}
