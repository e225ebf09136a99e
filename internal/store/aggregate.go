package store

import (
	"context"
	"fmt"

	"github.com/roach88/finbench/internal/metric"
	"github.com/roach88/finbench/internal/selector"
)

// AggregateSum holds one selector's resolution for a single entity: the
// summed value and the number of contributing rows. A zero Count means "no
// rows at all", which the calculator treats as insufficient data rather
// than a legitimate zero sum.
type AggregateSum struct {
	Sum   float64
	Count int
}

// SumAggregate resolves one selector against the line-item store for an
// entity/period.
func (s *Store) SumAggregate(ctx context.Context, entityID string, period int, sel metric.Selector) (AggregateSum, error) {
	query, params, err := selector.SumQuery(sel)
	if err != nil {
		return AggregateSum{}, fmt.Errorf("sum aggregate: %w", err)
	}

	var agg AggregateSum
	args := append([]any{entityID, period}, params...)
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&agg.Sum, &agg.Count); err != nil {
		return AggregateSum{}, fmt.Errorf("sum aggregate: %w", err)
	}
	return agg, nil
}

// SumAggregateByEntity resolves one selector for every entity in a period
// with a single grouped scan. Entities with no matching rows are absent
// from the map. This is the benchmark fallback path's term resolver: one
// query per formula term instead of one per entity.
func (s *Store) SumAggregateByEntity(ctx context.Context, period int, sel metric.Selector) (map[string]AggregateSum, error) {
	query, params, err := selector.GroupSumQuery(sel)
	if err != nil {
		return nil, fmt.Errorf("sum aggregate by entity: %w", err)
	}

	args := append([]any{period}, params...)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sum aggregate by entity: %w", err)
	}
	defer rows.Close()

	sums := map[string]AggregateSum{}
	for rows.Next() {
		var entityID string
		var agg AggregateSum
		if err := rows.Scan(&entityID, &agg.Sum, &agg.Count); err != nil {
			return nil, fmt.Errorf("scan aggregate sum: %w", err)
		}
		sums[entityID] = agg
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregate sums: %w", err)
	}

	return sums, nil
}

// ProbeKPIValues checks that the kpi_values table is present with the
// expected shape and that the published generation has rows in it.
// Used by the capability detector; an error downgrades the serving mode,
// it never fails the process.
func (s *Store) ProbeKPIValues(ctx context.Context, generation string) error {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM kpi_values WHERE generation = ?
	`, generation).Scan(&n)
	if err != nil {
		return fmt.Errorf("probe kpi_values: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("probe kpi_values: generation %s has no rows", generation)
	}
	return nil
}

// ProbeBenchmarkStats is the benchmark-side analogue of ProbeKPIValues.
// The two probes are independent: a database can serve precomputed KPI
// values while benchmarks fall back to raw computation.
func (s *Store) ProbeBenchmarkStats(ctx context.Context, generation string) error {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM benchmark_stats WHERE generation = ?
	`, generation).Scan(&n)
	if err != nil {
		return fmt.Errorf("probe benchmark_stats: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("probe benchmark_stats: generation %s has no rows", generation)
	}
	return nil
}

// ProbeLineItems checks that the raw line-item store is reachable and
// non-empty. Determines RawFallback vs Unavailable.
func (s *Store) ProbeLineItems(ctx context.Context) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM line_items`).Scan(&n); err != nil {
		return fmt.Errorf("probe line_items: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("probe line_items: store is empty")
	}
	return nil
}
