package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/finbench/internal/metric"
)

// ErrNoGeneration is returned when no build generation has been published.
var ErrNoGeneration = errors.New("no published generation")

// LineItems returns all line items for one entity and period, ordered
// deterministically by (line, col).
//
// Returns an empty slice (not nil) when the entity/period has no rows.
func (s *Store) LineItems(ctx context.Context, entityID string, period int) ([]metric.LineItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, period, line, col, value
		FROM line_items
		WHERE entity_id = ? AND period = ?
		ORDER BY line ASC, col ASC
	`, entityID, period)
	if err != nil {
		return nil, fmt.Errorf("query line items: %w", err)
	}
	defer rows.Close()

	items := []metric.LineItem{}
	for rows.Next() {
		var item metric.LineItem
		if err := rows.Scan(&item.EntityID, &item.Period, &item.Line, &item.Column, &item.Value); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate line items: %w", err)
	}

	return items, nil
}

// AllLineItems returns every line item in the store, ordered by
// (entity, period, line, col). Used to fingerprint build inputs.
func (s *Store) AllLineItems(ctx context.Context) ([]metric.LineItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, period, line, col, value
		FROM line_items
		ORDER BY entity_id ASC, period ASC, line ASC, col ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query all line items: %w", err)
	}
	defer rows.Close()

	items := []metric.LineItem{}
	for rows.Next() {
		var item metric.LineItem
		if err := rows.Scan(&item.EntityID, &item.Period, &item.Line, &item.Column, &item.Value); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate all line items: %w", err)
	}

	return items, nil
}

// Entity returns one entity by id.
func (s *Store) Entity(ctx context.Context, id string) (metric.Entity, error) {
	var e metric.Entity
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, region, category FROM entities WHERE id = ?
	`, id).Scan(&e.ID, &e.Name, &e.Region, &e.Category)
	if err != nil {
		return metric.Entity{}, fmt.Errorf("query entity %s: %w", id, err)
	}
	return e, nil
}

// Entities returns every registered entity, ordered by id.
func (s *Store) Entities(ctx context.Context) ([]metric.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, region, category FROM entities ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	entities := []metric.Entity{}
	for rows.Next() {
		var e metric.Entity
		if err := rows.Scan(&e.ID, &e.Name, &e.Region, &e.Category); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}

	return entities, nil
}

// Periods returns every distinct reporting period present in the line-item
// store, ascending. The build pipeline computes one result set per period.
func (s *Store) Periods(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT period FROM line_items ORDER BY period ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query periods: %w", err)
	}
	defer rows.Close()

	periods := []int{}
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan period: %w", err)
		}
		periods = append(periods, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate periods: %w", err)
	}

	return periods, nil
}

// PublishedGeneration returns the id of the currently published generation,
// or ErrNoGeneration when no build has ever published.
func (s *Store) PublishedGeneration(ctx context.Context) (string, error) {
	var gen string
	err := s.db.QueryRowContext(ctx, `SELECT generation FROM published WHERE id = 1`).Scan(&gen)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoGeneration
	}
	if err != nil {
		return "", fmt.Errorf("query published generation: %w", err)
	}
	return gen, nil
}

// Generation returns the metadata row for a generation id.
func (s *Store) Generation(ctx context.Context, id string) (Generation, error) {
	var g Generation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, source_hash, kpi_rows, bench_rows
		FROM generations WHERE id = ?
	`, id).Scan(&g.ID, &g.CreatedAt, &g.SourceHash, &g.KPIRows, &g.BenchRows)
	if err != nil {
		return Generation{}, fmt.Errorf("query generation %s: %w", id, err)
	}
	return g, nil
}

// KPIValues returns the precomputed values for one entity/period in a
// generation, keyed by KPI key. A stored NULL scans as a null Value.
//
// Returns an empty map when the generation has no rows for the
// entity/period; the caller decides whether that means "unknown entity"
// or "no data".
func (s *Store) KPIValues(ctx context.Context, generation, entityID string, period int) (map[string]metric.Value, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kpi_key, value
		FROM kpi_values
		WHERE generation = ? AND entity_id = ? AND period = ?
		ORDER BY kpi_key ASC
	`, generation, entityID, period)
	if err != nil {
		return nil, fmt.Errorf("query kpi values: %w", err)
	}
	defer rows.Close()

	values := map[string]metric.Value{}
	for rows.Next() {
		var key string
		var v sql.NullFloat64
		if err := rows.Scan(&key, &v); err != nil {
			return nil, fmt.Errorf("scan kpi value: %w", err)
		}
		if v.Valid {
			values[key] = metric.Float(v.Float64)
		} else {
			values[key] = metric.Null()
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kpi values: %w", err)
	}

	return values, nil
}

// BenchmarkStat returns one precomputed benchmark row, or (nil, nil) when
// the partition has no row - absence means the partition had zero non-null
// samples, which is meaningful and distinct from any stat value.
func (s *Store) BenchmarkStat(ctx context.Context, generation, kpiKey, scopeID, scopeKey string, period int) (*metric.Stat, error) {
	var stat metric.Stat
	err := s.db.QueryRowContext(ctx, `
		SELECT p25, median, p75, mean, sample_count
		FROM benchmark_stats
		WHERE generation = ? AND kpi_key = ? AND scope = ? AND scope_key = ? AND period = ?
	`, generation, kpiKey, scopeID, scopeKey, period).
		Scan(&stat.P25, &stat.Median, &stat.P75, &stat.Mean, &stat.SampleCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query benchmark stat: %w", err)
	}
	return &stat, nil
}

// GenerationRowCounts returns the number of kpi_values and benchmark_stats
// rows stored for a generation. Used by tests and the build report.
func (s *Store) GenerationRowCounts(ctx context.Context, generation string) (kpiRows, benchRows int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM kpi_values WHERE generation = ?`, generation).Scan(&kpiRows)
	if err != nil {
		return 0, 0, fmt.Errorf("count kpi values: %w", err)
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM benchmark_stats WHERE generation = ?`, generation).Scan(&benchRows)
	if err != nil {
		return 0, 0, fmt.Errorf("count benchmark stats: %w", err)
	}
	return kpiRows, benchRows, nil
}
