package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/finbench/internal/metric"
)

// Generation is the metadata row for one completed build.
type Generation struct {
	ID         string
	CreatedAt  string
	SourceHash string
	KPIRows    int
	BenchRows  int
}

// KPIValueRow is one precomputed KPI value destined for kpi_values.
type KPIValueRow struct {
	EntityID string
	Period   int
	KPIKey   string
	Value    metric.Value
}

// BenchmarkRow is one precomputed benchmark stat destined for benchmark_stats.
type BenchmarkRow struct {
	KPIKey   string
	ScopeID  string
	ScopeKey string
	Period   int
	Stat     metric.Stat
}

// WriteKPIValues inserts a generation's KPI value rows in one transaction.
//
// The rows are invisible to readers until Publish flips the marker; a
// failed build leaves them as garbage attached to an unpublished
// generation id, never as partial served state.
func (s *Store) WriteKPIValues(ctx context.Context, generation string, rows []KPIValueRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write kpi values: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO kpi_values (generation, entity_id, period, kpi_key, value)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write kpi values: prepare: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		var v sql.NullFloat64
		if row.Value.Valid {
			v = sql.NullFloat64{Float64: row.Value.Float64, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, generation, row.EntityID, row.Period, row.KPIKey, v); err != nil {
			return fmt.Errorf("write kpi value %s/%d/%s: %w", row.EntityID, row.Period, row.KPIKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write kpi values: commit: %w", err)
	}
	return nil
}

// WriteBenchmarkStats inserts a generation's benchmark rows in one
// transaction. Rows with a zero sample count are rejected by the schema
// CHECK constraint; the aggregator never produces them.
func (s *Store) WriteBenchmarkStats(ctx context.Context, generation string, rows []BenchmarkRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write benchmark stats: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO benchmark_stats
		(generation, kpi_key, scope, scope_key, period, p25, median, p75, mean, sample_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write benchmark stats: prepare: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, generation, row.KPIKey, row.ScopeID, row.ScopeKey, row.Period,
			row.Stat.P25, row.Stat.Median, row.Stat.P75, row.Stat.Mean, row.Stat.SampleCount); err != nil {
			return fmt.Errorf("write benchmark stat %s/%s/%s/%d: %w", row.KPIKey, row.ScopeID, row.ScopeKey, row.Period, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write benchmark stats: commit: %w", err)
	}
	return nil
}

// CreateGeneration records a new, not-yet-published generation id before
// its result rows are written (the FK on kpi_values/benchmark_stats
// requires the generations row to exist first).
func (s *Store) CreateGeneration(ctx context.Context, id, sourceHash string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO generations (id, created_at, source_hash, kpi_rows, bench_rows)
		VALUES (?, ?, ?, 0, 0)
	`, id, now.UTC().Format(time.RFC3339), sourceHash)
	if err != nil {
		return fmt.Errorf("create generation %s: %w", id, err)
	}
	return nil
}

// Publish atomically makes a generation the served one: finalizes its row
// counts and flips the published marker in a single transaction. This is
// the only transactional boundary in the system; in-flight readers of the
// prior generation are unaffected because its rows are never touched.
func (s *Store) Publish(ctx context.Context, generation string, kpiRows, benchRows int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("publish: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE generations SET kpi_rows = ?, bench_rows = ? WHERE id = ?
	`, kpiRows, benchRows, generation)
	if err != nil {
		return fmt.Errorf("publish: finalize generation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("publish: rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("publish: unknown generation %s", generation)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO published (id, generation) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET generation = excluded.generation
	`, generation)
	if err != nil {
		return fmt.Errorf("publish: update marker: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("publish: commit: %w", err)
	}
	return nil
}

// DeleteGeneration removes an unpublished generation and its rows.
// Used to clean up after failed builds; refuses to delete the published one.
func (s *Store) DeleteGeneration(ctx context.Context, generation string) error {
	published, err := s.PublishedGeneration(ctx)
	if err != nil && err != ErrNoGeneration {
		return err
	}
	if published == generation {
		return fmt.Errorf("delete generation: %s is published", generation)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete generation: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM kpi_values WHERE generation = ?`,
		`DELETE FROM benchmark_stats WHERE generation = ?`,
		`DELETE FROM generations WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, generation); err != nil {
			return fmt.Errorf("delete generation %s: %w", generation, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete generation: commit: %w", err)
	}
	return nil
}

// ImportEntities replaces the entity registry wholesale.
func (s *Store) ImportEntities(ctx context.Context, entities []metric.Entity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("import entities: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entities`); err != nil {
		return fmt.Errorf("import entities: clear: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entities (id, name, region, category) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("import entities: prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range entities {
		id := metric.CanonicalString(e.ID)
		if _, err := stmt.ExecContext(ctx, id, e.Name, e.Region, e.Category); err != nil {
			return fmt.Errorf("import entity %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("import entities: commit: %w", err)
	}
	return nil
}

// ImportLineItems replaces the line-item store wholesale. This models the
// periodic full-batch refresh from the upstream producer; there is no
// incremental path.
func (s *Store) ImportLineItems(ctx context.Context, items []metric.LineItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("import line items: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM line_items`); err != nil {
		return fmt.Errorf("import line items: clear: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO line_items (entity_id, period, line, col, value)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("import line items: prepare: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		id := metric.CanonicalString(item.EntityID)
		if _, err := stmt.ExecContext(ctx, id, item.Period, item.Line, item.Column, item.Value); err != nil {
			return fmt.Errorf("import line item %s/%d/%s/%s: %w", item.EntityID, item.Period, item.Line, item.Column, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("import line items: commit: %w", err)
	}
	return nil
}
