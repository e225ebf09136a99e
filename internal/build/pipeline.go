// Package build runs the precomputation pipeline that turns raw line
// items into a published generation of KPI values and benchmark stats.
//
// Stages run in strict order: load, compute, aggregate, write, publish.
// Nothing a stage produces is visible to queries until the final publish
// flips the generation marker, so a failed build leaves the previously
// published generation serving untouched.
package build

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/finbench/internal/bench"
	"github.com/roach88/finbench/internal/compiler"
	"github.com/roach88/finbench/internal/kpi"
	"github.com/roach88/finbench/internal/metric"
	"github.com/roach88/finbench/internal/store"
)

// Stage names a pipeline stage for error reporting.
type Stage string

const (
	StageLoad      Stage = "load"
	StageCompute   Stage = "compute"
	StageAggregate Stage = "aggregate"
	StageWrite     Stage = "write"
	StagePublish   Stage = "publish"
)

// StageError identifies where a build run failed. Entity, KPIKey and
// Scope are set when the failure is attributable to one.
type StageError struct {
	Stage  Stage
	Entity string
	KPIKey string
	Scope  string
	Err    error
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("build stage %s failed", e.Stage)
	if e.Entity != "" {
		msg += fmt.Sprintf(" (entity %s)", e.Entity)
	}
	if e.KPIKey != "" {
		msg += fmt.Sprintf(" (kpi %s)", e.KPIKey)
	}
	if e.Scope != "" {
		msg += fmt.Sprintf(" (scope %s)", e.Scope)
	}
	return msg + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }

// Result summarizes a successful build run.
type Result struct {
	Generation string
	SourceHash string
	Entities   int
	KPIRows    int
	BenchRows  int
	Elapsed    time.Duration
}

// Config assembles a Pipeline. Store and Registry are required.
type Config struct {
	Store       *store.Store
	Registry    *compiler.Registry
	Generations GenerationIDSource // defaults to UUIDv7Source
	Workers     int                // defaults to GOMAXPROCS
	Now         func() time.Time   // defaults to time.Now
}

// Pipeline computes and publishes generations. Construct once with New;
// Run may be called repeatedly (each run is a fresh generation).
type Pipeline struct {
	store    *store.Store
	registry *compiler.Registry
	gens     GenerationIDSource
	workers  int
	now      func() time.Time
}

// New constructs a Pipeline from cfg, applying defaults.
func New(cfg Config) *Pipeline {
	if cfg.Generations == nil {
		cfg.Generations = UUIDv7Source{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Pipeline{
		store:    cfg.Store,
		registry: cfg.Registry,
		gens:     cfg.Generations,
		workers:  cfg.Workers,
		now:      cfg.Now,
	}
}

// entityPeriod is one unit of compute work.
type entityPeriod struct {
	entityID string
	period   int
	items    []metric.LineItem
}

// Run executes one full build. On failure it returns a *StageError and
// publishes nothing; the previously published generation keeps serving.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := p.now()

	entities, work, sourceHash, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("build inputs loaded",
		"entities", len(entities),
		"entity_periods", len(work),
		"source_hash", sourceHash)

	kpiRows, benchInput, err := p.compute(ctx, work)
	if err != nil {
		return nil, err
	}

	benchRows, err := p.aggregate(ctx, benchInput, entities)
	if err != nil {
		return nil, err
	}

	generation := p.gens.Generate()
	if err := p.write(ctx, generation, sourceHash, kpiRows, benchRows); err != nil {
		return nil, err
	}

	if err := p.store.Publish(ctx, generation, len(kpiRows), len(benchRows)); err != nil {
		return nil, &StageError{Stage: StagePublish, Err: err}
	}

	result := &Result{
		Generation: generation,
		SourceHash: sourceHash,
		Entities:   len(entities),
		KPIRows:    len(kpiRows),
		BenchRows:  len(benchRows),
		Elapsed:    p.now().Sub(start),
	}
	slog.Info("generation published",
		"generation", result.Generation,
		"kpi_rows", result.KPIRows,
		"bench_rows", result.BenchRows,
		"elapsed", result.Elapsed)
	return result, nil
}

func (p *Pipeline) load(ctx context.Context) (map[string]metric.Entity, []entityPeriod, string, error) {
	entityList, err := p.store.Entities(ctx)
	if err != nil {
		return nil, nil, "", &StageError{Stage: StageLoad, Err: err}
	}
	items, err := p.store.AllLineItems(ctx)
	if err != nil {
		return nil, nil, "", &StageError{Stage: StageLoad, Err: err}
	}
	if len(items) == 0 {
		return nil, nil, "", &StageError{Stage: StageLoad, Err: fmt.Errorf("line-item store is empty, nothing to build")}
	}

	entities := make(map[string]metric.Entity, len(entityList))
	for _, e := range entityList {
		entities[e.ID] = e
	}

	// Group items by entity/period; AllLineItems returns them ordered so
	// each group's slice is contiguous.
	grouped := make(map[string]map[int][]metric.LineItem)
	for _, item := range items {
		byPeriod, ok := grouped[item.EntityID]
		if !ok {
			byPeriod = make(map[int][]metric.LineItem)
			grouped[item.EntityID] = byPeriod
		}
		byPeriod[item.Period] = append(byPeriod[item.Period], item)
	}

	var work []entityPeriod
	for entityID, byPeriod := range grouped {
		for period, periodItems := range byPeriod {
			work = append(work, entityPeriod{entityID: entityID, period: period, items: periodItems})
		}
	}

	sourceHash := metric.SourceHash(metric.SnapshotHash(items), p.registry.Keys(), p.registry.ScopeIDs())
	return entities, work, sourceHash, nil
}

// benchKey indexes compute output for the aggregation stage.
type benchKey struct {
	kpiKey string
	period int
}

func (p *Pipeline) compute(ctx context.Context, work []entityPeriod) ([]store.KPIValueRow, map[benchKey][]bench.EntityValue, error) {
	defs := p.registry.Definitions()

	var (
		mu         sync.Mutex
		kpiRows    []store.KPIValueRow
		benchInput = make(map[benchKey][]bench.EntityValue)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, ep := range work {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return &StageError{Stage: StageCompute, Entity: ep.entityID, Err: err}
			}
			values := kpi.ComputeAll(defs, ep.items)

			rows := make([]store.KPIValueRow, 0, len(defs))
			for _, def := range defs {
				rows = append(rows, store.KPIValueRow{
					EntityID: ep.entityID,
					Period:   ep.period,
					KPIKey:   def.Key,
					Value:    values[def.Key],
				})
			}

			mu.Lock()
			kpiRows = append(kpiRows, rows...)
			for _, def := range defs {
				k := benchKey{kpiKey: def.Key, period: ep.period}
				benchInput[k] = append(benchInput[k], bench.EntityValue{
					EntityID: ep.entityID,
					Value:    values[def.Key],
				})
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return kpiRows, benchInput, nil
}

func (p *Pipeline) aggregate(ctx context.Context, benchInput map[benchKey][]bench.EntityValue, entities map[string]metric.Entity) ([]store.BenchmarkRow, error) {
	scopes := p.registry.Scopes()

	var (
		mu        sync.Mutex
		benchRows []store.BenchmarkRow
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for k, values := range benchInput {
		for _, scope := range scopes {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return &StageError{Stage: StageAggregate, KPIKey: k.kpiKey, Scope: scope.ID, Err: err}
				}
				stats := bench.Aggregate(scope, values, entities)
				if len(stats) == 0 {
					return nil
				}
				rows := make([]store.BenchmarkRow, 0, len(stats))
				for scopeKey, stat := range stats {
					rows = append(rows, store.BenchmarkRow{
						KPIKey:   k.kpiKey,
						ScopeID:  scope.ID,
						ScopeKey: scopeKey,
						Period:   k.period,
						Stat:     stat,
					})
				}
				mu.Lock()
				benchRows = append(benchRows, rows...)
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return benchRows, nil
}

func (p *Pipeline) write(ctx context.Context, generation, sourceHash string, kpiRows []store.KPIValueRow, benchRows []store.BenchmarkRow) error {
	if err := p.store.CreateGeneration(ctx, generation, sourceHash, p.now().UTC()); err != nil {
		return &StageError{Stage: StageWrite, Err: err}
	}
	if err := p.store.WriteKPIValues(ctx, generation, kpiRows); err != nil {
		return &StageError{Stage: StageWrite, Err: err}
	}
	if err := p.store.WriteBenchmarkStats(ctx, generation, benchRows); err != nil {
		return &StageError{Stage: StageWrite, Err: err}
	}
	return nil
}
