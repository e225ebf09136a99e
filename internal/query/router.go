// Package query routes KPI and benchmark queries to the fastest path the
// database currently supports.
//
// Per call the router checks the result cache, consults the capability
// detector, then serves: Precomputed mode is an indexed point lookup on
// the published generation's tables, RawFallback computes the answer from
// raw line items under a bounded timeout, and Unavailable yields an
// explicit no-data result. Results carry their provenance so callers can
// tell a fast path from a degraded one.
//
// The router is constructed once at startup and passed by reference;
// there is no package-level state.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/finbench/internal/bench"
	"github.com/roach88/finbench/internal/cache"
	"github.com/roach88/finbench/internal/capability"
	"github.com/roach88/finbench/internal/compiler"
	"github.com/roach88/finbench/internal/kpi"
	"github.com/roach88/finbench/internal/metric"
	"github.com/roach88/finbench/internal/store"
)

// Provenance records which path produced a result.
type Provenance string

const (
	ProvenancePrecomputed Provenance = "precomputed"
	ProvenanceRawFallback Provenance = "raw-fallback"
)

// ErrUnknownKPI is returned for a kpi key absent from the registry.
var ErrUnknownKPI = errors.New("unknown kpi key")

// ErrUnknownScope is returned for a scope id absent from the registry.
var ErrUnknownScope = errors.New("unknown scope")

// DefaultCalcTimeout bounds a single raw-fallback computation.
const DefaultCalcTimeout = 2 * time.Second

// KPIResult is the answer to a per-entity KPI query. NoData means the
// query was understood but nothing can answer it: the entity/period has
// no rows, or no serving path is available.
type KPIResult struct {
	EntityID   string                  `json:"entity_id"`
	Period     int                     `json:"period"`
	Values     map[string]metric.Value `json:"values,omitempty"`
	Provenance Provenance              `json:"provenance,omitempty"`
	NoData     bool                    `json:"no_data,omitempty"`
}

// BenchResult is the answer to a peer-group benchmark query. A nil Stat
// (with NoData set) means the partition has no contributing entities.
type BenchResult struct {
	KPIKey     string       `json:"kpi_key"`
	ScopeID    string       `json:"scope"`
	ScopeKey   string       `json:"scope_key"`
	Period     int          `json:"period"`
	Stat       *metric.Stat `json:"stat,omitempty"`
	Provenance Provenance   `json:"provenance,omitempty"`
	NoData     bool         `json:"no_data,omitempty"`
}

// Config assembles a Router. Store, Registry and Detector are required.
type Config struct {
	Store       *store.Store
	Registry    *compiler.Registry
	Detector    *capability.Detector
	Cache       cache.Config
	CalcTimeout time.Duration // defaults to DefaultCalcTimeout
}

// Router serves KPI and benchmark queries. Safe for concurrent use.
type Router struct {
	store       *store.Store
	registry    *compiler.Registry
	detector    *capability.Detector
	kpis        *cache.Cache[*KPIResult]
	benchmarks  *cache.Cache[*BenchResult]
	calcTimeout time.Duration
}

// New constructs a Router from cfg.
func New(cfg Config) *Router {
	if cfg.CalcTimeout <= 0 {
		cfg.CalcTimeout = DefaultCalcTimeout
	}
	return &Router{
		store:       cfg.Store,
		registry:    cfg.Registry,
		detector:    cfg.Detector,
		kpis:        cache.New[*KPIResult](cfg.Cache),
		benchmarks:  cache.New[*BenchResult](cfg.Cache),
		calcTimeout: cfg.CalcTimeout,
	}
}

// Invalidate drops all cached results and capability probes. Called
// after a build publishes a new generation.
func (r *Router) Invalidate() {
	r.kpis.Purge()
	r.benchmarks.Purge()
	r.detector.Invalidate()
}

// KPIs returns every KPI value for one entity/period.
func (r *Router) KPIs(ctx context.Context, entityID string, period int) (*KPIResult, error) {
	entityID = metric.CanonicalString(entityID)
	mode := r.detector.Mode(ctx, capability.ClassKPI)

	generation := ""
	if mode == capability.Precomputed {
		var err error
		generation, err = r.store.PublishedGeneration(ctx)
		if err != nil {
			r.detector.Report(capability.ClassKPI, err)
			mode = capability.RawFallback
		}
	}

	key := fmt.Sprintf("kpi|%s|%s|%d", generation, entityID, period)
	if cached, ok := r.kpis.Get(key); ok {
		return cached, nil
	}

	var result *KPIResult
	switch mode {
	case capability.Precomputed:
		values, err := r.store.KPIValues(ctx, generation, entityID, period)
		if err != nil {
			r.detector.Report(capability.ClassKPI, err)
			return r.fallbackKPIs(ctx, key, entityID, period)
		}
		result = &KPIResult{EntityID: entityID, Period: period, Values: values, Provenance: ProvenancePrecomputed}
		if len(values) == 0 {
			result = &KPIResult{EntityID: entityID, Period: period, NoData: true, Provenance: ProvenancePrecomputed}
		}
	case capability.RawFallback:
		return r.fallbackKPIs(ctx, key, entityID, period)
	default:
		result = &KPIResult{EntityID: entityID, Period: period, NoData: true}
	}

	r.put(key, result)
	return result, nil
}

func (r *Router) fallbackKPIs(ctx context.Context, key, entityID string, period int) (*KPIResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.calcTimeout)
	defer cancel()

	items, err := r.store.LineItems(ctx, entityID, period)
	if err != nil {
		return r.degradeKPI(key, entityID, period, err), nil
	}
	if len(items) == 0 {
		result := &KPIResult{EntityID: entityID, Period: period, NoData: true, Provenance: ProvenanceRawFallback}
		r.kpis.PutNegative(key, result)
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return r.degradeKPI(key, entityID, period, err), nil
	}

	values := kpi.ComputeAll(r.registry.Definitions(), items)
	result := &KPIResult{EntityID: entityID, Period: period, Values: values, Provenance: ProvenanceRawFallback}
	r.kpis.Put(key, result)
	return result, nil
}

// degradeKPI turns a fallback I/O or timeout failure into a short-lived
// no-data answer and tells the detector.
func (r *Router) degradeKPI(key, entityID string, period int, err error) *KPIResult {
	slog.Warn("kpi fallback failed", "entity", entityID, "period", period, "error", err)
	if !isContextErr(err) {
		r.detector.Report(capability.ClassKPI, err)
	}
	result := &KPIResult{EntityID: entityID, Period: period, NoData: true}
	r.kpis.PutNegative(key, result)
	return result
}

// Benchmark returns the peer-group stat for one kpi/scope/scope-key/period.
func (r *Router) Benchmark(ctx context.Context, kpiKey, scopeID, scopeKey string, period int) (*BenchResult, error) {
	def, ok := r.registry.Definition(kpiKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKPI, kpiKey)
	}
	scope, ok := r.registry.Scope(scopeID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScope, scopeID)
	}
	scopeKey = metric.CanonicalString(scopeKey)

	mode := r.detector.Mode(ctx, capability.ClassBenchmark)
	generation := ""
	if mode == capability.Precomputed {
		var err error
		generation, err = r.store.PublishedGeneration(ctx)
		if err != nil {
			r.detector.Report(capability.ClassBenchmark, err)
			mode = capability.RawFallback
		}
	}

	key := fmt.Sprintf("bench|%s|%s|%s|%s|%d", generation, kpiKey, scopeID, scopeKey, period)
	if cached, ok := r.benchmarks.Get(key); ok {
		return cached, nil
	}

	var result *BenchResult
	switch mode {
	case capability.Precomputed:
		stat, err := r.store.BenchmarkStat(ctx, generation, kpiKey, scopeID, scopeKey, period)
		if err != nil {
			r.detector.Report(capability.ClassBenchmark, err)
			return r.fallbackBenchmark(ctx, key, def, scope, scopeKey, period)
		}
		result = &BenchResult{KPIKey: kpiKey, ScopeID: scopeID, ScopeKey: scopeKey, Period: period,
			Stat: stat, Provenance: ProvenancePrecomputed, NoData: stat == nil}
	case capability.RawFallback:
		return r.fallbackBenchmark(ctx, key, def, scope, scopeKey, period)
	default:
		result = &BenchResult{KPIKey: kpiKey, ScopeID: scopeID, ScopeKey: scopeKey, Period: period, NoData: true}
	}

	r.putBench(key, result)
	return result, nil
}

func (r *Router) fallbackBenchmark(ctx context.Context, key string, def metric.Definition, scope metric.Scope, scopeKey string, period int) (*BenchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.calcTimeout)
	defer cancel()

	values, err := r.fallbackEntityValues(ctx, def, period)
	if err != nil {
		return r.degradeBench(key, def.Key, scope.ID, scopeKey, period, err), nil
	}
	entityList, err := r.store.Entities(ctx)
	if err != nil {
		return r.degradeBench(key, def.Key, scope.ID, scopeKey, period, err), nil
	}
	entities := make(map[string]metric.Entity, len(entityList))
	for _, e := range entityList {
		entities[e.ID] = e
	}

	stats := bench.Aggregate(scope, values, entities)
	stat, ok := stats[scopeKey]
	result := &BenchResult{KPIKey: def.Key, ScopeID: scope.ID, ScopeKey: scopeKey, Period: period, Provenance: ProvenanceRawFallback}
	if ok {
		result.Stat = &stat
	} else {
		result.NoData = true
	}
	r.putBench(key, result)
	return result, nil
}

// fallbackEntityValues evaluates def for every entity in a period using
// one grouped scan per formula term, mirroring kpi.Compute's semantics:
// a term with no matching rows makes the entity's value null, as does a
// zero denominator.
func (r *Router) fallbackEntityValues(ctx context.Context, def metric.Definition, period int) ([]bench.EntityValue, error) {
	numerator, err := r.resolveTerms(ctx, def.Formula.Numerator, period)
	if err != nil {
		return nil, err
	}
	var denominator map[string]float64
	if len(def.Formula.Denominator) > 0 {
		denominator, err = r.resolveTerms(ctx, def.Formula.Denominator, period)
		if err != nil {
			return nil, err
		}
	}

	values := make([]bench.EntityValue, 0, len(numerator))
	for entityID, num := range numerator {
		value := metric.Float(num)
		if len(def.Formula.Denominator) > 0 {
			den, ok := denominator[entityID]
			if !ok || den == 0 {
				value = metric.Null()
			} else {
				value = metric.Float(num / den)
			}
		}
		values = append(values, bench.EntityValue{EntityID: entityID, Value: value})
	}
	return values, nil
}

// resolveTerms returns each entity's combined term sum for the period.
// Entities missing any term are absent from the map.
func (r *Router) resolveTerms(ctx context.Context, terms []metric.Term, period int) (map[string]float64, error) {
	combined := make(map[string]float64)
	present := make(map[string]int)
	for _, term := range terms {
		sums, err := r.store.SumAggregateByEntity(ctx, period, term.Aggregate)
		if err != nil {
			return nil, err
		}
		for entityID, agg := range sums {
			combined[entityID] += term.Coefficient * agg.Sum
			present[entityID]++
		}
	}
	for entityID, n := range present {
		if n < len(terms) {
			delete(combined, entityID)
		}
	}
	return combined, nil
}

func (r *Router) degradeBench(key, kpiKey, scopeID, scopeKey string, period int, err error) *BenchResult {
	slog.Warn("benchmark fallback failed",
		"kpi", kpiKey, "scope", scopeID, "scope_key", scopeKey, "period", period, "error", err)
	if !isContextErr(err) {
		r.detector.Report(capability.ClassBenchmark, err)
	}
	result := &BenchResult{KPIKey: kpiKey, ScopeID: scopeID, ScopeKey: scopeKey, Period: period, NoData: true}
	r.benchmarks.PutNegative(key, result)
	return result
}

// isContextErr distinguishes a per-call timeout or cancellation from a
// storage failure. Only the latter downgrades the serving mode.
func isContextErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func (r *Router) put(key string, result *KPIResult) {
	if result.NoData {
		r.kpis.PutNegative(key, result)
		return
	}
	r.kpis.Put(key, result)
}

func (r *Router) putBench(key string, result *BenchResult) {
	if result.NoData {
		r.benchmarks.PutNegative(key, result)
		return
	}
	r.benchmarks.Put(key, result)
}
