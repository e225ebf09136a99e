// Package capability decides how each query class can be served.
//
// A class runs in one of three modes: Precomputed when the published
// generation's tables answer lookups directly, RawFallback when only the
// raw line items are usable, and Unavailable when neither is. The two
// classes are probed independently, so a database with intact KPI values
// but missing benchmark tables still serves KPI queries at full speed.
//
// Probes are cheap but not free, so results are cached and re-checked
// only after a recheck interval elapses. A serving-path I/O failure
// reported via Report downgrades the cached mode immediately; recovery
// happens lazily on the next probe.
package capability

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/finbench/internal/store"
)

// Mode is the serving mode of one query class.
type Mode int

const (
	// Unavailable means neither precomputed tables nor raw line items
	// can answer the class; queries return an explicit no-data response.
	Unavailable Mode = iota
	// RawFallback means queries are computed on the fly from line items.
	RawFallback
	// Precomputed means queries are served by generation-table lookup.
	Precomputed
)

func (m Mode) String() string {
	switch m {
	case Precomputed:
		return "precomputed"
	case RawFallback:
		return "raw-fallback"
	default:
		return "unavailable"
	}
}

// Class identifies a query class. Each class is probed on its own.
type Class int

const (
	ClassKPI Class = iota
	ClassBenchmark
)

func (c Class) String() string {
	if c == ClassBenchmark {
		return "benchmark"
	}
	return "kpi"
}

// DefaultRecheckInterval is how long a probe result is trusted before
// the detector probes again.
const DefaultRecheckInterval = 15 * time.Second

// Detector probes the store and caches a serving mode per query class.
// Safe for concurrent use.
type Detector struct {
	store   *store.Store
	recheck time.Duration
	now     func() time.Time

	mu     sync.Mutex
	probes map[Class]probeResult
}

type probeResult struct {
	mode      Mode
	checkedAt time.Time
}

// Option configures a Detector.
type Option func(*Detector)

// WithRecheckInterval overrides DefaultRecheckInterval.
func WithRecheckInterval(d time.Duration) Option {
	return func(det *Detector) { det.recheck = d }
}

// WithClock overrides the probe-age clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(det *Detector) { det.now = now }
}

// NewDetector constructs a detector over st.
func NewDetector(st *store.Store, opts ...Option) *Detector {
	d := &Detector{
		store:   st,
		recheck: DefaultRecheckInterval,
		now:     time.Now,
		probes:  make(map[Class]probeResult),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Mode returns the serving mode for class, probing the store when the
// cached result is missing or stale.
func (d *Detector) Mode(ctx context.Context, class Class) Mode {
	d.mu.Lock()
	cached, ok := d.probes[class]
	fresh := ok && d.now().Sub(cached.checkedAt) < d.recheck
	d.mu.Unlock()
	if fresh {
		return cached.mode
	}

	mode := d.probe(ctx, class)
	d.mu.Lock()
	d.probes[class] = probeResult{mode: mode, checkedAt: d.now()}
	d.mu.Unlock()
	return mode
}

// Report records an I/O failure observed while serving class. The cached
// mode for the class is downgraded one step so the next query takes the
// surviving path; err == nil is a no-op.
func (d *Detector) Report(class Class, err error) {
	if err == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	cached, ok := d.probes[class]
	if !ok {
		return
	}
	switch cached.mode {
	case Precomputed:
		cached.mode = RawFallback
	case RawFallback:
		cached.mode = Unavailable
	}
	cached.checkedAt = d.now()
	d.probes[class] = cached
}

// Invalidate drops all cached probe results, forcing a fresh probe on
// the next Mode call. Called after a build publishes.
func (d *Detector) Invalidate() {
	d.mu.Lock()
	d.probes = make(map[Class]probeResult)
	d.mu.Unlock()
}

func (d *Detector) probe(ctx context.Context, class Class) Mode {
	generation, err := d.store.PublishedGeneration(ctx)
	if err == nil {
		switch class {
		case ClassKPI:
			err = d.store.ProbeKPIValues(ctx, generation)
		case ClassBenchmark:
			err = d.store.ProbeBenchmarkStats(ctx, generation)
		}
		if err == nil {
			return Precomputed
		}
	}
	if d.store.ProbeLineItems(ctx) == nil {
		return RawFallback
	}
	return Unavailable
}
