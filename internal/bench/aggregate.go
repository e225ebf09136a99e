// Package bench aggregates per-entity KPI values into peer-group
// percentile statistics.
package bench

import (
	"math"
	"sort"

	"github.com/roach88/finbench/internal/metric"
)

// EntityValue pairs an entity with its computed KPI value for one period.
type EntityValue struct {
	EntityID string
	Value    metric.Value
}

// Aggregate partitions values by the scope's key function and computes the
// percentile statistics for each partition.
//
// Null values never contribute to a sample: an entity whose KPI could not
// be computed is excluded, as is an entity missing a dimension the scope
// requires. Partitions with no contributing entities are omitted from the
// result, so every returned Stat has SampleCount >= 1.
func Aggregate(scope metric.Scope, values []EntityValue, entities map[string]metric.Entity) map[string]metric.Stat {
	groups := make(map[string][]float64)
	for _, ev := range values {
		if !ev.Value.Valid {
			continue
		}
		entity, ok := entities[ev.EntityID]
		if !ok {
			continue
		}
		key, ok := scope.Key(entity)
		if !ok {
			continue
		}
		groups[key] = append(groups[key], ev.Value.Float64)
	}

	stats := make(map[string]metric.Stat, len(groups))
	for key, sample := range groups {
		sort.Float64s(sample)
		stats[key] = statOf(sample)
	}
	return stats
}

func statOf(sorted []float64) metric.Stat {
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return metric.Stat{
		P25:         Quantile(sorted, 0.25),
		Median:      Quantile(sorted, 0.5),
		P75:         Quantile(sorted, 0.75),
		Mean:        sum / float64(len(sorted)),
		SampleCount: len(sorted),
	}
}

// Quantile returns the q-th quantile of an already sorted sample using
// linear interpolation between closest ranks. A single-element sample
// returns that element for every q.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
