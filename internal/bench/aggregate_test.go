package bench

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/finbench/internal/metric"
)

var testEntities = map[string]metric.Entity{
	"310001": {ID: "310001", Region: "EU", Category: "banking"},
	"310002": {ID: "310002", Region: "US", Category: "banking"},
	"310003": {ID: "310003", Region: "EU", Category: "retail"},
	"310004": {ID: "310004", Region: "EU"}, // category unknown
}

func TestAggregate_AllScope(t *testing.T) {
	values := []EntityValue{
		{EntityID: "310001", Value: metric.Float(1)},
		{EntityID: "310002", Value: metric.Float(2)},
		{EntityID: "310003", Value: metric.Float(3)},
		{EntityID: "310004", Value: metric.Float(4)},
	}

	stats := Aggregate(metric.Scope{ID: "all"}, values, testEntities)
	require.Len(t, stats, 1)

	s := stats[metric.AllScopeKey]
	assert.Equal(t, 4, s.SampleCount)
	assert.Equal(t, 2.5, s.Mean)
	assert.Equal(t, 2.5, s.Median)
	assert.InDelta(t, 1.75, s.P25, 1e-12)
	assert.InDelta(t, 3.25, s.P75, 1e-12)
}

func TestAggregate_PartitionsByDimension(t *testing.T) {
	values := []EntityValue{
		{EntityID: "310001", Value: metric.Float(10)},
		{EntityID: "310002", Value: metric.Float(20)},
		{EntityID: "310003", Value: metric.Float(30)},
	}
	scope := metric.Scope{ID: "by_region", Dimensions: []string{metric.DimRegion}}

	stats := Aggregate(scope, values, testEntities)
	require.Len(t, stats, 2)
	assert.Equal(t, 2, stats["EU"].SampleCount)
	assert.Equal(t, 20.0, stats["EU"].Mean)
	assert.Equal(t, 1, stats["US"].SampleCount)
}

func TestAggregate_CompoundKey(t *testing.T) {
	values := []EntityValue{
		{EntityID: "310001", Value: metric.Float(1)},
		{EntityID: "310003", Value: metric.Float(2)},
	}
	scope := metric.Scope{
		ID:         "by_region_and_category",
		Dimensions: []string{metric.DimRegion, metric.DimCategory},
	}

	stats := Aggregate(scope, values, testEntities)
	require.Len(t, stats, 2)
	assert.Contains(t, stats, "EU|banking")
	assert.Contains(t, stats, "EU|retail")
}

func TestAggregate_SingleSampleCollapsesPercentiles(t *testing.T) {
	values := []EntityValue{
		{EntityID: "310002", Value: metric.Float(12.5)},
	}
	scope := metric.Scope{ID: "by_region", Dimensions: []string{metric.DimRegion}}

	stats := Aggregate(scope, values, testEntities)
	require.Len(t, stats, 1)

	s := stats["US"]
	assert.Equal(t, 1, s.SampleCount)
	assert.Equal(t, 12.5, s.P25)
	assert.Equal(t, 12.5, s.Median)
	assert.Equal(t, 12.5, s.P75)
	assert.Equal(t, 12.5, s.Mean)
}

func TestAggregate_NullValuesExcluded(t *testing.T) {
	values := []EntityValue{
		{EntityID: "310001", Value: metric.Float(5)},
		{EntityID: "310003", Value: metric.Null()},
	}
	scope := metric.Scope{ID: "by_region", Dimensions: []string{metric.DimRegion}}

	stats := Aggregate(scope, values, testEntities)
	require.Len(t, stats, 1)
	assert.Equal(t, 1, stats["EU"].SampleCount)
}

func TestAggregate_MissingDimensionExcludesEntity(t *testing.T) {
	values := []EntityValue{
		{EntityID: "310001", Value: metric.Float(1)},
		{EntityID: "310004", Value: metric.Float(2)}, // no category
	}
	scope := metric.Scope{ID: "by_category", Dimensions: []string{metric.DimCategory}}

	stats := Aggregate(scope, values, testEntities)
	require.Len(t, stats, 1)
	assert.Equal(t, 1, stats["banking"].SampleCount)
}

func TestAggregate_AllNullsYieldsNoPartitions(t *testing.T) {
	values := []EntityValue{
		{EntityID: "310001", Value: metric.Null()},
		{EntityID: "310002", Value: metric.Null()},
	}

	stats := Aggregate(metric.Scope{ID: "all"}, values, testEntities)
	assert.Empty(t, stats)
}

func TestAggregate_PercentileOrdering(t *testing.T) {
	values := []EntityValue{
		{EntityID: "310001", Value: metric.Float(7.2)},
		{EntityID: "310002", Value: metric.Float(-3)},
		{EntityID: "310003", Value: metric.Float(0.4)},
		{EntityID: "310004", Value: metric.Float(99)},
	}

	stats := Aggregate(metric.Scope{ID: "all"}, values, testEntities)
	s := stats[metric.AllScopeKey]
	assert.LessOrEqual(t, s.P25, s.Median)
	assert.LessOrEqual(t, s.Median, s.P75)
}

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}

	assert.Equal(t, 1.0, Quantile(sorted, 0))
	assert.InDelta(t, 1.75, Quantile(sorted, 0.25), 1e-12)
	assert.Equal(t, 2.5, Quantile(sorted, 0.5))
	assert.InDelta(t, 3.25, Quantile(sorted, 0.75), 1e-12)
	assert.Equal(t, 4.0, Quantile(sorted, 1))

	// Odd-sized sample hits an exact rank at the median.
	assert.Equal(t, 2.0, Quantile([]float64{1, 2, 3}, 0.5))

	assert.Equal(t, 0.0, Quantile(nil, 0.5))
	assert.Equal(t, 8.0, Quantile([]float64{8}, 0.25))
}
