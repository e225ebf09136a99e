package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/finbench/internal/metric"
)

func TestSumAggregate(t *testing.T) {
	s := openTestStore(t)
	seedRaw(t, s)
	ctx := context.Background()

	agg, err := s.SumAggregate(ctx, "310001", 2024,
		metric.Selector{Lines: []string{"CA"}, Columns: []string{"TOTAL"}})
	require.NoError(t, err)
	assert.Equal(t, 3_000_000_000.0, agg.Sum)
	assert.Equal(t, 1, agg.Count)

	// Multi-line selector sums across lines.
	agg, err = s.SumAggregate(ctx, "310001", 2024,
		metric.Selector{Lines: []string{"CA", "CL"}, Columns: []string{"TOTAL"}})
	require.NoError(t, err)
	assert.Equal(t, 3_521_000_000.0, agg.Sum)
	assert.Equal(t, 2, agg.Count)
}

func TestSumAggregateByEntity(t *testing.T) {
	s := openTestStore(t)
	seedRaw(t, s)
	ctx := context.Background()

	sums, err := s.SumAggregateByEntity(ctx, 2024,
		metric.Selector{Lines: []string{"CA"}, Columns: []string{"TOTAL"}})
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, AggregateSum{Sum: 3_000_000_000, Count: 1}, sums["310001"])
	assert.Equal(t, AggregateSum{Sum: 800, Count: 1}, sums["310002"])

	// 310003 only has data in 2023, so it is absent for 2024.
	_, ok := sums["310003"]
	assert.False(t, ok)
}

func TestSumAggregate_NoRowsVsZeroSum(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ImportLineItems(ctx, []metric.LineItem{
		{EntityID: "e1", Period: 2024, Line: "NET", Column: "TOTAL", Value: 50},
		{EntityID: "e1", Period: 2024, Line: "NET", Column: "ADJ", Value: -50},
	}))

	// Rows exist and sum to zero: legitimate zero.
	agg, err := s.SumAggregate(ctx, "e1", 2024, metric.Selector{Lines: []string{"NET"}})
	require.NoError(t, err)
	assert.Zero(t, agg.Sum)
	assert.Equal(t, 2, agg.Count)

	// No rows at all: count zero distinguishes it.
	agg, err = s.SumAggregate(ctx, "e1", 2024, metric.Selector{Lines: []string{"MISSING"}})
	require.NoError(t, err)
	assert.Zero(t, agg.Count)
}

func TestProbes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Empty store: everything fails.
	assert.Error(t, s.ProbeLineItems(ctx))
	assert.Error(t, s.ProbeKPIValues(ctx, "gen-1"))
	assert.Error(t, s.ProbeBenchmarkStats(ctx, "gen-1"))

	seedRaw(t, s)
	assert.NoError(t, s.ProbeLineItems(ctx))

	// KPI and benchmark presence are independent.
	require.NoError(t, s.CreateGeneration(ctx, "gen-1", "h", time.Now()))
	require.NoError(t, s.WriteKPIValues(ctx, "gen-1", []KPIValueRow{
		{EntityID: "310001", Period: 2024, KPIKey: "current_ratio", Value: metric.Float(5.76)},
	}))
	assert.NoError(t, s.ProbeKPIValues(ctx, "gen-1"))
	assert.Error(t, s.ProbeBenchmarkStats(ctx, "gen-1"))
}
