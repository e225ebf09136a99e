package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/finbench/internal/metric"
)

func writeTestGeneration(t *testing.T, s *Store, gen string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.CreateGeneration(ctx, gen, "source-hash", time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)))

	require.NoError(t, s.WriteKPIValues(ctx, gen, []KPIValueRow{
		{EntityID: "310001", Period: 2024, KPIKey: "current_ratio", Value: metric.Float(5.7581573896)},
		{EntityID: "310002", Period: 2024, KPIKey: "current_ratio", Value: metric.Float(2.0)},
		{EntityID: "310003", Period: 2024, KPIKey: "current_ratio", Value: metric.Null()},
	}))

	require.NoError(t, s.WriteBenchmarkStats(ctx, gen, []BenchmarkRow{
		{KPIKey: "current_ratio", ScopeID: "all", ScopeKey: metric.AllScopeKey, Period: 2024,
			Stat: metric.Stat{P25: 2.9, Median: 3.88, P75: 4.8, Mean: 3.88, SampleCount: 2}},
	}))
}

func TestPublishedGeneration_NoneYet(t *testing.T) {
	s := openTestStore(t)

	_, err := s.PublishedGeneration(context.Background())
	assert.True(t, errors.Is(err, ErrNoGeneration))
}

func TestPublish_FlipsMarkerAtomically(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	writeTestGeneration(t, s, "gen-1")

	// Rows written but not published: readers still see no generation.
	_, err := s.PublishedGeneration(ctx)
	require.ErrorIs(t, err, ErrNoGeneration)

	require.NoError(t, s.Publish(ctx, "gen-1", 3, 1))

	gen, err := s.PublishedGeneration(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gen-1", gen)

	meta, err := s.Generation(ctx, "gen-1")
	require.NoError(t, err)
	assert.Equal(t, 3, meta.KPIRows)
	assert.Equal(t, 1, meta.BenchRows)
	assert.Equal(t, "source-hash", meta.SourceHash)
}

func TestPublish_SecondGenerationSupersedes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	writeTestGeneration(t, s, "gen-1")
	require.NoError(t, s.Publish(ctx, "gen-1", 3, 1))

	writeTestGeneration(t, s, "gen-2")
	require.NoError(t, s.Publish(ctx, "gen-2", 3, 1))

	gen, err := s.PublishedGeneration(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gen-2", gen)

	// Prior generation's rows remain readable for in-flight readers.
	values, err := s.KPIValues(ctx, "gen-1", "310001", 2024)
	require.NoError(t, err)
	assert.Len(t, values, 1)
}

func TestPublish_UnknownGeneration(t *testing.T) {
	s := openTestStore(t)
	err := s.Publish(context.Background(), "gen-missing", 0, 0)
	assert.Error(t, err)
}

func TestKPIValues_NullRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	writeTestGeneration(t, s, "gen-1")

	values, err := s.KPIValues(ctx, "gen-1", "310003", 2024)
	require.NoError(t, err)
	v, ok := values["current_ratio"]
	require.True(t, ok, "null value must be stored, not dropped")
	assert.False(t, v.Valid)

	values, err = s.KPIValues(ctx, "gen-1", "310001", 2024)
	require.NoError(t, err)
	assert.InDelta(t, 5.7581573896, values["current_ratio"].Float64, 1e-9)
}

func TestBenchmarkStat_AbsentPartition(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	writeTestGeneration(t, s, "gen-1")

	stat, err := s.BenchmarkStat(ctx, "gen-1", "current_ratio", "all", metric.AllScopeKey, 2024)
	require.NoError(t, err)
	require.NotNil(t, stat)
	assert.Equal(t, 2, stat.SampleCount)

	// Absent partition: (nil, nil), absence is meaningful.
	stat, err = s.BenchmarkStat(ctx, "gen-1", "current_ratio", "by_region", "EU", 2024)
	require.NoError(t, err)
	assert.Nil(t, stat)
}

func TestWriteBenchmarkStats_RejectsZeroSamples(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateGeneration(ctx, "gen-1", "h", time.Now()))
	err := s.WriteBenchmarkStats(ctx, "gen-1", []BenchmarkRow{
		{KPIKey: "current_ratio", ScopeID: "all", ScopeKey: "all", Period: 2024,
			Stat: metric.Stat{SampleCount: 0}},
	})
	assert.Error(t, err, "schema CHECK must reject sample_count = 0")
}

func TestDeleteGeneration(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	writeTestGeneration(t, s, "gen-1")
	require.NoError(t, s.Publish(ctx, "gen-1", 3, 1))
	writeTestGeneration(t, s, "gen-2")

	// Unpublished generation can be deleted.
	require.NoError(t, s.DeleteGeneration(ctx, "gen-2"))
	kpiRows, benchRows, err := s.GenerationRowCounts(ctx, "gen-2")
	require.NoError(t, err)
	assert.Zero(t, kpiRows)
	assert.Zero(t, benchRows)

	// Published generation is protected.
	assert.Error(t, s.DeleteGeneration(ctx, "gen-1"))
}
