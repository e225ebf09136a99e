package kpi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/finbench/internal/metric"
)

func ratioDef(key string, numLine, denLine string) metric.Definition {
	return metric.Definition{
		Key:   key,
		Name:  key,
		Level: 1,
		Formula: metric.Formula{
			Numerator: []metric.Term{
				{Coefficient: 1, Aggregate: metric.Selector{Lines: []string{numLine}, Columns: []string{"TOTAL"}}},
			},
			Denominator: []metric.Term{
				{Coefficient: 1, Aggregate: metric.Selector{Lines: []string{denLine}, Columns: []string{"TOTAL"}}},
			},
		},
	}
}

func TestCompute_CurrentRatio(t *testing.T) {
	items := []metric.LineItem{
		{EntityID: "310001", Period: 2024, Line: "CA", Column: "TOTAL", Value: 3_000_000_000},
		{EntityID: "310001", Period: 2024, Line: "CL", Column: "TOTAL", Value: 521_000_000},
	}

	v, err := Compute(ratioDef("current_ratio", "CA", "CL"), items)
	require.NoError(t, err)
	require.True(t, v.Valid)
	assert.InDelta(t, 5.76, v.Float64, 1e-2)
	assert.InDelta(t, 3_000_000_000.0/521_000_000.0, v.Float64, 1e-9)
}

func TestCompute_NoDenominatorIsPlainSum(t *testing.T) {
	// Working capital: CA - CL, expressed as a two-term numerator.
	def := metric.Definition{
		Key:   "working_capital",
		Level: 1,
		Formula: metric.Formula{
			Numerator: []metric.Term{
				{Coefficient: 1, Aggregate: metric.Selector{Lines: []string{"CA"}}},
				{Coefficient: -1, Aggregate: metric.Selector{Lines: []string{"CL"}}},
			},
		},
	}
	items := []metric.LineItem{
		{Line: "CA", Column: "TOTAL", Value: 900},
		{Line: "CL", Column: "TOTAL", Value: 400},
	}

	v, err := Compute(def, items)
	require.NoError(t, err)
	assert.Equal(t, metric.Float(500), v)
}

func TestCompute_SelectorSumsAcrossMatches(t *testing.T) {
	def := metric.Definition{
		Key:   "total_assets",
		Level: 1,
		Formula: metric.Formula{
			Numerator: []metric.Term{
				{Coefficient: 1, Aggregate: metric.Selector{Lines: []string{"CA", "FA"}, Columns: []string{"TOTAL"}}},
			},
		},
	}
	items := []metric.LineItem{
		{Line: "CA", Column: "TOTAL", Value: 100},
		{Line: "FA", Column: "TOTAL", Value: 250},
		{Line: "CA", Column: "NET", Value: 999}, // column excluded
	}

	v, err := Compute(def, items)
	require.NoError(t, err)
	assert.Equal(t, metric.Float(350), v)
}

func TestCompute_InsufficientData(t *testing.T) {
	items := []metric.LineItem{
		{Line: "CA", Column: "TOTAL", Value: 100},
	}

	v, err := Compute(ratioDef("current_ratio", "CA", "CL"), items)
	assert.Equal(t, metric.Null(), v)

	var calcErr *CalcError
	require.ErrorAs(t, err, &calcErr)
	assert.Equal(t, CodeInsufficientData, calcErr.Code)
	assert.Equal(t, "current_ratio", calcErr.Key)
	assert.Equal(t, []string{"CL"}, calcErr.Aggregate.Lines)
}

func TestCompute_ZeroAggregateIsNotInsufficient(t *testing.T) {
	// A row that sums to zero still counts as present.
	items := []metric.LineItem{
		{Line: "CA", Column: "TOTAL", Value: 0},
		{Line: "CL", Column: "TOTAL", Value: 50},
	}

	v, err := Compute(ratioDef("current_ratio", "CA", "CL"), items)
	require.NoError(t, err)
	assert.Equal(t, metric.Float(0), v)
}

func TestCompute_ZeroDenominatorIsNull(t *testing.T) {
	items := []metric.LineItem{
		{Line: "CA", Column: "TOTAL", Value: 100},
		{Line: "CL", Column: "TOTAL", Value: 0},
	}

	v, err := Compute(ratioDef("current_ratio", "CA", "CL"), items)
	require.NoError(t, err)
	assert.Equal(t, metric.Null(), v)
}

func TestCompute_OffsettingDenominatorTermsAreNull(t *testing.T) {
	def := metric.Definition{
		Key:   "odd_ratio",
		Level: 1,
		Formula: metric.Formula{
			Numerator: []metric.Term{
				{Coefficient: 1, Aggregate: metric.Selector{Lines: []string{"CA"}}},
			},
			Denominator: []metric.Term{
				{Coefficient: 1, Aggregate: metric.Selector{Lines: []string{"CL"}}},
				{Coefficient: -1, Aggregate: metric.Selector{Lines: []string{"CL"}}},
			},
		},
	}
	items := []metric.LineItem{
		{Line: "CA", Column: "TOTAL", Value: 100},
		{Line: "CL", Column: "TOTAL", Value: 400},
	}

	v, err := Compute(def, items)
	require.NoError(t, err)
	assert.False(t, v.Valid)
}

func TestCompute_Deterministic(t *testing.T) {
	items := []metric.LineItem{
		{Line: "CA", Column: "TOTAL", Value: 3_000_000_000},
		{Line: "CL", Column: "TOTAL", Value: 521_000_000},
	}
	def := ratioDef("current_ratio", "CA", "CL")

	first, err := Compute(def, items)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Compute(def, items)
		require.NoError(t, err)
		assert.True(t, first.Equal(again, 0))
	}
}

func TestComputeAll(t *testing.T) {
	defs := []metric.Definition{
		ratioDef("current_ratio", "CA", "CL"),
		ratioDef("cash_ratio", "CASH", "CL"), // no CASH rows seeded
	}
	items := []metric.LineItem{
		{Line: "CA", Column: "TOTAL", Value: 200},
		{Line: "CL", Column: "TOTAL", Value: 100},
	}

	values := ComputeAll(defs, items)
	require.Len(t, values, 2)
	assert.Equal(t, metric.Float(2), values["current_ratio"])
	assert.Equal(t, metric.Null(), values["cash_ratio"])
}

func TestCalcError_Message(t *testing.T) {
	err := &CalcError{
		Code:      CodeInsufficientData,
		Key:       "quick_ratio",
		Aggregate: metric.Selector{Lines: []string{"INV"}, Columns: []string{"TOTAL"}},
	}
	assert.Contains(t, err.Error(), "quick_ratio")
	assert.Contains(t, err.Error(), "insufficient_data")

	var target *CalcError
	assert.True(t, errors.As(error(err), &target))
}
