// Package kpi computes KPI values from raw line items.
//
// The calculator is pure: it takes a compiled definition and an entity's
// line items for one period and produces a nullable value. It performs no
// I/O, so results are safe to memoize by the line-item snapshot hash
// (metric.SnapshotHash). Both the build pipeline and the raw-fallback
// query path call the same Compute, which is what keeps the two modes
// equivalent.
package kpi

import (
	"fmt"

	"github.com/roach88/finbench/internal/metric"
)

// CalcCode classifies calculator failures.
type CalcCode string

// CodeInsufficientData means a required aggregate matched zero line items.
// This is distinct from an aggregate that legitimately sums to zero.
const CodeInsufficientData CalcCode = "insufficient_data"

// CalcError reports why a KPI could not be computed for an entity/period.
type CalcError struct {
	Code      CalcCode
	Key       string          // KPI key
	Aggregate metric.Selector // the selector that failed to resolve
}

func (e *CalcError) Error() string {
	return fmt.Sprintf("kpi %s: %s: no line items match lines=%v cols=%v",
		e.Key, e.Code, e.Aggregate.Lines, e.Aggregate.Columns)
}

// Compute evaluates def against the entity/period line-item subset.
//
// Every term's selector must match at least one item; otherwise Compute
// returns a *CalcError with CodeInsufficientData. A denominator that sums
// to exactly zero yields the null value with a nil error: the KPI is
// undefined there, not broken. A formula without a denominator is the
// plain numerator sum.
func Compute(def metric.Definition, items []metric.LineItem) (metric.Value, error) {
	num, err := resolve(def.Key, def.Formula.Numerator, items)
	if err != nil {
		return metric.Null(), err
	}
	if len(def.Formula.Denominator) == 0 {
		return metric.Float(num), nil
	}
	den, err := resolve(def.Key, def.Formula.Denominator, items)
	if err != nil {
		return metric.Null(), err
	}
	if den == 0 {
		return metric.Null(), nil
	}
	return metric.Float(num / den), nil
}

// ComputeAll evaluates every definition against the same line-item subset
// and returns one value per KPI key. Insufficient data resolves to the
// null value rather than an error; callers that need the failing selector
// use Compute directly.
func ComputeAll(defs []metric.Definition, items []metric.LineItem) map[string]metric.Value {
	out := make(map[string]metric.Value, len(defs))
	for _, def := range defs {
		v, err := Compute(def, items)
		if err != nil {
			v = metric.Null()
		}
		out[def.Key] = v
	}
	return out
}

func resolve(key string, terms []metric.Term, items []metric.LineItem) (float64, error) {
	var total float64
	for _, term := range terms {
		sum, n := sumMatching(term.Aggregate, items)
		if n == 0 {
			return 0, &CalcError{Code: CodeInsufficientData, Key: key, Aggregate: term.Aggregate}
		}
		total += term.Coefficient * sum
	}
	return total, nil
}

func sumMatching(sel metric.Selector, items []metric.LineItem) (sum float64, n int) {
	for _, item := range items {
		if sel.Matches(item) {
			sum += item.Value
			n++
		}
	}
	return sum, n
}
