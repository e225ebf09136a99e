// Package compiler turns CUE definition files into the validated, immutable
// Registry the rest of finbench runs against.
//
// KPI definitions and benchmark scopes are authored in CUE under top-level
// "kpi" and "scope" structs. Compilation uses the CUE SDK's Go API directly
// (not a CLI subprocess); validation collects every configuration error
// before failing, so a broken tree reports all its problems at once.
package compiler

import (
	"cuelang.org/go/cue"

	"github.com/roach88/finbench/internal/metric"
)

// CompileDefinition parses a CUE value into a KPI Definition.
//
// The CUE value is one entry of the top-level "kpi" struct, e.g.:
//
//	kpi: current_ratio: {
//		name:  "Current Ratio"
//		level: 1
//		unit:  "ratio"
//		higher_is_better: true
//		numerator: [{lines: ["CA"], columns: ["TOTAL"]}]
//		denominator: [{lines: ["CL"], columns: ["TOTAL"]}]
//	}
//
// The KPI key is the struct label. Structural errors (missing name, bad
// term shape) surface here; cross-definition rules (duplicate keys, parent
// levels, cycles) are enforced by NewRegistry.
func CompileDefinition(v cue.Value) (*metric.Definition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &metric.Definition{}

	// KPI key from the struct label (the path selector)
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		def.Key = labels[len(labels)-1].String()
	}

	// name (required)
	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, &CompileError{Field: "name", Message: "name is required", Pos: v.Pos()}
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	def.Name = name

	// level (required)
	levelVal := v.LookupPath(cue.ParsePath("level"))
	if !levelVal.Exists() {
		return nil, &CompileError{Field: "level", Message: "level is required", Pos: v.Pos()}
	}
	level, err := levelVal.Int64()
	if err != nil {
		return nil, formatCUEError(err)
	}
	def.Level = int(level)

	// parent (optional, required for levels 2 and 3 - checked by registry)
	parentVal := v.LookupPath(cue.ParsePath("parent"))
	if parentVal.Exists() {
		parent, err := parentVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		def.ParentKey = parent
	}

	// unit (optional)
	unitVal := v.LookupPath(cue.ParsePath("unit"))
	if unitVal.Exists() {
		unit, err := unitVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		def.Unit = unit
	}

	// higher_is_better (optional, defaults false)
	hibVal := v.LookupPath(cue.ParsePath("higher_is_better"))
	if hibVal.Exists() {
		hib, err := hibVal.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		def.HigherIsBetter = hib
	}

	// numerator (required, at least one term)
	numVal := v.LookupPath(cue.ParsePath("numerator"))
	if !numVal.Exists() {
		return nil, &CompileError{Field: "numerator", Message: "numerator is required", Pos: v.Pos()}
	}
	def.Formula.Numerator, err = parseTerms(numVal)
	if err != nil {
		return nil, err
	}

	// denominator (optional - absent means the KPI is a plain sum)
	denVal := v.LookupPath(cue.ParsePath("denominator"))
	if denVal.Exists() {
		def.Formula.Denominator, err = parseTerms(denVal)
		if err != nil {
			return nil, err
		}
	}

	return def, nil
}

// parseTerms parses a list of formula terms.
// Each term is {coefficient?: number, lines?: [...string], columns?: [...string]}.
// A missing coefficient defaults to 1.
func parseTerms(v cue.Value) ([]metric.Term, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var terms []metric.Term
	for iter.Next() {
		term, err := parseTerm(iter.Value())
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	return terms, nil
}

func parseTerm(v cue.Value) (metric.Term, error) {
	term := metric.Term{Coefficient: 1}

	coefVal := v.LookupPath(cue.ParsePath("coefficient"))
	if coefVal.Exists() {
		coef, err := coefVal.Float64()
		if err != nil {
			return term, formatCUEError(err)
		}
		term.Coefficient = coef
	}

	lines, err := parseStringList(v, "lines")
	if err != nil {
		return term, err
	}
	columns, err := parseStringList(v, "columns")
	if err != nil {
		return term, err
	}
	term.Aggregate = metric.Selector{Lines: lines, Columns: columns}

	return term, nil
}

func parseStringList(v cue.Value, field string) ([]string, error) {
	listVal := v.LookupPath(cue.ParsePath(field))
	if !listVal.Exists() {
		return nil, nil
	}
	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}
