package compiler

import (
	"cuelang.org/go/cue"

	"github.com/roach88/finbench/internal/metric"
)

// CompileScope parses a CUE value into a benchmark Scope.
//
// The CUE value is one entry of the top-level "scope" struct, e.g.:
//
//	scope: by_region: {dimensions: ["region"]}
//	scope: all: {}
//
// The scope id is the struct label. An entry with no dimensions is the
// "all entities" scope.
func CompileScope(v cue.Value) (*metric.Scope, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	scope := &metric.Scope{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		scope.ID = labels[len(labels)-1].String()
	}

	dims, err := parseStringList(v, "dimensions")
	if err != nil {
		return nil, err
	}
	scope.Dimensions = dims

	return scope, nil
}
