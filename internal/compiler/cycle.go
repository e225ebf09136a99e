package compiler

import (
	"sort"
	"strings"

	"github.com/roach88/finbench/internal/metric"
)

// detectParentCycles finds cycles in the KPI parent graph.
//
// A well-formed tree can't cycle (levels strictly decrease toward the root),
// but a definition set that already violates the level rules can, and the
// walk below must not loop forever on it. Each definition's parent chain is
// walked with a visited set; every distinct cycle is reported once, keyed by
// its smallest member.
func detectParentCycles(defs map[string]metric.Definition) ConfigErrors {
	var errs ConfigErrors
	reported := make(map[string]bool)

	// Deterministic iteration order for stable error output.
	keys := make([]string, 0, len(defs))
	for key := range defs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		cycle := walkParentChain(defs, key)
		if cycle == nil {
			continue
		}
		anchor := smallest(cycle)
		if reported[anchor] {
			continue
		}
		reported[anchor] = true
		errs = append(errs, ConfigError{
			Code:    ErrParentCycle,
			Field:   anchor,
			Message: "parent chain forms a cycle: " + strings.Join(rotateTo(cycle, anchor), " -> "),
		})
	}

	return errs
}

// walkParentChain follows parent links from key. Returns the cycle members
// in chain order if the walk revisits a node, nil if it terminates.
func walkParentChain(defs map[string]metric.Definition, key string) []string {
	seen := make(map[string]int)
	var chain []string

	for key != "" {
		if at, ok := seen[key]; ok {
			return chain[at:]
		}
		seen[key] = len(chain)
		chain = append(chain, key)

		def, ok := defs[key]
		if !ok {
			return nil // dangling parent, reported separately
		}
		key = def.ParentKey
	}
	return nil
}

func smallest(cycle []string) string {
	min := cycle[0]
	for _, k := range cycle[1:] {
		if k < min {
			min = k
		}
	}
	return min
}

// rotateTo rewrites the cycle to start (and end) at the anchor member:
// ["b","c","a"] with anchor "a" becomes ["a","b","c","a"].
func rotateTo(cycle []string, anchor string) []string {
	start := 0
	for i, k := range cycle {
		if k == anchor {
			start = i
			break
		}
	}
	out := make([]string, 0, len(cycle)+1)
	out = append(out, cycle[start:]...)
	out = append(out, cycle[:start]...)
	return append(out, anchor)
}
