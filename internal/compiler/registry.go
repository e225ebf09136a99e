package compiler

import (
	"fmt"
	"sort"

	"github.com/roach88/finbench/internal/metric"
)

// Registry is the validated, immutable lookup for KPI definitions and
// benchmark scopes. It is constructed once at startup and shared by
// reference; nothing mutates it afterwards.
type Registry struct {
	defs     map[string]metric.Definition
	defOrder []string // keys in declaration order
	children map[string][]string
	scopes   map[string]metric.Scope
	scopeIDs []string // ids in declaration order
}

// NewRegistry builds a registry from compiled definitions and scopes,
// enforcing every cross-definition rule. It returns ConfigErrors listing
// ALL violations, not just the first:
//
//   - duplicate KPI keys and scope ids
//   - parent references to unknown KPIs
//   - levels outside 1..3, level-1 KPIs with a parent, deeper KPIs without
//   - child level not exactly parent level + 1
//   - cycles in the parent chain
//   - formulas with no numerator, aggregates with no constraint
//   - scopes naming unknown entity dimensions
func NewRegistry(defs []metric.Definition, scopes []metric.Scope) (*Registry, error) {
	r := &Registry{
		defs:     make(map[string]metric.Definition, len(defs)),
		children: make(map[string][]string),
		scopes:   make(map[string]metric.Scope, len(scopes)),
	}

	var errs ConfigErrors

	for _, def := range defs {
		if _, dup := r.defs[def.Key]; dup {
			errs = append(errs, ConfigError{
				Code:    ErrDuplicateKey,
				Field:   def.Key,
				Message: "KPI key defined more than once",
			})
			continue
		}
		r.defs[def.Key] = def
		r.defOrder = append(r.defOrder, def.Key)
	}

	for _, key := range r.defOrder {
		errs = append(errs, validateDefinition(r.defs, r.defs[key])...)
	}

	// Cycle detection runs over the full parent graph even when individual
	// definitions failed structural checks, so a cyclic pair reports both
	// the structural and the cycle error.
	errs = append(errs, detectParentCycles(r.defs)...)

	for _, scope := range scopes {
		if _, dup := r.scopes[scope.ID]; dup {
			errs = append(errs, ConfigError{
				Code:    ErrDuplicateScope,
				Field:   scope.ID,
				Message: "scope id defined more than once",
			})
			continue
		}
		for _, dim := range scope.Dimensions {
			if !metric.KnownDimension(dim) {
				errs = append(errs, ConfigError{
					Code:    ErrUnknownDimension,
					Field:   scope.ID,
					Message: fmt.Sprintf("unknown dimension %q", dim),
				})
			}
		}
		r.scopes[scope.ID] = scope
		r.scopeIDs = append(r.scopeIDs, scope.ID)
	}

	if len(errs) > 0 {
		return nil, errs
	}

	for _, key := range r.defOrder {
		if parent := r.defs[key].ParentKey; parent != "" {
			r.children[parent] = append(r.children[parent], key)
		}
	}

	return r, nil
}

func validateDefinition(defs map[string]metric.Definition, def metric.Definition) ConfigErrors {
	var errs ConfigErrors

	if def.Level < 1 || def.Level > 3 {
		errs = append(errs, ConfigError{
			Code:    ErrLevelOutOfRange,
			Field:   def.Key,
			Message: fmt.Sprintf("level %d outside 1..3", def.Level),
		})
	}

	switch {
	case def.Level == 1 && def.ParentKey != "":
		errs = append(errs, ConfigError{
			Code:    ErrRootWithParent,
			Field:   def.Key,
			Message: "level-1 KPI must not name a parent",
		})
	case def.Level > 1 && def.ParentKey == "":
		errs = append(errs, ConfigError{
			Code:    ErrChildWithoutParent,
			Field:   def.Key,
			Message: fmt.Sprintf("level-%d KPI requires a parent", def.Level),
		})
	case def.ParentKey != "":
		parent, ok := defs[def.ParentKey]
		if !ok {
			errs = append(errs, ConfigError{
				Code:    ErrDanglingParent,
				Field:   def.Key,
				Message: fmt.Sprintf("parent %q is not a defined KPI", def.ParentKey),
			})
		} else if def.Level != parent.Level+1 {
			errs = append(errs, ConfigError{
				Code:    ErrLevelMismatch,
				Field:   def.Key,
				Message: fmt.Sprintf("level %d under level-%d parent %q", def.Level, parent.Level, parent.Key),
			})
		}
	}

	if len(def.Formula.Numerator) == 0 {
		errs = append(errs, ConfigError{
			Code:    ErrEmptyNumerator,
			Field:   def.Key,
			Message: "formula has no numerator terms",
		})
	}
	for i, term := range def.Formula.Numerator {
		if term.Aggregate.Empty() {
			errs = append(errs, ConfigError{
				Code:    ErrEmptySelector,
				Field:   def.Key,
				Message: fmt.Sprintf("numerator term %d has no line or column constraint", i),
			})
		}
	}
	for i, term := range def.Formula.Denominator {
		if term.Aggregate.Empty() {
			errs = append(errs, ConfigError{
				Code:    ErrEmptySelector,
				Field:   def.Key,
				Message: fmt.Sprintf("denominator term %d has no line or column constraint", i),
			})
		}
	}

	return errs
}

// Definition returns the definition for a KPI key.
func (r *Registry) Definition(key string) (metric.Definition, bool) {
	def, ok := r.defs[key]
	return def, ok
}

// Definitions returns all definitions in declaration order.
func (r *Registry) Definitions() []metric.Definition {
	out := make([]metric.Definition, 0, len(r.defOrder))
	for _, key := range r.defOrder {
		out = append(out, r.defs[key])
	}
	return out
}

// Keys returns all KPI keys in declaration order.
func (r *Registry) Keys() []string {
	return append([]string(nil), r.defOrder...)
}

// Children returns the child KPI keys of a parent, sorted.
func (r *Registry) Children(parentKey string) []string {
	kids := append([]string(nil), r.children[parentKey]...)
	sort.Strings(kids)
	return kids
}

// Scope returns the scope for an id.
func (r *Registry) Scope(id string) (metric.Scope, bool) {
	scope, ok := r.scopes[id]
	return scope, ok
}

// Scopes returns all scopes in declaration order.
func (r *Registry) Scopes() []metric.Scope {
	out := make([]metric.Scope, 0, len(r.scopeIDs))
	for _, id := range r.scopeIDs {
		out = append(out, r.scopes[id])
	}
	return out
}

// ScopeIDs returns all scope ids in declaration order.
func (r *Registry) ScopeIDs() []string {
	return append([]string(nil), r.scopeIDs...)
}
