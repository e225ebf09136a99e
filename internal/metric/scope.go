package metric

import "strings"

// Scope dimension names understood by ScopeKey.
const (
	DimRegion   = "region"
	DimCategory = "category"
)

// AllScopeKey is the scope key of the dimensionless "all entities" scope.
const AllScopeKey = "all"

// Scope is a named partition function mapping an entity to a peer-group key.
//
// Dimensions name entity attributes in order; the scope key is the NFC
// normalized dimension values joined with "|". An empty Dimensions slice is
// the "all" scope: every entity maps to AllScopeKey.
type Scope struct {
	ID         string   `json:"id"`
	Dimensions []string `json:"dimensions,omitempty"`
}

// Key returns the scope key for the entity, or false when the entity is
// missing a required dimension. Entities missing an optional dimension are
// excluded from the scope's aggregation, not treated as errors.
func (s Scope) Key(e Entity) (string, bool) {
	if len(s.Dimensions) == 0 {
		return AllScopeKey, true
	}
	parts := make([]string, 0, len(s.Dimensions))
	for _, dim := range s.Dimensions {
		var v string
		switch dim {
		case DimRegion:
			v = e.Region
		case DimCategory:
			v = e.Category
		}
		if v == "" {
			return "", false
		}
		parts = append(parts, CanonicalString(v))
	}
	return strings.Join(parts, "|"), true
}

// KnownDimension reports whether dim is an entity attribute ScopeKey can
// resolve. The compiler rejects scopes naming unknown dimensions.
func KnownDimension(dim string) bool {
	return dim == DimRegion || dim == DimCategory
}
