package metric

// LineItem is one raw financial fact: a single (line, column) cell of an
// entity's filing for one reporting period.
//
// Line items are produced by an external batch process and consumed
// read-only. They are unique per (entity, period, line, column) tuple.
type LineItem struct {
	EntityID string  `json:"entity_id"`
	Period   int     `json:"period"`
	Line     string  `json:"line"`
	Column   string  `json:"column"`
	Value    float64 `json:"value"`
}

// Entity is the subject being measured, with the dimension attributes that
// benchmark scopes partition on. An empty dimension string means the
// attribute is unknown; such entities are excluded from scopes that require
// the dimension.
type Entity struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Region   string `json:"region,omitempty"`
	Category string `json:"category,omitempty"`
}

// Definition describes one KPI in the fixed three-level reporting tree.
//
// Levels form a strict hierarchy: every level-2 KPI names a level-1 parent,
// every level-3 KPI a level-2 parent. Child KPIs are computed independently
// from raw line items, NOT derived from the parent's computed value - the
// tree is a reporting hierarchy, not a decomposition identity.
type Definition struct {
	Key            string  `json:"key"`
	Name           string  `json:"name"`
	Level          int     `json:"level"` // 1, 2, or 3
	ParentKey      string  `json:"parent_key,omitempty"`
	Formula        Formula `json:"formula"`
	Unit           string  `json:"unit"`
	HigherIsBetter bool    `json:"higher_is_better"`
}

// Formula is a ratio of two linear combinations of line-item aggregates.
//
// An empty Denominator means the formula is the plain numerator sum. Every
// KPI in practice is either a sum (working capital) or a ratio of sums
// (current ratio, margins), so this shape covers the full definition set
// without a general expression evaluator.
type Formula struct {
	Numerator   []Term `json:"numerator"`
	Denominator []Term `json:"denominator,omitempty"`
}

// Term is one coefficient-weighted aggregate in a formula.
// A zero Coefficient is normalized to 1 at compile time.
type Term struct {
	Coefficient float64  `json:"coefficient"`
	Aggregate   Selector `json:"aggregate"`
}

// Selector names a set of line items by line and column codes.
// An empty Lines or Columns slice matches any value of that code.
// A selector with both slices empty is invalid (rejected at compile time).
type Selector struct {
	Lines   []string `json:"lines,omitempty"`
	Columns []string `json:"columns,omitempty"`
}

// Matches reports whether the selector selects the given line item.
func (s Selector) Matches(item LineItem) bool {
	return matchCode(s.Lines, item.Line) && matchCode(s.Columns, item.Column)
}

// Empty reports whether the selector has no line and no column constraint.
func (s Selector) Empty() bool {
	return len(s.Lines) == 0 && len(s.Columns) == 0
}

func matchCode(codes []string, code string) bool {
	if len(codes) == 0 {
		return true
	}
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

// Stat holds the percentile statistics for one benchmark partition.
//
// INVARIANT: P25 <= Median <= P75 whenever SampleCount > 0.
// A Stat with SampleCount == 0 is never constructed; empty partitions are
// omitted from aggregation output entirely.
type Stat struct {
	P25         float64 `json:"p25"`
	Median      float64 `json:"median"`
	P75         float64 `json:"p75"`
	Mean        float64 `json:"mean"`
	SampleCount int     `json:"sample_count"`
}
