package metric

import (
	"encoding/json"
	"math"
)

// Value is a nullable KPI value.
//
// Null (Valid == false) means "insufficient source data" for the
// entity/period, which is distinct from a legitimately computed zero.
// Values marshal to JSON as a plain number or null.
type Value struct {
	Float64 float64
	Valid   bool
}

// Float constructs a non-null value.
func Float(v float64) Value {
	return Value{Float64: v, Valid: true}
}

// Null constructs the null value.
func Null() Value {
	return Value{}
}

// Equal reports whether two values are equal within tolerance.
// Two nulls are equal; a null never equals a number.
func (v Value) Equal(other Value, tolerance float64) bool {
	if v.Valid != other.Valid {
		return false
	}
	if !v.Valid {
		return true
	}
	return math.Abs(v.Float64-other.Float64) <= tolerance
}

// MarshalJSON encodes the value as a number, or null when not valid.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Float64)
}

// UnmarshalJSON decodes a number or null.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Null()
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Float(f)
	return nil
}
