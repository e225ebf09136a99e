package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelector_Matches(t *testing.T) {
	item := LineItem{EntityID: "310001", Period: 2024, Line: "CA", Column: "TOTAL", Value: 100}

	tests := []struct {
		name     string
		selector Selector
		want     bool
	}{
		{"exact line and column", Selector{Lines: []string{"CA"}, Columns: []string{"TOTAL"}}, true},
		{"any column", Selector{Lines: []string{"CA"}}, true},
		{"any line", Selector{Columns: []string{"TOTAL"}}, true},
		{"line mismatch", Selector{Lines: []string{"CL"}, Columns: []string{"TOTAL"}}, false},
		{"column mismatch", Selector{Lines: []string{"CA"}, Columns: []string{"NET"}}, false},
		{"multiple lines", Selector{Lines: []string{"CL", "CA"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.selector.Matches(item))
		})
	}
}

func TestSelector_Empty(t *testing.T) {
	assert.True(t, Selector{}.Empty())
	assert.False(t, Selector{Lines: []string{"CA"}}.Empty())
	assert.False(t, Selector{Columns: []string{"TOTAL"}}.Empty())
}

func TestValue_JSON(t *testing.T) {
	data, err := Float(5.76).MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}
	assert.Equal(t, "5.76", string(data))

	data, err = Null().MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}
	assert.Equal(t, "null", string(data))

	var v Value
	if err := v.UnmarshalJSON([]byte("null")); err != nil {
		t.Fatalf("UnmarshalJSON failed: %v", err)
	}
	assert.False(t, v.Valid)

	if err := v.UnmarshalJSON([]byte("12.5")); err != nil {
		t.Fatalf("UnmarshalJSON failed: %v", err)
	}
	assert.True(t, v.Valid)
	assert.Equal(t, 12.5, v.Float64)
}

func TestValue_Equal(t *testing.T) {
	assert.True(t, Null().Equal(Null(), 0))
	assert.False(t, Null().Equal(Float(0), 0))
	assert.True(t, Float(5.7581573).Equal(Float(5.7581574), 1e-6))
	assert.False(t, Float(5.75).Equal(Float(5.76), 1e-6))
}
