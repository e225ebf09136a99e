// Package testutil provides shared test doubles and fixture loading for
// store, build and query tests.
package testutil

import (
	"os"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/roach88/finbench/internal/metric"
)

// Fixture is a YAML-described dataset: the entities under test plus
// their raw line items.
type Fixture struct {
	Entities  []metric.Entity
	LineItems []metric.LineItem
}

type fixtureFile struct {
	Entities []struct {
		ID       string `yaml:"id"`
		Name     string `yaml:"name"`
		Region   string `yaml:"region"`
		Category string `yaml:"category"`
	} `yaml:"entities"`
	LineItems []struct {
		EntityID string  `yaml:"entity_id"`
		Period   int     `yaml:"period"`
		Line     string  `yaml:"line"`
		Column   string  `yaml:"column"`
		Value    float64 `yaml:"value"`
	} `yaml:"line_items"`
}

// LoadFixture reads a YAML fixture from path, failing the test on any
// parse error.
func LoadFixture(t *testing.T, path string) Fixture {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	var file fixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		t.Fatalf("parse fixture %s: %v", path, err)
	}

	var f Fixture
	for _, e := range file.Entities {
		f.Entities = append(f.Entities, metric.Entity{
			ID:       e.ID,
			Name:     e.Name,
			Region:   e.Region,
			Category: e.Category,
		})
	}
	for _, li := range file.LineItems {
		f.LineItems = append(f.LineItems, metric.LineItem{
			EntityID: li.EntityID,
			Period:   li.Period,
			Line:     li.Line,
			Column:   li.Column,
			Value:    li.Value,
		})
	}
	return f
}
