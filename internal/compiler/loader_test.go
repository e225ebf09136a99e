package compiler

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidDefinitions(t *testing.T) {
	r, err := Load("testdata/defs")
	require.NoError(t, err)

	assert.Equal(t, []string{"cash_ratio", "current_ratio", "quick_ratio"}, sorted(r.Keys()))
	assert.Len(t, r.Scopes(), 4)

	def, ok := r.Definition("quick_ratio")
	require.True(t, ok)
	assert.Equal(t, "current_ratio", def.ParentKey)
	require.Len(t, def.Formula.Numerator, 2)
	assert.Equal(t, -1.0, def.Formula.Numerator[1].Coefficient)

	assert.Equal(t, []string{"quick_ratio"}, r.Children("current_ratio"))
	assert.Equal(t, []string{"cash_ratio"}, r.Children("quick_ratio"))
}

func TestLoad_MissingDirectory(t *testing.T) {
	_, err := Load("testdata/does-not-exist")
	assert.Error(t, err)
}

func TestLoad_EmptyDirectory(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestLoad_MalformedCUE(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "bad.cue"), []byte("kpi: current_ratio: {level: "), 0o644)
	require.NoError(t, err)

	_, err = Load(dir)
	assert.Error(t, err)
}

func TestLoad_RegistryViolation(t *testing.T) {
	dir := t.TempDir()
	src := `
package defs

kpi: orphan: {
	name:   "Orphan"
	level:  2
	parent: "missing"
	numerator: [{lines: ["CA"]}]
}
`
	err := os.WriteFile(filepath.Join(dir, "defs.cue"), []byte(src), 0o644)
	require.NoError(t, err)

	_, err = Load(dir)
	require.Error(t, err)

	var errs ConfigErrors
	require.ErrorAs(t, err, &errs)
	assert.Equal(t, ErrDanglingParent, errs[0].Code)
}

func TestFindCUEFiles(t *testing.T) {
	files, err := FindCUEFiles("testdata/defs")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func sorted(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}
