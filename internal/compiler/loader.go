package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/finbench/internal/metric"
)

// Load compiles every .cue file under dir and builds the validated Registry.
//
// Compilation is fail-fast on malformed CUE; registry validation then
// collects every configuration error. Either failure means the definition
// set must not serve queries (spec startup contract).
func Load(dir string) (*Registry, error) {
	defs, scopes, err := LoadDefinitions(dir)
	if err != nil {
		return nil, err
	}
	return NewRegistry(defs, scopes)
}

// LoadDefinitions compiles the raw definitions and scopes from a directory
// without registry validation. Used by Load and by the validate command,
// which wants to report structural and semantic errors separately.
func LoadDefinitions(dir string) ([]metric.Definition, []metric.Scope, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("definitions directory not found: %s", dir)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("accessing definitions directory: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("not a directory: %s", dir)
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("scanning definitions directory: %w", err)
	}
	if len(cueFiles) == 0 {
		return nil, nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, nil, fmt.Errorf("building CUE value: %w", formatCUEError(err))
	}

	var defs []metric.Definition
	kpiVal := value.LookupPath(cue.ParsePath("kpi"))
	if kpiVal.Exists() {
		iter, err := kpiVal.Fields()
		if err != nil {
			return nil, nil, fmt.Errorf("iterating kpi definitions: %w", formatCUEError(err))
		}
		for iter.Next() {
			def, err := CompileDefinition(iter.Value())
			if err != nil {
				return nil, nil, fmt.Errorf("kpi.%s: %w", iter.Label(), err)
			}
			defs = append(defs, *def)
		}
	}

	var scopes []metric.Scope
	scopeVal := value.LookupPath(cue.ParsePath("scope"))
	if scopeVal.Exists() {
		iter, err := scopeVal.Fields()
		if err != nil {
			return nil, nil, fmt.Errorf("iterating scopes: %w", formatCUEError(err))
		}
		for iter.Next() {
			scope, err := CompileScope(iter.Value())
			if err != nil {
				return nil, nil, fmt.Errorf("scope.%s: %w", iter.Label(), err)
			}
			scopes = append(scopes, *scope)
		}
	}

	if len(defs) == 0 {
		return nil, nil, fmt.Errorf("no kpi definitions found in %s", dir)
	}

	return defs, scopes, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
