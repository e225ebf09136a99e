package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/finbench/internal/compiler"
	"github.com/roach88/finbench/internal/store"
)

// newFormatter builds the command's output formatter. Verbose logs go to
// stderr so they never corrupt JSON output.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// openExistingStore opens a database that must already exist. Commands
// that read or build refuse to silently create an empty database from a
// mistyped path; import is the only command that creates one.
func openExistingStore(path string) (*store.Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// loadRegistry compiles the definition directory into a validated
// registry. Load failures are command errors (exit 2); validation
// failures are domain failures (exit 1).
func loadRegistry(dir string) (*compiler.Registry, error) {
	reg, err := compiler.Load(dir)
	if err != nil {
		var cfgErrs compiler.ConfigErrors
		if errors.As(err, &cfgErrs) {
			return nil, WrapExitError(ExitFailure, "invalid definitions", err)
		}
		return nil, WrapExitError(ExitCommandError, "failed to load definitions", err)
	}
	return reg, nil
}
