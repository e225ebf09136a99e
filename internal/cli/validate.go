package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/finbench/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                  `json:"valid"`
	KPIs   int                   `json:"kpis,omitempty"`
	Scopes int                   `json:"scopes,omitempty"`
	Errors compiler.ConfigErrors `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate KPI and scope definitions",
		Long: `Compile and validate the definition directory without touching a database.

Reports every configuration error at once: duplicate keys, dangling or
cyclic parent references, bad levels, empty formulas, unknown scope
dimensions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Defs, "defs", "", "path to KPI/scope definitions directory (required)")
	_ = cmd.MarkFlagRequired("defs")

	return cmd
}

func runValidate(opts *QueryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	registry, err := compiler.Load(opts.Defs)
	if err != nil {
		var cfgErrs compiler.ConfigErrors
		if errors.As(err, &cfgErrs) {
			return outputValidationErrors(formatter, opts, cfgErrs)
		}
		_ = formatter.Error("C001", err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load definitions", err)
	}

	result := ValidationResult{
		Valid:  true,
		KPIs:   len(registry.Keys()),
		Scopes: len(registry.ScopeIDs()),
	}
	if opts.Format == "json" {
		return formatter.JSON(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ All definitions valid (%d kpis, %d scopes)\n", result.KPIs, result.Scopes)
	return nil
}

func outputValidationErrors(formatter *OutputFormatter, opts *QueryOptions, errs compiler.ConfigErrors) error {
	if opts.Format == "json" {
		_ = formatter.Error("C100", "invalid definitions", errs)
	} else {
		fmt.Fprintf(formatter.Writer, "✗ %d validation error(s)\n", len(errs))
		for _, e := range errs {
			fmt.Fprintf(formatter.Writer, "  [%s] %s: %s\n", e.Code, e.Field, e.Message)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d validation error(s)", len(errs)))
}
