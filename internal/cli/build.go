package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/finbench/internal/build"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	Database string
	Defs     string

	// Generations allows overriding the generation id source (for testing).
	// If nil, defaults to UUIDv7Source.
	Generations build.GenerationIDSource
}

// BuildReport is the build command's success payload.
type BuildReport struct {
	Generation string `json:"generation"`
	SourceHash string `json:"source_hash"`
	Entities   int    `json:"entities"`
	KPIRows    int    `json:"kpi_rows"`
	BenchRows  int    `json:"bench_rows"`
	ElapsedMS  int64  `json:"elapsed_ms"`
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compute and publish a new generation",
		Long: `Run the precomputation pipeline over the imported line items.

The pipeline computes every KPI for every entity/period, aggregates
peer-group percentile benchmarks for every scope, and atomically
publishes the result as a new generation. A failed run publishes
nothing; the previously published generation keeps serving.

Example:
  finbench build --db ./finbench.db --defs ./defs`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Defs, "defs", "", "path to KPI/scope definitions directory (required)")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("defs")

	return cmd
}

func runBuild(opts *BuildOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	registry, err := loadRegistry(opts.Defs)
	if err != nil {
		return err
	}
	formatter.VerboseLog("Loaded %d KPI definitions, %d scopes", len(registry.Keys()), len(registry.ScopeIDs()))

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	pipeline := build.New(build.Config{
		Store:       st,
		Registry:    registry,
		Generations: opts.Generations,
	})

	result, err := pipeline.Run(cmd.Context())
	if err != nil {
		var stageErr *build.StageError
		if errors.As(err, &stageErr) {
			_ = formatter.Error("B001", stageErr.Error(), map[string]string{
				"stage":  string(stageErr.Stage),
				"entity": stageErr.Entity,
				"kpi":    stageErr.KPIKey,
				"scope":  stageErr.Scope,
			})
			return WrapExitError(ExitCommandError, "build failed", err)
		}
		return WrapExitError(ExitCommandError, "build failed", err)
	}

	report := BuildReport{
		Generation: result.Generation,
		SourceHash: result.SourceHash,
		Entities:   result.Entities,
		KPIRows:    result.KPIRows,
		BenchRows:  result.BenchRows,
		ElapsedMS:  result.Elapsed.Milliseconds(),
	}
	if opts.Format == "json" {
		return formatter.JSON(report)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Generation published: %s\n", report.Generation)
	fmt.Fprintf(out, "  entities:   %d\n", report.Entities)
	fmt.Fprintf(out, "  kpi rows:   %d\n", report.KPIRows)
	fmt.Fprintf(out, "  bench rows: %d\n", report.BenchRows)
	fmt.Fprintf(out, "  elapsed:    %dms\n", report.ElapsedMS)
	return nil
}
