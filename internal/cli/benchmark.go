package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/finbench/internal/query"
)

// NewBenchmarkCommand creates the benchmark command.
func NewBenchmarkCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "benchmark <kpi> <scope> <scope-key> <period>",
		Short: "Query a peer-group benchmark stat",
		Long: `Query the percentile statistics for one KPI in one peer group.

The scope names the partitioning (e.g. by_region) and the scope key picks
the partition (e.g. EU). Absence of a stat means no entity in the
partition had a computable value for the period.

Example:
  finbench benchmark current_ratio by_region EU 2024 --db ./finbench.db --defs ./defs`,
		Args:          cobra.ExactArgs(4),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			period, err := strconv.Atoi(args[3])
			if err != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid period %q", args[3]))
			}
			return runBenchmark(opts, cmd, args[0], args[1], args[2], period)
		},
	}

	addQueryFlags(cmd, opts)
	return cmd
}

func runBenchmark(opts *QueryOptions, cmd *cobra.Command, kpiKey, scopeID, scopeKey string, period int) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	registry, err := loadRegistry(opts.Defs)
	if err != nil {
		return err
	}
	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	router := newQueryRouter(st, registry)
	result, err := router.Benchmark(cmd.Context(), kpiKey, scopeID, scopeKey, period)
	if err != nil {
		if errors.Is(err, query.ErrUnknownKPI) || errors.Is(err, query.ErrUnknownScope) {
			return WrapExitError(ExitFailure, "unknown query target", err)
		}
		return WrapExitError(ExitCommandError, "query failed", err)
	}

	if opts.Format == "json" {
		return formatter.JSON(result)
	}

	out := cmd.OutOrStdout()
	if result.NoData {
		fmt.Fprintf(out, "No data for %s %s/%s period %d\n", kpiKey, scopeID, scopeKey, period)
		return nil
	}
	stat := result.Stat
	fmt.Fprintf(out, "%s %s/%s period %d (%s)\n", kpiKey, scopeID, scopeKey, period, result.Provenance)
	fmt.Fprintf(out, "  p25:     %s\n", strconv.FormatFloat(stat.P25, 'g', -1, 64))
	fmt.Fprintf(out, "  median:  %s\n", strconv.FormatFloat(stat.Median, 'g', -1, 64))
	fmt.Fprintf(out, "  p75:     %s\n", strconv.FormatFloat(stat.P75, 'g', -1, 64))
	fmt.Fprintf(out, "  mean:    %s\n", strconv.FormatFloat(stat.Mean, 'g', -1, 64))
	fmt.Fprintf(out, "  samples: %d\n", stat.SampleCount)
	return nil
}
