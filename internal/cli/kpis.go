package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/finbench/internal/capability"
	"github.com/roach88/finbench/internal/compiler"
	"github.com/roach88/finbench/internal/metric"
	"github.com/roach88/finbench/internal/query"
	"github.com/roach88/finbench/internal/store"
)

// QueryOptions holds flags shared by the kpis and benchmark commands.
type QueryOptions struct {
	*RootOptions
	Database string
	Defs     string
}

// NewKPIsCommand creates the kpis command.
func NewKPIsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "kpis <entity> <period>",
		Short: "Query every KPI value for an entity and period",
		Long: `Query all KPI values for one entity/period.

Served from the published generation when available, computed on the fly
from raw line items otherwise; the output notes which path answered.

Example:
  finbench kpis 310001 2024 --db ./finbench.db --defs ./defs`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			period, err := strconv.Atoi(args[1])
			if err != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid period %q", args[1]))
			}
			return runKPIs(opts, cmd, args[0], period)
		},
	}

	addQueryFlags(cmd, opts)
	return cmd
}

func addQueryFlags(cmd *cobra.Command, opts *QueryOptions) {
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Defs, "defs", "", "path to KPI/scope definitions directory (required)")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("defs")
}

// newQueryRouter wires the query stack for one command invocation.
func newQueryRouter(st *store.Store, reg *compiler.Registry) *query.Router {
	return query.New(query.Config{
		Store:    st,
		Registry: reg,
		Detector: capability.NewDetector(st),
	})
}

func runKPIs(opts *QueryOptions, cmd *cobra.Command, entityID string, period int) error {
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
	result, err := router.KPIs(cmd.Context(), entityID, period)
	if err != nil {
		return WrapExitError(ExitCommandError, "query failed", err)
	}

	if opts.Format == "json" {
		return formatter.JSON(result)
	}

	out := cmd.OutOrStdout()
	if result.NoData {
		fmt.Fprintf(out, "No data for entity %s period %d\n", entityID, period)
		return nil
	}
	fmt.Fprintf(out, "KPI values for %s period %d (%s)\n", entityID, period, result.Provenance)
	for _, key := range registry.Keys() {
		fmt.Fprintf(out, "  %s: %s\n", key, formatValue(result.Values[key]))
	}
	return nil
}

func formatValue(v metric.Value) string {
	if !v.Valid {
		return "null"
	}
	return strconv.FormatFloat(v.Float64, 'g', -1, 64)
}
