package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/finbench/internal/metric"
	"github.com/roach88/finbench/internal/store"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Database  string
	Entities  string
	LineItems string
}

// ImportReport is the import command's success payload.
type ImportReport struct {
	Entities  int `json:"entities"`
	LineItems int `json:"line_items"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load entities and line items from CSV",
		Long: `Replace the raw inputs wholesale from two CSV files.

The entities file carries "id,name,region,category" rows; the line-items
file carries "entity_id,period,line,column,value" rows. Both files need a
header row. Import creates the database if it does not exist and replaces
any previously imported rows; published generations are untouched until
the next build.

Example:
  finbench import --db ./finbench.db --entities entities.csv --line-items items.csv`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Entities, "entities", "", "path to entities CSV (required)")
	cmd.Flags().StringVar(&opts.LineItems, "line-items", "", "path to line-items CSV (required)")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("entities")
	_ = cmd.MarkFlagRequired("line-items")

	return cmd
}

func runImport(opts *ImportOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	entities, err := readEntitiesCSV(opts.Entities)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read entities", err)
	}
	items, err := readLineItemsCSV(opts.LineItems)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read line items", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if err := st.ImportEntities(ctx, entities); err != nil {
		return WrapExitError(ExitCommandError, "failed to import entities", err)
	}
	if err := st.ImportLineItems(ctx, items); err != nil {
		return WrapExitError(ExitCommandError, "failed to import line items", err)
	}

	report := ImportReport{Entities: len(entities), LineItems: len(items)}
	if opts.Format == "json" {
		return formatter.JSON(report)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d entities, %d line items\n", report.Entities, report.LineItems)
	return nil
}

func readEntitiesCSV(path string) ([]metric.Entity, error) {
	rows, err := readCSV(path, 4)
	if err != nil {
		return nil, err
	}
	entities := make([]metric.Entity, 0, len(rows))
	for _, row := range rows {
		entities = append(entities, metric.Entity{
			ID:       row[0],
			Name:     row[1],
			Region:   row[2],
			Category: row[3],
		})
	}
	return entities, nil
}

func readLineItemsCSV(path string) ([]metric.LineItem, error) {
	rows, err := readCSV(path, 5)
	if err != nil {
		return nil, err
	}
	items := make([]metric.LineItem, 0, len(rows))
	for i, row := range rows {
		period, err := strconv.Atoi(row[1])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: invalid period %q", path, i+2, row[1])
		}
		value, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: invalid value %q", path, i+2, row[4])
		}
		items = append(items, metric.LineItem{
			EntityID: row[0],
			Period:   period,
			Line:     row[2],
			Column:   row[3],
			Value:    value,
		})
	}
	return items, nil
}

// readCSV returns all data rows (header skipped), enforcing a fixed
// column count.
func readCSV(path string, fields int) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = fields

	// Skip header.
	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%s: empty file", path)
		}
		return nil, err
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
