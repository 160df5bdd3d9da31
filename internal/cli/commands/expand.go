package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TongWu/tabletracer/internal/lineage"
	"github.com/TongWu/tabletracer/internal/report"
)

// ExpandOptions holds options for the expand command.
type ExpandOptions struct {
	Input  string
	Output string
}

// NewExpandCommand creates the expand command.
func NewExpandCommand() *cobra.Command {
	opts := &ExpandOptions{}

	cmd := &cobra.Command{
		Use:   "expand",
		Short: "Promote layer tables in a lineage CSV to their own target rows",
		Long: `Read a lineage CSV produced by trace and append a row for every
intermediate layer table that is not already a target, with the
remaining tail of its dependency chain. Existing rows are preserved and
duplicates are dropped.`,
		Example: `  tabletracer expand --input lineage.csv --output expanded.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExpand(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Lineage CSV to expand (required)")
	cmd.Flags().StringVarP(&opts.Output, "output", "O", "", "Destination CSV (required)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runExpand(cmd *cobra.Command, opts *ExpandOptions) error {
	cc := NewCommandContext(cmd)

	rows, err := report.LoadCSV(opts.Input)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", opts.Input, err)
	}

	expanded := lineage.Expand(rows)
	if err := report.SaveCSV(opts.Output, expanded); err != nil {
		return fmt.Errorf("failed to write %s: %w", opts.Output, err)
	}

	cc.Logger.Info("expansion complete",
		"input_rows", len(rows),
		"output_rows", len(expanded),
		"added", len(expanded)-len(rows))
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Expanded %d rows into %d rows (%s)\n",
		len(rows), len(expanded), opts.Output)
	return nil
}
