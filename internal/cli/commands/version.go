package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display tabletracer version information.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "tabletracer v%s (commit %s, built %s)\n", version, commit, date)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Table lineage tracer for data pipeline corpora")
		},
	}
}
