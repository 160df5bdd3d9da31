package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// mappingEntry is one (table, writer) pair of the built index.
type mappingEntry struct {
	Table  string `json:"table"`
	Script string `json:"script"`
	Kind   string `json:"kind"`
}

// NewMappingCommand creates the mapping command.
func NewMappingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mapping",
		Short: "Dump the table-to-writer mapping built from the corpus",
		Long: `Build the writer index and print every (table, writing script) pair.
Useful for auditing which scripts the tracer believes produce which
tables before trusting a trace.`,
		Example: `  tabletracer mapping --root ./corpus
  tabletracer mapping --root ./corpus -o csv > mapping.csv`,
		RunE: runMapping,
	}
}

func runMapping(cmd *cobra.Command, _ []string) error {
	cc := NewCommandContext(cmd)
	ws, err := OpenWorkspace(cc)
	if err != nil {
		return err
	}

	var entries []mappingEntry
	for _, tbl := range ws.Index.Tables() {
		for _, w := range ws.Index.Registered(tbl) {
			entries = append(entries, mappingEntry{Table: tbl, Script: w.Path, Kind: string(w.Kind)})
		}
	}
	cc.Logger.Info("mapping built", "entries", len(entries))

	switch cc.Cfg.OutputFormat {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "csv":
		w := csv.NewWriter(cmd.OutOrStdout())
		if err := w.Write([]string{"Table", "Script", "Kind"}); err != nil {
			return err
		}
		for _, e := range entries {
			if err := w.Write([]string{e.Table, e.Script, e.Kind}); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	default:
		if len(entries) == 0 {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "(0 tables)")
			return nil
		}
		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Table", "Script", "Kind"})
		for _, e := range entries {
			t.AppendRow(table.Row{e.Table, e.Script, e.Kind})
		}
		t.Render()
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "(%d writers)\n", len(entries))
		return nil
	}
}
