package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/TongWu/tabletracer/internal/extract"
)

// NewScanCommand creates the scan command.
func NewScanCommand() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Report per-script table usage across the corpus",
		Long: `Scan every script in the corpus and classify the tables it references
as inputs, intermediates (both read and written), or outputs.`,
		Example: `  # Scan the whole corpus
  tabletracer scan --root ./corpus

  # Only scripts whose path contains a substring
  tabletracer scan --root ./corpus --filter cit_

  # Machine-readable output
  tabletracer scan --root ./corpus -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScan(cmd, filter)
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "Only scan files whose path contains this substring")
	return cmd
}

func runScan(cmd *cobra.Command, filter string) error {
	cc := NewCommandContext(cmd)
	ws, err := OpenWorkspace(cc)
	if err != nil {
		return err
	}

	var reports []extract.ScriptIO
	for _, path := range ws.Files {
		if filter != "" && !strings.Contains(path, filter) {
			continue
		}
		io, ok := ws.Extractor.AnalyzeFile(path)
		if !ok {
			continue
		}
		if len(io.Inputs)+len(io.Intermediates)+len(io.Outputs) == 0 {
			continue
		}
		reports = append(reports, io)
	}
	cc.Logger.Info("scan complete", "scripts", len(reports))

	switch cc.Cfg.OutputFormat {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	case "csv":
		return writeScanCSV(cmd, reports)
	default:
		return renderScanTable(cmd, reports)
	}
}

func writeScanCSV(cmd *cobra.Command, reports []extract.ScriptIO) error {
	w := csv.NewWriter(cmd.OutOrStdout())
	if err := w.Write([]string{"Script", "Inputs", "Intermediates", "Outputs"}); err != nil {
		return err
	}
	for _, r := range reports {
		rec := []string{
			r.Path,
			strings.Join(r.Inputs, ";"),
			strings.Join(r.Intermediates, ";"),
			strings.Join(r.Outputs, ";"),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func renderScanTable(cmd *cobra.Command, reports []extract.ScriptIO) error {
	if len(reports) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "(0 scripts)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Script", "Inputs", "Intermediates", "Outputs"})
	for _, r := range reports {
		t.AppendRow(table.Row{
			r.Path,
			strings.Join(r.Inputs, "\n"),
			strings.Join(r.Intermediates, "\n"),
			strings.Join(r.Outputs, "\n"),
		})
	}
	t.Render()
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "(%d scripts)\n", len(reports))
	return nil
}
