package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/TongWu/tabletracer/internal/graph"
)

// NewGraphCommand creates the graph command.
func NewGraphCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Show the whole-corpus table dependency graph by level",
		Long: `Build the full table dependency graph from the corpus and group
tables by dependency depth. Level 0 holds source tables with no known
writer inputs; each later level depends only on earlier ones. Cycles
are reported instead of levels when the corpus contains one.`,
		Example: `  tabletracer graph --root ./corpus
  tabletracer graph --root ./corpus -o json`,
		RunE: runGraph,
	}
}

func runGraph(cmd *cobra.Command, _ []string) error {
	cc := NewCommandContext(cmd)
	ws, err := OpenWorkspace(cc)
	if err != nil {
		return err
	}

	g := buildTableGraph(ws)
	cc.Logger.Info("graph built",
		"tables", g.TableCount(),
		"dependencies", g.DependencyCount())

	if hasCycle, path := g.HasCycle(); hasCycle {
		return fmt.Errorf("dependency cycle in corpus: %s", strings.Join(path, " -> "))
	}

	levels, err := g.Levels()
	if err != nil {
		return err
	}

	switch cc.Cfg.OutputFormat {
	case "json":
		type jsonLevel struct {
			Level  int      `json:"level"`
			Tables []string `json:"tables"`
		}
		out := make([]jsonLevel, len(levels))
		for i, tables := range levels {
			out[i] = jsonLevel{Level: i, Tables: tables}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	default:
		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Level", "Tables"})
		for i, tables := range levels {
			t.AppendRow(table.Row{i, strings.Join(tables, "\n")})
		}
		t.Render()
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "(%d tables, %d levels)\n", g.TableCount(), len(levels))
		return nil
	}
}

// buildTableGraph wires every indexed table to the tables its writers
// read. Upstreams outside the index become level-0 sources. Self-reads
// are skipped; the trace command reports those as cut cycles instead.
func buildTableGraph(ws *Workspace) *graph.Graph {
	g := graph.New()
	for _, tbl := range ws.Index.Tables() {
		g.AddTable(tbl)
	}
	for _, tbl := range ws.Index.Tables() {
		for _, w := range ws.Index.Registered(tbl) {
			for _, up := range ws.Extractor.ReadTables(w) {
				if up == tbl {
					continue
				}
				g.AddTable(up)
				_ = g.AddDependency(up, tbl)
			}
		}
	}
	return g
}
