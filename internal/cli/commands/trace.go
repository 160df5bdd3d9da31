package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/TongWu/tabletracer/internal/lineage"
	"github.com/TongWu/tabletracer/internal/report"
	"github.com/TongWu/tabletracer/internal/state"
	"github.com/TongWu/tabletracer/internal/table"
)

// TraceOptions holds options for the trace command.
type TraceOptions struct {
	Targets []string
	Expand  bool
	Workers int
}

// NewTraceCommand creates the trace command.
func NewTraceCommand() *cobra.Command {
	opts := &TraceOptions{}

	cmd := &cobra.Command{
		Use:   "trace [targets...]",
		Short: "Trace lineage paths for target tables",
		Long: `Trace every lineage path from the given target tables down to their
source tables and write the shaped rows as CSV.

Targets are fully qualified table names (schema.table). Bare names are
expanded against the writer index: every indexed table whose name part
matches becomes a target.`,
		Example: `  # Trace two qualified targets
  tabletracer trace rpt.daily_revenue tdw.cit_assessment --root ./corpus

  # Bare name, expanded against the index
  tabletracer trace daily_revenue --root ./corpus

  # Promote intermediate layers to their own target rows
  tabletracer trace rpt.daily_revenue --root ./corpus --expand

  # Persist the run to a state database
  tabletracer trace rpt.daily_revenue --root ./corpus --state trace.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd, args, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Targets, "targets", nil, "Comma-separated targets (alternative to positional args)")
	cmd.Flags().BoolVar(&opts.Expand, "expand", false, "Promote intermediate layers to their own target rows")
	cmd.Flags().IntVar(&opts.Workers, "workers", 4, "Concurrent target resolutions")

	return cmd
}

func runTrace(cmd *cobra.Command, args []string, opts *TraceOptions) error {
	cc := NewCommandContext(cmd)
	ws, err := OpenWorkspace(cc)
	if err != nil {
		return err
	}

	raw := append([]string{}, args...)
	raw = append(raw, opts.Targets...)
	raw = append(raw, cc.Cfg.Targets...)
	if cc.Cfg.Expand {
		opts.Expand = true
	}

	targets := resolveTargets(cc, ws, raw)
	if len(targets) == 0 {
		return fmt.Errorf("no valid targets to process: provide fully qualified names like 'schema.table', or bare names known to the writer index")
	}

	enum := lineage.New(ws.Index, ws.Extractor, lineage.Options{
		MaxDepth: cc.Cfg.MaxDepth,
		MaxPaths: cc.Cfg.MaxPaths,
		Merge:    mergePolicy(cc.Cfg.Merge),
		Logger:   cc.Logger,
	})

	results := make([]lineage.Result, len(targets))
	g, ctx := errgroup.WithContext(cmd.Context())
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for i, target := range targets {
		g.Go(func() error {
			cc.Logger.Info("tracing target", "target", target)
			res, err := enum.Enumerate(ctx, target)
			if err != nil {
				return err
			}
			results[i] = res
			cc.Logger.Info("target traced", "target", target, "paths", len(res.Paths))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var rows []lineage.Row
	var truncated []string
	for _, res := range results {
		rows = append(rows, lineage.Shape(res.Target, res.Paths)...)
		if res.Truncated {
			truncated = append(truncated, res.Target)
		}
	}
	if opts.Expand {
		rows = lineage.Expand(rows)
	}

	if cc.Cfg.StatePath != "" {
		if err := persistRun(cmd, cc, ws, rows, truncated); err != nil {
			return err
		}
	}

	if cc.Cfg.Out != "" {
		if err := report.SaveCSV(cc.Cfg.Out, rows); err != nil {
			return fmt.Errorf("failed to write %s: %w", cc.Cfg.Out, err)
		}
		cc.Logger.Info("lineage written", "rows", len(rows), "out", cc.Cfg.Out)
	}

	if err := report.Render(cmd.OutOrStdout(), cc.Cfg.OutputFormat, rows); err != nil {
		return err
	}
	for _, t := range truncated {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: lineage for %s truncated by budget\n", t)
	}
	return nil
}

// resolveTargets canonicalizes the requested targets, expanding bare
// names through the writer index, and returns them sorted without
// duplicates.
func resolveTargets(cc *CommandContext, ws *Workspace, raw []string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(fqtn string) {
		if _, ok := seen[fqtn]; !ok {
			seen[fqtn] = struct{}{}
			out = append(out, fqtn)
		}
	}

	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		name, ok := table.Normalize(t)
		if !ok {
			cc.Logger.Warn("target is not a resolvable table name, skipping", "target", t)
			continue
		}
		if table.IsQualified(name) {
			add(name)
			continue
		}
		for _, fqtn := range ws.Index.ExpandBare(name) {
			add(fqtn)
		}
	}
	sort.Strings(out)
	return out
}

func mergePolicy(name string) lineage.MergePolicy {
	if name == "intersect" {
		return lineage.IntersectMerge
	}
	return lineage.UnionMerge
}

// persistRun stores the writer index snapshot and the shaped rows in the
// state database.
func persistRun(cmd *cobra.Command, cc *CommandContext, ws *Workspace, rows []lineage.Row, truncated []string) error {
	store, err := state.Open(cc.Cfg.StatePath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	runID, err := store.BeginRun(ctx, cc.Cfg.Root)
	if err != nil {
		return err
	}

	var entries []state.WriterEntry
	for _, tbl := range ws.Index.Tables() {
		for _, w := range ws.Index.Registered(tbl) {
			entries = append(entries, state.WriterEntry{Table: tbl, Writer: w})
		}
	}
	if err := store.SaveWriters(ctx, runID, entries); err != nil {
		return err
	}
	if err := store.SaveRows(ctx, runID, rows, truncated); err != nil {
		return err
	}
	cc.Logger.Info("run persisted", "state", cc.Cfg.StatePath, "run_id", runID)
	return nil
}
