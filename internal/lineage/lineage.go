// Package lineage implements the lineage path enumerator: a depth-first
// walk over the writer graph from a target table down to its terminal
// source tables. The walk is cycle-safe, deterministic, and bounded by a
// configurable path and depth budget.
package lineage

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/TongWu/tabletracer/internal/extract"
)

// WriterResolver answers which scripts are believed to write a table.
type WriterResolver interface {
	WritersFor(fqtn string) []extract.Writer
}

// UpstreamResolver reports the tables one writer's script reads.
type UpstreamResolver interface {
	ReadTables(w extract.Writer) []string
}

// MergePolicy combines the per-writer upstream sets of a table that has
// more than one writer. The returned slice must be sorted and free of
// duplicates.
type MergePolicy func(sets [][]string) []string

// UnionMerge treats ambiguous writers as alternative production routes
// whose inputs are all potentially required. Losing a true dependency is
// worse than reporting a spurious one, so this is the default.
func UnionMerge(sets [][]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range sets {
		for _, name := range s {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// IntersectMerge keeps only upstreams every writer agrees on. Stricter
// than UnionMerge; useful when stale duplicate writers are known to
// inflate lineage.
func IntersectMerge(sets [][]string) []string {
	if len(sets) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, s := range sets {
		for _, name := range s {
			counts[name]++
		}
	}
	var out []string
	for name, n := range counts {
		if n == len(sets) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Default traversal budget. Real pipeline corpora rarely chain more than
// a dozen hops, but diamonds multiply downstream paths, so both limits
// are hard ceilings rather than tuning knobs.
const (
	DefaultMaxDepth = 25
	DefaultMaxPaths = 10000
)

// Options configures an Enumerator. Zero values select the defaults.
type Options struct {
	MaxDepth int
	MaxPaths int
	Merge    MergePolicy
	Logger   *slog.Logger
}

// Enumerator walks the writer graph. One Enumerator may serve many
// targets, concurrently; the per-table upstream cache is shared across
// all of them.
type Enumerator struct {
	writers  WriterResolver
	upstream UpstreamResolver
	maxDepth int
	maxPaths int
	merge    MergePolicy
	logger   *slog.Logger

	mu    sync.Mutex
	cache map[string][]string
}

// New returns an Enumerator resolving writers and upstreams through the
// given collaborators.
func New(writers WriterResolver, upstream UpstreamResolver, opts Options) *Enumerator {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.MaxPaths <= 0 {
		opts.MaxPaths = DefaultMaxPaths
	}
	if opts.Merge == nil {
		opts.Merge = UnionMerge
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Enumerator{
		writers:  writers,
		upstream: upstream,
		maxDepth: opts.MaxDepth,
		maxPaths: opts.MaxPaths,
		merge:    opts.Merge,
		logger:   opts.Logger,
		cache:    make(map[string][]string),
	}
}

// Result holds one target's enumerated lineage paths. Each path runs
// [target, layer1, ..., source]; a length-1 path means the target itself
// is a source. Truncated reports that the path or depth budget cut the
// enumeration short; the paths present are still valid.
type Result struct {
	Target    string
	Paths     [][]string
	Truncated bool
	Cycles    int
}

// walkState carries per-target budget accounting through the recursion.
type walkState struct {
	paths     int
	truncated bool
	cycles    int
}

// Enumerate returns every distinct lineage path from target down to its
// sources. The only error it returns is ctx's, checked once per branch;
// a budget overrun is reported through Result.Truncated instead.
func (e *Enumerator) Enumerate(ctx context.Context, target string) (Result, error) {
	target = strings.ToLower(strings.TrimSpace(target))
	st := &walkState{}
	paths, err := e.walk(ctx, target, nil, st)
	if err != nil {
		return Result{}, err
	}
	if st.truncated {
		e.logger.Warn("lineage truncated by budget",
			"target", target,
			"max_depth", e.maxDepth,
			"max_paths", e.maxPaths,
			"paths", len(paths))
	}
	return Result{Target: target, Paths: paths, Truncated: st.truncated, Cycles: st.cycles}, nil
}

func (e *Enumerator) walk(ctx context.Context, tbl string, ancestors []string, st *walkState) ([][]string, error) {
	for _, a := range ancestors {
		if a == tbl {
			e.logger.Warn("cycle detected, cutting branch", "table", tbl)
			st.cycles++
			st.paths++
			return [][]string{{tbl}}, nil
		}
	}

	if len(ancestors) >= e.maxDepth {
		e.logger.Warn("depth budget reached, cutting branch",
			"table", tbl, "depth", len(ancestors))
		st.truncated = true
		st.paths++
		return [][]string{{tbl}}, nil
	}

	upstreams := e.upstreamsOf(tbl)
	if len(upstreams) == 0 {
		e.logger.Info("table has no upstreams, treated as source", "table", tbl)
		st.paths++
		return [][]string{{tbl}}, nil
	}

	var all [][]string
	chain := make([]string, 0, len(ancestors)+1)
	chain = append(chain, ancestors...)
	chain = append(chain, tbl)
	for _, up := range upstreams {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if st.paths >= e.maxPaths {
			st.truncated = true
			break
		}
		sub, err := e.walk(ctx, up, chain, st)
		if err != nil {
			return nil, err
		}
		for _, sp := range sub {
			path := make([]string, 0, len(sp)+1)
			path = append(path, tbl)
			path = append(path, sp...)
			all = append(all, path)
		}
	}
	return all, nil
}

// upstreamsOf resolves and caches the merged upstream set of one table.
// An empty set means the table is a source, either because no writer is
// known or because its writers read nothing resolvable. Computation may
// race across goroutines; the first stored result wins and duplicate
// work is discarded.
func (e *Enumerator) upstreamsOf(tbl string) []string {
	e.mu.Lock()
	if ups, ok := e.cache[tbl]; ok {
		e.mu.Unlock()
		return ups
	}
	e.mu.Unlock()

	writers := e.writers.WritersFor(tbl)
	if len(writers) > 1 {
		e.logger.Info("ambiguous writers, unioning upstream sets",
			"table", tbl, "writers", len(writers))
	}

	var ups []string
	if len(writers) > 0 {
		sets := make([][]string, 0, len(writers))
		for _, w := range writers {
			sets = append(sets, e.upstream.ReadTables(w))
		}
		ups = e.merge(sets)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if cached, ok := e.cache[tbl]; ok {
		return cached
	}
	e.cache[tbl] = ups
	return ups
}
