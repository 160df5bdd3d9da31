// Package graph provides a whole-corpus view of the table dependency
// graph: which tables feed which, cycle detection, and level grouping
// for auditing a corpus before trusting per-target traces.
package graph

import (
	"fmt"
	"sort"
)

// Graph is a directed dependency graph over canonical table names. An
// edge runs from an upstream table to the table built from it.
type Graph struct {
	tables      map[string]struct{}
	downstreams map[string][]string // upstream -> tables built from it
	upstreams   map[string][]string // table -> tables it reads
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		tables:      make(map[string]struct{}),
		downstreams: make(map[string][]string),
		upstreams:   make(map[string][]string),
	}
}

// AddTable registers a table node.
func (g *Graph) AddTable(name string) {
	if _, exists := g.tables[name]; !exists {
		g.tables[name] = struct{}{}
		g.downstreams[name] = []string{}
		g.upstreams[name] = []string{}
	}
}

// AddDependency records that table reads upstream. Both tables must be
// registered. Self-references are rejected; the per-target enumerator
// handles those as cut cycles.
func (g *Graph) AddDependency(upstream, table string) error {
	if _, exists := g.tables[upstream]; !exists {
		return fmt.Errorf("unknown upstream table %q", upstream)
	}
	if _, exists := g.tables[table]; !exists {
		return fmt.Errorf("unknown table %q", table)
	}
	if upstream == table {
		return fmt.Errorf("self-dependency: %s", table)
	}

	if !contains(g.downstreams[upstream], table) {
		g.downstreams[upstream] = append(g.downstreams[upstream], table)
	}
	if !contains(g.upstreams[table], upstream) {
		g.upstreams[table] = append(g.upstreams[table], upstream)
	}
	return nil
}

// Upstreams returns the tables name reads.
func (g *Graph) Upstreams(name string) []string {
	return g.upstreams[name]
}

// Downstreams returns the tables built from name.
func (g *Graph) Downstreams(name string) []string {
	return g.downstreams[name]
}

// Tables returns every table in sorted order.
func (g *Graph) Tables() []string {
	out := make([]string, 0, len(g.tables))
	for name := range g.tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// TableCount returns the number of tables in the graph.
func (g *Graph) TableCount() int {
	return len(g.tables)
}

// DependencyCount returns the number of edges in the graph.
func (g *Graph) DependencyCount() int {
	count := 0
	for _, ds := range g.downstreams {
		count += len(ds)
	}
	return count
}

// HasCycle reports whether the graph contains a dependency cycle, along
// with one offending path.
func (g *Graph) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	cameFrom := make(map[string]string)

	var cyclePath []string

	var dfs func(name string) bool
	dfs = func(name string) bool {
		visited[name] = true
		onStack[name] = true

		for _, next := range g.downstreams[name] {
			if !visited[next] {
				cameFrom[next] = name
				if dfs(next) {
					return true
				}
			} else if onStack[next] {
				cyclePath = []string{next}
				for curr := name; curr != next; curr = cameFrom[curr] {
					cyclePath = append([]string{curr}, cyclePath...)
				}
				cyclePath = append([]string{next}, cyclePath...)
				return true
			}
		}

		onStack[name] = false
		return false
	}

	// Deterministic scan order so the reported cycle is stable.
	for _, name := range g.Tables() {
		if !visited[name] {
			if dfs(name) {
				return true, cyclePath
			}
		}
	}
	return false, nil
}

// TopologicalSort returns tables ordered so every table appears after
// all of its upstreams. Returns an error if the graph has a cycle.
func (g *Graph) TopologicalSort() ([]string, error) {
	if hasCycle, cyclePath := g.HasCycle(); hasCycle {
		return nil, fmt.Errorf("cycle detected: %v", cyclePath)
	}

	visited := make(map[string]bool)
	var result []string

	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		ups := append([]string{}, g.upstreams[name]...)
		sort.Strings(ups)
		for _, up := range ups {
			visit(up)
		}
		result = append(result, name)
	}

	for _, name := range g.Tables() {
		visit(name)
	}
	return result, nil
}

// Levels groups tables by dependency depth: level 0 holds source tables
// with no upstreams, level N tables depend only on earlier levels.
// Returns an error if the graph has a cycle.
func (g *Graph) Levels() ([][]string, error) {
	if hasCycle, cyclePath := g.HasCycle(); hasCycle {
		return nil, fmt.Errorf("cycle detected: %v", cyclePath)
	}

	assigned := make(map[string]int)

	var levelOf func(name string) int
	levelOf = func(name string) int {
		if level, ok := assigned[name]; ok {
			return level
		}
		max := -1
		for _, up := range g.upstreams[name] {
			if l := levelOf(up); l > max {
				max = l
			}
		}
		assigned[name] = max + 1
		return max + 1
	}

	depth := 0
	for _, name := range g.Tables() {
		if l := levelOf(name); l > depth {
			depth = l
		}
	}

	levels := make([][]string, depth+1)
	for name, level := range assigned {
		levels[level] = append(levels[level], name)
	}
	for _, level := range levels {
		sort.Strings(level)
	}
	return levels, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
