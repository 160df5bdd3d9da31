package graph

import (
	"strings"
	"testing"
)

func buildChain(t *testing.T, tables ...string) *Graph {
	t.Helper()
	g := New()
	for _, name := range tables {
		g.AddTable(name)
	}
	for i := 1; i < len(tables); i++ {
		if err := g.AddDependency(tables[i-1], tables[i]); err != nil {
			t.Fatalf("AddDependency(%s, %s): %v", tables[i-1], tables[i], err)
		}
	}
	return g
}

func TestAddTableIdempotent(t *testing.T) {
	g := New()
	g.AddTable("src.raw")
	g.AddTable("src.raw")

	if g.TableCount() != 1 {
		t.Errorf("expected 1 table, got %d", g.TableCount())
	}
}

func TestAddDependency(t *testing.T) {
	g := buildChain(t, "src.raw", "rpt.base")

	if got := g.Downstreams("src.raw"); len(got) != 1 || got[0] != "rpt.base" {
		t.Errorf("unexpected downstreams: %v", got)
	}
	if got := g.Upstreams("rpt.base"); len(got) != 1 || got[0] != "src.raw" {
		t.Errorf("unexpected upstreams: %v", got)
	}
}

func TestAddDependencyUnknownTable(t *testing.T) {
	g := New()
	g.AddTable("src.raw")

	if err := g.AddDependency("src.raw", "rpt.base"); err == nil {
		t.Error("expected error for unknown table")
	}
	if err := g.AddDependency("rpt.base", "src.raw"); err == nil {
		t.Error("expected error for unknown upstream")
	}
}

func TestAddDependencySelf(t *testing.T) {
	g := New()
	g.AddTable("rpt.base")

	err := g.AddDependency("rpt.base", "rpt.base")
	if err == nil {
		t.Fatal("expected error for self-dependency")
	}
	if !strings.Contains(err.Error(), "self-dependency") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAddDependencyDuplicate(t *testing.T) {
	g := buildChain(t, "src.raw", "rpt.base")
	if err := g.AddDependency("src.raw", "rpt.base"); err != nil {
		t.Fatalf("duplicate AddDependency: %v", err)
	}

	if g.DependencyCount() != 1 {
		t.Errorf("expected 1 dependency, got %d", g.DependencyCount())
	}
}

func TestHasCycleNone(t *testing.T) {
	g := buildChain(t, "src.raw", "rpt.base", "rpt.v_base")

	if hasCycle, path := g.HasCycle(); hasCycle {
		t.Errorf("unexpected cycle: %v", path)
	}
}

func TestHasCycle(t *testing.T) {
	g := buildChain(t, "db.a", "db.b", "db.c")
	if err := g.AddDependency("db.c", "db.a"); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}

	hasCycle, path := g.HasCycle()
	if !hasCycle {
		t.Fatal("expected a cycle")
	}
	if len(path) < 2 || path[0] != path[len(path)-1] {
		t.Errorf("cycle path should start and end at the same table: %v", path)
	}
}

func TestTopologicalSort(t *testing.T) {
	g := New()
	for _, name := range []string{"src.raw", "src.ref", "rpt.base", "rpt.v_base"} {
		g.AddTable(name)
	}
	deps := [][2]string{
		{"src.raw", "rpt.base"},
		{"src.ref", "rpt.base"},
		{"rpt.base", "rpt.v_base"},
	}
	for _, d := range deps {
		if err := g.AddDependency(d[0], d[1]); err != nil {
			t.Fatalf("AddDependency: %v", err)
		}
	}

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort: %v", err)
	}
	if len(order) != 4 {
		t.Fatalf("expected 4 tables, got %d", len(order))
	}

	pos := make(map[string]int)
	for i, name := range order {
		pos[name] = i
	}
	for _, d := range deps {
		if pos[d[0]] >= pos[d[1]] {
			t.Errorf("%s should come before %s in %v", d[0], d[1], order)
		}
	}
}

func TestTopologicalSortCycle(t *testing.T) {
	g := buildChain(t, "db.a", "db.b")
	if err := g.AddDependency("db.b", "db.a"); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}

	if _, err := g.TopologicalSort(); err == nil {
		t.Error("expected cycle error")
	}
}

func TestLevels(t *testing.T) {
	g := New()
	for _, name := range []string{"src.raw", "src.ref", "rpt.base", "stg.enriched", "rpt.v_base"} {
		g.AddTable(name)
	}
	deps := [][2]string{
		{"src.raw", "rpt.base"},
		{"src.ref", "stg.enriched"},
		{"rpt.base", "stg.enriched"},
		{"stg.enriched", "rpt.v_base"},
	}
	for _, d := range deps {
		if err := g.AddDependency(d[0], d[1]); err != nil {
			t.Fatalf("AddDependency: %v", err)
		}
	}

	levels, err := g.Levels()
	if err != nil {
		t.Fatalf("Levels: %v", err)
	}
	if len(levels) != 4 {
		t.Fatalf("expected 4 levels, got %d: %v", len(levels), levels)
	}

	want := [][]string{
		{"src.raw", "src.ref"},
		{"rpt.base"},
		{"stg.enriched"},
		{"rpt.v_base"},
	}
	for i, level := range want {
		if len(levels[i]) != len(level) {
			t.Fatalf("level %d: expected %v, got %v", i, level, levels[i])
		}
		for j, name := range level {
			if levels[i][j] != name {
				t.Errorf("level %d: expected %v, got %v", i, level, levels[i])
			}
		}
	}
}

func TestLevelsSingleTable(t *testing.T) {
	g := New()
	g.AddTable("src.raw")

	levels, err := g.Levels()
	if err != nil {
		t.Fatalf("Levels: %v", err)
	}
	if len(levels) != 1 || len(levels[0]) != 1 || levels[0][0] != "src.raw" {
		t.Errorf("unexpected levels: %v", levels)
	}
}
