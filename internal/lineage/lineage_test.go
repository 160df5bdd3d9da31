package lineage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TongWu/tabletracer/internal/extract"
)

// fakeGraph resolves writers and reads from an in-memory adjacency map.
// Every table present in the map has exactly one writer; its read set is
// the mapped slice. Tables absent from the map have no writer.
type fakeGraph struct {
	upstreams map[string][]string
	lookups   map[string]int
}

func newFakeGraph(upstreams map[string][]string) *fakeGraph {
	return &fakeGraph{upstreams: upstreams, lookups: make(map[string]int)}
}

func (g *fakeGraph) WritersFor(fqtn string) []extract.Writer {
	g.lookups[fqtn]++
	if _, ok := g.upstreams[fqtn]; !ok {
		return nil
	}
	return []extract.Writer{{Path: fqtn + ".py", Kind: extract.KindSpark}}
}

func (g *fakeGraph) ReadTables(w extract.Writer) []string {
	return g.upstreams[w.Path[:len(w.Path)-3]]
}

// multiWriter supports tables with more than one writer, each with its
// own read set.
type multiWriter struct {
	writers map[string][]extract.Writer
	reads   map[extract.Writer][]string
}

func (m *multiWriter) WritersFor(fqtn string) []extract.Writer { return m.writers[fqtn] }
func (m *multiWriter) ReadTables(w extract.Writer) []string    { return m.reads[w] }

func enumerate(t *testing.T, e *Enumerator, target string) Result {
	t.Helper()
	res, err := e.Enumerate(context.Background(), target)
	require.NoError(t, err)
	return res
}

func TestEnumerate_NoWriterIsSource(t *testing.T) {
	e := New(newFakeGraph(nil), newFakeGraph(nil), Options{})
	res := enumerate(t, e, "db.orphan")

	assert.Equal(t, [][]string{{"db.orphan"}}, res.Paths)
	assert.False(t, res.Truncated)

	rows := Shape("db.orphan", res.Paths)
	require.Len(t, rows, 1)
	assert.Equal(t, "db.orphan", rows[0].Target)
	assert.Equal(t, "db.orphan", rows[0].Source)
	assert.Empty(t, rows[0].Layers)
}

func TestEnumerate_LinearChain(t *testing.T) {
	g := newFakeGraph(map[string][]string{
		"db.a": {"db.b"},
		"db.b": {"db.c"},
	})
	e := New(g, g, Options{})
	res := enumerate(t, e, "db.a")

	require.Equal(t, [][]string{{"db.a", "db.b", "db.c"}}, res.Paths)

	rows := Shape("db.a", res.Paths)
	require.Len(t, rows, 1)
	assert.Equal(t, Row{Target: "db.a", Layers: []string{"db.b"}, Source: "db.c"}, rows[0])
}

func TestEnumerate_Diamond(t *testing.T) {
	g := newFakeGraph(map[string][]string{
		"db.d": {"db.c", "db.b"},
		"db.b": {"db.a"},
		"db.c": {"db.a"},
	})
	e := New(g, g, Options{})
	res := enumerate(t, e, "db.d")

	// Two distinct paths, branched in lexicographic upstream order.
	assert.Equal(t, [][]string{
		{"db.d", "db.b", "db.a"},
		{"db.d", "db.c", "db.a"},
	}, res.Paths)
}

func TestEnumerate_DiamondReusesUpstreamCache(t *testing.T) {
	g := newFakeGraph(map[string][]string{
		"db.d": {"db.b", "db.c"},
		"db.b": {"db.a"},
		"db.c": {"db.a"},
	})
	e := New(g, g, Options{})
	enumerate(t, e, "db.d")

	// db.a is reached through both branches but resolved only once.
	assert.Equal(t, 1, g.lookups["db.a"])
}

func TestEnumerate_CycleTermination(t *testing.T) {
	g := newFakeGraph(map[string][]string{
		"db.a": {"db.b"},
		"db.b": {"db.a"},
	})
	e := New(g, g, Options{})
	res := enumerate(t, e, "db.a")

	assert.Equal(t, [][]string{{"db.a", "db.b", "db.a"}}, res.Paths)
	assert.Equal(t, 1, res.Cycles)
}

func TestEnumerate_SelfReferencingWriter(t *testing.T) {
	g := newFakeGraph(map[string][]string{
		"db.v": {"db.v"},
	})
	e := New(g, g, Options{})
	res := enumerate(t, e, "db.v")

	assert.Equal(t, [][]string{{"db.v", "db.v"}}, res.Paths)
	assert.Equal(t, 1, res.Cycles)
}

func TestEnumerate_AmbiguousWriterUnion(t *testing.T) {
	w1 := extract.Writer{Path: "jobs/old.py", Kind: extract.KindSpark}
	w2 := extract.Writer{Path: "views/new.sql", Kind: extract.KindView}
	m := &multiWriter{
		writers: map[string][]extract.Writer{"db.t": {w1, w2}},
		reads: map[extract.Writer][]string{
			w1: {"db.x"},
			w2: {"db.y"},
		},
	}
	e := New(m, m, Options{})
	res := enumerate(t, e, "db.t")

	assert.Equal(t, [][]string{
		{"db.t", "db.x"},
		{"db.t", "db.y"},
	}, res.Paths)
}

func TestEnumerate_Deterministic(t *testing.T) {
	g := newFakeGraph(map[string][]string{
		"db.top": {"db.z", "db.m", "db.a"},
		"db.m":   {"db.z", "db.a"},
	})
	e := New(g, g, Options{})
	first := enumerate(t, e, "db.top")
	second := enumerate(t, New(g, g, Options{}), "db.top")

	assert.Equal(t, first.Paths, second.Paths)
}

func TestEnumerate_TargetCanonicalized(t *testing.T) {
	g := newFakeGraph(map[string][]string{
		"db.a": {"db.b"},
	})
	e := New(g, g, Options{})
	res := enumerate(t, e, "  DB.A ")

	assert.Equal(t, "db.a", res.Target)
	assert.Equal(t, [][]string{{"db.a", "db.b"}}, res.Paths)
}

func TestEnumerate_DepthBudget(t *testing.T) {
	g := newFakeGraph(map[string][]string{
		"db.a0": {"db.a1"},
		"db.a1": {"db.a2"},
		"db.a2": {"db.a3"},
		"db.a3": {"db.a4"},
		"db.a4": {"db.a5"},
	})
	e := New(g, g, Options{MaxDepth: 3})
	res := enumerate(t, e, "db.a0")

	assert.True(t, res.Truncated)
	require.Len(t, res.Paths, 1)
	assert.Equal(t, []string{"db.a0", "db.a1", "db.a2", "db.a3"}, res.Paths[0])
}

func TestEnumerate_PathBudget(t *testing.T) {
	g := newFakeGraph(map[string][]string{
		"db.r": {"db.x", "db.y", "db.z"},
	})
	e := New(g, g, Options{MaxPaths: 2})
	res := enumerate(t, e, "db.r")

	assert.True(t, res.Truncated)
	assert.Equal(t, [][]string{
		{"db.r", "db.x"},
		{"db.r", "db.y"},
	}, res.Paths)
}

func TestEnumerate_BudgetScopedPerTarget(t *testing.T) {
	g := newFakeGraph(map[string][]string{
		"db.wide":   {"db.x", "db.y", "db.z"},
		"db.narrow": {"db.x"},
	})
	e := New(g, g, Options{MaxPaths: 2})

	wide := enumerate(t, e, "db.wide")
	assert.True(t, wide.Truncated)

	narrow := enumerate(t, e, "db.narrow")
	assert.False(t, narrow.Truncated)
	assert.Equal(t, [][]string{{"db.narrow", "db.x"}}, narrow.Paths)
}

func TestEnumerate_ContextCancelled(t *testing.T) {
	g := newFakeGraph(map[string][]string{
		"db.a": {"db.b"},
	})
	e := New(g, g, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Enumerate(ctx, "db.a")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUnionMerge(t *testing.T) {
	got := UnionMerge([][]string{{"db.b", "db.a"}, {"db.a", "db.c"}})
	assert.Equal(t, []string{"db.a", "db.b", "db.c"}, got)

	assert.Nil(t, UnionMerge(nil))
}

func TestIntersectMerge(t *testing.T) {
	got := IntersectMerge([][]string{{"db.a", "db.b"}, {"db.b", "db.c"}})
	assert.Equal(t, []string{"db.b"}, got)

	assert.Nil(t, IntersectMerge(nil))
	assert.Nil(t, IntersectMerge([][]string{{"db.a"}, {"db.b"}}))
}
