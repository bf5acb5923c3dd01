package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGraph(nodes []string, deps map[string][]string) *DirectedAcyclicGraph[string] {
	return NewDirectedAcyclicGraph(nodes, func(n string) []string { return deps[n] })
}

func TestDirectedAcyclicGraph_Seeds(t *testing.T) {
	g := newTestGraph(
		[]string{"app", "common", "util", "other"},
		map[string][]string{"app": {"common"}, "common": {"util"}},
	)
	assert.Equal(t, []string{"util", "other"}, g.Seeds())
}

func TestDirectedAcyclicGraph_TopologicalOrder(t *testing.T) {
	tests := []struct {
		name  string
		nodes []string
		deps  map[string][]string
	}{
		{
			name:  "chain",
			nodes: []string{"app", "common", "util"},
			deps:  map[string][]string{"app": {"common"}, "common": {"util"}},
		},
		{
			name:  "diamond",
			nodes: []string{"top", "left", "right", "bottom"},
			deps: map[string][]string{
				"top":   {"left", "right"},
				"left":  {"bottom"},
				"right": {"bottom"},
			},
		},
		{
			name:  "disconnected",
			nodes: []string{"a", "b", "c"},
			deps:  map[string][]string{"a": {"c"}},
		},
		{
			name:  "unknown dependency is ignored",
			nodes: []string{"a", "b"},
			deps:  map[string][]string{"a": {"missing", "b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGraph(tt.nodes, tt.deps)
			order, err := g.TopologicalOrder()
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.nodes, order)

			position := make(map[string]int)
			for i, n := range order {
				position[n] = i
			}
			for n, deps := range tt.deps {
				for _, dep := range deps {
					if _, ok := position[dep]; !ok {
						continue
					}
					assert.Less(t, position[dep], position[n], "%s should come before %s", dep, n)
				}
			}
		})
	}
}

func TestDirectedAcyclicGraph_Cycle(t *testing.T) {
	g := newTestGraph(
		[]string{"a", "b", "c", "d"},
		map[string][]string{"a": {"b"}, "b": {"c"}, "c": {"a"}},
	)

	_, err := g.TopologicalOrder()
	assert.ErrorIs(t, err, ErrCycle)

	cycle := g.FindCycle()
	require.Len(t, cycle, 4)
	assert.Equal(t, cycle[0], cycle[len(cycle)-1])
	assert.ElementsMatch(t, []string{"a", "b", "c"}, cycle[:3])
}

func TestDirectedAcyclicGraph_NoCycle(t *testing.T) {
	g := newTestGraph([]string{"a", "b"}, map[string][]string{"a": {"b"}})
	assert.Nil(t, g.FindCycle())
}

func TestDirectedAcyclicGraph_SelfLoop(t *testing.T) {
	g := newTestGraph([]string{"a"}, map[string][]string{"a": {"a"}})
	_, err := g.TopologicalOrder()
	assert.ErrorIs(t, err, ErrCycle)
	assert.Equal(t, []string{"a", "a"}, g.FindCycle())
}

func TestDirectedAcyclicGraph_TransitiveClosure(t *testing.T) {
	g := newTestGraph(
		[]string{"app", "common", "util", "other"},
		map[string][]string{"app": {"common", "util"}, "common": {"util"}},
	)

	assert.Equal(t, []string{"app", "common", "util"}, g.TransitiveClosure("app"))
	assert.Equal(t, []string{"util"}, g.TransitiveClosure("util"))
}

func TestDirectedAcyclicGraph_DisjointGraphs(t *testing.T) {
	g := newTestGraph(
		[]string{"a", "b", "c", "d", "e"},
		map[string][]string{"a": {"b"}, "c": {"b"}, "d": {"e"}},
	)
	assert.Equal(t, [][]string{{"a", "b", "c"}, {"d", "e"}}, g.DisjointGraphs())
}

func TestDirectedAcyclicGraph_DuplicateNodes(t *testing.T) {
	g := newTestGraph([]string{"a", "a", "b"}, nil)
	assert.Equal(t, []string{"a", "b"}, g.Nodes())
}
