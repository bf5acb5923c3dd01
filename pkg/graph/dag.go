package graph

import (
	"errors"
	"fmt"
)

// ErrCycle is returned when a graph that must be acyclic has a cycle.
var ErrCycle = errors.New("graph has a cycle")

// DirectedAcyclicGraph is a directed graph whose edges point from a node to the nodes
// it depends on. Edges to nodes outside the node list are ignored.
type DirectedAcyclicGraph[N comparable] struct {
	nodes []N
	edges map[N][]N
}

// NewDirectedAcyclicGraph evaluates edges once for every node.
func NewDirectedAcyclicGraph[N comparable](nodes []N, edges func(N) []N) *DirectedAcyclicGraph[N] {
	known := make(map[N]struct{}, len(nodes))
	unique := make([]N, 0, len(nodes))
	for _, n := range nodes {
		if _, ok := known[n]; ok {
			continue
		}
		known[n] = struct{}{}
		unique = append(unique, n)
	}

	g := &DirectedAcyclicGraph[N]{
		nodes: unique,
		edges: make(map[N][]N, len(unique)),
	}
	for _, n := range unique {
		for _, target := range edges(n) {
			if _, ok := known[target]; ok {
				g.edges[n] = append(g.edges[n], target)
			}
		}
	}
	return g
}

// Nodes returns the nodes in construction order.
func (g *DirectedAcyclicGraph[N]) Nodes() []N {
	return append([]N(nil), g.nodes...)
}

// Edges returns the dependencies of n.
func (g *DirectedAcyclicGraph[N]) Edges(n N) []N {
	return append([]N(nil), g.edges[n]...)
}

// Seeds returns the nodes with no outgoing edges.
func (g *DirectedAcyclicGraph[N]) Seeds() []N {
	var seeds []N
	for _, n := range g.nodes {
		if len(g.edges[n]) == 0 {
			seeds = append(seeds, n)
		}
	}
	return seeds
}

// TopologicalOrder returns every node after all of its dependencies. Each round emits
// the nodes whose dependencies were already emitted; a round that emits nothing means
// the remaining nodes sit on or behind a cycle.
func (g *DirectedAcyclicGraph[N]) TopologicalOrder() ([]N, error) {
	emitted := make(map[N]struct{}, len(g.nodes))
	order := make([]N, 0, len(g.nodes))
	remaining := g.Nodes()

	for len(remaining) > 0 {
		var blocked []N
		for _, n := range remaining {
			if g.ready(n, emitted) {
				emitted[n] = struct{}{}
				order = append(order, n)
			} else {
				blocked = append(blocked, n)
			}
		}
		if len(blocked) == len(remaining) {
			return nil, fmt.Errorf("%w: %v", ErrCycle, g.FindCycle())
		}
		remaining = blocked
	}
	return order, nil
}

func (g *DirectedAcyclicGraph[N]) ready(n N, emitted map[N]struct{}) bool {
	for _, dep := range g.edges[n] {
		if _, ok := emitted[dep]; !ok {
			return false
		}
	}
	return true
}

// TransitiveClosure returns n followed by every node reachable from it, breadth first.
func (g *DirectedAcyclicGraph[N]) TransitiveClosure(n N) []N {
	visited := map[N]struct{}{n: {}}
	result := []N{n}
	for i := 0; i < len(result); i++ {
		for _, dep := range g.edges[result[i]] {
			if _, ok := visited[dep]; ok {
				continue
			}
			visited[dep] = struct{}{}
			result = append(result, dep)
		}
	}
	return result
}

// FindCycle returns the first cycle found as a path whose last element repeats its
// first, or nil when the graph is acyclic.
func (g *DirectedAcyclicGraph[N]) FindCycle() []N {
	visited := make(map[N]bool)
	onStack := make(map[N]bool)
	var path []N
	var cycle []N

	var visit func(N) bool
	visit = func(n N) bool {
		visited[n] = true
		onStack[n] = true
		path = append(path, n)

		for _, dep := range g.edges[n] {
			if onStack[dep] {
				for i, p := range path {
					if p == dep {
						cycle = append(append([]N(nil), path[i:]...), dep)
						break
					}
				}
				return true
			}
			if !visited[dep] && visit(dep) {
				return true
			}
		}

		onStack[n] = false
		path = path[:len(path)-1]
		return false
	}

	for _, n := range g.nodes {
		if !visited[n] && visit(n) {
			return cycle
		}
	}
	return nil
}

// DisjointGraphs partitions the nodes into weakly connected components.
func (g *DirectedAcyclicGraph[N]) DisjointGraphs() [][]N {
	u := NewUnionFind(g.nodes...)
	for _, n := range g.nodes {
		for _, dep := range g.edges[n] {
			u.Union(n, dep)
		}
	}
	return u.Sets()
}
