// Package graph provides small generic graph helpers used to order and group
// dependency graphs.
//
// UnionFind is a disjoint-set with path compression and union by rank.
// DirectedAcyclicGraph computes seeds, a dependencies-first topological order, the
// transitive closure of a node, cycles and connected components.
//
// Both are pure: they never mutate the inputs they were built from.
//
// # Usage Example
//
//	modules := []string{"app", "common", "util"}
//	deps := map[string][]string{"app": {"common"}, "common": {"util"}}
//
//	g := graph.NewDirectedAcyclicGraph(modules, func(n string) []string { return deps[n] })
//	order, err := g.TopologicalOrder() // util, common, app
//	if errors.Is(err, graph.ErrCycle) {
//		fmt.Println(strings.Join(g.FindCycle(), " -> "))
//	}
package graph
