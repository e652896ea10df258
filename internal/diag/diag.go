// Package diag provides a whole-graph diagnostic view built on
// gonum.org/v1/gonum's graph/topo, surfacing strongly-connected components
// before a build is attempted, as an auxiliary "nbuild -analyze"
// view — separate from the runtime, predicate-gated DFS cycle check in
// internal/scheduler, which must stay cheap and fire mid-build rather
// than walk the whole graph.
package diag

import (
	"fmt"
	"io"

	"github.com/nodegraph/nbuild/internal/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// gnode adapts a *graph.Node into a gonum graph.Node.
type gnode struct {
	id int64
	n  *graph.Node
}

func (g gnode) ID() int64 { return g.id }

// Analysis is the result of running AnalyzeGraph.
type Analysis struct {
	// StronglyConnected holds every strongly-connected component with more
	// than one member, i.e. every cyclic knot in the graph, named by node.
	StronglyConnected [][]string
	// TopoOrder is a valid build order when StronglyConnected is empty.
	TopoOrder []string
}

// AnalyzeGraph builds a gonum directed graph over g's static+dynamic edges
// and runs topo.TarjanSCC then topo.Sort, reporting cyclic components and
// (when acyclic) a valid topological build order.
func AnalyzeGraph(g *graph.Graph) (Analysis, error) {
	dg := simple.NewDirectedGraph()
	ids := make(map[*graph.Node]int64, g.NodeCount())
	nodes := make(map[int64]*graph.Node, g.NodeCount())

	for i, n := range g.AllNodes() {
		id := int64(i)
		ids[n] = id
		nodes[id] = n
		dg.AddNode(gnode{id: id, n: n})
	}
	for _, n := range g.AllNodes() {
		for _, deps := range [][]graph.Dependency{n.StaticDeps, n.DynamicDeps} {
			for _, dep := range deps {
				dependent, dependency := ids[n], ids[dep.Node]
				if dependent == dependency {
					continue
				}
				// dependency -> dependent, so topo.Sort lists dependencies first.
				dg.SetEdge(dg.NewEdge(dg.Node(dependency), dg.Node(dependent)))
			}
		}
	}

	var a Analysis
	for _, component := range topo.TarjanSCC(dg) {
		if len(component) < 2 {
			continue
		}
		names := make([]string, len(component))
		for i, c := range component {
			names[i] = nodes[c.ID()].Name
		}
		a.StronglyConnected = append(a.StronglyConnected, names)
	}

	if len(a.StronglyConnected) == 0 {
		order, err := topo.Sort(dg)
		if err != nil {
			return a, err
		}
		a.TopoOrder = make([]string, len(order))
		for i, n := range order {
			a.TopoOrder[i] = nodes[n.ID()].Name
		}
	}

	return a, nil
}

// WriteReport prints a human-readable summary of a to w.
func WriteReport(w io.Writer, a Analysis) {
	if len(a.StronglyConnected) == 0 {
		fmt.Fprintf(w, "no cycles; %d nodes in a valid build order\n", len(a.TopoOrder))
		return
	}
	fmt.Fprintf(w, "%d strongly-connected component(s) (cycles):\n", len(a.StronglyConnected))
	for i, c := range a.StronglyConnected {
		fmt.Fprintf(w, "  scc %d:\n", i)
		for _, name := range c {
			fmt.Fprintf(w, "    %s\n", name)
		}
	}
}
