// Package cycles finds feedback loops in the links of a node graph. A merge
// can combine two acyclic revisions into a cyclic result, so merged graphs
// are checked before they are written.
package cycles

import (
	"cmp"
	"slices"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/ritzau/merge-assist/pkg/model"
)

// Cycle is a set of nodes that reach each other through output -> input
// links. Nodes are ordered by handle.
type Cycle struct {
	Nodes []*model.Node
}

// Titles returns the node titles of the cycle.
func (c Cycle) Titles() []string {
	titles := make([]string, len(c.Nodes))
	for i, n := range c.Nodes {
		titles[i] = n.Title
	}
	return titles
}

// FindLinkCycles returns every cycle in g, including nodes linked to
// themselves. Links between pins of the same direction are ignored.
func FindLinkCycles(g *model.Graph) []Cycle {
	if g == nil {
		return nil
	}

	dg := simple.NewDirectedGraph()
	for _, n := range g.Nodes() {
		dg.AddNode(simple.Node(int64(n.Handle())))
	}

	selfLinked := make(map[model.NodeHandle]bool)
	for _, l := range g.Links() {
		from, to := l[0], l[1]
		if from.Direction != model.DirectionOutput || to.Direction != model.DirectionInput {
			continue
		}
		src, dst := from.OwningNode(), to.OwningNode()
		if src == dst {
			selfLinked[src.Handle()] = true
			continue
		}
		dg.SetEdge(dg.NewEdge(simple.Node(int64(src.Handle())), simple.Node(int64(dst.Handle()))))
	}

	var out []Cycle
	for _, n := range g.Nodes() {
		if selfLinked[n.Handle()] {
			out = append(out, Cycle{Nodes: []*model.Node{n}})
		}
	}
	// Every component of more than one node contains a cycle.
	for _, scc := range topo.TarjanSCC(dg) {
		if len(scc) < 2 {
			continue
		}
		c := Cycle{Nodes: make([]*model.Node, 0, len(scc))}
		for _, gn := range scc {
			if n, ok := g.Node(model.NodeHandle(gn.ID())); ok {
				c.Nodes = append(c.Nodes, n)
			}
		}
		slices.SortFunc(c.Nodes, func(a, b *model.Node) int {
			return cmp.Compare(a.Handle(), b.Handle())
		})
		out = append(out, c)
	}
	slices.SortStableFunc(out, func(a, b Cycle) int {
		return cmp.Compare(a.Nodes[0].Handle(), b.Nodes[0].Handle())
	})
	return out
}

// HasCycles reports whether g has any link cycle.
func HasCycles(g *model.Graph) bool {
	return len(FindLinkCycles(g)) > 0
}
