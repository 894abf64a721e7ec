package model

import (
	"fmt"
	"slices"
)

// NodeHandle identifies a node inside the graph that owns it.
// Handles are never reused within a graph.
type NodeHandle uint64

// PinHandle identifies a pin inside the node that owns it.
type PinHandle uint32

// PinRef addresses one end of a link within a graph.
type PinRef struct {
	Node NodeHandle `json:"node"`
	Pin  PinHandle  `json:"pin"`
}

// Graph is an arena of nodes. Nodes keep their insertion order, which is the
// order every matching pass iterates in.
type Graph struct {
	Name     string `json:"name"`
	OriginID string `json:"originId"` // shared by every revision of the same graph

	nodes      []*Node
	byHandle   map[NodeHandle]*Node
	nextHandle NodeHandle
	listeners  []func(*Graph)
}

// NewGraph creates a new empty graph.
func NewGraph(name, originID string) *Graph {
	return &Graph{
		Name:       name,
		OriginID:   originID,
		nodes:      make([]*Node, 0),
		byHandle:   make(map[NodeHandle]*Node),
		nextHandle: 1,
	}
}

// Nodes returns the graph's nodes in order. The slice is a copy.
func (g *Graph) Nodes() []*Node {
	return slices.Clone(g.nodes)
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// Node returns the node with the given handle.
func (g *Graph) Node(h NodeHandle) (*Node, bool) {
	n, ok := g.byHandle[h]
	return n, ok
}

// FindNodeByID returns the first node carrying the given stable id.
func (g *Graph) FindNodeByID(id string) (*Node, bool) {
	for _, n := range g.nodes {
		if n.ID == id {
			return n, true
		}
	}
	return nil, false
}

// Contains reports whether n is owned by g.
func (g *Graph) Contains(n *Node) bool {
	return n != nil && n.graph == g
}

// AddNode creates a node in the graph from the given template values.
// Pins are attached with AddPin / CreatePin afterwards.
func (g *Graph) AddNode(id, class, name, title string) *Node {
	n := &Node{
		ID:      id,
		Class:   class,
		Name:    name,
		Title:   title,
		handle:  g.nextHandle,
		graph:   g,
		nextPin: 1,
	}
	g.nextHandle++
	g.nodes = append(g.nodes, n)
	g.byHandle[n.handle] = n
	return n
}

// RemoveNode breaks all of the node's links and removes it from the graph.
func (g *Graph) RemoveNode(n *Node) {
	if !g.Contains(n) {
		return
	}
	n.BreakAllNodeLinks()
	g.nodes = slices.DeleteFunc(g.nodes, func(other *Node) bool { return other == n })
	delete(g.byHandle, n.handle)
	n.graph = nil
}

// Clear removes every node from the graph.
func (g *Graph) Clear() {
	for _, n := range g.nodes {
		n.graph = nil
	}
	g.nodes = g.nodes[:0]
	g.byHandle = make(map[NodeHandle]*Node)
}

// DuplicateNode copies src (which may live in any graph) into g. The copy has
// the same identity, position, comment and an identical pin structure, but no
// links.
func (g *Graph) DuplicateNode(src *Node) *Node {
	dup := g.AddNode(src.ID, src.Class, src.Name, src.Title)
	dup.X, dup.Y = src.X, src.Y
	dup.Comment = src.Comment
	for _, p := range src.pins {
		cp := dup.CreatePin(p.Direction, p.Type, p.Name)
		cp.Hidden = p.Hidden
		cp.CopyDefaults(p)
	}
	if len(dup.pins) != len(src.pins) {
		panic(fmt.Sprintf("model: duplicate of node %q has %d pins, source has %d", src.ID, len(dup.pins), len(src.pins)))
	}
	return dup
}

// CloneInto replaces the contents of dst with a copy of g, links included.
// It returns a map from every node of g to its copy in dst.
func (g *Graph) CloneInto(dst *Graph) map[*Node]*Node {
	dst.Clear()
	mapping := make(map[*Node]*Node, len(g.nodes))
	for _, n := range g.nodes {
		mapping[n] = dst.DuplicateNode(n)
	}

	for _, n := range g.nodes {
		copyNode := mapping[n]
		for i, p := range n.pins {
			for _, linked := range p.LinkedTo() {
				other, ok := mapping[linked.node]
				if !ok {
					continue
				}
				idx := linked.node.PinIndex(linked)
				copyNode.pins[i].MakeLinkTo(other.pins[idx])
			}
		}
	}

	dst.NotifyGraphChanged()
	return mapping
}

// Clone returns a detached copy of g along with the node mapping.
func (g *Graph) Clone() (*Graph, map[*Node]*Node) {
	c := NewGraph(g.Name, g.OriginID)
	mapping := g.CloneInto(c)
	return c, mapping
}

// Subscribe registers a listener for structural change notifications.
func (g *Graph) Subscribe(fn func(*Graph)) {
	g.listeners = append(g.listeners, fn)
}

// NotifyGraphChanged tells every listener that the graph changed.
func (g *Graph) NotifyGraphChanged() {
	for _, fn := range g.listeners {
		fn(g)
	}
}

// Links returns every link once, as (output side, input side) pairs when the
// directions allow it, otherwise in node order.
func (g *Graph) Links() [][2]*Pin {
	seen := make(map[[2]*Pin]bool)
	var links [][2]*Pin
	for _, n := range g.nodes {
		for _, p := range n.pins {
			for _, other := range p.LinkedTo() {
				pair := [2]*Pin{p, other}
				if p.Direction == DirectionInput && other.Direction == DirectionOutput {
					pair = [2]*Pin{other, p}
				}
				if seen[pair] || seen[[2]*Pin{pair[1], pair[0]}] {
					continue
				}
				seen[pair] = true
				links = append(links, pair)
			}
		}
	}
	return links
}

func (g *Graph) resolve(ref PinRef) *Pin {
	n, ok := g.byHandle[ref.Node]
	if !ok {
		return nil
	}
	return n.pinByHandle(ref.Pin)
}
