package model

import (
	"slices"
)

// Node is a unit of a graph: an identity, a position, an optional comment and
// an ordered set of pins.
type Node struct {
	ID      string  `json:"id"`    // stable id
	Class   string  `json:"class"` // node type
	Name    string  `json:"name"`  // unqualified name
	Title   string  `json:"title"` // full display title
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Comment string  `json:"comment,omitempty"`

	handle  NodeHandle
	graph   *Graph
	pins    []*Pin
	nextPin PinHandle
}

// Handle returns the node's handle in its graph.
func (n *Node) Handle() NodeHandle {
	return n.handle
}

// Graph returns the graph owning the node, or nil once it has been removed.
func (n *Node) Graph() *Graph {
	return n.graph
}

// Pins returns the node's pins in order. The slice is a copy.
func (n *Node) Pins() []*Pin {
	return slices.Clone(n.pins)
}

// PinIndex returns the position of p among the node's pins, or -1.
func (n *Node) PinIndex(p *Pin) int {
	return slices.Index(n.pins, p)
}

// CreatePin appends a new unlinked pin to the node.
func (n *Node) CreatePin(dir Direction, typ PinType, name string) *Pin {
	p := &Pin{
		Name:      name,
		Direction: dir,
		Type:      typ,
		handle:    n.nextPin,
		node:      n,
	}
	n.nextPin++
	n.pins = append(n.pins, p)
	return p
}

// RemovePin breaks the pin's links and detaches it from the node.
func (n *Node) RemovePin(p *Pin) bool {
	idx := n.PinIndex(p)
	if idx < 0 {
		return false
	}
	p.BreakAllPinLinks()
	n.pins = slices.Delete(n.pins, idx, idx+1)
	p.node = nil
	return true
}

// FindPin returns the first pin with the given name and direction.
func (n *Node) FindPin(name string, dir Direction) *Pin {
	for _, p := range n.pins {
		if p.Name == name && p.Direction == dir {
			return p
		}
	}
	return nil
}

// FindPinByName returns the first pin with the given name in any direction.
func (n *Node) FindPinByName(name string) *Pin {
	for _, p := range n.pins {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// BreakAllNodeLinks breaks every link of every pin of the node.
func (n *Node) BreakAllNodeLinks() {
	for _, p := range n.pins {
		p.BreakAllPinLinks()
	}
}

// LinkCount returns the number of link ends attached to the node.
func (n *Node) LinkCount() int {
	count := 0
	for _, p := range n.pins {
		count += len(p.links)
	}
	return count
}

func (n *Node) pinByHandle(h PinHandle) *Pin {
	for _, p := range n.pins {
		if p.handle == h {
			return p
		}
	}
	return nil
}

// IsExactMatch reports whether two nodes are the same node in two revisions:
// same class and either the same stable id, or the same unqualified name when
// both graphs come from the same origin.
func IsExactMatch(a, b *Node) bool {
	if a == nil || b == nil || a.Class != b.Class {
		return false
	}
	if a.ID == b.ID {
		return true
	}
	return a.Name == b.Name && sameOrigin(a.graph, b.graph)
}

// IsWeakMatch relaxes IsExactMatch to also accept nodes of the same class with
// the same display title.
func IsWeakMatch(a, b *Node) bool {
	if IsExactMatch(a, b) {
		return true
	}
	return a != nil && b != nil && a.Class == b.Class && a.Title == b.Title
}

func sameOrigin(a, b *Graph) bool {
	return a != nil && b != nil && a.OriginID != "" && a.OriginID == b.OriginID
}
