package model

import (
	"slices"
	"sort"
)

// Document is a named collection of graphs. A revision of an asset is one
// document; the three revisions of a merge share graph names.
type Document struct {
	Name   string
	graphs []*Graph
}

// NewDocument creates an empty document.
func NewDocument(name string) *Document {
	return &Document{Name: name}
}

// AddGraph appends g to the document, replacing any graph with the same name.
func (d *Document) AddGraph(g *Graph) {
	for i, existing := range d.graphs {
		if existing.Name == g.Name {
			d.graphs[i] = g
			return
		}
	}
	d.graphs = append(d.graphs, g)
}

// NewGraph creates an empty graph in the document.
func (d *Document) NewGraph(name, originID string) *Graph {
	g := NewGraph(name, originID)
	d.AddGraph(g)
	return g
}

// Graph returns the graph with the given name.
func (d *Document) Graph(name string) *Graph {
	if d == nil {
		return nil
	}
	for _, g := range d.graphs {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// Graphs returns the document's graphs in insertion order.
func (d *Document) Graphs() []*Graph {
	if d == nil {
		return nil
	}
	return slices.Clone(d.graphs)
}

// GraphNames returns the document's graph names in insertion order.
func (d *Document) GraphNames() []string {
	if d == nil {
		return nil
	}
	names := make([]string, 0, len(d.graphs))
	for _, g := range d.graphs {
		names = append(names, g.Name)
	}
	return names
}

// RemoveGraph drops the named graph from the document.
func (d *Document) RemoveGraph(name string) bool {
	before := len(d.graphs)
	d.graphs = slices.DeleteFunc(d.graphs, func(g *Graph) bool { return g.Name == name })
	return len(d.graphs) != before
}

// UnionGraphNames returns every graph name present in any of the documents,
// in order of first appearance. Nil documents are skipped.
func UnionGraphNames(docs ...*Document) []string {
	seen := make(map[string]bool)
	var names []string
	for _, d := range docs {
		for _, name := range d.GraphNames() {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// SortedGraphNames returns the document's graph names sorted alphabetically.
func (d *Document) SortedGraphNames() []string {
	names := d.GraphNames()
	sort.Strings(names)
	return names
}
