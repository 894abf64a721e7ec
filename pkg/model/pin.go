package model

import (
	"fmt"
	"slices"
)

// Direction is the side of a node a pin sits on.
type Direction int

const (
	DirectionInput Direction = iota
	DirectionOutput
)

func (d Direction) String() string {
	switch d {
	case DirectionInput:
		return "input"
	case DirectionOutput:
		return "output"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ParseDirection parses "input"/"in" or "output"/"out".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "input", "in":
		return DirectionInput, nil
	case "output", "out":
		return DirectionOutput, nil
	}
	return 0, fmt.Errorf("unknown pin direction %q", s)
}

// PinType describes what a pin carries.
type PinType struct {
	Category    string `json:"category" yaml:"category"`
	SubCategory string `json:"subCategory,omitempty" yaml:"subCategory,omitempty"`
	Container   string `json:"container,omitempty" yaml:"container,omitempty"` // "", "array", "set", "map"
}

// Equal reports whether two pin types are interchangeable.
func (t PinType) Equal(other PinType) bool {
	return t == other
}

func (t PinType) String() string {
	s := t.Category
	if t.SubCategory != "" {
		s += ":" + t.SubCategory
	}
	if t.Container != "" {
		s = t.Container + "<" + s + ">"
	}
	return s
}

// Pin is a named, directional connection point on a node.
type Pin struct {
	Name      string    `json:"name"`
	Direction Direction `json:"direction"`
	Type      PinType   `json:"type"`
	Hidden    bool      `json:"hidden,omitempty"`

	// At most one of the default representations is meaningfully set.
	DefaultValue  string `json:"defaultValue,omitempty"`
	DefaultText   string `json:"defaultText,omitempty"`
	DefaultObject string `json:"defaultObject,omitempty"`

	handle PinHandle
	node   *Node
	links  []PinRef
}

// Handle returns the pin's handle within its node.
func (p *Pin) Handle() PinHandle {
	return p.handle
}

// OwningNode returns the node the pin belongs to.
func (p *Pin) OwningNode() *Node {
	return p.node
}

// Ref returns the arena address of the pin.
func (p *Pin) Ref() PinRef {
	var h NodeHandle
	if p.node != nil {
		h = p.node.handle
	}
	return PinRef{Node: h, Pin: p.handle}
}

// LinkedTo resolves the pins this pin is linked to, in link order.
func (p *Pin) LinkedTo() []*Pin {
	g := p.graph()
	if g == nil {
		return nil
	}
	linked := make([]*Pin, 0, len(p.links))
	for _, ref := range p.links {
		if other := g.resolve(ref); other != nil {
			linked = append(linked, other)
		}
	}
	return linked
}

// LinkCount returns the number of links on the pin.
func (p *Pin) LinkCount() int {
	return len(p.links)
}

// IsLinkedTo reports whether p and other are linked.
func (p *Pin) IsLinkedTo(other *Pin) bool {
	return other != nil && slices.Contains(p.links, other.Ref())
}

// MakeLinkTo links p and other. Both pins must be in the same graph; linking
// an already linked pair is a no-op.
func (p *Pin) MakeLinkTo(other *Pin) bool {
	g := p.graph()
	if g == nil || other == nil || other == p || other.graph() != g {
		return false
	}
	if p.IsLinkedTo(other) {
		return true
	}
	p.links = append(p.links, other.Ref())
	other.links = append(other.links, p.Ref())
	return true
}

// BreakLinkTo removes the link between p and other, if any.
func (p *Pin) BreakLinkTo(other *Pin) bool {
	if !p.IsLinkedTo(other) {
		return false
	}
	p.links = slices.DeleteFunc(p.links, func(ref PinRef) bool { return ref == other.Ref() })
	other.links = slices.DeleteFunc(other.links, func(ref PinRef) bool { return ref == p.Ref() })
	return true
}

// BreakAllPinLinks breaks every link of the pin.
func (p *Pin) BreakAllPinLinks() {
	for _, other := range p.LinkedTo() {
		p.BreakLinkTo(other)
	}
	p.links = nil
}

// HasSameDefaults reports whether all three default representations match.
func (p *Pin) HasSameDefaults(other *Pin) bool {
	return p.DefaultValue == other.DefaultValue &&
		p.DefaultText == other.DefaultText &&
		p.DefaultObject == other.DefaultObject
}

// CopyDefaults copies all three default representations from src.
func (p *Pin) CopyDefaults(src *Pin) {
	p.DefaultValue = src.DefaultValue
	p.DefaultText = src.DefaultText
	p.DefaultObject = src.DefaultObject
}

// DisplayDefault returns whichever default representation is set.
func (p *Pin) DisplayDefault() string {
	switch {
	case p.DefaultObject != "":
		return p.DefaultObject
	case p.DefaultText != "":
		return p.DefaultText
	default:
		return p.DefaultValue
	}
}

func (p *Pin) graph() *Graph {
	if p.node == nil {
		return nil
	}
	return p.node.graph
}
