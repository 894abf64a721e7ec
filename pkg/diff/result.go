package diff

import (
	"fmt"

	"github.com/ritzau/merge-assist/pkg/model"
)

// Result is one atomic difference between two revisions of a graph.
//
// Only the references relevant to the kind are set. Pin and link diffs also
// carry the nodes owning OldPin and NewPin. For link diffs OldPin and NewPin
// are the source pins and LinkTargetOld / LinkTargetNew the far ends.
type Result struct {
	Kind Kind

	OldNode *model.Node
	NewNode *model.Node

	OldPin *model.Pin
	NewPin *model.Pin

	LinkTargetOld *model.Pin
	LinkTargetNew *model.Pin

	// Display data, only filled in when the result is stored.
	Label   string
	Color   Color
	Tooltip string
}

// IsZero reports whether r is the NoDifference sentinel.
func (r Result) IsZero() bool {
	return r.Kind == NoDifference
}

// Swapped returns r seen from the other direction: old and new are exchanged
// and additions become removals.
func (r Result) Swapped() Result {
	s := r
	s.OldNode, s.NewNode = r.NewNode, r.OldNode
	s.OldPin, s.NewPin = r.NewPin, r.OldPin
	s.LinkTargetOld, s.LinkTargetNew = r.LinkTargetNew, r.LinkTargetOld
	switch r.Kind {
	case NodeRemoved:
		s.Kind = NodeAdded
	case NodeAdded:
		s.Kind = NodeRemoved
	case PinRemoved:
		s.Kind = PinAdded
	case PinAdded:
		s.Kind = PinRemoved
	case LinkRemoved:
		s.Kind = LinkAdded
	case LinkAdded:
		s.Kind = LinkRemoved
	}
	if r.Label != "" {
		s.materialize()
	}
	return s
}

func (r *Result) materialize() {
	r.Color = ColorFor(r.Kind)
	switch r.Kind {
	case NodeRemoved:
		r.Label = fmt.Sprintf("Removed node '%s'", nodeTitle(r.OldNode))
		r.Tooltip = fmt.Sprintf("Node '%s' (%s) was removed", nodeTitle(r.OldNode), nodeID(r.OldNode))
	case NodeAdded:
		r.Label = fmt.Sprintf("Added node '%s'", nodeTitle(r.NewNode))
		r.Tooltip = fmt.Sprintf("Node '%s' (%s) was added", nodeTitle(r.NewNode), nodeID(r.NewNode))
	case PinRemoved:
		r.Label = fmt.Sprintf("Removed pin '%s'", pinName(r.OldPin))
		r.Tooltip = fmt.Sprintf("Pin '%s' was removed from '%s'", pinName(r.OldPin), pinOwnerTitle(r.OldPin))
	case PinAdded:
		r.Label = fmt.Sprintf("Added pin '%s'", pinName(r.NewPin))
		r.Tooltip = fmt.Sprintf("Pin '%s' (%s %s) was added to '%s'",
			pinName(r.NewPin), r.NewPin.Direction, r.NewPin.Type, pinOwnerTitle(r.NewPin))
	case PinDefaultValueChanged:
		r.Label = fmt.Sprintf("Default value of '%s' changed", pinName(r.NewPin))
		r.Tooltip = fmt.Sprintf("Default value of '%s' on '%s' changed from '%s' to '%s'",
			pinName(r.NewPin), pinOwnerTitle(r.NewPin), r.OldPin.DisplayDefault(), r.NewPin.DisplayDefault())
	case LinkRemoved:
		r.Label = fmt.Sprintf("Removed link %s -> %s", pinPath(r.OldPin), pinPath(r.LinkTargetOld))
		r.Tooltip = "Link from " + pinPath(r.OldPin) + " to " + pinPath(r.LinkTargetOld) + " was removed"
	case LinkAdded:
		r.Label = fmt.Sprintf("Added link %s -> %s", pinPath(r.NewPin), pinPath(r.LinkTargetNew))
		r.Tooltip = "Link from " + pinPath(r.NewPin) + " to " + pinPath(r.LinkTargetNew) + " was added"
	case NodeMoved:
		r.Label = fmt.Sprintf("Moved node '%s'", nodeTitle(r.NewNode))
		r.Tooltip = fmt.Sprintf("Node '%s' moved from (%g, %g) to (%g, %g)",
			nodeTitle(r.NewNode), r.OldNode.X, r.OldNode.Y, r.NewNode.X, r.NewNode.Y)
	case NodeCommentChanged:
		r.Label = fmt.Sprintf("Comment changed on '%s'", nodeTitle(r.NewNode))
		r.Tooltip = fmt.Sprintf("Comment on '%s' changed from %q to %q",
			nodeTitle(r.NewNode), r.OldNode.Comment, r.NewNode.Comment)
	}
}

func nodeTitle(n *model.Node) string {
	if n == nil {
		return "<none>"
	}
	if n.Title != "" {
		return n.Title
	}
	return n.Name
}

func nodeID(n *model.Node) string {
	if n == nil {
		return ""
	}
	return n.ID
}

func pinName(p *model.Pin) string {
	if p == nil {
		return "<none>"
	}
	return p.Name
}

func pinOwnerTitle(p *model.Pin) string {
	if p == nil {
		return "<none>"
	}
	return nodeTitle(p.OwningNode())
}

func pinPath(p *model.Pin) string {
	if p == nil {
		return "<none>"
	}
	return pinOwnerTitle(p) + "." + p.Name
}

// ResultSet accumulates diffs. It always counts them and, when created with
// NewResultSet, also keeps them in order with display data filled in.
type ResultSet struct {
	store   bool
	results []Result
	found   int
}

// NewResultSet returns a set that stores every result it is given.
func NewResultSet() *ResultSet {
	return &ResultSet{store: true}
}

// NewCountingSet returns a set that only counts results.
func NewCountingSet() *ResultSet {
	return &ResultSet{}
}

// Add records r. The NoDifference sentinel is ignored.
func (s *ResultSet) Add(r Result) {
	if r.Kind == NoDifference {
		return
	}
	s.found++
	if !s.store {
		return
	}
	r.materialize()
	s.results = append(s.results, r)
}

// Found returns how many results were added.
func (s *ResultSet) Found() int {
	return s.found
}

// Storing reports whether the set keeps results.
func (s *ResultSet) Storing() bool {
	return s.store
}

// Results returns the stored results in the order they were added.
func (s *ResultSet) Results() []Result {
	return s.results
}

// NodeMatch pairs a node with its counterpart in another revision. A missing
// side means the node was added or removed.
type NodeMatch struct {
	Old *model.Node
	New *model.Node
}

// IsValid reports whether both sides are present.
func (m NodeMatch) IsValid() bool {
	return m.Old != nil && m.New != nil
}

// PinMatch pairs a pin with its counterpart.
type PinMatch struct {
	Old *model.Pin
	New *model.Pin
}

// IsValid reports whether both sides are present.
func (m PinMatch) IsValid() bool {
	return m.Old != nil && m.New != nil
}

// Link is one end-to-end connection seen from Source.
type Link struct {
	Source *model.Pin
	Target *model.Pin
}

// LinkMatch pairs a link with its counterpart.
type LinkMatch struct {
	Old Link
	New Link
}

// IsValid reports whether both links have a target.
func (m LinkMatch) IsValid() bool {
	return m.Old.Target != nil && m.New.Target != nil
}
