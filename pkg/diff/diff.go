// Package diff computes the differences between two revisions of a graph.
package diff

import (
	"github.com/ritzau/merge-assist/pkg/model"
)

// GraphDiff is the outcome of diffing two graphs.
type GraphDiff struct {
	Matches      []NodeMatch
	UnmatchedOld []*model.Node
	UnmatchedNew []*model.Node
	Results      []Result
}

// DiffGraphs matches the nodes of oldGraph and newGraph with all strategies
// and returns every difference between them. Neither graph is modified. If
// either graph is nil the result is empty.
func DiffGraphs(oldGraph, newGraph *model.Graph) GraphDiff {
	set := NewResultSet()
	d := DiffGraphsInto(oldGraph, newGraph, MatchAll, set)
	d.Results = set.Results()
	return d
}

// DiffGraphsInto is DiffGraphs with an explicit strategy and result set.
func DiffGraphsInto(oldGraph, newGraph *model.Graph, strategy MatchStrategy, set *ResultSet) GraphDiff {
	if oldGraph == nil || newGraph == nil {
		return GraphDiff{}
	}

	matches, unmatchedOld, unmatchedNew := FindNodeMatches(oldGraph, newGraph, strategy)

	for _, m := range matches {
		DiffNodes(m.Old, m.New, set)
	}
	for _, n := range unmatchedOld {
		DiffNodes(n, nil, set)
	}
	for _, n := range unmatchedNew {
		DiffNodes(nil, n, set)
	}

	return GraphDiff{
		Matches:      matches,
		UnmatchedOld: unmatchedOld,
		UnmatchedNew: unmatchedNew,
	}
}

// DiffNodes writes the differences between two revisions of a node into set.
// A nil side makes the node added or removed. Node-internal properties are not
// compared.
func DiffNodes(oldNode, newNode *model.Node, set *ResultSet) {
	switch {
	case oldNode == nil && newNode == nil:
		return
	case newNode == nil:
		set.Add(Result{Kind: NodeRemoved, OldNode: oldNode})
		return
	case oldNode == nil:
		set.Add(Result{Kind: NodeAdded, NewNode: newNode})
		return
	}

	if oldNode.Comment != newNode.Comment {
		set.Add(Result{Kind: NodeCommentChanged, OldNode: oldNode, NewNode: newNode})
	}
	if oldNode.X != newNode.X || oldNode.Y != newNode.Y {
		set.Add(Result{Kind: NodeMoved, OldNode: oldNode, NewNode: newNode})
	}

	matches, unmatchedOld, unmatchedNew := FindPinMatches(oldNode, newNode)
	for _, m := range matches {
		diffPins(oldNode, newNode, m.Old, m.New, set)
	}
	for _, p := range unmatchedOld {
		diffPins(oldNode, newNode, p, nil, set)
	}
	for _, p := range unmatchedNew {
		diffPins(oldNode, newNode, nil, p, set)
	}
}

// DiffPins writes the differences between two revisions of a pin into set.
func DiffPins(oldPin, newPin *model.Pin, set *ResultSet) {
	var oldNode, newNode *model.Node
	if oldPin != nil {
		oldNode = oldPin.OwningNode()
	}
	if newPin != nil {
		newNode = newPin.OwningNode()
	}
	diffPins(oldNode, newNode, oldPin, newPin, set)
}

func diffPins(oldNode, newNode *model.Node, oldPin, newPin *model.Pin, set *ResultSet) {
	switch {
	case oldPin == nil && newPin == nil:
		return
	case newPin == nil:
		set.Add(Result{Kind: PinRemoved, OldNode: oldNode, NewNode: newNode, OldPin: oldPin})
		return
	case oldPin == nil:
		set.Add(Result{Kind: PinAdded, OldNode: oldNode, NewNode: newNode, NewPin: newPin})
		return
	}

	// A linked pin hides its default value.
	if newPin.LinkCount() == 0 && !oldPin.HasSameDefaults(newPin) {
		set.Add(Result{Kind: PinDefaultValueChanged, OldNode: oldNode, NewNode: newNode, OldPin: oldPin, NewPin: newPin})
	}

	_, unmatchedOld, unmatchedNew := FindLinkMatches(oldPin, newPin)
	for _, l := range unmatchedOld {
		set.Add(Result{
			Kind:          LinkRemoved,
			OldNode:       oldNode,
			NewNode:       newNode,
			OldPin:        oldPin,
			NewPin:        newPin,
			LinkTargetOld: l.Target,
		})
	}
	for _, l := range unmatchedNew {
		set.Add(Result{
			Kind:          LinkAdded,
			OldNode:       oldNode,
			NewNode:       newNode,
			OldPin:        oldPin,
			NewPin:        newPin,
			LinkTargetNew: l.Target,
		})
	}
}

// NodeMap returns the new-to-old node correspondence of a graph diff.
func (d GraphDiff) NodeMap() map[*model.Node]*model.Node {
	m := make(map[*model.Node]*model.Node, len(d.Matches))
	for _, match := range d.Matches {
		m[match.New] = match.Old
	}
	return m
}

// Count returns the number of differences between two graphs without
// building display data.
func Count(oldGraph, newGraph *model.Graph) int {
	set := NewCountingSet()
	DiffGraphsInto(oldGraph, newGraph, MatchAll, set)
	return set.Found()
}
