package merge

import (
	"github.com/ritzau/merge-assist/pkg/diff"
	"github.com/ritzau/merge-assist/pkg/model"
)

// handlerFunc applies or reverts one diff. Every handler resolves everything
// it needs before it mutates anything, and only mutates when write is set.
type handlerFunc func(t *Transaction, d diff.Result, write bool) bool

type handler struct {
	apply  handlerFunc
	revert handlerFunc
}

var handlers = map[diff.Kind]handler{
	diff.NodeRemoved:            {apply: removeOldNode, revert: restoreOldNode},
	diff.NodeAdded:              {apply: addNewNode, revert: removeNewNode},
	diff.PinRemoved:             {apply: removeOldPin, revert: restoreOldPin},
	diff.PinAdded:               {apply: addNewPin, revert: removeNewPin},
	diff.PinDefaultValueChanged: {apply: copyDefaultsFrom(newSide), revert: copyDefaultsFrom(oldSide)},
	diff.LinkRemoved:            {apply: breakLinkTo(oldSide), revert: makeLinkTo(oldSide)},
	diff.LinkAdded:              {apply: makeLinkTo(newSide), revert: breakLinkTo(newSide)},
	diff.NodeMoved:              {apply: copyPositionFrom(newSide), revert: copyPositionFrom(oldSide)},
	diff.NodeCommentChanged:     {apply: copyCommentFrom(newSide), revert: copyCommentFrom(oldSide)},
}

type side bool

const (
	oldSide side = false
	newSide side = true
)

func removeOldNode(t *Transaction, d diff.Result, write bool) bool {
	return t.removeNode(d.OldNode, write, func() { delete(t.baseToTarget, d.OldNode) })
}

func restoreOldNode(t *Transaction, d diff.Result, write bool) bool {
	return t.cloneToTarget(d.OldNode, write, func(clone *model.Node) { t.baseToTarget[d.OldNode] = clone })
}

func addNewNode(t *Transaction, d diff.Result, write bool) bool {
	return t.cloneToTarget(d.NewNode, write, func(clone *model.Node) { t.added[d.NewNode] = clone })
}

func removeNewNode(t *Transaction, d diff.Result, write bool) bool {
	return t.removeNode(d.NewNode, write, func() { delete(t.added, d.NewNode) })
}

func removeOldPin(t *Transaction, d diff.Result, write bool) bool {
	return t.removePin(d.OldPin, write)
}

func restoreOldPin(t *Transaction, d diff.Result, write bool) bool {
	return t.createPin(d.OldPin, write)
}

func addNewPin(t *Transaction, d diff.Result, write bool) bool {
	return t.createPin(d.NewPin, write)
}

func removeNewPin(t *Transaction, d diff.Result, write bool) bool {
	return t.removePin(d.NewPin, write)
}

func copyDefaultsFrom(s side) handlerFunc {
	return func(t *Transaction, d diff.Result, write bool) bool {
		src := d.OldPin
		if s == newSide {
			src = d.NewPin
		}
		if src == nil {
			return t.fail("%s has no pin to copy defaults from", d.Kind)
		}
		_, pin, ok := t.findPinInTarget(d.OldPin)
		if !ok {
			return false
		}
		if write {
			pin.CopyDefaults(src)
		}
		return true
	}
}

func copyPositionFrom(s side) handlerFunc {
	return func(t *Transaction, d diff.Result, write bool) bool {
		src := pick(s, d.OldNode, d.NewNode)
		if src == nil {
			return t.fail("%s has no node to copy from", d.Kind)
		}
		node, ok := t.findNode(d.OldNode)
		if !ok {
			return false
		}
		if write {
			node.X, node.Y = src.X, src.Y
		}
		return true
	}
}

func copyCommentFrom(s side) handlerFunc {
	return func(t *Transaction, d diff.Result, write bool) bool {
		src := pick(s, d.OldNode, d.NewNode)
		if src == nil {
			return t.fail("%s has no node to copy from", d.Kind)
		}
		node, ok := t.findNode(d.OldNode)
		if !ok {
			return false
		}
		if write {
			node.Comment = src.Comment
		}
		return true
	}
}

// makeLinkTo links the target counterpart of the diff's source pin to the
// counterpart of the link target on side s.
func makeLinkTo(s side) handlerFunc {
	return func(t *Transaction, d diff.Result, write bool) bool {
		_, source, ok := t.findPinInTarget(d.OldPin)
		if !ok {
			return false
		}
		_, other, ok := t.findPinInTarget(pickPin(s, d.LinkTargetOld, d.LinkTargetNew))
		if !ok {
			return false
		}
		if source == other {
			return t.fail("cannot link pin '%s' to itself", source.Name)
		}
		if write {
			source.MakeLinkTo(other)
		}
		return true
	}
}

// breakLinkTo breaks the link between the target counterpart of the diff's
// source pin and the counterpart of the link target on side s.
func breakLinkTo(s side) handlerFunc {
	return func(t *Transaction, d diff.Result, write bool) bool {
		_, source, ok := t.findPinInTarget(d.OldPin)
		if !ok {
			return false
		}
		like := pickPin(s, d.LinkTargetOld, d.LinkTargetNew)
		if like == nil {
			return t.fail("%s has no link target", d.Kind)
		}
		owner, ok := t.findNode(like.OwningNode())
		if !ok {
			return false
		}

		linked := linkedCounterpart(source, like, owner)
		if linked == nil {
			return t.fail("link %s -> %s.%s not found in target", source.Name, owner.Title, like.Name)
		}
		if write {
			source.BreakLinkTo(linked)
		}
		return true
	}
}

// linkedCounterpart returns the pin linked to source that has like's name,
// direction and type and sits on owner.
func linkedCounterpart(source, like *model.Pin, owner *model.Node) *model.Pin {
	for _, p := range source.LinkedTo() {
		if p.Name == like.Name && p.Direction == like.Direction &&
			p.Type.Equal(like.Type) && p.OwningNode() == owner {
			return p
		}
	}
	return nil
}

func pick(s side, oldNode, newNode *model.Node) *model.Node {
	if s == newSide {
		return newNode
	}
	return oldNode
}

func pickPin(s side, oldPin, newPin *model.Pin) *model.Pin {
	if s == newSide {
		return newPin
	}
	return oldPin
}

func (t *Transaction) findNode(n *model.Node) (*model.Node, bool) {
	found, ok := t.FindNodeInTargetGraph(n)
	if !ok {
		if n == nil {
			return nil, t.fail("missing node reference")
		}
		return nil, t.fail("node '%s' (%s) not found in target", n.Title, n.ID)
	}
	return found, true
}

// findPinInTarget resolves a pin of any revision to the pin with the same
// name, direction and type on the target counterpart of its node.
func (t *Transaction) findPinInTarget(p *model.Pin) (*model.Node, *model.Pin, bool) {
	if p == nil {
		return nil, nil, t.fail("missing pin reference")
	}
	node, ok := t.findNode(p.OwningNode())
	if !ok {
		return nil, nil, false
	}
	pin := safeFindPin(node, p)
	if pin == nil {
		return node, nil, t.fail("pin '%s' not found on '%s'", p.Name, node.Title)
	}
	return node, pin, true
}

func safeFindPin(node *model.Node, like *model.Pin) *model.Pin {
	if node == nil || like == nil {
		return nil
	}
	pin := node.FindPin(like.Name, like.Direction)
	if pin == nil || !pin.Type.Equal(like.Type) {
		return nil
	}
	return pin
}

func (t *Transaction) removeNode(n *model.Node, write bool, forget func()) bool {
	node, ok := t.findNode(n)
	if !ok {
		return false
	}
	if write {
		t.target.RemoveNode(node)
		forget()
	}
	return true
}

// cloneToTarget copies src into the target and restores as many of its links
// as can be resolved. It fails if src already has a counterpart there.
func (t *Transaction) cloneToTarget(src *model.Node, write bool, remember func(*model.Node)) bool {
	if src == nil {
		return t.fail("missing node reference")
	}
	if _, found := t.FindNodeInTargetGraph(src); found {
		return t.fail("node '%s' (%s) already exists in target", src.Title, src.ID)
	}
	if existing, found := t.target.FindNodeByID(src.ID); found && existing.Class == src.Class {
		return t.fail("a node with id %s already exists in target", src.ID)
	}
	if !write {
		return true
	}

	clone := t.target.DuplicateNode(src)
	clonePins := clone.Pins()
	for i, srcPin := range src.Pins() {
		t.restoreLinks(srcPin, clonePins[i], src, clone)
	}
	remember(clone)
	return true
}

// restoreLinks links dst like src is linked, dropping links whose far end
// cannot be resolved in the target. srcNode and dstNode let links of a node
// to itself resolve before the node is registered.
func (t *Transaction) restoreLinks(src, dst *model.Pin, srcNode, dstNode *model.Node) {
	for _, linked := range src.LinkedTo() {
		var owner *model.Node
		if linked.OwningNode() == srcNode {
			owner = dstNode
		} else if found, ok := t.FindNodeInTargetGraph(linked.OwningNode()); ok {
			owner = found
		}
		if other := safeFindPin(owner, linked); other != nil {
			dst.MakeLinkTo(other)
		}
	}
}

func (t *Transaction) createPin(like *model.Pin, write bool) bool {
	if like == nil {
		return t.fail("missing pin reference")
	}
	node, ok := t.findNode(like.OwningNode())
	if !ok {
		return false
	}
	if node.FindPinByName(like.Name) != nil {
		return t.fail("pin '%s' already exists on '%s'", like.Name, node.Title)
	}
	if write {
		pin := node.CreatePin(like.Direction, like.Type, like.Name)
		pin.Hidden = like.Hidden
		pin.CopyDefaults(like)
		t.restoreLinks(like, pin, like.OwningNode(), node)
	}
	return true
}

func (t *Transaction) removePin(like *model.Pin, write bool) bool {
	node, pin, ok := t.findPinInTarget(like)
	if !ok {
		return false
	}
	if write {
		node.RemovePin(pin)
	}
	return true
}
