package conflict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/merge-assist/pkg/diff"
	"github.com/ritzau/merge-assist/pkg/model"
)

var stringType = model.PinType{Category: "string"}

type revisions struct {
	base, remote, local *model.Graph
}

func (r revisions) changes() []*Entry {
	return BuildChangeList(diff.DiffGraphs(r.base, r.remote).Results, diff.DiffGraphs(r.base, r.local).Results)
}

func threeWay(t *testing.T, build func(g *model.Graph)) revisions {
	t.Helper()
	base := model.NewGraph("EventGraph", "asset")
	build(base)
	remote, _ := base.Clone()
	local, _ := base.Clone()
	return revisions{base: base, remote: remote, local: local}
}

func node(t *testing.T, g *model.Graph, id string) *model.Node {
	t.Helper()
	n, ok := g.FindNodeByID(id)
	require.True(t, ok)
	return n
}

func TestCommentEditedOnBothSidesConflicts(t *testing.T) {
	r := threeWay(t, func(g *model.Graph) {
		g.AddNode("a", "K", "A", "Node A").Comment = "x"
	})
	node(t, r.remote, "a").Comment = "y"
	node(t, r.local, "a").Comment = "z"

	entries := r.changes()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.True(t, e.Conflict)
	assert.Equal(t, diff.NodeCommentChanged, e.Kind())
	assert.Equal(t, "y", e.Remote.NewNode.Comment)
	assert.Equal(t, "z", e.Local.NewNode.Comment)
	assert.Equal(t, StateBase, e.State)
	assert.Equal(t, "CONFLICT: 'Comment changed on 'Node A'' conflicts with 'Comment changed on 'Node A''", e.Label)
}

func TestRemovalConflictsWithPinEdit(t *testing.T) {
	r := threeWay(t, func(g *model.Graph) {
		n := g.AddNode("a", "K", "A", "Node A")
		n.CreatePin(model.DirectionInput, stringType, "P").DefaultValue = "1"
	})
	r.remote.RemoveNode(node(t, r.remote, "a"))
	node(t, r.local, "a").FindPinByName("P").DefaultValue = "2"

	entries := r.changes()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Conflict)
	assert.Equal(t, diff.NodeRemoved, entries[0].Remote.Kind)
	assert.Equal(t, diff.PinDefaultValueChanged, entries[0].Local.Kind)
	assert.Equal(t, diff.NodeRemoved, entries[0].Kind())
}

func TestMovesNeverConflict(t *testing.T) {
	r := threeWay(t, func(g *model.Graph) {
		g.AddNode("a", "K", "A", "Node A")
	})
	node(t, r.remote, "a").X = 10
	node(t, r.local, "a").X = 20
	node(t, r.local, "a").Comment = "hi"

	entries := r.changes()
	require.Len(t, entries, 3)
	assert.False(t, HasConflicts(entries))
	assert.Equal(t, Summary{Total: 3, Remote: 1, Local: 2}, Summarize(entries))
}

func TestIndependentAdditionsDoNotConflict(t *testing.T) {
	r := threeWay(t, func(g *model.Graph) {
		g.AddNode("a", "K", "A", "Node A")
	})
	r.remote.AddNode("r", "K", "R", "Remote Node")
	r.local.AddNode("l", "K", "L", "Local Node")

	entries := r.changes()
	require.Len(t, entries, 2)
	assert.False(t, HasConflicts(entries))
	assert.True(t, entries[0].HasRemote())
	assert.True(t, entries[1].HasLocal())
}

func TestConflictingLocalDiffAppearsOnce(t *testing.T) {
	r := threeWay(t, func(g *model.Graph) {
		n := g.AddNode("a", "K", "A", "Node A")
		n.CreatePin(model.DirectionInput, stringType, "P")
		n.CreatePin(model.DirectionInput, stringType, "Q")
	})
	remoteNode := node(t, r.remote, "a")
	remoteNode.FindPinByName("P").DefaultValue = "r"
	remoteNode.FindPinByName("Q").DefaultValue = "r"
	node(t, r.local, "a").FindPinByName("P").DefaultValue = "l"

	entries := r.changes()
	require.Len(t, entries, 2)

	var conflicts, localRows int
	for _, e := range entries {
		if e.Conflict {
			conflicts++
			assert.Equal(t, "P", e.Local.OldPin.Name)
			assert.Equal(t, "P", e.Remote.OldPin.Name)
		}
		if e.HasLocal() {
			localRows++
		}
	}
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 1, localRows)
}

func TestLocalPartnerIsUsedOnlyOnce(t *testing.T) {
	g := model.NewGraph("G", "o")
	n := g.AddNode("a", "K", "A", "A")

	removed := diff.Result{Kind: diff.NodeRemoved, OldNode: n, Label: "removed"}
	comment := diff.Result{Kind: diff.NodeCommentChanged, OldNode: n, Label: "comment"}
	local := diff.Result{Kind: diff.NodeCommentChanged, OldNode: n, Label: "local comment"}

	entries := BuildChangeList([]diff.Result{removed, comment}, []diff.Result{local})
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Conflict)
	assert.Equal(t, "removed", entries[0].Remote.Label)
	assert.False(t, entries[1].Conflict)
	assert.False(t, entries[1].HasLocal())
}

func TestSamePinAcrossNodesConflicts(t *testing.T) {
	g := model.NewGraph("G", "o")
	a := g.AddNode("a", "K", "A", "A")
	b := g.AddNode("b", "K", "B", "B")
	p := a.CreatePin(model.DirectionOutput, stringType, "Out")

	remote := diff.Result{Kind: diff.LinkAdded, OldNode: a, OldPin: p}
	local := diff.Result{Kind: diff.LinkRemoved, OldNode: b, OldPin: p}

	assert.True(t, Conflicts(remote, local))
	assert.False(t, Conflicts(diff.Result{Kind: diff.NodeAdded}, diff.Result{Kind: diff.NodeAdded}))
}

func TestChangeListIsSortedByKind(t *testing.T) {
	g := model.NewGraph("G", "o")
	a := g.AddNode("a", "K", "A", "A")
	b := g.AddNode("b", "K", "B", "B")

	remote := []diff.Result{
		{Kind: diff.NodeMoved, OldNode: a, Label: "r1"},
		{Kind: diff.NodeAdded, Label: "r2"},
	}
	local := []diff.Result{
		{Kind: diff.NodeCommentChanged, OldNode: b, Label: "l1"},
		{Kind: diff.NodeRemoved, OldNode: b, Label: "l2"},
		{Kind: diff.NodeAdded, Label: "l3"},
	}

	entries := BuildChangeList(remote, local)
	labels := make([]string, 0, len(entries))
	for _, e := range entries {
		labels = append(labels, e.Label)
	}
	assert.Equal(t, []string{"l2", "r2", "l3", "r1", "l1"}, labels)
}

func TestEntrySide(t *testing.T) {
	e := &Entry{Remote: diff.Result{Kind: diff.NodeAdded}}

	got, ok := e.Side(StateRemote)
	assert.True(t, ok)
	assert.Equal(t, diff.NodeAdded, got.Kind)

	_, ok = e.Side(StateLocal)
	assert.False(t, ok)
	_, ok = e.Side(StateBase)
	assert.False(t, ok)

	assert.True(t, e.Touches(StateRemote))
	assert.False(t, e.Touches(StateLocal))
	assert.False(t, e.Touches(StateBase))

	e.State = StateRemote
	assert.False(t, e.Touches(StateRemote))
	assert.True(t, e.Touches(StateBase))
}

func TestParseMergeState(t *testing.T) {
	for _, s := range []MergeState{StateBase, StateRemote, StateLocal} {
		parsed, err := ParseMergeState(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	_, err := ParseMergeState("theirs")
	assert.Error(t, err)
}
