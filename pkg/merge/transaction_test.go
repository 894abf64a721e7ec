package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/merge-assist/pkg/conflict"
	"github.com/ritzau/merge-assist/pkg/diff"
	"github.com/ritzau/merge-assist/pkg/model"
)

var (
	execType   = model.PinType{Category: "exec"}
	stringType = model.PinType{Category: "string"}
	floatType  = model.PinType{Category: "real", SubCategory: "double"}
)

func mustNode(t *testing.T, g *model.Graph, id string) *model.Node {
	t.Helper()
	n, ok := g.FindNodeByID(id)
	require.True(t, ok, "node %s", id)
	return n
}

func link(t *testing.T, from *model.Node, out string, to *model.Node, in string) {
	t.Helper()
	require.True(t, from.FindPin(out, model.DirectionOutput).MakeLinkTo(to.FindPin(in, model.DirectionInput)))
}

func forks(base *model.Graph) (remote, local *model.Graph) {
	remote, _ = base.Clone()
	local, _ = base.Clone()
	return remote, local
}

func entryOf(t *testing.T, tx *Transaction, kind diff.Kind) *conflict.Entry {
	t.Helper()
	for _, e := range tx.Changes() {
		if e.Kind() == kind {
			return e
		}
	}
	t.Fatalf("no %s change", kind)
	return nil
}

// eventGraph builds
//
//	begin.then -> print.execute, print.then -> delay.execute
//
// with print carrying "In String" = "hello" and an "Extra" pin.
func eventGraph() *model.Graph {
	g := model.NewGraph("EventGraph", "asset")
	begin := g.AddNode("begin", "Event", "BeginPlay", "Event BeginPlay")
	begin.CreatePin(model.DirectionOutput, execType, "then")

	printNode := g.AddNode("print", "CallFunction", "PrintString", "Print String")
	printNode.X, printNode.Y = 200, 0
	printNode.CreatePin(model.DirectionInput, execType, "execute")
	printNode.CreatePin(model.DirectionInput, stringType, "In String").DefaultText = "hello"
	printNode.CreatePin(model.DirectionInput, stringType, "Extra")
	printNode.CreatePin(model.DirectionOutput, execType, "then")

	delay := g.AddNode("delay", "CallFunction", "Delay", "Delay")
	delay.X, delay.Y = 400, 0
	delay.CreatePin(model.DirectionInput, execType, "execute")
	delay.CreatePin(model.DirectionInput, floatType, "Duration").DefaultValue = "1.0"

	begin.FindPin("then", model.DirectionOutput).MakeLinkTo(printNode.FindPin("execute", model.DirectionInput))
	printNode.FindPin("then", model.DirectionOutput).MakeLinkTo(delay.FindPin("execute", model.DirectionInput))
	return g
}

func TestAddedNodeAndLinkFromRemote(t *testing.T) {
	base := model.NewGraph("EventGraph", "asset")
	base.AddNode("a", "K", "A", "Node A").CreatePin(model.DirectionOutput, execType, "Out")
	remote, local := forks(base)
	b := remote.AddNode("b", "K", "B", "Node B")
	b.CreatePin(model.DirectionInput, execType, "In")
	link(t, mustNode(t, remote, "a"), "Out", b, "In")

	tx := NewTransaction("EventGraph", base, remote, local, nil)
	changes := tx.Changes()
	require.Len(t, changes, 2)
	assert.Equal(t, diff.NodeAdded, changes[0].Kind())
	assert.Equal(t, diff.LinkAdded, changes[1].Kind())
	assert.False(t, tx.HasConflicts())
	assert.True(t, tx.HasRemoteChanges())
	assert.False(t, tx.HasLocalChanges())

	// The link needs the node first.
	assert.False(t, tx.CanApplyRemote(changes[1]))

	for _, e := range changes {
		require.True(t, tx.ApplyRemote(e), tx.FailureReason())
		assert.Equal(t, conflict.StateRemote, e.State)
	}

	targetB := mustNode(t, tx.Target(), "b")
	targetA := mustNode(t, tx.Target(), "a")
	assert.True(t, targetA.FindPin("Out", model.DirectionOutput).IsLinkedTo(targetB.FindPin("In", model.DirectionInput)))
	assert.Equal(t, model.Fingerprint(remote), model.Fingerprint(tx.Target()))
	assert.True(t, tx.Modified())
}

func TestConflictingCommentsSwitchSides(t *testing.T) {
	base := model.NewGraph("EventGraph", "asset")
	base.AddNode("a", "K", "A", "Node A").Comment = "x"
	remote, local := forks(base)
	mustNode(t, remote, "a").Comment = "y"
	mustNode(t, local, "a").Comment = "z"

	tx := NewTransaction("EventGraph", base, remote, local, nil)
	require.Len(t, tx.Changes(), 1)
	e := tx.Changes()[0]
	require.True(t, e.Conflict)
	target := mustNode(t, tx.Target(), "a")

	require.True(t, tx.ApplyRemote(e))
	assert.Equal(t, "y", target.Comment)
	assert.Equal(t, conflict.StateRemote, e.State)

	require.True(t, tx.Revert(e))
	assert.Equal(t, "x", target.Comment)
	assert.Equal(t, conflict.StateBase, e.State)

	require.True(t, tx.ApplyLocal(e))
	assert.Equal(t, "z", target.Comment)

	// Switching sides goes through base.
	require.True(t, tx.ApplyRemote(e))
	assert.Equal(t, "y", target.Comment)
	assert.Equal(t, conflict.StateRemote, e.State)
}

func TestRemovedNodeAgainstLocalDefault(t *testing.T) {
	base := model.NewGraph("EventGraph", "asset")
	base.AddNode("a", "K", "A", "Node A").CreatePin(model.DirectionInput, stringType, "P").DefaultValue = "1"
	remote, local := forks(base)
	remote.RemoveNode(mustNode(t, remote, "a"))
	mustNode(t, local, "a").FindPinByName("P").DefaultValue = "2"

	tx := NewTransaction("EventGraph", base, remote, local, nil)
	require.Len(t, tx.Changes(), 1)
	e := tx.Changes()[0]
	require.True(t, e.Conflict)

	require.True(t, tx.ApplyRemote(e))
	_, found := tx.Target().FindNodeByID("a")
	assert.False(t, found)

	before := model.Fingerprint(tx.Target())
	assert.True(t, tx.CanApplyLocal(e))
	assert.Equal(t, before, model.Fingerprint(tx.Target()), "dry run must not mutate the target")
	assert.Equal(t, conflict.StateRemote, e.State)

	require.True(t, tx.ApplyLocal(e))
	restored := mustNode(t, tx.Target(), "a")
	assert.Equal(t, "2", restored.FindPinByName("P").DefaultValue)
	assert.Equal(t, conflict.StateLocal, e.State)
}

func TestAddedPinAppliesOnce(t *testing.T) {
	base := model.NewGraph("EventGraph", "asset")
	base.AddNode("a", "K", "A", "Node A").CreatePin(model.DirectionInput, execType, "execute")
	remote, local := forks(base)
	mustNode(t, remote, "a").CreatePin(model.DirectionOutput, floatType, "Result")

	tx := NewTransaction("EventGraph", base, remote, local, nil)
	require.Len(t, tx.Changes(), 1)
	e := tx.Changes()[0]
	require.Equal(t, diff.PinAdded, e.Kind())
	assert.False(t, e.Conflict)

	require.True(t, tx.ApplyRemote(e))
	target := mustNode(t, tx.Target(), "a")
	pin := target.FindPinByName("Result")
	require.NotNil(t, pin)
	assert.Equal(t, model.DirectionOutput, pin.Direction)
	assert.Equal(t, floatType, pin.Type)

	assert.False(t, tx.CanApplyRemote(e))
	assert.False(t, tx.ApplyRemote(e))
	assert.NotEmpty(t, tx.FailureReason())
	assert.Len(t, target.Pins(), 2)
	assert.Equal(t, conflict.StateRemote, e.State)
}

func TestApplyRevertRoundTrip(t *testing.T) {
	build := func() *Transaction {
		base := eventGraph()
		remote, local := forks(base)

		remote.RemoveNode(mustNode(t, remote, "delay"))
		branch := remote.AddNode("branch", "IfThenElse", "Branch", "Branch")
		branch.CreatePin(model.DirectionInput, execType, "execute")
		printNode := mustNode(t, remote, "print")
		link(t, printNode, "then", branch, "execute")
		printNode.FindPinByName("In String").DefaultText = "bye"
		printNode.RemovePin(printNode.FindPinByName("Extra"))
		printNode.X = 250
		begin := mustNode(t, remote, "begin")
		begin.Comment = "entry point"
		begin.CreatePin(model.DirectionOutput, stringType, "Key")

		return NewTransaction("EventGraph", base, remote, local, nil)
	}

	tx := build()
	kinds := make([]diff.Kind, 0)
	for _, e := range tx.Changes() {
		kinds = append(kinds, e.Kind())
	}
	assert.Equal(t, []diff.Kind{
		diff.NodeRemoved,
		diff.NodeAdded,
		diff.PinRemoved,
		diff.PinAdded,
		diff.PinDefaultValueChanged,
		diff.LinkRemoved,
		diff.LinkAdded,
		diff.NodeMoved,
		diff.NodeCommentChanged,
	}, kinds)

	for i := range tx.Changes() {
		tx := build()
		e := tx.Changes()[i]
		if e.Kind() == diff.LinkAdded {
			assert.False(t, tx.CanApplyRemote(e), "link to an added node needs the node")
			continue
		}

		t.Run(e.Kind().String(), func(t *testing.T) {
			before := model.Fingerprint(tx.Target())
			require.True(t, tx.CanApplyRemote(e), tx.FailureReason())
			require.True(t, tx.ApplyRemote(e), tx.FailureReason())
			assert.NotEqual(t, before, model.Fingerprint(tx.Target()))

			require.True(t, tx.CanRevert(e))
			require.True(t, tx.Revert(e), tx.FailureReason())
			assert.Equal(t, before, model.Fingerprint(tx.Target()))
			assert.Zero(t, diff.Count(tx.Base(), tx.Target()))
			assert.False(t, tx.Modified())
		})
	}

	// Everything applied in order reproduces remote. The removed link went
	// away with the removed node, so there is nothing left to break.
	all := build()
	for _, e := range all.Changes() {
		ok := all.ApplyRemote(e)
		if e.Kind() == diff.LinkRemoved {
			assert.False(t, ok)
			continue
		}
		require.True(t, ok, "%s: %s", e.Kind(), all.FailureReason())
	}
	assert.Equal(t, model.Fingerprint(all.Remote()), model.Fingerprint(all.Target()))
	assert.Zero(t, diff.Count(all.Remote(), all.Target()))
}

func TestDryRunsMatchRealCalls(t *testing.T) {
	base := eventGraph()
	remote, local := forks(base)
	mustNode(t, remote, "print").FindPinByName("In String").DefaultText = "remote"
	mustNode(t, local, "print").FindPinByName("In String").DefaultText = "local"
	mustNode(t, local, "delay").Comment = "local only"

	type step struct {
		name string
		can  func(*Transaction, *conflict.Entry) bool
		do   func(*Transaction, *conflict.Entry) bool
	}
	steps := []step{
		{"remote", (*Transaction).CanApplyRemote, (*Transaction).ApplyRemote},
		{"local", (*Transaction).CanApplyLocal, (*Transaction).ApplyLocal},
		{"revert", (*Transaction).CanRevert, (*Transaction).Revert},
	}

	tx := NewTransaction("EventGraph", base, remote, local, nil)
	require.Len(t, tx.Changes(), 2)

	// Walk every pair of steps on every entry and compare the dry run with
	// the real call that follows it.
	for _, e := range tx.Changes() {
		for _, first := range steps {
			for _, second := range steps {
				for _, s := range []step{first, second} {
					before := model.Fingerprint(tx.Target())
					state := e.State
					can := s.can(tx, e)
					assert.Equal(t, before, model.Fingerprint(tx.Target()))
					assert.Equal(t, state, e.State)
					assert.Equal(t, can, s.do(tx, e), "%s then %s on %s", first.name, second.name, e.Kind())
				}
			}
		}
		require.True(t, tx.Revert(e))
	}
}

func TestFindNodeInTargetGraph(t *testing.T) {
	base := eventGraph()
	remote, local := forks(base)
	added := remote.AddNode("new", "K", "New", "New Node")

	tx := NewTransaction("EventGraph", base, remote, local, nil)
	targetPrint := mustNode(t, tx.Target(), "print")

	for name, n := range map[string]*model.Node{
		"base":   mustNode(t, base, "print"),
		"remote": mustNode(t, remote, "print"),
		"local":  mustNode(t, local, "print"),
		"target": targetPrint,
	} {
		found, ok := tx.FindNodeInTargetGraph(n)
		assert.True(t, ok, name)
		assert.Same(t, targetPrint, found, name)
	}

	_, ok := tx.FindNodeInTargetGraph(added)
	assert.False(t, ok)
	_, ok = tx.FindNodeInTargetGraph(nil)
	assert.False(t, ok)
	stranger := model.NewGraph("Other", "other").AddNode("print", "CallFunction", "PrintString", "Print String")
	_, ok = tx.FindNodeInTargetGraph(stranger)
	assert.False(t, ok)

	require.True(t, tx.ApplyRemote(entryOf(t, tx, diff.NodeAdded)))
	found, ok := tx.FindNodeInTargetGraph(added)
	require.True(t, ok)
	assert.True(t, tx.Target().Contains(found))
	assert.Equal(t, "new", found.ID)
}

func TestMissingRevisions(t *testing.T) {
	remote := eventGraph()

	tx := NewTransaction("EventGraph", nil, remote, nil, nil)
	assert.False(t, tx.ExistsInBase())
	assert.True(t, tx.ExistsInRemote())
	assert.False(t, tx.ExistsInLocal())
	assert.Zero(t, tx.Target().NodeCount())
	require.Len(t, tx.Changes(), 3)

	for _, e := range tx.Changes() {
		assert.Equal(t, diff.NodeAdded, e.Kind())
		require.True(t, tx.ApplyRemote(e), tx.FailureReason())
	}
	assert.Equal(t, model.Fingerprint(remote), model.Fingerprint(tx.Target()))

	empty := NewTransaction("EventGraph", eventGraph(), nil, nil, nil)
	assert.Empty(t, empty.Changes())
	assert.False(t, empty.Modified())
}

func TestStructuralChangesNotify(t *testing.T) {
	base := eventGraph()
	remote, local := forks(base)
	remote.RemoveNode(mustNode(t, remote, "delay"))
	mustNode(t, remote, "begin").Comment = "hi"

	target := model.NewGraph("EventGraph", "asset")
	tx := NewTransaction("EventGraph", base, remote, local, target)
	notified := 0
	target.Subscribe(func(*model.Graph) { notified++ })

	require.True(t, tx.ApplyRemote(entryOf(t, tx, diff.NodeCommentChanged)))
	assert.Zero(t, notified)

	require.True(t, tx.ApplyRemote(entryOf(t, tx, diff.NodeRemoved)))
	assert.Equal(t, 1, notified)

	// Dry runs never notify.
	tx.CanRevert(entryOf(t, tx, diff.NodeRemoved))
	assert.Equal(t, 1, notified)
}

func TestApplyMissingSideFails(t *testing.T) {
	base := eventGraph()
	remote, local := forks(base)
	mustNode(t, local, "begin").Comment = "local"

	tx := NewTransaction("EventGraph", base, remote, local, nil)
	e := tx.Changes()[0]
	assert.False(t, e.HasRemote())
	assert.False(t, tx.CanApplyRemote(e))
	assert.False(t, tx.ApplyRemote(e))
	assert.Contains(t, tx.FailureReason(), "no remote change")
	assert.True(t, tx.CanRevert(e))
	assert.True(t, tx.Revert(e))
}
