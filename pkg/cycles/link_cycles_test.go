package cycles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/merge-assist/pkg/model"
)

var exec = model.PinType{Category: "exec"}

// chain builds nodes with one exec input and output each, linked in order.
func chain(titles ...string) (*model.Graph, []*model.Node) {
	g := model.NewGraph("EventGraph", "asset")
	nodes := make([]*model.Node, len(titles))
	for i, title := range titles {
		n := g.AddNode(title, "K", title, title)
		n.CreatePin(model.DirectionInput, exec, "in")
		n.CreatePin(model.DirectionOutput, exec, "out")
		nodes[i] = n
		if i > 0 {
			connect(nodes[i-1], n)
		}
	}
	return g, nodes
}

func connect(from, to *model.Node) {
	from.FindPin("out", model.DirectionOutput).MakeLinkTo(to.FindPin("in", model.DirectionInput))
}

func TestFindLinkCycles_NoCycles(t *testing.T) {
	g, _ := chain("a", "b", "c")
	assert.Empty(t, FindLinkCycles(g))
	assert.False(t, HasCycles(g))
	assert.Empty(t, FindLinkCycles(nil))
}

func TestFindLinkCycles_SimpleCycle(t *testing.T) {
	g, nodes := chain("a", "b")
	connect(nodes[1], nodes[0])

	cycles := FindLinkCycles(g)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a", "b"}, cycles[0].Titles())
}

func TestFindLinkCycles_MultipleCycles(t *testing.T) {
	// a -> b -> c -> a and d -> e -> d, with f hanging off c.
	g, nodes := chain("a", "b", "c", "d", "e", "f")
	nodes[2].FindPin("out", model.DirectionOutput).BreakAllPinLinks()
	nodes[3].FindPin("in", model.DirectionInput).BreakAllPinLinks()
	nodes[4].FindPin("out", model.DirectionOutput).BreakAllPinLinks()
	connect(nodes[2], nodes[0])
	connect(nodes[4], nodes[3])
	connect(nodes[2], nodes[5])

	cycles := FindLinkCycles(g)
	require.Len(t, cycles, 2)
	assert.Equal(t, []string{"a", "b", "c"}, cycles[0].Titles())
	assert.Equal(t, []string{"d", "e"}, cycles[1].Titles())
}

func TestFindLinkCycles_SelfLink(t *testing.T) {
	g, nodes := chain("loop", "after")
	connect(nodes[0], nodes[0])

	cycles := FindLinkCycles(g)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"loop"}, cycles[0].Titles())
}

func TestFindLinkCycles_IgnoresSameDirectionLinks(t *testing.T) {
	g, nodes := chain("a", "b")
	// Input to input links carry no flow.
	nodes[1].FindPin("in", model.DirectionInput).MakeLinkTo(nodes[0].FindPin("in", model.DirectionInput))
	assert.Empty(t, FindLinkCycles(g))
}
