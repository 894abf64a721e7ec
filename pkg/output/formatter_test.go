package output

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/ritzau/merge-assist/pkg/conflict"
	"github.com/ritzau/merge-assist/pkg/diff"
	"github.com/ritzau/merge-assist/pkg/merge"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	m.Run()
}

func TestPrintDiffs(t *testing.T) {
	var buf bytes.Buffer
	PrintDiffs(&buf, "EventGraph", nil)
	assert.Contains(t, buf.String(), "no differences")

	buf.Reset()
	PrintDiffs(&buf, "EventGraph", []diff.Result{
		{Kind: diff.NodeAdded, Label: "Added node", Tooltip: "Added node 'Delay'", Color: diff.ColorSoftGreen},
	})
	out := buf.String()
	assert.Contains(t, out, "EventGraph\n")
	assert.Contains(t, out, "Added node")
	assert.Contains(t, out, "Added node 'Delay'")
}

func TestPrintChangeList(t *testing.T) {
	entries := []*conflict.Entry{
		{
			Label:    "CONFLICT: 'x' conflicts with 'y'",
			Remote:   diff.Result{Kind: diff.NodeCommentChanged, Label: "y"},
			Local:    diff.Result{Kind: diff.NodeCommentChanged, Label: "x"},
			Conflict: true,
		},
		{Label: "Moved node", Local: diff.Result{Kind: diff.NodeMoved, Label: "Moved node"}, State: conflict.StateLocal},
	}

	var buf bytes.Buffer
	PrintChangeList(&buf, "EventGraph", entries)
	out := buf.String()
	assert.Contains(t, out, "EventGraph (2 changes)")
	assert.Contains(t, out, "  0 [ ] CONFLICT")
	assert.Contains(t, out, "remote: y")
	assert.Contains(t, out, "  1 [L] Moved node (local)")
}

func TestPrintStatusAndAutoMerge(t *testing.T) {
	var buf bytes.Buffer
	PrintStatus(&buf, merge.Status{ID: "s1", Graphs: []merge.GraphStatus{
		{Name: "EventGraph", Changes: conflict.Summary{Total: 3, Conflicts: 1, Applied: 2}, Cycles: 1},
		{Name: "Construction", Changes: conflict.Summary{Total: 1, Applied: 1}},
	}})
	out := buf.String()
	assert.Contains(t, out, "1 conflicts")
	assert.Contains(t, out, "1 link cycle(s)")
	assert.Contains(t, out, "Summary: 4 changes, 1 conflicts, 3 applied")

	buf.Reset()
	PrintAutoMerge(&buf, merge.PolicyBase, merge.AutoMergeResult{Applied: 3, Skipped: 1, Failed: 1, Conflicts: 1})
	out = buf.String()
	assert.Contains(t, out, "Auto merge (base): 3 applied, 1 skipped, 1 failed")
	assert.Contains(t, out, "1 conflict(s) left unresolved")
}
