// Package output renders diffs, change lists and session summaries for the
// console.
package output

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/ritzau/merge-assist/pkg/conflict"
	"github.com/ritzau/merge-assist/pkg/diff"
	"github.com/ritzau/merge-assist/pkg/merge"
)

var (
	bold   = color.New(color.Bold)
	red    = color.New(color.FgRed)
	green  = color.New(color.FgGreen)
	blue   = color.New(color.FgBlue)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
	alert  = color.New(color.FgRed, color.Bold)
)

// colorOf maps a diff color to the closest terminal color.
func colorOf(c diff.Color) *color.Color {
	switch c {
	case diff.ColorSoftRed:
		return red
	case diff.ColorSoftGreen:
		return green
	case diff.ColorSoftBlue:
		return blue
	case diff.ColorSoftYellow:
		return yellow
	default:
		return color.New(color.Reset)
	}
}

// PrintDiffs prints the differences of one graph.
func PrintDiffs(w io.Writer, graph string, results []diff.Result) {
	bold.Fprintf(w, "%s\n", graph)
	if len(results) == 0 {
		green.Fprintln(w, "  no differences")
		return
	}
	for _, r := range results {
		colorOf(r.Color).Fprintf(w, "  %-24s %s\n", r.Kind, r.Label)
		if r.Tooltip != "" && r.Tooltip != r.Label {
			fmt.Fprintf(w, "  %-24s %s\n", "", r.Tooltip)
		}
	}
}

// stateMarker shows which side of an entry is applied.
func stateMarker(s conflict.MergeState) string {
	switch s {
	case conflict.StateRemote:
		return "[R]"
	case conflict.StateLocal:
		return "[L]"
	default:
		return "[ ]"
	}
}

// PrintChangeList prints the change list of one graph, one line per entry,
// prefixed with its index.
func PrintChangeList(w io.Writer, graph string, entries []*conflict.Entry) {
	bold.Fprintf(w, "%s (%d changes)\n", graph, len(entries))
	for i, e := range entries {
		fmt.Fprintf(w, "  %3d %s ", i, stateMarker(e.State))
		if e.Conflict {
			alert.Fprintf(w, "%s\n", e.Label)
			fmt.Fprintf(w, "          remote: %s\n", e.Remote.Label)
			fmt.Fprintf(w, "          local:  %s\n", e.Local.Label)
			continue
		}
		side := "remote"
		if !e.HasRemote() {
			side = "local"
		}
		colorOf(e.Color).Fprintf(w, "%s", e.Label)
		cyan.Fprintf(w, " (%s)\n", side)
	}
}

// PrintStatus prints a session summary with a warning for every graph whose
// merge result has link cycles.
func PrintStatus(w io.Writer, st merge.Status) {
	bold.Fprintf(w, "Merge session %s\n", st.ID)
	var total conflict.Summary
	for _, g := range st.Graphs {
		c := g.Changes
		total.Total += c.Total
		total.Conflicts += c.Conflicts
		total.Applied += c.Applied

		line := fmt.Sprintf("  %-24s %3d changes, %d applied", g.Name, c.Total, c.Applied)
		switch {
		case c.Conflicts > 0:
			yellow.Fprintf(w, "%s, %d conflicts\n", line, c.Conflicts)
		default:
			fmt.Fprintln(w, line)
		}
		if g.Cycles > 0 {
			red.Fprintf(w, "  %-24s merged graph has %d link cycle(s)\n", "", g.Cycles)
		}
	}

	summary := green
	if total.Conflicts > 0 {
		summary = yellow
	}
	summary.Fprintf(w, "Summary: %d changes, %d conflicts, %d applied\n", total.Total, total.Conflicts, total.Applied)
}

// PrintAutoMerge prints the outcome of an automatic merge.
func PrintAutoMerge(w io.Writer, policy merge.Policy, res merge.AutoMergeResult) {
	fmt.Fprintf(w, "Auto merge (%s): ", policy)
	green.Fprintf(w, "%d applied", res.Applied)
	fmt.Fprintf(w, ", %d skipped", res.Skipped)
	if res.Failed > 0 {
		red.Fprintf(w, ", %d failed", res.Failed)
	}
	fmt.Fprintln(w)
	if res.Conflicts > 0 && policy == merge.PolicyBase {
		yellow.Fprintf(w, "%d conflict(s) left unresolved\n", res.Conflicts)
	}
}
