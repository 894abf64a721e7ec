package main

import (
	"github.com/spf13/cobra"

	"github.com/ritzau/merge-assist/pkg/cycles"
	"github.com/ritzau/merge-assist/pkg/diff"
	"github.com/ritzau/merge-assist/pkg/loader"
	"github.com/ritzau/merge-assist/pkg/logging"
	"github.com/ritzau/merge-assist/pkg/model"
	"github.com/ritzau/merge-assist/pkg/output"
)

var diffCmd = &cobra.Command{
	Use:   "diff <old> <new>",
	Short: "Show the differences between two documents",
	Long: `Show the node, pin and link differences of every graph of two documents.

Examples:
  merge-assist diff base.yaml mine.yaml
  merge-assist diff base.yaml.zst theirs.yaml.zst`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func runDiff(cmd *cobra.Command, args []string) error {
	oldDoc, err := loader.Load(args[0])
	if err != nil {
		return err
	}
	newDoc, err := loader.Load(args[1])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	total := 0
	for _, name := range model.UnionGraphNames(oldDoc, newDoc) {
		oldGraph, newGraph := oldDoc.Graph(name), newDoc.Graph(name)
		if oldGraph == nil {
			oldGraph = model.NewGraph(name, newGraph.OriginID)
		}
		if newGraph == nil {
			newGraph = model.NewGraph(name, oldGraph.OriginID)
		}
		d := diff.DiffGraphs(oldGraph, newGraph)
		total += len(d.Results)
		output.PrintDiffs(w, name, d.Results)

		if n := len(cycles.FindLinkCycles(newGraph)); n > 0 {
			logging.Warn("graph has link cycles", "graph", name, "cycles", n)
		}
	}
	logging.Debug("diff finished", "old", args[0], "new", args[1], "differences", total)
	return nil
}
