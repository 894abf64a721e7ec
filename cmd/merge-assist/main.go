// Command merge-assist is a three-way merge assistant for node graph
// documents. It diffs revisions, merges them automatically by policy and
// serves an HTTP API for resolving conflicts interactively.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ritzau/merge-assist/pkg/config"
	"github.com/ritzau/merge-assist/pkg/logging"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "merge-assist",
	Short: "Three-way merge assistant for node graph documents",
	Long: `merge-assist compares node graph documents and merges the changes of a
remote and a local revision onto their common base.

Settings are read from merge-assist.toml, MERGE_ASSIST_* environment
variables and flags, in increasing order of precedence.

Examples:
  merge-assist diff old.yaml new.yaml
  merge-assist merge --base base.yaml --local mine.yaml --remote theirs.yaml --output merged.yaml
  merge-assist merge --policy remote --graphs 'Event*' ...
  merge-assist serve --watch --base base.yaml --local mine.yaml --remote theirs.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd.Flags())
		if err != nil {
			return err
		}
		level := logging.ParseLevel(cfg.Verbosity)
		if cfg.JSONLogs {
			logging.SetJSONOutput(level)
		} else {
			logging.SetLevel(level)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("verbosity", "info", "Log level: trace, debug, info, warn or error")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Write logs as JSON")

	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(serveCmd)
}

// addRevisionFlags declares the flags shared by merge and serve.
func addRevisionFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("base", "", "Common ancestor document (optional)")
	f.String("local", "", "Local document")
	f.String("remote", "", "Remote document")
	f.StringP("output", "o", "", "Where to write the merged document (stdout for merge if empty)")
	f.StringSlice("graphs", nil, "Only merge graphs matching these patterns")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "Error: "+err.Error())
		stop()
		os.Exit(exitCode(err))
	}
}

// errUnresolved exits with status 2 so scripts can tell conflicts apart
// from failures.
var errUnresolved = errors.New("merge has unresolved conflicts")

func exitCode(err error) int {
	if errors.Is(err, errUnresolved) {
		return 2
	}
	return 1
}
