package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/ritzau/merge-assist/pkg/loader"
	"github.com/ritzau/merge-assist/pkg/logging"
	"github.com/ritzau/merge-assist/pkg/merge"
	"github.com/ritzau/merge-assist/pkg/model"
	"github.com/ritzau/merge-assist/pkg/pubsub"
	"github.com/ritzau/merge-assist/pkg/watcher"
	"github.com/ritzau/merge-assist/pkg/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a merge session over HTTP",
	Long: `Start a merge session and expose it over HTTP for interactive conflict
resolution. Finishing the session writes the merged document to --output,
or over the local revision when no output is given.

Examples:
  merge-assist serve --base base.yaml --local mine.yaml --remote theirs.yaml
  merge-assist serve --port 9090 --watch --base b.yaml --local l.yaml --remote r.yaml`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	addRevisionFlags(serveCmd)
	serveCmd.Flags().Int("port", 8080, "Port for the HTTP API")
	serveCmd.Flags().Bool("watch", false, "Report when revision files change on disk")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	base, local, remote, err := loadRevisions()
	if err != nil {
		return err
	}

	target := cfg.Output
	if target == "" {
		target = cfg.Local
	}
	srv := web.NewServer(pubsub.NewSSEPublisher(), func(doc *model.Document) error {
		return loader.Save(target, doc)
	})

	session, err := merge.NewSession(ctx, base, remote, local, srv.SessionOptions(merge.Options{Graphs: cfg.Graphs}))
	if err != nil {
		return err
	}
	srv.SetSession(session)

	if cfg.Watch {
		if err := watchRevisions(ctx, srv); err != nil {
			return err
		}
	}

	return srv.Start(ctx, cfg.Port)
}

// watchRevisions marks the session stale whenever a revision file changes.
func watchRevisions(ctx context.Context, srv *web.Server) error {
	rw, err := watcher.NewRevisionWatcher(map[watcher.Revision]string{
		watcher.RevisionBase:   cfg.Base,
		watcher.RevisionLocal:  cfg.Local,
		watcher.RevisionRemote: cfg.Remote,
	})
	if err != nil {
		return err
	}
	if err := rw.Start(ctx); err != nil {
		rw.Stop()
		return err
	}

	d := watcher.NewDebouncer(rw.Events(), 300*time.Millisecond, 2*time.Second)
	d.Start(ctx)
	go func() {
		for event := range d.Output() {
			analysis := watcher.AnalyzeChanges(event)
			logging.Info("revision files changed", "revisions", event.Revisions, "restart", analysis.NeedRestart)
			srv.MarkStale(analysis)
		}
	}()
	return nil
}
