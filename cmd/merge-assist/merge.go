package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ritzau/merge-assist/pkg/loader"
	"github.com/ritzau/merge-assist/pkg/logging"
	"github.com/ritzau/merge-assist/pkg/merge"
	"github.com/ritzau/merge-assist/pkg/model"
	"github.com/ritzau/merge-assist/pkg/output"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge local and remote changes onto base",
	Long: `Apply every non-conflicting change of the local and remote revisions to
a copy of base. Conflicts are resolved by --policy: "remote" and "local"
pick a side, "base" leaves them unresolved and exits with status 2.

Examples:
  merge-assist merge --base base.yaml --local mine.yaml --remote theirs.yaml
  merge-assist merge --policy local -o merged.yaml.zst --base b.yaml --local l.yaml --remote r.yaml
  merge-assist merge --dry-run --base b.yaml --local l.yaml --remote r.yaml`,
	Args: cobra.NoArgs,
	RunE: runMerge,
}

func init() {
	addRevisionFlags(mergeCmd)
	mergeCmd.Flags().String("policy", "base", "Conflict policy: base, remote or local")
	mergeCmd.Flags().Bool("dry-run", false, "Only print the change list")
}

// loadRevisions loads the three documents named by the configuration.
func loadRevisions() (base, local, remote *model.Document, err error) {
	basePath, localPath, remotePath, err := cfg.Revisions()
	if err != nil {
		return nil, nil, nil, err
	}
	if base, err = loader.LoadOptional(basePath); err != nil {
		return nil, nil, nil, err
	}
	if local, err = loader.Load(localPath); err != nil {
		return nil, nil, nil, err
	}
	if remote, err = loader.Load(remotePath); err != nil {
		return nil, nil, nil, err
	}
	return base, local, remote, nil
}

func runMerge(cmd *cobra.Command, args []string) error {
	policy, err := merge.ParsePolicy(cfg.Policy)
	if err != nil {
		return err
	}
	base, local, remote, err := loadRevisions()
	if err != nil {
		return err
	}

	session, err := merge.NewSession(cmd.Context(), base, remote, local, merge.Options{Graphs: cfg.Graphs})
	if err != nil {
		return err
	}

	// The merged document may go to stdout; reports go to stderr then.
	report := cmd.OutOrStdout()
	if cfg.Output == "" {
		report = cmd.ErrOrStderr()
	}
	for _, t := range session.Transactions() {
		output.PrintChangeList(report, t.Name(), t.Changes())
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if dryRun {
		output.PrintStatus(report, session.Status())
		return session.Cancel()
	}

	res, err := session.AutoMerge(policy)
	if err != nil {
		return err
	}
	output.PrintAutoMerge(report, policy, res)
	output.PrintStatus(report, session.Status())

	doc, err := session.Finish()
	if err != nil {
		return err
	}
	if err := writeDocument(cmd, doc); err != nil {
		return err
	}

	if res.Failed > 0 {
		return fmt.Errorf("%d change(s) could not be applied", res.Failed)
	}
	if policy == merge.PolicyBase && res.Conflicts > 0 {
		return errUnresolved
	}
	return nil
}

// writeDocument saves doc to the configured output, or stdout.
func writeDocument(cmd *cobra.Command, doc *model.Document) error {
	if cfg.Output == "" {
		return loader.Encode(cmd.OutOrStdout(), doc)
	}
	if err := loader.Save(cfg.Output, doc); err != nil {
		return err
	}
	logging.Info("merged document written", "path", cfg.Output)
	return nil
}
