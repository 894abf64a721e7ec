package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/merge-assist/pkg/loader"
)

func writeRevision(t *testing.T, dir, name, comment string, x int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	doc := strings.NewReplacer("COMMENT", comment, "X", strings.Repeat("1", x)).Replace(`
name: Actor
graphs:
  - name: EventGraph
    nodes:
      - {id: begin, class: Event, title: Event BeginPlay, comment: "COMMENT", x: X}
`)
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMergeCommand(t *testing.T) {
	dir := t.TempDir()
	base := writeRevision(t, dir, "base.yaml", "", 1)
	local := writeRevision(t, dir, "local.yaml", "mine", 1)
	remote := writeRevision(t, dir, "remote.yaml", "theirs", 2)
	merged := filepath.Join(dir, "merged.yaml.zst")

	out, err := run(t, "merge", "--base", base, "--local", local, "--remote", remote,
		"--policy", "local", "--output", merged)
	require.NoError(t, err, out)
	assert.Contains(t, out, "EventGraph (2 changes)")
	assert.Contains(t, out, "Auto merge (local): 2 applied")

	doc, err := loader.Load(merged)
	require.NoError(t, err)
	begin, ok := doc.Graph("EventGraph").FindNodeByID("begin")
	require.True(t, ok)
	assert.Equal(t, "mine", begin.Comment)
	assert.Equal(t, 11.0, begin.X)
}

func TestMergeCommandRemovedLink(t *testing.T) {
	dir := t.TempDir()
	linked := `
name: Actor
graphs:
  - name: EventGraph
    nodes:
      - {id: print, class: CallFunction, pins: [{name: then, direction: output, category: exec}]}
      - {id: delay, class: CallFunction, x: 400, pins: [{name: execute, direction: input, category: exec}]}
    links:
      - from: {node: print, pin: then}
        to: {node: delay, pin: execute}
`
	unlinked := linked[:strings.Index(linked, "    links:")]
	write := func(name, doc string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
		return path
	}
	base, local := write("base.yaml", linked), write("local.yaml", linked)
	remote := write("remote.yaml", unlinked)
	merged := filepath.Join(dir, "merged.yaml")

	out, err := run(t, "merge", "--base", base, "--local", local, "--remote", remote,
		"--policy", "base", "--output", merged)
	require.NoError(t, err, out)
	assert.Contains(t, out, "EventGraph (2 changes)")
	assert.Contains(t, out, "Auto merge (base): 1 applied, 1 skipped")

	doc, err := loader.Load(merged)
	require.NoError(t, err)
	assert.Empty(t, doc.Graph("EventGraph").Links())
}

func TestDiffCommand(t *testing.T) {
	dir := t.TempDir()
	old := writeRevision(t, dir, "old.yaml", "", 1)
	changed := writeRevision(t, dir, "new.yaml", "hello", 1)

	out, err := run(t, "diff", old, changed)
	require.NoError(t, err)
	assert.Contains(t, out, "EventGraph")
	assert.Contains(t, out, "NODE_COMMENT_CHANGED")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, exitCode(errUnresolved))
	assert.Equal(t, 1, exitCode(assert.AnError))
}
