package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flags() *pflag.FlagSet {
	f := pflag.NewFlagSet("merge-assist", pflag.ContinueOnError)
	f.String("base", "", "")
	f.String("policy", "base", "")
	f.Int("port", 8080, "")
	f.StringSlice("graphs", nil, "")
	return f
}

func TestDefaults(t *testing.T) {
	cfg, err := LoadFile("", nil)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "base", cfg.Policy)
	assert.Equal(t, "info", cfg.Verbosity)
	assert.Empty(t, cfg.Graphs)
}

func TestMissingFileIsIgnored(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"), nil)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
}

func TestLayering(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(`
base = "base.yaml"
policy = "remote"
port = 9000
graphs = ["Event*"]
`), 0o644))

	t.Setenv("MERGE_ASSIST_PORT", "9100")
	t.Setenv("MERGE_ASSIST_JSON_LOGS", "true")

	f := flags()
	require.NoError(t, f.Parse([]string{"--policy", "local"}))

	cfg, err := LoadFile(path, f)
	require.NoError(t, err)
	assert.Equal(t, "base.yaml", cfg.Base)   // file
	assert.Equal(t, 9100, cfg.Port)          // env beats file
	assert.Equal(t, "local", cfg.Policy)     // flag beats file
	assert.True(t, cfg.JSONLogs)             // env
	assert.Equal(t, []string{"Event*"}, cfg.Graphs)
}

func TestMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte("port = ="), 0o644))
	_, err := LoadFile(path, nil)
	assert.Error(t, err)
}

func TestRevisions(t *testing.T) {
	cfg := &Config{Local: "mine.yaml"}
	_, _, _, err := cfg.Revisions()
	assert.Error(t, err)

	cfg.Remote = "theirs.yaml"
	base, local, remote, err := cfg.Revisions()
	require.NoError(t, err)
	assert.Equal(t, "", base)
	assert.Equal(t, "mine.yaml", local)
	assert.Equal(t, "theirs.yaml", remote)
}
