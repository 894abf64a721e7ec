// Package config layers merge-assist settings from defaults, an optional
// TOML file, environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	// DefaultFile is read from the working directory when present.
	DefaultFile = "merge-assist.toml"
	// EnvPrefix prefixes environment overrides, e.g. MERGE_ASSIST_PORT=9090.
	EnvPrefix = "MERGE_ASSIST_"
)

// Config holds all configuration for the application
type Config struct {
	Base   string `koanf:"base"`
	Local  string `koanf:"local"`
	Remote string `koanf:"remote"`
	Output string `koanf:"output"`

	// Graphs limits the merge to graph names matching these patterns.
	Graphs []string `koanf:"graphs"`
	// Policy is the auto merge policy: base, remote or local.
	Policy string `koanf:"policy"`

	Port      int    `koanf:"port"`
	Watch     bool   `koanf:"watch"`
	Verbosity string `koanf:"verbosity"`
	JSONLogs  bool   `koanf:"json-logs"`
}

// Defaults returns the built-in configuration values.
func Defaults() map[string]any {
	return map[string]any{
		"base":      "",
		"local":     "",
		"remote":    "",
		"output":    "",
		"graphs":    []string{},
		"policy":    "base",
		"port":      8080,
		"watch":     false,
		"verbosity": "info",
		"json-logs": false,
	}
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	return LoadFile(DefaultFile, f)
}

// LoadFile is Load with an explicit config file path. A missing file is not
// an error, a malformed one is.
func LoadFile(path string, f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(makeMapProvider(Defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil && !isNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	// Keys use dashes, so MERGE_ASSIST_JSON_LOGS maps to json-logs.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, EnvPrefix)), "_", "-")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Revisions returns the base, local and remote paths and fails if local or
// remote is missing. Base may be empty for a merge without common ancestor.
func (c *Config) Revisions() (base, local, remote string, err error) {
	if c.Local == "" || c.Remote == "" {
		return "", "", "", fmt.Errorf("both local and remote revisions are required")
	}
	return c.Base, c.Local, c.Remote, nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]any
}

func makeMapProvider(m map[string]any) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]any, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
