package vtree

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/signadot/vtree/debug"
)

// Config represents an engine configuration file.
type Config struct {
	// LogLevel is one of debug, info, warn, error. Defaults to info.
	LogLevel string `yaml:"logLevel,omitempty"`

	// MaxPatchesPerCommit bounds the patch list of a single commit. Larger
	// patch lists fail validation and are not committed. Zero means no
	// limit.
	MaxPatchesPerCommit int `yaml:"maxPatchesPerCommit,omitempty"`

	// Memoize reuses the rendered subtree of clean component instances.
	// Defaults to true.
	Memoize *bool `yaml:"memoize,omitempty"`

	// Debug lists debug channels to enable: diff, render, sched, commit,
	// host or all.
	Debug []string `yaml:"debug,omitempty"`
}

// LoadConfig loads a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.UnmarshalWithOptions(data, cfg, yaml.Strict()); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns a Config with defaults.
func DefaultConfig() *Config {
	memo := true
	return &Config{
		LogLevel: "info",
		Memoize:  &memo,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.MaxPatchesPerCommit < 0 {
		return fmt.Errorf("maxPatchesPerCommit must not be negative, got %d", c.MaxPatchesPerCommit)
	}
	for _, name := range c.Debug {
		switch strings.ToLower(name) {
		case "diff", "render", "sched", "commit", "host", "all":
		default:
			return fmt.Errorf("unknown debug channel %q", name)
		}
	}
	return nil
}

func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("bad logLevel %q: %w", c.LogLevel, err)
	}
	return l, nil
}

func (c *Config) memoize() bool {
	return c.Memoize == nil || *c.Memoize
}

// Apply enables the configured debug channels.
func (c *Config) Apply() error {
	return debug.Enable(c.Debug...)
}
