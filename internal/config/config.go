// Package config loads tool configuration from neat.yaml, environment
// variables, and CLI flags. Precedence, highest first: flags, env
// vars, config file, defaults.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/neatkit/neat/pkg/rules/validation"
)

// Default configuration values.
const (
	DefaultRulesDir     = "rules"
	DefaultWorkflowsDir = "workflows"
	DefaultStatePath    = ".neat/state.db"
	DefaultHost         = "0.0.0.0"
	DefaultPort         = 8000
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
)

// ServerConfig holds the REST server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig controls slog output.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text, json
}

// ValidationConfig configures the rules analyzer.
type ValidationConfig struct {
	Disabled    []string          `koanf:"disabled"`
	Severity    map[string]string `koanf:"severity"`
	MinSeverity string            `koanf:"min_severity"`
}

// ToAnalyzer converts to the analyzer's own config type.
func (v ValidationConfig) ToAnalyzer() validation.Config {
	return validation.Config{
		Disabled:    v.Disabled,
		Severity:    v.Severity,
		MinSeverity: v.MinSeverity,
	}
}

// Config is the full tool configuration.
type Config struct {
	RulesDir     string           `koanf:"rules_dir"`
	WorkflowsDir string           `koanf:"workflows_dir"`
	StatePath    string           `koanf:"state_path"`
	Server       ServerConfig     `koanf:"server"`
	Log          LogConfig        `koanf:"log"`
	Validation   ValidationConfig `koanf:"validation"`

	// ProjectRoot is the directory the config file was found in, or
	// the working directory when none was. Relative paths resolve
	// against it.
	ProjectRoot string `koanf:"-"`
}

// Validate checks the loaded configuration for problems that would
// fail later in confusing ways.
func (c *Config) Validate() error {
	if c.RulesDir == "" {
		return fmt.Errorf("rules_dir must not be empty")
	}
	if c.WorkflowsDir == "" {
		return fmt.Errorf("workflows_dir must not be empty")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// resolvePaths makes directory settings absolute relative to the
// project root.
func (c *Config) resolvePaths() {
	c.RulesDir = resolveRelativeTo(c.RulesDir, c.ProjectRoot)
	c.WorkflowsDir = resolveRelativeTo(c.WorkflowsDir, c.ProjectRoot)
	if c.StatePath != ":memory:" {
		c.StatePath = resolveRelativeTo(c.StatePath, c.ProjectRoot)
	}
}

func resolveRelativeTo(path, base string) string {
	if path == "" || filepath.IsAbs(path) || base == "" {
		return path
	}
	return filepath.Join(base, path)
}
