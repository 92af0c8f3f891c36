package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	// Run from an empty directory so no config file is discovered.
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, filepath.IsAbs(cfg.RulesDir))
	assert.Equal(t, "rules", filepath.Base(cfg.RulesDir))
}

func TestLoad_ExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
rules_dir: models
server:
  port: 9100
log:
  level: debug
validation:
  disabled: [extension/reparented-class]
  severity:
    refs/undeclared-class: warning
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, filepath.Join(dir, "models"), cfg.RulesDir)
	assert.Equal(t, []string{"extension/reparented-class"}, cfg.Validation.Disabled)
	assert.Equal(t, "warning", cfg.Validation.Severity["refs/undeclared-class"])
}

func TestLoad_UpwardSearch(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "server:\n  port: 9200\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.Server.Port)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "server:\n  port: 9100\n")
	t.Setenv("NEAT_SERVER__PORT", "9300")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 9300, cfg.Server.Port)
}

func TestLoad_FlagsOverrideEverything(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "server:\n  port: 9100\n")
	t.Setenv("NEAT_SERVER__PORT", "9300")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 0, "")
	flags.String("rules-dir", "", "")
	require.NoError(t, flags.Parse([]string{"--port=9400"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, 9400, cfg.Server.Port)
	// Unchanged flags must not clobber other sources.
	assert.Equal(t, "rules", filepath.Base(cfg.RulesDir))
}

func TestLoad_InvalidPort(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "server:\n  port: 99999\n")

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		RulesDir:     "rules",
		WorkflowsDir: "workflows",
		Server:       ServerConfig{Host: "0.0.0.0", Port: 8000},
		Log:          LogConfig{Level: "info", Format: "text"},
	}
	assert.NoError(t, cfg.Validate())

	cfg.Log.Level = "loud"
	assert.Error(t, cfg.Validate())
}

func TestServerAddr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 8000}
	assert.Equal(t, "127.0.0.1:8000", s.Addr())
}
