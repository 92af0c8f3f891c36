package commands

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neatkit/neat/internal/config"
	"github.com/neatkit/neat/internal/registry"
	"github.com/neatkit/neat/pkg/rules"
	"github.com/neatkit/neat/pkg/rules/excel"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// NewCommandContext resolves the configuration and logger for a
// command. Falls back to a fresh Load when the root command's
// PersistentPreRunE did not run (direct command tests).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg := config.Current()
	if cfg == nil {
		var err error
		cfg, err = config.Load("", nil)
		if err != nil {
			return nil, err
		}
	}
	return &CommandContext{
		Cfg:    cfg,
		Logger: config.GetLogger(cmd.Context()),
	}, nil
}

// openRegistry builds a rules registry over the configured directory.
func (c *CommandContext) openRegistry() (*registry.Registry, error) {
	reg := registry.New(c.Cfg.RulesDir, c.Logger)
	if err := reg.Reload(); err != nil {
		return nil, fmt.Errorf("failed to scan rules directory: %w", err)
	}
	return reg, nil
}

// resolveDocument loads a rules document named either by registry name
// or by a direct workbook path.
func (c *CommandContext) resolveDocument(ref string) (string, *rules.Model, *rules.Model, error) {
	if strings.EqualFold(filepath.Ext(ref), ".xlsx") {
		model, snapshot, err := excel.Read(ref)
		if err != nil {
			return "", nil, nil, err
		}
		name := strings.TrimSuffix(filepath.Base(ref), filepath.Ext(ref))
		return name, model, snapshot, nil
	}

	reg, err := c.openRegistry()
	if err != nil {
		return "", nil, nil, err
	}
	doc, ok := reg.Get(ref)
	if !ok {
		return "", nil, nil, fmt.Errorf("rules document %q not found in %s", ref, c.Cfg.RulesDir)
	}
	model, snapshot, err := doc.Load()
	if err != nil {
		return "", nil, nil, err
	}
	return doc.Name, model, snapshot, nil
}
