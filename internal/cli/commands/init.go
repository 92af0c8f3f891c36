package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/neatkit/neat/internal/config"
	"github.com/neatkit/neat/pkg/rules"
	"github.com/neatkit/neat/pkg/rules/excel"
)

// InitOptions holds options for the init command.
type InitOptions struct {
	Dir   string // Project directory, defaults to the working directory
	Role  string // Role for the template workbook
	Force bool   // Overwrite existing files
}

const initConfigTemplate = `# NEAT project configuration.
rules_dir: rules
workflows_dir: workflows
state_path: .neat/state.db

server:
  host: 0.0.0.0
  port: 8000

log:
  level: info
  format: text
`

const initWorkflowTemplate = `name: publish
description: Validate the model and export the DMS schema
start_mode: blocking-singleton
steps:
  - id: load
    method: load-rules
    params:
      file: rules/model.xlsx
    transition_to: [validate]
  - id: validate
    method: validate-rules
    transition_to: [to-dms]
  - id: to-dms
    method: convert-role
    params:
      role: dms-architect
    transition_to: [export]
  - id: export
    method: export-schema
    params:
      format: dms
      file: schemas/model.yaml
`

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	opts := &InitOptions{}
	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Scaffold a new NEAT project",
		Long: `Create a NEAT project layout: neat.yaml, a rules directory with a
template workbook, a workflows directory with an example publish
workflow, and the state directory.`,
		Example: `  # Initialize the current directory
  neat init

  # Initialize a new directory with a domain-expert template
  neat init my-project --role domain-expert`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.Dir = args[0]
			}
			return runInit(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Role, "role", "r", string(rules.RoleInfoArchitect), "Role for the template workbook")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Overwrite existing files")
	return cmd
}

func runInit(cmd *cobra.Command, opts *InitOptions) error {
	role, err := rules.ParseRole(opts.Role)
	if err != nil {
		return err
	}

	dir := opts.Dir
	if dir == "" {
		dir, err = os.Getwd()
		if err != nil {
			return err
		}
	}

	for _, sub := range []string{config.DefaultRulesDir, config.DefaultWorkflowsDir, ".neat"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return err
		}
	}

	files := []struct {
		path    string
		content string
	}{
		{filepath.Join(dir, config.ConfigFileName), initConfigTemplate},
		{filepath.Join(dir, config.DefaultWorkflowsDir, "publish.yaml"), initWorkflowTemplate},
	}
	for _, f := range files {
		if _, err := os.Stat(f.path); err == nil && !opts.Force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", f.path)
		}
		if err := os.WriteFile(f.path, []byte(f.content), 0o644); err != nil {
			return err
		}
	}

	workbook := filepath.Join(dir, config.DefaultRulesDir, "model.xlsx")
	if _, err := os.Stat(workbook); err != nil || opts.Force {
		if err := excel.WriteTemplate(workbook, role); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Initialized NEAT project in %s\n", dir)
	_, _ = fmt.Fprintln(out, "  neat.yaml            project configuration")
	_, _ = fmt.Fprintf(out, "  rules/model.xlsx     %s template workbook\n", role)
	_, _ = fmt.Fprintln(out, "  workflows/publish.yaml  example workflow")
	_, _ = fmt.Fprintln(out, "\nNext: edit rules/model.xlsx, then run 'neat validate model'")
	return nil
}
