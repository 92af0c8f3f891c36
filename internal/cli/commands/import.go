package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ImportOptions holds options for the import command.
type ImportOptions struct {
	Output string // Output YAML path, empty for stdout
}

// NewImportCommand creates the import command.
func NewImportCommand() *cobra.Command {
	opts := &ImportOptions{}
	cmd := &cobra.Command{
		Use:   "import <document|workbook.xlsx>",
		Short: "Dump a rules workbook as YAML",
		Long: `Read a rules workbook and print the parsed model as YAML, for
diffing, review, or feeding into other tools.`,
		Example: `  # Dump a document to stdout
  neat import power

  # Write the YAML next to the workbook
  neat import ./power.xlsx -o power.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Output YAML path (default stdout)")
	return cmd
}

func runImport(cmd *cobra.Command, ref string, opts *ImportOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	name, model, _, err := cmdCtx.resolveDocument(ref)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(model)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", name, err)
	}

	if opts.Output == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(opts.Output), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Imported %s: %s\n", name, opts.Output)
	return nil
}
