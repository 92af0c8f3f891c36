package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/neatkit/neat/pkg/rules"
	"github.com/neatkit/neat/pkg/rules/convert"
	"github.com/neatkit/neat/pkg/rules/export"
)

// ExportOptions holds options for the export command.
type ExportOptions struct {
	Format string // Export format: dms, owl, shacl, graphql
	Output string // Output file path, empty for stdout
}

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	opts := &ExportOptions{}
	cmd := &cobra.Command{
		Use:   "export <document|workbook.xlsx>",
		Short: "Export a rules document to a schema format",
		Long: `Export a rules document as a target schema.

Supported formats: dms, owl, shacl, graphql. DMS export converts the
model to the DMS architect role on the fly when needed. Output goes to
stdout unless --output names a file.`,
		Example: `  # Print the OWL ontology
  neat export power --format owl

  # Write the DMS schema YAML to a file
  neat export power --format dms -o schemas/power.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Export format: dms, owl, shacl, graphql (required)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Output file path (default stdout)")
	_ = cmd.MarkFlagRequired("format")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"dms", "owl", "shacl", "graphql"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runExport(cmd *cobra.Command, ref string, opts *ExportOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	name, model, _, err := cmdCtx.resolveDocument(ref)
	if err != nil {
		return err
	}

	format, err := export.ParseFormat(opts.Format)
	if err != nil {
		return err
	}

	target := model
	if format == export.FormatDMS && model.Metadata.Role != rules.RoleDMSArchitect {
		target, err = convert.ToRole(model, rules.RoleDMSArchitect)
		if err != nil {
			return fmt.Errorf("failed to convert %q for DMS export: %w", name, err)
		}
	}

	if opts.Output == "" {
		return export.Write(cmd.OutOrStdout(), target, format)
	}

	if err := os.MkdirAll(filepath.Dir(opts.Output), 0o755); err != nil {
		return err
	}
	f, err := os.Create(opts.Output)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := export.Write(f, target, format); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Exported %s as %s: %s\n", name, format, opts.Output)
	return nil
}
