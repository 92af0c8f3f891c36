package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neatkit/neat/pkg/rules"
	"github.com/neatkit/neat/pkg/rules/convert"
	"github.com/neatkit/neat/pkg/rules/excel"
)

// ConvertOptions holds options for the convert command.
type ConvertOptions struct {
	Role   string // Target role
	Output string // Output workbook path
}

// NewConvertCommand creates the convert command.
func NewConvertCommand() *cobra.Command {
	opts := &ConvertOptions{}
	cmd := &cobra.Command{
		Use:   "convert <document|workbook.xlsx>",
		Short: "Convert a rules document to another role",
		Long: `Convert a rules document downward through the modelling roles,
enriching it with the technical detail the target role needs.

The converted model is written to a new workbook. Without --output the
file lands next to the rules directory as <name>.<role>.xlsx.`,
		Example: `  # Produce a DMS architect workbook from an information model
  neat convert power --role dms-architect

  # Convert a file and choose the destination
  neat convert ./power.xlsx --role dms-architect -o ./power-dms.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Role, "role", "r", "", "Target role (required)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Output workbook path")
	_ = cmd.MarkFlagRequired("role")

	_ = cmd.RegisterFlagCompletionFunc("role", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"domain-expert", "information-architect", "dms-architect"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runConvert(cmd *cobra.Command, ref string, opts *ConvertOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	name, model, _, err := cmdCtx.resolveDocument(ref)
	if err != nil {
		return err
	}

	role, err := rules.ParseRole(opts.Role)
	if err != nil {
		return err
	}
	converted, err := convert.ToRole(model, role)
	if err != nil {
		return fmt.Errorf("failed to convert %q: %w", name, err)
	}

	out := opts.Output
	if out == "" {
		out = filepath.Join(cmdCtx.Cfg.RulesDir, fmt.Sprintf("%s.%s.xlsx", name, role))
		if strings.EqualFold(filepath.Ext(ref), ".xlsx") {
			out = strings.TrimSuffix(ref, filepath.Ext(ref)) + fmt.Sprintf(".%s.xlsx", role)
		}
	}
	if err := excel.Write(out, converted); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Converted %s to %s: %s\n", name, role, out)
	return nil
}
