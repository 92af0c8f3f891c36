package commands

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/neatkit/neat/pkg/rules/validation"
)

// ValidateOptions holds options for the validate command.
type ValidateOptions struct {
	Format      string   // Output format: table, json
	MinSeverity string   // Minimum severity to report: error, warning, info
	Disable     []string // Rule IDs to disable
	NoFail      bool     // Exit zero even when errors are found
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	opts := &ValidateOptions{}
	cmd := &cobra.Command{
		Use:   "validate <document|workbook.xlsx>",
		Short: "Validate a rules document",
		Long: `Run validation rules against a rules document.

The document is named either by its registry name in the rules
directory or by a direct path to a workbook file. Issues are reported
per sheet and row; error-level issues make the command exit non-zero.`,
		Example: `  # Validate a document from the rules directory
  neat validate power

  # Validate a workbook file directly
  neat validate ./drafts/power.xlsx

  # Only report errors, as JSON
  neat validate power --min-severity error --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: table, json")
	cmd.Flags().StringVar(&opts.MinSeverity, "min-severity", "", "Minimum severity to report: error, warning, info")
	cmd.Flags().StringSliceVar(&opts.Disable, "disable", nil, "Rule IDs to disable")
	cmd.Flags().BoolVar(&opts.NoFail, "no-fail", false, "Exit zero even when errors are found")

	return cmd
}

func runValidate(cmd *cobra.Command, ref string, opts *ValidateOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	name, model, snapshot, err := cmdCtx.resolveDocument(ref)
	if err != nil {
		return err
	}

	cfg := cmdCtx.Cfg.Validation.ToAnalyzer()
	cfg.Disabled = append(cfg.Disabled, opts.Disable...)
	if opts.MinSeverity != "" {
		cfg.MinSeverity = opts.MinSeverity
	}

	report := validation.NewAnalyzer(cfg).Analyze(model, snapshot)

	if opts.Format == "json" {
		out := map[string]any{
			"document": name,
			"issues":   report,
			"errors":   report.Count(validation.SeverityError),
			"warnings": report.Count(validation.SeverityWarning),
			"valid":    !report.HasErrors(),
		}
		if err := renderJSON(cmd.OutOrStdout(), out); err != nil {
			return err
		}
	} else {
		renderIssueTable(cmd.OutOrStdout(), name, report)
	}

	if report.HasErrors() && !opts.NoFail {
		return fmt.Errorf("%d validation errors in %q", report.Count(validation.SeverityError), name)
	}
	return nil
}

func renderIssueTable(w io.Writer, name string, report validation.Report) {
	if len(report) == 0 {
		_, _ = fmt.Fprintf(w, "%s: no issues found\n", name)
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Severity", "Rule", "Sheet", "Row", "Entity", "Message"})

	for _, issue := range report {
		row := ""
		if issue.Row > 0 {
			row = fmt.Sprintf("%d", issue.Row)
		}
		t.AppendRow(table.Row{issue.Severity.String(), issue.RuleID, issue.Sheet, row, issue.Entity, issue.Message})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "%s: %d issues, %d errors, %d warnings\n",
		name, len(report),
		report.Count(validation.SeverityError),
		report.Count(validation.SeverityWarning))
}
