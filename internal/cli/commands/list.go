package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// ListOptions holds options for the list command.
type ListOptions struct {
	Format string // Output format: table, json
}

type documentSummary struct {
	Name        string `json:"name"`
	Role        string `json:"role,omitempty"`
	Prefix      string `json:"prefix,omitempty"`
	Version     string `json:"version,omitempty"`
	Classes     int    `json:"classes"`
	Properties  int    `json:"properties"`
	HasSnapshot bool   `json:"has_snapshot"`
	Error       string `json:"error,omitempty"`
}

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	opts := &ListOptions{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules documents in the rules directory",
		Example: `  # List all rules workbooks
  neat list

  # Machine-readable output
  neat list --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: table, json")
	return cmd
}

func runList(cmd *cobra.Command, opts *ListOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	reg, err := cmdCtx.openRegistry()
	if err != nil {
		return err
	}

	var summaries []documentSummary
	for _, doc := range reg.List() {
		summary := documentSummary{Name: doc.Name}
		model, snapshot, err := doc.Load()
		if err != nil {
			summary.Error = err.Error()
		} else {
			summary.Role = string(model.Metadata.Role)
			summary.Prefix = model.Metadata.Prefix
			summary.Version = model.Metadata.Version
			summary.Classes = len(model.Classes)
			summary.Properties = len(model.Properties)
			summary.HasSnapshot = snapshot != nil
		}
		summaries = append(summaries, summary)
	}

	if opts.Format == "json" {
		return renderJSON(cmd.OutOrStdout(), summaries)
	}
	return renderDocumentTable(cmd.OutOrStdout(), summaries)
}

func renderDocumentTable(w io.Writer, summaries []documentSummary) error {
	if len(summaries) == 0 {
		_, _ = fmt.Fprintln(w, "No rules documents found")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Role", "Version", "Classes", "Properties", "Snapshot"})

	for _, s := range summaries {
		if s.Error != "" {
			t.AppendRow(table.Row{s.Name, "(load error)", "", "", "", ""})
			continue
		}
		snapshot := ""
		if s.HasSnapshot {
			snapshot = "yes"
		}
		t.AppendRow(table.Row{s.Name, s.Role, s.Version, s.Classes, s.Properties, snapshot})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d documents)\n", len(summaries))
	return nil
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
