package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/neatkit/neat/internal/state"
	"github.com/neatkit/neat/internal/workflow"
)

// NewWorkflowCommand creates the workflow command group.
func NewWorkflowCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Inspect and run workflows",
		Long: `Workflows are YAML manifests in the workflows directory chaining
steps such as load-rules, validate-rules, convert-role and
export-schema into a repeatable pipeline.`,
	}
	cmd.AddCommand(newWorkflowListCommand())
	cmd.AddCommand(newWorkflowRunCommand())
	cmd.AddCommand(newWorkflowHistoryCommand())
	return cmd
}

func newWorkflowListCommand() *cobra.Command {
	opts := &ListOptions{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflow manifests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorkflowList(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: table, json")
	return cmd
}

type manifestSummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	StartMode   string `json:"start_mode"`
	Steps       int    `json:"steps"`
	Error       string `json:"error,omitempty"`
}

func runWorkflowList(cmd *cobra.Command, opts *ListOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(cmdCtx.Cfg.WorkflowsDir)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	var summaries []manifestSummary
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		summary := manifestSummary{Name: strings.TrimSuffix(entry.Name(), ext)}
		m, err := workflow.LoadManifest(filepath.Join(cmdCtx.Cfg.WorkflowsDir, entry.Name()))
		if err != nil {
			summary.Error = err.Error()
		} else {
			summary.Description = m.Description
			summary.StartMode = string(m.Mode())
			summary.Steps = len(m.Steps)
		}
		summaries = append(summaries, summary)
	}

	if opts.Format == "json" {
		return renderJSON(cmd.OutOrStdout(), summaries)
	}
	return renderManifestTable(cmd.OutOrStdout(), summaries)
}

func renderManifestTable(w io.Writer, summaries []manifestSummary) error {
	if len(summaries) == 0 {
		_, _ = fmt.Fprintln(w, "No workflows found")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Start Mode", "Steps", "Description"})
	for _, s := range summaries {
		if s.Error != "" {
			t.AppendRow(table.Row{s.Name, "(invalid)", "", s.Error})
			continue
		}
		t.AppendRow(table.Row{s.Name, s.StartMode, s.Steps, s.Description})
	}
	t.Render()
	return nil
}

func newWorkflowRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <workflow>",
		Short: "Run a workflow to completion",
		Long: `Execute a workflow manifest and wait for it to finish. Step results
are printed when the run completes; a failed run makes the command
exit non-zero.`,
		Example: `  # Run the publish workflow
  neat workflow run publish`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflowRun(cmd, args[0])
		},
	}
	return cmd
}

func runWorkflowRun(cmd *cobra.Command, name string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	m, err := loadManifestByName(cmdCtx.Cfg.WorkflowsDir, name)
	if err != nil {
		return err
	}

	store, err := openStore(cmdCtx)
	if err != nil {
		return err
	}
	defer store.Close()

	engine := workflow.NewEngine(workflow.NewRegistry(), store, cmdCtx.Logger)
	flow := workflow.NewFlow(m.Name, cmdCtx.Logger)

	run, err := engine.Run(cmd.Context(), m, flow)
	if err != nil {
		return err
	}

	steps, err := store.ListStepRuns(run.ID)
	if err != nil {
		return err
	}
	renderStepTable(cmd.OutOrStdout(), steps)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Run %s: %s\n", run.ID, run.Status)

	if run.Status != state.RunStatusCompleted {
		return fmt.Errorf("workflow %q %s: %s", name, run.Status, run.Error)
	}
	return nil
}

func newWorkflowHistoryCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <workflow>",
		Short: "Show recent runs of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflowHistory(cmd, args[0], limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	return cmd
}

func runWorkflowHistory(cmd *cobra.Command, name string, limit int) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	store, err := openStore(cmdCtx)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(name, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "No runs recorded for %q\n", name)
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run", "Status", "Started", "Error"})
	for _, run := range runs {
		t.AppendRow(table.Row{run.ID, string(run.Status), run.StartedAt.Format("2006-01-02 15:04:05"), run.Error})
	}
	t.Render()
	return nil
}

func renderStepTable(w io.Writer, steps []*state.StepRun) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Step", "Status", "Attempts", "Output"})
	for _, s := range steps {
		out := s.Output
		if s.Error != "" {
			out = s.Error
		}
		t.AppendRow(table.Row{s.StepID, string(s.Status), s.Attempts, out})
	}
	t.Render()
}

func loadManifestByName(dir, name string) (*workflow.Manifest, error) {
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return workflow.LoadManifest(path)
		}
	}
	return nil, fmt.Errorf("workflow %q not found in %s", name, dir)
}

func openStore(cmdCtx *CommandContext) (*state.SQLiteStore, error) {
	store := state.NewSQLiteStore(cmdCtx.Logger)
	if err := store.Open(cmdCtx.Cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	return store, nil
}
