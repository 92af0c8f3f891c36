package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/neatkit/neat/internal/registry"
	"github.com/neatkit/neat/internal/server"
	"github.com/neatkit/neat/internal/workflow"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	NoWatch bool // Disable rules directory watching
}

// NewServeCommand creates the serve command.
func NewServeCommand(version string) *cobra.Command {
	opts := &ServeOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the NEAT REST API server",
		Long: `Serve the REST API over the rules and workflows directories.

The server watches the rules directory for workbook changes and
notifies connected clients over server-sent events. Stop it with
Ctrl-C.`,
		Example: `  # Serve on the configured address
  neat serve

  # Serve on another port without file watching
  neat serve --port 9000 --no-watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, version, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.NoWatch, "no-watch", false, "Disable rules directory watching")
	return cmd
}

func runServe(cmd *cobra.Command, version string, opts *ServeOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	reg := registry.New(cmdCtx.Cfg.RulesDir, cmdCtx.Logger)
	if err := reg.Reload(); err != nil {
		return err
	}

	store, err := openStore(cmdCtx)
	if err != nil {
		return err
	}
	defer store.Close()

	engine := workflow.NewEngine(workflow.NewRegistry(), store, cmdCtx.Logger)

	srv := server.New(server.Config{
		Addr:         cmdCtx.Cfg.Server.Addr(),
		Registry:     reg,
		Engine:       engine,
		Store:        store,
		WorkflowsDir: cmdCtx.Cfg.WorkflowsDir,
		Watch:        !opts.NoWatch,
		Version:      version,
		Logger:       cmdCtx.Logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmdCtx.Logger.Info("serving", "addr", cmdCtx.Cfg.Server.Addr())
	return srv.Serve(ctx)
}
