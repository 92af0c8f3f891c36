// Package server exposes the REST API consumed by the web UI and
// other clients: browsing and validating rules documents, managing
// workflow definitions, and starting and inspecting runs.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/neatkit/neat/internal/registry"
	"github.com/neatkit/neat/internal/server/notifier"
	"github.com/neatkit/neat/internal/state"
	"github.com/neatkit/neat/internal/workflow"
)

// Config wires the server's collaborators.
type Config struct {
	Addr         string
	Registry     *registry.Registry
	Engine       *workflow.Engine
	Store        state.Store
	WorkflowsDir string
	Watch        bool
	Version      string
	Logger       *slog.Logger
}

// Server is the REST API server.
type Server struct {
	addr         string
	registry     *registry.Registry
	engine       *workflow.Engine
	store        state.Store
	workflowsDir string
	watch        bool
	version      string
	logger       *slog.Logger
	notifier     *notifier.Notifier
}

// New creates a server from its configuration.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:         cfg.Addr,
		registry:     cfg.Registry,
		engine:       cfg.Engine,
		store:        cfg.Store,
		workflowsDir: cfg.WorkflowsDir,
		watch:        cfg.Watch,
		version:      cfg.Version,
		logger:       logger,
		notifier:     notifier.New(),
	}
}

// Router builds the chi handler. Exposed for tests.
func (s *Server) Router() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/version", s.handleVersion)
		r.Get("/events", s.handleEvents)

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", s.handleListRules)
			r.Post("/upload", s.handleUploadRules)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.handleGetRules)
				r.Post("/validate", s.handleValidateRules)
				r.Post("/convert", s.handleConvertRules)
				r.Get("/export", s.handleExportRules)
				r.Get("/download", s.handleDownloadRules)
			})
		})

		r.Route("/workflows", func(r chi.Router) {
			r.Get("/", s.handleListWorkflows)
			r.Post("/", s.handleCreateWorkflow)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.handleGetWorkflow)
				r.Put("/", s.handlePutWorkflow)
				r.Delete("/", s.handleDeleteWorkflow)
				r.Get("/context", s.handleWorkflowContext)
				r.Post("/start", s.handleStartWorkflow)
				r.Get("/runs", s.handleListWorkflowRuns)
			})
		})

		r.Route("/runs/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetRun)
			r.Post("/events", s.handleSignalRun)
		})
	})
	return r
}

// Serve runs the server until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting API server", slog.String("addr", s.addr))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Router(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch {
		eg.Go(func() error {
			return s.watchRules(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Debug("shutting down API server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// watchRules reloads the registry when workbooks in the rules
// directory change, then pings subscribed clients.
func (s *Server) watchRules(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(s.registry.Dir()); err != nil {
		s.logger.Error("failed to watch rules directory", slog.String("error", err.Error()))
		// Keep serving without the watcher.
		return nil
	}

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			return nil

		case event := <-watcher.Events:
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".xlsx") {
				continue
			}
			name := strings.TrimSuffix(filepath.Base(event.Name), filepath.Ext(event.Name))

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(100*time.Millisecond, func() {
				s.logger.Debug("rules changed, reloading", slog.String("file", event.Name))
				s.registry.Invalidate(name)
				if err := s.registry.Reload(); err != nil {
					s.logger.Error("rules reload failed", slog.String("error", err.Error()))
				}
				s.notifier.Broadcast(notifier.Event{Kind: notifier.KindRulesChanged})
			})

		case err := <-watcher.Errors:
			s.logger.Error("watcher error", slog.String("error", err.Error()))
		}
	}
}

// Notifier returns the server's broadcast hub.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}
