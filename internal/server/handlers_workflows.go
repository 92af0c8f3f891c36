package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/neatkit/neat/internal/server/notifier"
	"github.com/neatkit/neat/internal/workflow"
)

// manifestPath maps a workflow name to its file in the workflows
// directory. Names are restricted to a safe character set so the path
// cannot escape the directory.
func (s *Server) manifestPath(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\.`) {
		return "", fmt.Errorf("invalid workflow name %q", name)
	}
	return filepath.Join(s.workflowsDir, name+".yaml"), nil
}

func (s *Server) loadWorkflow(name string) (*workflow.Manifest, error) {
	path, err := s.manifestPath(name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		// Accept .yml as a fallback spelling.
		alt := strings.TrimSuffix(path, ".yaml") + ".yml"
		if _, altErr := os.Stat(alt); altErr != nil {
			return nil, fmt.Errorf("workflow %q not found", name)
		}
		path = alt
	}
	return workflow.LoadManifest(path)
}

type workflowSummary struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	StartMode   workflow.StartMode `json:"start_mode"`
	Steps       int                `json:"steps"`
	Error       string             `json:"error,omitempty"`
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, _ *http.Request) {
	entries, err := os.ReadDir(s.workflowsDir)
	if err != nil && !os.IsNotExist(err) {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	out := []workflowSummary{}
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ext)
		summary := workflowSummary{Name: name}
		m, err := workflow.LoadManifest(filepath.Join(s.workflowsDir, entry.Name()))
		if err != nil {
			summary.Error = err.Error()
		} else {
			summary.Description = m.Description
			summary.StartMode = m.Mode()
			summary.Steps = len(m.Steps)
		}
		out = append(out, summary)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	m, err := s.loadWorkflow(chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

// handleCreateWorkflow accepts a YAML manifest body and stores it
// under the manifest's own name. Refuses to overwrite.
func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	m, body, ok := s.readManifest(w, r)
	if !ok {
		return
	}
	path, err := s.manifestPath(m.Name)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := os.Stat(path); err == nil {
		s.writeError(w, http.StatusConflict, fmt.Errorf("workflow %q already exists", m.Name))
		return
	}
	if err := s.saveManifest(path, body); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"name": m.Name})
}

// handlePutWorkflow replaces a workflow definition. The path name
// must match the manifest's declared name.
func (s *Server) handlePutWorkflow(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	m, body, ok := s.readManifest(w, r)
	if !ok {
		return
	}
	if m.Name != name {
		s.writeError(w, http.StatusBadRequest,
			fmt.Errorf("manifest name %q does not match path %q", m.Name, name))
		return
	}
	path, err := s.manifestPath(name)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.saveManifest(path, body); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"name": name})
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	path, err := s.manifestPath(name)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			s.writeError(w, http.StatusNotFound, fmt.Errorf("workflow %q not found", name))
		} else {
			s.writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleWorkflowContext exposes a workflow's configs and declared
// system components without the full step graph.
func (s *Server) handleWorkflowContext(w http.ResponseWriter, r *http.Request) {
	m, err := s.loadWorkflow(chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	configs := m.Configs
	if configs == nil {
		configs = map[string]string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"configs":           configs,
		"system_components": m.SystemComponents,
	})
}

// handleStartWorkflow launches a run in the background. Clients poll
// the runs endpoints or listen on /api/events for completion.
func (s *Server) handleStartWorkflow(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	m, err := s.loadWorkflow(name)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}

	flow := workflow.NewFlow(m.Name, s.logger)
	go func() {
		if _, err := s.engine.Run(context.Background(), m, flow); err != nil {
			s.logger.Error("workflow run failed to start", "workflow", m.Name, "error", err)
		}
		s.notifier.Broadcast(notifier.Event{Kind: notifier.KindRunFinished, Name: m.Name})
	}()

	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"workflow": m.Name,
		"status":   "started",
	})
}

func (s *Server) handleListWorkflowRuns(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	runs, err := s.store.ListRuns(name, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.store.GetRun(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	steps, err := s.store.ListStepRuns(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run":   run,
		"steps": steps,
	})
}

// handleSignalRun wakes a run parked on a wait-for-event step.
func (s *Server) handleSignalRun(w http.ResponseWriter, r *http.Request) {
	s.engine.Signal(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) readManifest(w http.ResponseWriter, r *http.Request) (*workflow.Manifest, []byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return nil, nil, false
	}
	m, err := workflow.ParseManifest(body)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return nil, nil, false
	}
	return m, body, true
}

func (s *Server) saveManifest(path string, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, body, 0o644)
}
