package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/neatkit/neat/internal/registry"
	"github.com/neatkit/neat/internal/server/notifier"
	"github.com/neatkit/neat/pkg/rules"
	"github.com/neatkit/neat/pkg/rules/convert"
	"github.com/neatkit/neat/pkg/rules/export"
	"github.com/neatkit/neat/pkg/rules/validation"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// handleEvents is a long-lived SSE endpoint pinging clients whenever
// runs or rules change.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	updates := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(updates)

	fmt.Fprint(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-updates:
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, payload)
			flusher.Flush()
		}
	}
}

// ruleSummary is the list representation of a rules document.
type ruleSummary struct {
	Name        string `json:"name"`
	Role        string `json:"role,omitempty"`
	Prefix      string `json:"prefix,omitempty"`
	Version     string `json:"version,omitempty"`
	Classes     int    `json:"classes"`
	Properties  int    `json:"properties"`
	HasSnapshot bool   `json:"has_snapshot"`
	Error       string `json:"error,omitempty"`
}

func (s *Server) handleListRules(w http.ResponseWriter, _ *http.Request) {
	docs := s.registry.List()
	out := make([]ruleSummary, 0, len(docs))
	for _, doc := range docs {
		summary := ruleSummary{Name: doc.Name}
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
		out = append(out, summary)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) loadDocument(w http.ResponseWriter, r *http.Request) (*registry.Document, *rules.Model, *rules.Model, bool) {
	name := chi.URLParam(r, "name")
	doc, ok := s.registry.Get(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("rules document %q not found", name))
		return nil, nil, nil, false
	}
	model, snapshot, err := doc.Load()
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return nil, nil, nil, false
	}
	return doc, model, snapshot, true
}

func (s *Server) handleGetRules(w http.ResponseWriter, r *http.Request) {
	_, model, snapshot, ok := s.loadDocument(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"model":        model,
		"has_snapshot": snapshot != nil,
	})
}

func (s *Server) handleValidateRules(w http.ResponseWriter, r *http.Request) {
	_, model, snapshot, ok := s.loadDocument(w, r)
	if !ok {
		return
	}

	report := validation.NewAnalyzer(validation.Config{
		MinSeverity: r.URL.Query().Get("min_severity"),
	}).Analyze(model, snapshot)

	s.writeJSON(w, http.StatusOK, map[string]any{
		"issues":   report,
		"errors":   report.Count(validation.SeverityError),
		"warnings": report.Count(validation.SeverityWarning),
		"valid":    !report.HasErrors(),
	})
}

func (s *Server) handleConvertRules(w http.ResponseWriter, r *http.Request) {
	_, model, _, ok := s.loadDocument(w, r)
	if !ok {
		return
	}

	role, err := rules.ParseRole(r.URL.Query().Get("role"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	converted, err := convert.ToRole(model, role)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.writeJSON(w, http.StatusOK, converted)
}

func (s *Server) handleExportRules(w http.ResponseWriter, r *http.Request) {
	_, model, _, ok := s.loadDocument(w, r)
	if !ok {
		return
	}

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	// DMS export needs a DMS-architect model; convert on the fly when
	// the document is at an earlier role.
	target := model
	if format == export.FormatDMS && model.Metadata.Role != rules.RoleDMSArchitect {
		target, err = convert.ToRole(model, rules.RoleDMSArchitect)
		if err != nil {
			s.writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
	}

	contentType := "text/plain; charset=utf-8"
	if format == export.FormatDMS {
		contentType = "application/yaml"
	}
	w.Header().Set("Content-Type", contentType)
	if err := export.Write(w, target, format); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
	}
}

// handleUploadRules accepts a multipart upload of a workbook and adds
// it to the rules directory.
func (s *Server) handleUploadRules(w http.ResponseWriter, r *http.Request) {
	const maxUpload = 32 << 20
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err))
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("missing file field: %w", err))
		return
	}
	defer file.Close()

	base := filepath.Base(hdr.Filename)
	if !strings.EqualFold(filepath.Ext(base), ".xlsx") {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("only .xlsx uploads are accepted"))
		return
	}

	dst, err := os.Create(filepath.Join(s.registry.Dir(), base))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer dst.Close()
	if _, err := dst.ReadFrom(file); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	if err := s.registry.Reload(); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	name := strings.TrimSuffix(base, filepath.Ext(base))
	s.notifier.Broadcast(notifier.Event{Kind: notifier.KindRulesChanged, Name: name})
	s.writeJSON(w, http.StatusCreated, map[string]string{"name": name})
}

func (s *Server) handleDownloadRules(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	doc, ok := s.registry.Get(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("rules document %q not found", name))
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(doc.Path)))
	http.ServeFile(w, r, doc.Path)
}
