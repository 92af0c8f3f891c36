package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neatkit/neat/internal/registry"
	"github.com/neatkit/neat/internal/state"
	"github.com/neatkit/neat/internal/workflow"
	"github.com/neatkit/neat/pkg/rules"
	"github.com/neatkit/neat/pkg/rules/excel"
)

func intPtr(n int) *int { return &n }

func fixtureModel() *rules.Model {
	return &rules.Model{
		Metadata: rules.Metadata{
			Role:      rules.RoleInfoArchitect,
			Prefix:    "power",
			Namespace: "http://purl.org/neat/power/",
			Version:   "1.0.0",
		},
		Classes: []rules.Class{
			{ID: "Asset"},
			{ID: "WindTurbine", ParentID: "Asset"},
		},
		Properties: []rules.Property{
			{ClassID: "Asset", ID: "name", ValueType: "text", MinCount: 1, MaxCount: intPtr(1)},
			{ClassID: "WindTurbine", ID: "ratedPower", ValueType: "float64", MinCount: 1, MaxCount: intPtr(1)},
		},
	}
}

type testServer struct {
	*Server
	handler      http.Handler
	rulesDir     string
	workflowsDir string
	store        *state.SQLiteStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	rulesDir := t.TempDir()
	require.NoError(t, excel.Write(filepath.Join(rulesDir, "power.xlsx"), fixtureModel()))

	reg := registry.New(rulesDir, nil)
	require.NoError(t, reg.Reload())

	store := state.NewSQLiteStore(nil)
	require.NoError(t, store.Open(filepath.Join(t.TempDir(), "state.db")))
	t.Cleanup(func() { store.Close() })

	engine := workflow.NewEngine(workflow.NewRegistry(), store, nil)
	workflowsDir := t.TempDir()

	srv := New(Config{
		Addr:         "127.0.0.1:0",
		Registry:     reg,
		Engine:       engine,
		Store:        store,
		WorkflowsDir: workflowsDir,
		Version:      "test",
	})
	return &testServer{
		Server:       srv,
		handler:      srv.Router(),
		rulesDir:     rulesDir,
		workflowsDir: workflowsDir,
		store:        store,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndVersion(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/version", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "test", body["version"])
}

func TestListRules(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	list := decode[[]map[string]any](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "power", list[0]["name"])
	assert.Equal(t, "information-architect", list[0]["role"])
	assert.EqualValues(t, 2, list[0]["classes"])
}

func TestGetRulesNotFound(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/rules/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidateRules(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/rules/power/validate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, true, body["valid"])
	assert.EqualValues(t, 0, body["errors"])
}

func TestConvertRules(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/rules/power/convert?role=dms-architect", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var m rules.Model
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, rules.RoleDMSArchitect, m.Metadata.Role)
	assert.NotEmpty(t, m.Containers)

	rec = ts.do(t, http.MethodPost, "/api/rules/power/convert?role=wizard", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportRules(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/rules/power/export?format=owl", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "owl:Class")

	// DMS export converts the info-architect model on the fly.
	rec = ts.do(t, http.MethodGet, "/api/rules/power/export?format=dms", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "externalId: WindTurbine")

	rec = ts.do(t, http.MethodGet, "/api/rules/power/export?format=xmi", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadAndDownloadRules(t *testing.T) {
	ts := newTestServer(t)

	var buf bytes.Buffer
	require.NoError(t, excel.WriteTo(&buf, fixtureModel()))

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("file", "solar.xlsx")
	require.NoError(t, err)
	_, err = part.Write(buf.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/rules/upload", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/rules/solar/download", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotZero(t, rec.Body.Len())
}

const serverManifest = `
name: noop
start_mode: one-per-request
steps:
  - id: note
    method: log-message
    params:
      message: hello
`

func TestWorkflowCRUD(t *testing.T) {
	ts := newTestServer(t)

	// Create.
	rec := ts.do(t, http.MethodPost, "/api/workflows", []byte(serverManifest))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Duplicate create conflicts.
	rec = ts.do(t, http.MethodPost, "/api/workflows", []byte(serverManifest))
	assert.Equal(t, http.StatusConflict, rec.Code)

	// List.
	rec = ts.do(t, http.MethodGet, "/api/workflows", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]map[string]any](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "noop", list[0]["name"])

	// Get.
	rec = ts.do(t, http.MethodGet, "/api/workflows/noop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var m workflow.Manifest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, "noop", m.Name)

	// Put with mismatched name is rejected.
	rec = ts.do(t, http.MethodPut, "/api/workflows/other", []byte(serverManifest))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Put.
	updated := strings.Replace(serverManifest, "hello", "goodbye", 1)
	rec = ts.do(t, http.MethodPut, "/api/workflows/noop", []byte(updated))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Delete.
	rec = ts.do(t, http.MethodDelete, "/api/workflows/noop", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(t, http.MethodDelete, "/api/workflows/noop", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWorkflowContext(t *testing.T) {
	ts := newTestServer(t)

	manifest := serverManifest + "configs:\n  source: rules/power.xlsx\n"
	rec := ts.do(t, http.MethodPost, "/api/workflows", []byte(manifest))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/workflows/noop/context", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	configs, ok := body["configs"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "rules/power.xlsx", configs["source"])
}

func TestCreateWorkflowRejectsInvalidManifest(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/workflows", []byte("name: bad\nsteps: []\n"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestStartWorkflowAndInspectRun(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/workflows", []byte(serverManifest))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/workflows/noop/start", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var runID string
	require.Eventually(t, func() bool {
		runs, err := ts.store.ListRuns("noop", 1)
		if err != nil || len(runs) == 0 || runs[0].CompletedAt == nil {
			return false
		}
		runID = runs[0].ID
		return true
	}, 5*time.Second, 20*time.Millisecond)

	rec = ts.do(t, http.MethodGet, "/api/workflows/noop/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/runs/"+runID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]json.RawMessage](t, rec)

	var run state.Run
	require.NoError(t, json.Unmarshal(body["run"], &run))
	assert.Equal(t, state.RunStatusCompleted, run.Status)

	var steps []state.StepRun
	require.NoError(t, json.Unmarshal(body["steps"], &steps))
	require.Len(t, steps, 1)
	assert.Equal(t, "note", steps[0].StepID)
	assert.Equal(t, "hello", steps[0].Output)
}

func TestStartUnknownWorkflow(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/workflows/ghost/start", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSignalRunEndpoint(t *testing.T) {
	ts := newTestServer(t)
	// Signalling an unknown run is a harmless no-op.
	rec := ts.do(t, http.MethodPost, "/api/runs/whatever/events", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestListWorkflowsEmptyDirIsOK(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, os.RemoveAll(ts.workflowsDir))

	rec := ts.do(t, http.MethodGet, "/api/workflows", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}
