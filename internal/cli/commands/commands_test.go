package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neatkit/neat/internal/config"
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

// setupProject builds a project directory with one rules workbook and
// chdirs into it so config discovery finds neat.yaml.
func setupProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	config.Reset()
	t.Cleanup(config.Reset)

	cfg := "rules_dir: rules\nworkflows_dir: workflows\nstate_path: .neat/state.db\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "neat.yaml"), []byte(cfg), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "rules"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "workflows"), 0o755))
	require.NoError(t, excel.Write(filepath.Join(dir, "rules", "power.xlsx"), fixtureModel()))
	return dir
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestNewValidateCommand(t *testing.T) {
	cmd := NewValidateCommand()

	assert.Equal(t, "validate <document|workbook.xlsx>", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")

	for _, flag := range []string{"format", "min-severity", "disable", "no-fail"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewConvertCommand(t *testing.T) {
	cmd := NewConvertCommand()

	assert.Equal(t, "convert <document|workbook.xlsx>", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("role"))
	assert.NotNil(t, cmd.Flags().Lookup("output"))
}

func TestNewExportCommand(t *testing.T) {
	cmd := NewExportCommand()

	assert.Equal(t, "export <document|workbook.xlsx>", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("format"))
	assert.NotNil(t, cmd.Flags().Lookup("output"))
}

func TestNewWorkflowCommand(t *testing.T) {
	cmd := NewWorkflowCommand("test")

	subs := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subs[sub.Name()] = true
	}
	assert.True(t, subs["list"])
	assert.True(t, subs["run"])
	assert.True(t, subs["history"])
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, NewVersionCommand("1.2.3", "today", "abc"))
	require.NoError(t, err)
	assert.Contains(t, out, "neat v1.2.3")
	assert.Contains(t, out, "abc")
}

func TestListCommand(t *testing.T) {
	setupProject(t)

	out, err := execute(t, NewListCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "power")
	assert.Contains(t, out, "information-architect")
	assert.Contains(t, out, "(1 documents)")
}

func TestValidateCommandCleanModel(t *testing.T) {
	setupProject(t)

	out, err := execute(t, NewValidateCommand(), "power")
	require.NoError(t, err)
	assert.Contains(t, out, "no issues found")
}

func TestValidateCommandWorkbookPath(t *testing.T) {
	dir := setupProject(t)

	// A dangling parent reference is an error-level issue.
	broken := fixtureModel()
	broken.Classes[1].ParentID = "Missing"
	path := filepath.Join(dir, "broken.xlsx")
	require.NoError(t, excel.Write(path, broken))

	out, err := execute(t, NewValidateCommand(), path)
	require.Error(t, err)
	assert.Contains(t, out, "error")
}

func TestValidateCommandNoFail(t *testing.T) {
	dir := setupProject(t)

	broken := fixtureModel()
	broken.Classes[1].ParentID = "Missing"
	path := filepath.Join(dir, "broken.xlsx")
	require.NoError(t, excel.Write(path, broken))

	_, err := execute(t, NewValidateCommand(), path, "--no-fail", "--format", "json")
	require.NoError(t, err)
}

func TestValidateCommandUnknownDocument(t *testing.T) {
	setupProject(t)

	_, err := execute(t, NewValidateCommand(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestConvertCommand(t *testing.T) {
	dir := setupProject(t)

	out, err := execute(t, NewConvertCommand(), "power", "--role", "dms-architect",
		"-o", filepath.Join(dir, "power-dms.xlsx"))
	require.NoError(t, err)
	assert.Contains(t, out, "dms-architect")

	model, _, err := excel.Read(filepath.Join(dir, "power-dms.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, rules.RoleDMSArchitect, model.Metadata.Role)
	assert.NotEmpty(t, model.Containers)
}

func TestExportCommandStdout(t *testing.T) {
	setupProject(t)

	out, err := execute(t, NewExportCommand(), "power", "--format", "owl")
	require.NoError(t, err)
	assert.Contains(t, out, "owl:Class")
}

func TestExportCommandDMSFile(t *testing.T) {
	dir := setupProject(t)

	target := filepath.Join(dir, "schemas", "power.yaml")
	_, err := execute(t, NewExportCommand(), "power", "--format", "dms", "-o", target)
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "externalId: WindTurbine")
}

func TestImportCommandStdout(t *testing.T) {
	setupProject(t)

	out, err := execute(t, NewImportCommand(), "power")
	require.NoError(t, err)
	assert.Contains(t, out, "WindTurbine")
	assert.Contains(t, out, "information-architect")
}

const noopManifest = `
name: noop
start_mode: one-per-request
steps:
  - id: note
    method: log-message
    params:
      message: hello
`

func TestWorkflowListCommand(t *testing.T) {
	dir := setupProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "workflows", "noop.yaml"), []byte(noopManifest), 0o644))

	out, err := execute(t, newWorkflowListCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "noop")
	assert.Contains(t, out, "one-per-request")
}

func TestWorkflowRunCommand(t *testing.T) {
	dir := setupProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "workflows", "noop.yaml"), []byte(noopManifest), 0o644))

	out, err := execute(t, newWorkflowRunCommand(), "noop")
	require.NoError(t, err)
	assert.Contains(t, out, "note")
	assert.Contains(t, out, "completed")
}

func TestWorkflowRunUnknown(t *testing.T) {
	setupProject(t)

	_, err := execute(t, newWorkflowRunCommand(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestWorkflowHistoryCommand(t *testing.T) {
	dir := setupProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "workflows", "noop.yaml"), []byte(noopManifest), 0o644))

	_, err := execute(t, newWorkflowRunCommand(), "noop")
	require.NoError(t, err)

	out, err := execute(t, newWorkflowHistoryCommand(), "noop")
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	config.Reset()
	t.Cleanup(config.Reset)

	out, err := execute(t, NewInitCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized NEAT project")

	for _, path := range []string{
		"neat.yaml",
		"workflows/publish.yaml",
		"rules/model.xlsx",
	} {
		_, err := os.Stat(filepath.Join(dir, path))
		assert.NoError(t, err, "expected %s to exist", path)
	}

	model, _, err := excel.Read(filepath.Join(dir, "rules", "model.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, rules.RoleInfoArchitect, model.Metadata.Role)
}

func TestInitCommandRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	config.Reset()
	t.Cleanup(config.Reset)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "neat.yaml"), []byte("existing"), 0o644))

	_, err := execute(t, NewInitCommand())
	require.Error(t, err)

	_, err = execute(t, NewInitCommand(), "--force")
	require.NoError(t, err)
}
