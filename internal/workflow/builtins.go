package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-viper/mapstructure/v2"

	"github.com/neatkit/neat/pkg/rules"
	"github.com/neatkit/neat/pkg/rules/convert"
	"github.com/neatkit/neat/pkg/rules/excel"
	"github.com/neatkit/neat/pkg/rules/export"
	"github.com/neatkit/neat/pkg/rules/validation"
)

func builtinSteps() map[string]StepFunc {
	return map[string]StepFunc{
		"load-rules":     stepLoadRules,
		"validate-rules": stepValidateRules,
		"convert-role":   stepConvertRole,
		"export-schema":  stepExportSchema,
		"write-rules":    stepWriteRules,
		"log-message":    stepLogMessage,
		"wait-for-event": stepWaitForEvent,
		"http-trigger":   stepHTTPTrigger,
	}
}

// decodeParams maps a step's string params onto a typed config.
func decodeParams(step *Step, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	params := step.Params
	if params == nil {
		params = map[string]string{}
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("step %q: bad params: %w", step.ID, err)
	}
	return nil
}

// stepLoadRules reads the workbook named by the "file" param into the
// flow, along with its snapshot sheets.
func stepLoadRules(_ context.Context, flow *Flow, step *Step) (Outcome, error) {
	var p struct {
		File string `mapstructure:"file"`
	}
	if err := decodeParams(step, &p); err != nil {
		return Outcome{}, err
	}
	if p.File == "" {
		return Fail("load-rules requires a file param"), nil
	}
	model, snapshot, err := excel.Read(p.File)
	if err != nil {
		return Outcome{}, err
	}
	flow.Model = model
	flow.Snapshot = snapshot
	return Continue().WithOutput(fmt.Sprintf("loaded %d classes, %d properties", len(model.Classes), len(model.Properties))), nil
}

// stepValidateRules runs the analyzer over the flow's model and stores
// the report. With fail_on_error=true (the default) an error-level
// issue fails the step.
func stepValidateRules(_ context.Context, flow *Flow, step *Step) (Outcome, error) {
	if flow.Model == nil {
		return Fail("no model loaded"), nil
	}

	var p struct {
		MinSeverity string `mapstructure:"min_severity"`
		FailOnError *bool  `mapstructure:"fail_on_error"`
	}
	if err := decodeParams(step, &p); err != nil {
		return Outcome{}, err
	}

	cfg := validation.Config{MinSeverity: p.MinSeverity}
	report := validation.NewAnalyzer(cfg).Analyze(flow.Model, flow.Snapshot)
	flow.Report = &report

	summary := fmt.Sprintf("%d issues (%d errors)", len(report), report.Count(validation.SeverityError))
	if report.HasErrors() && (p.FailOnError == nil || *p.FailOnError) {
		return Fail("validation failed: " + summary), nil
	}
	return Continue().WithOutput(summary), nil
}

// stepConvertRole converts the flow's model to the role named by the
// "role" param.
func stepConvertRole(_ context.Context, flow *Flow, step *Step) (Outcome, error) {
	if flow.Model == nil {
		return Fail("no model loaded"), nil
	}
	var p struct {
		Role string `mapstructure:"role"`
	}
	if err := decodeParams(step, &p); err != nil {
		return Outcome{}, err
	}
	role, err := rules.ParseRole(p.Role)
	if err != nil {
		return Fail(err.Error()), nil
	}
	converted, err := convert.ToRole(flow.Model, role)
	if err != nil {
		return Outcome{}, err
	}
	flow.Model = converted
	return Continue().WithOutput("converted to " + string(role)), nil
}

// stepExportSchema writes the model in the format named by the
// "format" param to the "file" param path.
func stepExportSchema(_ context.Context, flow *Flow, step *Step) (Outcome, error) {
	if flow.Model == nil {
		return Fail("no model loaded"), nil
	}
	var p struct {
		Format string `mapstructure:"format"`
		File   string `mapstructure:"file"`
	}
	if err := decodeParams(step, &p); err != nil {
		return Outcome{}, err
	}
	format, err := export.ParseFormat(p.Format)
	if err != nil {
		return Fail(err.Error()), nil
	}
	if p.File == "" {
		return Fail("export-schema requires a file param"), nil
	}
	if err := os.MkdirAll(filepath.Dir(p.File), 0o755); err != nil {
		return Outcome{}, err
	}

	f, err := os.Create(p.File)
	if err != nil {
		return Outcome{}, err
	}
	defer f.Close()
	if err := export.Write(f, flow.Model, format); err != nil {
		return Outcome{}, err
	}
	return Continue().WithOutput(fmt.Sprintf("wrote %s to %s", format, p.File)), nil
}

// stepWriteRules writes the flow's model back to a workbook.
func stepWriteRules(_ context.Context, flow *Flow, step *Step) (Outcome, error) {
	if flow.Model == nil {
		return Fail("no model loaded"), nil
	}
	var p struct {
		File string `mapstructure:"file"`
	}
	if err := decodeParams(step, &p); err != nil {
		return Outcome{}, err
	}
	if p.File == "" {
		return Fail("write-rules requires a file param"), nil
	}
	if err := excel.Write(p.File, flow.Model); err != nil {
		return Outcome{}, err
	}
	return Continue().WithOutput("wrote " + p.File), nil
}

func stepLogMessage(_ context.Context, flow *Flow, step *Step) (Outcome, error) {
	msg := step.Params["message"]
	flow.Logger.Info(msg, slog.String("step", step.ID))
	return Continue().WithOutput(msg), nil
}

// stepWaitForEvent parks the run until Engine.Signal or max_wait.
func stepWaitForEvent(_ context.Context, _ *Flow, _ *Step) (Outcome, error) {
	return Wait(), nil
}

// stepHTTPTrigger records trigger details into the flow context.
// Actual inbound HTTP routing happens in the server, which starts the
// workflow; this step only exposes the request payload to successors.
func stepHTTPTrigger(_ context.Context, flow *Flow, step *Step) (Outcome, error) {
	if v := step.Params["path"]; v != "" {
		flow.Context["trigger.path"] = v
	}
	return Continue(), nil
}
