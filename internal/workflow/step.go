package workflow

import (
	"context"
	"log/slog"

	"github.com/neatkit/neat/pkg/rules"
	"github.com/neatkit/neat/pkg/rules/validation"
)

// Flow is the message object passed between steps. It carries the
// model being worked on and a free-form context map for step-to-step
// data. Only one step touches it at a time.
type Flow struct {
	Workflow string
	Model    *rules.Model
	Snapshot *rules.Model
	Report   *validation.Report
	Context  map[string]any
	Logger   *slog.Logger
}

// NewFlow creates a Flow for one workflow run.
func NewFlow(workflow string, logger *slog.Logger) *Flow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{
		Workflow: workflow,
		Context:  make(map[string]any),
		Logger:   logger.With(slog.String("workflow", workflow)),
	}
}

type outcomeKind int

const (
	outcomeContinue outcomeKind = iota
	outcomeGoTo
	outcomeFail
	outcomeWait
)

// Outcome is the tagged result of a step: follow the default
// transitions, route to explicit successors, fail the path, or park
// until an event arrives.
type Outcome struct {
	kind   outcomeKind
	next   []string
	reason string
	output string
}

// Continue follows the step's configured transitions.
func Continue() Outcome { return Outcome{kind: outcomeContinue} }

// GoTo overrides the configured transitions with an explicit
// successor list.
func GoTo(ids ...string) Outcome { return Outcome{kind: outcomeGoTo, next: ids} }

// Fail marks the step failed without retrying; its successors are
// abandoned.
func Fail(reason string) Outcome { return Outcome{kind: outcomeFail, reason: reason} }

// Wait parks the run until an event is signalled or the step's
// max_wait elapses, then follows the default transitions.
func Wait() Outcome { return Outcome{kind: outcomeWait} }

// WithOutput attaches a human-readable result recorded in the
// execution log.
func (o Outcome) WithOutput(s string) Outcome {
	o.output = s
	return o
}

// StepFunc implements one step method. Returning an error makes the
// step retryable per its configuration; returning Fail does not.
type StepFunc func(ctx context.Context, flow *Flow, step *Step) (Outcome, error)
