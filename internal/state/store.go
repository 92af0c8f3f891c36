// Package state persists workflow execution history in SQLite. It
// tracks runs and their per-step outcomes so the API and CLI can show
// what happened after the fact.
package state

import "time"

// RunStatus is the lifecycle state of a workflow run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// StepStatus is the lifecycle state of a single step inside a run.
type StepStatus string

const (
	StepStatusPending StepStatus = "pending"
	StepStatusRunning StepStatus = "running"
	StepStatusSuccess StepStatus = "success"
	StepStatusFailed  StepStatus = "failed"
	StepStatusSkipped StepStatus = "skipped"
	StepStatusWaiting StepStatus = "waiting"
)

// Run is one execution of a workflow.
type Run struct {
	ID          string     `json:"id"`
	Workflow    string     `json:"workflow"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// StepRun is the recorded outcome of one step within a run.
type StepRun struct {
	ID          string     `json:"id"`
	RunID       string     `json:"runId"`
	StepID      string     `json:"stepId"`
	Status      StepStatus `json:"status"`
	Attempts    int        `json:"attempts"`
	Output      string     `json:"output,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Store is the persistence interface for workflow history.
type Store interface {
	CreateRun(workflow string) (*Run, error)
	GetRun(id string) (*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string) error
	ListRuns(workflow string, limit int) ([]*Run, error)

	CreateStepRun(runID, stepID string) (*StepRun, error)
	CompleteStepRun(id string, status StepStatus, attempts int, output, errMsg string) error
	ListStepRuns(runID string) ([]*StepRun, error)

	Close() error
}
