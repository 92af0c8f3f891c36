package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/neatkit/neat/internal/state"
)

// defaultMaxWait bounds a wait-for-event step that declares no
// max_wait of its own.
const defaultMaxWait = time.Minute

// Engine runs workflow manifests and records execution history.
type Engine struct {
	registry *Registry
	store    state.Store
	logger   *slog.Logger

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	waiters map[string]chan struct{}
}

// NewEngine creates an engine backed by the given registry and store.
func NewEngine(registry *Registry, store state.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		registry: registry,
		store:    store,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
		waiters:  make(map[string]chan struct{}),
	}
}

// Run executes a manifest to completion and returns its recorded run.
// The manifest's start mode decides how concurrent launches of the
// same workflow interact; one run always executes its steps
// sequentially.
func (e *Engine) Run(ctx context.Context, m *Manifest, flow *Flow) (*state.Run, error) {
	switch m.Mode() {
	case StartBlockingSingleton:
		l := e.lockFor(m.Name)
		l.Lock()
		defer l.Unlock()
	case StartNonBlockingSingleton:
		l := e.lockFor(m.Name)
		if !l.TryLock() {
			return nil, fmt.Errorf("workflow %q is already running", m.Name)
		}
		defer l.Unlock()
	case StartOnePerRequest:
	}

	run, err := e.store.CreateRun(m.Name)
	if err != nil {
		return nil, err
	}
	e.logger.Info("workflow started",
		slog.String("workflow", m.Name),
		slog.String("run", run.ID))

	failed, err := e.execute(ctx, m, flow, run)
	if err != nil {
		// Context cancellation or a storage failure, not a step error.
		if serr := e.store.CompleteRun(run.ID, state.RunStatusCancelled, err.Error()); serr != nil {
			e.logger.Error("failed to record run outcome",
				slog.String("run", run.ID),
				slog.String("error", serr.Error()))
		}
		return run, err
	}

	status := state.RunStatusCompleted
	errMsg := ""
	if failed != "" {
		status = state.RunStatusFailed
		errMsg = failed
	}
	if err := e.store.CompleteRun(run.ID, status, errMsg); err != nil {
		return run, err
	}
	run.Status = status
	run.Error = errMsg
	e.logger.Info("workflow finished",
		slog.String("workflow", m.Name),
		slog.String("run", run.ID),
		slog.String("status", string(status)))
	return run, nil
}

// execute walks the step graph breadth-first from the entry steps.
// A failed step abandons its own successors; other queued branches
// keep going. Returns a description of the first failure, if any.
func (e *Engine) execute(ctx context.Context, m *Manifest, flow *Flow, run *state.Run) (string, error) {
	queue := m.EntrySteps()
	executed := make(map[string]bool)
	firstFailure := ""

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return firstFailure, err
		}

		id := queue[0]
		queue = queue[1:]
		if executed[id] {
			continue
		}
		executed[id] = true

		step, ok := m.StepByID(id)
		if !ok {
			return firstFailure, fmt.Errorf("step %q not in manifest", id)
		}
		if !step.IsEnabled() {
			if err := e.recordSkipped(run.ID, step.ID); err != nil {
				return firstFailure, err
			}
			queue = append(queue, step.TransitionTo...)
			continue
		}

		next, failMsg, err := e.runStep(ctx, flow, run, step)
		if err != nil {
			return firstFailure, err
		}
		if failMsg != "" {
			if firstFailure == "" {
				firstFailure = fmt.Sprintf("step %s: %s", step.ID, failMsg)
			}
			continue
		}
		queue = append(queue, next...)
	}
	return firstFailure, nil
}

// runStep executes one step with its retry policy and records the
// outcome. It returns the successor ids to enqueue, or a failure
// message when the step failed and its path should stop.
func (e *Engine) runStep(ctx context.Context, flow *Flow, run *state.Run, step *Step) ([]string, string, error) {
	sr, err := e.store.CreateStepRun(run.ID, step.ID)
	if err != nil {
		return nil, "", err
	}

	fn, err := e.registry.Get(step.Method)
	if err != nil {
		e.completeStep(sr.ID, state.StepStatusFailed, 0, "", err.Error())
		return nil, err.Error(), nil
	}

	outcome, attempts, stepErr := e.callWithRetry(ctx, fn, flow, step)
	if stepErr != nil {
		if ctx.Err() != nil {
			e.completeStep(sr.ID, state.StepStatusFailed, attempts, "", stepErr.Error())
			return nil, "", stepErr
		}
		e.logger.Warn("step failed",
			slog.String("workflow", flow.Workflow),
			slog.String("step", step.ID),
			slog.Int("attempts", attempts),
			slog.String("error", stepErr.Error()))
		e.completeStep(sr.ID, state.StepStatusFailed, attempts, outcome.output, stepErr.Error())
		return nil, stepErr.Error(), nil
	}

	switch outcome.kind {
	case outcomeFail:
		e.completeStep(sr.ID, state.StepStatusFailed, attempts, outcome.output, outcome.reason)
		return nil, outcome.reason, nil
	case outcomeWait:
		result, err := e.waitForEvent(ctx, run.ID, step.MaxWait)
		if err != nil {
			e.completeStep(sr.ID, state.StepStatusWaiting, attempts, "", err.Error())
			return nil, "", err
		}
		e.completeStep(sr.ID, state.StepStatusSuccess, attempts, result, "")
		return step.TransitionTo, "", nil
	case outcomeGoTo:
		e.completeStep(sr.ID, state.StepStatusSuccess, attempts, outcome.output, "")
		return outcome.next, "", nil
	default:
		e.completeStep(sr.ID, state.StepStatusSuccess, attempts, outcome.output, "")
		return step.TransitionTo, "", nil
	}
}

// completeStep records a step outcome. A storage failure here must not
// abort the run, so it is logged instead of returned.
func (e *Engine) completeStep(id string, status state.StepStatus, attempts int, output, errMsg string) {
	if err := e.store.CompleteStepRun(id, status, attempts, output, errMsg); err != nil {
		e.logger.Error("failed to record step outcome",
			slog.String("step_run", id),
			slog.String("error", err.Error()))
	}
}

// callWithRetry runs the step function under its fixed retry policy.
func (e *Engine) callWithRetry(ctx context.Context, fn StepFunc, flow *Flow, step *Step) (Outcome, int, error) {
	attempts := 0
	var out Outcome

	attempt := func(ctx context.Context) error {
		attempts++
		var err error
		out, err = fn(ctx, flow, step)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	}

	if step.Retries == nil || step.Retries.Count <= 0 {
		var err error
		out, err = fn(ctx, flow, step)
		return out, 1, err
	}

	delay := step.Retries.Delay
	if delay <= 0 {
		delay = time.Second
	}
	backoff := retry.WithMaxRetries(uint64(step.Retries.Count), retry.NewConstant(delay))
	err := retry.Do(ctx, backoff, attempt)
	return out, attempts, err
}

func (e *Engine) recordSkipped(runID, stepID string) error {
	sr, err := e.store.CreateStepRun(runID, stepID)
	if err != nil {
		return err
	}
	return e.store.CompleteStepRun(sr.ID, state.StepStatusSkipped, 0, "", "")
}

// Signal wakes a run parked on a wait-for-event step. It is a no-op
// when the run is not waiting.
func (e *Engine) Signal(runID string) {
	e.mu.Lock()
	ch, ok := e.waiters[runID]
	if ok {
		delete(e.waiters, runID)
	}
	e.mu.Unlock()
	if ok {
		close(ch)
	}
}

func (e *Engine) waitForEvent(ctx context.Context, runID string, maxWait time.Duration) (string, error) {
	e.mu.Lock()
	ch, ok := e.waiters[runID]
	if !ok {
		ch = make(chan struct{})
		e.waiters[runID] = ch
	}
	e.mu.Unlock()

	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}
	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		e.mu.Lock()
		delete(e.waiters, runID)
		e.mu.Unlock()
		return "", ctx.Err()
	case <-ch:
		return "event received", nil
	case <-timer.C:
		e.mu.Lock()
		delete(e.waiters, runID)
		e.mu.Unlock()
		return "wait timed out", nil
	}
}

func (e *Engine) lockFor(name string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[name]
	if !ok {
		l = &sync.Mutex{}
		e.locks[name] = l
	}
	return l
}
