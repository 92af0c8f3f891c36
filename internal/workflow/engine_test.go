package workflow

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neatkit/neat/internal/state"
)

func testEngine(t *testing.T, r *Registry) (*Engine, *state.SQLiteStore) {
	t.Helper()
	store := state.NewSQLiteStore(nil)
	require.NoError(t, store.Open(filepath.Join(t.TempDir(), "state.db")))
	t.Cleanup(func() { store.Close() })
	return NewEngine(r, store, nil), store
}

// recorder tracks the execution order of test steps.
type recorder struct {
	mu  sync.Mutex
	ids []string
}

func (r *recorder) step(outcome Outcome, err error) StepFunc {
	return func(_ context.Context, _ *Flow, s *Step) (Outcome, error) {
		r.mu.Lock()
		r.ids = append(r.ids, s.ID)
		r.mu.Unlock()
		return outcome, err
	}
}

func (r *recorder) order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func TestRun_LinearFlow(t *testing.T) {
	rec := &recorder{}
	reg := NewRegistry()
	reg.Register("ok", rec.step(Continue(), nil))

	m := &Manifest{Name: "wf", Steps: []Step{
		{ID: "a", Method: "ok", TransitionTo: []string{"b"}},
		{ID: "b", Method: "ok", TransitionTo: []string{"c"}},
		{ID: "c", Method: "ok"},
	}}
	require.NoError(t, m.Validate())

	engine, store := testEngine(t, reg)
	run, err := engine.Run(context.Background(), m, NewFlow("wf", nil))
	require.NoError(t, err)

	assert.Equal(t, state.RunStatusCompleted, run.Status)
	assert.Equal(t, []string{"a", "b", "c"}, rec.order())

	steps, err := store.ListStepRuns(run.ID)
	require.NoError(t, err)
	assert.Len(t, steps, 3)
	for _, sr := range steps {
		assert.Equal(t, state.StepStatusSuccess, sr.Status)
	}
}

func TestRun_GoToOverridesTransitions(t *testing.T) {
	rec := &recorder{}
	reg := NewRegistry()
	reg.Register("route", rec.step(GoTo("c"), nil))
	reg.Register("ok", rec.step(Continue(), nil))

	m := &Manifest{Name: "wf", Steps: []Step{
		{ID: "a", Method: "route", TransitionTo: []string{"b"}},
		{ID: "b", Method: "ok"},
		{ID: "c", Method: "ok"},
	}}

	engine, _ := testEngine(t, reg)
	run, err := engine.Run(context.Background(), m, NewFlow("wf", nil))
	require.NoError(t, err)

	assert.Equal(t, state.RunStatusCompleted, run.Status)
	assert.Equal(t, []string{"a", "c"}, rec.order(), "b is bypassed by dynamic routing")
}

func TestRun_FailureAbandonsPathButSiblingsContinue(t *testing.T) {
	rec := &recorder{}
	reg := NewRegistry()
	reg.Register("ok", rec.step(Continue(), nil))
	reg.Register("boom", rec.step(Outcome{}, errors.New("boom")))

	// Two entry branches: left fails, right must still run.
	m := &Manifest{Name: "wf", Steps: []Step{
		{ID: "left", Method: "boom", TransitionTo: []string{"after-left"}},
		{ID: "after-left", Method: "ok"},
		{ID: "right", Method: "ok", TransitionTo: []string{"after-right"}},
		{ID: "after-right", Method: "ok"},
	}}

	engine, store := testEngine(t, reg)
	run, err := engine.Run(context.Background(), m, NewFlow("wf", nil))
	require.NoError(t, err)

	assert.Equal(t, state.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "step left")

	order := rec.order()
	assert.NotContains(t, order, "after-left")
	assert.Contains(t, order, "right")
	assert.Contains(t, order, "after-right")

	steps, err := store.ListStepRuns(run.ID)
	require.NoError(t, err)
	byStep := map[string]*state.StepRun{}
	for _, sr := range steps {
		byStep[sr.StepID] = sr
	}
	assert.Equal(t, state.StepStatusFailed, byStep["left"].Status)
	assert.Equal(t, "boom", byStep["left"].Error)
	assert.NotContains(t, byStep, "after-left")
}

func TestRun_RetriesUntilSuccess(t *testing.T) {
	var calls int
	reg := NewRegistry()
	reg.Register("flaky", func(_ context.Context, _ *Flow, _ *Step) (Outcome, error) {
		calls++
		if calls < 3 {
			return Outcome{}, errors.New("transient")
		}
		return Continue(), nil
	})

	m := &Manifest{Name: "wf", Steps: []Step{
		{ID: "a", Method: "flaky", Retries: &Retries{Count: 3, Delay: time.Millisecond}},
	}}

	engine, store := testEngine(t, reg)
	run, err := engine.Run(context.Background(), m, NewFlow("wf", nil))
	require.NoError(t, err)
	assert.Equal(t, state.RunStatusCompleted, run.Status)
	assert.Equal(t, 3, calls)

	steps, err := store.ListStepRuns(run.ID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, 3, steps[0].Attempts)
}

func TestRun_FailOutcomeIsNotRetried(t *testing.T) {
	var calls int
	reg := NewRegistry()
	reg.Register("reject", func(_ context.Context, _ *Flow, _ *Step) (Outcome, error) {
		calls++
		return Fail("bad input"), nil
	})

	m := &Manifest{Name: "wf", Steps: []Step{
		{ID: "a", Method: "reject", Retries: &Retries{Count: 5, Delay: time.Millisecond}},
	}}

	engine, _ := testEngine(t, reg)
	run, err := engine.Run(context.Background(), m, NewFlow("wf", nil))
	require.NoError(t, err)
	assert.Equal(t, state.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "bad input")
	assert.Equal(t, 1, calls)
}

func TestRun_DisabledStepIsSkippedButPassesThrough(t *testing.T) {
	rec := &recorder{}
	reg := NewRegistry()
	reg.Register("ok", rec.step(Continue(), nil))

	off := false
	m := &Manifest{Name: "wf", Steps: []Step{
		{ID: "a", Method: "ok", TransitionTo: []string{"b"}},
		{ID: "b", Method: "ok", Enabled: &off, TransitionTo: []string{"c"}},
		{ID: "c", Method: "ok"},
	}}

	engine, store := testEngine(t, reg)
	run, err := engine.Run(context.Background(), m, NewFlow("wf", nil))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c"}, rec.order())
	steps, err := store.ListStepRuns(run.ID)
	require.NoError(t, err)
	for _, sr := range steps {
		if sr.StepID == "b" {
			assert.Equal(t, state.StepStatusSkipped, sr.Status)
		}
	}
}

func TestRun_NonBlockingSingletonRefusesSecondInstance(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	reg := NewRegistry()
	reg.Register("park", func(ctx context.Context, _ *Flow, _ *Step) (Outcome, error) {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		}
		return Continue(), nil
	})

	m := &Manifest{
		Name:      "wf",
		StartMode: StartNonBlockingSingleton,
		Steps:     []Step{{ID: "a", Method: "park"}},
	}

	engine, _ := testEngine(t, reg)

	done := make(chan error, 1)
	go func() {
		_, err := engine.Run(context.Background(), m, NewFlow("wf", nil))
		done <- err
	}()
	<-started

	_, err := engine.Run(context.Background(), m, NewFlow("wf", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	close(release)
	require.NoError(t, <-done)
}

func TestRun_WaitStepTimesOutAndProceeds(t *testing.T) {
	rec := &recorder{}
	reg := NewRegistry()
	reg.Register("ok", rec.step(Continue(), nil))

	m := &Manifest{Name: "wf", Steps: []Step{
		{ID: "hold", Method: "wait-for-event", MaxWait: 20 * time.Millisecond, TransitionTo: []string{"after"}},
		{ID: "after", Method: "ok"},
	}}

	engine, store := testEngine(t, reg)
	run, err := engine.Run(context.Background(), m, NewFlow("wf", nil))
	require.NoError(t, err)

	assert.Equal(t, state.RunStatusCompleted, run.Status)
	assert.Equal(t, []string{"after"}, rec.order())

	steps, err := store.ListStepRuns(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "wait timed out", steps[0].Output)
}

func TestRun_SignalWakesWaitStep(t *testing.T) {
	rec := &recorder{}
	reg := NewRegistry()
	reg.Register("ok", rec.step(Continue(), nil))

	m := &Manifest{Name: "wf", Steps: []Step{
		{ID: "hold", Method: "wait-for-event", MaxWait: 5 * time.Second, TransitionTo: []string{"after"}},
		{ID: "after", Method: "ok"},
	}}

	engine, store := testEngine(t, reg)

	type result struct {
		run *state.Run
		err error
	}
	done := make(chan result, 1)
	go func() {
		run, err := engine.Run(context.Background(), m, NewFlow("wf", nil))
		done <- result{run, err}
	}()

	// Find the run once it exists, then wake it.
	var runID string
	require.Eventually(t, func() bool {
		runs, err := store.ListRuns("wf", 1)
		if err != nil || len(runs) == 0 {
			return false
		}
		runID = runs[0].ID
		return true
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		engine.Signal(runID)
		select {
		case res := <-done:
			require.NoError(t, res.err)
			assert.Equal(t, state.RunStatusCompleted, res.run.Status)
			return true
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"after"}, rec.order())
}

// brokenWriteStore rejects step outcome writes while leaving the rest
// of the store working.
type brokenWriteStore struct {
	state.Store
}

func (s *brokenWriteStore) CompleteStepRun(string, state.StepStatus, int, string, string) error {
	return errors.New("disk full")
}

func TestRun_StepOutcomeWriteFailureIsLoggedNotFatal(t *testing.T) {
	reg := NewRegistry()
	reg.Register("ok", func(_ context.Context, _ *Flow, _ *Step) (Outcome, error) {
		return Continue(), nil
	})

	m := &Manifest{Name: "wf", Steps: []Step{{ID: "a", Method: "ok"}}}

	store := state.NewSQLiteStore(nil)
	require.NoError(t, store.Open(filepath.Join(t.TempDir(), "state.db")))
	t.Cleanup(func() { store.Close() })

	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))
	engine := NewEngine(reg, &brokenWriteStore{Store: store}, logger)

	run, err := engine.Run(context.Background(), m, NewFlow("wf", nil))
	require.NoError(t, err)
	assert.Equal(t, state.RunStatusCompleted, run.Status)
	assert.Contains(t, logBuf.String(), "failed to record step outcome")
	assert.Contains(t, logBuf.String(), "disk full")
}

func TestRun_CancelDuringWaitReleasesWaiter(t *testing.T) {
	m := &Manifest{Name: "wf", Steps: []Step{
		{ID: "hold", Method: "wait-for-event", MaxWait: 5 * time.Second},
	}}

	engine, _ := testEngine(t, NewRegistry())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := engine.Run(ctx, m, NewFlow("wf", nil))
		done <- err
	}()

	// Wait until the run is parked, then cancel it.
	require.Eventually(t, func() bool {
		engine.mu.Lock()
		defer engine.mu.Unlock()
		return len(engine.waiters) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	engine.mu.Lock()
	remaining := len(engine.waiters)
	engine.mu.Unlock()
	assert.Zero(t, remaining, "cancelled wait must not leave a waiter behind")

	// A late signal for the dead run is a no-op.
	engine.Signal("gone")
}

func TestRun_UnknownMethodFailsStep(t *testing.T) {
	m := &Manifest{Name: "wf", Steps: []Step{{ID: "a", Method: "nope"}}}

	engine, _ := testEngine(t, NewRegistry())
	run, err := engine.Run(context.Background(), m, NewFlow("wf", nil))
	require.NoError(t, err)
	assert.Equal(t, state.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "unknown step method")
}
