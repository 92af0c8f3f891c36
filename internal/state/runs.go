package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// CreateRun records the start of a workflow run.
func (s *SQLiteStore) CreateRun(workflow string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{
		ID:        generateID(),
		Workflow:  workflow,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	s.logger.Debug("creating run", slog.String("id", run.ID), slog.String("workflow", workflow))

	_, err := s.db.Exec(
		`INSERT INTO runs (id, workflow, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Workflow, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{}
	var completedAt sql.NullTime
	var errMsg sql.NullString

	err := s.db.QueryRow(
		`SELECT id, workflow, status, started_at, completed_at, error FROM runs WHERE id = ?`,
		id,
	).Scan(&run.ID, &run.Workflow, &run.Status, &run.StartedAt, &completedAt, &errMsg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	run.Error = errMsg.String
	return run, nil
}

// CompleteRun marks a run finished with the given status.
func (s *SQLiteStore) CompleteRun(id string, status RunStatus, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()
	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		status, now, nullableString(errMsg), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. An empty
// workflow name matches all workflows.
func (s *SQLiteStore) ListRuns(workflow string, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, workflow, status, started_at, completed_at, error FROM runs`
	args := []any{}
	if workflow != "" {
		query += ` WHERE workflow = ?`
		args = append(args, workflow)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		var completedAt sql.NullTime
		var errMsg sql.NullString
		if err := rows.Scan(&run.ID, &run.Workflow, &run.Status, &run.StartedAt, &completedAt, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if completedAt.Valid {
			run.CompletedAt = &completedAt.Time
		}
		run.Error = errMsg.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CreateStepRun records the start of a step inside a run.
func (s *SQLiteStore) CreateStepRun(runID, stepID string) (*StepRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	sr := &StepRun{
		ID:        generateID(),
		RunID:     runID,
		StepID:    stepID,
		Status:    StepStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO step_runs (id, run_id, step_id, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		sr.ID, sr.RunID, sr.StepID, sr.Status, sr.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create step run: %w", err)
	}
	return sr, nil
}

// CompleteStepRun records the final outcome of a step.
func (s *SQLiteStore) CompleteStepRun(id string, status StepStatus, attempts int, output, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()
	_, err := s.db.Exec(
		`UPDATE step_runs SET status = ?, attempts = ?, output = ?, error = ?, completed_at = ? WHERE id = ?`,
		status, attempts, nullableString(output), nullableString(errMsg), now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete step run: %w", err)
	}
	return nil
}

// ListStepRuns returns the steps of a run in execution order.
func (s *SQLiteStore) ListStepRuns(runID string) ([]*StepRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, run_id, step_id, status, attempts, output, error, started_at, completed_at
		 FROM step_runs WHERE run_id = ? ORDER BY started_at, id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list step runs: %w", err)
	}
	defer rows.Close()

	var steps []*StepRun
	for rows.Next() {
		sr := &StepRun{}
		var output, errMsg sql.NullString
		var completedAt sql.NullTime
		if err := rows.Scan(&sr.ID, &sr.RunID, &sr.StepID, &sr.Status, &sr.Attempts, &output, &errMsg, &sr.StartedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan step run: %w", err)
		}
		sr.Output = output.String
		sr.Error = errMsg.String
		if completedAt.Valid {
			sr.CompletedAt = &completedAt.Time
		}
		steps = append(steps, sr)
	}
	return steps, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
