// Package repository persists run state in SQLite, keyed by run_id, with
// an append-only stage history table.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/run"
	"github.com/Bachina-mahesh/AI-Document-Processing/internal/domain/workflow"
	"github.com/Bachina-mahesh/AI-Document-Processing/pkg/database"
)

// RunRepository stores and retrieves run state
type RunRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *database.DB, logger *zap.Logger) *RunRepository {
	return &RunRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a freshly submitted run
func (r *RunRepository) Create(ctx context.Context, state *run.State) error {
	query := `
		INSERT INTO runs (
			run_id, document_ref, filename, status, started_at
		) VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		state.RunID,
		state.DocumentRef,
		state.Filename,
		state.Status.String(),
		state.StartedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create run", zap.String("run_id", state.RunID), zap.Error(err))
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// SaveResult persists a terminal run state: the run row is updated and the
// full stage history is appended, both within one transaction. History
// rows are insert-only; nothing ever updates or deletes them.
func (r *RunRepository) SaveResult(ctx context.Context, state run.State) error {
	classification, err := marshalNullable(state.Classification)
	if err != nil {
		return err
	}
	fields, err := json.Marshal(state.ExtractedFields)
	if err != nil {
		return fmt.Errorf("failed to marshal extracted fields: %w", err)
	}
	flags, err := json.Marshal(state.ValidationFlags)
	if err != nil {
		return fmt.Errorf("failed to marshal validation flags: %w", err)
	}
	routing, err := marshalNullable(state.Routing)
	if err != nil {
		return err
	}
	retries, err := json.Marshal(state.RetryCounts)
	if err != nil {
		return fmt.Errorf("failed to marshal retry counts: %w", err)
	}

	return r.db.WithTransaction(func(tx *sql.Tx) error {
		query := `
			UPDATE runs SET
				status = ?, classification = ?, extracted_fields = ?,
				validation_flags = ?, routing = ?, retry_counts = ?,
				failure_reason = ?, completed_at = ?
			WHERE run_id = ?
		`
		result, err := tx.ExecContext(ctx, query,
			state.Status.String(),
			classification,
			string(fields),
			string(flags),
			routing,
			string(retries),
			state.FailureReason,
			state.CompletedAt,
			state.RunID,
		)
		if err != nil {
			return fmt.Errorf("failed to update run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check update result: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("run not found: %s", state.RunID)
		}

		history := `
			INSERT INTO run_stage_history (
				run_id, stage, attempt, outcome, confidence, reason, recorded_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)
		`
		for _, rec := range state.StageHistory {
			if _, err := tx.ExecContext(ctx, history,
				state.RunID, rec.Stage, rec.Attempt, rec.Outcome.String(),
				rec.Confidence, rec.Reason, rec.Timestamp,
			); err != nil {
				return fmt.Errorf("failed to append stage history: %w", err)
			}
		}

		return nil
	})
}

// GetByID retrieves a run with its full stage history. Returns nil when
// the run does not exist.
func (r *RunRepository) GetByID(ctx context.Context, runID string) (*run.State, error) {
	query := `
		SELECT run_id, document_ref, filename, status, classification,
			extracted_fields, validation_flags, routing, retry_counts,
			failure_reason, started_at, completed_at
		FROM runs
		WHERE run_id = ?
	`

	var state run.State
	var status string
	var classification, fields, flags, routing, retries, failureReason sql.NullString
	var completedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, runID).Scan(
		&state.RunID,
		&state.DocumentRef,
		&state.Filename,
		&status,
		&classification,
		&fields,
		&flags,
		&routing,
		&retries,
		&failureReason,
		&state.StartedAt,
		&completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get run", zap.String("run_id", runID), zap.Error(err))
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	state.Status = run.Status(status)
	state.FailureReason = failureReason.String
	if completedAt.Valid {
		t := completedAt.Time
		state.CompletedAt = &t
	}

	if err := unmarshalNullable(classification, &state.Classification); err != nil {
		return nil, err
	}
	if err := unmarshalNullable(routing, &state.Routing); err != nil {
		return nil, err
	}
	if fields.Valid && fields.String != "" {
		if err := json.Unmarshal([]byte(fields.String), &state.ExtractedFields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal extracted fields: %w", err)
		}
	}
	if flags.Valid && flags.String != "" {
		if err := json.Unmarshal([]byte(flags.String), &state.ValidationFlags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal validation flags: %w", err)
		}
	}
	if retries.Valid && retries.String != "" {
		if err := json.Unmarshal([]byte(retries.String), &state.RetryCounts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal retry counts: %w", err)
		}
	}

	history, err := r.getHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	state.StageHistory = history

	return &state, nil
}

// List returns runs ordered by submission time, newest first
func (r *RunRepository) List(ctx context.Context, limit, offset int) ([]*run.State, error) {
	query := `
		SELECT run_id, document_ref, filename, status, failure_reason,
			started_at, completed_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var states []*run.State
	for rows.Next() {
		var state run.State
		var status string
		var failureReason sql.NullString
		var completedAt sql.NullTime

		if err := rows.Scan(
			&state.RunID,
			&state.DocumentRef,
			&state.Filename,
			&status,
			&failureReason,
			&state.StartedAt,
			&completedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		state.Status = run.Status(status)
		state.FailureReason = failureReason.String
		if completedAt.Valid {
			t := completedAt.Time
			state.CompletedAt = &t
		}
		states = append(states, &state)
	}

	return states, rows.Err()
}

// getHistory loads the append-only stage history in invocation order
func (r *RunRepository) getHistory(ctx context.Context, runID string) ([]run.StageRecord, error) {
	query := `
		SELECT stage, attempt, outcome, confidence, reason, recorded_at
		FROM run_stage_history
		WHERE run_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stage history: %w", err)
	}
	defer rows.Close()

	var history []run.StageRecord
	for rows.Next() {
		var rec run.StageRecord
		var outcome string
		var reason sql.NullString

		if err := rows.Scan(&rec.Stage, &rec.Attempt, &outcome, &rec.Confidence, &reason, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan stage history: %w", err)
		}

		rec.Outcome = workflow.Class(outcome)
		rec.Reason = reason.String
		history = append(history, rec)
	}

	return history, rows.Err()
}

// marshalNullable marshals a pointer value to JSON, yielding NULL for nil
func marshalNullable(v interface{}) (sql.NullString, error) {
	switch ptr := v.(type) {
	case *run.Classification:
		if ptr == nil {
			return sql.NullString{}, nil
		}
	case *run.Decision:
		if ptr == nil {
			return sql.NullString{}, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalNullable unmarshals a JSON column into the target pointer
func unmarshalNullable(col sql.NullString, target interface{}) error {
	if !col.Valid || col.String == "" || col.String == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(col.String), target); err != nil {
		return fmt.Errorf("failed to unmarshal column: %w", err)
	}
	return nil
}
