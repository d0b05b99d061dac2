package routine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for routine persistence.
// This abstraction allows different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// Routine CRUD
	GetByID(ctx context.Context, id string) (*Routine, error)
	List(ctx context.Context) ([]Routine, error)
	Create(ctx context.Context, routine *Routine) error
	Update(ctx context.Context, routine *Routine) error
	Delete(ctx context.Context, id string) error

	// Scheduler and engine writebacks
	MarkFired(ctx context.Context, id string, firedAt time.Time) error
	RecordOutcome(ctx context.Context, id string, executedAt time.Time) error

	// Execution logging
	CreateExecution(ctx context.Context, exec *Execution) error
	UpdateExecution(ctx context.Context, exec *Execution) error
	GetExecution(ctx context.Context, id string) (*Execution, error)
	ListExecutions(ctx context.Context, routineID string, limit int) ([]Execution, error)
}

// routineColumns is the SELECT column list for routine queries.
const routineColumns = `id, name, description, icon, colour, trigger_kind, trigger_hour,
			trigger_minute, enabled, actions, last_executed_at, last_fired_at,
			execution_count, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a routine by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Routine, error) {
	query := `SELECT ` + routineColumns + ` FROM routines WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	routine, err := scanRoutineRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying routine by id: %w", err)
	}
	return routine, nil
}

// List retrieves all routines in insertion order.
func (r *SQLiteRepository) List(ctx context.Context) ([]Routine, error) {
	query := `SELECT ` + routineColumns + ` FROM routines ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying routines: %w", err)
	}
	defer rows.Close()

	var routines []Routine
	for rows.Next() {
		routine, scanErr := scanRoutineRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning routine: %w", scanErr)
		}
		routines = append(routines, *routine)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating routines: %w", err)
	}
	return routines, nil
}

// Create inserts a new routine.
func (r *SQLiteRepository) Create(ctx context.Context, routine *Routine) error {
	actionsJSON, err := json.Marshal(routine.Actions)
	if err != nil {
		return fmt.Errorf("marshalling actions: %w", err)
	}

	now := time.Now().UTC()
	if routine.CreatedAt.IsZero() {
		routine.CreatedAt = now
	}
	routine.UpdatedAt = now

	query := `
		INSERT INTO routines (
			id, name, description, icon, colour, trigger_kind, trigger_hour,
			trigger_minute, enabled, actions, last_executed_at, last_fired_at,
			execution_count, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	hour, minute := triggerTimeColumns(routine.Trigger)
	_, err = r.db.ExecContext(ctx, query,
		routine.ID,
		routine.Name,
		nullableString(routine.Description),
		nullableString(routine.Icon),
		nullableString(routine.Colour),
		string(routine.Trigger.Kind),
		hour,
		minute,
		boolToInt(routine.Enabled),
		string(actionsJSON),
		nullableTime(routine.LastExecuted),
		nullableTime(routine.LastFired),
		routine.ExecutionCount,
		routine.CreatedAt.Format(time.RFC3339),
		routine.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting routine: %w", err)
	}
	return nil
}

// Update replaces an existing routine's record. The id is the key and
// cannot change.
func (r *SQLiteRepository) Update(ctx context.Context, routine *Routine) error {
	actionsJSON, err := json.Marshal(routine.Actions)
	if err != nil {
		return fmt.Errorf("marshalling actions: %w", err)
	}

	routine.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE routines SET
			name = ?, description = ?, icon = ?, colour = ?,
			trigger_kind = ?, trigger_hour = ?, trigger_minute = ?,
			enabled = ?, actions = ?, last_executed_at = ?, last_fired_at = ?,
			execution_count = ?, updated_at = ?
		WHERE id = ?`

	hour, minute := triggerTimeColumns(routine.Trigger)
	result, err := r.db.ExecContext(ctx, query,
		routine.Name,
		nullableString(routine.Description),
		nullableString(routine.Icon),
		nullableString(routine.Colour),
		string(routine.Trigger.Kind),
		hour,
		minute,
		boolToInt(routine.Enabled),
		string(actionsJSON),
		nullableTime(routine.LastExecuted),
		nullableTime(routine.LastFired),
		routine.ExecutionCount,
		routine.UpdatedAt.Format(time.RFC3339),
		routine.ID,
	)
	if err != nil {
		return fmt.Errorf("updating routine: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a routine by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM routines WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting routine: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFired records the instant a routine's trigger fired automatically.
// Persisted before the execution launches so a crash between firing and
// completion cannot cause a duplicate firing in the same window.
func (r *SQLiteRepository) MarkFired(ctx context.Context, id string, firedAt time.Time) error {
	query := `UPDATE routines SET last_fired_at = ?, updated_at = ? WHERE id = ?`

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx, query, firedAt.UTC().Format(time.RFC3339), now, id)
	if err != nil {
		return fmt.Errorf("marking routine fired: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordOutcome updates a routine's statistics after a terminal run:
// last_executed_at is set and execution_count incremented, regardless
// of whether the run succeeded, failed, or was cancelled.
func (r *SQLiteRepository) RecordOutcome(ctx context.Context, id string, executedAt time.Time) error {
	query := `
		UPDATE routines SET
			last_executed_at = ?,
			execution_count = execution_count + 1,
			updated_at = ?
		WHERE id = ?`

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx, query, executedAt.UTC().Format(time.RFC3339), now, id)
	if err != nil {
		return fmt.Errorf("recording outcome: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateExecution inserts a new execution record.
func (r *SQLiteRepository) CreateExecution(ctx context.Context, exec *Execution) error {
	query := `
		INSERT INTO routine_executions (
			id, routine_id, triggered_at, started_at, completed_at,
			trigger_type, status, steps_total, steps_completed,
			failed_step, error_message, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		exec.ID,
		exec.RoutineID,
		exec.TriggeredAt.Format(time.RFC3339),
		nullableTime(exec.StartedAt),
		nullableTime(exec.CompletedAt),
		exec.TriggerType,
		string(exec.Status),
		exec.StepsTotal,
		exec.StepsCompleted,
		exec.FailedStep,
		nullableString(exec.ErrorMsg),
		exec.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("inserting execution: %w", err)
	}
	return nil
}

// UpdateExecution updates an existing execution record.
func (r *SQLiteRepository) UpdateExecution(ctx context.Context, exec *Execution) error {
	query := `
		UPDATE routine_executions SET
			started_at = ?, completed_at = ?, status = ?,
			steps_total = ?, steps_completed = ?,
			failed_step = ?, error_message = ?, duration_ms = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		nullableTime(exec.StartedAt),
		nullableTime(exec.CompletedAt),
		string(exec.Status),
		exec.StepsTotal,
		exec.StepsCompleted,
		exec.FailedStep,
		nullableString(exec.ErrorMsg),
		exec.DurationMS,
		exec.ID,
	)
	if err != nil {
		return fmt.Errorf("updating execution: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrExecutionNotFound
	}
	return nil
}

// GetExecution retrieves an execution by ID.
func (r *SQLiteRepository) GetExecution(ctx context.Context, id string) (*Execution, error) {
	query := executionSelect + ` WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	exec, err := scanExecutionRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExecutionNotFound
		}
		return nil, fmt.Errorf("querying execution: %w", err)
	}
	return exec, nil
}

// ListExecutions retrieves recent executions for a routine, newest first.
func (r *SQLiteRepository) ListExecutions(ctx context.Context, routineID string, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	query := executionSelect + ` WHERE routine_id = ? ORDER BY triggered_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, routineID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying executions: %w", err)
	}
	defer rows.Close()

	var executions []Execution
	for rows.Next() {
		exec, scanErr := scanExecutionRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning execution: %w", scanErr)
		}
		executions = append(executions, *exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating executions: %w", err)
	}
	return executions, nil
}

const executionSelect = `
	SELECT id, routine_id, triggered_at, started_at, completed_at,
		trigger_type, status, steps_total, steps_completed,
		failed_step, error_message, duration_ms
	FROM routine_executions`

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoutineRow(scanner rowScanner) (*Routine, error) {
	var r Routine
	var description, icon, colour sql.NullString
	var triggerKind string
	var triggerHour, triggerMinute sql.NullInt64
	var enabled int
	var actionsJSON string
	var lastExecuted, lastFired sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&r.ID,
		&r.Name,
		&description,
		&icon,
		&colour,
		&triggerKind,
		&triggerHour,
		&triggerMinute,
		&enabled,
		&actionsJSON,
		&lastExecuted,
		&lastFired,
		&r.ExecutionCount,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		r.Description = &description.String
	}
	if icon.Valid {
		r.Icon = &icon.String
	}
	if colour.Valid {
		r.Colour = &colour.String
	}

	r.Trigger.Kind = TriggerKind(triggerKind)
	if triggerHour.Valid && triggerMinute.Valid {
		r.Trigger.TimeOfDay = &TimeOfDay{
			Hour:   int(triggerHour.Int64),
			Minute: int(triggerMinute.Int64),
		}
	}

	r.Enabled = enabled != 0

	if t, parseErr := parseNullableTime(lastExecuted); parseErr == nil {
		r.LastExecuted = t
	}
	if t, parseErr := parseNullableTime(lastFired); parseErr == nil {
		r.LastFired = t
	}
	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		r.CreatedAt = t
	}
	if t, parseErr := time.Parse(time.RFC3339, updatedAt); parseErr == nil {
		r.UpdatedAt = t
	}

	if actionsJSON != "" && actionsJSON != "[]" {
		if jsonErr := json.Unmarshal([]byte(actionsJSON), &r.Actions); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling actions: %w", jsonErr)
		}
	}
	if r.Actions == nil {
		r.Actions = []Action{}
	}

	return &r, nil
}

func scanExecutionRow(scanner rowScanner) (*Execution, error) {
	var e Execution
	var triggeredAt string
	var startedAt, completedAt, errorMsg sql.NullString
	var failedStep, durationMS sql.NullInt64
	var status string

	err := scanner.Scan(
		&e.ID,
		&e.RoutineID,
		&triggeredAt,
		&startedAt,
		&completedAt,
		&e.TriggerType,
		&status,
		&e.StepsTotal,
		&e.StepsCompleted,
		&failedStep,
		&errorMsg,
		&durationMS,
	)
	if err != nil {
		return nil, err
	}

	e.Status = ExecutionStatus(status)
	if t, parseErr := time.Parse(time.RFC3339, triggeredAt); parseErr == nil {
		e.TriggeredAt = t
	}
	if t, parseErr := parseNullableTime(startedAt); parseErr == nil {
		e.StartedAt = t
	}
	if t, parseErr := parseNullableTime(completedAt); parseErr == nil {
		e.CompletedAt = t
	}
	if errorMsg.Valid {
		e.ErrorMsg = &errorMsg.String
	}
	if failedStep.Valid {
		step := int(failedStep.Int64)
		e.FailedStep = &step
	}
	if durationMS.Valid {
		d := int(durationMS.Int64)
		e.DurationMS = &d
	}

	return &e, nil
}

// ─── SQL Helpers ────────────────────────────────────────────────────────────

// triggerTimeColumns splits a trigger's time-of-day into nullable columns.
func triggerTimeColumns(t Trigger) (sql.NullInt64, sql.NullInt64) {
	if t.TimeOfDay == nil {
		return sql.NullInt64{}, sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(t.TimeOfDay.Hour), Valid: true},
		sql.NullInt64{Int64: int64(t.TimeOfDay.Minute), Valid: true}
}

func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseNullableTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
