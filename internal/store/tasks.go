package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shayc/relay/pkg/models"
)

const taskColumns = `id, kind, status, priority, context_id, message_id,
	assigned_agent, input, output, error_message, parent_id, step_number,
	total_steps, retry_count, max_retries, created_at, started_at,
	completed_at, deadline`

// CreateTask inserts a new task row and assigns the store-generated ID.
func (db *DB) CreateTask(t *models.Task) error {
	input, err := marshalPayload(t.Input)
	if err != nil {
		return err
	}

	var parent any
	if t.ParentID != 0 {
		parent = t.ParentID
	}

	res, err := db.Exec(`
		INSERT INTO tasks (kind, status, priority, context_id, message_id,
			assigned_agent, input, parent_id, step_number, total_steps,
			retry_count, max_retries, created_at, deadline)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, string(t.Kind), string(t.Status), t.Priority, t.ContextID, t.MessageID,
		t.AssignedAgent, input, parent, t.StepNumber, t.TotalSteps,
		t.RetryCount, t.MaxRetries, formatTime(t.CreatedAt), nullableTime(t.Deadline))
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("task id: %w", err)
	}
	t.ID = id
	return nil
}

// GetTask retrieves a task by ID. Returns models.ErrNotFound if absent.
func (db *DB) GetTask(id int64) (*models.Task, error) {
	row := db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return task, nil
}

// ListPending returns pending tasks ordered by (priority asc, created_at asc).
// Lower priority numbers come first; ties are FIFO by creation time.
// An empty kind matches all kinds; limit <= 0 means no limit.
func (db *DB) ListPending(limit int, kind models.TaskKind) ([]*models.Task, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE status = 'pending'`
	args := []any{}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY priority ASC, created_at ASC, id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ListByContext returns tasks for one conversation, newest first.
// An empty status matches all statuses; limit <= 0 means no limit.
func (db *DB) ListByContext(contextID string, status models.TaskStatus, limit int) ([]*models.Task, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE context_id = ?`
	args := []any{contextID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list by context: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ClaimTask atomically moves a pending task to in_progress on behalf of an
// agent. It is the compare-and-swap that guarantees at-most-one worker
// executes a task: of two concurrent claims, exactly one sees a pending row.
func (db *DB) ClaimTask(id int64, agentName string, now time.Time) (bool, error) {
	res, err := db.Exec(`
		UPDATE tasks
		SET status = 'in_progress', assigned_agent = ?, started_at = ?
		WHERE id = ? AND status = 'pending'
	`, agentName, formatTime(now), id)
	if err != nil {
		return false, fmt.Errorf("claim task %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim task %d: %w", id, err)
	}
	return n == 1, nil
}

// FinishTask records the outcome of an execution attempt. The write is
// conditional on the task still being in_progress, so a cancellation that
// landed mid-flight wins and the result is discarded.
func (db *DB) FinishTask(id int64, status models.TaskStatus, output map[string]any, errMsg string, now time.Time) (bool, error) {
	if !models.TaskStatusInProgress.CanTransition(status) {
		return false, fmt.Errorf("finish task %d to %s: %w", id, status, models.ErrInvalidTransition)
	}

	out, err := marshalPayload(output)
	if err != nil {
		return false, err
	}

	var completedAt any
	if status.Terminal() {
		completedAt = formatTime(now)
	}

	res, err := db.Exec(`
		UPDATE tasks
		SET status = ?, output = ?, error_message = ?, completed_at = ?
		WHERE id = ? AND status = 'in_progress'
	`, string(status), out, nullIfEmpty(errMsg), completedAt, id)
	if err != nil {
		return false, fmt.Errorf("finish task %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("finish task %d: %w", id, err)
	}
	return n == 1, nil
}

// UpdateTaskStatus applies a guarded status transition. The current status
// is read and validated against the state machine inside a transaction, and
// the write is conditional on the status not having changed underneath.
// Failed -> Pending additionally consumes one retry from the budget.
// Returns models.ErrInvalidTransition for illegal moves.
func (db *DB) UpdateTaskStatus(id int64, next models.TaskStatus, output map[string]any, errMsg string, now time.Time) error {
	out, err := marshalPayload(output)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *sql.Tx) error {
		var current string
		var retryCount, maxRetries int
		row := tx.QueryRow(`SELECT status, retry_count, max_retries FROM tasks WHERE id = ?`, id)
		if err := row.Scan(&current, &retryCount, &maxRetries); err == sql.ErrNoRows {
			return models.ErrNotFound
		} else if err != nil {
			return fmt.Errorf("read status of task %d: %w", id, err)
		}

		from := models.TaskStatus(current)
		if !from.CanTransition(next) {
			return fmt.Errorf("task %d: %s -> %s: %w", id, from, next, models.ErrInvalidTransition)
		}

		// Failed -> Pending is a retry and consumes budget. A failed task
		// with no budget left is permanently terminal.
		retryDelta := 0
		if from == models.TaskStatusFailed && next == models.TaskStatusPending {
			if retryCount >= maxRetries {
				return fmt.Errorf("task %d: retry budget exhausted: %w", id, models.ErrInvalidTransition)
			}
			retryDelta = 1
		}

		var completedAt any
		if next.Terminal() {
			completedAt = formatTime(now)
		}

		res, err := tx.Exec(`
			UPDATE tasks
			SET status = ?, retry_count = retry_count + ?,
				output = COALESCE(?, output),
				error_message = COALESCE(?, error_message), completed_at = ?
			WHERE id = ? AND status = ?
		`, string(next), retryDelta, out, nullIfEmpty(errMsg), completedAt, id, current)
		if err != nil {
			return fmt.Errorf("update task %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update task %d: %w", id, err)
		}
		if n != 1 {
			return fmt.Errorf("task %d changed concurrently: %w", id, models.ErrInvalidTransition)
		}
		return nil
	})
}

// ResetForRetry moves a failed task back to pending for another attempt.
// The update is guarded on status and remaining retry budget; it returns
// false when the task is not failed or the budget is spent.
func (db *DB) ResetForRetry(id int64) (bool, error) {
	res, err := db.Exec(`
		UPDATE tasks
		SET status = 'pending', retry_count = retry_count + 1,
			error_message = NULL, output = NULL,
			started_at = NULL, completed_at = NULL
		WHERE id = ? AND status = 'failed' AND retry_count < max_retries
	`, id)
	if err != nil {
		return false, fmt.Errorf("reset task %d for retry: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reset task %d for retry: %w", id, err)
	}
	return n == 1, nil
}

// CancelTask cancels a task from any non-terminal status, recording the
// reason. Returns false if the task was already terminal or absent.
func (db *DB) CancelTask(id int64, reason string, now time.Time) (bool, error) {
	if reason == "" {
		reason = "cancelled"
	}
	res, err := db.Exec(`
		UPDATE tasks
		SET status = 'cancelled', error_message = ?, completed_at = ?
		WHERE id = ? AND status IN ('pending', 'in_progress', 'waiting_input', 'waiting_approval')
	`, reason, formatTime(now), id)
	if err != nil {
		return false, fmt.Errorf("cancel task %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel task %d: %w", id, err)
	}
	return n == 1, nil
}

// ResumeTask moves a waiting task back to pending in response to an
// external signal. Returns false if the task was not waiting.
func (db *DB) ResumeTask(id int64) (bool, error) {
	res, err := db.Exec(`
		UPDATE tasks
		SET status = 'pending'
		WHERE id = ? AND status IN ('waiting_input', 'waiting_approval')
	`, id)
	if err != nil {
		return false, fmt.Errorf("resume task %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resume task %d: %w", id, err)
	}
	return n == 1, nil
}

// TaskStats summarizes task counts and completion latency.
type TaskStats struct {
	Total                int64
	ByStatus             map[models.TaskStatus]int64
	AvgCompletionSeconds float64
}

// Stats computes per-status counts and the mean completion latency over
// completed tasks that carry both timestamps.
func (db *DB) Stats() (*TaskStats, error) {
	stats := &TaskStats{ByStatus: make(map[models.TaskStatus]int64)}

	rows, err := db.Query(`SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("task stats: %w", err)
		}
		stats.ByStatus[models.TaskStatus(status)] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}

	// Timestamps are stored as RFC3339 text, so latency is computed here
	// rather than in SQL.
	trows, err := db.Query(`
		SELECT started_at, completed_at FROM tasks
		WHERE status = 'completed' AND started_at IS NOT NULL AND completed_at IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	defer trows.Close()

	var total time.Duration
	var n int64
	for trows.Next() {
		var started, completed string
		if err := trows.Scan(&started, &completed); err != nil {
			return nil, fmt.Errorf("task stats: %w", err)
		}
		s, err1 := parseTime(started)
		c, err2 := parseTime(completed)
		if err1 != nil || err2 != nil {
			continue
		}
		total += c.Sub(s)
		n++
	}
	if err := trows.Err(); err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	if n > 0 {
		stats.AvgCompletionSeconds = total.Seconds() / float64(n)
	}

	return stats, nil
}

// DeleteOldTasks deletes terminal tasks created before the cutoff.
// Returns the number of tasks deleted. Only housekeeping calls this; the
// core itself never deletes tasks.
func (db *DB) DeleteOldTasks(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	res, err := db.Exec(`
		DELETE FROM tasks
		WHERE status IN ('completed', 'failed', 'cancelled') AND created_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old tasks: %w", err)
	}
	return res.RowsAffected()
}

// scanner abstracts sql.Row and sql.Rows for task scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*models.Task, error) {
	var t models.Task
	var kind, status, createdAt string
	var messageID, assignedAgent, errMsg sql.NullString
	var input, output sql.NullString
	var parentID sql.NullInt64
	var startedAt, completedAt, deadline sql.NullString

	err := s.Scan(&t.ID, &kind, &status, &t.Priority, &t.ContextID, &messageID,
		&assignedAgent, &input, &output, &errMsg, &parentID, &t.StepNumber,
		&t.TotalSteps, &t.RetryCount, &t.MaxRetries, &createdAt, &startedAt,
		&completedAt, &deadline)
	if err != nil {
		return nil, err
	}

	t.Kind = models.TaskKind(kind)
	t.Status = models.TaskStatus(status)
	t.MessageID = messageID.String
	t.AssignedAgent = assignedAgent.String
	t.ErrorMessage = errMsg.String
	t.Input = unmarshalPayload(input)
	t.Output = unmarshalPayload(output)
	t.ParentID = parentID.Int64

	created, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	t.CreatedAt = created
	t.StartedAt = parseNullableTime(startedAt)
	t.CompletedAt = parseNullableTime(completedAt)
	t.Deadline = parseNullableTime(deadline)

	return &t, nil
}

func scanTasks(rows *sql.Rows) ([]*models.Task, error) {
	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan tasks: %w", err)
	}
	return tasks, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
