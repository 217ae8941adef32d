// Package manager exposes the task lifecycle operations: creation,
// querying, retry, cancellation, and resumption. It is the only writer
// of tasks outside the execution path and keeps the durable store and
// the in-memory dispatch queue consistent: a task is enqueued only
// after its record is safely written.
package manager

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shayc/relay/internal/queue"
	"github.com/shayc/relay/internal/store"
	"github.com/shayc/relay/pkg/models"
)

// TaskManager coordinates the store and the dispatch queue.
type TaskManager struct {
	store *store.DB
	queue *queue.DispatchQueue
}

// New returns a TaskManager over the given store and queue.
func New(db *store.DB, q *queue.DispatchQueue) *TaskManager {
	return &TaskManager{store: db, queue: q}
}

// CreateTask validates, persists, and enqueues a new pending task.
// Unknown kinds are rejected before anything is written.
func (m *TaskManager) CreateTask(ctx context.Context, kind models.TaskKind, input map[string]any, contextID, messageID string, priority int) (*models.Task, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("create task: %w: %q", models.ErrUnknownKind, kind)
	}
	if priority <= 0 {
		priority = models.PriorityNormal
	}

	task := &models.Task{
		Kind:       kind,
		Status:     models.TaskStatusPending,
		Priority:   priority,
		ContextID:  contextID,
		MessageID:  messageID,
		Input:      input,
		MaxRetries: models.DefaultMaxRetries,
		CreatedAt:  time.Now(),
	}

	if err := m.store.CreateTask(task); err != nil {
		return nil, err
	}
	m.enqueue(task)

	log.Printf("[manager] created task %d (%s) priority %d", task.ID, task.Kind, task.Priority)
	return task, nil
}

// CreateSubtask creates a child task for a multi-step workflow. The
// subtask inherits the parent's conversation reference and advances the
// step counter.
func (m *TaskManager) CreateSubtask(ctx context.Context, parent *models.Task, kind models.TaskKind, input map[string]any, totalSteps int) (*models.Task, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("create subtask: %w: %q", models.ErrUnknownKind, kind)
	}

	task := &models.Task{
		Kind:       kind,
		Status:     models.TaskStatusPending,
		Priority:   parent.Priority,
		ContextID:  parent.ContextID,
		MessageID:  parent.MessageID,
		Input:      input,
		ParentID:   parent.ID,
		StepNumber: parent.StepNumber + 1,
		TotalSteps: totalSteps,
		MaxRetries: models.DefaultMaxRetries,
		CreatedAt:  time.Now(),
	}

	if err := m.store.CreateTask(task); err != nil {
		return nil, err
	}
	m.enqueue(task)

	m.appendLog(parent.ID, models.LogActionSubtaskCreated, map[string]any{
		"subtask_id": task.ID,
		"kind":       string(kind),
		"step":       task.StepNumber,
	})

	log.Printf("[manager] created subtask %d (%s) of task %d, step %d", task.ID, kind, parent.ID, task.StepNumber)
	return task, nil
}

// GetTask loads one task.
func (m *TaskManager) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	return m.store.GetTask(id)
}

// ListPending lists pending tasks in dispatch order, optionally
// filtered by kind. limit <= 0 means no limit.
func (m *TaskManager) ListPending(ctx context.Context, limit int, kind models.TaskKind) ([]*models.Task, error) {
	return m.store.ListPending(limit, kind)
}

// ListByContext lists tasks for one conversation, newest first.
func (m *TaskManager) ListByContext(ctx context.Context, contextID string, status models.TaskStatus, limit int) ([]*models.Task, error) {
	return m.store.ListByContext(contextID, status, limit)
}

// UpdateStatus applies an explicit status transition. Illegal
// transitions return models.ErrInvalidTransition.
func (m *TaskManager) UpdateStatus(ctx context.Context, id int64, status models.TaskStatus, output map[string]any, errMsg string) error {
	return m.store.UpdateTaskStatus(id, status, output, errMsg, time.Now())
}

// RetryTask moves a failed task back to pending and re-enqueues it.
// Returns false once the retry budget is exhausted or the task is not
// failed; a refused retry changes nothing.
func (m *TaskManager) RetryTask(ctx context.Context, id int64) (bool, error) {
	ok, err := m.store.ResetForRetry(id)
	if err != nil || !ok {
		return false, err
	}

	task, err := m.store.GetTask(id)
	if err != nil {
		return false, err
	}
	m.enqueue(task)

	log.Printf("[manager] retrying task %d (attempt %d of %d)", id, task.RetryCount, task.MaxRetries)
	return true, nil
}

// CancelTask cancels a task that has not reached a terminal state. The
// reason is recorded as the task's error message.
func (m *TaskManager) CancelTask(ctx context.Context, id int64, reason string) (bool, error) {
	ok, err := m.store.CancelTask(id, reason, time.Now())
	if err != nil {
		return false, err
	}
	if ok {
		log.Printf("[manager] cancelled task %d: %s", id, reason)
	}
	return ok, nil
}

// ResumeTask moves a waiting task back to pending in response to an
// external signal and re-enqueues it.
func (m *TaskManager) ResumeTask(ctx context.Context, id int64) (bool, error) {
	ok, err := m.store.ResumeTask(id)
	if err != nil || !ok {
		return false, err
	}

	task, err := m.store.GetTask(id)
	if err != nil {
		return false, err
	}
	m.enqueue(task)
	return true, nil
}

// Stats reports store counts plus the current queue depth.
type Stats struct {
	*store.TaskStats
	QueueDepth int
}

// Stats returns current engine statistics.
func (m *TaskManager) Stats(ctx context.Context) (*Stats, error) {
	ts, err := m.store.Stats()
	if err != nil {
		return nil, err
	}
	depth := 0
	if m.queue != nil {
		depth = m.queue.Len()
	}
	return &Stats{TaskStats: ts, QueueDepth: depth}, nil
}

// CleanupOldTasks deletes terminal tasks older than the retention
// window.
func (m *TaskManager) CleanupOldTasks(ctx context.Context, olderThan time.Duration) (int64, error) {
	return m.store.DeleteOldTasks(olderThan)
}

// RequeuePending reloads all pending tasks into the queue. Called at
// startup because queue contents do not survive a restart.
func (m *TaskManager) RequeuePending(ctx context.Context) (int, error) {
	tasks, err := m.store.ListPending(0, "")
	if err != nil {
		return 0, err
	}
	for _, task := range tasks {
		m.enqueue(task)
	}
	if len(tasks) > 0 {
		log.Printf("[manager] requeued %d pending tasks", len(tasks))
	}
	return len(tasks), nil
}

// LogsForTask returns the audit trail of one task.
func (m *TaskManager) LogsForTask(ctx context.Context, id int64) ([]*models.AgentLog, error) {
	return m.store.LogsForTask(id)
}

func (m *TaskManager) enqueue(task *models.Task) {
	if m.queue != nil {
		m.queue.Put(task.ID, task.Priority)
	}
}

func (m *TaskManager) appendLog(taskID int64, action models.LogAction, details map[string]any) {
	entry := &models.AgentLog{
		TaskID:    taskID,
		AgentName: "manager",
		Action:    action,
		Details:   details,
	}
	if err := m.store.AppendLog(entry); err != nil {
		log.Printf("[manager] task %d: append log: %v", taskID, err)
	}
}
