package agent

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shayc/relay/pkg/models"
)

// TaskStore is the slice of the store the executor needs.
type TaskStore interface {
	ClaimTask(id int64, agentName string, now time.Time) (bool, error)
	FinishTask(id int64, status models.TaskStatus, output map[string]any, errMsg string, now time.Time) (bool, error)
	AppendLog(entry *models.AgentLog) error
}

// Executor runs one task through one agent with full status
// bookkeeping. It is the only component that moves a task through
// in_progress, so execution is at most once: the claim is a
// compare-and-set and a lost claim is a silent no-op.
type Executor struct {
	store TaskStore
}

// NewExecutor returns an executor over the given store.
func NewExecutor(store TaskStore) *Executor {
	return &Executor{store: store}
}

// Execute claims the task, runs the agent, and writes the terminal
// status. It returns nil when another worker won the claim. A panic in
// Process is converted into a failed result rather than crashing the
// worker.
func (e *Executor) Execute(ctx context.Context, a Agent, task *models.Task) (*Result, error) {
	start := time.Now()

	claimed, err := e.store.ClaimTask(task.ID, a.Name(), start)
	if err != nil {
		return nil, fmt.Errorf("claim task %d: %w", task.ID, err)
	}
	if !claimed {
		return nil, nil
	}

	e.appendLog(task.ID, a.Name(), models.LogActionStarted, map[string]any{
		"kind": string(task.Kind),
	}, 0)

	result := e.runProcess(ctx, a, task)

	status := models.TaskStatusFailed
	action := models.LogActionFailed
	errMsg := result.Error
	if result.Success {
		status = models.TaskStatusCompleted
		action = models.LogActionCompleted
		errMsg = ""
		if result.Status == models.TaskStatusWaitingInput || result.Status == models.TaskStatusWaitingApproval {
			status = result.Status
		}
	}

	output := result.Data
	if result.Response != "" {
		if output == nil {
			output = make(map[string]any)
		}
		output["response"] = result.Response
	}
	if !result.Success && result.ErrorKind != "" {
		if output == nil {
			output = make(map[string]any)
		}
		output["error_kind"] = string(result.ErrorKind)
	}

	applied, err := e.store.FinishTask(task.ID, status, output, errMsg, time.Now())
	if err != nil {
		return result, fmt.Errorf("finish task %d: %w", task.ID, err)
	}
	if !applied {
		// The task left in_progress underneath us, normally a
		// cancellation. The result is discarded.
		log.Printf("[executor] task %d: result discarded, task no longer in progress", task.ID)
	}

	duration := time.Since(start)
	details := map[string]any{"status": string(status)}
	if errMsg != "" {
		details["error"] = errMsg
	}
	e.appendLog(task.ID, a.Name(), action, details, 0)
	e.appendLog(task.ID, a.Name(), models.LogActionDuration, nil, duration.Milliseconds())

	log.Printf("[executor] task %d (%s) by %s: %s in %v", task.ID, task.Kind, a.Name(), status, duration.Round(time.Millisecond))
	return result, nil
}

// runProcess invokes the agent, mapping a panic to a failed result.
func (e *Executor) runProcess(ctx context.Context, a Agent, task *models.Task) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[executor] task %d: agent %s panicked: %v", task.ID, a.Name(), r)
			result = Fail(models.ErrorKindValidation, fmt.Sprintf("agent panic: %v", r))
		}
	}()

	result = a.Process(ctx, task)
	if result == nil {
		result = Fail(models.ErrorKindValidation, "agent returned no result")
	}
	return result
}

func (e *Executor) appendLog(taskID int64, agentName string, action models.LogAction, details map[string]any, durationMS int64) {
	entry := &models.AgentLog{
		TaskID:     taskID,
		AgentName:  agentName,
		Action:     action,
		Details:    details,
		DurationMS: durationMS,
	}
	if err := e.store.AppendLog(entry); err != nil {
		// Log persistence is best effort; execution state wins.
		log.Printf("[executor] task %d: append log: %v", taskID, err)
	}
}
