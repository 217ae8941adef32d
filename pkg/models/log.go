package models

import "time"

// LogAction identifies the kind of event recorded in an agent log entry.
type LogAction string

const (
	// LogActionStarted records the beginning of task processing.
	LogActionStarted LogAction = "started"
	// LogActionCompleted records successful completion.
	LogActionCompleted LogAction = "completed"
	// LogActionFailed records an agent-reported failure.
	LogActionFailed LogAction = "failed"
	// LogActionDelegated records a handoff to another agent.
	LogActionDelegated LogAction = "delegated"
	// LogActionSubtaskCreated records the creation of a child task.
	LogActionSubtaskCreated LogAction = "subtask_created"
	// LogActionRouted records a routing decision by the orchestrator.
	LogActionRouted LogAction = "routed"
	// LogActionError records an unexpected execution error.
	LogActionError LogAction = "error"
	// LogActionDuration records the elapsed time of an execution attempt.
	LogActionDuration LogAction = "duration"
)

// AgentLog is an immutable audit record of a significant task event.
// Entries are append-only; the core never mutates or deletes them.
type AgentLog struct {
	ID         int64          `json:"id"`
	TaskID     int64          `json:"task_id"`
	AgentName  string         `json:"agent_name"`
	Action     LogAction      `json:"action"`
	Details    map[string]any `json:"details,omitempty"`
	DurationMS int64          `json:"duration_ms,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
