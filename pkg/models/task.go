package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task is queued and waiting for dispatch.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress indicates an agent is working on the task.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusWaitingInput indicates the task is paused for external input.
	TaskStatusWaitingInput TaskStatus = "waiting_input"
	// TaskStatusWaitingApproval indicates the task is paused for approval.
	TaskStatusWaitingApproval TaskStatus = "waiting_approval"
	// TaskStatusCompleted indicates the task completed successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusCancelled indicates the task was cancelled before finishing.
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusWaitingInput,
		TaskStatusWaitingApproval, TaskStatusCompleted, TaskStatusFailed,
		TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status ends the task's lifecycle.
// Failed is terminal in the transition sense; whether another attempt is
// allowed is decided by the retry budget, not the state machine.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is a legal state
// machine transition. Every other pair is an integrity error.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return next == TaskStatusInProgress || next == TaskStatusCancelled
	case TaskStatusInProgress:
		switch next {
		case TaskStatusCompleted, TaskStatusFailed, TaskStatusWaitingInput,
			TaskStatusWaitingApproval, TaskStatusCancelled:
			return true
		}
		return false
	case TaskStatusWaitingInput, TaskStatusWaitingApproval:
		return next == TaskStatusPending || next == TaskStatusCancelled
	case TaskStatusFailed:
		// Retry only; the store guards the remaining budget.
		return next == TaskStatusPending
	default:
		// Completed and Cancelled are permanently terminal.
		return false
	}
}

// TaskKind identifies the category of work a task represents.
type TaskKind string

const (
	// TaskKindTriage is the entry kind for every inbound message; the
	// orchestrator classifies it and routes a follow-up task.
	TaskKindTriage TaskKind = "triage"
	// TaskKindAppointmentBooking books a new appointment.
	TaskKindAppointmentBooking TaskKind = "appointment_booking"
	// TaskKindAppointmentReschedule changes an existing appointment.
	TaskKindAppointmentReschedule TaskKind = "appointment_reschedule"
	// TaskKindAppointmentCancel cancels an appointment.
	TaskKindAppointmentCancel TaskKind = "appointment_cancel"
	// TaskKindInformationQuery answers questions about services, hours, pricing.
	TaskKindInformationQuery TaskKind = "information_query"
	// TaskKindFileProcessing handles inbound files and attachments.
	TaskKindFileProcessing TaskKind = "file_processing"
	// TaskKindGeneralInquiry covers greetings and anything unclassified.
	TaskKindGeneralInquiry TaskKind = "general_inquiry"
	// TaskKindConversationArchive archives old conversations.
	TaskKindConversationArchive TaskKind = "conversation_archive"
	// TaskKindMessageSync synchronizes messages with the transport.
	TaskKindMessageSync TaskKind = "message_sync"
	// TaskKindDatabaseCleanup removes old terminal tasks and reclaims space.
	TaskKindDatabaseCleanup TaskKind = "database_cleanup"
	// TaskKindMetadataUpdate refreshes derived conversation metadata.
	TaskKindMetadataUpdate TaskKind = "metadata_update"
	// TaskKindStatusUpdate recomputes conversation status fields.
	TaskKindStatusUpdate TaskKind = "status_update"
	// TaskKindDocumentAnalysis extracts and summarizes document content.
	TaskKindDocumentAnalysis TaskKind = "document_analysis"
)

// Valid returns true if the kind is a member of the closed enumeration.
func (k TaskKind) Valid() bool {
	switch k {
	case TaskKindTriage, TaskKindAppointmentBooking, TaskKindAppointmentReschedule,
		TaskKindAppointmentCancel, TaskKindInformationQuery, TaskKindFileProcessing,
		TaskKindGeneralInquiry, TaskKindConversationArchive, TaskKindMessageSync,
		TaskKindDatabaseCleanup, TaskKindMetadataUpdate, TaskKindStatusUpdate,
		TaskKindDocumentAnalysis:
		return true
	default:
		return false
	}
}

// Task priorities. Lower value means higher priority; the value only
// affects queue ordering, never correctness.
const (
	PriorityUrgent     = 1
	PriorityHigh       = 3
	PriorityNormal     = 5
	PriorityLow        = 7
	PriorityBackground = 9
)

// DefaultMaxRetries is the retry budget applied when a task is created
// without an explicit limit.
const DefaultMaxRetries = 3

// Task is the unit of work tracked by the control plane.
type Task struct {
	// ID is the store-assigned identifier, monotonically increasing.
	ID int64 `json:"id"`
	// Kind is the task category.
	Kind TaskKind `json:"kind"`
	// Status is the current lifecycle state.
	Status TaskStatus `json:"status"`
	// Priority orders the dispatch queue; lower wins.
	Priority int `json:"priority"`
	// ContextID references the originating conversation. Opaque to the core.
	ContextID string `json:"context_id"`
	// MessageID references the originating message, if any. Opaque to the core.
	MessageID string `json:"message_id,omitempty"`
	// AssignedAgent names the agent currently or last handling the task.
	AssignedAgent string `json:"assigned_agent,omitempty"`
	// Input is the creator-supplied payload. Write-once at creation.
	Input map[string]any `json:"input,omitempty"`
	// Output is the result payload, written once on success.
	Output map[string]any `json:"output,omitempty"`
	// ErrorMessage is set only when the task has failed or was cancelled.
	ErrorMessage string `json:"error_message,omitempty"`
	// ParentID links a subtask to its parent task.
	ParentID int64 `json:"parent_id,omitempty"`
	// StepNumber is the position in a multi-step workflow.
	StepNumber int `json:"step_number,omitempty"`
	// TotalSteps is the expected number of workflow steps, if known.
	TotalSteps int `json:"total_steps,omitempty"`
	// RetryCount is the number of retries consumed so far.
	RetryCount int `json:"retry_count"`
	// MaxRetries is the retry budget.
	MaxRetries int `json:"max_retries"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is when dispatch began, if it has.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the task reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// Deadline is advisory only; the core never enforces it.
	Deadline *time.Time `json:"deadline,omitempty"`
}

// IsSubtask returns true if the task was created under a parent.
func (t *Task) IsSubtask() bool {
	return t.ParentID != 0
}

// RetryExhausted returns true when no further retry attempts are allowed.
func (t *Task) RetryExhausted() bool {
	return t.RetryCount >= t.MaxRetries
}
