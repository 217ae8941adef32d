// Package agent defines the worker contract and the agents that do the
// work. An Agent declares which task kinds it handles and processes one
// task at a time; the Executor owns all status bookkeeping around a run
// so agents themselves never touch task state.
package agent

import (
	"context"

	"github.com/shayc/relay/pkg/models"
)

// Agent handles a subset of task kinds.
type Agent interface {
	// Name identifies the agent in logs and task records.
	Name() string

	// CanHandle reports whether the agent processes tasks of this kind.
	CanHandle(kind models.TaskKind) bool

	// Process performs the work for one task. It must not mutate task
	// status; the executor applies the result afterward.
	Process(ctx context.Context, task *models.Task) *Result
}

// Result is the outcome of a single Process call.
type Result struct {
	// Success selects the terminal status the executor writes.
	Success bool

	// Response is optional user-facing text already delivered (or to
	// be delivered) through the transport bridge.
	Response string

	// Data is merged into the task's output payload.
	Data map[string]any

	// Error describes the failure when Success is false.
	Error string

	// ErrorKind classifies the failure for retry decisions.
	ErrorKind models.ErrorKind

	// Status parks the task in a waiting state instead of completing
	// it. Ignored unless Success is true and Status is waiting_input
	// or waiting_approval.
	Status models.TaskStatus
}

// Succeed builds a successful result with optional output data.
func Succeed(response string, data map[string]any) *Result {
	return &Result{Success: true, Response: response, Data: data}
}

// Fail builds a failed result.
func Fail(kind models.ErrorKind, msg string) *Result {
	return &Result{Success: false, Error: msg, ErrorKind: kind}
}
