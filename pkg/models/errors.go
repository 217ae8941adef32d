package models

import "errors"

// Sentinel errors surfaced by the task manager and store.
var (
	// ErrNotFound indicates the referenced task does not exist.
	ErrNotFound = errors.New("task not found")
	// ErrInvalidTransition indicates an illegal state machine transition.
	// This is an integrity error; correct callers never trigger it.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrUnknownKind indicates a task kind outside the closed enumeration.
	ErrUnknownKind = errors.New("unknown task kind")
)

// ErrorKind classifies agent-level failures for retry decisions.
// The execution wrapper records the kind on the task; it never decides
// retry eligibility itself.
type ErrorKind string

const (
	// ErrorKindValidation marks bad or missing input fields. Not retried.
	ErrorKindValidation ErrorKind = "validation"
	// ErrorKindDependencyUnavailable marks an unreachable external
	// collaborator. Eligible for retry.
	ErrorKindDependencyUnavailable ErrorKind = "dependency_unavailable"
	// ErrorKindUnauthorized marks a permission failure. Not retried.
	ErrorKindUnauthorized ErrorKind = "unauthorized"
	// ErrorKindNotFound marks a missing referenced entity. Not retried.
	ErrorKindNotFound ErrorKind = "not_found"
)

// Retryable returns true if failures of this kind may succeed on retry.
func (k ErrorKind) Retryable() bool {
	return k == ErrorKindDependencyUnavailable
}

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	return string(k)
}
