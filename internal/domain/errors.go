package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced to API callers.
var (
	// ErrConversationBusy means a run is already active for the conversation.
	// Retryable by the caller after backoff.
	ErrConversationBusy = errors.New("conversation busy: run already in progress")

	// ErrInvalidTransition means the event is not legal in the conversation's
	// current state. Not retryable with the same event.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrNotFound means a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEvaluation means an evaluation already exists for the
	// (turn, judge prompt version) pair. Surfaced on manual submissions;
	// DAG runs resolve replays idempotently inside the recorder.
	ErrDuplicateEvaluation = errors.New("duplicate evaluation")
)

// AgentErrorCode classifies agent step adapter failures.
type AgentErrorCode string

const (
	AgentErrorTimeout     AgentErrorCode = "timeout"
	AgentErrorUnavailable AgentErrorCode = "unavailable"
	AgentErrorMalformed   AgentErrorCode = "malformed_output"
)

// AgentError is a failure from an agent step adapter. Timeout and
// unavailable are retried internally up to the configured bound.
type AgentError struct {
	Code    AgentErrorCode
	Message string
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent error [%s]: %s", e.Code, e.Message)
}

// Retryable reports whether the executor may retry the failing step.
func (e *AgentError) Retryable() bool {
	return e.Code == AgentErrorTimeout || e.Code == AgentErrorUnavailable
}

// ValidationError rejects a malformed event or score payload before any write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NewInvalidTransition wraps ErrInvalidTransition with the offending pair.
func NewInvalidTransition(state ConversationState, event EventType) error {
	return fmt.Errorf("%w: event %s in state %s", ErrInvalidTransition, event, state)
}
