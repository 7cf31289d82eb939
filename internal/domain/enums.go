// Package domain defines the core domain models for the negotiation orchestrator.
package domain

// ConversationState represents the lifecycle state of a supplier conversation.
type ConversationState string

const (
	ConversationStateOpen             ConversationState = "OPEN"
	ConversationStateAwaitingAgent    ConversationState = "AWAITING_AGENT"
	ConversationStateAwaitingSupplier ConversationState = "AWAITING_SUPPLIER"
	ConversationStateEvaluating       ConversationState = "EVALUATING"
	ConversationStateClosed           ConversationState = "CLOSED"
)

// TurnRole attributes a conversation turn to its author.
type TurnRole string

const (
	TurnRoleSupplier TurnRole = "SUPPLIER"
	TurnRoleAgent    TurnRole = "AGENT"
	TurnRoleSystem   TurnRole = "SYSTEM"
)

// SupplierStatus represents the negotiation status of a supplier.
type SupplierStatus string

const (
	SupplierStatusOpen       SupplierStatus = "OPEN"
	SupplierStatusInProgress SupplierStatus = "IN_PROGRESS"
	SupplierStatusClosed     SupplierStatus = "CLOSED"
)

// EventType is the type of an input event submitted to the orchestrator.
type EventType string

const (
	EventTypeSupplierReply EventType = "SUPPLIER_REPLY"
	EventTypeClose         EventType = "CLOSE"
)

// RunOutcome is the terminal outcome of one DAG run.
type RunOutcome string

const (
	RunOutcomeSuccess RunOutcome = "SUCCESS"
	RunOutcomeFailed  RunOutcome = "FAILED"
	RunOutcomePartial RunOutcome = "PARTIAL"
)

// RunEventType is the type of a step-level trace event recorded during a run.
type RunEventType string

const (
	RunEventTypeRunStarted   RunEventType = "run_started"
	RunEventTypeStepStarted  RunEventType = "step_started"
	RunEventTypeStepDone     RunEventType = "step_done"
	RunEventTypeStepSkipped  RunEventType = "step_skipped"
	RunEventTypeStateChanged RunEventType = "state_changed"
	RunEventTypeGateDecision RunEventType = "gate_decision"
	RunEventTypeRunDone      RunEventType = "run_done"
	RunEventTypeRunFailed    RunEventType = "run_failed"
)

// DeliveryStatus marks how an agent-authored turn left the delivery gate.
type DeliveryStatus string

const (
	DeliveryStatusSent    DeliveryStatus = "SENT"
	DeliveryStatusFlagged DeliveryStatus = "FLAGGED_FOR_REVIEW"
)
