package domain

import (
	"encoding/json"
	"time"
)

// Supplier represents a supplier party in a negotiation.
type Supplier struct {
	SupplierID    string         `json:"supplier_id"`
	Name          string         `json:"name"`
	ContactEmail  string         `json:"contact_email"`
	Status        SupplierStatus `json:"status"`
	LastContactAt *time.Time     `json:"last_contact_at,omitempty"`
	Summary       string         `json:"summary,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Conversation represents a negotiation thread with exactly one supplier.
type Conversation struct {
	ConvID      string            `json:"conv_id"`
	SupplierID  string            `json:"supplier_id"`
	State       ConversationState `json:"state"`
	LastUpdated time.Time         `json:"last_updated"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Turn represents a single message in a conversation. Immutable once written.
// Seq is assigned by the store on insert and breaks ties when two turns share
// a sent_at timestamp.
type Turn struct {
	Seq     int64           `json:"seq"`
	TurnID  string          `json:"turn_id"`
	ConvID  string          `json:"conv_id"`
	Role    TurnRole        `json:"role"`
	Content string          `json:"content"`
	SentAt  time.Time       `json:"sent_at"`
	Meta    json.RawMessage `json:"meta,omitempty"`
}

// Evaluation is a judge's scored assessment of one agent turn.
// Immutable; at most one per (turn_id, judge_prompt_version).
type Evaluation struct {
	EvalID             string             `json:"eval_id"`
	ConvID             string             `json:"conv_id"`
	TurnID             string             `json:"turn_id"`
	JudgePromptVersion string             `json:"judge_prompt_version"`
	Scores             map[string]float64 `json:"scores_json"`
	Comments           string             `json:"comments,omitempty"`
	Blocked            bool               `json:"blocked"`
	CreatedAt          time.Time          `json:"created_at"`
}

// Document is a file attached to a supplier, independent of any conversation.
type Document struct {
	DocID       string    `json:"doc_id"`
	SupplierID  string    `json:"supplier_id"`
	DocType     string    `json:"doc_type"`
	Version     string    `json:"version"`
	DocDate     string    `json:"doc_date,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	StoragePath string    `json:"storage_path,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Run is the record of one DAG execution triggered by a single input event.
type Run struct {
	RunID        string          `json:"run_id"`
	ConvID       string          `json:"conv_id"`
	EventType    EventType       `json:"event_type"`
	EventContent string          `json:"event_content"`
	Outcome      RunOutcome      `json:"outcome"`
	Steps        json.RawMessage `json:"steps,omitempty"`
	Error        json.RawMessage `json:"error,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	EndedAt      *time.Time      `json:"ended_at,omitempty"`
}

// StepResult is one completed step inside a run, persisted in Run.Steps.
type StepResult struct {
	Name   string `json:"name"`
	Output string `json:"output,omitempty"`
}

// RunEvent is a step-level trace event for run inspection and replay.
type RunEvent struct {
	EventID string          `json:"event_id"`
	RunID   string          `json:"run_id"`
	Ts      int64           `json:"ts"` // Unix milliseconds
	Type    RunEventType    `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
