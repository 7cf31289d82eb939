package domain

// InputEvent is the event carried by a run request.
type InputEvent struct {
	Type    EventType `json:"type"`
	Content string    `json:"content"`
}

// RunRequest is the body of POST /run_agentic_dag.
type RunRequest struct {
	SupplierID string     `json:"supplier_id"`
	ConvID     string     `json:"conv_id"`
	InputEvent InputEvent `json:"input_event"`
}

// RunResponse is the body returned for any completed run.
type RunResponse struct {
	Status     string            `json:"status"`
	RunID      string            `json:"run_id"`
	RunOutcome RunOutcome        `json:"run_outcome"`
	ConvState  ConversationState `json:"conv_state"`
	Error      string            `json:"error,omitempty"`
}
