// Package dag routes input events through the fixed graph of agent steps.
package dag

import (
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/domain"
)

// Step names one node of the per-transition pipeline.
type Step string

const (
	StepAppendSupplierTurn Step = "append_supplier_turn"
	StepGenerateReply      Step = "generate_reply"
	StepPersistReply       Step = "persist_reply"
	StepEvaluateTurn       Step = "evaluate_turn"
	StepPersistEvaluation  Step = "persist_evaluation"
	StepUpdateSummary      Step = "update_summary"
	StepMaybeClose         Step = "maybe_close"
	StepCloseConversation  Step = "close_conversation"
)

// replyPlan is the full pipeline for a supplier message: commit the supplier
// turn, draft and commit the agent reply, judge it, record the evaluation,
// refresh the supplier summary, and close if the gate says so.
var replyPlan = []Step{
	StepAppendSupplierTurn,
	StepGenerateReply,
	StepPersistReply,
	StepEvaluateTurn,
	StepPersistEvaluation,
	StepUpdateSummary,
	StepMaybeClose,
}

// resumeEvaluationPlan picks up a conversation stranded in EVALUATING by a
// failed judge step. The agent turn is already committed.
var resumeEvaluationPlan = []Step{
	StepEvaluateTurn,
	StepPersistEvaluation,
	StepUpdateSummary,
	StepMaybeClose,
}

var closePlan = []Step{StepCloseConversation}

// PlanFor resolves the ordered step list for an event arriving in the given
// conversation state. The graph is a lookup table, not a user-defined DAG.
// CLOSED rejects everything.
func PlanFor(state domain.ConversationState, event domain.EventType) ([]Step, error) {
	if state == domain.ConversationStateClosed {
		return nil, domain.NewInvalidTransition(state, event)
	}

	switch event {
	case domain.EventTypeSupplierReply:
		switch state {
		case domain.ConversationStateOpen,
			domain.ConversationStateAwaitingSupplier,
			// AWAITING_AGENT means a previous run failed before committing
			// the reply; the same plan resumes it, deduping the supplier
			// turn by fingerprint.
			domain.ConversationStateAwaitingAgent:
			return replyPlan, nil
		case domain.ConversationStateEvaluating:
			// The executor verifies the event replays the stranded supplier
			// message; fresh content is rejected, not consumed.
			return resumeEvaluationPlan, nil
		}
	case domain.EventTypeClose:
		return closePlan, nil
	}

	return nil, domain.NewInvalidTransition(state, event)
}
