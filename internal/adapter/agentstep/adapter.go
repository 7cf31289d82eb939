// Package agentstep provides the agent capabilities invoked by DAG steps.
package agentstep

import (
	"context"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/domain"
)

// ReplyInput is the context handed to reply generation.
type ReplyInput struct {
	SupplierName  string
	History       []domain.Turn
	DocumentNotes []string
	LatestMessage string
}

// JudgeInput is the context handed to turn evaluation.
type JudgeInput struct {
	Turn          domain.Turn
	SupportingCtx string
	PromptVersion string
}

// JudgeResult carries the judge's scores and free-text feedback. Complete is
// set when the judge reads the exchange as a concluded negotiation.
type JudgeResult struct {
	Scores   map[string]float64
	Comments string
	Complete bool
}

// Adapter is the pluggable agent capability behind the DAG executor.
// Implementations bound their own latency; an exceeded bound surfaces as
// *domain.AgentError with code timeout.
type Adapter interface {
	// GenerateReply produces the next AGENT-role turn content.
	GenerateReply(ctx context.Context, in ReplyInput) (string, error)

	// EvaluateTurn scores a turn against the fixed criteria set. For a given
	// (turn content, prompt version) a conforming implementation used in
	// tests must be deterministic.
	EvaluateTurn(ctx context.Context, in JudgeInput) (*JudgeResult, error)

	// SummarizeSupplier condenses the conversation into a supplier summary.
	// Best effort: callers treat failure as non-fatal.
	SummarizeSupplier(ctx context.Context, history []domain.Turn) (string, error)
}
