// Package policy decides whether an evaluated agent reply may be delivered.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Decisions returned by the delivery gate.
const (
	DecisionSend  = "send"
	DecisionFlag  = "flag"
	DecisionClose = "close"
)

// GateInput is the evaluation summary the gate decides on.
type GateInput struct {
	Overall             float64 `json:"overall"`
	MinScore            float64 `json:"min_score"`
	NegotiationComplete bool    `json:"negotiation_complete"`
}

// Engine is the OPA delivery-gate engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new gate engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.delivery_gate.decision"),
		rego.Module("delivery_gate.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate returns send, flag, or close for the given evaluation summary.
func (e *Engine) Evaluate(ctx context.Context, input GateInput) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionSend, nil
	}

	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("policy returned non-string decision")
}

// DefaultPolicy mirrors the judge pass rule: flag drafts whose overall mean
// is below 4 or whose weakest criterion is below 3; close once the judge
// reads the negotiation as concluded with a solid draft.
const DefaultPolicy = `
package delivery_gate

default decision = "send"

decision = "flag" {
	input.overall < 4
}

decision = "flag" {
	input.min_score < 3
}

decision = "close" {
	input.negotiation_complete
	input.overall >= 4
	input.min_score >= 3
}
`
