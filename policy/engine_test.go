package policy

import (
	"context"
	"testing"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(context.Background(), DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func TestGateSendsPassingDraft(t *testing.T) {
	e := newTestEngine(t)

	decision, err := e.Evaluate(context.Background(), GateInput{Overall: 4.2, MinScore: 3.5})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if decision != DecisionSend {
		t.Fatalf("expected send, got %s", decision)
	}
}

func TestGateFlagsLowOverall(t *testing.T) {
	e := newTestEngine(t)

	decision, err := e.Evaluate(context.Background(), GateInput{Overall: 3.9, MinScore: 3.5})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if decision != DecisionFlag {
		t.Fatalf("expected flag, got %s", decision)
	}
}

func TestGateFlagsWeakCriterion(t *testing.T) {
	e := newTestEngine(t)

	decision, err := e.Evaluate(context.Background(), GateInput{Overall: 4.5, MinScore: 2.5})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if decision != DecisionFlag {
		t.Fatalf("expected flag, got %s", decision)
	}
}

func TestGateClosesCompletedNegotiation(t *testing.T) {
	e := newTestEngine(t)

	decision, err := e.Evaluate(context.Background(), GateInput{Overall: 4.5, MinScore: 4, NegotiationComplete: true})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if decision != DecisionClose {
		t.Fatalf("expected close, got %s", decision)
	}
}

func TestGateFlagsCompletedButWeakDraft(t *testing.T) {
	e := newTestEngine(t)

	// A concluded negotiation with a weak draft still goes to review.
	decision, err := e.Evaluate(context.Background(), GateInput{Overall: 3.5, MinScore: 2, NegotiationComplete: true})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if decision != DecisionFlag {
		t.Fatalf("expected flag, got %s", decision)
	}
}
