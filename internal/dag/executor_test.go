package dag

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/adapter/agentstep"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/domain"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/evaluation"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/repository"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/policy"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/tests/helpers"
)

// stubAdapter returns canned step outputs so tests control every branch.
type stubAdapter struct {
	reply      string
	replyErr   error
	judge      *agentstep.JudgeResult
	judgeErr   error
	summary    string
	summaryErr error

	generateCalls atomic.Int32
}

func (s *stubAdapter) GenerateReply(ctx context.Context, in agentstep.ReplyInput) (string, error) {
	s.generateCalls.Add(1)
	if s.replyErr != nil {
		return "", s.replyErr
	}
	return s.reply, nil
}

func (s *stubAdapter) EvaluateTurn(ctx context.Context, in agentstep.JudgeInput) (*agentstep.JudgeResult, error) {
	if s.judgeErr != nil {
		return nil, s.judgeErr
	}
	return s.judge, nil
}

func (s *stubAdapter) SummarizeSupplier(ctx context.Context, history []domain.Turn) (string, error) {
	if s.summaryErr != nil {
		return "", s.summaryErr
	}
	return s.summary, nil
}

func passingJudge() *agentstep.JudgeResult {
	return &agentstep.JudgeResult{
		Scores:   map[string]float64{"grounding": 4.5, "relevance": 4, "tone": 4},
		Comments: "solid draft",
	}
}

func newTestExecutor(t *testing.T, store repository.Store, adapter agentstep.Adapter) *Executor {
	t.Helper()
	gate, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	recorder := evaluation.NewRecorder(store, nil)
	return NewExecutor(store, adapter, recorder, gate, "v0.1", nil)
}

func seedConversation(t *testing.T, store repository.Store, state domain.ConversationState) *domain.Conversation {
	t.Helper()
	ctx := context.Background()
	supplier := &domain.Supplier{
		SupplierID:   "sup_1",
		Name:         "Acme Metals",
		ContactEmail: "sales@acme.test",
		Status:       domain.SupplierStatusOpen,
		CreatedAt:    time.Now(),
	}
	if err := store.CreateSupplier(ctx, supplier); err != nil {
		t.Fatalf("CreateSupplier failed: %v", err)
	}
	conv := &domain.Conversation{
		ConvID:      "conv_1",
		SupplierID:  "sup_1",
		State:       state,
		LastUpdated: time.Now(),
		CreatedAt:   time.Now(),
	}
	if err := store.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	return conv
}

func TestExecuteSupplierReplyHappyPath(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	adapter := &stubAdapter{reply: "We can offer net-45 terms.", judge: passingJudge(), summary: "Supplier pushing for net-60."}
	exec := newTestExecutor(t, db, adapter)
	conv := seedConversation(t, db, domain.ConversationStateAwaitingSupplier)

	res, err := exec.Execute(ctx, conv, domain.InputEvent{Type: domain.EventTypeSupplierReply, Content: "Can you do net-60?"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Outcome != domain.RunOutcomeSuccess {
		t.Fatalf("expected SUCCESS, got %s", res.Outcome)
	}
	if res.State != domain.ConversationStateAwaitingSupplier {
		t.Fatalf("expected AWAITING_SUPPLIER, got %s", res.State)
	}

	turns, err := db.GetTurns(ctx, "conv_1")
	if err != nil {
		t.Fatalf("GetTurns failed: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != domain.TurnRoleSupplier || turns[1].Role != domain.TurnRoleAgent {
		t.Fatalf("unexpected turn roles: %s, %s", turns[0].Role, turns[1].Role)
	}
	if turns[1].Content != "We can offer net-45 terms." {
		t.Fatalf("unexpected agent content: %q", turns[1].Content)
	}

	evals, err := db.ListEvaluations(ctx)
	if err != nil {
		t.Fatalf("ListEvaluations failed: %v", err)
	}
	if len(evals) != 1 {
		t.Fatalf("expected 1 evaluation, got %d", len(evals))
	}
	if evals[0].TurnID != turns[1].TurnID {
		t.Fatalf("evaluation points at %s, want %s", evals[0].TurnID, turns[1].TurnID)
	}
	if evals[0].Blocked {
		t.Fatalf("passing scores should not be blocked")
	}

	supplier, err := db.GetSupplier(ctx, "sup_1")
	if err != nil {
		t.Fatalf("GetSupplier failed: %v", err)
	}
	if supplier.Status != domain.SupplierStatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", supplier.Status)
	}
	if supplier.Summary != "Supplier pushing for net-60." {
		t.Fatalf("unexpected summary: %q", supplier.Summary)
	}
	if supplier.LastContactAt == nil {
		t.Fatalf("expected last_contact_at set")
	}

	run, err := db.GetRun(ctx, res.RunID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Outcome != domain.RunOutcomeSuccess || run.EndedAt == nil {
		t.Fatalf("run not completed: %+v", run)
	}

	events, err := db.GetRunEvents(ctx, res.RunID, 0, 100)
	if err != nil {
		t.Fatalf("GetRunEvents failed: %v", err)
	}
	var sawStart, sawGate, sawDone bool
	for _, ev := range events {
		switch ev.Type {
		case domain.RunEventTypeRunStarted:
			sawStart = true
		case domain.RunEventTypeGateDecision:
			sawGate = true
		case domain.RunEventTypeRunDone:
			sawDone = true
		}
	}
	if !sawStart || !sawGate || !sawDone {
		t.Fatalf("missing trace events: start=%v gate=%v done=%v", sawStart, sawGate, sawDone)
	}
}

func TestExecuteDedupesResubmittedSupplierTurn(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	adapter := &stubAdapter{reply: "Noted, we will confirm pricing.", judge: passingJudge(), summary: "s"}
	exec := newTestExecutor(t, db, adapter)
	conv := seedConversation(t, db, domain.ConversationStateAwaitingAgent)

	// A prior run committed the supplier turn and then failed before the
	// reply; the retried event must not duplicate it.
	seed := &domain.Turn{TurnID: "turn_seed", ConvID: "conv_1", Role: domain.TurnRoleSupplier, Content: "Can you do net-60?", SentAt: time.Now()}
	if err := db.AppendTurn(ctx, seed); err != nil {
		t.Fatalf("AppendTurn failed: %v", err)
	}

	res, err := exec.Execute(ctx, conv, domain.InputEvent{Type: domain.EventTypeSupplierReply, Content: "Can you do net-60?"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Outcome != domain.RunOutcomeSuccess {
		t.Fatalf("expected SUCCESS, got %s", res.Outcome)
	}

	turns, err := db.GetTurns(ctx, "conv_1")
	if err != nil {
		t.Fatalf("GetTurns failed: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns after dedupe, got %d", len(turns))
	}
	if turns[0].TurnID != "turn_seed" {
		t.Fatalf("supplier turn replaced instead of reused: %s", turns[0].TurnID)
	}
}

func TestExecuteGenerateFailureLeavesCommittedWrites(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	adapter := &stubAdapter{replyErr: &domain.AgentError{Code: domain.AgentErrorTimeout, Message: "generation timed out"}}
	exec := newTestExecutor(t, db, adapter)
	conv := seedConversation(t, db, domain.ConversationStateAwaitingSupplier)

	res, err := exec.Execute(ctx, conv, domain.InputEvent{Type: domain.EventTypeSupplierReply, Content: "Can you do net-60?"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Outcome != domain.RunOutcomeFailed {
		t.Fatalf("expected FAILED, got %s", res.Outcome)
	}
	if res.State != domain.ConversationStateAwaitingAgent {
		t.Fatalf("expected AWAITING_AGENT, got %s", res.State)
	}
	if res.Err == nil {
		t.Fatalf("expected step error on failed run")
	}

	// The supplier turn committed before the failing step stays.
	turns, err := db.GetTurns(ctx, "conv_1")
	if err != nil {
		t.Fatalf("GetTurns failed: %v", err)
	}
	if len(turns) != 1 || turns[0].Role != domain.TurnRoleSupplier {
		t.Fatalf("expected the supplier turn to survive, got %d turns", len(turns))
	}

	evals, err := db.ListEvaluations(ctx)
	if err != nil {
		t.Fatalf("ListEvaluations failed: %v", err)
	}
	if len(evals) != 0 {
		t.Fatalf("expected no evaluations, got %d", len(evals))
	}

	run, err := db.GetRun(ctx, res.RunID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Outcome != domain.RunOutcomeFailed || len(run.Error) == 0 {
		t.Fatalf("run record missing failure detail: %+v", run)
	}
}

func TestExecuteClosedConversationRejectsEvent(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	exec := newTestExecutor(t, db, &stubAdapter{})
	conv := seedConversation(t, db, domain.ConversationStateClosed)

	_, err := exec.Execute(ctx, conv, domain.InputEvent{Type: domain.EventTypeSupplierReply, Content: "hello again"})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	turns, err := db.GetTurns(ctx, "conv_1")
	if err != nil {
		t.Fatalf("GetTurns failed: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("rejected event must write nothing, got %d turns", len(turns))
	}
}

func TestExecuteCloseEvent(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	exec := newTestExecutor(t, db, &stubAdapter{})
	conv := seedConversation(t, db, domain.ConversationStateAwaitingSupplier)

	res, err := exec.Execute(ctx, conv, domain.InputEvent{Type: domain.EventTypeClose, Content: "Deal signed offline."})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Outcome != domain.RunOutcomeSuccess || res.State != domain.ConversationStateClosed {
		t.Fatalf("unexpected result: %+v", res)
	}

	turns, err := db.GetTurns(ctx, "conv_1")
	if err != nil {
		t.Fatalf("GetTurns failed: %v", err)
	}
	if len(turns) != 1 || turns[0].Role != domain.TurnRoleSystem {
		t.Fatalf("expected one SYSTEM turn, got %+v", turns)
	}

	supplier, err := db.GetSupplier(ctx, "sup_1")
	if err != nil {
		t.Fatalf("GetSupplier failed: %v", err)
	}
	if supplier.Status != domain.SupplierStatusClosed {
		t.Fatalf("expected supplier CLOSED, got %s", supplier.Status)
	}
}

func TestExecuteGateClosesCompletedNegotiation(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	judge := passingJudge()
	judge.Complete = true
	adapter := &stubAdapter{reply: "Confirming the agreed terms.", judge: judge, summary: "Agreement reached at net-45."}
	exec := newTestExecutor(t, db, adapter)
	conv := seedConversation(t, db, domain.ConversationStateAwaitingSupplier)

	res, err := exec.Execute(ctx, conv, domain.InputEvent{Type: domain.EventTypeSupplierReply, Content: "We accept net-45."})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.State != domain.ConversationStateClosed {
		t.Fatalf("expected CLOSED, got %s", res.State)
	}

	supplier, err := db.GetSupplier(ctx, "sup_1")
	if err != nil {
		t.Fatalf("GetSupplier failed: %v", err)
	}
	if supplier.Status != domain.SupplierStatusClosed {
		t.Fatalf("expected supplier CLOSED, got %s", supplier.Status)
	}
}

func TestExecuteFlagsWeakDraft(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	adapter := &stubAdapter{
		reply:   "ok",
		judge:   &agentstep.JudgeResult{Scores: map[string]float64{"grounding": 2, "relevance": 3, "tone": 4}},
		summary: "s",
	}
	exec := newTestExecutor(t, db, adapter)
	conv := seedConversation(t, db, domain.ConversationStateAwaitingSupplier)

	res, err := exec.Execute(ctx, conv, domain.InputEvent{Type: domain.EventTypeSupplierReply, Content: "Can you do net-60?"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Outcome != domain.RunOutcomeSuccess {
		t.Fatalf("expected SUCCESS, got %s", res.Outcome)
	}
	if res.State != domain.ConversationStateAwaitingSupplier {
		t.Fatalf("expected AWAITING_SUPPLIER, got %s", res.State)
	}

	evals, err := db.ListEvaluations(ctx)
	if err != nil {
		t.Fatalf("ListEvaluations failed: %v", err)
	}
	if len(evals) != 1 || !evals[0].Blocked {
		t.Fatalf("expected one blocked evaluation, got %+v", evals)
	}
}

func TestExecuteSummaryFailureDegradesToPartial(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	adapter := &stubAdapter{
		reply:      "Counter offer attached.",
		judge:      passingJudge(),
		summaryErr: &domain.AgentError{Code: domain.AgentErrorUnavailable, Message: "summarizer down"},
	}
	exec := newTestExecutor(t, db, adapter)
	conv := seedConversation(t, db, domain.ConversationStateAwaitingSupplier)

	res, err := exec.Execute(ctx, conv, domain.InputEvent{Type: domain.EventTypeSupplierReply, Content: "Can you do net-60?"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Outcome != domain.RunOutcomePartial {
		t.Fatalf("expected PARTIAL, got %s", res.Outcome)
	}

	// Evaluation committed before the degraded step stays committed.
	evals, err := db.ListEvaluations(ctx)
	if err != nil {
		t.Fatalf("ListEvaluations failed: %v", err)
	}
	if len(evals) != 1 {
		t.Fatalf("expected 1 evaluation, got %d", len(evals))
	}

	// Contact bookkeeping still advances without a summary.
	supplier, err := db.GetSupplier(ctx, "sup_1")
	if err != nil {
		t.Fatalf("GetSupplier failed: %v", err)
	}
	if supplier.LastContactAt == nil {
		t.Fatalf("expected last_contact_at set")
	}
	if supplier.Summary != "" {
		t.Fatalf("expected summary unchanged, got %q", supplier.Summary)
	}
}

func TestExecuteOutOfBoundsScoresFailBeforeWrite(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	adapter := &stubAdapter{
		reply: "ok",
		judge: &agentstep.JudgeResult{Scores: map[string]float64{"grounding": 6, "relevance": 4, "tone": 4}},
	}
	exec := newTestExecutor(t, db, adapter)
	conv := seedConversation(t, db, domain.ConversationStateAwaitingSupplier)

	res, err := exec.Execute(ctx, conv, domain.InputEvent{Type: domain.EventTypeSupplierReply, Content: "Can you do net-60?"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Outcome != domain.RunOutcomeFailed {
		t.Fatalf("expected FAILED, got %s", res.Outcome)
	}
	if res.State != domain.ConversationStateEvaluating {
		t.Fatalf("expected EVALUATING, got %s", res.State)
	}

	var verr *domain.ValidationError
	if !errors.As(res.Err, &verr) {
		t.Fatalf("expected validation error, got %v", res.Err)
	}

	evals, err := db.ListEvaluations(ctx)
	if err != nil {
		t.Fatalf("ListEvaluations failed: %v", err)
	}
	if len(evals) != 0 {
		t.Fatalf("out-of-bounds scores must not be written, got %d", len(evals))
	}
}

func TestExecuteEvaluatingRejectsNewSupplierContent(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	adapter := &stubAdapter{judge: passingJudge(), summary: "s"}
	exec := newTestExecutor(t, db, adapter)
	conv := seedConversation(t, db, domain.ConversationStateEvaluating)

	for _, turn := range []*domain.Turn{
		{TurnID: "turn_s1", ConvID: "conv_1", Role: domain.TurnRoleSupplier, Content: "Can you do net-60?", SentAt: time.Now()},
		{TurnID: "turn_a1", ConvID: "conv_1", Role: domain.TurnRoleAgent, Content: "We can offer net-45.", SentAt: time.Now().Add(time.Millisecond)},
	} {
		if err := db.AppendTurn(ctx, turn); err != nil {
			t.Fatalf("AppendTurn failed: %v", err)
		}
	}

	// A message that is not a replay of the stranded one must be rejected,
	// not silently folded into the pending evaluation.
	_, err := exec.Execute(ctx, conv, domain.InputEvent{Type: domain.EventTypeSupplierReply, Content: "Actually, make it net-90."})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	turns, err := db.GetTurns(ctx, "conv_1")
	if err != nil {
		t.Fatalf("GetTurns failed: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("rejected event must write nothing, got %d turns", len(turns))
	}
	evals, err := db.ListEvaluations(ctx)
	if err != nil {
		t.Fatalf("ListEvaluations failed: %v", err)
	}
	if len(evals) != 0 {
		t.Fatalf("rejected event must not evaluate, got %d", len(evals))
	}
}

func TestExecuteConcurrentRunsKeepTurnOrder(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	adapter := &stubAdapter{reply: "We can offer net-45 terms.", judge: passingJudge(), summary: "s"}
	exec := newTestExecutor(t, db, adapter)

	// Runs on distinct conversations may execute in parallel; each
	// conversation's history must stay ordered by (sent_at, seq).
	const convs = 8
	for i := 0; i < convs; i++ {
		supplier := &domain.Supplier{SupplierID: fmt.Sprintf("sup_p%d", i), Name: "Vendor", ContactEmail: "v@vendor.test", Status: domain.SupplierStatusOpen, CreatedAt: time.Now()}
		if err := db.CreateSupplier(ctx, supplier); err != nil {
			t.Fatalf("CreateSupplier failed: %v", err)
		}
		conv := &domain.Conversation{ConvID: fmt.Sprintf("conv_p%d", i), SupplierID: supplier.SupplierID, State: domain.ConversationStateAwaitingSupplier, LastUpdated: time.Now(), CreatedAt: time.Now()}
		if err := db.CreateConversation(ctx, conv); err != nil {
			t.Fatalf("CreateConversation failed: %v", err)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, convs)
	for i := 0; i < convs; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			conv, err := db.GetConversation(ctx, fmt.Sprintf("conv_p%d", n))
			if err != nil {
				errs <- err
				return
			}
			res, err := exec.Execute(ctx, conv, domain.InputEvent{Type: domain.EventTypeSupplierReply, Content: fmt.Sprintf("Quote request %d", n)})
			if err != nil {
				errs <- err
				return
			}
			if res.Outcome != domain.RunOutcomeSuccess {
				errs <- fmt.Errorf("conv_p%d: expected SUCCESS, got %s", n, res.Outcome)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent run failed: %v", err)
	}

	for i := 0; i < convs; i++ {
		convID := fmt.Sprintf("conv_p%d", i)
		turns, err := db.GetTurns(ctx, convID)
		if err != nil {
			t.Fatalf("GetTurns(%s) failed: %v", convID, err)
		}
		if len(turns) != 2 {
			t.Fatalf("%s: expected 2 turns, got %d", convID, len(turns))
		}
		if turns[0].Role != domain.TurnRoleSupplier || turns[1].Role != domain.TurnRoleAgent {
			t.Fatalf("%s: roles out of order: %s, %s", convID, turns[0].Role, turns[1].Role)
		}
		if turns[0].Content != fmt.Sprintf("Quote request %d", i) {
			t.Fatalf("%s: supplier turn leaked across conversations: %q", convID, turns[0].Content)
		}
		if turns[1].Seq <= turns[0].Seq {
			t.Fatalf("%s: seq not monotone: %d, %d", convID, turns[0].Seq, turns[1].Seq)
		}
		if turns[1].SentAt.Before(turns[0].SentAt) {
			t.Fatalf("%s: agent turn sent before supplier turn", convID)
		}
	}
}

func TestExecuteResumesEvaluatingConversation(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	adapter := &stubAdapter{judge: passingJudge(), summary: "s"}
	exec := newTestExecutor(t, db, adapter)
	conv := seedConversation(t, db, domain.ConversationStateEvaluating)

	// Both turns exist from the interrupted run; only the judge is pending.
	for _, turn := range []*domain.Turn{
		{TurnID: "turn_s1", ConvID: "conv_1", Role: domain.TurnRoleSupplier, Content: "Can you do net-60?", SentAt: time.Now()},
		{TurnID: "turn_a1", ConvID: "conv_1", Role: domain.TurnRoleAgent, Content: "We can offer net-45.", SentAt: time.Now().Add(time.Millisecond)},
	} {
		if err := db.AppendTurn(ctx, turn); err != nil {
			t.Fatalf("AppendTurn failed: %v", err)
		}
	}

	res, err := exec.Execute(ctx, conv, domain.InputEvent{Type: domain.EventTypeSupplierReply, Content: "Can you do net-60?"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Outcome != domain.RunOutcomeSuccess {
		t.Fatalf("expected SUCCESS, got %s", res.Outcome)
	}
	if res.State != domain.ConversationStateAwaitingSupplier {
		t.Fatalf("expected AWAITING_SUPPLIER, got %s", res.State)
	}
	if calls := adapter.generateCalls.Load(); calls != 0 {
		t.Fatalf("resume must not regenerate the reply, got %d calls", calls)
	}

	evals, err := db.ListEvaluations(ctx)
	if err != nil {
		t.Fatalf("ListEvaluations failed: %v", err)
	}
	if len(evals) != 1 || evals[0].TurnID != "turn_a1" {
		t.Fatalf("expected evaluation of turn_a1, got %+v", evals)
	}

	turns, err := db.GetTurns(ctx, "conv_1")
	if err != nil {
		t.Fatalf("GetTurns failed: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("resume must not append turns, got %d", len(turns))
	}
}
