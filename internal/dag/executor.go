package dag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/adapter/agentstep"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/domain"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/evaluation"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/repository"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/policy"
)

// Executor drives one input event through its step plan. Steps run strictly
// in order; each step commits its writes before the next starts, so a failed
// run leaves every already-committed write in place. Callers must hold the
// conversation admission lock for the whole call.
type Executor struct {
	store              repository.Store
	adapter            agentstep.Adapter
	recorder           *evaluation.Recorder
	gate               *policy.Engine
	judgePromptVersion string
	logger             *zap.Logger
}

// NewExecutor creates a DAG executor.
func NewExecutor(store repository.Store, adapter agentstep.Adapter, recorder *evaluation.Recorder, gate *policy.Engine, judgePromptVersion string, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		store:              store,
		adapter:            adapter,
		recorder:           recorder,
		gate:               gate,
		judgePromptVersion: judgePromptVersion,
		logger:             logger,
	}
}

// Result is the terminal summary of one run.
type Result struct {
	RunID   string
	Outcome domain.RunOutcome
	State   domain.ConversationState
	Err     error
}

// execution is the mutable per-run scratch state threaded between steps.
type execution struct {
	run      *domain.Run
	conv     *domain.Conversation
	supplier *domain.Supplier
	event    domain.InputEvent
	steps    []domain.StepResult

	supplierTurn *domain.Turn
	agentTurn    *domain.Turn
	draft        string
	judge        *agentstep.JudgeResult
	decision     string
	degraded     bool
}

// Execute resolves the step plan for the event, records a run, and walks the
// plan to completion or first failure. An invalid (state, event) pair fails
// before anything is written and no run record exists for it.
func (e *Executor) Execute(ctx context.Context, conv *domain.Conversation, event domain.InputEvent) (*Result, error) {
	plan, err := PlanFor(conv.State, event.Type)
	if err != nil {
		return nil, err
	}

	// EVALUATING only accepts a replay of the supplier message that stranded
	// the conversation. Fresh content must wait for the pending evaluation to
	// resolve; consuming it here would drop it without ever committing a turn.
	if conv.State == domain.ConversationStateEvaluating && event.Type == domain.EventTypeSupplierReply {
		pending, err := e.latestSupplierTurn(ctx, conv.ConvID)
		if err != nil {
			return nil, err
		}
		if pending == nil || pending.Content != event.Content {
			return nil, fmt.Errorf("%w: new supplier content while evaluation pending in conversation %s", domain.ErrInvalidTransition, conv.ConvID)
		}
	}

	supplier, err := e.store.GetSupplier(ctx, conv.SupplierID)
	if err != nil {
		return nil, fmt.Errorf("failed to load supplier %s: %w", conv.SupplierID, err)
	}
	if supplier == nil {
		return nil, fmt.Errorf("supplier %s: %w", conv.SupplierID, domain.ErrNotFound)
	}

	run := &domain.Run{
		RunID:        "run_" + uuid.New().String()[:8],
		ConvID:       conv.ConvID,
		EventType:    event.Type,
		EventContent: event.Content,
		StartedAt:    time.Now(),
	}
	if err := e.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	ex := &execution{run: run, conv: conv, supplier: supplier, event: event}
	e.recordEvent(ctx, ex, domain.RunEventTypeRunStarted, map[string]any{
		"conv_id":    conv.ConvID,
		"event_type": string(event.Type),
		"state":      string(conv.State),
	})

	log := e.logger.With(zap.String("run_id", run.RunID), zap.String("conv_id", conv.ConvID))
	log.Info("run started", zap.String("event_type", string(event.Type)), zap.String("state", string(conv.State)))

	for _, step := range plan {
		e.recordEvent(ctx, ex, domain.RunEventTypeStepStarted, map[string]any{"step": string(step)})

		output, skipped, stepErr := e.runStep(ctx, ex, step)
		if stepErr != nil {
			log.Warn("step failed", zap.String("step", string(step)), zap.Error(stepErr))
			e.finalizeFailed(ctx, ex, step, stepErr)
			return &Result{RunID: run.RunID, Outcome: domain.RunOutcomeFailed, State: ex.conv.State, Err: stepErr}, nil
		}

		ex.steps = append(ex.steps, domain.StepResult{Name: string(step), Output: output})
		if skipped {
			e.recordEvent(ctx, ex, domain.RunEventTypeStepSkipped, map[string]any{"step": string(step), "reason": output})
		} else {
			e.recordEvent(ctx, ex, domain.RunEventTypeStepDone, map[string]any{"step": string(step)})
		}
	}

	outcome := domain.RunOutcomeSuccess
	if ex.degraded {
		outcome = domain.RunOutcomePartial
	}
	e.finalize(ctx, ex, outcome, nil)
	log.Info("run done", zap.String("outcome", string(outcome)), zap.String("state", string(ex.conv.State)))
	return &Result{RunID: run.RunID, Outcome: outcome, State: ex.conv.State}, nil
}

func (e *Executor) runStep(ctx context.Context, ex *execution, step Step) (output string, skipped bool, err error) {
	switch step {
	case StepAppendSupplierTurn:
		return e.stepAppendSupplierTurn(ctx, ex)
	case StepGenerateReply:
		return e.stepGenerateReply(ctx, ex)
	case StepPersistReply:
		return e.stepPersistReply(ctx, ex)
	case StepEvaluateTurn:
		return e.stepEvaluateTurn(ctx, ex)
	case StepPersistEvaluation:
		return e.stepPersistEvaluation(ctx, ex)
	case StepUpdateSummary:
		return e.stepUpdateSummary(ctx, ex)
	case StepMaybeClose:
		return e.stepMaybeClose(ctx, ex)
	case StepCloseConversation:
		return e.stepCloseConversation(ctx, ex)
	default:
		return "", false, fmt.Errorf("unknown step %q", step)
	}
}

// stepAppendSupplierTurn commits the incoming supplier message as a turn. A
// resubmitted event whose (role, content) fingerprint matches the latest turn
// reuses that turn instead of duplicating it.
func (e *Executor) stepAppendSupplierTurn(ctx context.Context, ex *execution) (string, bool, error) {
	latest, err := e.store.LatestTurn(ctx, ex.conv.ConvID)
	if err != nil {
		return "", false, fmt.Errorf("failed to load latest turn: %w", err)
	}
	if latest != nil && latest.Role == domain.TurnRoleSupplier && latest.Content == ex.event.Content {
		ex.supplierTurn = latest
		if err := e.advanceState(ctx, ex, domain.ConversationStateAwaitingAgent); err != nil {
			return "", false, err
		}
		return "duplicate supplier turn " + latest.TurnID, true, nil
	}

	turn := &domain.Turn{
		TurnID:  "turn_" + uuid.New().String()[:8],
		ConvID:  ex.conv.ConvID,
		Role:    domain.TurnRoleSupplier,
		Content: ex.event.Content,
		SentAt:  time.Now(),
	}
	if err := e.store.AppendTurn(ctx, turn); err != nil {
		return "", false, fmt.Errorf("failed to append supplier turn: %w", err)
	}
	ex.supplierTurn = turn

	if err := e.advanceState(ctx, ex, domain.ConversationStateAwaitingAgent); err != nil {
		return "", false, err
	}
	return turn.TurnID, false, nil
}

// stepGenerateReply drafts the next agent message from the conversation
// history and the supplier's document notes. Nothing is committed here, so a
// failure leaves the conversation resumable in AWAITING_AGENT.
func (e *Executor) stepGenerateReply(ctx context.Context, ex *execution) (string, bool, error) {
	history, err := e.store.GetTurns(ctx, ex.conv.ConvID)
	if err != nil {
		return "", false, fmt.Errorf("failed to load turns: %w", err)
	}

	docs, err := e.store.ListDocumentsBySupplier(ctx, ex.conv.SupplierID, 10)
	if err != nil {
		return "", false, fmt.Errorf("failed to load documents: %w", err)
	}
	notes := make([]string, 0, len(docs))
	for _, d := range docs {
		if d.Summary != "" {
			notes = append(notes, d.DocType+" "+d.Version+": "+d.Summary)
		}
	}

	draft, err := e.adapter.GenerateReply(ctx, agentstep.ReplyInput{
		SupplierName:  ex.supplier.Name,
		History:       history,
		DocumentNotes: notes,
		LatestMessage: ex.event.Content,
	})
	if err != nil {
		return "", false, err
	}
	ex.draft = draft
	return fmt.Sprintf("%d chars", len(draft)), false, nil
}

// stepPersistReply commits the drafted agent turn and moves the conversation
// to EVALUATING.
func (e *Executor) stepPersistReply(ctx context.Context, ex *execution) (string, bool, error) {
	meta, _ := json.Marshal(map[string]string{"run_id": ex.run.RunID})
	turn := &domain.Turn{
		TurnID:  "turn_" + uuid.New().String()[:8],
		ConvID:  ex.conv.ConvID,
		Role:    domain.TurnRoleAgent,
		Content: ex.draft,
		SentAt:  time.Now(),
		Meta:    meta,
	}
	if err := e.store.AppendTurn(ctx, turn); err != nil {
		return "", false, fmt.Errorf("failed to append agent turn: %w", err)
	}
	ex.agentTurn = turn

	if err := e.advanceState(ctx, ex, domain.ConversationStateEvaluating); err != nil {
		return "", false, err
	}
	return turn.TurnID, false, nil
}

// stepEvaluateTurn scores the committed agent turn. On a resumed run the turn
// to judge is the latest committed turn, which in EVALUATING is agent-authored.
func (e *Executor) stepEvaluateTurn(ctx context.Context, ex *execution) (string, bool, error) {
	if ex.agentTurn == nil {
		latest, err := e.store.LatestTurn(ctx, ex.conv.ConvID)
		if err != nil {
			return "", false, fmt.Errorf("failed to load latest turn: %w", err)
		}
		if latest == nil || latest.Role != domain.TurnRoleAgent {
			return "", false, fmt.Errorf("no agent turn to evaluate in conversation %s", ex.conv.ConvID)
		}
		ex.agentTurn = latest
	}

	res, err := e.adapter.EvaluateTurn(ctx, agentstep.JudgeInput{
		Turn:          *ex.agentTurn,
		SupportingCtx: ex.event.Content,
		PromptVersion: e.judgePromptVersion,
	})
	if err != nil {
		return "", false, err
	}
	ex.judge = res
	return fmt.Sprintf("overall %.2f", evaluation.Overall(res.Scores)), false, nil
}

// stepPersistEvaluation asks the delivery gate for a decision, commits the
// evaluation, and advances the conversation. A flag decision records the
// evaluation as blocked rather than discarding the turn.
func (e *Executor) stepPersistEvaluation(ctx context.Context, ex *execution) (string, bool, error) {
	overall := evaluation.Overall(ex.judge.Scores)
	minScore := evaluation.MinScore(ex.judge.Scores)

	decision, err := e.gate.Evaluate(ctx, policy.GateInput{
		Overall:             overall,
		MinScore:            minScore,
		NegotiationComplete: ex.judge.Complete,
	})
	if err != nil {
		return "", false, fmt.Errorf("delivery gate failed: %w", err)
	}
	ex.decision = decision
	delivery := domain.DeliveryStatusSent
	if decision == policy.DecisionFlag {
		delivery = domain.DeliveryStatusFlagged
	}
	e.recordEvent(ctx, ex, domain.RunEventTypeGateDecision, map[string]any{
		"decision":        decision,
		"delivery_status": string(delivery),
		"overall":         overall,
		"min_score":       minScore,
	})

	eval, err := e.recorder.Record(ctx, ex.conv.ConvID, ex.agentTurn.TurnID, e.judgePromptVersion,
		ex.judge.Scores, ex.judge.Comments, decision == policy.DecisionFlag)
	if err != nil {
		return "", false, err
	}

	if decision != policy.DecisionClose {
		if err := e.advanceState(ctx, ex, domain.ConversationStateAwaitingSupplier); err != nil {
			return "", false, err
		}
	}
	return eval.EvalID + " " + decision, false, nil
}

// stepUpdateSummary refreshes the supplier snapshot. Summarization is best
// effort: a failure degrades the run to PARTIAL but never fails it, and the
// contact timestamp still advances.
func (e *Executor) stepUpdateSummary(ctx context.Context, ex *execution) (string, bool, error) {
	history, err := e.store.GetTurns(ctx, ex.conv.ConvID)
	if err != nil {
		return "", false, fmt.Errorf("failed to load turns: %w", err)
	}

	summary, sumErr := e.adapter.SummarizeSupplier(ctx, history)
	if sumErr != nil {
		e.logger.Warn("supplier summarization failed",
			zap.String("run_id", ex.run.RunID),
			zap.String("supplier_id", ex.conv.SupplierID),
			zap.Error(sumErr))
		ex.degraded = true
		summary = ""
	}

	if err := e.store.UpdateSupplierAfterRun(ctx, ex.conv.SupplierID, domain.SupplierStatusInProgress, summary, time.Now()); err != nil {
		return "", false, fmt.Errorf("failed to update supplier: %w", err)
	}
	if sumErr != nil {
		return "summary skipped", true, nil
	}
	return fmt.Sprintf("%d chars", len(summary)), false, nil
}

// stepMaybeClose closes the conversation when the gate decided the
// negotiation has concluded.
func (e *Executor) stepMaybeClose(ctx context.Context, ex *execution) (string, bool, error) {
	if ex.decision != policy.DecisionClose {
		return "open", true, nil
	}
	if err := e.closeConversation(ctx, ex); err != nil {
		return "", false, err
	}
	return "closed", false, nil
}

// stepCloseConversation handles an explicit close event: one SYSTEM turn
// marking the closure, then the terminal transition.
func (e *Executor) stepCloseConversation(ctx context.Context, ex *execution) (string, bool, error) {
	content := ex.event.Content
	if content == "" {
		content = "Conversation closed."
	}
	turn := &domain.Turn{
		TurnID:  "turn_" + uuid.New().String()[:8],
		ConvID:  ex.conv.ConvID,
		Role:    domain.TurnRoleSystem,
		Content: content,
		SentAt:  time.Now(),
	}
	if err := e.store.AppendTurn(ctx, turn); err != nil {
		return "", false, fmt.Errorf("failed to append close turn: %w", err)
	}

	if err := e.closeConversation(ctx, ex); err != nil {
		return "", false, err
	}
	return turn.TurnID, false, nil
}

// latestSupplierTurn returns the most recent supplier-authored turn, or nil.
func (e *Executor) latestSupplierTurn(ctx context.Context, convID string) (*domain.Turn, error) {
	turns, err := e.store.GetTurns(ctx, convID)
	if err != nil {
		return nil, fmt.Errorf("failed to load turns: %w", err)
	}
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == domain.TurnRoleSupplier {
			return &turns[i], nil
		}
	}
	return nil, nil
}

func (e *Executor) closeConversation(ctx context.Context, ex *execution) error {
	if err := e.advanceState(ctx, ex, domain.ConversationStateClosed); err != nil {
		return err
	}
	if err := e.store.UpdateSupplierAfterRun(ctx, ex.conv.SupplierID, domain.SupplierStatusClosed, "", time.Now()); err != nil {
		return fmt.Errorf("failed to close supplier: %w", err)
	}
	return nil
}

// advanceState commits a state transition and traces it. Same-state calls
// are no-ops so resumed plans replay cleanly.
func (e *Executor) advanceState(ctx context.Context, ex *execution, next domain.ConversationState) error {
	if ex.conv.State == next {
		return nil
	}
	now := time.Now()
	if err := e.store.UpdateConversationState(ctx, ex.conv.ConvID, next, now); err != nil {
		return fmt.Errorf("failed to update conversation state: %w", err)
	}
	e.recordEvent(ctx, ex, domain.RunEventTypeStateChanged, map[string]any{
		"from": string(ex.conv.State),
		"to":   string(next),
	})
	ex.conv.State = next
	ex.conv.LastUpdated = now
	return nil
}

func (e *Executor) finalizeFailed(ctx context.Context, ex *execution, step Step, stepErr error) {
	errInfo := map[string]string{
		"step":    string(step),
		"message": stepErr.Error(),
	}
	var agentErr *domain.AgentError
	if errors.As(stepErr, &agentErr) {
		errInfo["code"] = string(agentErr.Code)
	}
	errData, _ := json.Marshal(errInfo)
	e.finalize(ctx, ex, domain.RunOutcomeFailed, errData)
	e.recordEvent(ctx, ex, domain.RunEventTypeRunFailed, map[string]any{
		"step":  string(step),
		"error": stepErr.Error(),
	})
}

func (e *Executor) finalize(ctx context.Context, ex *execution, outcome domain.RunOutcome, errData []byte) {
	steps, _ := json.Marshal(ex.steps)
	if err := e.store.UpdateRunCompleted(ctx, ex.run.RunID, outcome, steps, errData); err != nil {
		e.logger.Error("failed to complete run record", zap.String("run_id", ex.run.RunID), zap.Error(err))
	}
	if outcome != domain.RunOutcomeFailed {
		e.recordEvent(ctx, ex, domain.RunEventTypeRunDone, map[string]any{
			"outcome": string(outcome),
			"state":   string(ex.conv.State),
		})
	}
	ex.run.Outcome = outcome
}

// recordEvent appends a trace event. Tracing never fails a run.
func (e *Executor) recordEvent(ctx context.Context, ex *execution, typ domain.RunEventType, payload map[string]any) {
	data, _ := json.Marshal(payload)
	event := &domain.RunEvent{
		EventID: "evt_" + uuid.New().String()[:8],
		RunID:   ex.run.RunID,
		Ts:      time.Now().UnixMilli(),
		Type:    typ,
		Payload: data,
	}
	if err := e.store.CreateRunEvent(ctx, event); err != nil {
		e.logger.Warn("failed to record run event", zap.String("run_id", ex.run.RunID), zap.Error(err))
	}
}
