package evaluation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/domain"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/repository"
)

// Recorder persists judge output tied to a specific turn. It enforces the
// criterion bounds and the (turn, judge prompt version) uniqueness invariant.
type Recorder struct {
	store  repository.Store
	logger *zap.Logger
}

// NewRecorder creates an evaluation recorder.
func NewRecorder(store repository.Store, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: store, logger: logger}
}

// Record validates and commits one evaluation. A duplicate (turn, version)
// call is a no-op returning the existing record. Out-of-range or incomplete
// scores fail with *domain.ValidationError before any write.
func (r *Recorder) Record(ctx context.Context, convID, turnID, judgePromptVersion string, scores map[string]float64, comments string, blocked bool) (*domain.Evaluation, error) {
	if err := ValidateScores(scores); err != nil {
		return nil, err
	}

	if existing, err := r.store.GetEvaluationByTurnVersion(ctx, turnID, judgePromptVersion); err != nil {
		return nil, fmt.Errorf("failed to check existing evaluation: %w", err)
	} else if existing != nil {
		r.logger.Debug("evaluation already recorded",
			zap.String("turn_id", turnID),
			zap.String("judge_prompt_version", judgePromptVersion))
		return existing, nil
	}

	eval := &domain.Evaluation{
		EvalID:             "eval_" + uuid.New().String()[:8],
		ConvID:             convID,
		TurnID:             turnID,
		JudgePromptVersion: judgePromptVersion,
		Scores:             scores,
		Comments:           comments,
		Blocked:            blocked,
		CreatedAt:          time.Now(),
	}
	if err := r.store.CreateEvaluation(ctx, eval); err != nil {
		// A concurrent writer may have landed the same (turn, version) pair
		// between the check and the insert. The unique index rejects the
		// second insert; resolve idempotently.
		if existing, getErr := r.store.GetEvaluationByTurnVersion(ctx, turnID, judgePromptVersion); getErr == nil && existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("failed to record evaluation: %w", err)
	}
	return eval, nil
}

// ValidateScores checks criteria completeness and bounds. Nothing may be
// committed when this fails.
func ValidateScores(scores map[string]float64) error {
	for name := range scores {
		if _, ok := Criteria[name]; !ok {
			return &domain.ValidationError{Field: "scores_json", Reason: fmt.Sprintf("unknown criterion %q", name)}
		}
	}
	for name, bounds := range Criteria {
		score, ok := scores[name]
		if !ok {
			return &domain.ValidationError{Field: "scores_json", Reason: fmt.Sprintf("missing criterion %q", name)}
		}
		if score < bounds.Min || score > bounds.Max {
			return &domain.ValidationError{
				Field:  "scores_json",
				Reason: fmt.Sprintf("criterion %q score %.2f outside [%.0f,%.0f]", name, score, bounds.Min, bounds.Max),
			}
		}
	}
	return nil
}
