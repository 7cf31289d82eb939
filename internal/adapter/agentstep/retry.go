package agentstep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/domain"
)

// RetryConfig bounds the internal retries of an adapter call.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

// DefaultRetryConfig returns the standard bounds: two attempts total.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 2, InitialDelay: 200 * time.Millisecond}
}

// RetryingAdapter wraps an Adapter with bounded retry on transient errors.
// Only GenerateReply and EvaluateTurn are retried; SummarizeSupplier is
// best-effort already and passes through.
type RetryingAdapter struct {
	inner  Adapter
	config RetryConfig
	logger *zap.Logger
}

// NewRetryingAdapter creates a retrying wrapper around the given adapter.
func NewRetryingAdapter(inner Adapter, config RetryConfig, logger *zap.Logger) *RetryingAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &RetryingAdapter{
		inner:  inner,
		config: config,
		logger: logger.With(zap.String("component", "retry_adapter")),
	}
}

var _ Adapter = (*RetryingAdapter)(nil)

// GenerateReply retries transient generation failures up to the bound.
func (a *RetryingAdapter) GenerateReply(ctx context.Context, in ReplyInput) (string, error) {
	var out string
	err := a.retry(ctx, "generate_reply", func() error {
		var err error
		out, err = a.inner.GenerateReply(ctx, in)
		return err
	})
	return out, err
}

// EvaluateTurn retries transient judge failures up to the bound.
func (a *RetryingAdapter) EvaluateTurn(ctx context.Context, in JudgeInput) (*JudgeResult, error) {
	var out *JudgeResult
	err := a.retry(ctx, "evaluate_turn", func() error {
		var err error
		out, err = a.inner.EvaluateTurn(ctx, in)
		return err
	})
	return out, err
}

// SummarizeSupplier passes through without retry.
func (a *RetryingAdapter) SummarizeSupplier(ctx context.Context, history []domain.Turn) (string, error) {
	return a.inner.SummarizeSupplier(ctx, history)
}

func (a *RetryingAdapter) retry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= a.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := a.config.InitialDelay * time.Duration(1<<(attempt-2))
			a.logger.Debug("retrying adapter call",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var agentErr *domain.AgentError
		if errors.As(err, &agentErr) && !agentErr.Retryable() {
			return err
		}
		if !errors.As(err, &agentErr) {
			// Unknown errors are not retried.
			return err
		}

		a.logger.Warn("adapter call failed, will retry",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, a.config.MaxAttempts, lastErr)
}
