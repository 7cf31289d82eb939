package agentstep

import (
	"go.uber.org/zap"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/adapter/llm"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/config"
)

// New selects the adapter variant from configuration and wraps it with the
// configured retry bound. NEGOTIATOR_MODE=MOCK yields the deterministic
// rule-based adapter; anything else talks to the configured LLM backend.
func New(cfg *config.Config, logger *zap.Logger) Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	var inner Adapter
	if cfg.Mode == config.ModeMock {
		logger.Info("mock mode: using rule-based agent adapter")
		inner = NewRuleAdapter()
	} else {
		timeouts := Timeouts{
			Generate:  cfg.GenerateTimeout,
			Judge:     cfg.JudgeTimeout,
			Summarize: cfg.SummarizeTimeout,
		}
		// The shared client must not cap any call below its configured step
		// bound; per-call contexts enforce the individual timeouts.
		client := llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, timeouts.Max())
		inner = NewLLMAdapter(client, cfg.LLMModel, timeouts)
	}

	retry := DefaultRetryConfig()
	retry.MaxAttempts = cfg.AdapterAttempts
	return NewRetryingAdapter(inner, retry, logger)
}
