package agentstep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/adapter/llm"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/domain"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/evaluation"
)

const drafterPrompt = `You write concise, polite business replies on behalf of the client
in a procurement negotiation. Use information from SUPPLIER_DOCUMENTS if helpful.
Reply only with the message to the supplier.`

const judgePromptV01 = `You are QA. Score AGENT_DRAFT 1-5 for grounding, relevance, tone.
Set negotiation_complete true only if the exchange shows both sides have agreed on final terms.
Respond ONLY JSON:
{"grounding":<number>,"relevance":<number>,"tone":<number>,"negotiation_complete":<bool>,"feedback":"<free text>"}`

const summarizerPrompt = `Summarize the state of this supplier negotiation in 2-3 sentences:
what has been agreed, what is outstanding, and the supplier's latest position.
Reply only with the summary.`

// Timeouts bounds each capability call.
type Timeouts struct {
	Generate  time.Duration
	Judge     time.Duration
	Summarize time.Duration
}

// Max returns the largest configured bound, the floor for any shared
// transport-level timeout.
func (t Timeouts) Max() time.Duration {
	max := t.Generate
	if t.Judge > max {
		max = t.Judge
	}
	if t.Summarize > max {
		max = t.Summarize
	}
	return max
}

// LLMAdapter implements Adapter on top of a chat completion client.
type LLMAdapter struct {
	client   llm.Client
	model    string
	timeouts Timeouts
}

// NewLLMAdapter creates an adapter backed by the given completion client.
func NewLLMAdapter(client llm.Client, model string, timeouts Timeouts) *LLMAdapter {
	return &LLMAdapter{client: client, model: model, timeouts: timeouts}
}

var _ Adapter = (*LLMAdapter)(nil)

// GenerateReply drafts the next agent message from the conversation history
// and the supplier's document summaries.
func (a *LLMAdapter) GenerateReply(ctx context.Context, in ReplyInput) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Supplier: %s\n\n", in.SupplierName)
	if len(in.DocumentNotes) > 0 {
		sb.WriteString("SUPPLIER_DOCUMENTS:\n")
		for _, note := range in.DocumentNotes {
			fmt.Fprintf(&sb, "- %s\n", note)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("CONVERSATION:\n")
	for _, turn := range in.History {
		fmt.Fprintf(&sb, "[%s] %s\n", turn.Role, turn.Content)
	}
	fmt.Fprintf(&sb, "\nSupplier wrote:\n%s\n", in.LatestMessage)

	content, err := a.complete(ctx, a.timeouts.Generate, drafterPrompt, sb.String(), 0.3)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// EvaluateTurn asks the judge model for a strict-JSON rubric score.
func (a *LLMAdapter) EvaluateTurn(ctx context.Context, in JudgeInput) (*JudgeResult, error) {
	user := fmt.Sprintf("AGENT_DRAFT:\n%s\n\nSUPPORTING_INFO:\n%s", in.Turn.Content, in.SupportingCtx)

	content, err := a.complete(ctx, a.timeouts.Judge, judgePromptV01, user, 0)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Grounding float64 `json:"grounding"`
		Relevance float64 `json:"relevance"`
		Tone      float64 `json:"tone"`
		Complete  bool    `json:"negotiation_complete"`
		Feedback  string  `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(extractJSON(content)), &raw); err != nil {
		return nil, &domain.AgentError{Code: domain.AgentErrorMalformed, Message: fmt.Sprintf("judge output not valid JSON: %v", err)}
	}

	return &JudgeResult{
		Scores: map[string]float64{
			evaluation.CriterionGrounding: raw.Grounding,
			evaluation.CriterionRelevance: raw.Relevance,
			evaluation.CriterionTone:      raw.Tone,
		},
		Comments: raw.Feedback,
		Complete: raw.Complete,
	}, nil
}

// SummarizeSupplier condenses the conversation for the supplier record.
func (a *LLMAdapter) SummarizeSupplier(ctx context.Context, history []domain.Turn) (string, error) {
	var sb strings.Builder
	for _, turn := range history {
		fmt.Fprintf(&sb, "[%s] %s\n", turn.Role, turn.Content)
	}
	content, err := a.complete(ctx, a.timeouts.Summarize, summarizerPrompt, sb.String(), 0.2)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func (a *LLMAdapter) complete(ctx context.Context, timeout time.Duration, system, user string, temperature float64) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := a.client.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Model:       a.model,
		Temperature: &temperature,
		Messages: []llm.ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &domain.AgentError{Code: domain.AgentErrorTimeout, Message: err.Error()}
		}
		return "", &domain.AgentError{Code: domain.AgentErrorUnavailable, Message: err.Error()}
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil || resp.Choices[0].Message.Content == "" {
		return "", &domain.AgentError{Code: domain.AgentErrorMalformed, Message: "empty completion"}
	}
	return resp.Choices[0].Message.Content, nil
}

// extractJSON strips any prose around the first JSON object in the output.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
