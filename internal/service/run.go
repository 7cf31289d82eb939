package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/domain"
)

// RunAgenticDAG executes one input event against a conversation. The call is
// synchronous: the response describes a finished run, including failed ones.
// A second concurrent call for the same conversation is rejected with
// domain.ErrConversationBusy before any write.
func (s *Service) RunAgenticDAG(ctx context.Context, req domain.RunRequest) (*domain.RunResponse, error) {
	if err := validateRunRequest(req); err != nil {
		return nil, err
	}

	conv, err := s.resolveConversation(ctx, req)
	if err != nil {
		return nil, err
	}

	handle, err := s.admission.Admit(conv.ConvID)
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	// Re-read under the lock; a run that finished between resolve and admit
	// may have advanced the state.
	conv, err = s.store.GetConversation(ctx, conv.ConvID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation %s: %w", req.ConvID, domain.ErrNotFound)
	}

	result, err := s.executor.Execute(ctx, conv, req.InputEvent)
	if err != nil {
		return nil, err
	}

	resp := &domain.RunResponse{
		Status:     "completed",
		RunID:      result.RunID,
		RunOutcome: result.Outcome,
		ConvState:  result.State,
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	return resp, nil
}

func validateRunRequest(req domain.RunRequest) error {
	if req.ConvID == "" && req.SupplierID == "" {
		return &domain.ValidationError{Field: "conv_id", Reason: "conv_id or supplier_id is required"}
	}
	switch req.InputEvent.Type {
	case domain.EventTypeSupplierReply:
		if req.InputEvent.Content == "" {
			return &domain.ValidationError{Field: "input_event.content", Reason: "content is required for SUPPLIER_REPLY"}
		}
	case domain.EventTypeClose:
	case "":
		return &domain.ValidationError{Field: "input_event.type", Reason: "type is required"}
	default:
		return &domain.ValidationError{Field: "input_event.type", Reason: fmt.Sprintf("unknown event type %q", req.InputEvent.Type)}
	}
	return nil
}

// resolveConversation loads the target conversation, or opens one when the
// request names a supplier without an existing thread.
func (s *Service) resolveConversation(ctx context.Context, req domain.RunRequest) (*domain.Conversation, error) {
	if req.ConvID != "" {
		conv, err := s.store.GetConversation(ctx, req.ConvID)
		if err != nil {
			return nil, fmt.Errorf("failed to load conversation: %w", err)
		}
		if conv == nil {
			return nil, fmt.Errorf("conversation %s: %w", req.ConvID, domain.ErrNotFound)
		}
		if req.SupplierID != "" && conv.SupplierID != req.SupplierID {
			return nil, &domain.ValidationError{Field: "supplier_id", Reason: "conversation belongs to a different supplier"}
		}
		return conv, nil
	}

	supplier, err := s.store.GetSupplier(ctx, req.SupplierID)
	if err != nil {
		return nil, fmt.Errorf("failed to load supplier: %w", err)
	}
	if supplier == nil {
		return nil, fmt.Errorf("supplier %s: %w", req.SupplierID, domain.ErrNotFound)
	}

	now := time.Now()
	conv := &domain.Conversation{
		ConvID:      "conv_" + uuid.New().String()[:8],
		SupplierID:  req.SupplierID,
		State:       domain.ConversationStateOpen,
		LastUpdated: now,
		CreatedAt:   now,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	s.logger.Info("conversation opened", zap.String("conv_id", conv.ConvID), zap.String("supplier_id", req.SupplierID))
	return conv, nil
}
