package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/domain"
)

// CreateSupplier registers a supplier. IDs are generated when absent.
func (s *Service) CreateSupplier(ctx context.Context, supplier *domain.Supplier) (*domain.Supplier, error) {
	if supplier.Name == "" {
		return nil, &domain.ValidationError{Field: "name", Reason: "name is required"}
	}
	if supplier.SupplierID == "" {
		supplier.SupplierID = "sup_" + uuid.New().String()[:8]
	}
	if supplier.Status == "" {
		supplier.Status = domain.SupplierStatusOpen
	}
	supplier.CreatedAt = time.Now()
	if err := s.store.CreateSupplier(ctx, supplier); err != nil {
		return nil, fmt.Errorf("failed to create supplier: %w", err)
	}
	return supplier, nil
}

func (s *Service) GetSupplier(ctx context.Context, supplierID string) (*domain.Supplier, error) {
	supplier, err := s.store.GetSupplier(ctx, supplierID)
	if err != nil {
		return nil, fmt.Errorf("failed to get supplier: %w", err)
	}
	if supplier == nil {
		return nil, fmt.Errorf("supplier %s: %w", supplierID, domain.ErrNotFound)
	}
	return supplier, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.store.ListSuppliers(ctx)
}

// CreateConversation opens a negotiation thread with an existing supplier.
func (s *Service) CreateConversation(ctx context.Context, conv *domain.Conversation) (*domain.Conversation, error) {
	if conv.SupplierID == "" {
		return nil, &domain.ValidationError{Field: "supplier_id", Reason: "supplier_id is required"}
	}
	supplier, err := s.store.GetSupplier(ctx, conv.SupplierID)
	if err != nil {
		return nil, fmt.Errorf("failed to get supplier: %w", err)
	}
	if supplier == nil {
		return nil, fmt.Errorf("supplier %s: %w", conv.SupplierID, domain.ErrNotFound)
	}

	if conv.ConvID == "" {
		conv.ConvID = "conv_" + uuid.New().String()[:8]
	}
	conv.State = domain.ConversationStateOpen
	now := time.Now()
	conv.CreatedAt = now
	conv.LastUpdated = now
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

func (s *Service) GetConversation(ctx context.Context, convID string) (*domain.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, convID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation %s: %w", convID, domain.ErrNotFound)
	}
	return conv, nil
}

func (s *Service) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	return s.store.ListConversations(ctx)
}

// GetTurns returns the full ordered transcript of a conversation.
func (s *Service) GetTurns(ctx context.Context, convID string) ([]domain.Turn, error) {
	conv, err := s.store.GetConversation(ctx, convID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation %s: %w", convID, domain.ErrNotFound)
	}
	return s.store.GetTurns(ctx, convID)
}

// CreateDocument attaches a document record to a supplier.
func (s *Service) CreateDocument(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	if doc.SupplierID == "" {
		return nil, &domain.ValidationError{Field: "supplier_id", Reason: "supplier_id is required"}
	}
	if doc.DocType == "" {
		return nil, &domain.ValidationError{Field: "doc_type", Reason: "doc_type is required"}
	}
	supplier, err := s.store.GetSupplier(ctx, doc.SupplierID)
	if err != nil {
		return nil, fmt.Errorf("failed to get supplier: %w", err)
	}
	if supplier == nil {
		return nil, fmt.Errorf("supplier %s: %w", doc.SupplierID, domain.ErrNotFound)
	}

	if doc.DocID == "" {
		doc.DocID = "doc_" + uuid.New().String()[:8]
	}
	doc.CreatedAt = time.Now()
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	return doc, nil
}

func (s *Service) ListDocuments(ctx context.Context, supplierID string) ([]domain.Document, error) {
	if supplierID != "" {
		return s.store.ListDocumentsBySupplier(ctx, supplierID, 0)
	}
	return s.store.ListDocuments(ctx)
}

func (s *Service) ListEvaluations(ctx context.Context) ([]domain.Evaluation, error) {
	return s.store.ListEvaluations(ctx)
}

// CreateEvaluation records an externally supplied evaluation of a committed
// turn, through the same validation and idempotency rules the DAG uses. The
// default prompt version applies when the caller omits one.
func (s *Service) CreateEvaluation(ctx context.Context, eval *domain.Evaluation) (*domain.Evaluation, error) {
	if eval.TurnID == "" {
		return nil, &domain.ValidationError{Field: "turn_id", Reason: "turn_id is required"}
	}
	turn, err := s.store.GetTurn(ctx, eval.TurnID)
	if err != nil {
		return nil, fmt.Errorf("failed to get turn: %w", err)
	}
	if turn == nil {
		return nil, fmt.Errorf("turn %s: %w", eval.TurnID, domain.ErrNotFound)
	}

	version := eval.JudgePromptVersion
	if version == "" {
		version = s.config.JudgePromptVersion
	}

	// DAG runs replay idempotently, but a manual submission for an already
	// judged (turn, version) pair is a conflict the caller must see.
	existing, err := s.store.GetEvaluationByTurnVersion(ctx, turn.TurnID, version)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing evaluation: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("turn %s version %s: %w", turn.TurnID, version, domain.ErrDuplicateEvaluation)
	}
	return s.recorder.Record(ctx, turn.ConvID, turn.TurnID, version, eval.Scores, eval.Comments, eval.Blocked)
}
