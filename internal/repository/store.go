// Package repository defines the storage interface and implementations.
package repository

import (
	"context"
	"time"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	// Supplier operations
	CreateSupplier(ctx context.Context, supplier *domain.Supplier) error
	GetSupplier(ctx context.Context, supplierID string) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	UpdateSupplierAfterRun(ctx context.Context, supplierID string, status domain.SupplierStatus, summary string, lastContactAt time.Time) error

	// Conversation operations
	CreateConversation(ctx context.Context, conv *domain.Conversation) error
	GetConversation(ctx context.Context, convID string) (*domain.Conversation, error)
	ListConversations(ctx context.Context) ([]domain.Conversation, error)
	UpdateConversationState(ctx context.Context, convID string, state domain.ConversationState, lastUpdated time.Time) error

	// Turn operations. AppendTurn assigns Seq on insert; GetTurns returns
	// turns ordered by (sent_at, seq).
	AppendTurn(ctx context.Context, turn *domain.Turn) error
	GetTurns(ctx context.Context, convID string) ([]domain.Turn, error)
	GetTurn(ctx context.Context, turnID string) (*domain.Turn, error)
	LatestTurn(ctx context.Context, convID string) (*domain.Turn, error)

	// Evaluation operations
	CreateEvaluation(ctx context.Context, eval *domain.Evaluation) error
	GetEvaluationByTurnVersion(ctx context.Context, turnID, judgePromptVersion string) (*domain.Evaluation, error)
	ListEvaluations(ctx context.Context) ([]domain.Evaluation, error)

	// Document operations
	CreateDocument(ctx context.Context, doc *domain.Document) error
	ListDocuments(ctx context.Context) ([]domain.Document, error)
	ListDocumentsBySupplier(ctx context.Context, supplierID string, limit int) ([]domain.Document, error)

	// Run operations
	CreateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	UpdateRunCompleted(ctx context.Context, runID string, outcome domain.RunOutcome, steps []byte, errData []byte) error

	// Run event operations
	CreateRunEvent(ctx context.Context, event *domain.RunEvent) error
	GetRunEvents(ctx context.Context, runID string, afterTs int64, limit int) ([]domain.RunEvent, error)

	// Lifecycle
	Close() error
}
