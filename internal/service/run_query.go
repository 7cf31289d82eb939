package service

import (
	"context"
	"fmt"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/domain"
)

// GetRun fetches a run record for inspection.
func (s *Service) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("run %s: %w", runID, domain.ErrNotFound)
	}
	return run, nil
}

// GetRunEvents returns the step-level trace of a run, oldest first. afterTs
// filters to events strictly newer than the given Unix-millisecond timestamp.
func (s *Service) GetRunEvents(ctx context.Context, runID string, afterTs int64, limit int) ([]domain.RunEvent, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("run %s: %w", runID, domain.ErrNotFound)
	}
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	return s.store.GetRunEvents(ctx, runID, afterTs, limit)
}
