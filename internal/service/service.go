// Package service implements the orchestrator's business operations.
package service

import (
	"go.uber.org/zap"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/admission"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/config"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/dag"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/evaluation"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/repository"
)

type Service struct {
	store     repository.Store
	admission *admission.Controller
	executor  *dag.Executor
	recorder  *evaluation.Recorder
	config    *config.Config
	logger    *zap.Logger
}

func New(store repository.Store, admission *admission.Controller, executor *dag.Executor, recorder *evaluation.Recorder, cfg *config.Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		admission: admission,
		executor:  executor,
		recorder:  recorder,
		config:    cfg,
		logger:    logger,
	}
}
