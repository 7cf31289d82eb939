// Package v1 provides HTTP handlers for the negotiation orchestrator.
package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/domain"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Run API
	e.POST("/run_agentic_dag", h.RunAgenticDAG)
	e.GET("/runs/:run_id", h.GetRun)
	e.GET("/runs/:run_id/events", h.GetRunEvents)

	// Entity API
	e.POST("/suppliers", h.CreateSupplier)
	e.GET("/suppliers", h.ListSuppliers)
	e.GET("/suppliers/:supplier_id", h.GetSupplier)
	e.POST("/conversations", h.CreateConversation)
	e.GET("/conversations", h.ListConversations)
	e.GET("/conversations/:conv_id", h.GetConversation)
	e.GET("/conversations/:conv_id/turns", h.GetTurns)
	e.POST("/documents", h.CreateDocument)
	e.GET("/documents", h.ListDocuments)
	e.POST("/evaluations", h.CreateEvaluation)
	e.GET("/evaluations", h.ListEvaluations)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// errorJSON maps a service error onto the HTTP status contract: 409 for a
// busy conversation or duplicate evaluation, 400 for malformed requests and
// illegal transitions, 404 for missing entities, 500 otherwise.
func errorJSON(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrConversationBusy):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrDuplicateEvaluation):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidTransition):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
