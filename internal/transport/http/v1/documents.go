package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/domain"
)

// DocumentCreateRequest is the request to attach a document to a supplier.
type DocumentCreateRequest struct {
	SupplierID  string `json:"supplier_id"`
	DocType     string `json:"doc_type"`
	Version     string `json:"version"`
	DocDate     string `json:"doc_date,omitempty"`
	Summary     string `json:"summary,omitempty"`
	StoragePath string `json:"storage_path,omitempty"`
}

// CreateDocument attaches a document record to a supplier.
// POST /documents
func (h *Handler) CreateDocument(c echo.Context) error {
	ctx := c.Request().Context()

	var req DocumentCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	doc, err := h.service.CreateDocument(ctx, &domain.Document{
		SupplierID:  req.SupplierID,
		DocType:     req.DocType,
		Version:     req.Version,
		DocDate:     req.DocDate,
		Summary:     req.Summary,
		StoragePath: req.StoragePath,
	})
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, doc)
}

// ListDocuments lists documents, optionally filtered by supplier.
// GET /documents?supplier_id=<id>
func (h *Handler) ListDocuments(c echo.Context) error {
	ctx := c.Request().Context()

	docs, err := h.service.ListDocuments(ctx, c.QueryParam("supplier_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"documents": docs,
	})
}

// EvaluationCreateRequest is the request to record an evaluation of a turn.
type EvaluationCreateRequest struct {
	TurnID             string             `json:"turn_id"`
	JudgePromptVersion string             `json:"judge_prompt_version,omitempty"`
	Scores             map[string]float64 `json:"scores_json"`
	Comments           string             `json:"comments,omitempty"`
	Blocked            bool               `json:"blocked,omitempty"`
}

// CreateEvaluation records an evaluation for a committed turn.
// POST /evaluations
func (h *Handler) CreateEvaluation(c echo.Context) error {
	ctx := c.Request().Context()

	var req EvaluationCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	eval, err := h.service.CreateEvaluation(ctx, &domain.Evaluation{
		TurnID:             req.TurnID,
		JudgePromptVersion: req.JudgePromptVersion,
		Scores:             req.Scores,
		Comments:           req.Comments,
		Blocked:            req.Blocked,
	})
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, eval)
}

// ListEvaluations lists all committed evaluations.
// GET /evaluations
func (h *Handler) ListEvaluations(c echo.Context) error {
	ctx := c.Request().Context()

	evals, err := h.service.ListEvaluations(ctx)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"evaluations": evals,
	})
}
