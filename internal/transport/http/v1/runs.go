package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/domain"
)

// RunAgenticDAG runs one input event against a conversation and waits for
// the run to finish. A failed run still returns 200 with its outcome; only
// rejected requests map to error statuses.
// POST /run_agentic_dag
func (h *Handler) RunAgenticDAG(c echo.Context) error {
	ctx := c.Request().Context()

	var req domain.RunRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	resp, err := h.service.RunAgenticDAG(ctx, req)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetRun gets a run record.
// GET /runs/:run_id
func (h *Handler) GetRun(c echo.Context) error {
	ctx := c.Request().Context()
	runID := c.Param("run_id")

	run, err := h.service.GetRun(ctx, runID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, run)
}

// GetRunEvents returns the step-level trace of a run.
// GET /runs/:run_id/events?after_ts=<unix_ms>&limit=<n>
func (h *Handler) GetRunEvents(c echo.Context) error {
	ctx := c.Request().Context()
	runID := c.Param("run_id")

	var afterTs int64
	if v := c.QueryParam("after_ts"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid after_ts"})
		}
		afterTs = parsed
	}
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		}
		limit = parsed
	}

	events, err := h.service.GetRunEvents(ctx, runID, afterTs, limit)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"events": events,
	})
}
