package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/domain"
)

// ConversationCreateRequest is the request to open a conversation.
type ConversationCreateRequest struct {
	SupplierID string `json:"supplier_id"`
}

// CreateConversation opens a negotiation thread with a supplier.
// POST /conversations
func (h *Handler) CreateConversation(c echo.Context) error {
	ctx := c.Request().Context()

	var req ConversationCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	conv, err := h.service.CreateConversation(ctx, &domain.Conversation{
		SupplierID: req.SupplierID,
	})
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, conv)
}

// ListConversations lists all conversations.
// GET /conversations
func (h *Handler) ListConversations(c echo.Context) error {
	ctx := c.Request().Context()

	convs, err := h.service.ListConversations(ctx)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversations": convs,
	})
}

// GetConversation gets a conversation by ID.
// GET /conversations/:conv_id
func (h *Handler) GetConversation(c echo.Context) error {
	ctx := c.Request().Context()
	convID := c.Param("conv_id")

	conv, err := h.service.GetConversation(ctx, convID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, conv)
}

// GetTurns returns the ordered transcript of a conversation.
// GET /conversations/:conv_id/turns
func (h *Handler) GetTurns(c echo.Context) error {
	ctx := c.Request().Context()
	convID := c.Param("conv_id")

	turns, err := h.service.GetTurns(ctx, convID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"conv_id": convID,
		"turns":   turns,
	})
}
