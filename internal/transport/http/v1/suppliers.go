package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/domain"
)

// SupplierCreateRequest is the request to register a supplier.
type SupplierCreateRequest struct {
	Name         string `json:"name"`
	ContactEmail string `json:"contact_email"`
}

// CreateSupplier registers a new supplier.
// POST /suppliers
func (h *Handler) CreateSupplier(c echo.Context) error {
	ctx := c.Request().Context()

	var req SupplierCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	supplier, err := h.service.CreateSupplier(ctx, &domain.Supplier{
		Name:         req.Name,
		ContactEmail: req.ContactEmail,
	})
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, supplier)
}

// ListSuppliers lists all suppliers.
// GET /suppliers
func (h *Handler) ListSuppliers(c echo.Context) error {
	ctx := c.Request().Context()

	suppliers, err := h.service.ListSuppliers(ctx)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"suppliers": suppliers,
	})
}

// GetSupplier gets a supplier by ID.
// GET /suppliers/:supplier_id
func (h *Handler) GetSupplier(c echo.Context) error {
	ctx := c.Request().Context()
	supplierID := c.Param("supplier_id")

	supplier, err := h.service.GetSupplier(ctx, supplierID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, supplier)
}
