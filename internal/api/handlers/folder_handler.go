package handlers

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/webrana-mailcore/internal/api/middleware"
	"github.com/welldanyogia/webrana-mailcore/internal/api/response"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"github.com/welldanyogia/webrana-mailcore/internal/services"
)

// CounterReader serves the stored folder counters of a scope
type CounterReader interface {
	GetFolderCounters(ctx context.Context, scope models.Scope) (*models.FolderCounters, error)
}

// FolderHandler handles folder counter HTTP requests
type FolderHandler struct {
	counters    CounterReader
	maintenance services.MaintenanceService
}

// NewFolderHandler creates a new FolderHandler
func NewFolderHandler(counters CounterReader, maintenance services.MaintenanceService) *FolderHandler {
	return &FolderHandler{counters: counters, maintenance: maintenance}
}

// Counters handles GET /api/folders/counters
func (h *FolderHandler) Counters(c echo.Context) error {
	counters, err := h.counters.GetFolderCounters(c.Request().Context(), middleware.ScopeFrom(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, counters)
}

// Recalculate handles POST /api/folders/recalculate. The counters are
// rebuilt from the messages and returned.
func (h *FolderHandler) Recalculate(c echo.Context) error {
	ctx := c.Request().Context()
	scope := middleware.ScopeFrom(c)

	if err := h.maintenance.RecalculateScope(ctx, scope); err != nil {
		return response.Error(c, err)
	}

	counters, err := h.counters.GetFolderCounters(ctx, scope)
	if err != nil {
		return response.Error(c, err)
	}
	return response.SuccessWithMessage(c, counters, "counters recalculated")
}
