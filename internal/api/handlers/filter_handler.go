package handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/webrana-mailcore/internal/api/middleware"
	"github.com/welldanyogia/webrana-mailcore/internal/api/response"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"github.com/welldanyogia/webrana-mailcore/internal/services"
)

// FilterHandler handles filter rule HTTP requests
type FilterHandler struct {
	filters services.FilterService
}

// NewFilterHandler creates a new FilterHandler
func NewFilterHandler(filters services.FilterService) *FilterHandler {
	return &FilterHandler{filters: filters}
}

// Create handles POST /api/filters
func (h *FilterHandler) Create(c echo.Context) error {
	var rule models.FilterRule
	if err := bindJSON(c, &rule); err != nil {
		return response.Error(c, err)
	}
	rule.ID = 0

	if err := h.filters.CreateRule(c.Request().Context(), middleware.ScopeFrom(c), &rule); err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, rule)
}

// List handles GET /api/filters. Rules come back in evaluation order.
func (h *FilterHandler) List(c echo.Context) error {
	rules, err := h.filters.ListRules(c.Request().Context(), middleware.ScopeFrom(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, rules)
}

// Get handles GET /api/filters/:id
func (h *FilterHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}

	rule, err := h.filters.GetRule(c.Request().Context(), middleware.ScopeFrom(c), id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, rule)
}

// Update handles PUT /api/filters/:id
func (h *FilterHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}
	var rule models.FilterRule
	if err := bindJSON(c, &rule); err != nil {
		return response.Error(c, err)
	}
	rule.ID = id

	if err := h.filters.UpdateRule(c.Request().Context(), middleware.ScopeFrom(c), &rule); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, rule)
}

// Delete handles DELETE /api/filters/:id
func (h *FilterHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}

	if err := h.filters.DeleteRule(c.Request().Context(), middleware.ScopeFrom(c), id); err != nil {
		return response.Error(c, err)
	}
	return response.NoContent(c)
}

// EnableRequest switches a rule on or off
type EnableRequest struct {
	Enabled bool `json:"enabled"`
}

// Enable handles POST /api/filters/:id/enable
func (h *FilterHandler) Enable(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}
	var req EnableRequest
	if err := bindJSON(c, &req); err != nil {
		return response.Error(c, err)
	}

	if err := h.filters.EnableRule(c.Request().Context(), middleware.ScopeFrom(c), id, req.Enabled); err != nil {
		return response.Error(c, err)
	}
	return response.NoContent(c)
}

// ApplyRequest selects the mailboxes a rule runs over
type ApplyRequest struct {
	MailboxIDs []uint `json:"mailbox_ids"`
}

// Apply handles POST /api/filters/:id/apply. The job report is returned even
// when some mailboxes failed.
func (h *FilterHandler) Apply(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}
	var req ApplyRequest
	if err := bindJSON(c, &req); err != nil {
		return response.Error(c, err)
	}

	report, err := h.filters.ApplyRuleToMailboxes(c.Request().Context(), middleware.ScopeFrom(c), id, req.MailboxIDs)
	if err != nil {
		return response.Error(c, err)
	}
	if report.Failed > 0 || report.TimedOut {
		return response.SuccessWithMessage(c, report, "some mailboxes were not processed")
	}
	return response.Success(c, report)
}

// ApplyToMessage handles POST /api/messages/:id/filters
func (h *FilterHandler) ApplyToMessage(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}

	if err := h.filters.ApplyToMessage(c.Request().Context(), middleware.ScopeFrom(c), id); err != nil {
		return response.Error(c, err)
	}
	return response.NoContent(c)
}
