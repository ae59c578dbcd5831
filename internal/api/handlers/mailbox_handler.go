package handlers

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/webrana-mailcore/internal/api/middleware"
	"github.com/welldanyogia/webrana-mailcore/internal/api/response"
	"github.com/welldanyogia/webrana-mailcore/internal/services"
)

// MailboxHandler handles mailbox-related HTTP requests
type MailboxHandler struct {
	mailboxes services.MailboxService
}

// NewMailboxHandler creates a new MailboxHandler
func NewMailboxHandler(mailboxes services.MailboxService) *MailboxHandler {
	return &MailboxHandler{mailboxes: mailboxes}
}

// CreateMailboxRequest represents the request body for creating a mailbox
type CreateMailboxRequest struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// Create handles POST /api/mailboxes
func (h *MailboxHandler) Create(c echo.Context) error {
	var req CreateMailboxRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	req.Address = strings.TrimSpace(req.Address)
	if req.Address == "" {
		return response.BadRequest(c, "address is required")
	}

	mailbox, err := h.mailboxes.CreateMailbox(c.Request().Context(), middleware.ScopeFrom(c), req.Address, strings.TrimSpace(req.Name))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, mailbox)
}

// List handles GET /api/mailboxes
func (h *MailboxHandler) List(c echo.Context) error {
	mailboxes, err := h.mailboxes.ListMailboxes(c.Request().Context(), middleware.ScopeFrom(c))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, mailboxes)
}

// Get handles GET /api/mailboxes/:id
func (h *MailboxHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}

	mailbox, err := h.mailboxes.GetMailbox(c.Request().Context(), middleware.ScopeFrom(c), id)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, mailbox)
}

// Delete handles DELETE /api/mailboxes/:id
func (h *MailboxHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}

	if err := h.mailboxes.DeleteMailbox(c.Request().Context(), middleware.ScopeFrom(c), id); err != nil {
		return response.Error(c, err)
	}

	return response.NoContent(c)
}
