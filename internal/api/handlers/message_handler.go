package handlers

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/webrana-mailcore/internal/api/middleware"
	"github.com/welldanyogia/webrana-mailcore/internal/api/response"
	apperrors "github.com/welldanyogia/webrana-mailcore/internal/errors"
	"github.com/welldanyogia/webrana-mailcore/internal/logger"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"github.com/welldanyogia/webrana-mailcore/internal/services"
)

// MessageHandler handles message-related HTTP requests
type MessageHandler struct {
	mail   services.MailService
	logger *slog.Logger
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(mail services.MailService, l *slog.Logger) *MessageHandler {
	return &MessageHandler{mail: mail, logger: logger.OrDefault(l)}
}

// List handles GET /api/mailboxes/:mailbox_id/messages?folder=&user_folder_id=
func (h *MessageHandler) List(c echo.Context) error {
	mailboxID, err := parseID(c, "mailbox_id")
	if err != nil {
		return response.Error(c, err)
	}
	loc, err := locationQuery(c)
	if err != nil {
		return response.Error(c, err)
	}
	limit, offset := pagination(c)

	messages, total, err := h.mail.ListMessages(c.Request().Context(), middleware.ScopeFrom(c), mailboxID, loc, limit, offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, messages, total, limit, offset)
}

// Get handles GET /api/messages/:id. An unread message is marked as read.
func (h *MessageHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}
	ctx := c.Request().Context()
	scope := middleware.ScopeFrom(c)

	message, err := h.mail.GetMessage(ctx, scope, id)
	if err != nil {
		return response.Error(c, err)
	}

	if message.Unread {
		if _, err := h.mail.SetUnread(ctx, scope, []uint{id}, false, false); err != nil {
			h.logger.Warn("failed to mark message as read",
				slog.Uint64("message_id", uint64(id)),
				slog.String("error", err.Error()),
			)
		} else {
			message.Unread = false
		}
	}

	return response.Success(c, message)
}

// SetUnreadRequest flips the read state of messages
type SetUnreadRequest struct {
	idsRequest
	Unread bool `json:"unread"`
}

// SetUnread handles POST /api/messages/unread
func (h *MessageHandler) SetUnread(c echo.Context) error {
	var req SetUnreadRequest
	if err := bindJSON(c, &req); err != nil {
		return response.Error(c, err)
	}

	n, err := h.mail.SetUnread(c.Request().Context(), middleware.ScopeFrom(c), req.IDs, req.Unread, req.AllChain)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, countResult{Updated: n})
}

// SetImportantRequest flips the importance flag of messages
type SetImportantRequest struct {
	idsRequest
	Important bool `json:"important"`
}

// SetImportant handles POST /api/messages/important
func (h *MessageHandler) SetImportant(c echo.Context) error {
	var req SetImportantRequest
	if err := bindJSON(c, &req); err != nil {
		return response.Error(c, err)
	}

	n, err := h.mail.SetImportant(c.Request().Context(), middleware.ScopeFrom(c), req.IDs, req.Important, req.AllChain)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, countResult{Updated: n})
}

// MoveRequest moves messages to a folder
type MoveRequest struct {
	IDs          []uint `json:"ids"`
	Folder       string `json:"folder"`
	UserFolderID uint   `json:"user_folder_id"`
}

// Move handles POST /api/messages/move
func (h *MessageHandler) Move(c echo.Context) error {
	var req MoveRequest
	if err := bindJSON(c, &req); err != nil {
		return response.Error(c, err)
	}
	loc, err := parseLocation(req.Folder, req.UserFolderID)
	if err != nil {
		return response.Error(c, err)
	}

	n, err := h.mail.SetFolder(c.Request().Context(), middleware.ScopeFrom(c), req.IDs, loc)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, countResult{Updated: n})
}

// Remove handles POST /api/messages/remove
func (h *MessageHandler) Remove(c echo.Context) error {
	var req idsRequest
	if err := bindJSON(c, &req); err != nil {
		return response.Error(c, err)
	}

	result, err := h.mail.SetRemoved(c.Request().Context(), middleware.ScopeFrom(c), req.IDs)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, result)
}

// EmptyFolder handles POST /api/folders/:folder/empty?user_folder_id=
func (h *MessageHandler) EmptyFolder(c echo.Context) error {
	loc, err := folderLocation(c, c.Param("folder"))
	if err != nil {
		return response.Error(c, err)
	}

	result, err := h.mail.SetRemovedInFolder(c.Request().Context(), middleware.ScopeFrom(c), loc)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, result)
}

// Restore handles POST /api/messages/restore
func (h *MessageHandler) Restore(c echo.Context) error {
	var req idsRequest
	if err := bindJSON(c, &req); err != nil {
		return response.Error(c, err)
	}

	n, err := h.mail.Restore(c.Request().Context(), middleware.ScopeFrom(c), req.IDs)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, countResult{Updated: n})
}

// TagRequest tags or untags messages
type TagRequest struct {
	idsRequest
	TagID uint `json:"tag_id"`
}

// AddTag handles POST /api/messages/tags
func (h *MessageHandler) AddTag(c echo.Context) error {
	var req TagRequest
	if err := bindJSON(c, &req); err != nil {
		return response.Error(c, err)
	}
	if req.TagID == 0 {
		return response.Error(c, apperrors.InvalidInput("tag_id is required"))
	}

	n, err := h.mail.AddTag(c.Request().Context(), middleware.ScopeFrom(c), req.TagID, req.IDs, req.AllChain)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, countResult{Updated: n})
}

// RemoveTag handles POST /api/messages/tags/remove
func (h *MessageHandler) RemoveTag(c echo.Context) error {
	var req TagRequest
	if err := bindJSON(c, &req); err != nil {
		return response.Error(c, err)
	}
	if req.TagID == 0 {
		return response.Error(c, apperrors.InvalidInput("tag_id is required"))
	}

	n, err := h.mail.RemoveTag(c.Request().Context(), middleware.ScopeFrom(c), req.TagID, req.IDs)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, countResult{Updated: n})
}

// ListConversations handles GET /api/mailboxes/:mailbox_id/conversations?folder=&user_folder_id=
func (h *MessageHandler) ListConversations(c echo.Context) error {
	mailboxID, err := parseID(c, "mailbox_id")
	if err != nil {
		return response.Error(c, err)
	}
	loc, err := locationQuery(c)
	if err != nil {
		return response.Error(c, err)
	}
	limit, offset := pagination(c)

	chains, total, err := h.mail.ListConversations(c.Request().Context(), middleware.ScopeFrom(c), mailboxID, loc, limit, offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, chains, total, limit, offset)
}

// UpdateChainRequest identifies a conversation to recompute
type UpdateChainRequest struct {
	MailboxID    uint   `json:"mailbox_id"`
	Folder       string `json:"folder"`
	UserFolderID uint   `json:"user_folder_id"`
	ChainID      string `json:"chain_id"`
}

// UpdateChain handles POST /api/conversations/refresh
func (h *MessageHandler) UpdateChain(c echo.Context) error {
	var req UpdateChainRequest
	if err := bindJSON(c, &req); err != nil {
		return response.Error(c, err)
	}
	if req.MailboxID == 0 || req.ChainID == "" {
		return response.Error(c, apperrors.InvalidInput("mailbox_id and chain_id are required"))
	}
	loc, err := parseLocation(req.Folder, req.UserFolderID)
	if err != nil {
		return response.Error(c, err)
	}

	key := models.ChainKey{
		MailboxID:    req.MailboxID,
		Folder:       loc.Folder,
		UserFolderID: loc.UserFolderID,
		ChainID:      req.ChainID,
	}
	if err := h.mail.UpdateChain(c.Request().Context(), middleware.ScopeFrom(c), key); err != nil {
		return response.Error(c, err)
	}
	return response.NoContent(c)
}
