package handlers

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/webrana-mailcore/internal/api/middleware"
	"github.com/welldanyogia/webrana-mailcore/internal/api/response"
	"github.com/welldanyogia/webrana-mailcore/internal/logger"
	"github.com/welldanyogia/webrana-mailcore/internal/services"
)

// AttachmentHandler handles attachment-related HTTP requests
type AttachmentHandler struct {
	mail   services.MailService
	logger *slog.Logger
}

// NewAttachmentHandler creates a new AttachmentHandler
func NewAttachmentHandler(mail services.MailService, l *slog.Logger) *AttachmentHandler {
	return &AttachmentHandler{mail: mail, logger: logger.OrDefault(l)}
}

// List handles GET /api/messages/:message_id/attachments
func (h *AttachmentHandler) List(c echo.Context) error {
	messageID, err := parseID(c, "message_id")
	if err != nil {
		return response.Error(c, err)
	}

	attachments, err := h.mail.ListAttachments(c.Request().Context(), middleware.ScopeFrom(c), messageID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, attachments)
}

// Get handles GET /api/attachments/:id
func (h *AttachmentHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}

	attachment, err := h.mail.GetAttachment(c.Request().Context(), middleware.ScopeFrom(c), id)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, attachment)
}

// Download handles GET /api/attachments/:id/download
func (h *AttachmentHandler) Download(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}

	attachment, file, err := h.mail.OpenAttachment(c.Request().Context(), middleware.ScopeFrom(c), id)
	if err != nil {
		return response.Error(c, err)
	}
	defer file.Close()

	contentType := attachment.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	header := c.Response().Header()
	header.Set(echo.HeaderContentType, contentType)
	header.Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{
		"filename": attachment.Filename,
	}))
	if attachment.SizeBytes > 0 {
		header.Set(echo.HeaderContentLength, strconv.FormatInt(attachment.SizeBytes, 10))
	}
	c.Response().WriteHeader(http.StatusOK)

	// Headers are sent; a copy failure can only be logged
	if _, err := io.Copy(c.Response(), file); err != nil {
		h.logger.Warn("attachment download interrupted",
			slog.Uint64("attachment_id", uint64(id)),
			slog.String("error", err.Error()),
		)
	}
	return nil
}
