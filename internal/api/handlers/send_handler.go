package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/webrana-mailcore/internal/api/middleware"
	"github.com/welldanyogia/webrana-mailcore/internal/api/response"
	apperrors "github.com/welldanyogia/webrana-mailcore/internal/errors"
	"github.com/welldanyogia/webrana-mailcore/internal/services"
)

// SendHandler records outgoing mail in the Sent folder
type SendHandler struct {
	delivery services.DeliveryService
	hostname string
	now      func() time.Time
}

// NewSendHandler creates a new SendHandler. hostname is the right-hand side
// of generated Message-IDs.
func NewSendHandler(delivery services.DeliveryService, hostname string) *SendHandler {
	if hostname == "" {
		hostname = "localhost"
	}
	return &SendHandler{delivery: delivery, hostname: hostname, now: time.Now}
}

// SendRequest is an outgoing message. InReplyTo threads it into an existing conversation.
type SendRequest struct {
	To        []string `json:"to"`
	Cc        []string `json:"cc"`
	Subject   string   `json:"subject"`
	BodyText  string   `json:"body_text"`
	BodyHTML  string   `json:"body_html"`
	InReplyTo string   `json:"in_reply_to"`
}

// Send handles POST /api/mailboxes/:mailbox_id/send
func (h *SendHandler) Send(c echo.Context) error {
	mailboxID, err := parseID(c, "mailbox_id")
	if err != nil {
		return response.Error(c, err)
	}
	var req SendRequest
	if err := bindJSON(c, &req); err != nil {
		return response.Error(c, err)
	}
	if len(req.To) == 0 {
		return response.Error(c, apperrors.InvalidInput("at least one recipient is required"))
	}

	id := uuid.NewString()
	in := &services.IncomingMessage{
		MimeMessageID: fmt.Sprintf("<%s@%s>", id, h.hostname),
		MimeReplyToID: bracketed(req.InReplyTo),
		To:            strings.Join(req.To, ", "),
		Cc:            strings.Join(req.Cc, ", "),
		Subject:       req.Subject,
		BodyText:      req.BodyText,
		BodyHTML:      req.BodyHTML,
		DateSent:      h.now().UTC(),
		SizeBytes:     int64(len(req.BodyText) + len(req.BodyHTML)),
		UIDL:          id,
	}

	msg, err := h.delivery.Send(c.Request().Context(), middleware.ScopeFrom(c), mailboxID, in)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, msg)
}

// bracketed normalises a Message-ID reference to its <id> form
func bracketed(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(id, "<") {
		return id
	}
	return "<" + id + ">"
}
