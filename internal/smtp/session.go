package smtp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/emersion/go-smtp"
	apperrors "github.com/welldanyogia/webrana-mailcore/internal/errors"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"github.com/welldanyogia/webrana-mailcore/internal/services"
	"github.com/welldanyogia/webrana-mailcore/internal/storage"
)

var (
	errInvalidRecipient = &smtp.SMTPError{
		Code:         550,
		EnhancedCode: smtp.EnhancedCode{5, 1, 1},
		Message:      "Invalid recipient address",
	}
	errMailboxNotFound = &smtp.SMTPError{
		Code:         550,
		EnhancedCode: smtp.EnhancedCode{5, 1, 1},
		Message:      "Mailbox not found",
	}
	errTemporary = &smtp.SMTPError{
		Code:         451,
		EnhancedCode: smtp.EnhancedCode{4, 3, 0},
		Message:      "Temporary error",
	}
	errNoRecipients = &smtp.SMTPError{
		Code:         503,
		EnhancedCode: smtp.EnhancedCode{5, 5, 1},
		Message:      "No recipients specified",
	}
	errUnparsable = &smtp.SMTPError{
		Code:         550,
		EnhancedCode: smtp.EnhancedCode{5, 6, 0},
		Message:      "Failed to parse email",
	}
)

// Session implements the go-smtp Session interface
type Session struct {
	backend    *Backend
	from       string
	recipients []*models.Mailbox
}

// NewSession creates a new SMTP session
func NewSession(backend *Backend) *Session {
	return &Session{backend: backend}
}

// Mail handles the MAIL FROM command
func (s *Session) Mail(from string, opts *smtp.MailOptions) error {
	s.from = from
	s.backend.logger.Debug("MAIL FROM", slog.String("from", from))
	return nil
}

// Rcpt handles the RCPT TO command. Only addresses of existing mailboxes are accepted.
func (s *Session) Rcpt(to string, opts *smtp.RcptOptions) error {
	address, err := normalizeAddress(to)
	if err != nil {
		return errInvalidRecipient
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.backend.deliveryTimeout)
	defer cancel()

	mailbox, err := s.backend.mailboxes.ResolveAddress(ctx, address)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return errMailboxNotFound
		}
		s.backend.logger.Error("failed to resolve recipient",
			slog.String("to", address),
			slog.Any("error", err))
		return errTemporary
	}

	for _, r := range s.recipients {
		if r.ID == mailbox.ID {
			return nil
		}
	}
	s.recipients = append(s.recipients, mailbox)
	s.backend.logger.Debug("RCPT TO", slog.String("to", address), slog.Uint64("mailbox_id", uint64(mailbox.ID)))
	return nil
}

// Data handles the DATA command - receives the email content
func (s *Session) Data(r io.Reader) error {
	if len(s.recipients) == 0 {
		return errNoRecipients
	}

	parsed, err := ParseEmail(r)
	if err != nil {
		s.backend.logger.Error("failed to parse email", slog.Any("error", err))
		return errUnparsable
	}

	// Fall back to the envelope sender when the header has none
	if parsed.SenderEmail == "" {
		parsed.SenderEmail = s.from
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.backend.deliveryTimeout)
	defer cancel()

	delivered := 0
	for _, mailbox := range s.recipients {
		if err := s.deliver(ctx, mailbox, parsed); err != nil {
			s.backend.logger.Error("failed to deliver email",
				slog.String("recipient", mailbox.Address),
				slog.Any("error", err))
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return errTemporary
	}

	s.backend.logger.Info("email received",
		slog.String("from", s.from),
		slog.Int("recipients", len(s.recipients)),
		slog.Int("delivered", delivered),
		slog.String("subject", parsed.Subject))
	return nil
}

// deliver stores the attachments under the recipient's owner directory and
// hands the message to the delivery service
func (s *Session) deliver(ctx context.Context, mailbox *models.Mailbox, email *ParsedEmail) error {
	in := &services.IncomingMessage{
		MimeMessageID: email.MessageID,
		MimeReplyToID: email.InReplyTo,
		From:          formatSender(email.SenderName, email.SenderEmail),
		To:            email.To,
		Cc:            email.Cc,
		Subject:       email.Subject,
		BodyText:      email.BodyText,
		BodyHTML:      email.BodyHTML,
		Snippet:       email.Snippet,
		DateSent:      email.Date,
		SizeBytes:     email.Size,
		MD5:           email.MD5,
	}

	owner := storage.OwnerDir(mailbox.TenantID, mailbox.UserID)
	for _, att := range email.Attachments {
		if err := storage.ValidateFile(att.Filename, att.Size()); err != nil {
			s.backend.logger.Warn("attachment rejected",
				slog.String("filename", att.Filename),
				slog.String("reason", err.Error()))
			continue
		}

		path, size, err := s.backend.fileStorage.Save(owner, att.Filename, bytes.NewReader(att.Content))
		if err != nil {
			s.backend.logger.Error("failed to save attachment",
				slog.String("filename", att.Filename),
				slog.Any("error", err))
			continue
		}

		in.Attachments = append(in.Attachments, services.IncomingAttachment{
			Filename:    att.Filename,
			ContentType: att.ContentType,
			FilePath:    path,
			SizeBytes:   size,
		})
	}

	msg, err := s.backend.delivery.Deliver(ctx, mailbox, in)
	if err != nil {
		return err
	}
	s.backend.logger.Debug("email delivered",
		slog.Uint64("mailbox_id", uint64(mailbox.ID)),
		slog.Uint64("message_id", uint64(msg.ID)))
	return nil
}

// Reset resets the session state
func (s *Session) Reset() {
	s.from = ""
	s.recipients = nil
}

// Logout handles the end of the session
func (s *Session) Logout() error {
	return nil
}

// normalizeAddress strips angle brackets and lowercases an address
func normalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	address = strings.TrimPrefix(address, "<")
	address = strings.TrimSuffix(address, ">")
	address = strings.ToLower(strings.TrimSpace(address))

	parts := strings.Split(address, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("invalid email address: %s", address)
	}
	return address, nil
}

func formatSender(name, email string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%q <%s>", name, email)
}
