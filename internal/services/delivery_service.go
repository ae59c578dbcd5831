package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/welldanyogia/webrana-mailcore/internal/errors"
	"github.com/welldanyogia/webrana-mailcore/internal/events"
	"github.com/welldanyogia/webrana-mailcore/internal/metrics"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"github.com/welldanyogia/webrana-mailcore/internal/repository"
	"github.com/welldanyogia/webrana-mailcore/internal/threading"
	"gorm.io/gorm"
)

// IncomingAttachment is an attachment already written to file storage
type IncomingAttachment struct {
	Filename    string
	ContentType string
	FilePath    string
	SizeBytes   int64
}

// IncomingMessage is a parsed message ready to be stored
type IncomingMessage struct {
	MimeMessageID string
	MimeReplyToID string
	From          string
	To            string
	Cc            string
	Subject       string
	BodyText      string
	BodyHTML      string
	// Snippet is the preview used when BodyText is empty
	Snippet       string
	DateSent      time.Time
	SizeBytes     int64
	MD5           string
	UIDL          string
	Attachments   []IncomingAttachment
}

// MessageFilter runs the owner's filter rules on a freshly stored message
type MessageFilter interface {
	ApplyToMessage(ctx context.Context, scope models.Scope, messageID uint) error
}

// DeliveryService stores incoming and outgoing mail
type DeliveryService interface {
	// Deliver stores a received message in the mailbox Inbox and runs the
	// owner's filter rules on it. A message already stored with the same
	// content hash or UIDL is returned unchanged.
	Deliver(ctx context.Context, mailbox *models.Mailbox, in *IncomingMessage) (*models.Message, error)

	// Send records an outgoing message in the Sent folder as read, then runs
	// the owner's filter rules on it.
	Send(ctx context.Context, scope models.Scope, mailboxID uint, in *IncomingMessage) (*models.Message, error)
}

// deliveryService implements DeliveryService
type deliveryService struct {
	*core
	filters MessageFilter
}

// NewDeliveryService creates a DeliveryService. filters may be nil.
func NewDeliveryService(deps Deps, filters MessageFilter) DeliveryService {
	return &deliveryService{core: newCore(deps), filters: filters}
}

const snippetLength = 200

// Deliver stores a received message in the Inbox
func (s *deliveryService) Deliver(ctx context.Context, mailbox *models.Mailbox, in *IncomingMessage) (*models.Message, error) {
	if mailbox == nil || mailbox.ID == 0 {
		return nil, apperrors.InvalidInput("mailbox is required")
	}
	msg, stored, err := s.store(ctx, mailbox, in, models.Location{Folder: models.FolderInbox}, true)
	if err != nil || !stored {
		return msg, err
	}
	s.applyFilters(ctx, mailbox.Scope(), msg)
	return msg, nil
}

// applyFilters runs the owner's rules; failures never undo the delivery
func (s *deliveryService) applyFilters(ctx context.Context, scope models.Scope, msg *models.Message) {
	if s.filters == nil {
		return
	}
	if err := s.filters.ApplyToMessage(ctx, scope, msg.ID); err != nil {
		s.deps.Logger.Warn("filter rules failed for stored message",
			slog.Uint64("message_id", uint64(msg.ID)),
			slog.String("error", err.Error()),
		)
	}
}

// Send records an outgoing message of the scope
func (s *deliveryService) Send(ctx context.Context, scope models.Scope, mailboxID uint, in *IncomingMessage) (*models.Message, error) {
	if !scope.Valid() {
		return nil, apperrors.InvalidInput("tenant and user are required")
	}
	mailbox, err := s.repos().Mailboxes.GetByID(ctx, scope, mailboxID)
	if err != nil {
		return nil, notFound(err, apperrors.ErrMailboxNotFound)
	}
	if in != nil && in.From == "" {
		in.From = mailbox.Address
	}
	msg, stored, err := s.store(ctx, mailbox, in, models.Location{Folder: models.FolderSent}, false)
	if err != nil || !stored {
		return msg, err
	}
	s.applyFilters(ctx, scope, msg)
	return msg, nil
}

// store persists one message and reports whether it was new
func (s *deliveryService) store(ctx context.Context, mailbox *models.Mailbox, in *IncomingMessage, loc models.Location, unread bool) (*models.Message, bool, error) {
	if in == nil {
		return nil, false, apperrors.InvalidInput("message is required")
	}
	repos := s.repos()

	dup, err := repos.Messages.FindDuplicate(ctx, mailbox.ID, in.MD5, in.UIDL)
	switch {
	case err == nil:
		s.discardFiles(in)
		metrics.Deliveries.WithLabelValues("duplicate").Inc()
		s.deps.Logger.Info("duplicate message skipped",
			slog.Uint64("mailbox_id", uint64(mailbox.ID)),
			slog.Uint64("message_id", uint64(dup.ID)),
		)
		return dup, false, nil
	case !errors.Is(err, repository.ErrNotFound):
		s.discardFiles(in)
		metrics.Deliveries.WithLabelValues("error").Inc()
		return nil, false, err
	}

	mimeID := strings.TrimSpace(in.MimeMessageID)
	if mimeID == "" {
		mimeID = generateMessageID(mailbox.Address)
	}
	dateSent := in.DateSent
	if dateSent.IsZero() {
		dateSent = time.Now().UTC()
	}

	preview := snippet(in.BodyText)
	if preview == "" {
		preview = snippet(in.Snippet)
	}

	var msg *models.Message
	err = s.mutate(ctx, mailbox.Scope(), func(u *unitOfWork) error {
		detector := threading.NewDetector(savepointLookup{tx: u.tx, lookup: u.repos.Messages}, s.deps.Logger)
		chain := detector.DetectChain(u.ctx, mailbox.ID, mimeID, in.MimeReplyToID, in.Subject)

		replyTo := strings.TrimSpace(in.MimeReplyToID)
		if threading.IsRoot(mimeID, chain.ChainID) && !chain.Orphan {
			replyTo = ""
		}

		msg = &models.Message{
			TenantID:        mailbox.TenantID,
			UserID:          mailbox.UserID,
			MailboxID:       mailbox.ID,
			Folder:          loc.Folder,
			UserFolderID:    loc.UserFolderID,
			ChainID:         chain.ChainID,
			ChainDate:       chain.ChainDate,
			MimeMessageID:   mimeID,
			MimeReplyToID:   replyTo,
			FromAddress:     in.From,
			ToAddress:       in.To,
			CcAddress:       in.Cc,
			Subject:         in.Subject,
			Snippet:         preview,
			BodyText:        in.BodyText,
			BodyHTML:        in.BodyHTML,
			DateSent:        dateSent,
			Unread:          unread,
			AttachmentCount: len(in.Attachments),
			SizeBytes:       in.SizeBytes,
			MD5:             in.MD5,
			UIDL:            in.UIDL,
		}

		attachments := make([]models.Attachment, len(in.Attachments))
		var attachmentBytes int64
		for i, a := range in.Attachments {
			attachments[i] = models.Attachment{
				Filename:    a.Filename,
				ContentType: a.ContentType,
				FilePath:    a.FilePath,
				SizeBytes:   a.SizeBytes,
			}
			attachmentBytes += a.SizeBytes
		}
		if err := u.repos.Messages.CreateWithAttachments(u.ctx, msg, attachments); err != nil {
			return err
		}

		if err := adoptOrphans(u, msg); err != nil {
			return err
		}

		u.moveIn(loc, unread)
		u.touch(msg.ChainKey(), true)

		if attachmentBytes > 0 {
			if err := u.repos.Quota.Adjust(u.ctx, u.scope, attachmentBytes); err != nil {
				return err
			}
		}

		e := events.New(events.MessageAdded, u.scope)
		e.MailboxIDs = []uint{mailbox.ID}
		e.MessageIDs = []uint{msg.ID}
		e.Message = msg
		u.publish(e)
		return nil
	})
	if err != nil {
		s.discardFiles(in)
		metrics.Deliveries.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("failed to store message: %w", err)
	}

	metrics.Deliveries.WithLabelValues("stored").Inc()
	s.deps.Logger.Info("message stored",
		slog.Uint64("mailbox_id", uint64(mailbox.ID)),
		slog.Uint64("message_id", uint64(msg.ID)),
		slog.String("folder", loc.Folder.String()),
		slog.String("chain_id", msg.ChainID),
		slog.Int("attachments", len(in.Attachments)),
	)
	return msg, true, nil
}

const lookupSavepoint = "chain_lookup"

// savepointLookup runs chain lookups behind a savepoint. On PostgreSQL a
// failed statement aborts the transaction, so a failed lookup rolls back to
// the savepoint and delivery continues with a new conversation.
type savepointLookup struct {
	tx     *gorm.DB
	lookup threading.MessageLookup
}

func (l savepointLookup) FindByMimeID(ctx context.Context, mailboxID uint, mimeID string) (*models.Message, error) {
	return l.guard(func() (*models.Message, error) {
		return l.lookup.FindByMimeID(ctx, mailboxID, mimeID)
	})
}

func (l savepointLookup) FindByChainID(ctx context.Context, mailboxID uint, chainID string) (*models.Message, error) {
	return l.guard(func() (*models.Message, error) {
		return l.lookup.FindByChainID(ctx, mailboxID, chainID)
	})
}

func (l savepointLookup) guard(find func() (*models.Message, error)) (*models.Message, error) {
	if l.tx == nil {
		return find()
	}
	if err := l.tx.SavePoint(lookupSavepoint).Error; err != nil {
		return nil, fmt.Errorf("failed to create savepoint: %w", err)
	}
	msg, err := find()
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		if rbErr := l.tx.RollbackTo(lookupSavepoint).Error; rbErr != nil {
			return nil, errors.Join(err, rbErr)
		}
	}
	return msg, err
}

// adoptOrphans pulls earlier replies to msg, stored before msg arrived, into
// msg's conversation when their subjects still agree.
func adoptOrphans(u *unitOfWork, msg *models.Message) error {
	orphans, err := u.repos.Messages.ListOrphanReplies(u.ctx, msg.MailboxID, msg.MimeMessageID)
	if err != nil {
		return err
	}

	subject := threading.NormalizeSubject(msg.Subject)
	relabelled := make(map[string]struct{})
	for _, o := range orphans {
		if o.ID == msg.ID || o.ChainID == msg.ChainID {
			continue
		}
		if _, done := relabelled[o.ChainID]; done {
			continue
		}
		if threading.NormalizeSubject(o.Subject) != subject {
			continue
		}
		keys, err := u.repos.Messages.RelabelChain(u.ctx, msg.MailboxID, o.ChainID, msg.ChainID, msg.ChainDate)
		if err != nil {
			return err
		}
		for _, k := range keys {
			u.touch(k, false)
		}
		relabelled[o.ChainID] = struct{}{}
	}
	return nil
}

func (s *deliveryService) discardFiles(in *IncomingMessage) {
	if s.deps.Storage == nil {
		return
	}
	for _, a := range in.Attachments {
		if a.FilePath == "" {
			continue
		}
		if err := s.deps.Storage.Delete(a.FilePath); err != nil {
			s.deps.Logger.Warn("failed to delete attachment file",
				slog.String("path", a.FilePath),
				slog.String("error", err.Error()),
			)
		}
	}
}

func generateMessageID(address string) string {
	domain := "localhost"
	if at := strings.LastIndex(address, "@"); at >= 0 && at < len(address)-1 {
		domain = address[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.New().String(), domain)
}

// snippet returns the first characters of text on one line
func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > snippetLength {
		return string(runes[:snippetLength])
	}
	return text
}
