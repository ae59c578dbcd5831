// Package threading assigns incoming messages to conversations.
package threading

import (
	"context"
	"errors"
	"log/slog"
	"time"

	apperrors "github.com/welldanyogia/webrana-mailcore/internal/errors"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
)

// MessageLookup finds candidate thread members within a mailbox
type MessageLookup interface {
	FindByMimeID(ctx context.Context, mailboxID uint, mimeID string) (*models.Message, error)
	FindByChainID(ctx context.Context, mailboxID uint, chainID string) (*models.Message, error)
}

// Result is the conversation a message belongs to
type Result struct {
	ChainID   string
	ChainDate time.Time
	// Joined is true when the message joined an existing conversation
	Joined bool
	// Orphan is true when the message replies to something not stored yet.
	// An orphan keeps its reply-to id so its parent can adopt it on arrival.
	Orphan bool
}

// Detector decides which conversation a new message joins
type Detector struct {
	lookup MessageLookup
	logger *slog.Logger
	now    func() time.Time
}

// NewDetector creates a Detector reading candidates through lookup
func NewDetector(lookup MessageLookup, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{lookup: lookup, logger: logger, now: time.Now}
}

// DetectChain returns the conversation for a message.
//
// A message without a reply target starts its own conversation. Otherwise the
// reply target is looked up by mime id, then by chain id; the message joins
// the candidate's conversation only when both normalized subjects are equal.
// A changed subject starts a new conversation even though the reply target
// exists. Lookup failures never surface: the message becomes a root.
func (d *Detector) DetectChain(ctx context.Context, mailboxID uint, mimeMessageID, mimeReplyToID, subject string) Result {
	root := Result{ChainID: mimeMessageID, ChainDate: d.now()}
	if mimeReplyToID == "" {
		return root
	}

	candidate, err := d.lookup.FindByMimeID(ctx, mailboxID, mimeReplyToID)
	if err != nil && apperrors.IsNotFound(err) {
		candidate, err = d.lookup.FindByChainID(ctx, mailboxID, mimeReplyToID)
	}
	if err != nil {
		if !apperrors.IsNotFound(err) && !errors.Is(err, context.Canceled) {
			d.logger.Warn("chain lookup failed, starting new chain",
				slog.Uint64("mailbox_id", uint64(mailboxID)),
				slog.String("reply_to", mimeReplyToID),
				slog.String("error", err.Error()),
			)
		}
		root.Orphan = true
		return root
	}

	if NormalizeSubject(candidate.Subject) != NormalizeSubject(subject) {
		d.logger.Debug("subject changed, starting new chain",
			slog.Uint64("mailbox_id", uint64(mailboxID)),
			slog.String("reply_to", mimeReplyToID),
		)
		return root
	}

	chainID := candidate.ChainID
	if chainID == "" {
		chainID = candidate.MimeMessageID
	}
	chainDate := candidate.ChainDate
	if chainDate.IsZero() {
		chainDate = root.ChainDate
	}
	return Result{ChainID: chainID, ChainDate: chainDate, Joined: true}
}

// IsRoot reports whether a message is the root of chainID. A root that is not
// an orphan must have its reply-to id cleared.
func IsRoot(mimeMessageID, chainID string) bool {
	return mimeMessageID != "" && mimeMessageID == chainID
}
