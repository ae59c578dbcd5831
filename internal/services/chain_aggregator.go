package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/welldanyogia/webrana-mailcore/internal/database"
	apperrors "github.com/welldanyogia/webrana-mailcore/internal/errors"
	"github.com/welldanyogia/webrana-mailcore/internal/logger"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"github.com/welldanyogia/webrana-mailcore/internal/repository"
)

// ChainAggregator maintains chain rows from the messages they summarise
type ChainAggregator struct {
	logger *slog.Logger
}

// NewChainAggregator creates a ChainAggregator
func NewChainAggregator(l *slog.Logger) *ChainAggregator {
	return &ChainAggregator{logger: logger.OrDefault(l)}
}

// UpdateChain recomputes the chain row of key from its live messages and
// returns the conversation counter change for the chain's location.
//
// An empty chain has its row deleted. A chain expected to be non-empty that
// has neither messages nor a row is an integrity violation. Calling it twice
// without intervening message changes writes nothing the second time.
func (a *ChainAggregator) UpdateChain(ctx context.Context, repos *repository.Repositories, scope models.Scope, key models.ChainKey, expectNonEmpty bool) (models.CounterDelta, error) {
	var none models.CounterDelta

	prev, err := repos.Chains.Get(ctx, scope, key)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return none, err
	}
	if errors.Is(err, repository.ErrNotFound) {
		prev = nil
	}

	members, err := repos.Messages.ListChainMembers(ctx, scope, key)
	if err != nil {
		return none, err
	}

	if len(members) == 0 {
		if prev == nil {
			if expectNonEmpty {
				return none, apperrors.Integrity("chain %s in mailbox %d folder %s has no messages", key.ChainID, key.MailboxID, key.Folder)
			}
			return none, nil
		}
		if err := repos.Chains.Delete(ctx, scope, key); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return none, err
		}
		return models.CounterDelta{TotalConv: -1, UnreadConv: -b2i(prev.Unread)}, nil
	}

	next, err := a.aggregate(ctx, repos, scope, key, members)
	if err != nil {
		return none, err
	}

	if prev == nil {
		if err := repos.Chains.Create(ctx, next); err != nil {
			if errors.Is(err, repository.ErrDuplicateEntry) {
				return none, fmt.Errorf("chain %s created concurrently: %w", key.ChainID, database.ErrConflict)
			}
			return none, err
		}
		return models.CounterDelta{TotalConv: 1, UnreadConv: b2i(next.Unread)}, nil
	}

	if sameAggregate(prev, next) {
		return none, nil
	}
	if err := repos.Chains.Update(ctx, next); err != nil {
		return none, err
	}
	return models.CounterDelta{UnreadConv: b2i(next.Unread) - b2i(prev.Unread)}, nil
}

func (a *ChainAggregator) aggregate(ctx context.Context, repos *repository.Repositories, scope models.Scope, key models.ChainKey, members []models.Message) (*models.Chain, error) {
	chain := &models.Chain{
		MailboxID:    key.MailboxID,
		Folder:       key.Folder,
		UserFolderID: key.UserFolderID,
		ChainID:      key.ChainID,
		TenantID:     scope.TenantID,
		UserID:       scope.UserID,
		Length:       len(members),
		Subject:      members[0].Subject,
	}

	ids := make([]uint, len(members))
	for i := range members {
		m := &members[i]
		ids[i] = m.ID
		if m.DateSent.After(chain.DateSent) {
			chain.DateSent = m.DateSent
		}
		chain.Unread = chain.Unread || m.Unread
		chain.Important = chain.Important || m.Important
		chain.HasAttachments = chain.HasAttachments || m.AttachmentCount > 0
		if m.MimeMessageID == key.ChainID {
			chain.Subject = m.Subject
		}
	}

	tagsByMessage, err := repos.Tags.TagIDsByMessage(ctx, ids)
	if err != nil {
		return nil, err
	}
	var tags []uint
	for _, t := range tagsByMessage {
		tags = append(tags, t...)
	}
	chain.Tags = models.FormatTagSet(tags)

	return chain, nil
}

func sameAggregate(a, b *models.Chain) bool {
	return a.Length == b.Length &&
		a.DateSent.Equal(b.DateSent) &&
		a.Unread == b.Unread &&
		a.Important == b.Important &&
		a.HasAttachments == b.HasAttachments &&
		a.Tags == b.Tags &&
		a.Subject == b.Subject
}

// processChains reprocesses every chain the unit of work touched
func (a *ChainAggregator) processChains(u *unitOfWork) error {
	for _, key := range u.sortedChains() {
		delta, err := a.UpdateChain(u.ctx, u.repos, u.scope, key, u.chains[key])
		if err != nil {
			return err
		}
		u.addDelta(models.Location{Folder: key.Folder, UserFolderID: key.UserFolderID}, delta)
	}
	return nil
}
