package services

import (
	"context"
	"log/slog"
	"strings"

	apperrors "github.com/welldanyogia/webrana-mailcore/internal/errors"
	"github.com/welldanyogia/webrana-mailcore/internal/metrics"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"github.com/welldanyogia/webrana-mailcore/internal/validator"
)

// MailboxService manages the mailboxes of a scope
type MailboxService interface {
	// CreateMailbox creates a mailbox and the scope's folder counter rows
	CreateMailbox(ctx context.Context, scope models.Scope, address, name string) (*models.Mailbox, error)
	GetMailbox(ctx context.Context, scope models.Scope, id uint) (*models.Mailbox, error)
	ListMailboxes(ctx context.Context, scope models.Scope) ([]models.Mailbox, error)

	// ResolveAddress finds the mailbox receiving mail for address
	ResolveAddress(ctx context.Context, address string) (*models.Mailbox, error)

	// DeleteMailbox permanently deletes a mailbox with its messages, chains
	// and attachment files, then recalculates the scope's counters.
	DeleteMailbox(ctx context.Context, scope models.Scope, id uint) error
}

// mailboxService implements MailboxService
type mailboxService struct {
	*core
}

// NewMailboxService creates a new MailboxService instance
func NewMailboxService(deps Deps) MailboxService {
	return &mailboxService{core: newCore(deps)}
}

// CreateMailbox creates a mailbox owned by the scope
func (s *mailboxService) CreateMailbox(ctx context.Context, scope models.Scope, address, name string) (*models.Mailbox, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	if err := validator.ValidateMailboxAddress(address); err != nil {
		return nil, apperrors.InvalidInput("invalid mailbox address: %s", err.Error())
	}

	mailbox := &models.Mailbox{
		TenantID: scope.TenantID,
		UserID:   scope.UserID,
		Address:  address,
		Name:     validator.SanitizeString(name, 255),
	}
	err := s.mutate(ctx, scope, func(u *unitOfWork) error {
		mailbox.ID = 0
		if err := u.repos.Mailboxes.Create(u.ctx, mailbox); err != nil {
			return err
		}
		return u.repos.Counters.EnsureRows(u.ctx, u.scope)
	})
	if err != nil {
		return nil, err
	}

	s.deps.Logger.Info("mailbox created",
		slog.Uint64("mailbox_id", uint64(mailbox.ID)),
		slog.Uint64("tenant_id", uint64(scope.TenantID)),
		slog.String("user_id", scope.UserID),
	)
	return mailbox, nil
}

// GetMailbox returns a mailbox of the scope and records the access
func (s *mailboxService) GetMailbox(ctx context.Context, scope models.Scope, id uint) (*models.Mailbox, error) {
	repos := s.repos()
	mailbox, err := repos.Mailboxes.GetByID(ctx, scope, id)
	if err != nil {
		return nil, notFound(err, apperrors.ErrMailboxNotFound)
	}
	if err := repos.Mailboxes.UpdateLastAccessed(ctx, id); err != nil {
		s.deps.Logger.Warn("failed to update last accessed",
			slog.Uint64("mailbox_id", uint64(id)),
			slog.String("error", err.Error()),
		)
	}
	return mailbox, nil
}

// ListMailboxes returns the mailboxes of the scope
func (s *mailboxService) ListMailboxes(ctx context.Context, scope models.Scope) ([]models.Mailbox, error) {
	return s.repos().Mailboxes.List(ctx, scope)
}

// ResolveAddress looks a mailbox up by its address
func (s *mailboxService) ResolveAddress(ctx context.Context, address string) (*models.Mailbox, error) {
	mailbox, err := s.repos().Mailboxes.GetByAddress(ctx, strings.TrimSpace(address))
	if err != nil {
		return nil, notFound(err, apperrors.ErrMailboxNotFound)
	}
	return mailbox, nil
}

// DeleteMailbox removes a mailbox and everything stored in it
func (s *mailboxService) DeleteMailbox(ctx context.Context, scope models.Scope, id uint) error {
	var attachments []models.Attachment
	err := s.mutate(ctx, scope, func(u *unitOfWork) error {
		attachments = nil
		if _, err := u.repos.Mailboxes.GetByID(u.ctx, u.scope, id); err != nil {
			return notFound(err, apperrors.ErrMailboxNotFound)
		}

		live, removed, err := u.repos.Messages.ListAllIDsByMailbox(u.ctx, id)
		if err != nil {
			return err
		}
		all := append(append([]uint{}, live...), removed...)

		if len(all) > 0 {
			if attachments, err = u.repos.Attachments.ListByMessages(u.ctx, all); err != nil {
				return err
			}
			// removed messages already gave their bytes back
			freed, err := u.repos.Attachments.SumSizeByMessages(u.ctx, live)
			if err != nil {
				return err
			}
			tagIDs, err := u.repos.Tags.ClearMessages(u.ctx, all)
			if err != nil {
				return err
			}
			if err := u.repos.Messages.HardDelete(u.ctx, all); err != nil {
				return err
			}
			if err := u.repos.Tags.Recount(u.ctx, tagIDs); err != nil {
				return err
			}
			if freed > 0 {
				if err := u.repos.Quota.Adjust(u.ctx, u.scope, -freed); err != nil {
					return err
				}
			}
		}

		if err := u.repos.Chains.DeleteByMailbox(u.ctx, id); err != nil {
			return err
		}
		if err := u.repos.Mailboxes.Delete(u.ctx, u.scope, id); err != nil {
			return notFound(err, apperrors.ErrMailboxNotFound)
		}

		if err := recalculate(u.ctx, u.repos, u.scope); err != nil {
			return err
		}
		u.repaired = true
		u.mailbox[id] = struct{}{}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.Recalculations.WithLabelValues(ReasonStructural).Inc()
	s.deps.Audit.CountersRecalculated(scope, ReasonStructural)

	files := 0
	if len(attachments) > 0 {
		files = s.repos().Attachments.DeleteFiles(attachments)
	}
	s.deps.Logger.Info("mailbox deleted",
		slog.Uint64("mailbox_id", uint64(id)),
		slog.Int("files_deleted", files),
	)
	return nil
}
