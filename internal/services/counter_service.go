package services

import (
	"context"
	"log/slog"
	"sort"

	"github.com/welldanyogia/webrana-mailcore/internal/database"
	apperrors "github.com/welldanyogia/webrana-mailcore/internal/errors"
	"github.com/welldanyogia/webrana-mailcore/internal/events"
	"github.com/welldanyogia/webrana-mailcore/internal/logger"
	"github.com/welldanyogia/webrana-mailcore/internal/metrics"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"github.com/welldanyogia/webrana-mailcore/internal/repository"
	"github.com/welldanyogia/webrana-mailcore/internal/storage"
	"gorm.io/gorm"
)

// Recalculation reasons
const (
	ReasonDeltaRejected = "delta_rejected"
	ReasonIntegrity     = "integrity"
	ReasonScheduled     = "scheduled"
	ReasonManual        = "manual"
	ReasonStructural    = "structural"
)

// FolderCounterService maintains folder and user folder counters
type FolderCounterService struct {
	tx        *database.Transactor
	files     storage.FileStorage
	publisher events.Publisher
	logger    *slog.Logger
	audit     *logger.AuditLogger
}

// NewFolderCounterService creates a FolderCounterService
func NewFolderCounterService(deps Deps) *FolderCounterService {
	deps = deps.withDefaults()
	return &FolderCounterService{
		tx:        deps.Tx,
		files:     deps.Storage,
		publisher: deps.Publisher,
		logger:    deps.Logger,
		audit:     deps.Audit,
	}
}

// ApplyDelta applies one counter change to loc in its own transaction.
// A rejected delta recalculates the scope instead.
func (s *FolderCounterService) ApplyDelta(ctx context.Context, scope models.Scope, loc models.Location, delta models.CounterDelta) error {
	if !scope.Valid() {
		return apperrors.InvalidInput("tenant and user are required")
	}
	if !loc.Folder.Valid() {
		return apperrors.InvalidInput("unknown folder %d", int(loc.Folder))
	}

	var repaired bool
	err := s.tx.Run(ctx, func(tx *gorm.DB) error {
		u := newUnitOfWork(ctx, scope, tx, s.files)
		u.addDelta(loc, delta)
		if err := s.flush(u); err != nil {
			return err
		}
		repaired = u.repaired
		return nil
	})
	if err != nil {
		return err
	}
	if !delta.IsZero() || repaired {
		s.publisher.Publish(events.New(events.CountersChanged, scope))
	}
	return nil
}

// RecalculateFolders rebuilds every counter of the scope from messages and chains
func (s *FolderCounterService) RecalculateFolders(ctx context.Context, scope models.Scope, reason string) error {
	if !scope.Valid() {
		return apperrors.InvalidInput("tenant and user are required")
	}

	err := s.tx.Run(ctx, func(tx *gorm.DB) error {
		return recalculate(ctx, repository.New(tx, s.files), scope)
	})
	if err != nil {
		return err
	}

	metrics.Recalculations.WithLabelValues(reason).Inc()
	if reason != ReasonScheduled {
		s.audit.CountersRecalculated(scope, reason)
	}
	s.publisher.Publish(events.New(events.CountersChanged, scope))
	return nil
}

// GetFolderCounters returns the built-in folder and user folder counters of the scope
func (s *FolderCounterService) GetFolderCounters(ctx context.Context, scope models.Scope) (*models.FolderCounters, error) {
	repos := repository.New(s.tx.DB(), s.files)
	folders, err := repos.Counters.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	userFolders, err := repos.UserFolders.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	return &models.FolderCounters{Folders: folders, UserFolders: userFolders}, nil
}

// flush applies the accumulated deltas. The first rejected delta abandons
// incremental maintenance and rebuilds the whole scope in the same transaction.
func (s *FolderCounterService) flush(u *unitOfWork) error {
	folders := make([]models.Folder, 0, len(u.folders))
	for f := range u.folders {
		folders = append(folders, f)
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i] < folders[j] })

	for _, f := range folders {
		d := u.folders[f]
		if d.IsZero() {
			continue
		}
		ok, err := u.repos.Counters.ApplyDelta(u.ctx, u.scope, f, d)
		if err != nil {
			return err
		}
		if !ok {
			return s.escalate(u, "folder", uint(f), d)
		}
	}

	ids := make([]uint, 0, len(u.user))
	for id := range u.user {
		if _, gone := u.dropped[id]; !gone {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		d := u.user[id]
		if d.IsZero() {
			continue
		}
		ok, err := u.repos.UserFolders.ApplyDelta(u.ctx, u.scope, id, d)
		if err != nil {
			return err
		}
		if !ok {
			return s.escalate(u, "user_folder", id, d)
		}
	}
	return nil
}

func (s *FolderCounterService) escalate(u *unitOfWork, kind string, id uint, d models.CounterDelta) error {
	s.logger.Warn("counter delta rejected, recalculating scope",
		slog.Uint64("tenant_id", uint64(u.scope.TenantID)),
		slog.String("user_id", u.scope.UserID),
		slog.String("counter", kind),
		slog.Uint64("id", uint64(id)),
		slog.Int64("unread", d.Unread),
		slog.Int64("total", d.Total),
		slog.Int64("unread_conv", d.UnreadConv),
		slog.Int64("total_conv", d.TotalConv),
	)
	if err := recalculate(u.ctx, u.repos, u.scope); err != nil {
		return err
	}
	u.repaired = true
	metrics.Recalculations.WithLabelValues(ReasonDeltaRejected).Inc()
	s.audit.CountersRecalculated(u.scope, ReasonDeltaRejected)
	return nil
}

// recalculate overwrites the scope's counters with counts taken from
// messages and chain rows. Messages filed in a user folder count towards
// both the user folder bucket and the folder itself.
func recalculate(ctx context.Context, repos *repository.Repositories, scope models.Scope) error {
	messages, err := repos.Messages.CountByLocation(ctx, scope)
	if err != nil {
		return err
	}
	chains, err := repos.Chains.CountByLocation(ctx, scope)
	if err != nil {
		return err
	}

	folders := make(map[models.Folder]models.Counts)
	userFolders := make(map[uint]models.Counts)

	for _, row := range messages {
		c := folders[row.Folder]
		c.TotalMessages += row.Total
		c.UnreadMessages += row.Unread
		folders[row.Folder] = c
		if row.Folder == models.FolderUserFolder && row.UserFolderID != 0 {
			uc := userFolders[row.UserFolderID]
			uc.TotalMessages += row.Total
			uc.UnreadMessages += row.Unread
			userFolders[row.UserFolderID] = uc
		}
	}
	for _, row := range chains {
		c := folders[row.Folder]
		c.TotalConversations += row.Total
		c.UnreadConversations += row.Unread
		folders[row.Folder] = c
		if row.Folder == models.FolderUserFolder && row.UserFolderID != 0 {
			uc := userFolders[row.UserFolderID]
			uc.TotalConversations += row.Total
			uc.UnreadConversations += row.Unread
			userFolders[row.UserFolderID] = uc
		}
	}

	if err := repos.Counters.Replace(ctx, scope, folders); err != nil {
		return err
	}
	return repos.UserFolders.ReplaceCounts(ctx, scope, userFolders)
}
