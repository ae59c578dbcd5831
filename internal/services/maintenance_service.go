package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/welldanyogia/webrana-mailcore/internal/jobs"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"github.com/welldanyogia/webrana-mailcore/internal/repository"
	"gorm.io/gorm"
)

// Maintenance defaults
const (
	DefaultRetention  = 30 * 24 * time.Hour
	DefaultJobTimeout = 30 * time.Minute
	purgeBatchSize    = 500
)

// Scheduled task names
const (
	TaskPurgeRemoved   = "purge-removed"
	TaskRecalculateAll = "recalculate-counters"
)

// MaintenanceService runs the background upkeep jobs
type MaintenanceService interface {
	// PurgeRemoved permanently deletes messages removed longer than retention ago
	// together with their attachment files, and returns how many were purged.
	PurgeRemoved(ctx context.Context, retention time.Duration) (int, error)

	// RecalculateAll rebuilds the counters of every scope, one pool unit per scope
	RecalculateAll(ctx context.Context) (*jobs.Report, error)

	// RecalculateScope rebuilds the counters of one scope on request
	RecalculateScope(ctx context.Context, scope models.Scope) error

	// Register adds the purge and recalculation tasks to a scheduler
	Register(s *jobs.Scheduler, purgeSchedule, recalcSchedule string, retention time.Duration) error
}

// maintenanceService implements MaintenanceService
type maintenanceService struct {
	*core
	pool    *jobs.Pool
	timeout time.Duration
}

// NewMaintenanceService creates a MaintenanceService. A non-positive timeout selects DefaultJobTimeout.
func NewMaintenanceService(deps Deps, pool *jobs.Pool, timeout time.Duration) MaintenanceService {
	c := newCore(deps)
	if pool == nil {
		pool = jobs.NewPool(jobs.DefaultMaxConcurrency, c.deps.Logger)
	}
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	return &maintenanceService{core: c, pool: pool, timeout: timeout}
}

// PurgeRemoved hard deletes expired soft-deleted messages in batches
func (s *maintenanceService) PurgeRemoved(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	cutoff := time.Now().UTC().Add(-retention)
	repos := s.repos()

	purged, files := 0, 0
	for {
		if err := ctx.Err(); err != nil {
			s.deps.Audit.MessagesPurged(purged, files, cutoff)
			return purged, err
		}

		batch, err := repos.Messages.ListRemovedBefore(ctx, cutoff, purgeBatchSize)
		if err != nil {
			return purged, err
		}
		if len(batch) == 0 {
			break
		}

		// A restore may commit between the listing and this transaction
		var deleted []uint
		err = s.deps.Tx.Run(ctx, func(tx *gorm.DB) error {
			messages := repository.New(tx, s.deps.Storage).Messages
			ids, err := messages.LockRemovedBefore(ctx, messageIDs(batch), cutoff)
			if err != nil {
				return err
			}
			if err := messages.HardDelete(ctx, ids); err != nil {
				return err
			}
			deleted = ids
			return nil
		})
		if err != nil {
			return purged, err
		}

		gone := make(map[uint]bool, len(deleted))
		for _, id := range deleted {
			gone[id] = true
		}
		var attachments []models.Attachment
		for _, m := range batch {
			if gone[m.ID] {
				attachments = append(attachments, m.Attachments...)
			}
		}
		files += repos.Attachments.DeleteFiles(attachments)
		purged += len(deleted)

		if len(batch) < purgeBatchSize {
			break
		}
	}

	if purged > 0 {
		s.deps.Audit.MessagesPurged(purged, files, cutoff)
	}
	return purged, nil
}

// RecalculateAll rebuilds the counters of every scope owning a mailbox
func (s *maintenanceService) RecalculateAll(ctx context.Context) (*jobs.Report, error) {
	scopes, err := s.repos().Mailboxes.ListScopes(ctx)
	if err != nil {
		return nil, err
	}

	units := make([]jobs.Unit, len(scopes))
	for i, scope := range scopes {
		scope := scope
		units[i] = jobs.Unit{
			Name: fmt.Sprintf("t%d/%s", scope.TenantID, scope.UserID),
			Run: func(ctx context.Context) error {
				return s.counters.RecalculateFolders(ctx, scope, ReasonScheduled)
			},
		}
	}

	report := s.pool.RunAll(ctx, TaskRecalculateAll, units, s.timeout)
	if report.Failed > 0 || report.TimedOut {
		s.deps.Logger.Warn("counter recalculation incomplete",
			slog.Int("scopes", len(scopes)),
			slog.Int("failed", report.Failed),
			slog.Int("skipped", report.Skipped),
			slog.Bool("timed_out", report.TimedOut),
		)
	}
	return report, nil
}

// RecalculateScope rebuilds one scope's counters
func (s *maintenanceService) RecalculateScope(ctx context.Context, scope models.Scope) error {
	return s.counters.RecalculateFolders(ctx, scope, ReasonManual)
}

// Register schedules the purge and recalculation tasks. An empty schedule skips the task.
func (s *maintenanceService) Register(sched *jobs.Scheduler, purgeSchedule, recalcSchedule string, retention time.Duration) error {
	if purgeSchedule != "" {
		err := sched.Add(TaskPurgeRemoved, purgeSchedule, func(ctx context.Context) error {
			_, err := s.PurgeRemoved(ctx, retention)
			return err
		})
		if err != nil {
			return err
		}
	}
	if recalcSchedule != "" {
		err := sched.Add(TaskRecalculateAll, recalcSchedule, func(ctx context.Context) error {
			report, err := s.RecalculateAll(ctx)
			if err != nil {
				return err
			}
			return report.Err()
		})
		if err != nil {
			return err
		}
	}
	return nil
}
