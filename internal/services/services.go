// Package services implements mailbox organisation on top of the repositories:
// delivery, batch mutations with chain and counter maintenance, filter rules
// and maintenance jobs.
package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/welldanyogia/webrana-mailcore/internal/database"
	apperrors "github.com/welldanyogia/webrana-mailcore/internal/errors"
	"github.com/welldanyogia/webrana-mailcore/internal/events"
	"github.com/welldanyogia/webrana-mailcore/internal/logger"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"github.com/welldanyogia/webrana-mailcore/internal/repository"
	"github.com/welldanyogia/webrana-mailcore/internal/storage"
	"gorm.io/gorm"
)

// Deps are the collaborators shared by every service
type Deps struct {
	Tx        *database.Transactor
	Storage   storage.FileStorage
	Publisher events.Publisher
	Logger    *slog.Logger
	Audit     *logger.AuditLogger
}

func (d Deps) withDefaults() Deps {
	d.Logger = logger.OrDefault(d.Logger)
	if d.Publisher == nil {
		d.Publisher = events.Discard{}
	}
	if d.Audit == nil {
		d.Audit = logger.NewAuditLogger(d.Logger)
	}
	return d
}

// core runs mutations as units of work: message writes in fn, then chain
// reprocessing, then the counter flush, all in one retryable transaction.
type core struct {
	deps       Deps
	aggregator *ChainAggregator
	counters   *FolderCounterService
}

func newCore(deps Deps) *core {
	deps = deps.withDefaults()
	return &core{
		deps:       deps,
		aggregator: NewChainAggregator(deps.Logger),
		counters:   NewFolderCounterService(deps),
	}
}

func (c *core) repos() *repository.Repositories {
	return repository.New(c.deps.Tx.DB(), c.deps.Storage)
}

// mutate runs fn as a unit of work and publishes its events after commit.
// An integrity violation rolls everything back and rebuilds the scope's counters.
func (c *core) mutate(ctx context.Context, scope models.Scope, fn func(u *unitOfWork) error) error {
	if !scope.Valid() {
		return apperrors.InvalidInput("tenant and user are required")
	}

	var done *unitOfWork
	err := c.deps.Tx.Run(ctx, func(tx *gorm.DB) error {
		u := newUnitOfWork(ctx, scope, tx, c.deps.Storage)
		if err := fn(u); err != nil {
			return err
		}
		if err := c.aggregator.processChains(u); err != nil {
			return err
		}
		if err := c.counters.flush(u); err != nil {
			return err
		}
		done = u
		return nil
	})
	if err != nil {
		if apperrors.IsIntegrity(err) {
			c.repair(ctx, scope, err)
		}
		return err
	}

	for _, e := range done.events {
		c.deps.Publisher.Publish(e)
	}
	if done.countersChanged() {
		e := events.New(events.CountersChanged, scope)
		e.MailboxIDs = done.mailboxIDs()
		c.deps.Publisher.Publish(e)
	}
	return nil
}

func (c *core) repair(ctx context.Context, scope models.Scope, cause error) {
	c.deps.Audit.IntegrityViolation(scope, cause.Error())
	if err := c.counters.RecalculateFolders(context.WithoutCancel(ctx), scope, ReasonIntegrity); err != nil {
		c.deps.Logger.Error("counter repair failed",
			slog.Uint64("tenant_id", uint64(scope.TenantID)),
			slog.String("user_id", scope.UserID),
			slog.String("error", err.Error()),
		)
	}
}

// notFound maps repository.ErrNotFound to a resource specific sentinel
func notFound(err error, sentinel error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return sentinel
	}
	return err
}

func messageIDs(msgs []models.Message) []uint {
	ids := make([]uint, len(msgs))
	for i := range msgs {
		ids[i] = msgs[i].ID
	}
	return ids
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == 0 {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
