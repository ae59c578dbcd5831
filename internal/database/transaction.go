package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	apperrors "github.com/welldanyogia/webrana-mailcore/internal/errors"
	"github.com/welldanyogia/webrana-mailcore/internal/metrics"
	"gorm.io/gorm"
)

// Transaction retry defaults
const (
	DefaultTxMaxRetries = 3
	DefaultTxBackoff    = 50 * time.Millisecond
)

// TxConfig controls retry behaviour of a Transactor
type TxConfig struct {
	MaxRetries int
	Backoff    time.Duration
	Isolation  sql.IsolationLevel
}

// DefaultTxConfig returns retry defaults with the isolation level suited to the dialect.
// PostgreSQL runs read committed; SQLite keeps its default serialized mode.
func DefaultTxConfig(db *gorm.DB) TxConfig {
	cfg := TxConfig{
		MaxRetries: DefaultTxMaxRetries,
		Backoff:    DefaultTxBackoff,
	}
	if db != nil && db.Dialector.Name() == "postgres" {
		cfg.Isolation = sql.LevelReadCommitted
	}
	return cfg
}

// ErrConflict marks a write that lost a race with a concurrent transaction.
// Run retries it like any other transient failure.
var ErrConflict = errors.New("concurrent write conflict")

// TxFunc is a unit of work executed inside a transaction
type TxFunc func(tx *gorm.DB) error

// Transactor runs units of work in transactions, retrying transient failures
type Transactor struct {
	db     *gorm.DB
	cfg    TxConfig
	logger *slog.Logger
}

// NewTransactor creates a new Transactor
func NewTransactor(db *gorm.DB, cfg TxConfig, logger *slog.Logger) *Transactor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Transactor{db: db, cfg: cfg, logger: logger}
}

// DB returns the connection the transactor opens transactions on
func (t *Transactor) DB() *gorm.DB {
	return t.db
}

// Run executes fn in a transaction. Transient failures roll back and rerun fn
// up to MaxRetries times with jittered exponential backoff starting at
// Backoff; any other error is returned after the first attempt.
// An exhausted retry budget is reported as ErrTransient.
func (t *Transactor) Run(ctx context.Context, fn TxFunc) error {
	var opts []*sql.TxOptions
	if t.cfg.Isolation != sql.LevelDefault {
		opts = append(opts, &sql.TxOptions{Isolation: t.cfg.Isolation})
	}

	attempts := 0
	operation := func() error {
		attempts++
		err := t.db.WithContext(ctx).Transaction(fn, opts...)
		if err != nil && !IsTransient(err) {
			metrics.TxFailures.WithLabelValues("logical").Inc()
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		metrics.TxRetries.Inc()
		t.logger.Warn("retrying transaction after transient failure",
			slog.Int("attempt", attempts),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(t.retryPolicy(), ctx), notify)
	if err == nil || !IsTransient(err) {
		return err
	}

	metrics.TxFailures.WithLabelValues("transient").Inc()
	t.logger.Error("transaction failed after retries",
		slog.Int("attempts", attempts),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("transaction failed after %d attempts: %v: %w", attempts, err, apperrors.ErrTransient)
}

func (t *Transactor) retryPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.cfg.Backoff
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, uint64(t.cfg.MaxRetries))
}

// PostgreSQL SQLSTATE codes that are safe to retry
var transientPgCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"57P01": true, // admin_shutdown
	"08000": true, // connection_exception
	"08003": true, // connection_does_not_exist
	"08006": true, // connection_failure
}

// IsTransient reports whether err is a deadlock, serialization or connection
// failure that a fresh transaction attempt may not hit again.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if errors.Is(err, ErrConflict) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return transientPgCodes[pgErr.Code]
	}

	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "connection reset by peer")
}
