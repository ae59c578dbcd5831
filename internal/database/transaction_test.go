package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/welldanyogia/webrana-mailcore/internal/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const bumpTotal = "UPDATE folder_counters SET total_messages = total_messages + 1"

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	// GORM pings during initialization
	mock.ExpectPing()

	dialector := postgres.New(postgres.Config{
		Conn:       db,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gormDB, mock, func() { db.Close() }
}

func fastConfig(retries int) TxConfig {
	return TxConfig{MaxRetries: retries, Backoff: time.Millisecond}
}

func TestTransactor_Run_RetriesDeadlock(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(bumpTotal)).WillReturnError(&pgconn.PgError{Code: "40P01", Message: "deadlock detected"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(bumpTotal)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tr := NewTransactor(gormDB, fastConfig(3), nil)
	calls := 0
	err := tr.Run(context.Background(), func(tx *gorm.DB) error {
		calls++
		return tx.Exec(bumpTotal).Error
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_Run_DoesNotRetryLogicalError(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectRollback()

	tr := NewTransactor(gormDB, fastConfig(3), nil)
	calls := 0
	err := tr.Run(context.Background(), func(tx *gorm.DB) error {
		calls++
		return apperrors.Integrity("chain x is empty")
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsIntegrity(err))
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_Run_ExhaustedRetriesSurfaceTransient(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(bumpTotal)).WillReturnError(&pgconn.PgError{Code: "40001"})
		mock.ExpectRollback()
	}

	tr := NewTransactor(gormDB, fastConfig(1), nil)
	err := tr.Run(context.Background(), func(tx *gorm.DB) error {
		return tx.Exec(bumpTotal).Error
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsTransient(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_Run_RetryBudgetCountsAttempts(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	for i := 0; i < 3; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	tr := NewTransactor(gormDB, fastConfig(2), nil)
	calls := 0
	err := tr.Run(context.Background(), func(tx *gorm.DB) error {
		calls++
		return fmt.Errorf("create chain: %w", ErrConflict)
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsTransient(err))
	assert.ErrorContains(t, err, "after 3 attempts")
	assert.Equal(t, 3, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_Run_StopsOnCancelledContext(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(bumpTotal)).WillReturnError(&pgconn.PgError{Code: "40P01"})
	mock.ExpectRollback()

	ctx, cancel := context.WithCancel(context.Background())
	tr := NewTransactor(gormDB, TxConfig{MaxRetries: 5, Backoff: time.Hour}, nil)

	err := tr.Run(ctx, func(tx *gorm.DB) error {
		err := tx.Exec(bumpTotal).Error
		cancel()
		return err
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultTxConfig_ReadCommittedOnPostgres(t *testing.T) {
	gormDB, _, cleanup := setupMockDB(t)
	defer cleanup()

	cfg := DefaultTxConfig(gormDB)
	assert.Equal(t, sql.LevelReadCommitted, cfg.Isolation)
	assert.Equal(t, DefaultTxMaxRetries, cfg.MaxRetries)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"serialization", fmt.Errorf("update: %w", &pgconn.PgError{Code: "40001"}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"bad conn", driver.ErrBadConn, true},
		{"sqlite busy", errors.New("database is locked"), true},
		{"canceled", context.Canceled, false},
		{"logical", apperrors.ErrInvalidInput, false},
		{"chain conflict", fmt.Errorf("create chain: %w", ErrConflict), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
