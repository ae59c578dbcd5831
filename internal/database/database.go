package database

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connection pool configuration
const (
	DefaultMaxIdleConns    = 10
	DefaultMaxOpenConns    = 100
	DefaultConnMaxLifetime = time.Hour
	DefaultConnMaxIdleTime = 10 * time.Minute
)

// PoolConfig holds connection pool limits
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPoolConfig returns the default pool limits
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:    DefaultMaxIdleConns,
		MaxOpenConns:    DefaultMaxOpenConns,
		ConnMaxLifetime: DefaultConnMaxLifetime,
		ConnMaxIdleTime: DefaultConnMaxIdleTime,
	}
}

// Connect establishes a connection using the default pool configuration.
// URLs starting with "sqlite:" open an embedded SQLite database, everything else is PostgreSQL.
func Connect(databaseURL string) (*gorm.DB, error) {
	return ConnectWithConfig(databaseURL, DefaultPoolConfig(), logger.Warn)
}

// ConnectWithConfig establishes a connection with custom pool configuration
func ConnectWithConfig(databaseURL string, pool PoolConfig, logLevel logger.LogLevel) (*gorm.DB, error) {
	// Validate SSL mode in production
	env := os.Getenv("APP_ENV")
	if env == "production" && !IsSQLiteURL(databaseURL) {
		if err := validateSSLMode(databaseURL); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(openDialector(databaseURL), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows a single writer; one connection avoids "database is locked" churn.
	if IsSQLiteURL(databaseURL) {
		pool.MaxOpenConns = 1
		pool.MaxIdleConns = 1
	}

	if err := configureConnectionPool(db, pool); err != nil {
		return nil, err
	}

	slog.Info("Connected to database successfully", slog.String("dialect", db.Dialector.Name()))
	return db, nil
}

// IsSQLiteURL reports whether the URL selects the embedded SQLite driver
func IsSQLiteURL(databaseURL string) bool {
	return strings.HasPrefix(databaseURL, "sqlite:")
}

func openDialector(databaseURL string) gorm.Dialector {
	if IsSQLiteURL(databaseURL) {
		return sqlite.Open(strings.TrimPrefix(databaseURL, "sqlite:"))
	}
	return postgres.Open(databaseURL)
}

// validateSSLMode ensures SSL is enabled in production
func validateSSLMode(databaseURL string) error {
	// Check if sslmode is explicitly disabled
	if strings.Contains(databaseURL, "sslmode=disable") {
		return fmt.Errorf("SSL mode cannot be disabled in production")
	}

	// If no sslmode specified, it's okay (defaults to prefer/require depending on server)
	return nil
}

// configureConnectionPool sets up connection pool limits
func configureConnectionPool(db *gorm.DB, pool PoolConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	return nil
}

// AllModels lists every persisted model in migration order
func AllModels() []interface{} {
	return []interface{}{
		&models.Mailbox{},
		&models.Message{},
		&models.Attachment{},
		&models.Chain{},
		&models.FolderCounter{},
		&models.UserFolder{},
		&models.Tag{},
		&models.TagMessage{},
		&models.FilterRule{},
		&models.QuotaUsage{},
	}
}

// Migrate runs auto-migration for all models
func Migrate(db *gorm.DB) error {
	slog.Info("Running database migrations...")

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("Database migrations completed successfully")
	return nil
}

// Close closes the database connection
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}
