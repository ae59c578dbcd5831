package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"gorm.io/gorm"
)

// QuotaRepository defines the interface for storage quota accounting
type QuotaRepository interface {
	Adjust(ctx context.Context, scope models.Scope, deltaBytes int64) error
	Get(ctx context.Context, scope models.Scope) (*models.QuotaUsage, error)
}

// quotaRepository implements QuotaRepository using GORM
type quotaRepository struct {
	db *gorm.DB
}

// NewQuotaRepository creates a new QuotaRepository instance
func NewQuotaRepository(db *gorm.DB) QuotaRepository {
	return &quotaRepository{db: db}
}

// Adjust adds deltaBytes to the scope's usage, never going below zero
func (r *quotaRepository) Adjust(ctx context.Context, scope models.Scope, deltaBytes int64) error {
	if deltaBytes == 0 {
		return nil
	}

	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.QuotaUsage{}).
		Where("tenant_id = ? AND user_id = ?", scope.TenantID, scope.UserID).
		Updates(map[string]interface{}{
			"used_bytes": gorm.Expr("CASE WHEN used_bytes + ? < 0 THEN 0 ELSE used_bytes + ? END", deltaBytes, deltaBytes),
			"updated_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to adjust quota: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	usage := models.QuotaUsage{TenantID: scope.TenantID, UserID: scope.UserID, UpdatedAt: now}
	if deltaBytes > 0 {
		usage.UsedBytes = deltaBytes
	}
	if err := r.db.WithContext(ctx).Create(&usage).Error; err != nil {
		return fmt.Errorf("failed to create quota usage: %w", err)
	}
	return nil
}

// Get returns the scope's usage; a scope without a row has used nothing
func (r *quotaRepository) Get(ctx context.Context, scope models.Scope) (*models.QuotaUsage, error) {
	var usage models.QuotaUsage
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", scope.TenantID, scope.UserID).
		First(&usage)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return &models.QuotaUsage{TenantID: scope.TenantID, UserID: scope.UserID}, nil
		}
		return nil, fmt.Errorf("failed to get quota usage: %w", result.Error)
	}
	return &usage, nil
}
