package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"gorm.io/gorm"
)

// FilterRuleRepository defines the interface for filter rule data access
type FilterRuleRepository interface {
	Create(ctx context.Context, rule *models.FilterRule) error
	GetByID(ctx context.Context, scope models.Scope, id uint) (*models.FilterRule, error)
	List(ctx context.Context, scope models.Scope) ([]models.FilterRule, error)
	ListEnabled(ctx context.Context, scope models.Scope) ([]models.FilterRule, error)
	Update(ctx context.Context, rule *models.FilterRule) error
	SetEnabled(ctx context.Context, scope models.Scope, id uint, enabled bool) error
	Delete(ctx context.Context, scope models.Scope, id uint) error
}

// filterRuleRepository implements FilterRuleRepository using GORM
type filterRuleRepository struct {
	db *gorm.DB
}

// NewFilterRuleRepository creates a new FilterRuleRepository instance
func NewFilterRuleRepository(db *gorm.DB) FilterRuleRepository {
	return &filterRuleRepository{db: db}
}

// Create creates a new filter rule
func (r *filterRuleRepository) Create(ctx context.Context, rule *models.FilterRule) error {
	result := r.db.WithContext(ctx).Create(rule)
	if result.Error != nil {
		return fmt.Errorf("failed to create filter rule: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a filter rule of the scope
func (r *filterRuleRepository) GetByID(ctx context.Context, scope models.Scope, id uint) (*models.FilterRule, error) {
	var rule models.FilterRule
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", scope.TenantID, scope.UserID).
		First(&rule, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get filter rule by ID: %w", result.Error)
	}
	return &rule, nil
}

// List returns every rule of the scope in evaluation order
func (r *filterRuleRepository) List(ctx context.Context, scope models.Scope) ([]models.FilterRule, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("tenant_id = ? AND user_id = ?", scope.TenantID, scope.UserID))
}

// ListEnabled returns the enabled rules of the scope in evaluation order
func (r *filterRuleRepository) ListEnabled(ctx context.Context, scope models.Scope) ([]models.FilterRule, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("tenant_id = ? AND user_id = ? AND enabled = ?", scope.TenantID, scope.UserID, true))
}

func (r *filterRuleRepository) list(_ context.Context, query *gorm.DB) ([]models.FilterRule, error) {
	var rules []models.FilterRule
	if err := query.Order("position, id").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to list filter rules: %w", err)
	}
	return rules, nil
}

// Update saves every field of the rule
func (r *filterRuleRepository) Update(ctx context.Context, rule *models.FilterRule) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", rule.TenantID, rule.UserID).
		Select("*").Omit("created_at").
		Updates(rule)
	if result.Error != nil {
		return fmt.Errorf("failed to update filter rule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEnabled toggles a rule
func (r *filterRuleRepository) SetEnabled(ctx context.Context, scope models.Scope, id uint, enabled bool) error {
	result := r.db.WithContext(ctx).Model(&models.FilterRule{}).
		Where("tenant_id = ? AND user_id = ? AND id = ?", scope.TenantID, scope.UserID, id).
		Update("enabled", enabled)
	if result.Error != nil {
		return fmt.Errorf("failed to update filter rule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete deletes a filter rule
func (r *filterRuleRepository) Delete(ctx context.Context, scope models.Scope, id uint) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", scope.TenantID, scope.UserID).
		Delete(&models.FilterRule{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete filter rule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
