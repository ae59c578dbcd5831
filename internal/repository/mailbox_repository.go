package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"gorm.io/gorm"
)

// MailboxRepository defines the interface for mailbox data access
type MailboxRepository interface {
	Create(ctx context.Context, mailbox *models.Mailbox) error
	GetByID(ctx context.Context, scope models.Scope, id uint) (*models.Mailbox, error)
	GetByAddress(ctx context.Context, address string) (*models.Mailbox, error)
	List(ctx context.Context, scope models.Scope) ([]models.Mailbox, error)
	ListScopes(ctx context.Context) ([]models.Scope, error)
	UpdateLastAccessed(ctx context.Context, id uint) error
	Delete(ctx context.Context, scope models.Scope, id uint) error
}

// mailboxRepository implements MailboxRepository using GORM
type mailboxRepository struct {
	db *gorm.DB
}

// NewMailboxRepository creates a new MailboxRepository instance
func NewMailboxRepository(db *gorm.DB) MailboxRepository {
	return &mailboxRepository{db: db}
}

// Create creates a new mailbox
func (r *mailboxRepository) Create(ctx context.Context, mailbox *models.Mailbox) error {
	mailbox.Address = strings.ToLower(mailbox.Address)
	result := r.db.WithContext(ctx).Create(mailbox)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return fmt.Errorf("mailbox with address '%s' already exists: %w", mailbox.Address, ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create mailbox: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a mailbox of the scope by its ID
func (r *mailboxRepository) GetByID(ctx context.Context, scope models.Scope, id uint) (*models.Mailbox, error) {
	var mailbox models.Mailbox
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", scope.TenantID, scope.UserID).
		First(&mailbox, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get mailbox by ID: %w", result.Error)
	}
	return &mailbox, nil
}

// GetByAddress retrieves a mailbox by its email address
func (r *mailboxRepository) GetByAddress(ctx context.Context, address string) (*models.Mailbox, error) {
	var mailbox models.Mailbox
	result := r.db.WithContext(ctx).Where("address = ?", strings.ToLower(address)).First(&mailbox)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get mailbox by address: %w", result.Error)
	}
	return &mailbox, nil
}

// List retrieves the mailboxes of a scope
func (r *mailboxRepository) List(ctx context.Context, scope models.Scope) ([]models.Mailbox, error) {
	var mailboxes []models.Mailbox
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", scope.TenantID, scope.UserID).
		Order("id").
		Find(&mailboxes)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list mailboxes: %w", result.Error)
	}
	return mailboxes, nil
}

// ListScopes returns every tenant user owning at least one mailbox
func (r *mailboxRepository) ListScopes(ctx context.Context) ([]models.Scope, error) {
	var scopes []models.Scope
	result := r.db.WithContext(ctx).Model(&models.Mailbox{}).
		Distinct("tenant_id", "user_id").
		Order("tenant_id, user_id").
		Scan(&scopes)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list scopes: %w", result.Error)
	}
	return scopes, nil
}

// UpdateLastAccessed updates the last_accessed_at timestamp for a mailbox
func (r *mailboxRepository) UpdateLastAccessed(ctx context.Context, id uint) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.Mailbox{}).Where("id = ?", id).Update("last_accessed_at", now)
	if result.Error != nil {
		return fmt.Errorf("failed to update last accessed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete deletes a mailbox of the scope by its ID
func (r *mailboxRepository) Delete(ctx context.Context, scope models.Scope, id uint) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", scope.TenantID, scope.UserID).
		Delete(&models.Mailbox{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete mailbox: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
