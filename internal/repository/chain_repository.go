package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"gorm.io/gorm"
)

// ChainRepository defines the interface for conversation row data access
type ChainRepository interface {
	Get(ctx context.Context, scope models.Scope, key models.ChainKey) (*models.Chain, error)
	Create(ctx context.Context, chain *models.Chain) error
	Update(ctx context.Context, chain *models.Chain) error
	Delete(ctx context.Context, scope models.Scope, key models.ChainKey) error
	DeleteByMailbox(ctx context.Context, mailboxID uint) error
	ListByFolder(ctx context.Context, scope models.Scope, mailboxID uint, loc models.Location, limit, offset int) ([]models.Chain, int64, error)
	CountByLocation(ctx context.Context, scope models.Scope) ([]LocationCount, error)
}

// chainRepository implements ChainRepository using GORM
type chainRepository struct {
	db *gorm.DB
}

// NewChainRepository creates a new ChainRepository instance
func NewChainRepository(db *gorm.DB) ChainRepository {
	return &chainRepository{db: db}
}

func whereChainKey(db *gorm.DB, scope models.Scope, key models.ChainKey) *gorm.DB {
	return db.Where("tenant_id = ? AND user_id = ?", scope.TenantID, scope.UserID).
		Where("mailbox_id = ? AND folder = ? AND user_folder_id = ? AND chain_id = ?", key.MailboxID, key.Folder, key.UserFolderID, key.ChainID)
}

// Get reads a chain row, locking it for the rest of the transaction where supported
func (r *chainRepository) Get(ctx context.Context, scope models.Scope, key models.ChainKey) (*models.Chain, error) {
	var chain models.Chain
	result := whereChainKey(forUpdate(r.db.WithContext(ctx)), scope, key).First(&chain)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get chain: %w", result.Error)
	}
	return &chain, nil
}

// Create inserts a new chain row
func (r *chainRepository) Create(ctx context.Context, chain *models.Chain) error {
	result := r.db.WithContext(ctx).Create(chain)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return fmt.Errorf("chain %s already exists: %w", chain.ChainID, ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create chain: %w", result.Error)
	}
	return nil
}

// Update overwrites the aggregate columns of an existing chain row
func (r *chainRepository) Update(ctx context.Context, chain *models.Chain) error {
	result := whereChainKey(r.db.WithContext(ctx).Model(&models.Chain{}), chain.Scope(), chain.Key()).
		Updates(map[string]interface{}{
			"length":          chain.Length,
			"date_sent":       chain.DateSent,
			"unread":          chain.Unread,
			"has_attachments": chain.HasAttachments,
			"important":       chain.Important,
			"tags":            chain.Tags,
			"subject":         chain.Subject,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update chain: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a chain row
func (r *chainRepository) Delete(ctx context.Context, scope models.Scope, key models.ChainKey) error {
	result := whereChainKey(r.db.WithContext(ctx), scope, key).Delete(&models.Chain{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete chain: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByMailbox removes every chain row of a mailbox
func (r *chainRepository) DeleteByMailbox(ctx context.Context, mailboxID uint) error {
	result := r.db.WithContext(ctx).Where("mailbox_id = ?", mailboxID).Delete(&models.Chain{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete mailbox chains: %w", result.Error)
	}
	return nil
}

// ListByFolder lists conversations of a mailbox location, most recent first
func (r *chainRepository) ListByFolder(ctx context.Context, scope models.Scope, mailboxID uint, loc models.Location, limit, offset int) ([]models.Chain, int64, error) {
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Chain{}).
		Where("tenant_id = ? AND user_id = ? AND mailbox_id = ?", scope.TenantID, scope.UserID, mailboxID).
		Where("folder = ? AND user_folder_id = ?", loc.Folder, loc.UserFolderID).
		Session(&gorm.Session{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count chains: %w", err)
	}

	var chains []models.Chain
	if err := query.Order("date_sent DESC").Limit(limit).Offset(offset).Find(&chains).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list chains: %w", err)
	}

	return chains, total, nil
}

// CountByLocation tallies conversation rows of the scope per folder and user folder
func (r *chainRepository) CountByLocation(ctx context.Context, scope models.Scope) ([]LocationCount, error) {
	var rows []LocationCount
	result := r.db.WithContext(ctx).Model(&models.Chain{}).
		Select("folder, user_folder_id, COUNT(*) AS total, COALESCE(SUM(CASE WHEN unread = ? THEN 1 ELSE 0 END), 0) AS unread", true).
		Where("tenant_id = ? AND user_id = ?", scope.TenantID, scope.UserID).
		Group("folder, user_folder_id").
		Scan(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to count chains by location: %w", result.Error)
	}
	return rows, nil
}
