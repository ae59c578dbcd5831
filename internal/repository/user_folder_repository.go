package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"gorm.io/gorm"
)

// UserFolderRepository defines the interface for user folder data access
type UserFolderRepository interface {
	Create(ctx context.Context, folder *models.UserFolder) error
	GetByID(ctx context.Context, scope models.Scope, id uint) (*models.UserFolder, error)
	List(ctx context.Context, scope models.Scope) ([]models.UserFolder, error)
	Rename(ctx context.Context, scope models.Scope, id uint, name string) error
	Delete(ctx context.Context, scope models.Scope, id uint) error
	ApplyDelta(ctx context.Context, scope models.Scope, id uint, delta models.CounterDelta) (bool, error)
	ReplaceCounts(ctx context.Context, scope models.Scope, counts map[uint]models.Counts) error
}

// userFolderRepository implements UserFolderRepository using GORM
type userFolderRepository struct {
	db *gorm.DB
}

// NewUserFolderRepository creates a new UserFolderRepository instance
func NewUserFolderRepository(db *gorm.DB) UserFolderRepository {
	return &userFolderRepository{db: db}
}

// Create creates a new user folder with zeroed counters
func (r *userFolderRepository) Create(ctx context.Context, folder *models.UserFolder) error {
	result := r.db.WithContext(ctx).Create(folder)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return fmt.Errorf("user folder '%s' already exists: %w", folder.Name, ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create user folder: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a user folder of the scope
func (r *userFolderRepository) GetByID(ctx context.Context, scope models.Scope, id uint) (*models.UserFolder, error) {
	var folder models.UserFolder
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", scope.TenantID, scope.UserID).
		First(&folder, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user folder by ID: %w", result.Error)
	}
	return &folder, nil
}

// List returns the user folders of a scope ordered by name
func (r *userFolderRepository) List(ctx context.Context, scope models.Scope) ([]models.UserFolder, error) {
	var folders []models.UserFolder
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", scope.TenantID, scope.UserID).
		Order("name").
		Find(&folders)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list user folders: %w", result.Error)
	}
	return folders, nil
}

// Rename changes the display name of a user folder
func (r *userFolderRepository) Rename(ctx context.Context, scope models.Scope, id uint, name string) error {
	result := r.db.WithContext(ctx).Model(&models.UserFolder{}).
		Where("tenant_id = ? AND user_id = ? AND id = ?", scope.TenantID, scope.UserID, id).
		Updates(map[string]interface{}{"name": name, "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("failed to rename user folder: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete deletes a user folder row
func (r *userFolderRepository) Delete(ctx context.Context, scope models.Scope, id uint) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", scope.TenantID, scope.UserID).
		Delete(&models.UserFolder{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete user folder: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyDelta adds delta to the user folder counters in one conditional update.
// It returns false without error when the folder is gone or a count would go out of range.
func (r *userFolderRepository) ApplyDelta(ctx context.Context, scope models.Scope, id uint, delta models.CounterDelta) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.UserFolder{}).
		Where("tenant_id = ? AND user_id = ? AND id = ?", scope.TenantID, scope.UserID, id)

	result := counterGuard(query, delta).Updates(counterAssignments(delta))
	if result.Error != nil {
		return false, fmt.Errorf("failed to apply user folder delta: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ReplaceCounts overwrites the counters of every user folder of the scope; folders missing from counts are zeroed
func (r *userFolderRepository) ReplaceCounts(ctx context.Context, scope models.Scope, counts map[uint]models.Counts) error {
	folders, err := r.List(ctx, scope)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, f := range folders {
		c := counts[f.ID]
		result := r.db.WithContext(ctx).Model(&models.UserFolder{}).
			Where("id = ?", f.ID).
			Updates(map[string]interface{}{
				"unread_messages":      c.UnreadMessages,
				"total_messages":       c.TotalMessages,
				"unread_conversations": c.UnreadConversations,
				"total_conversations":  c.TotalConversations,
				"updated_at":           now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to replace user folder counters: %w", result.Error)
		}
	}
	return nil
}
