package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FolderCounterRepository defines the interface for built-in folder counters
type FolderCounterRepository interface {
	ApplyDelta(ctx context.Context, scope models.Scope, folder models.Folder, delta models.CounterDelta) (bool, error)
	List(ctx context.Context, scope models.Scope) ([]models.FolderCounter, error)
	Replace(ctx context.Context, scope models.Scope, counts map[models.Folder]models.Counts) error
	EnsureRows(ctx context.Context, scope models.Scope) error
}

// folderCounterRepository implements FolderCounterRepository using GORM
type folderCounterRepository struct {
	db *gorm.DB
}

// NewFolderCounterRepository creates a new FolderCounterRepository instance
func NewFolderCounterRepository(db *gorm.DB) FolderCounterRepository {
	return &folderCounterRepository{db: db}
}

// counterGuard restricts a counter update to rows that stay consistent after the delta
func counterGuard(db *gorm.DB, d models.CounterDelta) *gorm.DB {
	return db.
		Where("unread_messages + ? >= 0", d.Unread).
		Where("total_messages + ? >= unread_messages + ?", d.Total, d.Unread).
		Where("unread_conversations + ? >= 0", d.UnreadConv).
		Where("total_conversations + ? >= unread_conversations + ?", d.TotalConv, d.UnreadConv)
}

func counterAssignments(d models.CounterDelta) map[string]interface{} {
	return map[string]interface{}{
		"unread_messages":      gorm.Expr("unread_messages + ?", d.Unread),
		"total_messages":       gorm.Expr("total_messages + ?", d.Total),
		"unread_conversations": gorm.Expr("unread_conversations + ?", d.UnreadConv),
		"total_conversations":  gorm.Expr("total_conversations + ?", d.TotalConv),
		"updated_at":           time.Now(),
	}
}

// ApplyDelta adds delta to the folder row in one conditional update.
// It returns false without error when the row is missing or a count would
// leave the total >= unread >= 0 range.
func (r *folderCounterRepository) ApplyDelta(ctx context.Context, scope models.Scope, folder models.Folder, delta models.CounterDelta) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.FolderCounter{}).
		Where("tenant_id = ? AND user_id = ? AND folder = ?", scope.TenantID, scope.UserID, folder)

	result := counterGuard(query, delta).Updates(counterAssignments(delta))
	if result.Error != nil {
		return false, fmt.Errorf("failed to apply folder counter delta: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// List returns the counter rows of a scope ordered by folder
func (r *folderCounterRepository) List(ctx context.Context, scope models.Scope) ([]models.FolderCounter, error) {
	var counters []models.FolderCounter
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", scope.TenantID, scope.UserID).
		Order("folder").
		Find(&counters)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list folder counters: %w", result.Error)
	}
	return counters, nil
}

// Replace overwrites the counters of every built-in folder; folders missing from counts are zeroed
func (r *folderCounterRepository) Replace(ctx context.Context, scope models.Scope, counts map[models.Folder]models.Counts) error {
	now := time.Now()
	rows := make([]models.FolderCounter, 0, len(models.AllFolders))
	for _, folder := range models.AllFolders {
		c := counts[folder]
		rows = append(rows, models.FolderCounter{
			TenantID:            scope.TenantID,
			UserID:              scope.UserID,
			Folder:              folder,
			UnreadMessages:      c.UnreadMessages,
			TotalMessages:       c.TotalMessages,
			UnreadConversations: c.UnreadConversations,
			TotalConversations:  c.TotalConversations,
			UpdatedAt:           now,
		})
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "user_id"}, {Name: "folder"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"unread_messages", "total_messages", "unread_conversations", "total_conversations", "updated_at",
		}),
	}).Create(&rows)
	if result.Error != nil {
		return fmt.Errorf("failed to replace folder counters: %w", result.Error)
	}
	return nil
}

// EnsureRows creates zeroed counter rows for folders that have none yet
func (r *folderCounterRepository) EnsureRows(ctx context.Context, scope models.Scope) error {
	now := time.Now()
	rows := make([]models.FolderCounter, 0, len(models.AllFolders))
	for _, folder := range models.AllFolders {
		rows = append(rows, models.FolderCounter{
			TenantID:  scope.TenantID,
			UserID:    scope.UserID,
			Folder:    folder,
			UpdatedAt: now,
		})
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
	if result.Error != nil {
		return fmt.Errorf("failed to create folder counters: %w", result.Error)
	}
	return nil
}
