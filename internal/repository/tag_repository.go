package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TagRepository defines the interface for tags and their message links
type TagRepository interface {
	Create(ctx context.Context, tag *models.Tag) error
	GetByID(ctx context.Context, scope models.Scope, id uint) (*models.Tag, error)
	List(ctx context.Context, scope models.Scope) ([]models.Tag, error)
	Delete(ctx context.Context, scope models.Scope, id uint) error
	Associate(ctx context.Context, tagID uint, messageIDs []uint) error
	Disassociate(ctx context.Context, tagID uint, messageIDs []uint) error
	ClearMessages(ctx context.Context, messageIDs []uint) ([]uint, error)
	Recount(ctx context.Context, tagIDs []uint) error
	TagIDsByMessage(ctx context.Context, messageIDs []uint) (map[uint][]uint, error)
	MessageIDs(ctx context.Context, tagID uint) ([]uint, error)
}

// tagRepository implements TagRepository using GORM
type tagRepository struct {
	db *gorm.DB
}

// NewTagRepository creates a new TagRepository instance
func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

// Create creates a new tag
func (r *tagRepository) Create(ctx context.Context, tag *models.Tag) error {
	result := r.db.WithContext(ctx).Create(tag)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return fmt.Errorf("tag '%s' already exists: %w", tag.Name, ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create tag: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a tag of the scope
func (r *tagRepository) GetByID(ctx context.Context, scope models.Scope, id uint) (*models.Tag, error) {
	var tag models.Tag
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", scope.TenantID, scope.UserID).
		First(&tag, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get tag by ID: %w", result.Error)
	}
	return &tag, nil
}

// List returns the tags of a scope ordered by name
func (r *tagRepository) List(ctx context.Context, scope models.Scope) ([]models.Tag, error) {
	var tags []models.Tag
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", scope.TenantID, scope.UserID).
		Order("name").
		Find(&tags)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list tags: %w", result.Error)
	}
	return tags, nil
}

// Delete deletes a tag and its message links
func (r *tagRepository) Delete(ctx context.Context, scope models.Scope, id uint) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("tag_id = ?", id).Delete(&models.TagMessage{}).Error; err != nil {
		return fmt.Errorf("failed to delete tag links: %w", err)
	}
	result := db.Where("tenant_id = ? AND user_id = ?", scope.TenantID, scope.UserID).Delete(&models.Tag{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete tag: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Associate links the tag to every message, ignoring existing links
func (r *tagRepository) Associate(ctx context.Context, tagID uint, messageIDs []uint) error {
	if len(messageIDs) == 0 {
		return nil
	}
	links := make([]models.TagMessage, len(messageIDs))
	for i, id := range messageIDs {
		links[i] = models.TagMessage{TagID: tagID, MessageID: id}
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&links, maxInParams/2)
	if result.Error != nil {
		return fmt.Errorf("failed to associate tag: %w", result.Error)
	}
	return nil
}

// Disassociate removes the tag from the messages
func (r *tagRepository) Disassociate(ctx context.Context, tagID uint, messageIDs []uint) error {
	for _, part := range chunk(messageIDs, maxInParams) {
		result := r.db.WithContext(ctx).Where("tag_id = ? AND message_id IN ?", tagID, part).Delete(&models.TagMessage{})
		if result.Error != nil {
			return fmt.Errorf("failed to disassociate tag: %w", result.Error)
		}
	}
	return nil
}

// ClearMessages removes every tag link of the messages and returns the tags that lost links
func (r *tagRepository) ClearMessages(ctx context.Context, messageIDs []uint) ([]uint, error) {
	seen := make(map[uint]struct{})
	var tagIDs []uint
	for _, part := range chunk(messageIDs, maxInParams) {
		var ids []uint
		db := r.db.WithContext(ctx)
		if err := db.Model(&models.TagMessage{}).Distinct("tag_id").Where("message_id IN ?", part).Pluck("tag_id", &ids).Error; err != nil {
			return nil, fmt.Errorf("failed to read tag links: %w", err)
		}
		if err := db.Where("message_id IN ?", part).Delete(&models.TagMessage{}).Error; err != nil {
			return nil, fmt.Errorf("failed to clear tag links: %w", err)
		}
		for _, id := range ids {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				tagIDs = append(tagIDs, id)
			}
		}
	}
	return tagIDs, nil
}

// Recount recomputes the usage count of tags from their links to live messages
func (r *tagRepository) Recount(ctx context.Context, tagIDs []uint) error {
	for _, part := range chunk(tagIDs, maxInParams) {
		result := r.db.WithContext(ctx).Exec(`
			UPDATE tags SET count = (
				SELECT COUNT(*) FROM tag_messages tm
				JOIN messages m ON m.id = tm.message_id
				WHERE tm.tag_id = tags.id AND m.removed = ?
			)
			WHERE id IN ?`, false, part)
		if result.Error != nil {
			return fmt.Errorf("failed to recount tags: %w", result.Error)
		}
	}
	return nil
}

// TagIDsByMessage returns the tag ids linked to each message
func (r *tagRepository) TagIDsByMessage(ctx context.Context, messageIDs []uint) (map[uint][]uint, error) {
	out := make(map[uint][]uint)
	for _, part := range chunk(messageIDs, maxInParams) {
		var links []models.TagMessage
		if err := r.db.WithContext(ctx).Where("message_id IN ?", part).Find(&links).Error; err != nil {
			return nil, fmt.Errorf("failed to read tag links: %w", err)
		}
		for _, l := range links {
			out[l.MessageID] = append(out[l.MessageID], l.TagID)
		}
	}
	return out, nil
}

// MessageIDs returns the ids of the messages carrying the tag
func (r *tagRepository) MessageIDs(ctx context.Context, tagID uint) ([]uint, error) {
	var ids []uint
	result := r.db.WithContext(ctx).Model(&models.TagMessage{}).Where("tag_id = ?", tagID).Order("message_id").Pluck("message_id", &ids)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list tagged messages: %w", result.Error)
	}
	return ids, nil
}
