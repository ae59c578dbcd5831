package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"gorm.io/gorm"
)

// LocationCount is a per-location message tally used by recalculation
type LocationCount struct {
	Folder       models.Folder
	UserFolderID uint
	Total        int64
	Unread       int64
}

// MessageRepository defines the interface for message data access
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	CreateWithAttachments(ctx context.Context, message *models.Message, attachments []models.Attachment) error
	GetByID(ctx context.Context, scope models.Scope, id uint) (*models.Message, error)
	GetByIDs(ctx context.Context, scope models.Scope, ids []uint) ([]models.Message, error)
	LockByIDs(ctx context.Context, scope models.Scope, ids []uint) ([]models.Message, error)
	FindByMimeID(ctx context.Context, mailboxID uint, mimeID string) (*models.Message, error)
	FindByChainID(ctx context.Context, mailboxID uint, chainID string) (*models.Message, error)
	FindDuplicate(ctx context.Context, mailboxID uint, md5, uidl string) (*models.Message, error)
	ListOrphanReplies(ctx context.Context, mailboxID uint, parentMimeID string) ([]models.Message, error)
	ListChainMembers(ctx context.Context, scope models.Scope, key models.ChainKey) ([]models.Message, error)
	ListByFolder(ctx context.Context, scope models.Scope, mailboxID uint, loc models.Location, limit, offset int) ([]models.MessageListItem, int64, error)
	ListIDsByLocation(ctx context.Context, scope models.Scope, loc models.Location) ([]uint, error)
	ListIDsByMailbox(ctx context.Context, mailboxID uint, afterID uint, limit int) ([]uint, error)
	ListAllIDsByMailbox(ctx context.Context, mailboxID uint) (live []uint, removed []uint, err error)
	ListRemovedBefore(ctx context.Context, before time.Time, limit int) ([]models.Message, error)
	LockRemovedBefore(ctx context.Context, ids []uint, before time.Time) ([]uint, error)
	UpdateFields(ctx context.Context, ids []uint, fields map[string]interface{}) (int64, error)
	RelabelChain(ctx context.Context, mailboxID uint, fromChainID, toChainID string, chainDate time.Time) ([]models.ChainKey, error)
	CountByLocation(ctx context.Context, scope models.Scope) ([]LocationCount, error)
	HardDelete(ctx context.Context, ids []uint) error
}

// messageRepository implements MessageRepository using GORM
type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new MessageRepository instance
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Create creates a new message
func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	result := r.db.WithContext(ctx).Create(message)
	if result.Error != nil {
		return fmt.Errorf("failed to create message: %w", result.Error)
	}
	return nil
}

// CreateWithAttachments creates a message with its attachments
func (r *messageRepository) CreateWithAttachments(ctx context.Context, message *models.Message, attachments []models.Attachment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Attachments").Create(message).Error; err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}

		for i := range attachments {
			attachments[i].MessageID = message.ID
			if err := tx.Create(&attachments[i]).Error; err != nil {
				return fmt.Errorf("failed to create attachment: %w", err)
			}
		}
		message.Attachments = attachments

		return nil
	})
}

// GetByID retrieves a message by its ID with preloaded attachments
func (r *messageRepository) GetByID(ctx context.Context, scope models.Scope, id uint) (*models.Message, error) {
	var message models.Message
	result := r.db.WithContext(ctx).Preload("Attachments").
		Where("tenant_id = ? AND user_id = ?", scope.TenantID, scope.UserID).
		First(&message, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get message by ID: %w", result.Error)
	}
	return &message, nil
}

// GetByIDs retrieves the messages of the scope among ids, ordered by ID
func (r *messageRepository) GetByIDs(ctx context.Context, scope models.Scope, ids []uint) ([]models.Message, error) {
	return r.getByIDs(r.db.WithContext(ctx), scope, ids)
}

// LockByIDs is GetByIDs holding row locks until the transaction ends
func (r *messageRepository) LockByIDs(ctx context.Context, scope models.Scope, ids []uint) ([]models.Message, error) {
	return r.getByIDs(forUpdate(r.db.WithContext(ctx)), scope, ids)
}

func (r *messageRepository) getByIDs(db *gorm.DB, scope models.Scope, ids []uint) ([]models.Message, error) {
	var messages []models.Message
	for _, part := range chunk(ids, maxInParams) {
		var batch []models.Message
		result := db.Session(&gorm.Session{}).
			Where("tenant_id = ? AND user_id = ? AND id IN ?", scope.TenantID, scope.UserID, part).
			Order("id").
			Find(&batch)
		if result.Error != nil {
			return nil, fmt.Errorf("failed to get messages by IDs: %w", result.Error)
		}
		messages = append(messages, batch...)
	}
	return messages, nil
}

// FindByMimeID returns the oldest live message of the mailbox carrying mimeID
func (r *messageRepository) FindByMimeID(ctx context.Context, mailboxID uint, mimeID string) (*models.Message, error) {
	return r.findFirst(ctx, "mailbox_id = ? AND mime_message_id = ? AND removed = ?", mailboxID, mimeID, false)
}

// FindByChainID returns the oldest live message of the mailbox in chainID
func (r *messageRepository) FindByChainID(ctx context.Context, mailboxID uint, chainID string) (*models.Message, error) {
	return r.findFirst(ctx, "mailbox_id = ? AND chain_id = ? AND removed = ?", mailboxID, chainID, false)
}

// FindDuplicate returns a live message with the same content hash or UIDL
func (r *messageRepository) FindDuplicate(ctx context.Context, mailboxID uint, md5, uidl string) (*models.Message, error) {
	switch {
	case md5 != "" && uidl != "":
		return r.findFirst(ctx, "mailbox_id = ? AND removed = ? AND (md5 = ? OR uidl = ?)", mailboxID, false, md5, uidl)
	case md5 != "":
		return r.findFirst(ctx, "mailbox_id = ? AND removed = ? AND md5 = ?", mailboxID, false, md5)
	case uidl != "":
		return r.findFirst(ctx, "mailbox_id = ? AND removed = ? AND uidl = ?", mailboxID, false, uidl)
	default:
		return nil, ErrNotFound
	}
}

// ListOrphanReplies returns live chain roots of the mailbox that reply to parentMimeID
func (r *messageRepository) ListOrphanReplies(ctx context.Context, mailboxID uint, parentMimeID string) ([]models.Message, error) {
	var messages []models.Message
	result := r.db.WithContext(ctx).
		Where("mailbox_id = ? AND mime_reply_to_id = ? AND chain_id = mime_message_id AND removed = ?", mailboxID, parentMimeID, false).
		Order("id").
		Find(&messages)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list orphan replies: %w", result.Error)
	}
	return messages, nil
}

func (r *messageRepository) findFirst(ctx context.Context, query string, args ...interface{}) (*models.Message, error) {
	var message models.Message
	result := r.db.WithContext(ctx).Where(query, args...).Order("id").First(&message)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find message: %w", result.Error)
	}
	return &message, nil
}

// ListChainMembers returns the live messages of one conversation row
func (r *messageRepository) ListChainMembers(ctx context.Context, scope models.Scope, key models.ChainKey) ([]models.Message, error) {
	var messages []models.Message
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", scope.TenantID, scope.UserID).
		Where("mailbox_id = ? AND folder = ? AND user_folder_id = ? AND chain_id = ?", key.MailboxID, key.Folder, key.UserFolderID, key.ChainID).
		Where("removed = ?", false).
		Order("date_sent, id").
		Find(&messages)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list chain members: %w", result.Error)
	}
	return messages, nil
}

// ListByFolder retrieves live messages of a mailbox location, newest first
func (r *messageRepository) ListByFolder(ctx context.Context, scope models.Scope, mailboxID uint, loc models.Location, limit, offset int) ([]models.MessageListItem, int64, error) {
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("tenant_id = ? AND user_id = ? AND mailbox_id = ?", scope.TenantID, scope.UserID, mailboxID).
		Where("folder = ? AND user_folder_id = ? AND removed = ?", loc.Folder, loc.UserFolderID, false).
		Session(&gorm.Session{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	var results []models.MessageListItem
	if err := query.Order("date_sent DESC, id DESC").Limit(limit).Offset(offset).Find(&results).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}

	return results, total, nil
}

// ListIDsByLocation returns the live message ids of a location across the scope's mailboxes
func (r *messageRepository) ListIDsByLocation(ctx context.Context, scope models.Scope, loc models.Location) ([]uint, error) {
	var ids []uint
	result := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("tenant_id = ? AND user_id = ?", scope.TenantID, scope.UserID).
		Where("folder = ? AND user_folder_id = ? AND removed = ?", loc.Folder, loc.UserFolderID, false).
		Order("id").
		Pluck("id", &ids)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list message ids: %w", result.Error)
	}
	return ids, nil
}

// ListIDsByMailbox pages through live message ids of a mailbox in id order
func (r *messageRepository) ListIDsByMailbox(ctx context.Context, mailboxID uint, afterID uint, limit int) ([]uint, error) {
	var ids []uint
	result := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("mailbox_id = ? AND id > ? AND removed = ?", mailboxID, afterID, false).
		Order("id").
		Limit(limit).
		Pluck("id", &ids)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to page message ids: %w", result.Error)
	}
	return ids, nil
}

// ListAllIDsByMailbox returns every message id of a mailbox split by removed state
func (r *messageRepository) ListAllIDsByMailbox(ctx context.Context, mailboxID uint) ([]uint, []uint, error) {
	var rows []struct {
		ID      uint
		Removed bool
	}
	result := r.db.WithContext(ctx).Model(&models.Message{}).
		Select("id, removed").
		Where("mailbox_id = ?", mailboxID).
		Order("id").
		Scan(&rows)
	if result.Error != nil {
		return nil, nil, fmt.Errorf("failed to list mailbox message ids: %w", result.Error)
	}

	var live, removed []uint
	for _, row := range rows {
		if row.Removed {
			removed = append(removed, row.ID)
		} else {
			live = append(live, row.ID)
		}
	}
	return live, removed, nil
}

// ListRemovedBefore returns soft-deleted messages removed before the cutoff
func (r *messageRepository) ListRemovedBefore(ctx context.Context, before time.Time, limit int) ([]models.Message, error) {
	var messages []models.Message
	result := r.db.WithContext(ctx).Preload("Attachments").
		Where("removed = ? AND removed_at < ?", true, before).
		Order("id").
		Limit(limit).
		Find(&messages)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list removed messages: %w", result.Error)
	}
	return messages, nil
}

// LockRemovedBefore narrows ids to messages still removed before the cutoff
// and locks them until the transaction ends
func (r *messageRepository) LockRemovedBefore(ctx context.Context, ids []uint, before time.Time) ([]uint, error) {
	var out []uint
	for _, part := range chunk(ids, maxInParams) {
		var found []uint
		result := forUpdate(r.db.WithContext(ctx)).Model(&models.Message{}).
			Where("id IN ? AND removed = ? AND removed_at < ?", part, true, before).
			Order("id").
			Pluck("id", &found)
		if result.Error != nil {
			return nil, fmt.Errorf("failed to lock removed messages: %w", result.Error)
		}
		out = append(out, found...)
	}
	return out, nil
}

// UpdateFields applies the same column updates to every id and returns the affected row count
func (r *messageRepository) UpdateFields(ctx context.Context, ids []uint, fields map[string]interface{}) (int64, error) {
	var affected int64
	for _, part := range chunk(ids, maxInParams) {
		result := r.db.WithContext(ctx).Model(&models.Message{}).Where("id IN ?", part).Updates(fields)
		if result.Error != nil {
			return affected, fmt.Errorf("failed to update messages: %w", result.Error)
		}
		affected += result.RowsAffected
	}
	return affected, nil
}

// RelabelChain moves every message of fromChainID into toChainID and returns
// the conversation keys touched on both sides.
func (r *messageRepository) RelabelChain(ctx context.Context, mailboxID uint, fromChainID, toChainID string, chainDate time.Time) ([]models.ChainKey, error) {
	var locations []models.Location
	result := r.db.WithContext(ctx).Model(&models.Message{}).
		Distinct("folder", "user_folder_id").
		Where("mailbox_id = ? AND chain_id = ? AND removed = ?", mailboxID, fromChainID, false).
		Scan(&locations)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to read chain locations: %w", result.Error)
	}
	if len(locations) == 0 {
		return nil, nil
	}

	result = r.db.WithContext(ctx).Model(&models.Message{}).
		Where("mailbox_id = ? AND chain_id = ?", mailboxID, fromChainID).
		Updates(map[string]interface{}{"chain_id": toChainID, "chain_date": chainDate})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to relabel chain: %w", result.Error)
	}

	keys := make([]models.ChainKey, 0, 2*len(locations))
	for _, loc := range locations {
		keys = append(keys,
			models.ChainKey{MailboxID: mailboxID, Folder: loc.Folder, UserFolderID: loc.UserFolderID, ChainID: fromChainID},
			models.ChainKey{MailboxID: mailboxID, Folder: loc.Folder, UserFolderID: loc.UserFolderID, ChainID: toChainID},
		)
	}
	return keys, nil
}

// CountByLocation tallies live messages of the scope per folder and user folder
func (r *messageRepository) CountByLocation(ctx context.Context, scope models.Scope) ([]LocationCount, error) {
	var rows []LocationCount
	result := r.db.WithContext(ctx).Model(&models.Message{}).
		Select("folder, user_folder_id, COUNT(*) AS total, COALESCE(SUM(CASE WHEN unread = ? THEN 1 ELSE 0 END), 0) AS unread", true).
		Where("tenant_id = ? AND user_id = ? AND removed = ?", scope.TenantID, scope.UserID, false).
		Group("folder, user_folder_id").
		Scan(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to count messages by location: %w", result.Error)
	}
	return rows, nil
}

// HardDelete permanently removes messages with their attachment rows and tag links
func (r *messageRepository) HardDelete(ctx context.Context, ids []uint) error {
	for _, part := range chunk(ids, maxInParams) {
		db := r.db.WithContext(ctx)
		if err := db.Where("message_id IN ?", part).Delete(&models.Attachment{}).Error; err != nil {
			return fmt.Errorf("failed to delete attachments: %w", err)
		}
		if err := db.Where("message_id IN ?", part).Delete(&models.TagMessage{}).Error; err != nil {
			return fmt.Errorf("failed to delete tag links: %w", err)
		}
		if err := db.Where("id IN ?", part).Delete(&models.Message{}).Error; err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
	}
	return nil
}
