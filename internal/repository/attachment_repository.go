package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"github.com/welldanyogia/webrana-mailcore/internal/storage"
	"gorm.io/gorm"
)

// AttachmentRepository defines the interface for attachment data access
type AttachmentRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Attachment, error)
	ListByMessage(ctx context.Context, messageID uint) ([]models.Attachment, error)
	ListByMessages(ctx context.Context, messageIDs []uint) ([]models.Attachment, error)
	SumSizeByMessages(ctx context.Context, messageIDs []uint) (int64, error)
	DeleteFiles(attachments []models.Attachment) int
}

// attachmentRepository implements AttachmentRepository using GORM
type attachmentRepository struct {
	db          *gorm.DB
	fileStorage storage.FileStorage
}

// NewAttachmentRepository creates a new AttachmentRepository instance
func NewAttachmentRepository(db *gorm.DB, fileStorage storage.FileStorage) AttachmentRepository {
	return &attachmentRepository{
		db:          db,
		fileStorage: fileStorage,
	}
}

// GetByID retrieves an attachment by its ID
func (r *attachmentRepository) GetByID(ctx context.Context, id uint) (*models.Attachment, error) {
	var attachment models.Attachment
	result := r.db.WithContext(ctx).First(&attachment, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get attachment by ID: %w", result.Error)
	}
	return &attachment, nil
}

// ListByMessage retrieves all attachments for a message
func (r *attachmentRepository) ListByMessage(ctx context.Context, messageID uint) ([]models.Attachment, error) {
	var attachments []models.Attachment
	result := r.db.WithContext(ctx).Where("message_id = ?", messageID).Find(&attachments)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", result.Error)
	}
	return attachments, nil
}

// ListByMessages retrieves the attachments of several messages
func (r *attachmentRepository) ListByMessages(ctx context.Context, messageIDs []uint) ([]models.Attachment, error) {
	var attachments []models.Attachment
	for _, part := range chunk(messageIDs, maxInParams) {
		var batch []models.Attachment
		result := r.db.WithContext(ctx).Where("message_id IN ?", part).Order("id").Find(&batch)
		if result.Error != nil {
			return nil, fmt.Errorf("failed to list attachments: %w", result.Error)
		}
		attachments = append(attachments, batch...)
	}
	return attachments, nil
}

// SumSizeByMessages returns the attachment bytes held by the messages
func (r *attachmentRepository) SumSizeByMessages(ctx context.Context, messageIDs []uint) (int64, error) {
	var total int64
	for _, part := range chunk(messageIDs, maxInParams) {
		var sum int64
		result := r.db.WithContext(ctx).Model(&models.Attachment{}).
			Select("COALESCE(SUM(size_bytes), 0)").
			Where("message_id IN ?", part).
			Scan(&sum)
		if result.Error != nil {
			return 0, fmt.Errorf("failed to sum attachment sizes: %w", result.Error)
		}
		total += sum
	}
	return total, nil
}

// DeleteFiles removes stored files of the attachments and returns how many were deleted.
// Missing files are ignored as they might already be deleted.
func (r *attachmentRepository) DeleteFiles(attachments []models.Attachment) int {
	if r.fileStorage == nil {
		return 0
	}
	deleted := 0
	for _, a := range attachments {
		if a.FilePath == "" {
			continue
		}
		if err := r.fileStorage.Delete(a.FilePath); err == nil {
			deleted++
		}
	}
	return deleted
}
