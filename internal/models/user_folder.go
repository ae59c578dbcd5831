package models

import (
	"time"
)

// UserFolder is a user-defined folder layered on top of FolderUserFolder
type UserFolder struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	TenantID            uint      `gorm:"not null;index:idx_user_folders_scope" json:"tenant_id"`
	UserID              string    `gorm:"not null;size:64;index:idx_user_folders_scope" json:"user_id"`
	Name                string    `gorm:"not null;size:255" json:"name"`
	UnreadMessages      int64     `gorm:"not null;default:0" json:"unread_messages"`
	TotalMessages       int64     `gorm:"not null;default:0" json:"total_messages"`
	UnreadConversations int64     `gorm:"not null;default:0" json:"unread_conversations"`
	TotalConversations  int64     `gorm:"not null;default:0" json:"total_conversations"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// TableName returns the table name for UserFolder
func (UserFolder) TableName() string {
	return "user_folders"
}

// Counts returns the four counters as a value
func (f *UserFolder) Counts() Counts {
	return Counts{
		UnreadMessages:      f.UnreadMessages,
		TotalMessages:       f.TotalMessages,
		UnreadConversations: f.UnreadConversations,
		TotalConversations:  f.TotalConversations,
	}
}
