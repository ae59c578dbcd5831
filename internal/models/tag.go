package models

import (
	"time"
)

// Tag is a user label that can be attached to messages
type Tag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TenantID  uint      `gorm:"not null;index:idx_tags_scope" json:"tenant_id"`
	UserID    string    `gorm:"not null;size:64;index:idx_tags_scope" json:"user_id"`
	Name      string    `gorm:"not null;size:255" json:"name"`
	Color     string    `gorm:"size:16" json:"color,omitempty"`
	Count     int64     `gorm:"not null;default:0" json:"count"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Tag
func (Tag) TableName() string {
	return "tags"
}

// TagMessage associates a tag with a message
type TagMessage struct {
	TagID     uint `gorm:"primaryKey;autoIncrement:false"`
	MessageID uint `gorm:"primaryKey;autoIncrement:false;index"`
}

// TableName returns the table name for TagMessage
func (TagMessage) TableName() string {
	return "tag_messages"
}
