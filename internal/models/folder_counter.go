package models

import (
	"time"
)

// FolderCounter caches the message and conversation counts of one built-in folder.
type FolderCounter struct {
	TenantID            uint      `gorm:"primaryKey;autoIncrement:false" json:"tenant_id"`
	UserID              string    `gorm:"primaryKey;size:64" json:"user_id"`
	Folder              Folder    `gorm:"primaryKey;autoIncrement:false" json:"folder"`
	UnreadMessages      int64     `gorm:"not null;default:0" json:"unread_messages"`
	TotalMessages       int64     `gorm:"not null;default:0" json:"total_messages"`
	UnreadConversations int64     `gorm:"not null;default:0" json:"unread_conversations"`
	TotalConversations  int64     `gorm:"not null;default:0" json:"total_conversations"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// TableName returns the table name for FolderCounter
func (FolderCounter) TableName() string {
	return "folder_counters"
}

// Counts returns the four counters as a value
func (c *FolderCounter) Counts() Counts {
	return Counts{
		UnreadMessages:      c.UnreadMessages,
		TotalMessages:       c.TotalMessages,
		UnreadConversations: c.UnreadConversations,
		TotalConversations:  c.TotalConversations,
	}
}

// Counts is the shape shared by folder and user folder counters.
type Counts struct {
	UnreadMessages      int64 `json:"unread_messages"`
	TotalMessages       int64 `json:"total_messages"`
	UnreadConversations int64 `json:"unread_conversations"`
	TotalConversations  int64 `json:"total_conversations"`
}

// Consistent reports whether total >= unread >= 0 for messages and conversations
func (c Counts) Consistent() bool {
	return c.UnreadMessages >= 0 && c.TotalMessages >= c.UnreadMessages &&
		c.UnreadConversations >= 0 && c.TotalConversations >= c.UnreadConversations
}

// CounterDelta is a signed change to Counts.
type CounterDelta struct {
	Unread     int64 `json:"unread"`
	Total      int64 `json:"total"`
	UnreadConv int64 `json:"unread_conv"`
	TotalConv  int64 `json:"total_conv"`
}

// IsZero reports whether the delta changes nothing
func (d CounterDelta) IsZero() bool {
	return d == CounterDelta{}
}

// Add returns the sum of two deltas
func (d CounterDelta) Add(o CounterDelta) CounterDelta {
	return CounterDelta{
		Unread:     d.Unread + o.Unread,
		Total:      d.Total + o.Total,
		UnreadConv: d.UnreadConv + o.UnreadConv,
		TotalConv:  d.TotalConv + o.TotalConv,
	}
}

// FolderCounters is the response shape for a scope's counters.
type FolderCounters struct {
	Folders     []FolderCounter `json:"folders"`
	UserFolders []UserFolder    `json:"user_folders"`
}
