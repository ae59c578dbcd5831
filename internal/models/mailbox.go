package models

import (
	"time"
)

// Mailbox represents an email account owned by a tenant user
type Mailbox struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	TenantID       uint       `gorm:"not null;index:idx_mailboxes_scope" json:"tenant_id"`
	UserID         string     `gorm:"not null;size:64;index:idx_mailboxes_scope" json:"user_id"`
	Address        string     `gorm:"uniqueIndex;not null;size:255" json:"address"`
	Name           string     `gorm:"size:255" json:"name,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`

	// Relationships
	Messages []Message `gorm:"foreignKey:MailboxID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for Mailbox
func (Mailbox) TableName() string {
	return "mailboxes"
}

// Scope returns the owner scope of the mailbox
func (m *Mailbox) Scope() Scope {
	return Scope{TenantID: m.TenantID, UserID: m.UserID}
}
