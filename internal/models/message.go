package models

import (
	"time"
)

// Message represents an email message stored in a mailbox
type Message struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	TenantID            uint       `gorm:"not null;index:idx_messages_scope" json:"tenant_id"`
	UserID              string     `gorm:"not null;size:64;index:idx_messages_scope" json:"user_id"`
	MailboxID           uint       `gorm:"not null;index:idx_messages_chain,priority:1" json:"mailbox_id"`
	Folder              Folder     `gorm:"not null;index:idx_messages_chain,priority:2" json:"folder"`
	UserFolderID        uint       `gorm:"not null;default:0;index:idx_messages_chain,priority:3" json:"user_folder_id,omitempty"`
	ChainID             string     `gorm:"size:255;index:idx_messages_chain,priority:4" json:"chain_id"`
	ChainDate           time.Time  `json:"chain_date"`
	RestoreFolder       Folder     `gorm:"not null;default:0" json:"restore_folder,omitempty"`
	RestoreUserFolderID uint       `gorm:"not null;default:0" json:"restore_user_folder_id,omitempty"`
	MimeMessageID       string     `gorm:"size:255;index" json:"mime_message_id"`
	MimeReplyToID       string     `gorm:"size:255" json:"mime_reply_to_id,omitempty"`
	FromAddress         string     `gorm:"size:512" json:"from"`
	ToAddress           string     `json:"to,omitempty"`
	CcAddress           string     `json:"cc,omitempty"`
	Subject             string     `json:"subject,omitempty"`
	Snippet             string     `gorm:"size:255" json:"snippet,omitempty"`
	BodyText            string     `json:"body_text,omitempty"`
	BodyHTML            string     `json:"body_html,omitempty"`
	DateSent            time.Time  `gorm:"index" json:"date_sent"`
	Unread              bool       `json:"unread"`
	Important           bool       `json:"important"`
	AttachmentCount     int        `json:"attachment_count"`
	SizeBytes           int64      `json:"size_bytes"`
	Removed             bool       `gorm:"index" json:"removed"`
	RemovedAt           *time.Time `json:"removed_at,omitempty"`
	MD5                 string     `gorm:"size:32;index" json:"-"`
	UIDL                string     `gorm:"size:255;index" json:"-"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`

	// Relationships
	Mailbox     Mailbox      `gorm:"foreignKey:MailboxID;constraint:OnDelete:CASCADE" json:"-"`
	Attachments []Attachment `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"attachments,omitempty"`
}

// TableName returns the table name for Message
func (Message) TableName() string {
	return "messages"
}

// Scope returns the owner scope of the message
func (m *Message) Scope() Scope {
	return Scope{TenantID: m.TenantID, UserID: m.UserID}
}

// ChainKey returns the conversation row the message belongs to
func (m *Message) ChainKey() ChainKey {
	return ChainKey{
		MailboxID:    m.MailboxID,
		Folder:       m.Folder,
		UserFolderID: m.UserFolderID,
		ChainID:      m.ChainID,
	}
}

// Location returns where the message is currently filed
func (m *Message) Location() Location {
	return Location{Folder: m.Folder, UserFolderID: m.UserFolderID}
}

// Location is a built-in folder plus the user folder id when Folder is FolderUserFolder.
type Location struct {
	Folder       Folder `json:"folder"`
	UserFolderID uint   `json:"user_folder_id,omitempty"`
}

// MessageListItem is a lightweight version for list views
type MessageListItem struct {
	ID              uint      `json:"id"`
	MailboxID       uint      `json:"mailbox_id"`
	Folder          Folder    `json:"folder"`
	UserFolderID    uint      `json:"user_folder_id,omitempty"`
	ChainID         string    `json:"chain_id"`
	FromAddress     string    `json:"from"`
	Subject         string    `json:"subject,omitempty"`
	Snippet         string    `json:"snippet,omitempty"`
	Unread          bool      `json:"unread"`
	Important       bool      `json:"important"`
	DateSent        time.Time `json:"date_sent"`
	AttachmentCount int       `json:"attachment_count"`
}
