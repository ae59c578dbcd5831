package models

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// ChainKey identifies one conversation row.
// UserFolderID is zero for every folder except FolderUserFolder.
type ChainKey struct {
	MailboxID    uint   `json:"mailbox_id"`
	Folder       Folder `json:"folder"`
	UserFolderID uint   `json:"user_folder_id,omitempty"`
	ChainID      string `json:"chain_id"`
}

// Chain is the aggregate of the non-removed messages sharing a ChainKey.
type Chain struct {
	MailboxID      uint      `gorm:"primaryKey;autoIncrement:false" json:"mailbox_id"`
	Folder         Folder    `gorm:"primaryKey;autoIncrement:false" json:"folder"`
	UserFolderID   uint      `gorm:"primaryKey;autoIncrement:false" json:"user_folder_id,omitempty"`
	ChainID        string    `gorm:"primaryKey;size:255" json:"chain_id"`
	TenantID       uint      `gorm:"not null;index:idx_chains_scope" json:"tenant_id"`
	UserID         string    `gorm:"not null;size:64;index:idx_chains_scope" json:"user_id"`
	Length         int       `gorm:"not null" json:"length"`
	DateSent       time.Time `gorm:"index" json:"date_sent"`
	Unread         bool      `json:"unread"`
	HasAttachments bool      `json:"has_attachments"`
	Important      bool      `json:"important"`
	Tags           string    `gorm:"size:1024" json:"tags,omitempty"`
	Subject        string    `json:"subject,omitempty"`
}

// TableName returns the table name for Chain
func (Chain) TableName() string {
	return "chains"
}

// Key returns the composite key of the chain row
func (c *Chain) Key() ChainKey {
	return ChainKey{
		MailboxID:    c.MailboxID,
		Folder:       c.Folder,
		UserFolderID: c.UserFolderID,
		ChainID:      c.ChainID,
	}
}

// Scope returns the owner scope of the chain
func (c *Chain) Scope() Scope {
	return Scope{TenantID: c.TenantID, UserID: c.UserID}
}

// FormatTagSet renders tag ids as a sorted comma separated list
func FormatTagSet(ids []uint) string {
	if len(ids) == 0 {
		return ""
	}
	uniq := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		uniq[id] = struct{}{}
	}
	sorted := make([]uint, 0, len(uniq))
	for id := range uniq {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ",")
}

// ParseTagSet is the inverse of FormatTagSet; malformed entries are skipped
func ParseTagSet(s string) []uint {
	if s == "" {
		return nil
	}
	var ids []uint
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(v))
	}
	return ids
}
