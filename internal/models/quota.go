package models

import (
	"time"
)

// QuotaUsage tracks attachment storage used by one tenant user
type QuotaUsage struct {
	TenantID  uint      `gorm:"primaryKey;autoIncrement:false" json:"tenant_id"`
	UserID    string    `gorm:"primaryKey;size:64" json:"user_id"`
	UsedBytes int64     `gorm:"not null;default:0" json:"used_bytes"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for QuotaUsage
func (QuotaUsage) TableName() string {
	return "quota_usages"
}
