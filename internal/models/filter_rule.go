package models

import (
	"time"
)

// ConditionKey selects the envelope field a condition inspects.
type ConditionKey string

const (
	ConditionFrom    ConditionKey = "from"
	ConditionTo      ConditionKey = "to"
	ConditionCc      ConditionKey = "cc"
	ConditionToOrCc  ConditionKey = "to_or_cc"
	ConditionSubject ConditionKey = "subject"
)

// Operator compares a field against a condition value.
type Operator string

const (
	OperatorMatches     Operator = "matches"
	OperatorNotMatches  Operator = "not_matches"
	OperatorContains    Operator = "contains"
	OperatorNotContains Operator = "not_contains"
)

// MatchPolicy decides how condition results combine.
type MatchPolicy string

const (
	MatchAll        MatchPolicy = "all"
	MatchAtLeastOne MatchPolicy = "any"
)

// ActionKind is the closed set of filter actions.
type ActionKind string

const (
	ActionMoveTo          ActionKind = "move_to"
	ActionMarkAsRead      ActionKind = "mark_as_read"
	ActionMarkAsImportant ActionKind = "mark_as_important"
	ActionMarkTag         ActionKind = "mark_tag"
	ActionDeleteForever   ActionKind = "delete_forever"
)

// AttachmentFilter restricts a rule by attachment presence.
type AttachmentFilter string

const (
	AttachmentsAny     AttachmentFilter = ""
	AttachmentsWith    AttachmentFilter = "with"
	AttachmentsWithout AttachmentFilter = "without"
)

// Condition is one key/operator/value test
type Condition struct {
	Key      ConditionKey `json:"key"`
	Operator Operator     `json:"operator"`
	Value    string       `json:"value"`
}

// Action is one step a matched rule performs.
// Folder and UserFolderID are used by ActionMoveTo, TagID by ActionMarkTag.
type Action struct {
	Kind         ActionKind `json:"kind"`
	Folder       Folder     `json:"folder,omitempty"`
	UserFolderID uint       `json:"user_folder_id,omitempty"`
	TagID        uint       `json:"tag_id,omitempty"`
}

// FilterRule is a user-authored classification rule
type FilterRule struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	TenantID    uint             `gorm:"not null;index:idx_filter_rules_scope" json:"tenant_id"`
	UserID      string           `gorm:"not null;size:64;index:idx_filter_rules_scope" json:"user_id"`
	Name        string           `gorm:"size:255" json:"name"`
	Position    int              `gorm:"not null;default:0" json:"position"`
	Enabled     bool             `json:"enabled"`
	MatchPolicy MatchPolicy      `gorm:"size:8;not null" json:"match_policy"`
	IgnoreOther bool             `json:"ignore_other"`
	Conditions  []Condition      `gorm:"type:text;serializer:json" json:"conditions"`
	Actions     []Action         `gorm:"type:text;serializer:json" json:"actions"`
	Folders     []Folder         `gorm:"type:text;serializer:json" json:"folders,omitempty"`
	Mailboxes   []uint           `gorm:"type:text;serializer:json" json:"mailboxes,omitempty"`
	Attachments AttachmentFilter `gorm:"size:16" json:"attachments,omitempty"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// TableName returns the table name for FilterRule
func (FilterRule) TableName() string {
	return "filter_rules"
}
