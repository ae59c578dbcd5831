package filter

import (
	"strings"

	apperrors "github.com/welldanyogia/webrana-mailcore/internal/errors"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
)

const (
	MaxConditions = 32
	MaxActions    = 8
	MaxNameLength = 255
)

// Normalize fills defaults and drops repeated action kinds, keeping the first of each.
func Normalize(rule *models.FilterRule) {
	rule.Name = strings.TrimSpace(rule.Name)
	if rule.MatchPolicy == "" {
		rule.MatchPolicy = models.MatchAll
	}

	seen := make(map[models.ActionKind]struct{}, len(rule.Actions))
	actions := rule.Actions[:0:0]
	for _, a := range rule.Actions {
		if _, dup := seen[a.Kind]; dup {
			continue
		}
		seen[a.Kind] = struct{}{}
		actions = append(actions, a)
	}
	rule.Actions = actions
}

// Validate checks a rule's shape. It does not check that folder or tag targets exist.
func Validate(rule *models.FilterRule) error {
	if len(rule.Name) > MaxNameLength {
		return apperrors.InvalidInput("rule name exceeds %d characters", MaxNameLength)
	}

	switch rule.MatchPolicy {
	case models.MatchAll, models.MatchAtLeastOne:
	default:
		return apperrors.InvalidInput("unknown match policy %q", rule.MatchPolicy)
	}

	if len(rule.Conditions) == 0 {
		return apperrors.InvalidInput("rule needs at least one condition")
	}
	if len(rule.Conditions) > MaxConditions {
		return apperrors.InvalidInput("rule has more than %d conditions", MaxConditions)
	}
	for i, c := range rule.Conditions {
		if err := validateCondition(c); err != nil {
			return apperrors.InvalidInput("condition %d: %s", i+1, err.Message)
		}
	}

	if len(rule.Actions) == 0 {
		return apperrors.InvalidInput("rule needs at least one action")
	}
	if len(rule.Actions) > MaxActions {
		return apperrors.InvalidInput("rule has more than %d actions", MaxActions)
	}
	for i, a := range rule.Actions {
		if err := validateAction(a); err != nil {
			return apperrors.InvalidInput("action %d: %s", i+1, err.Message)
		}
	}

	for _, f := range rule.Folders {
		if !f.Valid() {
			return apperrors.InvalidInput("unknown folder %d in rule scope", int(f))
		}
	}

	switch rule.Attachments {
	case models.AttachmentsAny, models.AttachmentsWith, models.AttachmentsWithout:
	default:
		return apperrors.InvalidInput("unknown attachment filter %q", rule.Attachments)
	}
	return nil
}

func validateCondition(c models.Condition) *apperrors.AppError {
	switch c.Key {
	case models.ConditionFrom, models.ConditionTo, models.ConditionCc,
		models.ConditionToOrCc, models.ConditionSubject:
	default:
		return apperrors.InvalidInput("unknown key %q", c.Key)
	}
	switch c.Operator {
	case models.OperatorMatches, models.OperatorNotMatches,
		models.OperatorContains, models.OperatorNotContains:
	default:
		return apperrors.InvalidInput("unknown operator %q", c.Operator)
	}
	return nil
}

func validateAction(a models.Action) *apperrors.AppError {
	switch a.Kind {
	case models.ActionMoveTo:
		switch a.Folder {
		case models.FolderInbox, models.FolderSpam, models.FolderTrash, models.FolderSent:
			if a.UserFolderID != 0 {
				return apperrors.InvalidInput("user folder id set for built-in folder")
			}
		case models.FolderUserFolder:
			if a.UserFolderID == 0 {
				return apperrors.InvalidInput("move to user folder needs a folder id")
			}
		default:
			return apperrors.InvalidInput("cannot move to folder %s", a.Folder)
		}
	case models.ActionMarkTag:
		if a.TagID == 0 {
			return apperrors.InvalidInput("mark tag needs a tag id")
		}
	case models.ActionMarkAsRead, models.ActionMarkAsImportant, models.ActionDeleteForever:
	default:
		return apperrors.InvalidInput("unknown action %q", a.Kind)
	}
	return nil
}
