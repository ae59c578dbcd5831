package filter

import (
	"fmt"
	"strings"

	"github.com/welldanyogia/webrana-mailcore/internal/models"
)

// RuleOutcome records how one candidate rule evaluated
type RuleOutcome struct {
	RuleID     uint
	Successes  int
	Conditions int
	Applied    bool
}

// PlannedAction is an action selected for application together with the rule that chose it
type PlannedAction struct {
	RuleID uint
	Action models.Action
}

// Plan is the result of evaluating a rule set against one envelope
type Plan struct {
	Outcomes []RuleOutcome
	Actions  []PlannedAction
	// StoppedBy is the rule whose ignore-other flag ended evaluation, zero if none
	StoppedBy uint
}

// Empty reports whether no action was selected
func (p Plan) Empty() bool {
	return len(p.Actions) == 0
}

// Evaluate runs rules in order against env and returns the actions to apply.
//
// Rules outside the envelope's folder, mailbox or attachment scope are
// skipped. A rule is applied when its match policy is satisfied; a rule with
// IgnoreOther stops evaluation once any of its conditions succeeded. Actions
// are deduplicated across applied rules, and DeleteForever, when selected
// together with anything else, is the only action kept.
func Evaluate(rules []models.FilterRule, env Envelope) Plan {
	var plan Plan
	var selected []PlannedAction

	for i := range rules {
		rule := &rules[i]
		if !rule.Enabled || !inScope(rule, env) {
			continue
		}

		successes := 0
		for _, c := range rule.Conditions {
			if evalCondition(c, env) {
				successes++
			}
		}

		applied := policySatisfied(rule.MatchPolicy, successes, len(rule.Conditions))
		plan.Outcomes = append(plan.Outcomes, RuleOutcome{
			RuleID:     rule.ID,
			Successes:  successes,
			Conditions: len(rule.Conditions),
			Applied:    applied,
		})

		if applied {
			for _, a := range rule.Actions {
				selected = append(selected, PlannedAction{RuleID: rule.ID, Action: a})
			}
		}

		if rule.IgnoreOther && successes > 0 {
			plan.StoppedBy = rule.ID
			break
		}
	}

	plan.Actions = resolveActions(selected)
	return plan
}

func inScope(rule *models.FilterRule, env Envelope) bool {
	if len(rule.Folders) > 0 && !containsFolder(rule.Folders, env.Folder) {
		return false
	}
	if len(rule.Mailboxes) > 0 && !containsUint(rule.Mailboxes, env.MailboxID) {
		return false
	}
	switch rule.Attachments {
	case models.AttachmentsWith:
		return env.HasAttachments
	case models.AttachmentsWithout:
		return !env.HasAttachments
	}
	return true
}

func policySatisfied(policy models.MatchPolicy, successes, total int) bool {
	if total == 0 {
		return false
	}
	if policy == models.MatchAtLeastOne {
		return successes > 0
	}
	return successes == total
}

// evalCondition compares case-insensitively. Positive operators succeed when
// any field value satisfies them; negative operators are their negation. An
// empty condition value only matches an empty field.
func evalCondition(c models.Condition, env Envelope) bool {
	values := env.fieldValues(c.Key)
	want := strings.ToLower(strings.TrimSpace(c.Value))

	var hit bool
	if want == "" {
		hit = allEmpty(values)
	} else {
		for _, v := range values {
			v = strings.ToLower(strings.TrimSpace(v))
			switch c.Operator {
			case models.OperatorMatches, models.OperatorNotMatches:
				hit = v == want
			case models.OperatorContains, models.OperatorNotContains:
				hit = strings.Contains(v, want)
			}
			if hit {
				break
			}
		}
	}

	switch c.Operator {
	case models.OperatorNotMatches, models.OperatorNotContains:
		return !hit
	case models.OperatorMatches, models.OperatorContains:
		return hit
	default:
		return false
	}
}

func allEmpty(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// resolveActions deduplicates the combined action list and applies DeleteForever dominance.
// MoveTo, MarkAsRead, MarkAsImportant and DeleteForever keep their first occurrence;
// MarkTag keeps the first occurrence per tag.
func resolveActions(selected []PlannedAction) []PlannedAction {
	seen := make(map[string]struct{}, len(selected))
	out := make([]PlannedAction, 0, len(selected))
	for _, pa := range selected {
		key := actionKey(pa.Action)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, pa)
	}

	if len(out) > 1 {
		for _, pa := range out {
			if pa.Action.Kind == models.ActionDeleteForever {
				return []PlannedAction{pa}
			}
		}
	}
	return out
}

func actionKey(a models.Action) string {
	if a.Kind == models.ActionMarkTag {
		return fmt.Sprintf("%s:%d", a.Kind, a.TagID)
	}
	return string(a.Kind)
}

func containsFolder(list []models.Folder, f models.Folder) bool {
	for _, x := range list {
		if x == f {
			return true
		}
	}
	return false
}

func containsUint(list []uint, v uint) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
