package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/welldanyogia/webrana-mailcore/internal/errors"
	"github.com/welldanyogia/webrana-mailcore/internal/filter"
	"github.com/welldanyogia/webrana-mailcore/internal/jobs"
	"github.com/welldanyogia/webrana-mailcore/internal/metrics"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
)

// applyPageSize is how many message ids one batch rule run loads at a time
const applyPageSize = 200

// FilterService manages filter rules and applies them to messages
type FilterService interface {
	CreateRule(ctx context.Context, scope models.Scope, rule *models.FilterRule) error
	UpdateRule(ctx context.Context, scope models.Scope, rule *models.FilterRule) error
	DeleteRule(ctx context.Context, scope models.Scope, id uint) error
	GetRule(ctx context.Context, scope models.Scope, id uint) (*models.FilterRule, error)
	ListRules(ctx context.Context, scope models.Scope) ([]models.FilterRule, error)
	EnableRule(ctx context.Context, scope models.Scope, id uint, enabled bool) error

	// ApplyToMessage evaluates the enabled rules of the scope against one
	// message and applies the selected actions. A rule whose target folder or
	// tag no longer exists is disabled; other action failures are logged and
	// skipped.
	ApplyToMessage(ctx context.Context, scope models.Scope, messageID uint) error

	// ApplyRuleToMailboxes runs one rule over the existing messages of the
	// given mailboxes, one pool unit per mailbox.
	ApplyRuleToMailboxes(ctx context.Context, scope models.Scope, ruleID uint, mailboxIDs []uint) (*jobs.Report, error)
}

// filterService implements FilterService
type filterService struct {
	*core
	mail  MailService
	pool  *jobs.Pool
	cache *filter.RuleCache
}

// NewFilterService creates a FilterService applying actions through mail.
// cache may be nil.
func NewFilterService(deps Deps, mail MailService, pool *jobs.Pool, cache *filter.RuleCache) FilterService {
	c := newCore(deps)
	if pool == nil {
		pool = jobs.NewPool(jobs.DefaultMaxConcurrency, c.deps.Logger)
	}
	return &filterService{core: c, mail: mail, pool: pool, cache: cache}
}

// CreateRule validates and stores a rule, appending it after the existing rules when no position is given
func (s *filterService) CreateRule(ctx context.Context, scope models.Scope, rule *models.FilterRule) error {
	if !scope.Valid() {
		return apperrors.InvalidInput("tenant and user are required")
	}
	filter.Normalize(rule)
	if err := filter.Validate(rule); err != nil {
		return err
	}

	rule.ID = 0
	rule.TenantID = scope.TenantID
	rule.UserID = scope.UserID

	repos := s.repos()
	if rule.Position <= 0 {
		existing, err := repos.Filters.List(ctx, scope)
		if err != nil {
			return err
		}
		for _, r := range existing {
			if r.Position >= rule.Position {
				rule.Position = r.Position + 1
			}
		}
		if rule.Position <= 0 {
			rule.Position = 1
		}
	}

	if err := repos.Filters.Create(ctx, rule); err != nil {
		return err
	}
	s.cache.Invalidate(scope)
	return nil
}

// UpdateRule replaces a rule's definition
func (s *filterService) UpdateRule(ctx context.Context, scope models.Scope, rule *models.FilterRule) error {
	repos := s.repos()
	existing, err := repos.Filters.GetByID(ctx, scope, rule.ID)
	if err != nil {
		return notFound(err, apperrors.ErrRuleNotFound)
	}

	filter.Normalize(rule)
	if err := filter.Validate(rule); err != nil {
		return err
	}
	rule.TenantID = existing.TenantID
	rule.UserID = existing.UserID
	rule.CreatedAt = existing.CreatedAt
	if rule.Position <= 0 {
		rule.Position = existing.Position
	}

	if err := repos.Filters.Update(ctx, rule); err != nil {
		return notFound(err, apperrors.ErrRuleNotFound)
	}
	s.cache.Invalidate(scope)
	return nil
}

// DeleteRule deletes a rule
func (s *filterService) DeleteRule(ctx context.Context, scope models.Scope, id uint) error {
	if err := s.repos().Filters.Delete(ctx, scope, id); err != nil {
		return notFound(err, apperrors.ErrRuleNotFound)
	}
	s.cache.Invalidate(scope)
	return nil
}

// GetRule returns one rule of the scope
func (s *filterService) GetRule(ctx context.Context, scope models.Scope, id uint) (*models.FilterRule, error) {
	rule, err := s.repos().Filters.GetByID(ctx, scope, id)
	if err != nil {
		return nil, notFound(err, apperrors.ErrRuleNotFound)
	}
	return rule, nil
}

// ListRules returns the rules of the scope in evaluation order
func (s *filterService) ListRules(ctx context.Context, scope models.Scope) ([]models.FilterRule, error) {
	return s.repos().Filters.List(ctx, scope)
}

// EnableRule turns a rule on or off
func (s *filterService) EnableRule(ctx context.Context, scope models.Scope, id uint, enabled bool) error {
	if err := s.repos().Filters.SetEnabled(ctx, scope, id, enabled); err != nil {
		return notFound(err, apperrors.ErrRuleNotFound)
	}
	s.cache.Invalidate(scope)
	return nil
}

func (s *filterService) enabledRules(ctx context.Context, scope models.Scope) ([]models.FilterRule, error) {
	if rules, ok := s.cache.Get(scope); ok {
		return rules, nil
	}
	rules, err := s.repos().Filters.ListEnabled(ctx, scope)
	if err != nil {
		return nil, err
	}
	s.cache.Put(scope, rules)
	return rules, nil
}

// ApplyToMessage runs the scope's enabled rules on a stored message
func (s *filterService) ApplyToMessage(ctx context.Context, scope models.Scope, messageID uint) error {
	rules, err := s.enabledRules(ctx, scope)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		return nil
	}

	msg, err := s.repos().Messages.GetByID(ctx, scope, messageID)
	if err != nil {
		return notFound(err, apperrors.ErrMessageNotFound)
	}
	if msg.Removed {
		return nil
	}

	s.apply(ctx, scope, msg.ID, filter.Evaluate(rules, filter.EnvelopeOf(msg)))
	return nil
}

// apply executes a plan against one message and returns the rules it disabled
func (s *filterService) apply(ctx context.Context, scope models.Scope, messageID uint, plan filter.Plan) map[uint]struct{} {
	disabled := make(map[uint]struct{})
	for _, pa := range plan.Actions {
		if _, off := disabled[pa.RuleID]; off {
			continue
		}

		err := s.execute(ctx, scope, messageID, pa.Action)
		switch {
		case err == nil:
			metrics.FilterActions.WithLabelValues(string(pa.Action.Kind), "ok").Inc()
		case isMissingTarget(err):
			metrics.FilterActions.WithLabelValues(string(pa.Action.Kind), "target_missing").Inc()
			disabled[pa.RuleID] = struct{}{}
			s.disableRule(ctx, scope, pa.RuleID, pa.Action.Kind, err)
		default:
			metrics.FilterActions.WithLabelValues(string(pa.Action.Kind), "error").Inc()
			s.deps.Logger.Warn("filter action failed",
				slog.Uint64("rule_id", uint64(pa.RuleID)),
				slog.String("action", string(pa.Action.Kind)),
				slog.Uint64("message_id", uint64(messageID)),
				slog.String("error", err.Error()),
			)
		}
	}
	return disabled
}

// execute maps one action onto a mutation
func (s *filterService) execute(ctx context.Context, scope models.Scope, messageID uint, a models.Action) error {
	ids := []uint{messageID}
	var err error
	switch a.Kind {
	case models.ActionMoveTo:
		_, err = s.mail.SetFolder(ctx, scope, ids, models.Location{Folder: a.Folder, UserFolderID: a.UserFolderID})
	case models.ActionMarkAsRead:
		_, err = s.mail.SetUnread(ctx, scope, ids, false, false)
	case models.ActionMarkAsImportant:
		_, err = s.mail.SetImportant(ctx, scope, ids, true, false)
	case models.ActionMarkTag:
		_, err = s.mail.AddTag(ctx, scope, a.TagID, ids, false)
	case models.ActionDeleteForever:
		_, err = s.mail.SetRemoved(ctx, scope, ids)
	default:
		err = apperrors.InvalidInput("unknown action %q", a.Kind)
	}
	return err
}

func isMissingTarget(err error) bool {
	return errors.Is(err, apperrors.ErrUserFolderNotFound) ||
		errors.Is(err, apperrors.ErrTagNotFound) ||
		apperrors.IsRuleTargetMissing(err)
}

// disableRule persists the rule as disabled after its target disappeared
func (s *filterService) disableRule(ctx context.Context, scope models.Scope, ruleID uint, kind models.ActionKind, cause error) {
	if err := s.repos().Filters.SetEnabled(ctx, scope, ruleID, false); err != nil {
		s.deps.Logger.Error("failed to disable filter rule",
			slog.Uint64("rule_id", uint64(ruleID)),
			slog.String("error", err.Error()),
		)
		return
	}
	s.cache.Invalidate(scope)
	metrics.RulesDisabled.Inc()
	s.deps.Audit.RuleDisabled(scope, ruleID, kind, cause.Error())
}

// ApplyRuleToMailboxes runs a rule over the existing mail of the mailboxes
func (s *filterService) ApplyRuleToMailboxes(ctx context.Context, scope models.Scope, ruleID uint, mailboxIDs []uint) (*jobs.Report, error) {
	mailboxIDs = uniqueIDs(mailboxIDs)
	if len(mailboxIDs) == 0 {
		return nil, apperrors.InvalidInput("at least one mailbox id is required")
	}

	repos := s.repos()
	rule, err := repos.Filters.GetByID(ctx, scope, ruleID)
	if err != nil {
		return nil, notFound(err, apperrors.ErrRuleNotFound)
	}
	for _, id := range mailboxIDs {
		if _, err := repos.Mailboxes.GetByID(ctx, scope, id); err != nil {
			return nil, fmt.Errorf("mailbox %d: %w", id, notFound(err, apperrors.ErrMailboxNotFound))
		}
	}

	// a manual run applies the rule even when it is switched off
	manual := *rule
	manual.Enabled = true
	rules := []models.FilterRule{manual}

	units := make([]jobs.Unit, len(mailboxIDs))
	for i, id := range mailboxIDs {
		mailboxID := id
		units[i] = jobs.Unit{
			Name: fmt.Sprintf("mailbox-%d", mailboxID),
			Run: func(ctx context.Context) error {
				return s.applyToMailbox(ctx, scope, mailboxID, rules)
			},
		}
	}

	report := s.pool.Run(ctx, fmt.Sprintf("apply-rule-%d", ruleID), units)
	return report, nil
}

func (s *filterService) applyToMailbox(ctx context.Context, scope models.Scope, mailboxID uint, rules []models.FilterRule) error {
	repos := s.repos()
	var after uint
	for {
		ids, err := repos.Messages.ListIDsByMailbox(ctx, mailboxID, after, applyPageSize)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		after = ids[len(ids)-1]

		msgs, err := repos.Messages.GetByIDs(ctx, scope, ids)
		if err != nil {
			return err
		}
		for i := range msgs {
			m := &msgs[i]
			if m.Removed {
				continue
			}
			plan := filter.Evaluate(rules, filter.EnvelopeOf(m))
			if plan.Empty() {
				continue
			}
			if disabled := s.apply(ctx, scope, m.ID, plan); len(disabled) > 0 {
				return fmt.Errorf("rule %d: %w", rules[0].ID, apperrors.ErrRuleTargetMissing)
			}
		}

		if len(ids) < applyPageSize {
			return nil
		}
	}
}
