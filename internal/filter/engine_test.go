package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
)

func invoiceEnvelope() Envelope {
	return Envelope{
		MessageID: 10,
		MailboxID: 1,
		Folder:    models.FolderInbox,
		From:      `"Billing Dept" <billing@acme.com>`,
		To:        "me@example.com",
		Cc:        "Team <team@example.com>, other@example.com",
		Subject:   "Invoice #42",
	}
}

func rule(id uint, policy models.MatchPolicy, conds []models.Condition, actions ...models.Action) models.FilterRule {
	return models.FilterRule{
		ID:          id,
		Enabled:     true,
		MatchPolicy: policy,
		Conditions:  conds,
		Actions:     actions,
	}
}

func actionKinds(p Plan) []models.ActionKind {
	var kinds []models.ActionKind
	for _, a := range p.Actions {
		kinds = append(kinds, a.Action.Kind)
	}
	return kinds
}

func TestEvaluate_MatchAllInvoiceFromBilling(t *testing.T) {
	r := rule(1, models.MatchAll, []models.Condition{
		{Key: models.ConditionSubject, Operator: models.OperatorContains, Value: "invoice"},
		{Key: models.ConditionFrom, Operator: models.OperatorContains, Value: "billing"},
	}, models.Action{Kind: models.ActionMarkAsImportant})

	plan := Evaluate([]models.FilterRule{r}, invoiceEnvelope())
	assert.Equal(t, []models.ActionKind{models.ActionMarkAsImportant}, actionKinds(plan))

	env := invoiceEnvelope()
	env.From = "sales@acme.com"
	plan = Evaluate([]models.FilterRule{r}, env)
	assert.True(t, plan.Empty())
	require.Len(t, plan.Outcomes, 1)
	assert.Equal(t, 1, plan.Outcomes[0].Successes)
	assert.False(t, plan.Outcomes[0].Applied)
}

func TestEvaluate_MatchAtLeastOne(t *testing.T) {
	r := rule(1, models.MatchAtLeastOne, []models.Condition{
		{Key: models.ConditionSubject, Operator: models.OperatorContains, Value: "receipt"},
		{Key: models.ConditionFrom, Operator: models.OperatorMatches, Value: "BILLING@ACME.COM"},
	}, models.Action{Kind: models.ActionMarkAsRead})

	plan := Evaluate([]models.FilterRule{r}, invoiceEnvelope())
	assert.Equal(t, []models.ActionKind{models.ActionMarkAsRead}, actionKinds(plan))
}

func TestEvaluate_ConditionOperators(t *testing.T) {
	env := invoiceEnvelope()
	tests := []struct {
		name string
		cond models.Condition
		want bool
	}{
		{"from display name matches", models.Condition{Key: models.ConditionFrom, Operator: models.OperatorMatches, Value: "billing dept"}, true},
		{"from address matches", models.Condition{Key: models.ConditionFrom, Operator: models.OperatorMatches, Value: "billing@acme.com"}, true},
		{"from partial does not match", models.Condition{Key: models.ConditionFrom, Operator: models.OperatorMatches, Value: "billing"}, false},
		{"from not contains", models.Condition{Key: models.ConditionFrom, Operator: models.OperatorNotContains, Value: "billing"}, false},
		{"to contains", models.Condition{Key: models.ConditionTo, Operator: models.OperatorContains, Value: "example.com"}, true},
		{"cc any recipient", models.Condition{Key: models.ConditionCc, Operator: models.OperatorMatches, Value: "other@example.com"}, true},
		{"cc recipient name", models.Condition{Key: models.ConditionCc, Operator: models.OperatorMatches, Value: "team"}, true},
		{"to or cc covers cc", models.Condition{Key: models.ConditionToOrCc, Operator: models.OperatorMatches, Value: "team@example.com"}, true},
		{"to or cc covers to", models.Condition{Key: models.ConditionToOrCc, Operator: models.OperatorMatches, Value: "me@example.com"}, true},
		{"subject not matches", models.Condition{Key: models.ConditionSubject, Operator: models.OperatorNotMatches, Value: "invoice"}, true},
		{"subject matches ignoring case", models.Condition{Key: models.ConditionSubject, Operator: models.OperatorMatches, Value: "INVOICE #42"}, true},
		{"empty value against filled field", models.Condition{Key: models.ConditionSubject, Operator: models.OperatorContains, Value: ""}, false},
		{"unknown operator", models.Condition{Key: models.ConditionSubject, Operator: "regex", Value: "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evalCondition(tt.cond, env))
		})
	}
}

func TestEvaluate_EmptyValueMatchesEmptyField(t *testing.T) {
	env := invoiceEnvelope()
	env.Cc = ""
	assert.True(t, evalCondition(models.Condition{Key: models.ConditionCc, Operator: models.OperatorMatches}, env))
	assert.False(t, evalCondition(models.Condition{Key: models.ConditionCc, Operator: models.OperatorNotMatches}, env))
}

func TestEvaluate_MalformedAddressFallsBack(t *testing.T) {
	env := invoiceEnvelope()
	env.From = "billing@acme.com (broken"
	assert.True(t, evalCondition(models.Condition{Key: models.ConditionFrom, Operator: models.OperatorContains, Value: "billing@acme.com"}, env))
}

func TestEvaluate_ScopeFilters(t *testing.T) {
	base := rule(1, models.MatchAll, []models.Condition{
		{Key: models.ConditionSubject, Operator: models.OperatorContains, Value: "invoice"},
	}, models.Action{Kind: models.ActionMarkAsRead})

	t.Run("folder outside scope", func(t *testing.T) {
		r := base
		r.Folders = []models.Folder{models.FolderSpam}
		assert.Empty(t, Evaluate([]models.FilterRule{r}, invoiceEnvelope()).Outcomes)
	})

	t.Run("folder inside scope", func(t *testing.T) {
		r := base
		r.Folders = []models.Folder{models.FolderSpam, models.FolderInbox}
		assert.False(t, Evaluate([]models.FilterRule{r}, invoiceEnvelope()).Empty())
	})

	t.Run("mailbox outside scope", func(t *testing.T) {
		r := base
		r.Mailboxes = []uint{7}
		assert.True(t, Evaluate([]models.FilterRule{r}, invoiceEnvelope()).Empty())
	})

	t.Run("requires attachments", func(t *testing.T) {
		r := base
		r.Attachments = models.AttachmentsWith
		assert.True(t, Evaluate([]models.FilterRule{r}, invoiceEnvelope()).Empty())

		env := invoiceEnvelope()
		env.HasAttachments = true
		assert.False(t, Evaluate([]models.FilterRule{r}, env).Empty())
	})

	t.Run("requires no attachments", func(t *testing.T) {
		r := base
		r.Attachments = models.AttachmentsWithout
		env := invoiceEnvelope()
		env.HasAttachments = true
		assert.True(t, Evaluate([]models.FilterRule{r}, env).Empty())
	})

	t.Run("disabled rule", func(t *testing.T) {
		r := base
		r.Enabled = false
		assert.Empty(t, Evaluate([]models.FilterRule{r}, invoiceEnvelope()).Outcomes)
	})
}

func TestEvaluate_IgnoreOtherStopsOnAnySuccess(t *testing.T) {
	first := rule(1, models.MatchAll, []models.Condition{
		{Key: models.ConditionSubject, Operator: models.OperatorContains, Value: "invoice"},
		{Key: models.ConditionFrom, Operator: models.OperatorContains, Value: "nobody"},
	}, models.Action{Kind: models.ActionMarkAsRead})
	first.IgnoreOther = true

	second := rule(2, models.MatchAll, []models.Condition{
		{Key: models.ConditionSubject, Operator: models.OperatorContains, Value: "invoice"},
	}, models.Action{Kind: models.ActionMarkAsImportant})

	plan := Evaluate([]models.FilterRule{first, second}, invoiceEnvelope())

	// first rule is not applied but one condition succeeded
	assert.True(t, plan.Empty())
	assert.Equal(t, uint(1), plan.StoppedBy)
	assert.Len(t, plan.Outcomes, 1)
}

func TestEvaluate_IgnoreOtherWithoutSuccessContinues(t *testing.T) {
	first := rule(1, models.MatchAll, []models.Condition{
		{Key: models.ConditionSubject, Operator: models.OperatorContains, Value: "newsletter"},
	}, models.Action{Kind: models.ActionMarkAsRead})
	first.IgnoreOther = true

	second := rule(2, models.MatchAll, []models.Condition{
		{Key: models.ConditionSubject, Operator: models.OperatorContains, Value: "invoice"},
	}, models.Action{Kind: models.ActionMarkAsImportant})

	plan := Evaluate([]models.FilterRule{first, second}, invoiceEnvelope())
	assert.Equal(t, []models.ActionKind{models.ActionMarkAsImportant}, actionKinds(plan))
	assert.Zero(t, plan.StoppedBy)
}

func TestEvaluate_DeleteForeverDominates(t *testing.T) {
	subject := []models.Condition{{Key: models.ConditionSubject, Operator: models.OperatorContains, Value: "invoice"}}
	r1 := rule(1, models.MatchAll, subject,
		models.Action{Kind: models.ActionMoveTo, Folder: models.FolderSpam},
		models.Action{Kind: models.ActionMarkAsRead},
	)
	r2 := rule(2, models.MatchAll, subject, models.Action{Kind: models.ActionDeleteForever})

	plan := Evaluate([]models.FilterRule{r1, r2}, invoiceEnvelope())
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, models.ActionDeleteForever, plan.Actions[0].Action.Kind)
	assert.Equal(t, uint(2), plan.Actions[0].RuleID)
}

func TestEvaluate_DeduplicatesAcrossRules(t *testing.T) {
	subject := []models.Condition{{Key: models.ConditionSubject, Operator: models.OperatorContains, Value: "invoice"}}
	r1 := rule(1, models.MatchAll, subject,
		models.Action{Kind: models.ActionMoveTo, Folder: models.FolderSpam},
		models.Action{Kind: models.ActionMarkTag, TagID: 3},
	)
	r2 := rule(2, models.MatchAll, subject,
		models.Action{Kind: models.ActionMoveTo, Folder: models.FolderTrash},
		models.Action{Kind: models.ActionMarkTag, TagID: 3},
		models.Action{Kind: models.ActionMarkTag, TagID: 4},
	)

	plan := Evaluate([]models.FilterRule{r1, r2}, invoiceEnvelope())
	require.Len(t, plan.Actions, 3)
	assert.Equal(t, models.FolderSpam, plan.Actions[0].Action.Folder)
	assert.Equal(t, uint(3), plan.Actions[1].Action.TagID)
	assert.Equal(t, uint(4), plan.Actions[2].Action.TagID)
	assert.Equal(t, uint(2), plan.Actions[2].RuleID)
}

func TestEnvelopeOf(t *testing.T) {
	msg := &models.Message{
		ID:              5,
		MailboxID:       2,
		Folder:          models.FolderSpam,
		FromAddress:     "a@b.c",
		Subject:         "hi",
		AttachmentCount: 2,
	}
	env := EnvelopeOf(msg)
	assert.Equal(t, uint(5), env.MessageID)
	assert.Equal(t, models.FolderSpam, env.Folder)
	assert.True(t, env.HasAttachments)
}
