// Package mocks holds testify mocks of the service and storage interfaces.
package mocks

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/welldanyogia/webrana-mailcore/internal/jobs"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"github.com/welldanyogia/webrana-mailcore/internal/services"
)

// MockMailService implements services.MailService
type MockMailService struct {
	mock.Mock
}

func (m *MockMailService) SetUnread(ctx context.Context, scope models.Scope, ids []uint, unread, allChain bool) (int, error) {
	args := m.Called(ctx, scope, ids, unread, allChain)
	return args.Int(0), args.Error(1)
}

func (m *MockMailService) SetImportant(ctx context.Context, scope models.Scope, ids []uint, important, allChain bool) (int, error) {
	args := m.Called(ctx, scope, ids, important, allChain)
	return args.Int(0), args.Error(1)
}

func (m *MockMailService) SetFolder(ctx context.Context, scope models.Scope, ids []uint, target models.Location) (int, error) {
	args := m.Called(ctx, scope, ids, target)
	return args.Int(0), args.Error(1)
}

func (m *MockMailService) SetRemoved(ctx context.Context, scope models.Scope, ids []uint) (*services.RemovalResult, error) {
	args := m.Called(ctx, scope, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.RemovalResult), args.Error(1)
}

func (m *MockMailService) SetRemovedInFolder(ctx context.Context, scope models.Scope, loc models.Location) (*services.RemovalResult, error) {
	args := m.Called(ctx, scope, loc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.RemovalResult), args.Error(1)
}

func (m *MockMailService) Restore(ctx context.Context, scope models.Scope, ids []uint) (int, error) {
	args := m.Called(ctx, scope, ids)
	return args.Int(0), args.Error(1)
}

func (m *MockMailService) AddTag(ctx context.Context, scope models.Scope, tagID uint, ids []uint, allChain bool) (int, error) {
	args := m.Called(ctx, scope, tagID, ids, allChain)
	return args.Int(0), args.Error(1)
}

func (m *MockMailService) RemoveTag(ctx context.Context, scope models.Scope, tagID uint, ids []uint) (int, error) {
	args := m.Called(ctx, scope, tagID, ids)
	return args.Int(0), args.Error(1)
}

func (m *MockMailService) UpdateChain(ctx context.Context, scope models.Scope, key models.ChainKey) error {
	args := m.Called(ctx, scope, key)
	return args.Error(0)
}

func (m *MockMailService) GetMessage(ctx context.Context, scope models.Scope, id uint) (*models.Message, error) {
	args := m.Called(ctx, scope, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMailService) ListMessages(ctx context.Context, scope models.Scope, mailboxID uint, loc models.Location, limit, offset int) ([]models.MessageListItem, int64, error) {
	args := m.Called(ctx, scope, mailboxID, loc, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]models.MessageListItem), args.Get(1).(int64), args.Error(2)
}

func (m *MockMailService) ListConversations(ctx context.Context, scope models.Scope, mailboxID uint, loc models.Location, limit, offset int) ([]models.Chain, int64, error) {
	args := m.Called(ctx, scope, mailboxID, loc, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]models.Chain), args.Get(1).(int64), args.Error(2)
}

func (m *MockMailService) ListAttachments(ctx context.Context, scope models.Scope, messageID uint) ([]models.Attachment, error) {
	args := m.Called(ctx, scope, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Attachment), args.Error(1)
}

func (m *MockMailService) GetAttachment(ctx context.Context, scope models.Scope, id uint) (*models.Attachment, error) {
	args := m.Called(ctx, scope, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Attachment), args.Error(1)
}

func (m *MockMailService) OpenAttachment(ctx context.Context, scope models.Scope, id uint) (*models.Attachment, io.ReadCloser, error) {
	args := m.Called(ctx, scope, id)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.Attachment), args.Get(1).(io.ReadCloser), args.Error(2)
}

// MockMailboxService implements services.MailboxService
type MockMailboxService struct {
	mock.Mock
}

func (m *MockMailboxService) CreateMailbox(ctx context.Context, scope models.Scope, address, name string) (*models.Mailbox, error) {
	args := m.Called(ctx, scope, address, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Mailbox), args.Error(1)
}

func (m *MockMailboxService) GetMailbox(ctx context.Context, scope models.Scope, id uint) (*models.Mailbox, error) {
	args := m.Called(ctx, scope, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Mailbox), args.Error(1)
}

func (m *MockMailboxService) ListMailboxes(ctx context.Context, scope models.Scope) ([]models.Mailbox, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Mailbox), args.Error(1)
}

func (m *MockMailboxService) ResolveAddress(ctx context.Context, address string) (*models.Mailbox, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Mailbox), args.Error(1)
}

func (m *MockMailboxService) DeleteMailbox(ctx context.Context, scope models.Scope, id uint) error {
	args := m.Called(ctx, scope, id)
	return args.Error(0)
}

// MockOrganizerService implements services.OrganizerService
type MockOrganizerService struct {
	mock.Mock
}

func (m *MockOrganizerService) CreateUserFolder(ctx context.Context, scope models.Scope, name string) (*models.UserFolder, error) {
	args := m.Called(ctx, scope, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserFolder), args.Error(1)
}

func (m *MockOrganizerService) RenameUserFolder(ctx context.Context, scope models.Scope, id uint, name string) (*models.UserFolder, error) {
	args := m.Called(ctx, scope, id, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserFolder), args.Error(1)
}

func (m *MockOrganizerService) ListUserFolders(ctx context.Context, scope models.Scope) ([]models.UserFolder, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.UserFolder), args.Error(1)
}

func (m *MockOrganizerService) DeleteUserFolder(ctx context.Context, scope models.Scope, id uint) (int, error) {
	args := m.Called(ctx, scope, id)
	return args.Int(0), args.Error(1)
}

func (m *MockOrganizerService) CreateTag(ctx context.Context, scope models.Scope, name, color string) (*models.Tag, error) {
	args := m.Called(ctx, scope, name, color)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tag), args.Error(1)
}

func (m *MockOrganizerService) ListTags(ctx context.Context, scope models.Scope) ([]models.Tag, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Tag), args.Error(1)
}

func (m *MockOrganizerService) DeleteTag(ctx context.Context, scope models.Scope, id uint) error {
	args := m.Called(ctx, scope, id)
	return args.Error(0)
}

// MockFilterService implements services.FilterService
type MockFilterService struct {
	mock.Mock
}

func (m *MockFilterService) CreateRule(ctx context.Context, scope models.Scope, rule *models.FilterRule) error {
	args := m.Called(ctx, scope, rule)
	return args.Error(0)
}

func (m *MockFilterService) UpdateRule(ctx context.Context, scope models.Scope, rule *models.FilterRule) error {
	args := m.Called(ctx, scope, rule)
	return args.Error(0)
}

func (m *MockFilterService) DeleteRule(ctx context.Context, scope models.Scope, id uint) error {
	args := m.Called(ctx, scope, id)
	return args.Error(0)
}

func (m *MockFilterService) GetRule(ctx context.Context, scope models.Scope, id uint) (*models.FilterRule, error) {
	args := m.Called(ctx, scope, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FilterRule), args.Error(1)
}

func (m *MockFilterService) ListRules(ctx context.Context, scope models.Scope) ([]models.FilterRule, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FilterRule), args.Error(1)
}

func (m *MockFilterService) EnableRule(ctx context.Context, scope models.Scope, id uint, enabled bool) error {
	args := m.Called(ctx, scope, id, enabled)
	return args.Error(0)
}

func (m *MockFilterService) ApplyToMessage(ctx context.Context, scope models.Scope, messageID uint) error {
	args := m.Called(ctx, scope, messageID)
	return args.Error(0)
}

func (m *MockFilterService) ApplyRuleToMailboxes(ctx context.Context, scope models.Scope, ruleID uint, mailboxIDs []uint) (*jobs.Report, error) {
	args := m.Called(ctx, scope, ruleID, mailboxIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jobs.Report), args.Error(1)
}

// MockMaintenanceService implements services.MaintenanceService
type MockMaintenanceService struct {
	mock.Mock
}

func (m *MockMaintenanceService) PurgeRemoved(ctx context.Context, retention time.Duration) (int, error) {
	args := m.Called(ctx, retention)
	return args.Int(0), args.Error(1)
}

func (m *MockMaintenanceService) RecalculateAll(ctx context.Context) (*jobs.Report, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jobs.Report), args.Error(1)
}

func (m *MockMaintenanceService) RecalculateScope(ctx context.Context, scope models.Scope) error {
	args := m.Called(ctx, scope)
	return args.Error(0)
}

func (m *MockMaintenanceService) Register(s *jobs.Scheduler, purgeSchedule, recalcSchedule string, retention time.Duration) error {
	args := m.Called(s, purgeSchedule, recalcSchedule, retention)
	return args.Error(0)
}

// MockCounterReader serves folder counters to handlers
type MockCounterReader struct {
	mock.Mock
}

func (m *MockCounterReader) GetFolderCounters(ctx context.Context, scope models.Scope) (*models.FolderCounters, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FolderCounters), args.Error(1)
}

var (
	_ services.MailService        = (*MockMailService)(nil)
	_ services.MailboxService     = (*MockMailboxService)(nil)
	_ services.OrganizerService   = (*MockOrganizerService)(nil)
	_ services.FilterService      = (*MockFilterService)(nil)
	_ services.MaintenanceService = (*MockMaintenanceService)(nil)
)

// MockDeliveryService implements services.DeliveryService
type MockDeliveryService struct {
	mock.Mock
}

func (m *MockDeliveryService) Deliver(ctx context.Context, mailbox *models.Mailbox, in *services.IncomingMessage) (*models.Message, error) {
	args := m.Called(ctx, mailbox, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockDeliveryService) Send(ctx context.Context, scope models.Scope, mailboxID uint, in *services.IncomingMessage) (*models.Message, error) {
	args := m.Called(ctx, scope, mailboxID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

var _ services.DeliveryService = (*MockDeliveryService)(nil)
