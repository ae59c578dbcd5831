// Package testutil holds shared fixtures for package tests: an in-memory
// database, fluent model builders and a recording event publisher.
package testutil

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/welldanyogia/webrana-mailcore/internal/database"
	"github.com/welldanyogia/webrana-mailcore/internal/events"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Scope is the default tenant user of fixtures
var Scope = models.Scope{TenantID: 1, UserID: "user-1"}

// OtherScope is a second tenant user for isolation tests
var OtherScope = models.Scope{TenantID: 2, UserID: "user-2"}

// NewDB opens a migrated in-memory SQLite database closed with the test.
// The pool is pinned to one connection so every query sees the same database.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, db.AutoMigrate(database.AllModels()...))

	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// NewTransactor returns a transactor with a short retry backoff
func NewTransactor(db *gorm.DB) *database.Transactor {
	cfg := database.DefaultTxConfig(db)
	cfg.Backoff = time.Millisecond
	return database.NewTransactor(db, cfg, DiscardLogger())
}

// DiscardLogger returns a logger writing nowhere
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// CreateMailbox inserts a mailbox owned by scope
func CreateMailbox(t testing.TB, db *gorm.DB, scope models.Scope, address string) *models.Mailbox {
	t.Helper()
	mb := &models.Mailbox{TenantID: scope.TenantID, UserID: scope.UserID, Address: address}
	require.NoError(t, db.Create(mb).Error)
	return mb
}

// CreateUserFolder inserts a user folder owned by scope
func CreateUserFolder(t testing.TB, db *gorm.DB, scope models.Scope, name string) *models.UserFolder {
	t.Helper()
	f := &models.UserFolder{TenantID: scope.TenantID, UserID: scope.UserID, Name: name}
	require.NoError(t, db.Create(f).Error)
	return f
}

// CreateTag inserts a tag owned by scope
func CreateTag(t testing.TB, db *gorm.DB, scope models.Scope, name string) *models.Tag {
	t.Helper()
	tag := &models.Tag{TenantID: scope.TenantID, UserID: scope.UserID, Name: name}
	require.NoError(t, db.Create(tag).Error)
	return tag
}

// MessageBuilder creates test Message instances with fluent API
type MessageBuilder struct {
	message models.Message
}

var messageSeq struct {
	sync.Mutex
	n int
}

func nextMimeID() string {
	messageSeq.Lock()
	defer messageSeq.Unlock()
	messageSeq.n++
	return fmt.Sprintf("<msg-%d@test.local>", messageSeq.n)
}

// NewMessageBuilder creates an unread Inbox message of the mailbox that is its own chain root
func NewMessageBuilder(mailbox *models.Mailbox) *MessageBuilder {
	mimeID := nextMimeID()
	now := time.Now().UTC().Truncate(time.Second)
	return &MessageBuilder{
		message: models.Message{
			TenantID:      mailbox.TenantID,
			UserID:        mailbox.UserID,
			MailboxID:     mailbox.ID,
			Folder:        models.FolderInbox,
			ChainID:       mimeID,
			ChainDate:     now,
			MimeMessageID: mimeID,
			FromAddress:   "sender@example.com",
			ToAddress:     mailbox.Address,
			Subject:       "Test Subject",
			DateSent:      now,
			Unread:        true,
		},
	}
}

// WithChain puts the message in chainID
func (b *MessageBuilder) WithChain(chainID string) *MessageBuilder {
	b.message.ChainID = chainID
	return b
}

// WithMimeID sets the mime message id
func (b *MessageBuilder) WithMimeID(id string) *MessageBuilder {
	b.message.MimeMessageID = id
	return b
}

// WithReplyTo sets the mime reply-to id
func (b *MessageBuilder) WithReplyTo(id string) *MessageBuilder {
	b.message.MimeReplyToID = id
	return b
}

// WithLocation files the message
func (b *MessageBuilder) WithLocation(loc models.Location) *MessageBuilder {
	b.message.Folder = loc.Folder
	b.message.UserFolderID = loc.UserFolderID
	return b
}

// WithSubject sets the subject
func (b *MessageBuilder) WithSubject(subject string) *MessageBuilder {
	b.message.Subject = subject
	return b
}

// WithFrom sets the sender
func (b *MessageBuilder) WithFrom(from string) *MessageBuilder {
	b.message.FromAddress = from
	return b
}

// WithUnread sets the read state
func (b *MessageBuilder) WithUnread(unread bool) *MessageBuilder {
	b.message.Unread = unread
	return b
}

// WithDate sets the sent date
func (b *MessageBuilder) WithDate(t time.Time) *MessageBuilder {
	b.message.DateSent = t
	return b
}

// Build returns the constructed Message
func (b *MessageBuilder) Build() *models.Message {
	m := b.message
	return &m
}

// Create inserts the message directly, bypassing chain and counter maintenance
func (b *MessageBuilder) Create(t testing.TB, db *gorm.DB) *models.Message {
	t.Helper()
	m := b.Build()
	require.NoError(t, db.Omit(clause.Associations).Create(m).Error)
	return m
}

// RecordingPublisher keeps every published event
type RecordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

// Publish records e
func (p *RecordingPublisher) Publish(e events.Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

// Events returns a copy of the recorded events
func (p *RecordingPublisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

// Kinds returns the kinds of the recorded events in order
func (p *RecordingPublisher) Kinds() []events.Kind {
	var kinds []events.Kind
	for _, e := range p.Events() {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// Reset forgets recorded events
func (p *RecordingPublisher) Reset() {
	p.mu.Lock()
	p.events = nil
	p.mu.Unlock()
}
