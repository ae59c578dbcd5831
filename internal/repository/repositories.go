package repository

import (
	"github.com/welldanyogia/webrana-mailcore/internal/storage"
	"gorm.io/gorm"
)

// Repositories bundles every repository bound to one connection or transaction
type Repositories struct {
	Mailboxes   MailboxRepository
	Messages    MessageRepository
	Attachments AttachmentRepository
	Chains      ChainRepository
	Counters    FolderCounterRepository
	UserFolders UserFolderRepository
	Tags        TagRepository
	Filters     FilterRuleRepository
	Quota       QuotaRepository
}

// New creates repositories on db, which may be a transaction handle
func New(db *gorm.DB, fileStorage storage.FileStorage) *Repositories {
	return &Repositories{
		Mailboxes:   NewMailboxRepository(db),
		Messages:    NewMessageRepository(db),
		Attachments: NewAttachmentRepository(db, fileStorage),
		Chains:      NewChainRepository(db),
		Counters:    NewFolderCounterRepository(db),
		UserFolders: NewUserFolderRepository(db),
		Tags:        NewTagRepository(db),
		Filters:     NewFilterRuleRepository(db),
		Quota:       NewQuotaRepository(db),
	}
}
