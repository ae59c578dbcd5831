package services

import (
	"context"
	"sort"

	"github.com/welldanyogia/webrana-mailcore/internal/events"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"github.com/welldanyogia/webrana-mailcore/internal/repository"
	"github.com/welldanyogia/webrana-mailcore/internal/storage"
	"gorm.io/gorm"
)

// unitOfWork collects what one transaction touched: chains to reprocess,
// counter deltas to flush and events to publish after commit. It is rebuilt
// on every transaction attempt.
type unitOfWork struct {
	ctx   context.Context
	scope models.Scope
	tx    *gorm.DB
	repos *repository.Repositories

	chains   map[models.ChainKey]bool // value: expected to be non-empty
	folders  map[models.Folder]models.CounterDelta
	user     map[uint]models.CounterDelta
	dropped  map[uint]struct{}
	mailbox  map[uint]struct{}
	events   []events.Event
	repaired bool
}

func newUnitOfWork(ctx context.Context, scope models.Scope, tx *gorm.DB, files storage.FileStorage) *unitOfWork {
	return &unitOfWork{
		ctx:     ctx,
		scope:   scope,
		tx:      tx,
		repos:   repository.New(tx, files),
		chains:  make(map[models.ChainKey]bool),
		folders: make(map[models.Folder]models.CounterDelta),
		user:    make(map[uint]models.CounterDelta),
		dropped: make(map[uint]struct{}),
		mailbox: make(map[uint]struct{}),
	}
}

// touch marks a chain for reprocessing before commit
func (u *unitOfWork) touch(key models.ChainKey, expectNonEmpty bool) {
	u.chains[key] = u.chains[key] || expectNonEmpty
	u.mailbox[key.MailboxID] = struct{}{}
}

// addDelta books d against the built-in folder of loc and, for user folders, the folder itself
func (u *unitOfWork) addDelta(loc models.Location, d models.CounterDelta) {
	if d.IsZero() {
		return
	}
	u.folders[loc.Folder] = u.folders[loc.Folder].Add(d)
	if loc.Folder == models.FolderUserFolder && loc.UserFolderID != 0 {
		u.user[loc.UserFolderID] = u.user[loc.UserFolderID].Add(d)
	}
}

// moveOut and moveIn book one message leaving or entering loc
func (u *unitOfWork) moveOut(loc models.Location, unread bool) {
	u.addDelta(loc, models.CounterDelta{Total: -1, Unread: -b2i(unread)})
}

func (u *unitOfWork) moveIn(loc models.Location, unread bool) {
	u.addDelta(loc, models.CounterDelta{Total: 1, Unread: b2i(unread)})
}

// dropUserFolder discards pending deltas of a user folder deleted in this transaction
func (u *unitOfWork) dropUserFolder(id uint) {
	u.dropped[id] = struct{}{}
}

func (u *unitOfWork) publish(e events.Event) {
	u.events = append(u.events, e)
}

func (u *unitOfWork) countersChanged() bool {
	if u.repaired {
		return true
	}
	for _, d := range u.folders {
		if !d.IsZero() {
			return true
		}
	}
	return false
}

func (u *unitOfWork) mailboxIDs() []uint {
	ids := make([]uint, 0, len(u.mailbox))
	for id := range u.mailbox {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// sortedChains returns touched chains in key order so concurrent
// transactions lock chain rows in the same order.
func (u *unitOfWork) sortedChains() []models.ChainKey {
	keys := make([]models.ChainKey, 0, len(u.chains))
	for k := range u.chains {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return chainKeyLess(keys[i], keys[j]) })
	return keys
}

func chainKeyLess(a, b models.ChainKey) bool {
	if a.MailboxID != b.MailboxID {
		return a.MailboxID < b.MailboxID
	}
	if a.Folder != b.Folder {
		return a.Folder < b.Folder
	}
	if a.UserFolderID != b.UserFolderID {
		return a.UserFolderID < b.UserFolderID
	}
	return a.ChainID < b.ChainID
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
