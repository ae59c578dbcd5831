package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	apperrors "github.com/welldanyogia/webrana-mailcore/internal/errors"
	"github.com/welldanyogia/webrana-mailcore/internal/events"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
)

// Batch and paging limits
const (
	MaxBatchSize    = 5000
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// RemovalResult reports a soft delete
type RemovalResult struct {
	Removed    int   `json:"removed"`
	FreedBytes int64 `json:"freed_bytes"`
}

// MailService is the set of batch mutations over messages. Every call is one
// transaction that also reprocesses the touched chains and folder counters.
// Ids outside the scope, or messages already in the requested state, are
// skipped; a call that changes nothing succeeds.
type MailService interface {
	// SetUnread flips the read state. With allChain the whole conversation
	// of each message is included.
	SetUnread(ctx context.Context, scope models.Scope, ids []uint, unread, allChain bool) (int, error)

	// SetImportant flips the importance flag
	SetImportant(ctx context.Context, scope models.Scope, ids []uint, important, allChain bool) (int, error)

	// SetFolder moves messages to target. Moving to Trash records where each message came from.
	SetFolder(ctx context.Context, scope models.Scope, ids []uint, target models.Location) (int, error)

	// SetRemoved soft deletes messages, clearing their tags and releasing quota
	SetRemoved(ctx context.Context, scope models.Scope, ids []uint) (*RemovalResult, error)

	// SetRemovedInFolder soft deletes every live message filed at loc
	SetRemovedInFolder(ctx context.Context, scope models.Scope, loc models.Location) (*RemovalResult, error)

	// Restore brings removed messages back to where they were removed from,
	// and messages sitting in Trash back to where they were trashed from.
	Restore(ctx context.Context, scope models.Scope, ids []uint) (int, error)

	// AddTag tags messages
	AddTag(ctx context.Context, scope models.Scope, tagID uint, ids []uint, allChain bool) (int, error)

	// RemoveTag untags messages
	RemoveTag(ctx context.Context, scope models.Scope, tagID uint, ids []uint) (int, error)

	// UpdateChain recomputes one chain row and its conversation counters
	UpdateChain(ctx context.Context, scope models.Scope, key models.ChainKey) error

	GetMessage(ctx context.Context, scope models.Scope, id uint) (*models.Message, error)
	ListMessages(ctx context.Context, scope models.Scope, mailboxID uint, loc models.Location, limit, offset int) ([]models.MessageListItem, int64, error)
	ListConversations(ctx context.Context, scope models.Scope, mailboxID uint, loc models.Location, limit, offset int) ([]models.Chain, int64, error)
	ListAttachments(ctx context.Context, scope models.Scope, messageID uint) ([]models.Attachment, error)
	GetAttachment(ctx context.Context, scope models.Scope, id uint) (*models.Attachment, error)
	OpenAttachment(ctx context.Context, scope models.Scope, id uint) (*models.Attachment, io.ReadCloser, error)
}

// mailService implements MailService
type mailService struct {
	*core
}

// NewMailService creates a new MailService instance
func NewMailService(deps Deps) MailService {
	return &mailService{core: newCore(deps)}
}

func validateIDs(ids []uint) ([]uint, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, apperrors.InvalidInput("at least one message id is required")
	}
	if len(ids) > MaxBatchSize {
		return nil, apperrors.InvalidInput("at most %d messages per request", MaxBatchSize)
	}
	return ids, nil
}

// load locks the scope's messages among ids, keeping those with the given removed state
func load(u *unitOfWork, ids []uint, removed bool) ([]models.Message, error) {
	msgs, err := u.repos.Messages.LockByIDs(u.ctx, u.scope, ids)
	if err != nil {
		return nil, err
	}
	out := msgs[:0]
	for _, m := range msgs {
		if m.Removed == removed {
			out = append(out, m)
		}
	}
	return out, nil
}

// expandChains adds every live member of the conversations of msgs
func expandChains(u *unitOfWork, msgs []models.Message) ([]models.Message, error) {
	seen := make(map[uint]struct{}, len(msgs))
	keys := make(map[models.ChainKey]struct{})
	for _, m := range msgs {
		seen[m.ID] = struct{}{}
		keys[m.ChainKey()] = struct{}{}
	}

	sorted := make([]models.ChainKey, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Slice(sorted, func(i, j int) bool { return chainKeyLess(sorted[i], sorted[j]) })

	for _, key := range sorted {
		members, err := u.repos.Messages.ListChainMembers(u.ctx, u.scope, key)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if _, ok := seen[m.ID]; !ok {
				seen[m.ID] = struct{}{}
				msgs = append(msgs, m)
			}
		}
	}
	return msgs, nil
}

func changedEvent(scope models.Scope, ids []uint, fields map[string]interface{}) events.Event {
	e := events.New(events.MessagesChanged, scope)
	e.MessageIDs = ids
	e.Fields = fields
	return e
}

// SetUnread flips the unread flag and books the per-folder unread deltas
func (s *mailService) SetUnread(ctx context.Context, scope models.Scope, ids []uint, unread, allChain bool) (int, error) {
	ids, err := validateIDs(ids)
	if err != nil {
		return 0, err
	}

	var changed int
	err = s.mutate(ctx, scope, func(u *unitOfWork) error {
		changed = 0
		msgs, err := load(u, ids, false)
		if err != nil {
			return err
		}
		if allChain {
			if msgs, err = expandChains(u, msgs); err != nil {
				return err
			}
		}

		var targets []uint
		for _, m := range msgs {
			if m.Unread == unread {
				continue
			}
			targets = append(targets, m.ID)
			sign := int64(1)
			if !unread {
				sign = -1
			}
			u.addDelta(m.Location(), models.CounterDelta{Unread: sign})
			u.touch(m.ChainKey(), true)
		}
		if len(targets) == 0 {
			return nil
		}

		fields := map[string]interface{}{"unread": unread}
		if _, err := u.repos.Messages.UpdateFields(u.ctx, targets, fields); err != nil {
			return err
		}
		changed = len(targets)
		u.publish(changedEvent(scope, targets, fields))
		return nil
	})
	return changed, err
}

// SetImportant flips the importance flag; only chain rows change
func (s *mailService) SetImportant(ctx context.Context, scope models.Scope, ids []uint, important, allChain bool) (int, error) {
	ids, err := validateIDs(ids)
	if err != nil {
		return 0, err
	}

	var changed int
	err = s.mutate(ctx, scope, func(u *unitOfWork) error {
		changed = 0
		msgs, err := load(u, ids, false)
		if err != nil {
			return err
		}
		if allChain {
			if msgs, err = expandChains(u, msgs); err != nil {
				return err
			}
		}

		var targets []uint
		for _, m := range msgs {
			if m.Important == important {
				continue
			}
			targets = append(targets, m.ID)
			u.touch(m.ChainKey(), true)
		}
		if len(targets) == 0 {
			return nil
		}

		fields := map[string]interface{}{"important": important}
		if _, err := u.repos.Messages.UpdateFields(u.ctx, targets, fields); err != nil {
			return err
		}
		changed = len(targets)
		u.publish(changedEvent(scope, targets, fields))
		return nil
	})
	return changed, err
}

// resolveTarget validates a destination location inside the transaction
func resolveTarget(u *unitOfWork, loc models.Location) (models.Location, error) {
	if !loc.Folder.Valid() {
		return loc, apperrors.InvalidInput("unknown folder %d", int(loc.Folder))
	}
	if loc.Folder != models.FolderUserFolder {
		if loc.UserFolderID != 0 {
			return loc, apperrors.InvalidInput("user folder id is only valid with the user folder type")
		}
		return loc, nil
	}
	if loc.UserFolderID == 0 {
		return loc, apperrors.InvalidInput("user folder id is required")
	}
	if _, err := u.repos.UserFolders.GetByID(u.ctx, u.scope, loc.UserFolderID); err != nil {
		return loc, fmt.Errorf("user folder %d: %w", loc.UserFolderID, notFound(err, apperrors.ErrUserFolderNotFound))
	}
	return loc, nil
}

// moveMessages files msgs at target, skipping those already there
func moveMessages(u *unitOfWork, msgs []models.Message, target models.Location) (int, error) {
	groups := make(map[models.Location][]uint)
	var order []models.Location
	for _, m := range msgs {
		from := m.Location()
		if from == target {
			continue
		}
		if _, ok := groups[from]; !ok {
			order = append(order, from)
		}
		groups[from] = append(groups[from], m.ID)

		u.moveOut(from, m.Unread)
		u.moveIn(target, m.Unread)
		u.touch(m.ChainKey(), false)
		key := m.ChainKey()
		key.Folder, key.UserFolderID = target.Folder, target.UserFolderID
		u.touch(key, true)
	}

	moved := 0
	for _, from := range order {
		fields := map[string]interface{}{
			"folder":                 target.Folder,
			"user_folder_id":         target.UserFolderID,
			"restore_folder":         models.Folder(0),
			"restore_user_folder_id": uint(0),
		}
		if target.Folder == models.FolderTrash {
			fields["restore_folder"] = from.Folder
			fields["restore_user_folder_id"] = from.UserFolderID
		}
		if _, err := u.repos.Messages.UpdateFields(u.ctx, groups[from], fields); err != nil {
			return 0, err
		}
		moved += len(groups[from])
	}
	return moved, nil
}

// SetFolder moves messages and books source and destination deltas
func (s *mailService) SetFolder(ctx context.Context, scope models.Scope, ids []uint, target models.Location) (int, error) {
	ids, err := validateIDs(ids)
	if err != nil {
		return 0, err
	}

	var moved int
	err = s.mutate(ctx, scope, func(u *unitOfWork) error {
		moved = 0
		target, err := resolveTarget(u, target)
		if err != nil {
			return err
		}
		msgs, err := load(u, ids, false)
		if err != nil {
			return err
		}
		if moved, err = moveMessages(u, msgs, target); err != nil {
			return err
		}
		if moved > 0 {
			u.publish(changedEvent(scope, messageIDs(msgs), map[string]interface{}{
				"folder":         target.Folder,
				"user_folder_id": target.UserFolderID,
			}))
		}
		return nil
	})
	return moved, err
}

// removeMessages soft deletes live messages, remembering where they were filed
func removeMessages(u *unitOfWork, msgs []models.Message) (*RemovalResult, error) {
	res := &RemovalResult{}
	if len(msgs) == 0 {
		return res, nil
	}

	now := time.Now().UTC()
	groups := make(map[models.Location][]uint)
	var order []models.Location
	for _, m := range msgs {
		loc := m.Location()
		if _, ok := groups[loc]; !ok {
			order = append(order, loc)
		}
		groups[loc] = append(groups[loc], m.ID)
		u.moveOut(loc, m.Unread)
		u.touch(m.ChainKey(), false)
	}

	for _, loc := range order {
		if _, err := u.repos.Messages.UpdateFields(u.ctx, groups[loc], map[string]interface{}{
			"removed":                true,
			"removed_at":             now,
			"restore_folder":         loc.Folder,
			"restore_user_folder_id": loc.UserFolderID,
		}); err != nil {
			return nil, err
		}
	}

	ids := messageIDs(msgs)
	tagIDs, err := u.repos.Tags.ClearMessages(u.ctx, ids)
	if err != nil {
		return nil, err
	}
	if err := u.repos.Tags.Recount(u.ctx, tagIDs); err != nil {
		return nil, err
	}

	freed, err := u.repos.Attachments.SumSizeByMessages(u.ctx, ids)
	if err != nil {
		return nil, err
	}
	if freed > 0 {
		if err := u.repos.Quota.Adjust(u.ctx, u.scope, -freed); err != nil {
			return nil, err
		}
	}

	e := events.New(events.MessagesRemoved, u.scope)
	e.MessageIDs = ids
	u.publish(e)

	res.Removed = len(msgs)
	res.FreedBytes = freed
	return res, nil
}

// SetRemoved soft deletes messages by id
func (s *mailService) SetRemoved(ctx context.Context, scope models.Scope, ids []uint) (*RemovalResult, error) {
	ids, err := validateIDs(ids)
	if err != nil {
		return nil, err
	}

	var res *RemovalResult
	err = s.mutate(ctx, scope, func(u *unitOfWork) error {
		msgs, err := load(u, ids, false)
		if err != nil {
			return err
		}
		res, err = removeMessages(u, msgs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// SetRemovedInFolder soft deletes every live message of the scope filed at loc
func (s *mailService) SetRemovedInFolder(ctx context.Context, scope models.Scope, loc models.Location) (*RemovalResult, error) {
	var res *RemovalResult
	err := s.mutate(ctx, scope, func(u *unitOfWork) error {
		loc, err := resolveTarget(u, loc)
		if err != nil {
			return err
		}
		ids, err := u.repos.Messages.ListIDsByLocation(u.ctx, u.scope, loc)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			res = &RemovalResult{}
			return nil
		}
		msgs, err := load(u, ids, false)
		if err != nil {
			return err
		}
		res, err = removeMessages(u, msgs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// restoreLocation returns where a message goes back to. Missing or deleted
// destinations fall back to the Inbox.
func restoreLocation(u *unitOfWork, m *models.Message, userFolders map[uint]bool) (models.Location, error) {
	loc := models.Location{Folder: m.RestoreFolder, UserFolderID: m.RestoreUserFolderID}
	inbox := models.Location{Folder: models.FolderInbox}

	if !loc.Folder.Valid() {
		return inbox, nil
	}
	if loc.Folder != models.FolderUserFolder {
		loc.UserFolderID = 0
		return loc, nil
	}
	if loc.UserFolderID == 0 {
		return inbox, nil
	}

	exists, checked := userFolders[loc.UserFolderID]
	if !checked {
		_, err := u.repos.UserFolders.GetByID(u.ctx, u.scope, loc.UserFolderID)
		switch {
		case err == nil:
			exists = true
		case apperrors.IsNotFound(err):
			exists = false
		default:
			return loc, err
		}
		userFolders[loc.UserFolderID] = exists
	}
	if !exists {
		return inbox, nil
	}
	return loc, nil
}

// Restore reverses SetRemoved, and moves trashed messages back out of Trash
func (s *mailService) Restore(ctx context.Context, scope models.Scope, ids []uint) (int, error) {
	ids, err := validateIDs(ids)
	if err != nil {
		return 0, err
	}

	var restored int
	err = s.mutate(ctx, scope, func(u *unitOfWork) error {
		restored = 0
		msgs, err := u.repos.Messages.LockByIDs(u.ctx, u.scope, ids)
		if err != nil {
			return err
		}

		userFolders := make(map[uint]bool)
		removedGroups := make(map[models.Location][]uint)
		trashGroups := make(map[models.Location][]models.Message)
		var removedOrder, trashOrder []models.Location
		var removedIDs []uint

		for i := range msgs {
			m := &msgs[i]
			if !m.Removed && m.Folder != models.FolderTrash {
				continue
			}
			dest, err := restoreLocation(u, m, userFolders)
			if err != nil {
				return err
			}

			if m.Removed {
				if _, ok := removedGroups[dest]; !ok {
					removedOrder = append(removedOrder, dest)
				}
				removedGroups[dest] = append(removedGroups[dest], m.ID)
				removedIDs = append(removedIDs, m.ID)
				u.moveIn(dest, m.Unread)
				u.touch(m.ChainKey(), false)
				key := m.ChainKey()
				key.Folder, key.UserFolderID = dest.Folder, dest.UserFolderID
				u.touch(key, true)
				continue
			}

			if _, ok := trashGroups[dest]; !ok {
				trashOrder = append(trashOrder, dest)
			}
			trashGroups[dest] = append(trashGroups[dest], *m)
		}

		for _, dest := range removedOrder {
			if _, err := u.repos.Messages.UpdateFields(u.ctx, removedGroups[dest], map[string]interface{}{
				"removed":                false,
				"removed_at":             nil,
				"folder":                 dest.Folder,
				"user_folder_id":         dest.UserFolderID,
				"restore_folder":         models.Folder(0),
				"restore_user_folder_id": uint(0),
			}); err != nil {
				return err
			}
			restored += len(removedGroups[dest])
		}

		if len(removedIDs) > 0 {
			bytes, err := u.repos.Attachments.SumSizeByMessages(u.ctx, removedIDs)
			if err != nil {
				return err
			}
			if bytes > 0 {
				if err := u.repos.Quota.Adjust(u.ctx, u.scope, bytes); err != nil {
					return err
				}
			}
		}

		for _, dest := range trashOrder {
			n, err := moveMessages(u, trashGroups[dest], dest)
			if err != nil {
				return err
			}
			restored += n
		}

		if restored > 0 {
			u.publish(changedEvent(scope, ids, map[string]interface{}{"removed": false}))
		}
		return nil
	})
	return restored, err
}

func (s *mailService) tagTarget(u *unitOfWork, tagID uint) error {
	if tagID == 0 {
		return apperrors.InvalidInput("tag id is required")
	}
	if _, err := u.repos.Tags.GetByID(u.ctx, u.scope, tagID); err != nil {
		return fmt.Errorf("tag %d: %w", tagID, notFound(err, apperrors.ErrTagNotFound))
	}
	return nil
}

// AddTag links a tag to messages and refreshes chain tag sets
func (s *mailService) AddTag(ctx context.Context, scope models.Scope, tagID uint, ids []uint, allChain bool) (int, error) {
	ids, err := validateIDs(ids)
	if err != nil {
		return 0, err
	}

	var tagged int
	err = s.mutate(ctx, scope, func(u *unitOfWork) error {
		tagged = 0
		if err := s.tagTarget(u, tagID); err != nil {
			return err
		}
		msgs, err := load(u, ids, false)
		if err != nil {
			return err
		}
		if allChain {
			if msgs, err = expandChains(u, msgs); err != nil {
				return err
			}
		}
		if len(msgs) == 0 {
			return nil
		}

		targets := messageIDs(msgs)
		if err := u.repos.Tags.Associate(u.ctx, tagID, targets); err != nil {
			return err
		}
		if err := u.repos.Tags.Recount(u.ctx, []uint{tagID}); err != nil {
			return err
		}
		for _, m := range msgs {
			u.touch(m.ChainKey(), true)
		}
		tagged = len(targets)
		u.publish(changedEvent(scope, targets, map[string]interface{}{"tag_added": tagID}))
		return nil
	})
	return tagged, err
}

// RemoveTag unlinks a tag from messages and refreshes chain tag sets
func (s *mailService) RemoveTag(ctx context.Context, scope models.Scope, tagID uint, ids []uint) (int, error) {
	ids, err := validateIDs(ids)
	if err != nil {
		return 0, err
	}

	var untagged int
	err = s.mutate(ctx, scope, func(u *unitOfWork) error {
		untagged = 0
		if err := s.tagTarget(u, tagID); err != nil {
			return err
		}
		msgs, err := load(u, ids, false)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			return nil
		}

		targets := messageIDs(msgs)
		if err := u.repos.Tags.Disassociate(u.ctx, tagID, targets); err != nil {
			return err
		}
		if err := u.repos.Tags.Recount(u.ctx, []uint{tagID}); err != nil {
			return err
		}
		for _, m := range msgs {
			u.touch(m.ChainKey(), false)
		}
		untagged = len(targets)
		u.publish(changedEvent(scope, targets, map[string]interface{}{"tag_removed": tagID}))
		return nil
	})
	return untagged, err
}

// UpdateChain reprocesses one chain row
func (s *mailService) UpdateChain(ctx context.Context, scope models.Scope, key models.ChainKey) error {
	if key.ChainID == "" || key.MailboxID == 0 || !key.Folder.Valid() {
		return apperrors.InvalidInput("mailbox, folder and chain id are required")
	}
	if key.Folder != models.FolderUserFolder {
		key.UserFolderID = 0
	}
	return s.mutate(ctx, scope, func(u *unitOfWork) error {
		u.touch(key, false)
		return nil
	})
}

// GetMessage retrieves a message of the scope
func (s *mailService) GetMessage(ctx context.Context, scope models.Scope, id uint) (*models.Message, error) {
	msg, err := s.repos().Messages.GetByID(ctx, scope, id)
	if err != nil {
		return nil, notFound(err, apperrors.ErrMessageNotFound)
	}
	return msg, nil
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func validateListLocation(loc models.Location) (models.Location, error) {
	if !loc.Folder.Valid() {
		return loc, apperrors.InvalidInput("unknown folder %d", int(loc.Folder))
	}
	if loc.Folder != models.FolderUserFolder {
		loc.UserFolderID = 0
	}
	return loc, nil
}

// ListMessages lists live messages of a mailbox location, newest first
func (s *mailService) ListMessages(ctx context.Context, scope models.Scope, mailboxID uint, loc models.Location, limit, offset int) ([]models.MessageListItem, int64, error) {
	loc, err := validateListLocation(loc)
	if err != nil {
		return nil, 0, err
	}
	limit, offset = pageBounds(limit, offset)
	return s.repos().Messages.ListByFolder(ctx, scope, mailboxID, loc, limit, offset)
}

// ListConversations lists chain rows of a mailbox location, most recent first
func (s *mailService) ListConversations(ctx context.Context, scope models.Scope, mailboxID uint, loc models.Location, limit, offset int) ([]models.Chain, int64, error) {
	loc, err := validateListLocation(loc)
	if err != nil {
		return nil, 0, err
	}
	limit, offset = pageBounds(limit, offset)
	return s.repos().Chains.ListByFolder(ctx, scope, mailboxID, loc, limit, offset)
}

// ListAttachments lists the attachments of a message of the scope
func (s *mailService) ListAttachments(ctx context.Context, scope models.Scope, messageID uint) ([]models.Attachment, error) {
	repos := s.repos()
	if _, err := repos.Messages.GetByID(ctx, scope, messageID); err != nil {
		return nil, notFound(err, apperrors.ErrMessageNotFound)
	}
	return repos.Attachments.ListByMessage(ctx, messageID)
}

// GetAttachment returns an attachment whose message belongs to the scope
func (s *mailService) GetAttachment(ctx context.Context, scope models.Scope, id uint) (*models.Attachment, error) {
	repos := s.repos()
	att, err := repos.Attachments.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, apperrors.ErrAttachmentNotFound)
	}
	if _, err := repos.Messages.GetByID(ctx, scope, att.MessageID); err != nil {
		return nil, notFound(err, apperrors.ErrAttachmentNotFound)
	}
	return att, nil
}

// OpenAttachment returns the attachment with a reader over its stored content.
// The caller closes the reader.
func (s *mailService) OpenAttachment(ctx context.Context, scope models.Scope, id uint) (*models.Attachment, io.ReadCloser, error) {
	att, err := s.GetAttachment(ctx, scope, id)
	if err != nil {
		return nil, nil, err
	}
	if s.deps.Storage == nil {
		return nil, nil, fmt.Errorf("attachment storage is not configured")
	}
	rc, err := s.deps.Storage.Get(att.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open attachment %d: %w", id, err)
	}
	return att, rc, nil
}
