package services

import (
	"context"
	"errors"
	"sort"

	apperrors "github.com/welldanyogia/webrana-mailcore/internal/errors"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"github.com/welldanyogia/webrana-mailcore/internal/validator"
)

// OrganizerService manages user folders and tags
type OrganizerService interface {
	CreateUserFolder(ctx context.Context, scope models.Scope, name string) (*models.UserFolder, error)
	RenameUserFolder(ctx context.Context, scope models.Scope, id uint, name string) (*models.UserFolder, error)
	ListUserFolders(ctx context.Context, scope models.Scope) ([]models.UserFolder, error)

	// DeleteUserFolder moves the folder's messages to Trash, then deletes it.
	// Rules moving mail into the folder are disabled the next time they fire.
	DeleteUserFolder(ctx context.Context, scope models.Scope, id uint) (int, error)

	CreateTag(ctx context.Context, scope models.Scope, name, color string) (*models.Tag, error)
	ListTags(ctx context.Context, scope models.Scope) ([]models.Tag, error)

	// DeleteTag removes the tag from every message and refreshes the affected chains
	DeleteTag(ctx context.Context, scope models.Scope, id uint) error
}

// organizerService implements OrganizerService
type organizerService struct {
	*core
}

// NewOrganizerService creates a new OrganizerService instance
func NewOrganizerService(deps Deps) OrganizerService {
	return &organizerService{core: newCore(deps)}
}

func invalidName(err error, what string) error {
	switch {
	case errors.Is(err, validator.ErrEmptyInput):
		return apperrors.InvalidInput("%s name is required", what)
	case errors.Is(err, validator.ErrInputTooLong):
		return apperrors.InvalidInput("%s name is too long", what)
	default:
		return apperrors.InvalidInput("%s name contains invalid characters", what)
	}
}

// CreateUserFolder creates an empty user folder
func (s *organizerService) CreateUserFolder(ctx context.Context, scope models.Scope, name string) (*models.UserFolder, error) {
	if !scope.Valid() {
		return nil, apperrors.InvalidInput("tenant and user are required")
	}
	name, err := validator.ValidateName(name, validator.MaxFolderNameLength)
	if err != nil {
		return nil, invalidName(err, "folder")
	}

	folder := &models.UserFolder{TenantID: scope.TenantID, UserID: scope.UserID, Name: name}
	if err := s.repos().UserFolders.Create(ctx, folder); err != nil {
		return nil, err
	}
	return folder, nil
}

// RenameUserFolder changes a folder's name
func (s *organizerService) RenameUserFolder(ctx context.Context, scope models.Scope, id uint, name string) (*models.UserFolder, error) {
	name, err := validator.ValidateName(name, validator.MaxFolderNameLength)
	if err != nil {
		return nil, invalidName(err, "folder")
	}

	repos := s.repos()
	if err := repos.UserFolders.Rename(ctx, scope, id, name); err != nil {
		return nil, notFound(err, apperrors.ErrUserFolderNotFound)
	}
	folder, err := repos.UserFolders.GetByID(ctx, scope, id)
	if err != nil {
		return nil, notFound(err, apperrors.ErrUserFolderNotFound)
	}
	return folder, nil
}

// ListUserFolders returns the folders of the scope with their counters
func (s *organizerService) ListUserFolders(ctx context.Context, scope models.Scope) ([]models.UserFolder, error) {
	return s.repos().UserFolders.List(ctx, scope)
}

// DeleteUserFolder empties a user folder into Trash and deletes it
func (s *organizerService) DeleteUserFolder(ctx context.Context, scope models.Scope, id uint) (int, error) {
	var moved int
	err := s.mutate(ctx, scope, func(u *unitOfWork) error {
		moved = 0
		if _, err := u.repos.UserFolders.GetByID(u.ctx, u.scope, id); err != nil {
			return notFound(err, apperrors.ErrUserFolderNotFound)
		}

		loc := models.Location{Folder: models.FolderUserFolder, UserFolderID: id}
		ids, err := u.repos.Messages.ListIDsByLocation(u.ctx, u.scope, loc)
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			msgs, err := load(u, ids, false)
			if err != nil {
				return err
			}
			if moved, err = moveMessages(u, msgs, models.Location{Folder: models.FolderTrash}); err != nil {
				return err
			}
			u.publish(changedEvent(scope, ids, map[string]interface{}{"folder": models.FolderTrash}))
		}

		u.dropUserFolder(id)
		return notFound(u.repos.UserFolders.Delete(u.ctx, u.scope, id), apperrors.ErrUserFolderNotFound)
	})
	return moved, err
}

// CreateTag creates a tag
func (s *organizerService) CreateTag(ctx context.Context, scope models.Scope, name, color string) (*models.Tag, error) {
	if !scope.Valid() {
		return nil, apperrors.InvalidInput("tenant and user are required")
	}
	name, err := validator.ValidateName(name, validator.MaxTagNameLength)
	if err != nil {
		return nil, invalidName(err, "tag")
	}
	if err := validator.ValidateColor(color); err != nil {
		return nil, apperrors.InvalidInput("%s", err.Error())
	}

	tag := &models.Tag{TenantID: scope.TenantID, UserID: scope.UserID, Name: name, Color: color}
	if err := s.repos().Tags.Create(ctx, tag); err != nil {
		return nil, err
	}
	return tag, nil
}

// ListTags returns the tags of the scope
func (s *organizerService) ListTags(ctx context.Context, scope models.Scope) ([]models.Tag, error) {
	return s.repos().Tags.List(ctx, scope)
}

// DeleteTag deletes a tag and reprocesses the chains it appeared on
func (s *organizerService) DeleteTag(ctx context.Context, scope models.Scope, id uint) error {
	return s.mutate(ctx, scope, func(u *unitOfWork) error {
		if _, err := u.repos.Tags.GetByID(u.ctx, u.scope, id); err != nil {
			return notFound(err, apperrors.ErrTagNotFound)
		}

		ids, err := u.repos.Tags.MessageIDs(u.ctx, id)
		if err != nil {
			return err
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		var msgs []models.Message
		if len(ids) > 0 {
			if msgs, err = load(u, ids, false); err != nil {
				return err
			}
		}

		if err := u.repos.Tags.Delete(u.ctx, u.scope, id); err != nil {
			return notFound(err, apperrors.ErrTagNotFound)
		}
		for _, m := range msgs {
			u.touch(m.ChainKey(), true)
		}
		if len(msgs) > 0 {
			u.publish(changedEvent(scope, messageIDs(msgs), map[string]interface{}{"tag_removed": id}))
		}
		return nil
	})
}
