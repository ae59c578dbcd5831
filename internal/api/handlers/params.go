package handlers

import (
	"strconv"

	"github.com/labstack/echo/v4"
	apperrors "github.com/welldanyogia/webrana-mailcore/internal/errors"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
)

// Pagination bounds
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// idsRequest is the body of every batch message mutation
type idsRequest struct {
	IDs      []uint `json:"ids"`
	AllChain bool   `json:"all_chain"`
}

func parseID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, apperrors.InvalidInput("invalid %s", name)
	}
	return uint(id), nil
}

// pagination reads limit and offset, falling back to the defaults on bad input
func pagination(c echo.Context) (limit, offset int) {
	limit = DefaultLimit
	if l := c.QueryParam("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = min(parsed, MaxLimit)
		}
	}
	if o := c.QueryParam("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}

// parseLocation builds a Location from a folder name or number and an
// optional user folder id. A user folder id alone selects FolderUserFolder.
func parseLocation(folder string, userFolderID uint) (models.Location, error) {
	if folder == "" {
		if userFolderID == 0 {
			return models.Location{}, apperrors.InvalidInput("folder is required")
		}
		return models.Location{Folder: models.FolderUserFolder, UserFolderID: userFolderID}, nil
	}

	f, err := models.ParseFolder(folder)
	if err != nil {
		return models.Location{}, apperrors.InvalidInput("%v", err)
	}
	loc := models.Location{Folder: f}
	if f == models.FolderUserFolder {
		if userFolderID == 0 {
			return models.Location{}, apperrors.InvalidInput("user_folder_id is required for %s", f)
		}
		loc.UserFolderID = userFolderID
	}
	return loc, nil
}

// locationQuery reads ?folder=&user_folder_id=, defaulting to the Inbox
func locationQuery(c echo.Context) (models.Location, error) {
	return folderLocation(c, c.QueryParam("folder"))
}

// folderLocation combines folder with the user_folder_id query parameter
func folderLocation(c echo.Context, folder string) (models.Location, error) {
	var userFolderID uint
	if raw := c.QueryParam("user_folder_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return models.Location{}, apperrors.InvalidInput("invalid user_folder_id")
		}
		userFolderID = uint(id)
	}
	if folder == "" && userFolderID == 0 {
		return models.Location{Folder: models.FolderInbox}, nil
	}
	return parseLocation(folder, userFolderID)
}

func bindJSON(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return apperrors.InvalidInput("invalid request body")
	}
	return nil
}

// countResult is returned by batch mutations
type countResult struct {
	Updated int `json:"updated"`
}
