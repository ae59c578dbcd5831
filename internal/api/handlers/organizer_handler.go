package handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/webrana-mailcore/internal/api/middleware"
	"github.com/welldanyogia/webrana-mailcore/internal/api/response"
	"github.com/welldanyogia/webrana-mailcore/internal/services"
)

// OrganizerHandler handles user folder and tag HTTP requests
type OrganizerHandler struct {
	organizer services.OrganizerService
}

// NewOrganizerHandler creates a new OrganizerHandler
func NewOrganizerHandler(organizer services.OrganizerService) *OrganizerHandler {
	return &OrganizerHandler{organizer: organizer}
}

// UserFolderRequest names a user folder
type UserFolderRequest struct {
	Name string `json:"name"`
}

// CreateUserFolder handles POST /api/user-folders
func (h *OrganizerHandler) CreateUserFolder(c echo.Context) error {
	var req UserFolderRequest
	if err := bindJSON(c, &req); err != nil {
		return response.Error(c, err)
	}

	folder, err := h.organizer.CreateUserFolder(c.Request().Context(), middleware.ScopeFrom(c), req.Name)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, folder)
}

// ListUserFolders handles GET /api/user-folders
func (h *OrganizerHandler) ListUserFolders(c echo.Context) error {
	folders, err := h.organizer.ListUserFolders(c.Request().Context(), middleware.ScopeFrom(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, folders)
}

// RenameUserFolder handles PUT /api/user-folders/:id
func (h *OrganizerHandler) RenameUserFolder(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}
	var req UserFolderRequest
	if err := bindJSON(c, &req); err != nil {
		return response.Error(c, err)
	}

	folder, err := h.organizer.RenameUserFolder(c.Request().Context(), middleware.ScopeFrom(c), id, req.Name)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, folder)
}

// DeleteUserFolder handles DELETE /api/user-folders/:id. Its messages go to Trash.
func (h *OrganizerHandler) DeleteUserFolder(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}

	moved, err := h.organizer.DeleteUserFolder(c.Request().Context(), middleware.ScopeFrom(c), id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.SuccessWithMessage(c, countResult{Updated: moved}, "messages moved to trash")
}

// CreateTagRequest creates a tag
type CreateTagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// CreateTag handles POST /api/tags
func (h *OrganizerHandler) CreateTag(c echo.Context) error {
	var req CreateTagRequest
	if err := bindJSON(c, &req); err != nil {
		return response.Error(c, err)
	}

	tag, err := h.organizer.CreateTag(c.Request().Context(), middleware.ScopeFrom(c), req.Name, req.Color)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, tag)
}

// ListTags handles GET /api/tags
func (h *OrganizerHandler) ListTags(c echo.Context) error {
	tags, err := h.organizer.ListTags(c.Request().Context(), middleware.ScopeFrom(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, tags)
}

// DeleteTag handles DELETE /api/tags/:id
func (h *OrganizerHandler) DeleteTag(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.Error(c, err)
	}

	if err := h.organizer.DeleteTag(c.Request().Context(), middleware.ScopeFrom(c), id); err != nil {
		return response.Error(c, err)
	}
	return response.NoContent(c)
}
