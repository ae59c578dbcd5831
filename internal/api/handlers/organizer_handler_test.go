package handlers

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	apperrors "github.com/welldanyogia/webrana-mailcore/internal/errors"
	"github.com/welldanyogia/webrana-mailcore/internal/mocks"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
)

// OrganizerHandlerTestSuite is the test suite for OrganizerHandler
type OrganizerHandlerTestSuite struct {
	suite.Suite
	echo      *echo.Echo
	handler   *OrganizerHandler
	organizer *mocks.MockOrganizerService
}

// SetupTest runs before each test
func (s *OrganizerHandlerTestSuite) SetupTest() {
	s.echo = echo.New()
	s.organizer = new(mocks.MockOrganizerService)
	s.handler = NewOrganizerHandler(s.organizer)
}

// TearDownTest runs after each test
func (s *OrganizerHandlerTestSuite) TearDownTest() {
	s.organizer.AssertExpectations(s.T())
}

// TestOrganizerHandlerTestSuite runs the test suite
func TestOrganizerHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(OrganizerHandlerTestSuite))
}

// ==================== User Folder Tests ====================

func (s *OrganizerHandlerTestSuite) TestCreateUserFolder() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/user-folders", `{"name":"Receipts"}`)
	s.organizer.On("CreateUserFolder", mock.Anything, testScope, "Receipts").
		Return(&models.UserFolder{ID: 1, Name: "Receipts"}, nil)

	// Act
	err := s.handler.CreateUserFolder(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusCreated, rec.Code)
	s.Contains(rec.Body.String(), "Receipts")
}

func (s *OrganizerHandlerTestSuite) TestCreateUserFolder_DuplicateName() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/user-folders", `{"name":"Receipts"}`)
	s.organizer.On("CreateUserFolder", mock.Anything, testScope, "Receipts").Return(nil, apperrors.ErrDuplicateEntry)

	// Act
	err := s.handler.CreateUserFolder(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusConflict, rec.Code)
}

func (s *OrganizerHandlerTestSuite) TestCreateUserFolder_InvalidName() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/user-folders", `{"name":""}`)
	s.organizer.On("CreateUserFolder", mock.Anything, testScope, "").
		Return(nil, apperrors.InvalidInput("folder name is required"))

	// Act
	err := s.handler.CreateUserFolder(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *OrganizerHandlerTestSuite) TestListUserFolders() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/user-folders", "")
	s.organizer.On("ListUserFolders", mock.Anything, testScope).
		Return([]models.UserFolder{{ID: 1, Name: "A", UnreadMessages: 2}}, nil)

	// Act
	err := s.handler.ListUserFolders(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"unread_messages":2`)
}

func (s *OrganizerHandlerTestSuite) TestRenameUserFolder() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPut, "/api/user-folders/1", `{"name":"Bills"}`)
	c.SetParamNames("id")
	c.SetParamValues("1")
	s.organizer.On("RenameUserFolder", mock.Anything, testScope, uint(1), "Bills").
		Return(&models.UserFolder{ID: 1, Name: "Bills"}, nil)

	// Act
	err := s.handler.RenameUserFolder(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *OrganizerHandlerTestSuite) TestDeleteUserFolder_ReportsMovedMessages() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodDelete, "/api/user-folders/1", "")
	c.SetParamNames("id")
	c.SetParamValues("1")
	s.organizer.On("DeleteUserFolder", mock.Anything, testScope, uint(1)).Return(3, nil)

	// Act
	err := s.handler.DeleteUserFolder(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"updated":3`)
}

func (s *OrganizerHandlerTestSuite) TestDeleteUserFolder_NotFound() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodDelete, "/api/user-folders/4", "")
	c.SetParamNames("id")
	c.SetParamValues("4")
	s.organizer.On("DeleteUserFolder", mock.Anything, testScope, uint(4)).Return(0, apperrors.ErrUserFolderNotFound)

	// Act
	err := s.handler.DeleteUserFolder(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusNotFound, rec.Code)
}

// ==================== Tag Tests ====================

func (s *OrganizerHandlerTestSuite) TestCreateTag() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/tags", `{"name":"urgent","color":"#ff0000"}`)
	s.organizer.On("CreateTag", mock.Anything, testScope, "urgent", "#ff0000").
		Return(&models.Tag{ID: 1, Name: "urgent", Color: "#ff0000"}, nil)

	// Act
	err := s.handler.CreateTag(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusCreated, rec.Code)
}

func (s *OrganizerHandlerTestSuite) TestListTags() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/tags", "")
	s.organizer.On("ListTags", mock.Anything, testScope).Return([]models.Tag{{ID: 1, Name: "urgent"}}, nil)

	// Act
	err := s.handler.ListTags(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *OrganizerHandlerTestSuite) TestDeleteTag() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodDelete, "/api/tags/1", "")
	c.SetParamNames("id")
	c.SetParamValues("1")
	s.organizer.On("DeleteTag", mock.Anything, testScope, uint(1)).Return(nil)

	// Act
	err := s.handler.DeleteTag(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusNoContent, rec.Code)
}
