package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/welldanyogia/webrana-mailcore/internal/api/response"
	apperrors "github.com/welldanyogia/webrana-mailcore/internal/errors"
	"github.com/welldanyogia/webrana-mailcore/internal/mocks"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"github.com/welldanyogia/webrana-mailcore/internal/services"
	"github.com/welldanyogia/webrana-mailcore/internal/testutil"
)

// MessageHandlerTestSuite is the test suite for MessageHandler
type MessageHandlerTestSuite struct {
	suite.Suite
	echo    *echo.Echo
	handler *MessageHandler
	mail    *mocks.MockMailService
}

// SetupTest runs before each test
func (s *MessageHandlerTestSuite) SetupTest() {
	s.echo = echo.New()
	s.mail = new(mocks.MockMailService)
	s.handler = NewMessageHandler(s.mail, testutil.DiscardLogger())
}

// TearDownTest runs after each test
func (s *MessageHandlerTestSuite) TearDownTest() {
	s.mail.AssertExpectations(s.T())
}

// TestMessageHandlerTestSuite runs the test suite
func TestMessageHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(MessageHandlerTestSuite))
}

func (s *MessageHandlerTestSuite) createTestMessage(id uint, unread bool) *models.Message {
	return &models.Message{
		ID:        id,
		TenantID:  testScope.TenantID,
		UserID:    testScope.UserID,
		MailboxID: 1,
		Folder:    models.FolderInbox,
		Subject:   "Hello",
		Unread:    unread,
		DateSent:  time.Now(),
	}
}

func (s *MessageHandlerTestSuite) decodeCount(body []byte) int {
	var resp struct {
		Data countResult `json:"data"`
	}
	s.Require().NoError(json.Unmarshal(body, &resp))
	return resp.Data.Updated
}

// ==================== List Tests ====================

func (s *MessageHandlerTestSuite) TestList_DefaultsToInbox() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/mailboxes/1/messages", "")
	c.SetParamNames("mailbox_id")
	c.SetParamValues("1")
	items := []models.MessageListItem{{ID: 1, MailboxID: 1, Folder: models.FolderInbox}}
	s.mail.On("ListMessages", mock.Anything, testScope, uint(1), models.Location{Folder: models.FolderInbox}, DefaultLimit, 0).
		Return(items, int64(1), nil)

	// Act
	err := s.handler.List(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)

	var resp response.PaginatedResponse
	s.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(int64(1), resp.Meta.Total)
}

func (s *MessageHandlerTestSuite) TestList_UserFolderWithPagination() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/mailboxes/1/messages?folder=user_folder&user_folder_id=4&limit=500&offset=10", "")
	c.SetParamNames("mailbox_id")
	c.SetParamValues("1")
	loc := models.Location{Folder: models.FolderUserFolder, UserFolderID: 4}
	s.mail.On("ListMessages", mock.Anything, testScope, uint(1), loc, MaxLimit, 10).
		Return([]models.MessageListItem{}, int64(0), nil)

	// Act
	err := s.handler.List(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *MessageHandlerTestSuite) TestList_UnknownFolder() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/mailboxes/1/messages?folder=archive", "")
	c.SetParamNames("mailbox_id")
	c.SetParamValues("1")

	// Act
	err := s.handler.List(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *MessageHandlerTestSuite) TestList_UserFolderRequiresID() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/mailboxes/1/messages?folder=user_folder", "")
	c.SetParamNames("mailbox_id")
	c.SetParamValues("1")

	// Act
	err := s.handler.List(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *MessageHandlerTestSuite) TestList_MailboxNotFound() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/mailboxes/9/messages", "")
	c.SetParamNames("mailbox_id")
	c.SetParamValues("9")
	s.mail.On("ListMessages", mock.Anything, testScope, uint(9), mock.Anything, mock.Anything, mock.Anything).
		Return(nil, int64(0), apperrors.ErrMailboxNotFound)

	// Act
	err := s.handler.List(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *MessageHandlerTestSuite) TestList_InternalErrorIsMasked() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/mailboxes/1/messages", "")
	c.SetParamNames("mailbox_id")
	c.SetParamValues("1")
	s.mail.On("ListMessages", mock.Anything, testScope, uint(1), mock.Anything, mock.Anything, mock.Anything).
		Return(nil, int64(0), errors.New("pq: relation does not exist"))

	// Act
	err := s.handler.List(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusInternalServerError, rec.Code)
	s.NotContains(rec.Body.String(), "pq:")
}

// ==================== Get Tests ====================

func (s *MessageHandlerTestSuite) TestGet_MarksUnreadAsRead() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/messages/3", "")
	c.SetParamNames("id")
	c.SetParamValues("3")
	s.mail.On("GetMessage", mock.Anything, testScope, uint(3)).Return(s.createTestMessage(3, true), nil)
	s.mail.On("SetUnread", mock.Anything, testScope, []uint{3}, false, false).Return(1, nil)

	// Act
	err := s.handler.Get(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"unread":false`)
}

func (s *MessageHandlerTestSuite) TestGet_AlreadyRead() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/messages/3", "")
	c.SetParamNames("id")
	c.SetParamValues("3")
	s.mail.On("GetMessage", mock.Anything, testScope, uint(3)).Return(s.createTestMessage(3, false), nil)

	// Act
	err := s.handler.Get(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
	s.mail.AssertNotCalled(s.T(), "SetUnread", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *MessageHandlerTestSuite) TestGet_MarkReadFailureStillReturnsMessage() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/messages/3", "")
	c.SetParamNames("id")
	c.SetParamValues("3")
	s.mail.On("GetMessage", mock.Anything, testScope, uint(3)).Return(s.createTestMessage(3, true), nil)
	s.mail.On("SetUnread", mock.Anything, testScope, []uint{3}, false, false).Return(0, apperrors.ErrTransient)

	// Act
	err := s.handler.Get(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"unread":true`)
}

func (s *MessageHandlerTestSuite) TestGet_NotFound() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/messages/3", "")
	c.SetParamNames("id")
	c.SetParamValues("3")
	s.mail.On("GetMessage", mock.Anything, testScope, uint(3)).Return(nil, apperrors.ErrMessageNotFound)

	// Act
	err := s.handler.Get(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusNotFound, rec.Code)
}

// ==================== Mutation Tests ====================

func (s *MessageHandlerTestSuite) TestSetUnread_PassesFlags() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/messages/unread", `{"ids":[1,2],"unread":true,"all_chain":true}`)
	s.mail.On("SetUnread", mock.Anything, testScope, []uint{1, 2}, true, true).Return(5, nil)

	// Act
	err := s.handler.SetUnread(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(5, s.decodeCount(rec.Body.Bytes()))
}

func (s *MessageHandlerTestSuite) TestSetUnread_EmptyIDs() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/messages/unread", `{"ids":[],"unread":false}`)
	s.mail.On("SetUnread", mock.Anything, testScope, []uint{}, false, false).
		Return(0, apperrors.InvalidInput("ids are required"))

	// Act
	err := s.handler.SetUnread(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("ids are required", decodeError(rec).Error)
}

func (s *MessageHandlerTestSuite) TestSetImportant() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/messages/important", `{"ids":[7],"important":true}`)
	s.mail.On("SetImportant", mock.Anything, testScope, []uint{7}, true, false).Return(1, nil)

	// Act
	err := s.handler.SetImportant(c)

	// Assert
	s.NoError(err)
	s.Equal(1, s.decodeCount(rec.Body.Bytes()))
}

func (s *MessageHandlerTestSuite) TestMove_ByFolderName() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/messages/move", `{"ids":[1],"folder":"trash"}`)
	s.mail.On("SetFolder", mock.Anything, testScope, []uint{1}, models.Location{Folder: models.FolderTrash}).Return(1, nil)

	// Act
	err := s.handler.Move(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *MessageHandlerTestSuite) TestMove_UserFolderIDAlone() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/messages/move", `{"ids":[1],"user_folder_id":3}`)
	loc := models.Location{Folder: models.FolderUserFolder, UserFolderID: 3}
	s.mail.On("SetFolder", mock.Anything, testScope, []uint{1}, loc).Return(1, nil)

	// Act
	err := s.handler.Move(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *MessageHandlerTestSuite) TestMove_MissingFolder() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/messages/move", `{"ids":[1]}`)

	// Act
	err := s.handler.Move(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *MessageHandlerTestSuite) TestRemove_ReturnsFreedBytes() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/messages/remove", `{"ids":[1,2]}`)
	s.mail.On("SetRemoved", mock.Anything, testScope, []uint{1, 2}).
		Return(&services.RemovalResult{Removed: 2, FreedBytes: 2048}, nil)

	// Act
	err := s.handler.Remove(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"freed_bytes":2048`)
}

func (s *MessageHandlerTestSuite) TestRemove_IntegrityViolation() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/messages/remove", `{"ids":[1]}`)
	s.mail.On("SetRemoved", mock.Anything, testScope, []uint{1}).
		Return(nil, apperrors.Integrity("inbox counter below zero"))

	// Act
	err := s.handler.Remove(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal(apperrors.CodeIntegrity, decodeError(rec).Code)
}

func (s *MessageHandlerTestSuite) TestEmptyFolder() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/folders/spam/empty", "")
	c.SetParamNames("folder")
	c.SetParamValues("spam")
	s.mail.On("SetRemovedInFolder", mock.Anything, testScope, models.Location{Folder: models.FolderSpam}).
		Return(&services.RemovalResult{Removed: 4}, nil)

	// Act
	err := s.handler.EmptyFolder(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"removed":4`)
}

func (s *MessageHandlerTestSuite) TestRestore_TransientFailure() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/messages/restore", `{"ids":[1]}`)
	s.mail.On("Restore", mock.Anything, testScope, []uint{1}).Return(0, apperrors.ErrTransient)

	// Act
	err := s.handler.Restore(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	s.Equal(response.RetryAfterSeconds, rec.Header().Get("Retry-After"))
}

func (s *MessageHandlerTestSuite) TestAddTag() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/messages/tags", `{"tag_id":2,"ids":[1],"all_chain":true}`)
	s.mail.On("AddTag", mock.Anything, testScope, uint(2), []uint{1}, true).Return(3, nil)

	// Act
	err := s.handler.AddTag(c)

	// Assert
	s.NoError(err)
	s.Equal(3, s.decodeCount(rec.Body.Bytes()))
}

func (s *MessageHandlerTestSuite) TestAddTag_MissingTag() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/messages/tags", `{"ids":[1]}`)

	// Act
	err := s.handler.AddTag(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *MessageHandlerTestSuite) TestRemoveTag_UnknownTag() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/messages/tags/remove", `{"tag_id":9,"ids":[1]}`)
	s.mail.On("RemoveTag", mock.Anything, testScope, uint(9), []uint{1}).Return(0, apperrors.ErrTagNotFound)

	// Act
	err := s.handler.RemoveTag(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusNotFound, rec.Code)
}

// ==================== Conversation Tests ====================

func (s *MessageHandlerTestSuite) TestListConversations() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/mailboxes/1/conversations?folder=sent", "")
	c.SetParamNames("mailbox_id")
	c.SetParamValues("1")
	chains := []models.Chain{{MailboxID: 1, Folder: models.FolderSent, ChainID: "<a@x>", Length: 2}}
	s.mail.On("ListConversations", mock.Anything, testScope, uint(1), models.Location{Folder: models.FolderSent}, DefaultLimit, 0).
		Return(chains, int64(1), nil)

	// Act
	err := s.handler.ListConversations(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"length":2`)
}

func (s *MessageHandlerTestSuite) TestUpdateChain() {
	// Arrange
	body := `{"mailbox_id":1,"folder":"inbox","chain_id":"<a@x>"}`
	c, rec := newContext(s.echo, http.MethodPost, "/api/conversations/refresh", body)
	key := models.ChainKey{MailboxID: 1, Folder: models.FolderInbox, ChainID: "<a@x>"}
	s.mail.On("UpdateChain", mock.Anything, testScope, key).Return(nil)

	// Act
	err := s.handler.UpdateChain(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusNoContent, rec.Code)
}

func (s *MessageHandlerTestSuite) TestUpdateChain_MissingChainID() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/conversations/refresh", `{"mailbox_id":1,"folder":"inbox"}`)

	// Act
	err := s.handler.UpdateChain(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusBadRequest, rec.Code)
}
