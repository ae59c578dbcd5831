package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/welldanyogia/webrana-mailcore/internal/api/middleware"
	"github.com/welldanyogia/webrana-mailcore/internal/api/response"
	apperrors "github.com/welldanyogia/webrana-mailcore/internal/errors"
	"github.com/welldanyogia/webrana-mailcore/internal/mocks"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
)

var testScope = models.Scope{TenantID: 1, UserID: "user-1"}

// newContext builds an echo context carrying testScope
func newContext(e *echo.Echo, method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	middleware.WithScope(c, testScope)
	return c, rec
}

func decodeError(rec *httptest.ResponseRecorder) response.ErrorResponse {
	var resp response.ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return resp
}

// MailboxHandlerTestSuite is the test suite for MailboxHandler
type MailboxHandlerTestSuite struct {
	suite.Suite
	echo      *echo.Echo
	handler   *MailboxHandler
	mailboxes *mocks.MockMailboxService
}

// SetupTest runs before each test
func (s *MailboxHandlerTestSuite) SetupTest() {
	s.echo = echo.New()
	s.mailboxes = new(mocks.MockMailboxService)
	s.handler = NewMailboxHandler(s.mailboxes)
}

// TearDownTest runs after each test
func (s *MailboxHandlerTestSuite) TearDownTest() {
	s.mailboxes.AssertExpectations(s.T())
}

// TestMailboxHandlerTestSuite runs the test suite
func TestMailboxHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(MailboxHandlerTestSuite))
}

func (s *MailboxHandlerTestSuite) createTestMailbox(id uint, address string) *models.Mailbox {
	return &models.Mailbox{
		ID:        id,
		TenantID:  testScope.TenantID,
		UserID:    testScope.UserID,
		Address:   address,
		CreatedAt: time.Now(),
	}
}

// ==================== Create Tests ====================

func (s *MailboxHandlerTestSuite) TestCreate_ValidInput() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/mailboxes", `{"address": " user@example.com ", "name": "Work"}`)
	s.mailboxes.On("CreateMailbox", mock.Anything, testScope, "user@example.com", "Work").
		Return(s.createTestMailbox(1, "user@example.com"), nil)

	// Act
	err := s.handler.Create(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusCreated, rec.Code)

	var resp response.APIResponse
	s.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.True(resp.Success)
}

func (s *MailboxHandlerTestSuite) TestCreate_EmptyAddress() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/mailboxes", `{"address": "  "}`)

	// Act
	err := s.handler.Create(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *MailboxHandlerTestSuite) TestCreate_MalformedBody() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/mailboxes", `{"address":`)

	// Act
	err := s.handler.Create(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *MailboxHandlerTestSuite) TestCreate_DuplicateAddress() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/mailboxes", `{"address": "user@example.com"}`)
	s.mailboxes.On("CreateMailbox", mock.Anything, testScope, "user@example.com", "").
		Return(nil, apperrors.ErrDuplicateEntry)

	// Act
	err := s.handler.Create(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal(apperrors.CodeDuplicateEntry, decodeError(rec).Code)
}

// ==================== List / Get Tests ====================

func (s *MailboxHandlerTestSuite) TestList_ReturnsScopeMailboxes() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/mailboxes", "")
	s.mailboxes.On("ListMailboxes", mock.Anything, testScope).
		Return([]models.Mailbox{*s.createTestMailbox(1, "a@example.com"), *s.createTestMailbox(2, "b@example.com")}, nil)

	// Act
	err := s.handler.List(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "b@example.com")
}

func (s *MailboxHandlerTestSuite) TestGet_Found() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/mailboxes/1", "")
	c.SetParamNames("id")
	c.SetParamValues("1")
	s.mailboxes.On("GetMailbox", mock.Anything, testScope, uint(1)).
		Return(s.createTestMailbox(1, "a@example.com"), nil)

	// Act
	err := s.handler.Get(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *MailboxHandlerTestSuite) TestGet_NotFound() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/mailboxes/9", "")
	c.SetParamNames("id")
	c.SetParamValues("9")
	s.mailboxes.On("GetMailbox", mock.Anything, testScope, uint(9)).
		Return(nil, apperrors.ErrMailboxNotFound)

	// Act
	err := s.handler.Get(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *MailboxHandlerTestSuite) TestGet_InvalidID() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/mailboxes/abc", "")
	c.SetParamNames("id")
	c.SetParamValues("abc")

	// Act
	err := s.handler.Get(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusBadRequest, rec.Code)
}

// ==================== Delete Tests ====================

func (s *MailboxHandlerTestSuite) TestDelete_Success() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodDelete, "/api/mailboxes/1", "")
	c.SetParamNames("id")
	c.SetParamValues("1")
	s.mailboxes.On("DeleteMailbox", mock.Anything, testScope, uint(1)).Return(nil)

	// Act
	err := s.handler.Delete(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusNoContent, rec.Code)
}

func (s *MailboxHandlerTestSuite) TestDelete_OtherScopeIsNotFound() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodDelete, "/api/mailboxes/5", "")
	c.SetParamNames("id")
	c.SetParamValues("5")
	s.mailboxes.On("DeleteMailbox", mock.Anything, testScope, uint(5)).Return(apperrors.ErrMailboxNotFound)

	// Act
	err := s.handler.Delete(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusNotFound, rec.Code)
}
