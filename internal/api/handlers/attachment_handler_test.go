package handlers

import (
	"bytes"
	"io"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	apperrors "github.com/welldanyogia/webrana-mailcore/internal/errors"
	"github.com/welldanyogia/webrana-mailcore/internal/mocks"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"github.com/welldanyogia/webrana-mailcore/internal/testutil"
)

// AttachmentHandlerTestSuite is the test suite for AttachmentHandler
type AttachmentHandlerTestSuite struct {
	suite.Suite
	echo    *echo.Echo
	handler *AttachmentHandler
	mail    *mocks.MockMailService
}

// SetupTest runs before each test
func (s *AttachmentHandlerTestSuite) SetupTest() {
	s.echo = echo.New()
	s.mail = new(mocks.MockMailService)
	s.handler = NewAttachmentHandler(s.mail, testutil.DiscardLogger())
}

// TearDownTest runs after each test
func (s *AttachmentHandlerTestSuite) TearDownTest() {
	s.mail.AssertExpectations(s.T())
}

// TestAttachmentHandlerTestSuite runs the test suite
func TestAttachmentHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(AttachmentHandlerTestSuite))
}

func (s *AttachmentHandlerTestSuite) createTestAttachment(id uint, messageID uint) *models.Attachment {
	return &models.Attachment{
		ID:          id,
		MessageID:   messageID,
		Filename:    "document.pdf",
		ContentType: "application/pdf",
		FilePath:    "1/user-1/abc123_document.pdf",
		SizeBytes:   21,
	}
}

// closeTracker records whether the handler closed the stream
type closeTracker struct {
	*bytes.Reader
	closed bool
}

func (r *closeTracker) Close() error {
	r.closed = true
	return nil
}

func newCloseTracker(data []byte) *closeTracker {
	return &closeTracker{Reader: bytes.NewReader(data)}
}

// ==================== List Tests ====================

func (s *AttachmentHandlerTestSuite) TestList_Success() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/messages/1/attachments", "")
	c.SetParamNames("message_id")
	c.SetParamValues("1")
	s.mail.On("ListAttachments", mock.Anything, testScope, uint(1)).
		Return([]models.Attachment{*s.createTestAttachment(1, 1)}, nil)

	// Act
	err := s.handler.List(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "document.pdf")
	s.NotContains(rec.Body.String(), "abc123", "storage paths stay private")
}

func (s *AttachmentHandlerTestSuite) TestList_MessageNotFound() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/messages/9/attachments", "")
	c.SetParamNames("message_id")
	c.SetParamValues("9")
	s.mail.On("ListAttachments", mock.Anything, testScope, uint(9)).Return(nil, apperrors.ErrMessageNotFound)

	// Act
	err := s.handler.List(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *AttachmentHandlerTestSuite) TestList_InvalidMessageID() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/messages/x/attachments", "")
	c.SetParamNames("message_id")
	c.SetParamValues("x")

	// Act
	err := s.handler.List(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusBadRequest, rec.Code)
}

// ==================== Get Tests ====================

func (s *AttachmentHandlerTestSuite) TestGet_Success() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/attachments/1", "")
	c.SetParamNames("id")
	c.SetParamValues("1")
	s.mail.On("GetAttachment", mock.Anything, testScope, uint(1)).Return(s.createTestAttachment(1, 1), nil)

	// Act
	err := s.handler.Get(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *AttachmentHandlerTestSuite) TestGet_NotFound() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/attachments/1", "")
	c.SetParamNames("id")
	c.SetParamValues("1")
	s.mail.On("GetAttachment", mock.Anything, testScope, uint(1)).Return(nil, apperrors.ErrAttachmentNotFound)

	// Act
	err := s.handler.Get(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusNotFound, rec.Code)
}

// ==================== Download Tests ====================

func (s *AttachmentHandlerTestSuite) TestDownload_Success() {
	// Arrange
	attachment := s.createTestAttachment(1, 1)
	content := []byte("PDF file content here")
	file := newCloseTracker(content)
	c, rec := newContext(s.echo, http.MethodGet, "/api/attachments/1/download", "")
	c.SetParamNames("id")
	c.SetParamValues("1")
	s.mail.On("OpenAttachment", mock.Anything, testScope, uint(1)).Return(attachment, io.ReadCloser(file), nil)

	// Act
	err := s.handler.Download(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("application/pdf", rec.Header().Get(echo.HeaderContentType))
	s.Equal("attachment; filename=document.pdf", rec.Header().Get(echo.HeaderContentDisposition))
	s.Equal(string(content), rec.Body.String())
	s.True(file.closed)
}

func (s *AttachmentHandlerTestSuite) TestDownload_QuotesUnsafeFilename() {
	// Arrange
	attachment := s.createTestAttachment(1, 1)
	attachment.Filename = "quarterly report.xlsx"
	attachment.ContentType = ""
	attachment.SizeBytes = 1
	c, rec := newContext(s.echo, http.MethodGet, "/api/attachments/1/download", "")
	c.SetParamNames("id")
	c.SetParamValues("1")
	s.mail.On("OpenAttachment", mock.Anything, testScope, uint(1)).
		Return(attachment, io.ReadCloser(newCloseTracker([]byte("x"))), nil)

	// Act
	err := s.handler.Download(c)

	// Assert
	s.NoError(err)
	s.Equal(echo.MIMEOctetStream, rec.Header().Get(echo.HeaderContentType))
	s.Equal(`attachment; filename="quarterly report.xlsx"`, rec.Header().Get(echo.HeaderContentDisposition))
}

func (s *AttachmentHandlerTestSuite) TestDownload_NotFound() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/attachments/1/download", "")
	c.SetParamNames("id")
	c.SetParamValues("1")
	s.mail.On("OpenAttachment", mock.Anything, testScope, uint(1)).Return(nil, nil, apperrors.ErrAttachmentNotFound)

	// Act
	err := s.handler.Download(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *AttachmentHandlerTestSuite) TestDownload_InvalidID() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/attachments/0/download", "")
	c.SetParamNames("id")
	c.SetParamValues("0")

	// Act
	err := s.handler.Download(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusBadRequest, rec.Code)
}
