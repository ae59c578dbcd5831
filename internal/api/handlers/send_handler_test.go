package handlers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	apperrors "github.com/welldanyogia/webrana-mailcore/internal/errors"
	"github.com/welldanyogia/webrana-mailcore/internal/mocks"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"github.com/welldanyogia/webrana-mailcore/internal/services"
)

// SendHandlerTestSuite is the test suite for SendHandler
type SendHandlerTestSuite struct {
	suite.Suite
	echo     *echo.Echo
	handler  *SendHandler
	delivery *mocks.MockDeliveryService
	now      time.Time
}

// SetupTest runs before each test
func (s *SendHandlerTestSuite) SetupTest() {
	s.echo = echo.New()
	s.delivery = new(mocks.MockDeliveryService)
	s.handler = NewSendHandler(s.delivery, "mail.example.com")
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.handler.now = func() time.Time { return s.now }
}

// TearDownTest runs after each test
func (s *SendHandlerTestSuite) TearDownTest() {
	s.delivery.AssertExpectations(s.T())
}

// TestSendHandlerTestSuite runs the test suite
func TestSendHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(SendHandlerTestSuite))
}

func (s *SendHandlerTestSuite) TestSend_BuildsOutgoingMessage() {
	// Arrange
	body := `{"to":["a@example.com","b@example.com"],"subject":"Re: plan","body_text":"ok","in_reply_to":"abc@host"}`
	c, rec := newContext(s.echo, http.MethodPost, "/api/mailboxes/1/send", body)
	c.SetParamNames("mailbox_id")
	c.SetParamValues("1")

	var got *services.IncomingMessage
	s.delivery.On("Send", mock.Anything, testScope, uint(1), mock.AnythingOfType("*services.IncomingMessage")).
		Run(func(args mock.Arguments) { got = args.Get(3).(*services.IncomingMessage) }).
		Return(&models.Message{ID: 10, Folder: models.FolderSent}, nil)

	// Act
	err := s.handler.Send(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusCreated, rec.Code)
	s.Require().NotNil(got)
	s.Equal("a@example.com, b@example.com", got.To)
	s.Equal("<abc@host>", got.MimeReplyToID)
	s.True(strings.HasSuffix(got.MimeMessageID, "@mail.example.com>"))
	s.Equal(s.now, got.DateSent)
	s.NotEmpty(got.UIDL)
}

func (s *SendHandlerTestSuite) TestSend_RequiresRecipient() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/mailboxes/1/send", `{"subject":"x"}`)
	c.SetParamNames("mailbox_id")
	c.SetParamValues("1")

	// Act
	err := s.handler.Send(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *SendHandlerTestSuite) TestSend_UnknownMailbox() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/mailboxes/4/send", `{"to":["a@example.com"]}`)
	c.SetParamNames("mailbox_id")
	c.SetParamValues("4")
	s.delivery.On("Send", mock.Anything, testScope, uint(4), mock.Anything).Return(nil, apperrors.ErrMailboxNotFound)

	// Act
	err := s.handler.Send(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusNotFound, rec.Code)
}

func TestBracketed(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"  ", ""},
		{"abc@host", "<abc@host>"},
		{"<abc@host>", "<abc@host>"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, bracketed(tt.in), tt.in)
	}
}
