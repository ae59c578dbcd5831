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

// FolderHandlerTestSuite is the test suite for FolderHandler
type FolderHandlerTestSuite struct {
	suite.Suite
	echo        *echo.Echo
	handler     *FolderHandler
	counters    *mocks.MockCounterReader
	maintenance *mocks.MockMaintenanceService
}

// SetupTest runs before each test
func (s *FolderHandlerTestSuite) SetupTest() {
	s.echo = echo.New()
	s.counters = new(mocks.MockCounterReader)
	s.maintenance = new(mocks.MockMaintenanceService)
	s.handler = NewFolderHandler(s.counters, s.maintenance)
}

// TearDownTest runs after each test
func (s *FolderHandlerTestSuite) TearDownTest() {
	s.counters.AssertExpectations(s.T())
	s.maintenance.AssertExpectations(s.T())
}

// TestFolderHandlerTestSuite runs the test suite
func TestFolderHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(FolderHandlerTestSuite))
}

func testCounters() *models.FolderCounters {
	return &models.FolderCounters{
		Folders: []models.FolderCounter{
			{Folder: models.FolderInbox, UnreadMessages: 2, TotalMessages: 5, UnreadConversations: 1, TotalConversations: 3},
		},
		UserFolders: []models.UserFolder{{ID: 1, Name: "Receipts", TotalMessages: 1}},
	}
}

func (s *FolderHandlerTestSuite) TestCounters() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodGet, "/api/folders/counters", "")
	s.counters.On("GetFolderCounters", mock.Anything, testScope).Return(testCounters(), nil)

	// Act
	err := s.handler.Counters(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"total_messages":5`)
	s.Contains(rec.Body.String(), "Receipts")
}

func (s *FolderHandlerTestSuite) TestRecalculate_ReturnsFreshCounters() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/folders/recalculate", "")
	s.maintenance.On("RecalculateScope", mock.Anything, testScope).Return(nil).Once()
	s.counters.On("GetFolderCounters", mock.Anything, testScope).Return(testCounters(), nil).Once()

	// Act
	err := s.handler.Recalculate(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "counters recalculated")
}

func (s *FolderHandlerTestSuite) TestRecalculate_Failure() {
	// Arrange
	c, rec := newContext(s.echo, http.MethodPost, "/api/folders/recalculate", "")
	s.maintenance.On("RecalculateScope", mock.Anything, testScope).Return(apperrors.ErrTransient)

	// Act
	err := s.handler.Recalculate(c)

	// Assert
	s.NoError(err)
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	s.counters.AssertNotCalled(s.T(), "GetFolderCounters", mock.Anything, mock.Anything)
}
