package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
	"github.com/welldanyogia/webrana-mailcore/internal/testutil"
	"gorm.io/gorm"
)

// MailboxRepositoryTestSuite is the test suite for MailboxRepository
type MailboxRepositoryTestSuite struct {
	suite.Suite
	db   *gorm.DB
	repo MailboxRepository
	ctx  context.Context
}

// SetupTest opens a fresh database for every test
func (s *MailboxRepositoryTestSuite) SetupTest() {
	s.db = testutil.NewDB(s.T())
	s.repo = NewMailboxRepository(s.db)
	s.ctx = context.Background()
}

// TestMailboxRepositoryTestSuite runs the test suite
func TestMailboxRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(MailboxRepositoryTestSuite))
}

func (s *MailboxRepositoryTestSuite) newMailbox(scope models.Scope, address string) *models.Mailbox {
	return &models.Mailbox{TenantID: scope.TenantID, UserID: scope.UserID, Address: address}
}

// ==================== Create Tests ====================

func (s *MailboxRepositoryTestSuite) TestCreate_Success() {
	// Arrange
	mailbox := s.newMailbox(testutil.Scope, "User@Test.com")

	// Act
	err := s.repo.Create(s.ctx, mailbox)

	// Assert
	assert.NoError(s.T(), err)
	assert.NotZero(s.T(), mailbox.ID)
	assert.NotZero(s.T(), mailbox.CreatedAt)
	assert.Equal(s.T(), "user@test.com", mailbox.Address)
}

func (s *MailboxRepositoryTestSuite) TestCreate_DuplicateAddress_ReturnsError() {
	// Arrange
	require.NoError(s.T(), s.repo.Create(s.ctx, s.newMailbox(testutil.Scope, "duplicate@test.com")))

	// Act
	err := s.repo.Create(s.ctx, s.newMailbox(testutil.OtherScope, "DUPLICATE@test.com"))

	// Assert
	assert.ErrorIs(s.T(), err, ErrDuplicateEntry)
}

// ==================== GetByID Tests ====================

func (s *MailboxRepositoryTestSuite) TestGetByID_Found() {
	// Arrange
	mailbox := testutil.CreateMailbox(s.T(), s.db, testutil.Scope, "getbyid@test.com")

	// Act
	result, err := s.repo.GetByID(s.ctx, testutil.Scope, mailbox.ID)

	// Assert
	require.NoError(s.T(), err)
	assert.Equal(s.T(), mailbox.ID, result.ID)
	assert.Equal(s.T(), "getbyid@test.com", result.Address)
}

func (s *MailboxRepositoryTestSuite) TestGetByID_OtherScope_NotFound() {
	// Arrange
	mailbox := testutil.CreateMailbox(s.T(), s.db, testutil.Scope, "private@test.com")

	// Act
	result, err := s.repo.GetByID(s.ctx, testutil.OtherScope, mailbox.ID)

	// Assert
	assert.Nil(s.T(), result)
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *MailboxRepositoryTestSuite) TestGetByID_NotFound() {
	// Act
	result, err := s.repo.GetByID(s.ctx, testutil.Scope, 99999)

	// Assert
	assert.Nil(s.T(), result)
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

// ==================== GetByAddress Tests ====================

func (s *MailboxRepositoryTestSuite) TestGetByAddress_CaseInsensitive() {
	// Arrange
	mailbox := testutil.CreateMailbox(s.T(), s.db, testutil.Scope, "lookup@test.com")

	// Act
	result, err := s.repo.GetByAddress(s.ctx, "LookUp@Test.COM")

	// Assert
	require.NoError(s.T(), err)
	assert.Equal(s.T(), mailbox.ID, result.ID)
}

func (s *MailboxRepositoryTestSuite) TestGetByAddress_NotFound() {
	// Act
	result, err := s.repo.GetByAddress(s.ctx, "nobody@test.com")

	// Assert
	assert.Nil(s.T(), result)
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

// ==================== List Tests ====================

func (s *MailboxRepositoryTestSuite) TestList_OnlyScopeMailboxes() {
	// Arrange
	testutil.CreateMailbox(s.T(), s.db, testutil.Scope, "a@test.com")
	testutil.CreateMailbox(s.T(), s.db, testutil.Scope, "b@test.com")
	testutil.CreateMailbox(s.T(), s.db, testutil.OtherScope, "c@test.com")

	// Act
	result, err := s.repo.List(s.ctx, testutil.Scope)

	// Assert
	require.NoError(s.T(), err)
	require.Len(s.T(), result, 2)
	assert.Equal(s.T(), "a@test.com", result[0].Address)
	assert.Equal(s.T(), "b@test.com", result[1].Address)
}

func (s *MailboxRepositoryTestSuite) TestList_Empty() {
	// Act
	result, err := s.repo.List(s.ctx, testutil.Scope)

	// Assert
	assert.NoError(s.T(), err)
	assert.Empty(s.T(), result)
}

// ==================== ListScopes Tests ====================

func (s *MailboxRepositoryTestSuite) TestListScopes_Distinct() {
	// Arrange
	testutil.CreateMailbox(s.T(), s.db, testutil.Scope, "a@test.com")
	testutil.CreateMailbox(s.T(), s.db, testutil.Scope, "b@test.com")
	testutil.CreateMailbox(s.T(), s.db, testutil.OtherScope, "c@test.com")

	// Act
	scopes, err := s.repo.ListScopes(s.ctx)

	// Assert
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []models.Scope{testutil.Scope, testutil.OtherScope}, scopes)
}

// ==================== UpdateLastAccessed Tests ====================

func (s *MailboxRepositoryTestSuite) TestUpdateLastAccessed_Success() {
	// Arrange
	mailbox := testutil.CreateMailbox(s.T(), s.db, testutil.Scope, "access@test.com")
	require.Nil(s.T(), mailbox.LastAccessedAt)

	// Act
	err := s.repo.UpdateLastAccessed(s.ctx, mailbox.ID)

	// Assert
	require.NoError(s.T(), err)
	result, err := s.repo.GetByID(s.ctx, testutil.Scope, mailbox.ID)
	require.NoError(s.T(), err)
	assert.NotNil(s.T(), result.LastAccessedAt)
}

func (s *MailboxRepositoryTestSuite) TestUpdateLastAccessed_NotFound() {
	// Act
	err := s.repo.UpdateLastAccessed(s.ctx, 99999)

	// Assert
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

// ==================== Delete Tests ====================

func (s *MailboxRepositoryTestSuite) TestDelete_Success() {
	// Arrange
	mailbox := testutil.CreateMailbox(s.T(), s.db, testutil.Scope, "delete@test.com")

	// Act
	err := s.repo.Delete(s.ctx, testutil.Scope, mailbox.ID)

	// Assert
	require.NoError(s.T(), err)
	_, err = s.repo.GetByID(s.ctx, testutil.Scope, mailbox.ID)
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *MailboxRepositoryTestSuite) TestDelete_OtherScope_NotFound() {
	// Arrange
	mailbox := testutil.CreateMailbox(s.T(), s.db, testutil.Scope, "keep@test.com")

	// Act
	err := s.repo.Delete(s.ctx, testutil.OtherScope, mailbox.ID)

	// Assert
	assert.ErrorIs(s.T(), err, ErrNotFound)
	_, err = s.repo.GetByID(s.ctx, testutil.Scope, mailbox.ID)
	assert.NoError(s.T(), err)
}
