package mocks

import (
	"io"

	"github.com/stretchr/testify/mock"
	"github.com/welldanyogia/webrana-mailcore/internal/storage"
)

// MockFileStorage implements storage.FileStorage
type MockFileStorage struct {
	mock.Mock
}

// Save stores a file under owner and returns the relative path and size
func (m *MockFileStorage) Save(owner, filename string, content io.Reader) (string, int64, error) {
	args := m.Called(owner, filename, content)
	return args.String(0), args.Get(1).(int64), args.Error(2)
}

// Get retrieves a file by its path
func (m *MockFileStorage) Get(filePath string) (io.ReadCloser, error) {
	args := m.Called(filePath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

// Delete removes a file by its path
func (m *MockFileStorage) Delete(filePath string) error {
	args := m.Called(filePath)
	return args.Error(0)
}

var _ storage.FileStorage = (*MockFileStorage)(nil)
