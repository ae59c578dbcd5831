package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Security errors
var (
	ErrPathTraversal = errors.New("path traversal detected")
	ErrFileNotFound  = errors.New("file not found")
	ErrFileTooLarge  = errors.New("file exceeds size limit")
	ErrBlockedExt    = errors.New("file extension is blocked")
)

// MaxFileSize is the maximum allowed file size (25 MB)
const MaxFileSize = 25 * 1024 * 1024

// BlockedExtensions contains file extensions that are not allowed
var BlockedExtensions = map[string]bool{
	".exe": true, ".bat": true, ".cmd": true, ".com": true,
	".pif": true, ".scr": true, ".vbs": true, ".js": true,
	".jar": true, ".ps1": true, ".sh": true, ".bash": true,
	".msi": true, ".dll": true, ".sys": true,
}

var ownerPattern = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// FileStorage stores attachment blobs grouped by owner
type FileStorage interface {
	Save(owner, filename string, content io.Reader) (string, int64, error)
	Get(filePath string) (io.ReadCloser, error)
	Delete(filePath string) error
}

// localStorage implements FileStorage using local filesystem
type localStorage struct {
	basePath string
	maxSize  int64
}

// NewLocalStorage creates a new localStorage instance
func NewLocalStorage(basePath string) (FileStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &localStorage{basePath: basePath, maxSize: MaxFileSize}, nil
}

// validatePath ensures path is within basePath (prevents traversal)
func (s *localStorage) validatePath(filePath string) (string, error) {
	cleanPath := filepath.Clean(filePath)

	if filepath.IsAbs(cleanPath) {
		return "", ErrPathTraversal
	}
	if strings.Contains(cleanPath, "..") {
		return "", ErrPathTraversal
	}

	absPath, err := filepath.Abs(filepath.Join(s.basePath, cleanPath))
	if err != nil {
		return "", fmt.Errorf("invalid file path: %w", err)
	}
	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return "", ErrPathTraversal
	}

	return absPath, nil
}

// ValidateFile checks file extension and size
func ValidateFile(filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))

	if BlockedExtensions[ext] {
		return ErrBlockedExt
	}
	if size > MaxFileSize {
		return ErrFileTooLarge
	}
	return nil
}

// OwnerDir builds the per-owner directory name from tenant and user
func OwnerDir(tenantID uint, userID string) string {
	return fmt.Sprintf("t%d_%s", tenantID, ownerPattern.ReplaceAllString(userID, "_"))
}

// Save stores content under the owner directory and returns the relative path and byte count.
// Content beyond the size limit aborts the write with ErrFileTooLarge.
func (s *localStorage) Save(owner, filename string, content io.Reader) (string, int64, error) {
	owner = ownerPattern.ReplaceAllString(owner, "_")
	if owner == "" {
		owner = "shared"
	}

	uniqueName := uuid.New().String() + strings.ToLower(filepath.Ext(filename))
	relPath := filepath.Join(owner, uniqueName[:2], uniqueName)
	fullPath, err := s.validatePath(relPath)
	if err != nil {
		return "", 0, err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create subdirectory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	written, err := io.Copy(file, io.LimitReader(content, s.maxSize+1))
	if err == nil && written > s.maxSize {
		err = ErrFileTooLarge
	}
	if err != nil {
		os.Remove(fullPath)
		if errors.Is(err, ErrFileTooLarge) {
			return "", 0, err
		}
		return "", 0, fmt.Errorf("failed to write file: %w", err)
	}

	return relPath, written, nil
}

// Get retrieves a file by its path
func (s *localStorage) Get(filePath string) (io.ReadCloser, error) {
	fullPath, err := s.validatePath(filePath)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete removes a file by its path; a missing file is not an error
func (s *localStorage) Delete(filePath string) error {
	fullPath, err := s.validatePath(filePath)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
