package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *localStorage {
	fs, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return fs.(*localStorage)
}

func TestValidatePath_PathTraversal(t *testing.T) {
	ls := newTestStorage(t)

	tests := []struct {
		name string
		path string
	}{
		{"simple traversal", "../etc/passwd"},
		{"double traversal", "../../etc/passwd"},
		{"nested traversal", "subdir/../../../etc/passwd"},
		{"absolute", "/etc/passwd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ls.validatePath(tt.path)
			assert.ErrorIs(t, err, ErrPathTraversal)
		})
	}
}

func TestValidatePath_ValidPath(t *testing.T) {
	ls := newTestStorage(t)
	absBase, _ := filepath.Abs(ls.basePath)

	for _, p := range []string{"file.txt", "t1_alice/ab/ab123456-7890.pdf"} {
		result, err := ls.validatePath(p)
		assert.NoError(t, err)
		assert.True(t, strings.HasPrefix(result, absBase))
	}
}

func TestValidateFile_BlockedExtensions(t *testing.T) {
	tests := []struct {
		filename string
		wantErr  bool
	}{
		{"malware.exe", true},
		{"script.sh", true},
		{"MALWARE.EXE", true},
		{"document.pdf", false},
		{"image.jpg", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			err := ValidateFile(tt.filename, 1024)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBlockedExt)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateFile_SizeLimit(t *testing.T) {
	assert.NoError(t, ValidateFile("file.pdf", MaxFileSize))
	assert.ErrorIs(t, ValidateFile("file.pdf", MaxFileSize+1), ErrFileTooLarge)
}

func TestOwnerDir_SanitizesUserID(t *testing.T) {
	assert.Equal(t, "t7_alice_example.com", OwnerDir(7, "alice@example.com"))
	assert.Equal(t, "t1__x", OwnerDir(1, "../x"))
}

func TestSaveAndGet(t *testing.T) {
	ls := newTestStorage(t)

	path, n, err := ls.Save(OwnerDir(1, "alice"), "report.PDF", strings.NewReader("test content"))
	require.NoError(t, err)
	assert.Equal(t, int64(len("test content")), n)
	assert.True(t, strings.HasPrefix(path, "t1_alice"+string(filepath.Separator)))
	assert.True(t, strings.HasSuffix(path, ".pdf"))

	reader, err := ls.Get(path)
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "test content", string(data))
}

func TestSave_RejectsOversizedContent(t *testing.T) {
	ls := newTestStorage(t)
	ls.maxSize = 4

	_, _, err := ls.Save("owner", "big.txt", strings.NewReader("too large"))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	entries, _ := os.ReadDir(filepath.Join(ls.basePath, "owner"))
	for _, e := range entries {
		files, _ := os.ReadDir(filepath.Join(ls.basePath, "owner", e.Name()))
		assert.Empty(t, files)
	}
}

func TestDelete(t *testing.T) {
	ls := newTestStorage(t)

	path, _, err := ls.Save("owner", "test.txt", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, ls.Delete(path))
	_, err = ls.Get(path)
	assert.ErrorIs(t, err, ErrFileNotFound)

	// Deleting twice is fine
	assert.NoError(t, ls.Delete(path))
	assert.ErrorIs(t, ls.Delete("../../../etc/passwd"), ErrPathTraversal)
}
