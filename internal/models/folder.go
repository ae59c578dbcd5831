package models

import (
	"fmt"
	"strings"
)

// Folder identifies a built-in folder type.
type Folder int

const (
	FolderInbox      Folder = 1
	FolderSent       Folder = 2
	FolderDrafts     Folder = 3
	FolderTrash      Folder = 4
	FolderSpam       Folder = 5
	FolderUserFolder Folder = 6
	FolderSending    Folder = 7
)

// AllFolders lists every built-in folder type in display order.
var AllFolders = []Folder{
	FolderInbox,
	FolderSent,
	FolderDrafts,
	FolderTrash,
	FolderSpam,
	FolderUserFolder,
	FolderSending,
}

var folderNames = map[Folder]string{
	FolderInbox:      "inbox",
	FolderSent:       "sent",
	FolderDrafts:     "drafts",
	FolderTrash:      "trash",
	FolderSpam:       "spam",
	FolderUserFolder: "user_folder",
	FolderSending:    "sending",
}

// String returns the lowercase folder name
func (f Folder) String() string {
	if name, ok := folderNames[f]; ok {
		return name
	}
	return fmt.Sprintf("folder(%d)", int(f))
}

// Valid reports whether f is a known folder type
func (f Folder) Valid() bool {
	_, ok := folderNames[f]
	return ok
}

// ParseFolder accepts either a folder name or its numeric value
func ParseFolder(s string) (Folder, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for f, name := range folderNames {
		if name == s || fmt.Sprint(int(f)) == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown folder %q", s)
}

// Scope is the tenant and user every core call runs on behalf of.
type Scope struct {
	TenantID uint   `json:"tenant_id"`
	UserID   string `json:"user_id"`
}

// Valid reports whether both parts of the scope are set
func (s Scope) Valid() bool {
	return s.TenantID != 0 && s.UserID != ""
}
