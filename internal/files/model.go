// Package files is the tenant's file cabinet: a folder tree whose files live
// in object storage.
package files

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/deskhub/deskhub/internal/httpx"
	"github.com/deskhub/deskhub/internal/store"
)

const maxNameLen = 255

var (
	ErrCycle     = fmt.Errorf("%w: a folder cannot move into itself or its subfolders", httpx.ErrInvalid)
	ErrNameTaken = fmt.Errorf("%w: name already used in this folder", store.ErrConflict)
	ErrNotText   = fmt.Errorf("%w: file is not editable as text", httpx.ErrInvalid)
)

// Folder is a node of the tree. ParentID "" is the root.
type Folder struct {
	store.Meta `bson:",inline"`
	Name       string `json:"name" bson:"name"`
	NameKey    string `json:"-" bson:"nameKey"`
	ParentID   string `json:"parentId" bson:"parentId"`
	OwnerID    string `json:"ownerId" bson:"ownerId"`
}

// FileItem is the metadata of a stored object. FolderID "" is the root.
type FileItem struct {
	store.Meta  `bson:",inline"`
	Name        string `json:"name" bson:"name"`
	NameKey     string `json:"-" bson:"nameKey"`
	FolderID    string `json:"folderId" bson:"folderId"`
	StorageKey  string `json:"-" bson:"storageKey"`
	Size        int64  `json:"size" bson:"size"`
	ContentType string `json:"contentType" bson:"contentType"`
	OwnerID     string `json:"ownerId" bson:"ownerId"`
}

// Listing is the content of one folder.
type Listing struct {
	Folders []*Folder   `json:"folders"`
	Files   []*FileItem `json:"files"`
}

type TreeNode struct {
	*Folder
	Children []*TreeNode `json:"children"`
}

// TextFile creates a text file, or overwrites the content of ID when set.
type TextFile struct {
	ID       string `json:"id"`
	FolderID string `json:"folderId"`
	Name     string `json:"name"`
	Content  string `json:"content"`
}

// cleanName validates a folder or file name and returns it trimmed together
// with its case-folded sibling key.
func cleanName(name string) (string, string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", "", httpx.Invalidf("name is required")
	case name == "." || name == "..":
		return "", "", httpx.Invalidf("name %q is reserved", name)
	case strings.ContainsAny(name, "/\\"):
		return "", "", httpx.Invalidf("name must not contain slashes")
	case utf8.RuneCountInString(name) > maxNameLen:
		return "", "", httpx.Invalidf("name is longer than %d characters", maxNameLen)
	}
	return name, strings.ToLower(name), nil
}

func isText(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/") ||
		strings.HasPrefix(ct, "application/json") ||
		strings.HasPrefix(ct, "application/xml")
}
