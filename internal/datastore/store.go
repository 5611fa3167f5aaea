package datastore

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNotFound    = errors.New("datastore: not found")
	ErrExists      = errors.New("datastore: already exists")
	ErrInvalidName = errors.New("datastore: invalid name")
)

// Entry is a single child of a browsed directory.
type Entry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

// Listing is the result of browsing one directory.
type Listing struct {
	Path    string   `json:"path"`
	Entries []*Entry `json:"entries"`
}

// Store is the local mirror provider. All paths are slash-separated and
// relative to the mirror root. Implementations must return the sentinel
// errors above so callers can distinguish expected failures (missing
// directory, creation race, un-createable name) from real I/O trouble.
type Store interface {
	// Browse lists the immediate children of dir. ErrNotFound when the
	// directory does not exist.
	Browse(ctx context.Context, dir string) (*Listing, error)

	// CreateDir creates a single directory (parents must exist).
	// ErrExists when it is already there, ErrInvalidName when the name
	// cannot exist on the local filesystem.
	CreateDir(ctx context.Context, path string) error

	// Upload replaces the file at path with the contents of r and
	// returns the resulting etag.
	Upload(ctx context.Context, path string, r io.Reader) (string, error)

	// Etag returns the current content etag of the file at path.
	Etag(ctx context.Context, path string) (string, error)

	// Open returns the current contents of the file at path.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}
