// Package storage provides the path-addressable byte store used for data
// directories, metadata sidecars, and index segments. Implementations
// include the local filesystem and S3.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrNotFound      = errors.New("path not found")
	ErrAlreadyExists = errors.New("path already exists")
	ErrWriteFailed   = errors.New("write failed")
	ErrReadFailed    = errors.New("read failed")
	ErrDeleteFailed  = errors.New("delete failed")
)

// FileSystem abstracts a path-addressable byte store. Paths use forward
// slashes regardless of platform. The one atomicity guarantee every
// implementation must provide is WriteFileAtomic/Rename: a reader never
// observes a partially written file at the destination path.
type FileSystem interface {
	// ReadFile returns the full contents of the file at path.
	// Returns ErrNotFound if no file exists there.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// WriteFileAtomic writes data to path so that the file appears all at
	// once: the bytes land at a temporary path first and are renamed over
	// the destination. If overwrite is false and the destination exists,
	// ErrAlreadyExists is returned and the destination is untouched.
	WriteFileAtomic(ctx context.Context, path string, data []byte, overwrite bool) error

	// Rename atomically moves src over dst, replacing any existing file.
	Rename(ctx context.Context, src, dst string) error

	// ListFiles returns the names (not full paths) of the regular files
	// directly under dir. A missing directory lists as empty.
	ListFiles(ctx context.Context, dir string) ([]string, error)

	// Delete removes the file at path. Deleting a missing file is not an
	// error.
	Delete(ctx context.Context, path string) error

	// DeleteAll removes every file under the given prefix.
	DeleteAll(ctx context.Context, prefix string) error

	// Exists checks whether a file exists at path.
	Exists(ctx context.Context, path string) (bool, error)
}
