package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalFS implements FileSystem on the local filesystem. Atomicity of
// WriteFileAtomic and Rename comes from os.Rename, which replaces the
// destination in a single step on POSIX filesystems.
type LocalFS struct {
	basePath string
}

// NewLocalFS creates a local filesystem rooted at basePath. All paths
// passed to the FileSystem methods are interpreted relative to this root;
// an empty basePath addresses absolute paths directly.
func NewLocalFS(basePath string) (*LocalFS, error) {
	if basePath != "" {
		if err := os.MkdirAll(basePath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}
	return &LocalFS{basePath: basePath}, nil
}

// ReadFile returns the full contents of the file at path.
func (l *LocalFS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(l.fullPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	return data, nil
}

// WriteFileAtomic writes data to a temporary sibling of path and renames
// it into place.
func (l *LocalFS) WriteFileAtomic(ctx context.Context, path string, data []byte, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	destPath := l.fullPath(path)
	if !overwrite {
		if _, err := os.Stat(destPath); err == nil {
			return ErrAlreadyExists
		}
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	tmpPath := destPath + ".tmp." + uuid.New().String()
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

// Rename atomically moves src over dst.
func (l *LocalFS) Rename(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dstPath := l.fullPath(dst)
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	if err := os.Rename(l.fullPath(src), dstPath); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

// ListFiles returns the names of regular files directly under dir.
func (l *LocalFS) ListFiles(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(l.fullPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Delete removes the file at path. Missing files are not an error.
func (l *LocalFS) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(l.fullPath(path)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

// DeleteAll removes every file under the given prefix.
func (l *LocalFS) DeleteAll(ctx context.Context, prefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.RemoveAll(l.fullPath(prefix)); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

// Exists checks whether a file exists at path.
func (l *LocalFS) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(l.fullPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// fullPath maps a slash-separated storage path onto the local filesystem.
func (l *LocalFS) fullPath(path string) string {
	native := filepath.FromSlash(strings.TrimPrefix(path, "/"))
	if l.basePath == "" {
		return filepath.FromSlash(path)
	}
	return filepath.Join(l.basePath, native)
}
