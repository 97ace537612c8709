package meta

import (
	stderrors "errors"
	"path"

	"context"

	"github.com/tesseradb/tessera/internal/errors"
	"github.com/tesseradb/tessera/internal/storage"
)

// Store reads and writes partition metadata sidecars through the
// filesystem abstraction. Writing goes through a temporary path and an
// atomic rename, so a sidecar is replaced as a whole or not at all.
type Store struct {
	fs storage.FileSystem
}

// NewStore creates a metadata store over the given filesystem.
func NewStore(fs storage.FileSystem) *Store {
	return &Store{fs: fs}
}

// SidecarPath returns the sidecar path for a partition directory.
func SidecarPath(dir string) string {
	return path.Join(dir, SidecarName)
}

// Load reads the metadata sidecar of a partition directory. A missing
// sidecar returns (nil, nil); an unreadable or unparseable one fails
// with CORRUPT_METADATA.
func (s *Store) Load(ctx context.Context, dir string) (*Metadata, error) {
	data, err := s.fs.ReadFile(ctx, SidecarPath(dir))
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.NewStorageError(errors.CodeReadFailed,
			"failed to read metadata sidecar", err)
	}
	return Decode(data)
}

// Write serializes metadata and atomically replaces the directory's
// sidecar. With overwrite false an existing sidecar fails the write and
// stays untouched. This is the single commit point of every lifecycle
// operation: readers either see the old object or the new one.
func (s *Store) Write(ctx context.Context, dir string, m *Metadata, overwrite bool) error {
	err := s.fs.WriteFileAtomic(ctx, SidecarPath(dir), Encode(m), overwrite)
	if err != nil {
		if stderrors.Is(err, storage.ErrAlreadyExists) {
			return errors.NewMetadataError(errors.CodeMetadataExists,
				"metadata sidecar already exists in "+dir, err)
		}
		return errors.NewStorageError(errors.CodeWriteFailed,
			"failed to write metadata sidecar", err)
	}
	return nil
}

// Delete removes the directory's sidecar, if present.
func (s *Store) Delete(ctx context.Context, dir string) error {
	return s.fs.Delete(ctx, SidecarPath(dir))
}
