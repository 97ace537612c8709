// Package meta provides the per-partition-directory metadata object and
// its sidecar file store. One Metadata object tracks a directory's data
// files, schema, and index definitions; it is always replaced as a whole,
// never field-patched on disk.
package meta

import (
	"bytes"

	"github.com/tesseradb/tessera/internal/index"
	"github.com/tesseradb/tessera/pkg/types"
)

// SidecarName is the metadata sidecar file name inside each partition
// directory.
const SidecarName = "_tessera.meta"

// FileMeta records one data file: a content-derived fingerprint, its row
// count, and its path. The fingerprint detects whether a file's index
// entry is already accounted for.
type FileMeta struct {
	Fingerprint []byte
	RowCount    uint64
	Path        string
}

// IndexMeta records one index by name plus its resolved definition.
// Names are unique within a partition.
type IndexMeta struct {
	Name       string
	Definition index.Definition
}

// Metadata is the per-partition metadata object, physically a sidecar
// file alongside the data files. Invariants: index names are unique,
// file paths are unique.
type Metadata struct {
	Schema          types.Schema
	ReaderClassName string
	Files           []FileMeta
	Indexes         []IndexMeta
}

// Index returns the index with the given name, if present.
func (m *Metadata) Index(name string) (IndexMeta, bool) {
	for _, im := range m.Indexes {
		if im.Name == name {
			return im, true
		}
	}
	return IndexMeta{}, false
}

// ContainsFile reports whether a data file with the given fingerprint is
// already recorded.
func (m *Metadata) ContainsFile(fingerprint []byte) bool {
	for _, fm := range m.Files {
		if bytes.Equal(fm.Fingerprint, fingerprint) {
			return true
		}
	}
	return false
}

// Builder accumulates a new Metadata. It is used both to carry forward
// unaffected entries from a prior version and to add or replace entries
// for the active operation.
type Builder struct {
	schema          types.Schema
	readerClassName string
	files           []FileMeta
	indexes         []IndexMeta
}

// NewBuilder creates an empty metadata builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// BuilderFrom seeds a builder with every field of an existing Metadata.
func BuilderFrom(m *Metadata) *Builder {
	b := &Builder{
		schema:          m.Schema,
		readerClassName: m.ReaderClassName,
	}
	b.files = append(b.files, m.Files...)
	b.indexes = append(b.indexes, m.Indexes...)
	return b
}

// WithSchema sets the partition schema.
func (b *Builder) WithSchema(s types.Schema) *Builder {
	b.schema = s
	return b
}

// WithReaderClassName sets the data-file codec identifier.
func (b *Builder) WithReaderClassName(name string) *Builder {
	b.readerClassName = name
	return b
}

// AddFileMeta records a data file. A file with the same path replaces the
// prior entry, keeping paths unique.
func (b *Builder) AddFileMeta(fm FileMeta) *Builder {
	for i, existing := range b.files {
		if existing.Path == fm.Path {
			b.files[i] = fm
			return b
		}
	}
	b.files = append(b.files, fm)
	return b
}

// AddIndexMeta records an index. An index with the same name replaces the
// prior entry, keeping names unique.
func (b *Builder) AddIndexMeta(im IndexMeta) *Builder {
	for i, existing := range b.indexes {
		if existing.Name == im.Name {
			b.indexes[i] = im
			return b
		}
	}
	b.indexes = append(b.indexes, im)
	return b
}

// RemoveIndexMeta drops the index with the given name, if present.
func (b *Builder) RemoveIndexMeta(name string) *Builder {
	for i, existing := range b.indexes {
		if existing.Name == name {
			b.indexes = append(b.indexes[:i], b.indexes[i+1:]...)
			return b
		}
	}
	return b
}

// ContainsFile reports whether a file with the given fingerprint has been
// added.
func (b *Builder) ContainsFile(fingerprint []byte) bool {
	for _, fm := range b.files {
		if bytes.Equal(fm.Fingerprint, fingerprint) {
			return true
		}
	}
	return false
}

// Build produces the immutable Metadata.
func (b *Builder) Build() *Metadata {
	m := &Metadata{
		Schema:          b.schema,
		ReaderClassName: b.readerClassName,
	}
	m.Files = append(m.Files, b.files...)
	m.Indexes = append(m.Indexes, b.indexes...)
	return m
}
