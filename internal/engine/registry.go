package engine

import (
	"fmt"
	"sort"

	"github.com/tesseradb/tessera/internal/build"
	"github.com/tesseradb/tessera/internal/errors"
	"github.com/tesseradb/tessera/pkg/types"
)

// ReaderFactory builds a reader bound to the schema the data files were
// written with.
type ReaderFactory func(schema types.Schema) build.Reader

var readers = map[string]ReaderFactory{}

// RegisterReader installs a reader factory under a reader class name.
// The name is what partition metadata records, so it must stay stable
// across releases.
func RegisterReader(name string, factory ReaderFactory) {
	readers[name] = factory
}

// LookupReader resolves a reader class name recorded in partition
// metadata. An unknown name means the table's storage format is not
// indexable by this build.
func LookupReader(name string, schema types.Schema) (build.Reader, error) {
	factory, ok := readers[name]
	if !ok {
		return nil, errors.NewValidationError(errors.CodeUnsupportedRelation,
			fmt.Sprintf("no reader registered for class %q", name))
	}
	return factory(schema), nil
}

// RegisteredReaders returns the registered reader class names, sorted.
func RegisteredReaders() []string {
	names := make([]string, 0, len(readers))
	for name := range readers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
