package index

import (
	"fmt"

	"github.com/tesseradb/tessera/internal/errors"
	"github.com/tesseradb/tessera/pkg/types"
)

// Column is a build-time key column request: a column name plus sort
// direction. Direction is meaningful only for B-tree indexes.
type Column struct {
	Name      string
	Ascending bool
}

// Resolve maps requested key columns to ordinals in the live relation
// schema and produces the index definition for the requested kind.
// Resolution always runs against the live schema, not a stored one, so
// indexes created after columns were added bind to the current layout.
// An unknown column fails with COLUMN_NOT_FOUND before any I/O.
func Resolve(kind Kind, columns []Column, live types.Schema) (Definition, error) {
	if len(columns) == 0 {
		return Definition{}, errors.NewValidationError(errors.CodeColumnNotFound,
			"index requires at least one key column")
	}

	ordinals := make([]int, len(columns))
	for i, col := range columns {
		ord := live.Ordinal(col.Name)
		if ord < 0 {
			return Definition{}, errors.NewValidationError(errors.CodeColumnNotFound,
				fmt.Sprintf("column %q not found in relation schema", col.Name))
		}
		ordinals[i] = ord
	}

	switch kind {
	case KindBTree:
		entries := make([]BTreeEntry, len(columns))
		for i, col := range columns {
			entries[i] = BTreeEntry{Ordinal: uint32(ordinals[i]), Descending: !col.Ascending}
		}
		return Definition{Kind: KindBTree, BTree: entries}, nil
	case KindBitmap:
		entries := make([]uint32, len(ordinals))
		for i, ord := range ordinals {
			entries[i] = uint32(ord)
		}
		return Definition{Kind: KindBitmap, Bitmap: entries}, nil
	default:
		return Definition{}, errors.NewValidationError(errors.CodeUnsupportedIndexType,
			fmt.Sprintf("unsupported index kind %d", kind))
	}
}
