// Package index defines secondary index shapes and the resolution of
// requested key columns against a relation's live schema.
package index

import (
	"fmt"
	"strings"

	"github.com/tesseradb/tessera/internal/errors"
)

// Kind tags the index definition union. The set is closed: every
// consumption site (build, serialize, display) switches exhaustively
// over these values.
type Kind uint8

const (
	// KindBTree is an ordered index over a key-column list, each column
	// with its own sort direction.
	KindBTree Kind = iota + 1
	// KindBitmap is a set-membership index over an unordered key-column
	// list.
	KindBitmap
)

// String returns the display label for the kind.
func (k Kind) String() string {
	switch k {
	case KindBTree:
		return "BTREE"
	case KindBitmap:
		return "BITMAP"
	default:
		return fmt.Sprintf("KIND(%d)", uint8(k))
	}
}

// ParseKind parses a kind label. Unknown labels fail with
// UNSUPPORTED_INDEX_TYPE.
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(s) {
	case "BTREE":
		return KindBTree, nil
	case "BITMAP":
		return KindBitmap, nil
	default:
		return 0, errors.NewValidationError(errors.CodeUnsupportedIndexType,
			fmt.Sprintf("unknown index kind %q", s))
	}
}

// BTreeEntry is one key column of a B-tree index: a schema ordinal plus
// its sort direction.
type BTreeEntry struct {
	Ordinal    uint32
	Descending bool
}

// Definition is the tagged-union shape of an index. Exactly one of the
// entry lists is populated, selected by Kind. Ordinals reference
// positions in the owning partition's schema.
type Definition struct {
	Kind   Kind
	BTree  []BTreeEntry // populated when Kind == KindBTree
	Bitmap []uint32     // populated when Kind == KindBitmap
}

// Ordinals returns the key-column ordinals of the definition in key order.
func (d Definition) Ordinals() []int {
	switch d.Kind {
	case KindBTree:
		out := make([]int, len(d.BTree))
		for i, e := range d.BTree {
			out[i] = int(e.Ordinal)
		}
		return out
	case KindBitmap:
		out := make([]int, len(d.Bitmap))
		for i, ord := range d.Bitmap {
			out[i] = int(ord)
		}
		return out
	default:
		return nil
	}
}

// Equal reports whether two definitions are structurally identical.
func (d Definition) Equal(other Definition) bool {
	if d.Kind != other.Kind {
		return false
	}
	switch d.Kind {
	case KindBTree:
		if len(d.BTree) != len(other.BTree) {
			return false
		}
		for i, e := range d.BTree {
			if e != other.BTree[i] {
				return false
			}
		}
		return true
	case KindBitmap:
		if len(d.Bitmap) != len(other.Bitmap) {
			return false
		}
		for i, ord := range d.Bitmap {
			if ord != other.Bitmap[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}
