package index

import (
	"testing"

	"github.com/tesseradb/tessera/internal/errors"
	"github.com/tesseradb/tessera/pkg/types"
)

func liveSchema() types.Schema {
	return types.Schema{Columns: []types.ColumnDef{
		{Name: "tenant_id", Type: types.TypeString},
		{Name: "user_id", Type: types.TypeInt64},
		{Name: "event_time", Type: types.TypeInt64},
	}}
}

func TestResolveBTree(t *testing.T) {
	def, err := Resolve(KindBTree, []Column{
		{Name: "user_id", Ascending: true},
		{Name: "event_time", Ascending: false},
	}, liveSchema())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if def.Kind != KindBTree {
		t.Fatalf("kind = %v, want BTREE", def.Kind)
	}
	want := []BTreeEntry{
		{Ordinal: 1, Descending: false},
		{Ordinal: 2, Descending: true},
	}
	if len(def.BTree) != len(want) {
		t.Fatalf("entries = %v, want %v", def.BTree, want)
	}
	for i := range want {
		if def.BTree[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, def.BTree[i], want[i])
		}
	}
}

func TestResolveBitmap(t *testing.T) {
	def, err := Resolve(KindBitmap, []Column{{Name: "tenant_id", Ascending: true}}, liveSchema())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if def.Kind != KindBitmap || len(def.Bitmap) != 1 || def.Bitmap[0] != 0 {
		t.Errorf("definition = %+v, want bitmap over ordinal 0", def)
	}
}

func TestResolveUnknownColumn(t *testing.T) {
	_, err := Resolve(KindBTree, []Column{{Name: "zip_code", Ascending: true}}, liveSchema())
	if !errors.HasCode(err, errors.CodeColumnNotFound) {
		t.Fatalf("expected COLUMN_NOT_FOUND, got %v", err)
	}
}

func TestResolveUnknownKind(t *testing.T) {
	_, err := Resolve(Kind(99), []Column{{Name: "user_id", Ascending: true}}, liveSchema())
	if !errors.HasCode(err, errors.CodeUnsupportedIndexType) {
		t.Fatalf("expected UNSUPPORTED_INDEX_TYPE, got %v", err)
	}

	if _, err := ParseKind("hash"); !errors.HasCode(err, errors.CodeUnsupportedIndexType) {
		t.Fatalf("expected UNSUPPORTED_INDEX_TYPE for label, got %v", err)
	}
}

func TestResolveNoColumns(t *testing.T) {
	if _, err := Resolve(KindBTree, nil, liveSchema()); err == nil {
		t.Fatal("expected error for empty column list")
	}
}

func TestSegmentNaming(t *testing.T) {
	name := SegmentFileName("part-00001.dat", "by_user")
	if name != "part-00001.dat.by_user.tsi" {
		t.Errorf("segment name = %q", name)
	}
	if !IsSegmentFile(name) {
		t.Error("segment name should match the segment suffix")
	}
	if !MatchesIndex(name, "by_user") {
		t.Error("segment name should match its index")
	}
	if MatchesIndex(name, "user") {
		t.Error("index name matching must not match on a name suffix")
	}
	if MatchesIndex("part-00001.dat", "by_user") {
		t.Error("data files must not match as segments")
	}
}

func TestDefinitionEqualAndOrdinals(t *testing.T) {
	a := Definition{Kind: KindBTree, BTree: []BTreeEntry{{Ordinal: 1}, {Ordinal: 2, Descending: true}}}
	b := Definition{Kind: KindBTree, BTree: []BTreeEntry{{Ordinal: 1}, {Ordinal: 2, Descending: true}}}
	c := Definition{Kind: KindBitmap, Bitmap: []uint32{1, 2}}

	if !a.Equal(b) {
		t.Error("identical definitions should be equal")
	}
	if a.Equal(c) {
		t.Error("different kinds should not be equal")
	}

	ords := c.Ordinals()
	if len(ords) != 2 || ords[0] != 1 || ords[1] != 2 {
		t.Errorf("ordinals = %v, want [1 2]", ords)
	}
}
