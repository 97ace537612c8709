package stats

import (
	"testing"

	"github.com/tesseradb/tessera/internal/errors"
	"github.com/tesseradb/tessera/pkg/types"
)

func intKey(v int64) types.Key {
	return types.Key{types.Int64Value(v)}
}

func keySchema() types.Schema {
	return types.Schema{Columns: []types.ColumnDef{{Name: "user_id", Type: types.TypeInt64}}}
}

func observedMinMax(t *testing.T, vals ...int64) *MinMax {
	t.Helper()
	m := NewMinMax()
	m.Reset(keySchema())
	for _, v := range vals {
		m.Observe(intKey(v))
	}
	return m
}

func TestObserveSeedsAndExtends(t *testing.T) {
	m := observedMinMax(t, 7)
	min, max, ok := m.Bounds()
	if !ok {
		t.Fatal("summary should be populated after first key")
	}
	if min.Compare(intKey(7)) != 0 || max.Compare(intKey(7)) != 0 {
		t.Errorf("first key should seed both bounds, got min=%v max=%v", min, max)
	}

	m.Observe(intKey(3))
	m.Observe(intKey(12))
	min, max, _ = m.Bounds()
	if min.Compare(intKey(3)) != 0 {
		t.Errorf("min = %v, want 3", min)
	}
	if max.Compare(intKey(12)) != 0 {
		t.Errorf("max = %v, want 12", max)
	}
}

func TestPruneStartBound(t *testing.T) {
	m := observedMinMax(t, 5, 10)

	// start=12 inclusive lies above max=10: skip.
	got := m.Prune([]Interval{{Start: intKey(12), StartInclusive: true}})
	if got != Skip {
		t.Errorf("start=12 inclusive: got %v, want Skip", got)
	}

	// start=8 inclusive overlaps [5,10]: read.
	got = m.Prune([]Interval{{Start: intKey(8), StartInclusive: true}})
	if got != UseIndex {
		t.Errorf("start=8 inclusive: got %v, want UseIndex", got)
	}

	// start=10 exclusive admits nothing <= max: skip.
	got = m.Prune([]Interval{{Start: intKey(10), StartInclusive: false}})
	if got != Skip {
		t.Errorf("start=10 exclusive: got %v, want Skip", got)
	}

	// start=10 inclusive still admits max itself: read.
	got = m.Prune([]Interval{{Start: intKey(10), StartInclusive: true}})
	if got != UseIndex {
		t.Errorf("start=10 inclusive: got %v, want UseIndex", got)
	}
}

func TestPruneEndBound(t *testing.T) {
	m := observedMinMax(t, 5, 10)

	got := m.Prune([]Interval{{End: intKey(3), EndInclusive: true}})
	if got != Skip {
		t.Errorf("end=3 inclusive: got %v, want Skip", got)
	}

	// end=5 exclusive excludes min itself: skip.
	got = m.Prune([]Interval{{End: intKey(5), EndInclusive: false}})
	if got != Skip {
		t.Errorf("end=5 exclusive: got %v, want Skip", got)
	}

	got = m.Prune([]Interval{{End: intKey(5), EndInclusive: true}})
	if got != UseIndex {
		t.Errorf("end=5 inclusive: got %v, want UseIndex", got)
	}
}

func TestPruneIntervalUnion(t *testing.T) {
	m := observedMinMax(t, 5, 10)

	// One interval overlaps, one does not: the union may match, so read.
	got := m.Prune([]Interval{
		{Start: intKey(20), StartInclusive: true},
		{Start: intKey(6), StartInclusive: true, End: intKey(7), EndInclusive: true},
	})
	if got != UseIndex {
		t.Errorf("union with one overlapping interval: got %v, want UseIndex", got)
	}

	// Every interval misses the range: skip.
	got = m.Prune([]Interval{
		{Start: intKey(20), StartInclusive: true},
		{End: intKey(2), EndInclusive: true},
	})
	if got != Skip {
		t.Errorf("union of misses: got %v, want Skip", got)
	}
}

func TestPruneEmptySummary(t *testing.T) {
	m := NewMinMax()
	m.Reset(keySchema())

	got := m.Prune([]Interval{{Start: intKey(12), StartInclusive: true}})
	if got != UseIndex {
		t.Errorf("empty summary must never skip, got %v", got)
	}
}

func TestPruneNoIntervals(t *testing.T) {
	m := observedMinMax(t, 5, 10)
	if got := m.Prune(nil); got != UseIndex {
		t.Errorf("no intervals: got %v, want UseIndex", got)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	m := NewMinMax()
	m.Reset(types.Schema{Columns: []types.ColumnDef{
		{Name: "tenant", Type: types.TypeString},
		{Name: "ts", Type: types.TypeInt64},
	}})
	m.Observe(types.Key{types.StringValue("acme"), types.Int64Value(100)})
	m.Observe(types.Key{types.StringValue("zorg"), types.Int64Value(50)})

	data := Marshal(m)
	restored, consumed, err := Unmarshal(data, 0)
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if consumed != len(data) {
		t.Errorf("consumed %d of %d bytes", consumed, len(data))
	}

	mm, ok := restored.(*MinMax)
	if !ok {
		t.Fatalf("restored wrong kind %T", restored)
	}
	min, max, populated := mm.Bounds()
	if !populated {
		t.Fatal("restored summary should be populated")
	}
	wantMin := types.Key{types.StringValue("acme"), types.Int64Value(100)}
	wantMax := types.Key{types.StringValue("zorg"), types.Int64Value(50)}
	if min.Compare(wantMin) != 0 || len(min) != 2 {
		t.Errorf("restored min = %v, want %v", min, wantMin)
	}
	if max.Compare(wantMax) != 0 {
		t.Errorf("restored max = %v, want %v", max, wantMax)
	}
}

func TestMarshalEmptySegment(t *testing.T) {
	m := NewMinMax()
	m.Reset(keySchema())

	data := Marshal(m)
	restored, consumed, err := Unmarshal(data, 0)
	if err != nil {
		t.Fatalf("unmarshal of empty summary failed: %v", err)
	}
	if consumed != len(data) {
		t.Errorf("consumed %d of %d bytes", consumed, len(data))
	}
	if _, _, populated := restored.(*MinMax).Bounds(); populated {
		t.Error("empty segment should round-trip to an unpopulated summary")
	}
	if restored.Prune([]Interval{Point(intKey(1))}) != UseIndex {
		t.Error("empty restored summary must not skip")
	}
}

func TestUnmarshalCorrupt(t *testing.T) {
	m := observedMinMax(t, 1, 2)
	data := Marshal(m)

	cases := map[string][]byte{
		"truncated id length":      data[:1],
		"truncated payload length": data[:2+len(MinMaxID)+2],
		"payload past buffer":      data[:len(data)-3],
	}
	for name, corrupt := range cases {
		if _, _, err := Unmarshal(corrupt, 0); !errors.HasCode(err, errors.CodeCorruptStatistics) {
			t.Errorf("%s: expected CORRUPT_STATISTICS, got %v", name, err)
		}
	}

	unknown := Marshal(m)
	// Swap the record id to something unregistered.
	copy(unknown[2:], "zzzzzz")
	if _, _, err := Unmarshal(unknown, 0); !errors.HasCode(err, errors.CodeCorruptStatistics) {
		t.Errorf("unknown id: expected CORRUPT_STATISTICS, got %v", err)
	}
}

func TestUnmarshalAtOffset(t *testing.T) {
	m := observedMinMax(t, 4, 9)
	prefix := []byte("keyblockkeyblock")
	data := append(append([]byte{}, prefix...), Marshal(m)...)

	restored, consumed, err := Unmarshal(data, len(prefix))
	if err != nil {
		t.Fatalf("unmarshal at offset failed: %v", err)
	}
	if len(prefix)+consumed != len(data) {
		t.Errorf("consumed %d, want %d", consumed, len(data)-len(prefix))
	}
	min, max, _ := restored.(*MinMax).Bounds()
	if min.Compare(intKey(4)) != 0 || max.Compare(intKey(9)) != 0 {
		t.Errorf("restored bounds %v..%v, want 4..9", min, max)
	}
}
