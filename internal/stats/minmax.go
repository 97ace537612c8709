package stats

import (
	"encoding/binary"

	"github.com/tesseradb/tessera/internal/errors"
	"github.com/tesseradb/tessera/pkg/types"
)

// MinMaxID is the record id of the min/max statistics kind.
const MinMaxID = "minmax"

func init() {
	Register(MinMaxID, func() Summary { return &MinMax{} })
}

// MinMax tracks the smallest and largest index key observed during a
// build segment, compared with the table's native column ordering.
type MinMax struct {
	keyWidth  int
	populated bool
	min       types.Key
	max       types.Key
}

// NewMinMax creates an empty min/max summary.
func NewMinMax() *MinMax {
	return &MinMax{}
}

// ID returns the record id.
func (m *MinMax) ID() string { return MinMaxID }

// Reset clears the summary for a new segment over keySchema.
func (m *MinMax) Reset(keySchema types.Schema) {
	m.keyWidth = len(keySchema.Columns)
	m.populated = false
	m.min = nil
	m.max = nil
}

// Observe folds one key into the summary. The first observed key seeds
// both bounds.
func (m *MinMax) Observe(key types.Key) {
	if !m.populated {
		m.min = key.Clone()
		m.max = key.Clone()
		m.keyWidth = len(key)
		m.populated = true
		return
	}
	if key.Compare(m.min) < 0 {
		m.min = key.Clone()
	}
	if key.Compare(m.max) > 0 {
		m.max = key.Clone()
	}
}

// Bounds returns the observed (min, max, populated) triple.
func (m *MinMax) Bounds() (types.Key, types.Key, bool) {
	return m.min, m.max, m.populated
}

// MarshalPayload encodes the key width followed by the length-prefixed
// encodings of min and max. An empty segment encodes to zero bytes.
func (m *MinMax) MarshalPayload() []byte {
	if !m.populated {
		return nil
	}

	minBytes := m.min.AppendEncode(nil)
	maxBytes := m.max.AppendEncode(nil)

	buf := make([]byte, 0, 1+4+len(minBytes)+4+len(maxBytes))
	buf = append(buf, byte(m.keyWidth))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(minBytes)))
	buf = append(buf, minBytes...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(maxBytes)))
	buf = append(buf, maxBytes...)
	return buf
}

// UnmarshalPayload is the inverse of MarshalPayload.
func (m *MinMax) UnmarshalPayload(data []byte) error {
	if len(data) == 0 {
		m.populated = false
		m.min = nil
		m.max = nil
		return nil
	}
	if len(data) < 1 {
		return errors.NewStatisticsError("minmax payload too short", nil)
	}
	width := int(data[0])
	pos := 1

	readKey := func() (types.Key, error) {
		if pos+4 > len(data) {
			return nil, errors.NewStatisticsError("minmax key length prefix exceeds buffer", nil)
		}
		n := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if pos+n > len(data) {
			return nil, errors.NewStatisticsError("minmax key encoding exceeds buffer", nil)
		}
		key, consumed, err := types.DecodeKey(data, pos, width)
		if err != nil || consumed != n {
			return nil, errors.NewStatisticsError("corrupt minmax key encoding", err)
		}
		pos += n
		return key, nil
	}

	min, err := readKey()
	if err != nil {
		return err
	}
	max, err := readKey()
	if err != nil {
		return err
	}

	m.keyWidth = width
	m.min = min
	m.max = max
	m.populated = true
	return nil
}

// Prune decides whether a file with this summary can be skipped for the
// union of the given intervals. A file is skippable for one interval when
// the interval lies entirely above max or entirely below min; the file is
// skipped only when every interval is skippable. An unpopulated summary
// (empty file or segment) never skips: absence of keys in the summary is
// not proof of absence in the file.
func (m *MinMax) Prune(intervals []Interval) Decision {
	if !m.populated || len(intervals) == 0 {
		return UseIndex
	}
	for _, iv := range intervals {
		if !m.skippable(iv) {
			return UseIndex
		}
	}
	return Skip
}

// skippable reports whether no key in [min, max] can fall inside iv.
// With an inclusive start the interval clears max only when start > max;
// with an exclusive start, start == max already excludes max, so >= is
// the correct test. The end bound is symmetric against min.
func (m *MinMax) skippable(iv Interval) bool {
	if iv.Start != nil {
		c := iv.Start.Compare(m.max)
		if (iv.StartInclusive && c > 0) || (!iv.StartInclusive && c >= 0) {
			return true
		}
	}
	if iv.End != nil {
		c := iv.End.Compare(m.min)
		if (iv.EndInclusive && c < 0) || (!iv.EndInclusive && c <= 0) {
			return true
		}
	}
	return false
}
