// Package stats provides per-segment column statistics computed during an
// index build and consulted at query time to decide whether a data file
// can be skipped without reading it.
//
// Every statistics kind implements the same Summary contract, so new
// kinds plug in without touching the build coordinator: register a
// factory under a record id and the segment codec carries it.
package stats

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/tesseradb/tessera/internal/errors"
	"github.com/tesseradb/tessera/pkg/types"
)

// Decision is the outcome of a pruning check for one data file.
type Decision int

const (
	// UseIndex means the file may contain matching keys and must be read.
	UseIndex Decision = iota
	// Skip means no key in the file can satisfy the query predicate.
	Skip
)

// String returns the display label for the decision.
func (d Decision) String() string {
	if d == Skip {
		return "SKIP"
	}
	return "USE_INDEX"
}

// Interval is a single contiguous predicate over the index key. A nil
// Start or End bound is the unbounded sentinel. A query supplies a list
// of intervals whose union forms the predicate.
type Interval struct {
	Start          types.Key
	StartInclusive bool
	End            types.Key
	EndInclusive   bool
}

// Point builds the interval [key, key].
func Point(key types.Key) Interval {
	return Interval{Start: key, StartInclusive: true, End: key, EndInclusive: true}
}

// Summary is the statistics contract every kind implements. A Summary is
// owned by a single build task and is not safe for concurrent use.
type Summary interface {
	// ID is the record id written in front of the serialized payload.
	ID() string

	// Reset clears the summary for a new build segment over the given
	// index key schema.
	Reset(keySchema types.Schema)

	// Observe folds one key into the summary. Keys arrive in build order.
	Observe(key types.Key)

	// MarshalPayload serializes the summary body. An empty segment
	// serializes to a zero-length payload.
	MarshalPayload() []byte

	// UnmarshalPayload is the inverse of MarshalPayload.
	UnmarshalPayload(data []byte) error

	// Prune decides whether a file with this summary can be skipped for
	// the union of the given intervals. It must never return Skip unless
	// provably no key in the file can match.
	Prune(intervals []Interval) Decision
}

var kinds = map[string]func() Summary{}

// Register installs a factory for a statistics kind. Called from init
// functions of the kind implementations.
func Register(id string, factory func() Summary) {
	kinds[id] = factory
}

// NewSummary constructs a fresh summary of the named kind.
func NewSummary(id string) (Summary, error) {
	factory, ok := kinds[id]
	if !ok {
		return nil, errors.NewValidationError(errors.CodeUnsupportedIndexType,
			fmt.Sprintf("unknown statistics kind %q", id))
	}
	return factory(), nil
}

// RegisteredKinds returns the registered kind ids in sorted order.
func RegisteredKinds() []string {
	ids := make([]string, 0, len(kinds))
	for id := range kinds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Marshal encodes a summary as a self-describing record:
// a uint16 length-prefixed record id followed by a uint32 length-prefixed
// payload. An empty segment carries only this header with a zero-length
// payload.
func Marshal(s Summary) []byte {
	id := s.ID()
	payload := s.MarshalPayload()

	buf := make([]byte, 0, 2+len(id)+4+len(payload))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(id)))
	buf = append(buf, id...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(payload)))
	buf = append(buf, payload...)
	return buf
}

// Unmarshal decodes one summary record starting at data[offset] and
// returns the summary with the number of bytes consumed. Fails with a
// CORRUPT_STATISTICS error when a length prefix exceeds the remaining
// buffer or the record id is unknown.
func Unmarshal(data []byte, offset int) (Summary, int, error) {
	pos := offset
	if pos+2 > len(data) {
		return nil, 0, errors.NewStatisticsError("truncated statistics record id length", nil)
	}
	idLen := int(binary.LittleEndian.Uint16(data[pos : pos+2]))
	pos += 2
	if pos+idLen > len(data) {
		return nil, 0, errors.NewStatisticsError("statistics record id exceeds buffer", nil)
	}
	id := string(data[pos : pos+idLen])
	pos += idLen

	if pos+4 > len(data) {
		return nil, 0, errors.NewStatisticsError("truncated statistics payload length", nil)
	}
	payloadLen := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
	pos += 4
	if pos+payloadLen > len(data) {
		return nil, 0, errors.NewStatisticsError(
			fmt.Sprintf("statistics payload length %d exceeds remaining buffer %d", payloadLen, len(data)-pos), nil)
	}

	factory, ok := kinds[id]
	if !ok {
		return nil, 0, errors.NewStatisticsError(fmt.Sprintf("unknown statistics record id %q", id), nil)
	}

	s := factory()
	if err := s.UnmarshalPayload(data[pos : pos+payloadLen]); err != nil {
		return nil, 0, err
	}
	return s, pos + payloadLen - offset, nil
}
