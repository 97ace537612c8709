package index

import (
	"encoding/binary"
	"fmt"

	"github.com/golang/snappy"
	"github.com/tesseradb/tessera/internal/errors"
	"github.com/tesseradb/tessera/internal/stats"
	"github.com/tesseradb/tessera/pkg/types"
)

// Segment file layout: a 4-byte magic and a version byte, the key count,
// a length-prefixed snappy-compressed stream of encoded keys in build
// order, then the trailing statistics block: a summary count followed by
// each summary's self-describing record.
var segmentMagic = [4]byte{'T', 'S', 'R', 'I'}

const segmentVersion = 1

// Segment is the decoded contents of one index segment file: the keys of
// one index for one data file plus the statistics summarizing them.
type Segment struct {
	KeyCount uint64
	keyData  []byte // decompressed encoded key stream
	Stats    []stats.Summary
}

// EncodeSegment serializes a segment. keyStream holds the concatenated
// key encodings in build order.
func EncodeSegment(keyCount uint64, keyStream []byte, summaries []stats.Summary) []byte {
	compressed := snappy.Encode(nil, keyStream)

	buf := make([]byte, 0, 4+1+8+4+len(compressed)+2)
	buf = append(buf, segmentMagic[:]...)
	buf = append(buf, segmentVersion)
	buf = binary.LittleEndian.AppendUint64(buf, keyCount)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(compressed)))
	buf = append(buf, compressed...)

	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(summaries)))
	for _, s := range summaries {
		buf = append(buf, stats.Marshal(s)...)
	}
	return buf
}

// DecodeSegment parses a segment file. Parse failures surface as
// CORRUPT_STATISTICS errors.
func DecodeSegment(data []byte) (*Segment, error) {
	fail := func(msg string, cause error) (*Segment, error) {
		return nil, errors.NewStatisticsError("corrupt index segment: "+msg, cause)
	}

	if len(data) < 4+1+8+4 {
		return fail("truncated header", nil)
	}
	if [4]byte(data[:4]) != segmentMagic {
		return fail(fmt.Sprintf("bad magic %x", data[:4]), nil)
	}
	if data[4] != segmentVersion {
		return fail(fmt.Sprintf("unsupported version %d", data[4]), nil)
	}

	pos := 5
	keyCount := binary.LittleEndian.Uint64(data[pos : pos+8])
	pos += 8
	compLen := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
	pos += 4
	if pos+compLen > len(data) {
		return fail("key block length exceeds buffer", nil)
	}
	keyData, err := snappy.Decode(nil, data[pos:pos+compLen])
	if err != nil {
		return fail("key block decompression failed", err)
	}
	pos += compLen
	// Every encoded key is at least one byte per column, so a count
	// larger than the stream itself cannot be honest.
	if keyCount > uint64(len(keyData)) {
		return fail("key count exceeds key stream", nil)
	}

	if pos+2 > len(data) {
		return fail("truncated statistics count", nil)
	}
	numStats := int(binary.LittleEndian.Uint16(data[pos : pos+2]))
	pos += 2

	seg := &Segment{KeyCount: keyCount, keyData: keyData}
	for i := 0; i < numStats; i++ {
		s, consumed, err := stats.Unmarshal(data, pos)
		if err != nil {
			return nil, err
		}
		seg.Stats = append(seg.Stats, s)
		pos += consumed
	}
	if pos != len(data) {
		return fail("trailing bytes after statistics block", nil)
	}
	return seg, nil
}

// Keys decodes the full key stream. width is the number of key columns.
func (s *Segment) Keys(width int) ([]types.Key, error) {
	keys := make([]types.Key, 0, s.KeyCount)
	pos := 0
	for i := uint64(0); i < s.KeyCount; i++ {
		key, n, err := types.DecodeKey(s.keyData, pos, width)
		if err != nil {
			return nil, errors.NewStatisticsError("corrupt segment key stream", err)
		}
		keys = append(keys, key)
		pos += n
	}
	if pos != len(s.keyData) {
		return nil, errors.NewStatisticsError("trailing bytes in segment key stream", nil)
	}
	return keys, nil
}

// Prune runs the query intervals through every summary in the segment.
// Each summary is individually conservative, so the file is skippable as
// soon as any one of them proves no key can match.
func (s *Segment) Prune(intervals []stats.Interval) stats.Decision {
	for _, summary := range s.Stats {
		if summary.Prune(intervals) == stats.Skip {
			return stats.Skip
		}
	}
	return stats.UseIndex
}
