package bloom

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Serialize converts the filter to a byte representation.
// The format is:
//   - 8 bytes: numBits (uint64, little-endian)
//   - 8 bytes: numHashes (uint64, little-endian)
//   - 8 bytes: count (uint64, little-endian)
//   - remaining: bit array ([]uint64, little-endian)
func (f *Filter) Serialize() []byte {
	headerSize := 3 * 8
	buf := make([]byte, headerSize+len(f.bits)*8)

	binary.LittleEndian.PutUint64(buf[0:8], f.numBits)
	binary.LittleEndian.PutUint64(buf[8:16], f.numHashes)
	binary.LittleEndian.PutUint64(buf[16:24], f.count)

	for i, word := range f.bits {
		offset := headerSize + i*8
		binary.LittleEndian.PutUint64(buf[offset:offset+8], word)
	}

	return buf
}

// Deserialize reconstructs a filter from serialized bytes.
func Deserialize(data []byte) (*Filter, error) {
	if len(data) < 24 {
		return nil, errors.New("bloom: serialized data too short")
	}

	numBits := binary.LittleEndian.Uint64(data[0:8])
	numHashes := binary.LittleEndian.Uint64(data[8:16])
	count := binary.LittleEndian.Uint64(data[16:24])

	if numBits == 0 {
		return nil, errors.New("bloom: numBits cannot be zero")
	}
	if numHashes == 0 {
		return nil, errors.New("bloom: numHashes cannot be zero")
	}

	numWords := numBits / 64
	if numBits%64 != 0 {
		numWords++
	}
	if numWords > uint64(len(data)-24)/8 {
		return nil, fmt.Errorf("bloom: expected %d bit-array words, got %d bytes", numWords, len(data)-24)
	}

	bits := make([]uint64, numWords)
	for i := range bits {
		offset := 24 + i*8
		bits[i] = binary.LittleEndian.Uint64(data[offset : offset+8])
	}

	return &Filter{
		bits:      bits,
		numBits:   numBits,
		numHashes: numHashes,
		count:     count,
	}, nil
}
