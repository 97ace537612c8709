package meta

import "github.com/spaolacci/murmur3"

// Fingerprint derives a 16-byte content identifier for a data file from
// its bytes, using the murmur3 128-bit hash. Two files with equal content
// fingerprint identically regardless of path, which is what lets refresh
// recognize files it has already indexed.
func Fingerprint(content []byte) []byte {
	h1, h2 := murmur3.Sum128(content)
	out := make([]byte, 16)
	for i := 0; i < 8; i++ {
		out[i] = byte(h1 >> (8 * i))
		out[8+i] = byte(h2 >> (8 * i))
	}
	return out
}
