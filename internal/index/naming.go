package index

import "strings"

// SegmentSuffix is the fixed suffix of index segment files.
const SegmentSuffix = ".tsi"

// SegmentFileName returns the name of the segment file holding the named
// index's keys for one data file: <dataFileName>.<indexName>.tsi. The
// name embeds the index name so Drop can enumerate a directory listing
// and delete an index's segments by pattern.
func SegmentFileName(dataFileName, indexName string) string {
	return dataFileName + "." + indexName + SegmentSuffix
}

// IsSegmentFile reports whether a file name follows the segment naming
// convention for any index.
func IsSegmentFile(name string) bool {
	return strings.HasSuffix(name, SegmentSuffix)
}

// MatchesIndex reports whether a file name is a segment of the named
// index.
func MatchesIndex(name, indexName string) bool {
	return strings.HasSuffix(name, "."+indexName+SegmentSuffix)
}
