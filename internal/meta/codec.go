package meta

import (
	"encoding/binary"
	stderrors "errors"
	"fmt"

	"github.com/golang/snappy"
	"github.com/tesseradb/tessera/internal/errors"
	"github.com/tesseradb/tessera/internal/index"
	"github.com/tesseradb/tessera/pkg/types"
)

// Sidecar layout: a 4-byte magic and a format version byte, then the
// snappy-compressed body. All counts and ordinals are uvarints; strings
// and byte strings are uvarint length-prefixed.
var sidecarMagic = [4]byte{'T', 'S', 'R', 'M'}

const sidecarVersion = 1

var errTruncated = stderrors.New("truncated record")

// Encode serializes a Metadata object into sidecar bytes.
func Encode(m *Metadata) []byte {
	var body []byte

	// Schema
	body = binary.AppendUvarint(body, uint64(len(m.Schema.Columns)))
	for _, col := range m.Schema.Columns {
		body = appendString(body, col.Name)
		body = append(body, byte(col.Type))
	}

	// Reader class name
	body = appendString(body, m.ReaderClassName)

	// File metas
	body = binary.AppendUvarint(body, uint64(len(m.Files)))
	for _, fm := range m.Files {
		body = appendBytes(body, fm.Fingerprint)
		body = binary.AppendUvarint(body, fm.RowCount)
		body = appendString(body, fm.Path)
	}

	// Index metas
	body = binary.AppendUvarint(body, uint64(len(m.Indexes)))
	for _, im := range m.Indexes {
		body = appendString(body, im.Name)
		body = append(body, byte(im.Definition.Kind))
		switch im.Definition.Kind {
		case index.KindBTree:
			body = binary.AppendUvarint(body, uint64(len(im.Definition.BTree)))
			for _, e := range im.Definition.BTree {
				body = binary.AppendUvarint(body, uint64(e.Ordinal))
				if e.Descending {
					body = append(body, 1)
				} else {
					body = append(body, 0)
				}
			}
		case index.KindBitmap:
			body = binary.AppendUvarint(body, uint64(len(im.Definition.Bitmap)))
			for _, ord := range im.Definition.Bitmap {
				body = binary.AppendUvarint(body, uint64(ord))
			}
		}
	}

	out := make([]byte, 0, 5+snappy.MaxEncodedLen(len(body)))
	out = append(out, sidecarMagic[:]...)
	out = append(out, sidecarVersion)
	return append(out, snappy.Encode(nil, body)...)
}

// Decode parses sidecar bytes back into a Metadata object. Any format
// mismatch or truncated record fails with CORRUPT_METADATA.
func Decode(data []byte) (*Metadata, error) {
	m, err := decode(data)
	if err != nil {
		return nil, errors.NewMetadataError(errors.CodeCorruptMetadata,
			"failed to parse metadata sidecar", err)
	}
	return m, nil
}

func decode(data []byte) (*Metadata, error) {
	if len(data) < 5 {
		return nil, errTruncated
	}
	if [4]byte(data[:4]) != sidecarMagic {
		return nil, fmt.Errorf("bad magic %x", data[:4])
	}
	if data[4] != sidecarVersion {
		return nil, fmt.Errorf("unsupported sidecar version %d", data[4])
	}

	body, err := snappy.Decode(nil, data[5:])
	if err != nil {
		return nil, err
	}

	r := &reader{data: body}
	m := &Metadata{}

	// Schema
	colCount, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < colCount; i++ {
		name, err := r.str()
		if err != nil {
			return nil, err
		}
		tb, err := r.byte()
		if err != nil {
			return nil, err
		}
		m.Schema.Columns = append(m.Schema.Columns, types.ColumnDef{Name: name, Type: types.DataType(tb)})
	}

	// Reader class name
	if m.ReaderClassName, err = r.str(); err != nil {
		return nil, err
	}

	// File metas
	fileCount, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < fileCount; i++ {
		var fm FileMeta
		if fm.Fingerprint, err = r.bytes(); err != nil {
			return nil, err
		}
		if fm.RowCount, err = r.uvarint(); err != nil {
			return nil, err
		}
		if fm.Path, err = r.str(); err != nil {
			return nil, err
		}
		m.Files = append(m.Files, fm)
	}

	// Index metas
	idxCount, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < idxCount; i++ {
		var im IndexMeta
		if im.Name, err = r.str(); err != nil {
			return nil, err
		}
		kindByte, err := r.byte()
		if err != nil {
			return nil, err
		}
		im.Definition.Kind = index.Kind(kindByte)

		entryCount, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		switch im.Definition.Kind {
		case index.KindBTree:
			for j := uint64(0); j < entryCount; j++ {
				ord, err := r.uvarint()
				if err != nil {
					return nil, err
				}
				dir, err := r.byte()
				if err != nil {
					return nil, err
				}
				im.Definition.BTree = append(im.Definition.BTree,
					index.BTreeEntry{Ordinal: uint32(ord), Descending: dir != 0})
			}
		case index.KindBitmap:
			for j := uint64(0); j < entryCount; j++ {
				ord, err := r.uvarint()
				if err != nil {
					return nil, err
				}
				im.Definition.Bitmap = append(im.Definition.Bitmap, uint32(ord))
			}
		default:
			return nil, fmt.Errorf("unknown index kind tag %d", kindByte)
		}
		m.Indexes = append(m.Indexes, im)
	}

	if r.pos != len(r.data) {
		return nil, fmt.Errorf("%d trailing bytes after metadata body", len(r.data)-r.pos)
	}
	return m, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func appendBytes(buf, b []byte) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(b)))
	return append(buf, b...)
}

// reader walks the decoded body with bounds checks on every read.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.data[r.pos:])
	if n <= 0 {
		return 0, errTruncated
	}
	r.pos += n
	return v, nil
}

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, errTruncated
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(r.data)-r.pos) {
		return nil, errTruncated
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return out, nil
}

func (r *reader) str() (string, error) {
	b, err := r.bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
