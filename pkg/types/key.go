package types

// Key is an ordered tuple of values: one value per index key column.
type Key []Value

// Row is a projected data row, one value per projected column.
type Row []Value

// Compare orders two keys column by column over the shorter of the two.
// An equal prefix compares as 0, which gives query bounds over a leading
// subset of the key columns conservative prefix semantics.
func (k Key) Compare(other Key) int {
	n := len(k)
	if len(other) < n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		if c := k[i].Compare(other[i]); c != 0 {
			return c
		}
	}
	return 0
}

// AppendEncode appends the concatenated value encodings of the key.
func (k Key) AppendEncode(buf []byte) []byte {
	for _, v := range k {
		buf = v.AppendEncode(buf)
	}
	return buf
}

// Clone returns a deep copy of the key.
func (k Key) Clone() Key {
	if k == nil {
		return nil
	}
	cp := make(Key, len(k))
	copy(cp, k)
	for i, v := range k {
		if v.Type == TypeBytes && v.Bytes != nil {
			raw := make([]byte, len(v.Bytes))
			copy(raw, v.Bytes)
			cp[i].Bytes = raw
		}
	}
	return cp
}

// DecodeKey decodes width values starting at data[offset], returning the
// key and the number of bytes consumed.
func DecodeKey(data []byte, offset, width int) (Key, int, error) {
	key := make(Key, 0, width)
	pos := offset
	for i := 0; i < width; i++ {
		v, n, err := DecodeValue(data, pos)
		if err != nil {
			return nil, 0, err
		}
		key = append(key, v)
		pos += n
	}
	return key, pos - offset, nil
}
