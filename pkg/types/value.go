package types

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Value is a single typed column value. Exactly one payload field is
// meaningful, selected by Type. Bool values are stored in I64 as 0/1.
type Value struct {
	Type  DataType
	I64   int64
	F64   float64
	Str   string
	Bytes []byte
}

// ErrTruncatedValue is returned when a value encoding ends mid-record.
var ErrTruncatedValue = errors.New("types: truncated value encoding")

// Int64Value constructs an INT64 value.
func Int64Value(v int64) Value { return Value{Type: TypeInt64, I64: v} }

// Float64Value constructs a FLOAT64 value.
func Float64Value(v float64) Value { return Value{Type: TypeFloat64, F64: v} }

// StringValue constructs a STRING value.
func StringValue(v string) Value { return Value{Type: TypeString, Str: v} }

// BytesValue constructs a BYTES value.
func BytesValue(v []byte) Value { return Value{Type: TypeBytes, Bytes: v} }

// BoolValue constructs a BOOL value.
func BoolValue(v bool) Value {
	val := Value{Type: TypeBool}
	if v {
		val.I64 = 1
	}
	return val
}

// Compare orders two values using the native ordering of their type:
// numeric order for INT64/FLOAT64, lexicographic for STRING/BYTES, and
// false < true for BOOL. Values of different types order by type tag so
// the comparison stays total.
func (v Value) Compare(other Value) int {
	if v.Type != other.Type {
		if v.Type < other.Type {
			return -1
		}
		return 1
	}
	switch v.Type {
	case TypeInt64, TypeBool:
		switch {
		case v.I64 < other.I64:
			return -1
		case v.I64 > other.I64:
			return 1
		}
		return 0
	case TypeFloat64:
		switch {
		case v.F64 < other.F64:
			return -1
		case v.F64 > other.F64:
			return 1
		}
		return 0
	case TypeString:
		switch {
		case v.Str < other.Str:
			return -1
		case v.Str > other.Str:
			return 1
		}
		return 0
	case TypeBytes:
		return bytes.Compare(v.Bytes, other.Bytes)
	}
	return 0
}

// String renders the value for display and logs.
func (v Value) String() string {
	switch v.Type {
	case TypeInt64:
		return fmt.Sprintf("%d", v.I64)
	case TypeFloat64:
		return fmt.Sprintf("%g", v.F64)
	case TypeString:
		return v.Str
	case TypeBytes:
		return fmt.Sprintf("%x", v.Bytes)
	case TypeBool:
		if v.I64 != 0 {
			return "true"
		}
		return "false"
	}
	return "<invalid>"
}

// AppendEncode appends the binary encoding of the value: a one-byte type
// tag followed by a fixed 8-byte payload for numeric types, one byte for
// BOOL, or a uvarint length prefix plus raw bytes for STRING/BYTES.
func (v Value) AppendEncode(buf []byte) []byte {
	buf = append(buf, byte(v.Type))
	switch v.Type {
	case TypeInt64:
		buf = binary.LittleEndian.AppendUint64(buf, uint64(v.I64))
	case TypeFloat64:
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.F64))
	case TypeString:
		buf = binary.AppendUvarint(buf, uint64(len(v.Str)))
		buf = append(buf, v.Str...)
	case TypeBytes:
		buf = binary.AppendUvarint(buf, uint64(len(v.Bytes)))
		buf = append(buf, v.Bytes...)
	case TypeBool:
		buf = append(buf, byte(v.I64&1))
	}
	return buf
}

// DecodeValue decodes one value starting at data[offset] and returns the
// value together with the number of bytes consumed.
func DecodeValue(data []byte, offset int) (Value, int, error) {
	if offset >= len(data) {
		return Value{}, 0, ErrTruncatedValue
	}
	t := DataType(data[offset])
	pos := offset + 1
	switch t {
	case TypeInt64:
		if pos+8 > len(data) {
			return Value{}, 0, ErrTruncatedValue
		}
		v := int64(binary.LittleEndian.Uint64(data[pos : pos+8]))
		return Int64Value(v), pos + 8 - offset, nil
	case TypeFloat64:
		if pos+8 > len(data) {
			return Value{}, 0, ErrTruncatedValue
		}
		v := math.Float64frombits(binary.LittleEndian.Uint64(data[pos : pos+8]))
		return Float64Value(v), pos + 8 - offset, nil
	case TypeString:
		n, w := binary.Uvarint(data[pos:])
		if w <= 0 || n > uint64(len(data)-pos-w) {
			return Value{}, 0, ErrTruncatedValue
		}
		pos += w
		return StringValue(string(data[pos : pos+int(n)])), pos + int(n) - offset, nil
	case TypeBytes:
		n, w := binary.Uvarint(data[pos:])
		if w <= 0 || n > uint64(len(data)-pos-w) {
			return Value{}, 0, ErrTruncatedValue
		}
		pos += w
		raw := make([]byte, n)
		copy(raw, data[pos:pos+int(n)])
		return BytesValue(raw), pos + int(n) - offset, nil
	case TypeBool:
		if pos >= len(data) {
			return Value{}, 0, ErrTruncatedValue
		}
		return BoolValue(data[pos] != 0), 2, nil
	default:
		return Value{}, 0, fmt.Errorf("types: unknown value type tag %d", t)
	}
}
