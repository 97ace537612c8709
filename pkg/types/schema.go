// Package types provides core data types for Tessera: column schemas,
// typed values, and index key tuples.
package types

// DataType identifies the storage type of a column.
type DataType uint8

const (
	TypeInvalid DataType = iota
	TypeInt64
	TypeFloat64
	TypeString
	TypeBytes
	TypeBool
)

// String returns the display label for the data type.
func (t DataType) String() string {
	switch t {
	case TypeInt64:
		return "INT64"
	case TypeFloat64:
		return "FLOAT64"
	case TypeString:
		return "STRING"
	case TypeBytes:
		return "BYTES"
	case TypeBool:
		return "BOOL"
	default:
		return "INVALID"
	}
}

// ParseDataType parses a display label back into a DataType.
// Returns TypeInvalid for unknown labels.
func ParseDataType(s string) DataType {
	switch s {
	case "INT64":
		return TypeInt64
	case "FLOAT64":
		return TypeFloat64
	case "STRING":
		return TypeString
	case "BYTES":
		return TypeBytes
	case "BOOL":
		return TypeBool
	default:
		return TypeInvalid
	}
}

// ColumnDef defines a single column: a name and its data type.
type ColumnDef struct {
	Name string
	Type DataType
}

// Schema is an ordered list of columns. Column ordinals used by index
// definitions reference positions in this list.
type Schema struct {
	Columns []ColumnDef
}

// Ordinal returns the position of the named column, or -1 if absent.
func (s Schema) Ordinal(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Project returns the sub-schema consisting of the given ordinals, in order.
// Ordinals must be valid positions in the schema.
func (s Schema) Project(ordinals []int) Schema {
	cols := make([]ColumnDef, len(ordinals))
	for i, ord := range ordinals {
		cols[i] = s.Columns[ord]
	}
	return Schema{Columns: cols}
}

// Equal reports whether two schemas have identical columns in identical order.
func (s Schema) Equal(other Schema) bool {
	if len(s.Columns) != len(other.Columns) {
		return false
	}
	for i, c := range s.Columns {
		if c != other.Columns[i] {
			return false
		}
	}
	return true
}
