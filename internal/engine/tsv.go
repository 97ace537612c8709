package engine

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tesseradb/tessera/internal/build"
	"github.com/tesseradb/tessera/internal/errors"
	"github.com/tesseradb/tessera/pkg/types"
)

// TSVReaderName is the reader class name recorded in partition metadata
// for tab-separated data files.
const TSVReaderName = "tsv"

func init() {
	RegisterReader(TSVReaderName, func(schema types.Schema) build.Reader {
		return &tsvReader{schema: schema}
	})
}

// tsvReader decodes tab-separated data files: one row per line, one
// field per schema column, values rendered with strconv formatting.
// Empty trailing lines are ignored.
type tsvReader struct {
	schema types.Schema
}

func (r *tsvReader) ReadRows(ctx context.Context, content []byte, ordinals []int) (build.RowIter, error) {
	for _, ord := range ordinals {
		if ord < 0 || ord >= len(r.schema.Columns) {
			return nil, errors.NewValidationError(errors.CodeColumnNotFound,
				fmt.Sprintf("ordinal %d out of range for schema of %d columns", ord, len(r.schema.Columns)))
		}
	}
	return &tsvIter{
		schema:   r.schema,
		ordinals: ordinals,
		scanner:  bufio.NewScanner(bytes.NewReader(content)),
	}, nil
}

type tsvIter struct {
	schema   types.Schema
	ordinals []int
	scanner  *bufio.Scanner
	line     int
}

func (it *tsvIter) Next() (types.Row, bool, error) {
	for it.scanner.Scan() {
		it.line++
		text := it.scanner.Text()
		if text == "" {
			continue
		}
		row, err := it.parseLine(text)
		if err != nil {
			return nil, false, err
		}
		return row, true, nil
	}
	if err := it.scanner.Err(); err != nil {
		return nil, false, errors.NewStorageError(errors.CodeReadFailed, "scanning tsv content", err)
	}
	return nil, false, nil
}

func (it *tsvIter) parseLine(text string) (types.Row, error) {
	fields := strings.Split(text, "\t")
	if len(fields) != len(it.schema.Columns) {
		return nil, errors.NewValidationError(errors.CodeUnsupportedRelation,
			fmt.Sprintf("line %d: expected %d fields, got %d", it.line, len(it.schema.Columns), len(fields)))
	}

	row := make(types.Row, 0, len(it.ordinals))
	for _, ord := range it.ordinals {
		v, err := parseField(fields[ord], it.schema.Columns[ord].Type)
		if err != nil {
			return nil, errors.NewValidationError(errors.CodeUnsupportedRelation,
				fmt.Sprintf("line %d, column %s: %v", it.line, it.schema.Columns[ord].Name, err))
		}
		row = append(row, v)
	}
	return row, nil
}

func parseField(field string, t types.DataType) (types.Value, error) {
	switch t {
	case types.TypeInt64:
		i, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return types.Value{}, err
		}
		return types.Int64Value(i), nil
	case types.TypeFloat64:
		f, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return types.Value{}, err
		}
		return types.Float64Value(f), nil
	case types.TypeString:
		return types.StringValue(field), nil
	case types.TypeBytes:
		return types.BytesValue([]byte(field)), nil
	case types.TypeBool:
		b, err := strconv.ParseBool(field)
		if err != nil {
			return types.Value{}, err
		}
		return types.BoolValue(b), nil
	default:
		return types.Value{}, fmt.Errorf("unsupported data type %v", t)
	}
}
