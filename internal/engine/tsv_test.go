package engine

import (
	"context"
	"testing"

	"github.com/tesseradb/tessera/internal/errors"
	"github.com/tesseradb/tessera/pkg/types"
)

func tsvSchema() types.Schema {
	return types.Schema{Columns: []types.ColumnDef{
		{Name: "id", Type: types.TypeInt64},
		{Name: "name", Type: types.TypeString},
		{Name: "score", Type: types.TypeFloat64},
	}}
}

func collectRows(t *testing.T, content string, ordinals []int) []types.Row {
	t.Helper()
	reader, err := LookupReader(TSVReaderName, tsvSchema())
	if err != nil {
		t.Fatalf("LookupReader failed: %v", err)
	}
	it, err := reader.ReadRows(context.Background(), []byte(content), ordinals)
	if err != nil {
		t.Fatalf("ReadRows failed: %v", err)
	}
	var rows []types.Row
	for {
		row, ok, err := it.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if !ok {
			return rows
		}
		rows = append(rows, row)
	}
}

func TestTSVReaderProjectsOrdinals(t *testing.T) {
	content := "1\talice\t3.5\n2\tbob\t1.25\n"
	rows := collectRows(t, content, []int{2, 0})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0].F64 != 3.5 || rows[0][1].I64 != 1 {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
	if rows[1][0].F64 != 1.25 || rows[1][1].I64 != 2 {
		t.Errorf("unexpected second row: %+v", rows[1])
	}
}

func TestTSVReaderSkipsBlankLines(t *testing.T) {
	rows := collectRows(t, "1\ta\t0.5\n\n2\tb\t0.5\n\n", []int{0})
	if len(rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(rows))
	}
}

func TestTSVReaderFieldCountMismatch(t *testing.T) {
	reader, err := LookupReader(TSVReaderName, tsvSchema())
	if err != nil {
		t.Fatalf("LookupReader failed: %v", err)
	}
	it, err := reader.ReadRows(context.Background(), []byte("1\tonly-two\n"), []int{0})
	if err != nil {
		t.Fatalf("ReadRows failed: %v", err)
	}
	if _, _, err := it.Next(); err == nil {
		t.Error("expected error for short line")
	}
}

func TestTSVReaderRejectsBadOrdinal(t *testing.T) {
	reader, err := LookupReader(TSVReaderName, tsvSchema())
	if err != nil {
		t.Fatalf("LookupReader failed: %v", err)
	}
	_, err = reader.ReadRows(context.Background(), []byte(""), []int{7})
	if !errors.HasCode(err, errors.CodeColumnNotFound) {
		t.Errorf("expected COLUMN_NOT_FOUND, got %v", err)
	}
}

func TestTSVReaderBadInteger(t *testing.T) {
	reader, err := LookupReader(TSVReaderName, tsvSchema())
	if err != nil {
		t.Fatalf("LookupReader failed: %v", err)
	}
	it, err := reader.ReadRows(context.Background(), []byte("abc\tx\t1.0\n"), []int{0})
	if err != nil {
		t.Fatalf("ReadRows failed: %v", err)
	}
	if _, _, err := it.Next(); err == nil {
		t.Error("expected parse error for non-numeric id")
	}
}
