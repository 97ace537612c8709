package command

import (
	"context"
	"fmt"
	"sort"

	"github.com/tesseradb/tessera/internal/index"
	"github.com/tesseradb/tessera/internal/session"
)

// IndexRow is one line of ShowIndex output: one key column of one index.
type IndexRow struct {
	IndexName  string
	ColumnName string
	// Position is the column's ordinal position within the index key,
	// starting at 0.
	Position int
	// Direction is ASC or DESC for B-tree entries, empty for bitmap.
	Direction string
	Kind      string
}

// ShowIndex aggregates one definition per unique index name across all
// partitions and projects it to one row per (index, key column), in
// index-name order. Read-only.
func ShowIndex(ctx context.Context, sess *session.Session, rel *Relation) ([]IndexRow, error) {
	states, err := loadPartitions(ctx, sess, rel)
	if err != nil {
		return nil, err
	}

	defs := map[string]index.Definition{}
	for _, state := range states {
		if state.md == nil {
			continue
		}
		for _, im := range state.md.Indexes {
			if _, ok := defs[im.Name]; !ok {
				defs[im.Name] = im.Definition
			}
		}
	}
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	var rows []IndexRow
	for _, name := range names {
		def := defs[name]
		switch def.Kind {
		case index.KindBTree:
			for pos, entry := range def.BTree {
				direction := "ASC"
				if entry.Descending {
					direction = "DESC"
				}
				rows = append(rows, IndexRow{
					IndexName:  name,
					ColumnName: columnName(rel, int(entry.Ordinal)),
					Position:   pos,
					Direction:  direction,
					Kind:       def.Kind.String(),
				})
			}
		case index.KindBitmap:
			for pos, ord := range def.Bitmap {
				rows = append(rows, IndexRow{
					IndexName:  name,
					ColumnName: columnName(rel, int(ord)),
					Position:   pos,
					Kind:       def.Kind.String(),
				})
			}
		}
	}
	return rows, nil
}

func columnName(rel *Relation, ordinal int) string {
	if ordinal >= 0 && ordinal < len(rel.Schema.Columns) {
		return rel.Schema.Columns[ordinal].Name
	}
	return fmt.Sprintf("#%d", ordinal)
}
