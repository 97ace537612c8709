package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tesseradb/tessera/internal/errors"
	"github.com/tesseradb/tessera/internal/storage"
	"github.com/tesseradb/tessera/pkg/types"
)

func newTestCatalog(t *testing.T) (*SQLiteCatalog, storage.FileSystem) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewLocalFS(dir)
	if err != nil {
		t.Fatalf("NewLocalFS failed: %v", err)
	}
	c, err := NewCatalog(filepath.Join(dir, "catalog.db"), fs)
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, fs
}

func eventsSchema() types.Schema {
	return types.Schema{Columns: []types.ColumnDef{
		{Name: "user_id", Type: types.TypeInt64},
		{Name: "event", Type: types.TypeString},
	}}
}

func TestRegisterAndLoadTable(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	rec := &TableRecord{Name: "events", ReaderClassName: "tsv", Schema: eventsSchema()}
	if err := c.RegisterTable(ctx, rec); err != nil {
		t.Fatalf("RegisterTable failed: %v", err)
	}

	got, err := c.Table(ctx, "events")
	if err != nil {
		t.Fatalf("Table failed: %v", err)
	}
	if got.Name != "events" || got.ReaderClassName != "tsv" {
		t.Errorf("unexpected record: %+v", got)
	}
	if !got.Schema.Equal(eventsSchema()) {
		t.Errorf("schema did not round-trip: %+v", got.Schema)
	}
}

func TestTableNotFound(t *testing.T) {
	c, _ := newTestCatalog(t)
	_, err := c.Table(context.Background(), "nope")
	if !errors.HasCode(err, errors.CodeTableNotFound) {
		t.Errorf("expected TABLE_NOT_FOUND, got %v", err)
	}
}

func TestPartitionDirsSortedAndDeduplicated(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	for _, dir := range []string{"p2", "p1", "p2"} {
		if err := c.AddPartition(ctx, "events", dir); err != nil {
			t.Fatalf("AddPartition failed: %v", err)
		}
	}
	dirs, err := c.PartitionDirs(ctx, "events")
	if err != nil {
		t.Fatalf("PartitionDirs failed: %v", err)
	}
	if len(dirs) != 2 || dirs[0] != "p1" || dirs[1] != "p2" {
		t.Errorf("unexpected dirs: %v", dirs)
	}
}

func TestListingCacheAndRefresh(t *testing.T) {
	c, fs := newTestCatalog(t)
	ctx := context.Background()

	write := func(path string) {
		if err := fs.WriteFileAtomic(ctx, path, []byte("1\tx\n"), false); err != nil {
			t.Fatalf("writing %s: %v", path, err)
		}
	}
	write("p1/a.tsv")
	write("p1/_tessera.meta")
	write("p1/a.tsv.idx.tsi")
	if err := c.AddPartition(ctx, "events", "p1"); err != nil {
		t.Fatalf("AddPartition failed: %v", err)
	}

	// Cold cache falls through to a live scan and hides non-data files.
	files, err := c.DataFiles(ctx, "events", "p1")
	if err != nil {
		t.Fatalf("DataFiles failed: %v", err)
	}
	if len(files) != 1 || files[0] != "a.tsv" {
		t.Errorf("expected only a.tsv, got %v", files)
	}

	if err := c.RefreshListing(ctx, "events"); err != nil {
		t.Fatalf("RefreshListing failed: %v", err)
	}
	write("p1/b.tsv")

	// Cached listing does not see b.tsv until the next refresh.
	files, err = c.DataFiles(ctx, "events", "p1")
	if err != nil {
		t.Fatalf("DataFiles failed: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("expected cached listing of 1 file, got %v", files)
	}

	if err := c.RefreshListing(ctx, "events"); err != nil {
		t.Fatalf("RefreshListing failed: %v", err)
	}
	files, err = c.DataFiles(ctx, "events", "p1")
	if err != nil {
		t.Fatalf("DataFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("expected refreshed listing of 2 files, got %v", files)
	}
}
