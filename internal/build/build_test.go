package build

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/tesseradb/tessera/internal/errors"
	"github.com/tesseradb/tessera/internal/index"
	"github.com/tesseradb/tessera/internal/stats"
	"github.com/tesseradb/tessera/internal/storage"
	"github.com/tesseradb/tessera/pkg/types"
)

// serialEngine runs tasks one at a time in order. Good enough for unit
// tests; parallelism is exercised in the engine package.
type serialEngine struct{}

func (serialEngine) Run(ctx context.Context, tasks []Task, fn func(ctx context.Context, task Task) ([]Result, error)) ([]Result, error) {
	var all []Result
	for _, t := range tasks {
		rs, err := fn(ctx, t)
		if err != nil {
			return nil, err
		}
		all = append(all, rs...)
	}
	return all, nil
}

// lineReader parses content as one int64 per line; failLine, if set,
// makes any file containing that value fail mid-read.
type lineReader struct {
	failOn string
}

func (r *lineReader) ReadRows(ctx context.Context, content []byte, ordinals []int) (RowIter, error) {
	lines := strings.Fields(string(content))
	return &lineIter{lines: lines, failOn: r.failOn}, nil
}

type lineIter struct {
	lines  []string
	pos    int
	failOn string
}

func (it *lineIter) Next() (types.Row, bool, error) {
	if it.pos >= len(it.lines) {
		return nil, false, nil
	}
	line := it.lines[it.pos]
	it.pos++
	if it.failOn != "" && line == it.failOn {
		return nil, false, errors.NewStorageError(errors.CodeReadFailed, "injected failure", nil)
	}
	v, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		return nil, false, err
	}
	return types.Row{types.Int64Value(v)}, true, nil
}

func testSchema() types.Schema {
	return types.Schema{Columns: []types.ColumnDef{{Name: "id", Type: types.TypeInt64}}}
}

func testOptions() Options {
	return Options{
		IndexName:  "idx_id",
		Schema:     testSchema(),
		Ordinals:   []int{0},
		StatsKinds: []string{stats.MinMaxID},
	}
}

func newTestJob(t *testing.T, fs storage.FileSystem, reader Reader) *Job {
	t.Helper()
	job, err := NewJob(fs, reader, serialEngine{}, testOptions())
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	return job
}

func writeDataFile(t *testing.T, fs storage.FileSystem, path, content string) {
	t.Helper()
	if err := fs.WriteFileAtomic(context.Background(), path, []byte(content), false); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestJobBuildAndCommit(t *testing.T) {
	ctx := context.Background()
	fs, err := storage.NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS failed: %v", err)
	}
	writeDataFile(t, fs, "part0/a.dat", "5\n3\n9\n")
	writeDataFile(t, fs, "part0/b.dat", "10\n7\n")

	job := newTestJob(t, fs, &lineReader{})
	tasks := []Task{{Dir: "part0", Files: []string{"a.dat", "b.dat"}}}
	if err := job.DriverSetup(ctx, tasks); err != nil {
		t.Fatalf("DriverSetup failed: %v", err)
	}
	results, err := job.Run(ctx, tasks)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if job.State() != StateCommitted {
		t.Errorf("expected state committed, got %v", job.State())
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	byFile := map[string]Result{}
	for _, r := range results {
		byFile[r.DataFile] = r
		if r.Parent != "part0" {
			t.Errorf("result parent = %q, want part0", r.Parent)
		}
		if len(r.Fingerprint) == 0 {
			t.Errorf("result for %s has empty fingerprint", r.DataFile)
		}
	}
	if byFile["a.dat"].RowCount != 3 || byFile["b.dat"].RowCount != 2 {
		t.Errorf("unexpected row counts: %+v", byFile)
	}

	// Segments are at their final paths and decode to the observed bounds.
	segData, err := fs.ReadFile(ctx, "part0/"+index.SegmentFileName("a.dat", "idx_id"))
	if err != nil {
		t.Fatalf("reading committed segment: %v", err)
	}
	seg, err := index.DecodeSegment(segData)
	if err != nil {
		t.Fatalf("decoding segment: %v", err)
	}
	if seg.KeyCount != 3 {
		t.Errorf("segment key count = %d, want 3", seg.KeyCount)
	}
	if got := seg.Prune([]stats.Interval{stats.Point(types.Key{types.Int64Value(100)})}); got != stats.Skip {
		t.Errorf("expected out-of-range point to prune, got %v", got)
	}
	if got := seg.Prune([]stats.Interval{stats.Point(types.Key{types.Int64Value(5)})}); got != stats.UseIndex {
		t.Errorf("expected in-range point to scan, got %v", got)
	}

	// The staging area is gone after commit.
	names, err := fs.ListFiles(ctx, "part0/_build/"+job.ID())
	if err != nil {
		t.Fatalf("listing staging area: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("staging files left after commit: %v", names)
	}
}

func TestJobAbortOnTaskFailure(t *testing.T) {
	ctx := context.Background()
	fs, err := storage.NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS failed: %v", err)
	}
	writeDataFile(t, fs, "part0/a.dat", "1\n2\n")
	writeDataFile(t, fs, "part0/b.dat", "3\n666\n")

	before, err := fs.ListFiles(ctx, "part0")
	if err != nil {
		t.Fatalf("listing: %v", err)
	}

	job := newTestJob(t, fs, &lineReader{failOn: "666"})
	tasks := []Task{{Dir: "part0", Files: []string{"a.dat", "b.dat"}}}
	if err := job.DriverSetup(ctx, tasks); err != nil {
		t.Fatalf("DriverSetup failed: %v", err)
	}
	_, err = job.Run(ctx, tasks)
	if err == nil {
		t.Fatal("expected Run to fail")
	}
	if !errors.HasCode(err, errors.CodeJobAborted) {
		t.Errorf("expected JOB_ABORTED, got %v", err)
	}
	if job.State() != StateAborted {
		t.Errorf("expected state aborted, got %v", job.State())
	}

	// No segment reached a final path; the listing is unchanged.
	after, err := fs.ListFiles(ctx, "part0")
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(after) != len(before) {
		t.Errorf("directory changed after aborted build: before=%v after=%v", before, after)
	}
	for _, name := range after {
		if index.IsSegmentFile(name) {
			t.Errorf("segment %s visible after abort", name)
		}
	}
}

func TestJobAppendSkipsIndexedFiles(t *testing.T) {
	ctx := context.Background()
	fs, err := storage.NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS failed: %v", err)
	}
	writeDataFile(t, fs, "part0/a.dat", "1\n")
	writeDataFile(t, fs, "part0/b.dat", "2\n")

	opts := testOptions()
	opts.Append = true
	// a.dat already has a committed segment from a prior build.
	seed := index.EncodeSegment(0, nil, nil)
	if err := fs.WriteFileAtomic(ctx, "part0/"+index.SegmentFileName("a.dat", "idx_id"), seed, false); err != nil {
		t.Fatalf("seeding segment: %v", err)
	}

	job, err := NewJob(fs, &lineReader{}, serialEngine{}, opts)
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	tasks := []Task{{Dir: "part0", Files: []string{"a.dat", "b.dat"}}}
	if err := job.DriverSetup(ctx, tasks); err != nil {
		t.Fatalf("DriverSetup failed: %v", err)
	}
	results, err := job.Run(ctx, tasks)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 1 || results[0].DataFile != "b.dat" {
		t.Fatalf("expected one result for b.dat, got %+v", results)
	}

	// The seeded segment was not rewritten.
	got, err := fs.ReadFile(ctx, "part0/"+index.SegmentFileName("a.dat", "idx_id"))
	if err != nil {
		t.Fatalf("reading seeded segment: %v", err)
	}
	if !bytes.Equal(got, seed) {
		t.Error("append build rewrote an existing segment")
	}
}

func TestJobStateTransitions(t *testing.T) {
	fs, err := storage.NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS failed: %v", err)
	}
	job := newTestJob(t, fs, &lineReader{})

	// Run before DriverSetup is rejected.
	if _, err := job.Run(context.Background(), nil); !errors.HasCode(err, errors.CodeInvalidState) {
		t.Errorf("expected INVALID_STATE, got %v", err)
	}
	// Abort before Running is rejected too.
	if err := job.AbortJob(context.Background()); !errors.HasCode(err, errors.CodeInvalidState) {
		t.Errorf("expected INVALID_STATE, got %v", err)
	}
}

func TestDriverSetupMissingFile(t *testing.T) {
	fs, err := storage.NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS failed: %v", err)
	}
	job := newTestJob(t, fs, &lineReader{})
	err = job.DriverSetup(context.Background(), []Task{{Dir: "part0", Files: []string{"missing.dat"}}})
	if !errors.HasCode(err, errors.CodePathNotFound) {
		t.Errorf("expected PATH_NOT_FOUND, got %v", err)
	}
}

func TestNewJobValidation(t *testing.T) {
	fs, err := storage.NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS failed: %v", err)
	}

	opts := testOptions()
	opts.Ordinals = []int{5}
	if _, err := NewJob(fs, &lineReader{}, serialEngine{}, opts); !errors.HasCode(err, errors.CodeColumnNotFound) {
		t.Errorf("expected COLUMN_NOT_FOUND for out-of-range ordinal, got %v", err)
	}

	opts = testOptions()
	opts.IndexName = ""
	if _, err := NewJob(fs, &lineReader{}, serialEngine{}, opts); err == nil {
		t.Error("expected error for empty index name")
	}
}

func TestGroupByParent(t *testing.T) {
	grouped := GroupByParent([]Result{
		{DataFile: "a", Parent: "p1"},
		{DataFile: "b", Parent: "p2"},
		{DataFile: "c", Parent: "p1"},
	})
	if len(grouped) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(grouped))
	}
	if len(grouped["p1"]) != 2 || len(grouped["p2"]) != 1 {
		t.Errorf("unexpected grouping: %v", grouped)
	}
}
