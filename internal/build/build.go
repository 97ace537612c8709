// Package build orchestrates distributed index builds: a driver-side
// coordinator owns job state and the commit/abort protocol, while worker
// tasks are pure functions from a partition's rows to a result list.
// Workers receive only immutable inputs and return only serializable
// outputs; they never touch coordinator state.
package build

import (
	"context"

	"github.com/tesseradb/tessera/pkg/types"
)

// Result is produced per data file by a build task. Parent is the
// partition directory path, used to group results back to the owning
// partition metadata after all tasks return.
type Result struct {
	Fingerprint []byte
	RowCount    uint64
	DataFile    string
	Parent      string
}

// Task assigns one partition directory's data files to a worker
// invocation. Tasks are disjoint: no data file appears in two tasks.
type Task struct {
	Dir   string
	Files []string
}

// RowIter yields projected rows of one data file in storage order.
type RowIter interface {
	// Next returns the next row, or ok=false at end of input.
	Next() (row types.Row, ok bool, err error)
}

// Reader decodes a data file's content into projected rows. The reader
// to use is identified by the partition metadata's readerClassName and
// resolved through an explicit registry before the job starts.
type Reader interface {
	ReadRows(ctx context.Context, content []byte, ordinals []int) (RowIter, error)
}

// Engine is the distributed execution collaborator: it runs the given
// per-partition function for every task, in arbitrary order and
// parallelism, and returns the concatenated results once all tasks have
// finished. The first task error fails the whole run.
type Engine interface {
	Run(ctx context.Context, tasks []Task, fn func(ctx context.Context, task Task) ([]Result, error)) ([]Result, error)
}

// GroupByParent buckets results by their owning partition directory.
func GroupByParent(results []Result) map[string][]Result {
	grouped := make(map[string][]Result)
	for _, r := range results {
		grouped[r.Parent] = append(grouped[r.Parent], r)
	}
	return grouped
}
