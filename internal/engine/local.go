// Package engine provides the row-producing execution side of index
// builds: a local parallel executor and the registry of data-file
// readers keyed by reader class name.
package engine

import (
	"context"
	"runtime"
	"sync"

	"github.com/tesseradb/tessera/internal/build"
)

// LocalEngine runs build tasks on the local process with bounded
// parallelism. It satisfies the driver's contract: tasks run in
// arbitrary order, results are concatenated after all tasks finish, and
// the first task error fails the run.
type LocalEngine struct {
	parallelism int
}

// NewLocalEngine creates an engine running at most parallelism tasks at
// once. parallelism <= 0 selects GOMAXPROCS.
func NewLocalEngine(parallelism int) *LocalEngine {
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	return &LocalEngine{parallelism: parallelism}
}

// Run dispatches every task and waits for all of them. Each slot in the
// results/errors slices is owned by exactly one goroutine, so no mutex
// is needed.
func (e *LocalEngine) Run(ctx context.Context, tasks []build.Task, fn func(ctx context.Context, task build.Task) ([]build.Result, error)) ([]build.Result, error) {
	taskResults := make([][]build.Result, len(tasks))
	taskErrs := make([]error, len(tasks))

	sem := make(chan struct{}, e.parallelism)
	var wg sync.WaitGroup
	for idx, task := range tasks {
		wg.Add(1)
		go func(i int, t build.Task) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				taskErrs[i] = err
				return
			}
			taskResults[i], taskErrs[i] = fn(ctx, t)
		}(idx, task)
	}
	wg.Wait()

	for _, err := range taskErrs {
		if err != nil {
			return nil, err
		}
	}

	var results []build.Result
	for _, rs := range taskResults {
		results = append(results, rs...)
	}
	return results, nil
}
