package build

import (
	"context"
	"fmt"
	"log"
	"path"

	"github.com/google/uuid"
	"github.com/tesseradb/tessera/internal/errors"
	"github.com/tesseradb/tessera/internal/index"
	"github.com/tesseradb/tessera/internal/storage"
	"github.com/tesseradb/tessera/pkg/types"
)

// State tracks where a build job is in its lifecycle. Transitions are
// linear: Created -> DriverSetup -> Running -> Committing -> Committed,
// with Running branching to Aborting -> Aborted on any task failure.
type State int

const (
	StateCreated State = iota
	StateDriverSetup
	StateRunning
	StateCommitting
	StateCommitted
	StateAborting
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateDriverSetup:
		return "driver_setup"
	case StateRunning:
		return "running"
	case StateCommitting:
		return "committing"
	case StateCommitted:
		return "committed"
	case StateAborting:
		return "aborting"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// tempDirName is the per-directory staging area for uncommitted segments.
const tempDirName = "_build"

// Options configures one build job.
type Options struct {
	// IndexName names the index whose segments this job writes.
	IndexName string

	// Schema is the live relation schema; Ordinals select the index key
	// columns within it.
	Schema   types.Schema
	Ordinals []int

	// StatsKinds lists the statistics kinds written into each segment's
	// trailing block, by record id.
	StatsKinds []string

	// Append marks a refresh-style build: existing segments for files
	// already indexed are left alone and only missing ones are written.
	Append bool
}

// Job coordinates one build: it owns the job state, the staging prefix
// for every partition directory involved, and the commit/abort protocol.
// A Job runs only on the driver; tasks see none of its fields.
type Job struct {
	id     string
	fs     storage.FileSystem
	reader Reader
	engine Engine
	opts   Options

	keySchema types.Schema
	state     State
	dirs      []string
}

// NewJob validates the options and creates a job in StateCreated.
func NewJob(fs storage.FileSystem, reader Reader, engine Engine, opts Options) (*Job, error) {
	if opts.IndexName == "" {
		return nil, errors.NewValidationError(errors.CodeInvalidState, "build job requires an index name")
	}
	if len(opts.Ordinals) == 0 {
		return nil, errors.NewValidationError(errors.CodeColumnNotFound, "build job requires at least one key column")
	}
	for _, ord := range opts.Ordinals {
		if ord < 0 || ord >= len(opts.Schema.Columns) {
			return nil, errors.NewValidationError(errors.CodeColumnNotFound,
				fmt.Sprintf("key ordinal %d out of range for schema of %d columns", ord, len(opts.Schema.Columns)))
		}
	}
	if len(opts.StatsKinds) == 0 {
		return nil, errors.NewValidationError(errors.CodeInvalidState, "build job requires at least one statistics kind")
	}
	return &Job{
		id:        uuid.New().String(),
		fs:        fs,
		reader:    reader,
		engine:    engine,
		opts:      opts,
		keySchema: opts.Schema.Project(opts.Ordinals),
		state:     StateCreated,
	}, nil
}

// ID returns the job's unique identifier, used to namespace its staging
// output under each partition directory.
func (j *Job) ID() string { return j.id }

// State returns the job's current lifecycle state.
func (j *Job) State() State { return j.state }

func (j *Job) transition(from, to State) error {
	if j.state != from {
		return errors.New(errors.ErrCategoryBuild, errors.CodeInvalidState,
			fmt.Sprintf("job %s: cannot move %s -> %s", j.id, j.state, to))
	}
	j.state = to
	return nil
}

// tempPrefix is the staging prefix for this job under one partition
// directory. Nothing under it is visible until CommitJob renames it out.
func (j *Job) tempPrefix(dir string) string {
	return path.Join(dir, tempDirName, j.id)
}

func (j *Job) tempSegmentPath(dir, dataFile string) string {
	return path.Join(j.tempPrefix(dir), index.SegmentFileName(dataFile, j.opts.IndexName))
}

func (j *Job) finalSegmentPath(dir, dataFile string) string {
	return path.Join(dir, index.SegmentFileName(dataFile, j.opts.IndexName))
}

// DriverSetup validates the job's inputs against storage before any task
// is dispatched. A failure here means the job never started and there is
// nothing to roll back, so callers must not route it through AbortJob.
func (j *Job) DriverSetup(ctx context.Context, tasks []Task) error {
	if err := j.transition(StateCreated, StateDriverSetup); err != nil {
		return err
	}
	for _, t := range tasks {
		for _, file := range t.Files {
			exists, err := j.fs.Exists(ctx, path.Join(t.Dir, file))
			if err != nil {
				return errors.NewStorageError(errors.CodeReadFailed,
					fmt.Sprintf("checking data file %s", path.Join(t.Dir, file)), err)
			}
			if !exists {
				return errors.NewBuildError(errors.CodePathNotFound,
					fmt.Sprintf("data file %s not found", path.Join(t.Dir, file)), nil)
			}
		}
		j.dirs = append(j.dirs, t.Dir)
	}
	return nil
}

// Run dispatches the tasks through the execution engine, waits for all
// of them, and commits on success. Any task failure aborts the job and
// surfaces as a JOB_ABORTED error wrapping the cause; no segment reaches
// its final path in that case.
func (j *Job) Run(ctx context.Context, tasks []Task) ([]Result, error) {
	if err := j.transition(StateDriverSetup, StateRunning); err != nil {
		return nil, err
	}

	results, err := j.engine.Run(ctx, tasks, j.writeIndexFromRows)
	if err != nil {
		if abortErr := j.AbortJob(ctx); abortErr != nil {
			log.Printf("build: job %s abort after task failure also failed: %v", j.id, abortErr)
		}
		return nil, errors.NewBuildError(errors.CodeJobAborted,
			fmt.Sprintf("index build %s aborted", j.opts.IndexName), err)
	}

	if err := j.CommitJob(ctx, results); err != nil {
		return nil, err
	}
	return results, nil
}

// CommitJob makes the job's segments visible: each staged segment is
// renamed from the job's temp prefix to its final path, then the staging
// area is removed. This is the only point at which an index segment can
// appear at a final path.
func (j *Job) CommitJob(ctx context.Context, results []Result) error {
	if err := j.transition(StateRunning, StateCommitting); err != nil {
		return err
	}
	for _, r := range results {
		src := j.tempSegmentPath(r.Parent, r.DataFile)
		dst := j.finalSegmentPath(r.Parent, r.DataFile)
		if err := j.fs.Rename(ctx, src, dst); err != nil {
			return errors.NewBuildError(errors.CodeWriteFailed,
				fmt.Sprintf("committing segment %s", dst), err)
		}
	}
	for _, dir := range j.dirs {
		if err := j.fs.DeleteAll(ctx, j.tempPrefix(dir)); err != nil {
			log.Printf("build: job %s: cleaning staging area under %s: %v", j.id, dir, err)
		}
	}
	j.state = StateCommitted
	return nil
}

// AbortJob removes every staged output of this job. Called when any task
// fails; safe to call regardless of how far the tasks got.
func (j *Job) AbortJob(ctx context.Context) error {
	if err := j.transition(StateRunning, StateAborting); err != nil {
		return err
	}
	var firstErr error
	for _, dir := range j.dirs {
		if err := j.fs.DeleteAll(ctx, j.tempPrefix(dir)); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	j.state = StateAborted
	if firstErr != nil {
		return errors.NewBuildError(errors.CodeWriteFailed,
			fmt.Sprintf("job %s: removing staged outputs", j.id), firstErr)
	}
	return nil
}
