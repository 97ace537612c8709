// Package command implements the index lifecycle operations consumed by
// the DDL surface: CreateIndex, DropIndex, RefreshIndex, and ShowIndex.
// Each operation takes an already-resolved relation handle and composes
// the metadata store, the statistics kinds, and the build coordinator
// against the relation's partition set.
package command

import (
	"context"
	"fmt"

	"github.com/tesseradb/tessera/internal/build"
	"github.com/tesseradb/tessera/internal/engine"
	"github.com/tesseradb/tessera/internal/errors"
	"github.com/tesseradb/tessera/internal/meta"
	"github.com/tesseradb/tessera/internal/session"
	"github.com/tesseradb/tessera/pkg/types"
)

// Relation is a resolved table handle: the live schema, the reader class
// for its data files, and its partition directories.
type Relation struct {
	Table           string
	Schema          types.Schema
	ReaderClassName string
	Dirs            []string
}

// OpenRelation resolves a table name through the session's catalog.
func OpenRelation(ctx context.Context, sess *session.Session, table string) (*Relation, error) {
	rec, err := sess.Catalog().Table(ctx, table)
	if err != nil {
		return nil, err
	}
	dirs, err := sess.Catalog().PartitionDirs(ctx, table)
	if err != nil {
		return nil, err
	}
	return &Relation{
		Table:           rec.Name,
		Schema:          rec.Schema,
		ReaderClassName: rec.ReaderClassName,
		Dirs:            dirs,
	}, nil
}

// partitionState is one partition directory's view at command start:
// its data files and its current metadata (nil when no sidecar exists).
type partitionState struct {
	dir   string
	files []string
	md    *meta.Metadata
}

// loadPartitions reads every partition's listing and sidecar up front,
// before any mutation, so validation failures leave storage untouched.
func loadPartitions(ctx context.Context, sess *session.Session, rel *Relation) ([]partitionState, error) {
	store := meta.NewStore(sess.FS())
	states := make([]partitionState, 0, len(rel.Dirs))
	for _, dir := range rel.Dirs {
		files, err := sess.Catalog().DataFiles(ctx, rel.Table, dir)
		if err != nil {
			return nil, err
		}
		md, err := store.Load(ctx, dir)
		if err != nil {
			return nil, err
		}
		states = append(states, partitionState{dir: dir, files: files, md: md})
	}
	return states, nil
}

// resolveReader looks up the data-file reader for the relation.
func resolveReader(rel *Relation) (build.Reader, error) {
	return engine.LookupReader(rel.ReaderClassName, rel.Schema)
}

// runBuild creates and runs one build job over the given tasks. Any task
// failure comes back as a JOB_ABORTED error with staged outputs removed.
func runBuild(ctx context.Context, sess *session.Session, rel *Relation, opts build.Options, tasks []build.Task) ([]build.Result, error) {
	if len(tasks) == 0 {
		return nil, nil
	}
	reader, err := resolveReader(rel)
	if err != nil {
		return nil, err
	}
	job, err := build.NewJob(sess.FS(), reader, sess.Engine(), opts)
	if err != nil {
		return nil, err
	}
	if err := job.DriverSetup(ctx, tasks); err != nil {
		return nil, err
	}
	return job.Run(ctx, tasks)
}

// builderFor starts a metadata mutation from the partition's current
// state, initializing schema and reader class for a fresh directory.
func builderFor(state partitionState, rel *Relation) *meta.Builder {
	if state.md != nil {
		return meta.BuilderFrom(state.md)
	}
	return meta.NewBuilder().
		WithSchema(rel.Schema).
		WithReaderClassName(rel.ReaderClassName)
}

func indexNotFoundErr(name, dir string) error {
	return errors.New(errors.ErrCategoryCatalog, errors.CodeIndexNotFound,
		fmt.Sprintf("index %s does not exist in partition %s", name, dir))
}

func indexExistsErr(name, dir string) error {
	return errors.New(errors.ErrCategoryCatalog, errors.CodeIndexAlreadyExists,
		fmt.Sprintf("index %s already exists in partition %s", name, dir))
}
