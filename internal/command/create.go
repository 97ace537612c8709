package command

import (
	"context"
	"log"

	"github.com/tesseradb/tessera/internal/build"
	"github.com/tesseradb/tessera/internal/index"
	"github.com/tesseradb/tessera/internal/meta"
	"github.com/tesseradb/tessera/internal/session"
)

// CreateRequest describes one CreateIndex invocation.
type CreateRequest struct {
	Name    string
	Columns []index.Column
	Kind    index.Kind

	// AllowExists replaces an existing index of the same name instead of
	// failing with INDEX_ALREADY_EXISTS.
	AllowExists bool
}

// CreateIndex builds a new index over every partition of the relation
// that holds at least one data file, then publishes the updated
// metadata. Validation failures and duplicate names (without
// AllowExists) surface before any build is dispatched and leave every
// partition untouched.
func CreateIndex(ctx context.Context, sess *session.Session, rel *Relation, req CreateRequest) error {
	def, err := index.Resolve(req.Kind, req.Columns, rel.Schema)
	if err != nil {
		return err
	}

	states, err := loadPartitions(ctx, sess, rel)
	if err != nil {
		return err
	}

	var (
		targets []partitionState
		tasks   []build.Task
	)
	for _, state := range states {
		if len(state.files) == 0 {
			continue
		}
		if state.md != nil {
			if _, ok := state.md.Index(req.Name); ok {
				if !req.AllowExists {
					return indexExistsErr(req.Name, state.dir)
				}
				log.Printf("command: index %s already exists in %s, replacing", req.Name, state.dir)
			}
		}
		targets = append(targets, state)
		tasks = append(tasks, build.Task{Dir: state.dir, Files: state.files})
	}

	results, err := runBuild(ctx, sess, rel, build.Options{
		IndexName:  req.Name,
		Schema:     rel.Schema,
		Ordinals:   def.Ordinals(),
		StatsKinds: sess.StatsKinds(),
		Append:     false,
	}, tasks)
	if err != nil {
		return err
	}

	grouped := build.GroupByParent(results)
	store := meta.NewStore(sess.FS())
	for _, state := range targets {
		b := builderFor(state, rel)
		for _, r := range grouped[state.dir] {
			b.AddFileMeta(meta.FileMeta{
				Fingerprint: r.Fingerprint,
				RowCount:    r.RowCount,
				Path:        r.DataFile,
			})
		}
		b.AddIndexMeta(meta.IndexMeta{Name: req.Name, Definition: def})
		if err := store.Write(ctx, state.dir, b.Build(), true); err != nil {
			return err
		}
		sess.Pruner().Invalidate(state.dir)
	}
	return nil
}
