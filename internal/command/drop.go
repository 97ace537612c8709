package command

import (
	"context"
	"log"
	"path"

	"github.com/tesseradb/tessera/internal/index"
	"github.com/tesseradb/tessera/internal/meta"
	"github.com/tesseradb/tessera/internal/session"
)

// DropIndex removes the named index from every partition of the
// relation: the IndexMeta entry first, then the index's segment files.
// With allowNotExists set, partitions that never had the index are
// warned about and skipped; otherwise the first such partition fails the
// command before any metadata is touched.
func DropIndex(ctx context.Context, sess *session.Session, rel *Relation, name string, allowNotExists bool) error {
	states, err := loadPartitions(ctx, sess, rel)
	if err != nil {
		return err
	}

	// Validate across all partitions before mutating any of them.
	var targets []partitionState
	for _, state := range states {
		if state.md == nil {
			continue
		}
		if _, ok := state.md.Index(name); !ok {
			if !allowNotExists {
				return indexNotFoundErr(name, state.dir)
			}
			log.Printf("command: index %s not present in %s, skipping", name, state.dir)
			continue
		}
		targets = append(targets, state)
	}
	if len(targets) == 0 && !allowNotExists {
		return indexNotFoundErr(name, rel.Table)
	}

	store := meta.NewStore(sess.FS())
	for _, state := range targets {
		b := meta.BuilderFrom(state.md).RemoveIndexMeta(name)
		if err := store.Write(ctx, state.dir, b.Build(), true); err != nil {
			return err
		}
		if err := deleteSegments(ctx, sess, state.dir, name); err != nil {
			return err
		}
		sess.Pruner().Invalidate(state.dir)
	}
	return nil
}

// deleteSegments removes every segment file of the named index from the
// directory, identified by the naming convention.
func deleteSegments(ctx context.Context, sess *session.Session, dir, name string) error {
	entries, err := sess.FS().ListFiles(ctx, dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !index.MatchesIndex(entry, name) {
			continue
		}
		if err := sess.FS().Delete(ctx, path.Join(dir, entry)); err != nil {
			return err
		}
	}
	return nil
}
