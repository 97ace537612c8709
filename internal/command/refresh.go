package command

import (
	"context"
	"sort"

	"github.com/tesseradb/tessera/internal/build"
	"github.com/tesseradb/tessera/internal/index"
	"github.com/tesseradb/tessera/internal/meta"
	"github.com/tesseradb/tessera/internal/session"
)

// RefreshIndex recomputes every index known anywhere in the relation's
// partitions against the current row set, in append mode: data files
// already covered by a segment are left alone, so a refresh with no new
// files changes nothing. Partition metadata is rewritten only where the
// build produced new results. The catalog's listing cache is refreshed
// afterward.
func RefreshIndex(ctx context.Context, sess *session.Session, rel *Relation) error {
	states, err := loadPartitions(ctx, sess, rel)
	if err != nil {
		return err
	}

	// Union of index names across partitions, one representative
	// definition per name.
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

	// Every index covers the same partition set, so one task list
	// serves all builds.
	var tasks []build.Task
	for _, state := range states {
		if len(state.files) == 0 {
			continue
		}
		tasks = append(tasks, build.Task{Dir: state.dir, Files: state.files})
	}

	// One append-mode build per index; collect touched partitions across
	// all of them so each sidecar is rewritten at most once.
	touched := map[string][]build.Result{}
	indexed := map[string]map[string]bool{}
	for _, name := range names {
		results, err := runBuild(ctx, sess, rel, build.Options{
			IndexName:  name,
			Schema:     rel.Schema,
			Ordinals:   defs[name].Ordinals(),
			StatsKinds: sess.StatsKinds(),
			Append:     true,
		}, tasks)
		if err != nil {
			return err
		}
		for dir, rs := range build.GroupByParent(results) {
			touched[dir] = append(touched[dir], rs...)
			if indexed[dir] == nil {
				indexed[dir] = map[string]bool{}
			}
			indexed[dir][name] = true
		}
	}

	store := meta.NewStore(sess.FS())
	for _, state := range states {
		results, ok := touched[state.dir]
		if !ok {
			continue
		}
		b := builderFor(state, rel)
		for _, r := range results {
			// A file already accounted for keeps its existing FileMeta.
			if b.ContainsFile(r.Fingerprint) {
				continue
			}
			b.AddFileMeta(meta.FileMeta{
				Fingerprint: r.Fingerprint,
				RowCount:    r.RowCount,
				Path:        r.DataFile,
			})
		}
		for name := range indexed[state.dir] {
			b.AddIndexMeta(meta.IndexMeta{Name: name, Definition: defs[name]})
		}
		if err := store.Write(ctx, state.dir, b.Build(), true); err != nil {
			return err
		}
		sess.Pruner().Invalidate(state.dir)
	}

	return sess.Catalog().RefreshListing(ctx, rel.Table)
}
