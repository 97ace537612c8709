package index

import (
	"context"
	"errors"
	"path"
	"sync"

	"github.com/tesseradb/tessera/internal/observability"
	"github.com/tesseradb/tessera/internal/stats"
	"github.com/tesseradb/tessera/internal/storage"
)

// PruneResult reports one pruning pass over a partition directory.
type PruneResult struct {
	// Scan is the final list of data files that must be read.
	Scan []string

	// Total is the number of data files considered.
	Total int

	// Skipped is the number of files eliminated via statistics.
	Skipped int

	// PruningRatio is Skipped/Total (0.0 to 1.0).
	PruningRatio float64
}

// FilePruner decides, per data file, whether its index segment's
// statistics prove the file cannot match a query's intervals. Decoded
// segments are cached by path; the cache holds only their statistics.
type FilePruner struct {
	fs      storage.FileSystem
	tracker *observability.PruneStats

	segCache   map[string][]stats.Summary
	segCacheMu sync.RWMutex
}

// NewFilePruner creates a pruner over the given storage. tracker may be
// nil to skip effectiveness tracking.
func NewFilePruner(fs storage.FileSystem, tracker *observability.PruneStats) *FilePruner {
	return &FilePruner{
		fs:       fs,
		tracker:  tracker,
		segCache: make(map[string][]stats.Summary),
	}
}

// PruneFiles returns the subset of files that must be scanned for the
// interval union. A file is skipped only when its segment exists,
// parses, and every one of its summaries allows the skip; a missing or
// unreadable segment always means scan.
func (p *FilePruner) PruneFiles(ctx context.Context, dir, indexName string, files []string, intervals []stats.Interval) (*PruneResult, error) {
	result := &PruneResult{Total: len(files)}
	for _, file := range files {
		skip, err := p.canSkip(ctx, dir, indexName, file, intervals)
		if err != nil {
			return nil, err
		}
		if skip {
			result.Skipped++
			continue
		}
		result.Scan = append(result.Scan, file)
	}
	if result.Total > 0 {
		result.PruningRatio = float64(result.Skipped) / float64(result.Total)
	}
	if p.tracker != nil {
		p.tracker.RecordPrune(indexName, result.Total, result.Skipped)
	}
	return result, nil
}

func (p *FilePruner) canSkip(ctx context.Context, dir, indexName, file string, intervals []stats.Interval) (bool, error) {
	summaries, ok, err := p.loadSummaries(ctx, path.Join(dir, SegmentFileName(file, indexName)))
	if err != nil || !ok {
		return false, err
	}
	for _, s := range summaries {
		if s.Prune(intervals) == stats.Skip {
			return true, nil
		}
	}
	return false, nil
}

// loadSummaries fetches a segment's statistics, through the cache. A
// missing segment returns ok=false; a corrupt one is treated the same,
// since pruning must stay conservative.
func (p *FilePruner) loadSummaries(ctx context.Context, segPath string) ([]stats.Summary, bool, error) {
	p.segCacheMu.RLock()
	cached, ok := p.segCache[segPath]
	p.segCacheMu.RUnlock()
	if ok {
		return cached, true, nil
	}

	data, err := p.fs.ReadFile(ctx, segPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	seg, err := DecodeSegment(data)
	if err != nil {
		return nil, false, nil
	}

	p.segCacheMu.Lock()
	p.segCache[segPath] = seg.Stats
	p.segCacheMu.Unlock()
	return seg.Stats, true, nil
}

// Invalidate drops a directory's cached segments, e.g. after a refresh.
func (p *FilePruner) Invalidate(dir string) {
	p.segCacheMu.Lock()
	defer p.segCacheMu.Unlock()
	prefix := dir + "/"
	for key := range p.segCache {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(p.segCache, key)
		}
	}
}
