// Package observability tracks index effectiveness: how often each
// index's statistics let a query skip files without reading them.
package observability

import (
	"sort"
	"sync"
	"time"
)

// PruneStats tracks per-index pruning outcomes over a sliding window.
type PruneStats struct {
	mu      sync.RWMutex
	byIndex map[string]*IndexStats
	window  time.Duration
}

// IndexStats holds cumulative pruning counters for one index.
type IndexStats struct {
	Index    string
	Files    int64 // files considered
	Skipped  int64 // files skipped via statistics
	LastSeen time.Time
}

// SkipRatio is the fraction of considered files the index let us skip.
func (s IndexStats) SkipRatio() float64 {
	if s.Files == 0 {
		return 0
	}
	return float64(s.Skipped) / float64(s.Files)
}

// NewPruneStats creates a tracker. window bounds how long an idle
// index's counters are retained.
func NewPruneStats(window time.Duration) *PruneStats {
	return &PruneStats{
		byIndex: make(map[string]*IndexStats),
		window:  window,
	}
}

// RecordPrune records one pruning pass over an index: how many files
// were considered and how many were skipped. O(1) and thread-safe.
func (p *PruneStats) RecordPrune(index string, files, skipped int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats, ok := p.byIndex[index]
	if !ok {
		stats = &IndexStats{Index: index}
		p.byIndex[index] = stats
	}
	stats.Files += int64(files)
	stats.Skipped += int64(skipped)
	stats.LastSeen = time.Now()
}

// TopIndexes returns up to n indexes ordered by skip ratio, best first.
// The returned slice is a copy.
func (p *PruneStats) TopIndexes(n int) []IndexStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if n <= 0 || len(p.byIndex) == 0 {
		return []IndexStats{}
	}
	out := make([]IndexStats, 0, len(p.byIndex))
	for _, s := range p.byIndex {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].SkipRatio(), out[j].SkipRatio()
		if ri != rj {
			return ri > rj
		}
		return out[i].Index < out[j].Index
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Prune drops counters for indexes idle longer than the window.
func (p *PruneStats) Prune() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := time.Now().Add(-p.window)
	removed := 0
	for name, s := range p.byIndex {
		if s.LastSeen.Before(cutoff) {
			delete(p.byIndex, name)
			removed++
		}
	}
	return removed
}
