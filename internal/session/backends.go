package session

import (
	"time"

	"github.com/tesseradb/tessera/internal/catalog"
	"github.com/tesseradb/tessera/internal/config"
	"github.com/tesseradb/tessera/internal/engine"
	"github.com/tesseradb/tessera/internal/index"
	"github.com/tesseradb/tessera/internal/observability"
	"github.com/tesseradb/tessera/internal/stats"
	"github.com/tesseradb/tessera/internal/storage"
)

// pruneStatsWindow bounds how long an idle index keeps its pruning
// counters in a session's tracker.
const pruneStatsWindow = 24 * time.Hour

func init() {
	RegisterBackend(config.BackendDefault, openDefault)
	RegisterBackend(config.BackendExtended, openExtended)
}

// openDefault builds a session with the local parallel engine and the
// configured statistics kinds.
func openDefault(cfg *config.Config, fs storage.FileSystem, cat catalog.Catalog) (*Session, error) {
	kinds, err := checkKinds(cfg.Build.StatsKinds)
	if err != nil {
		return nil, err
	}
	return newSession(cfg, fs, cat, kinds, config.BackendDefault), nil
}

// openExtended is the default session plus the membership summary on
// every segment, for workloads dominated by point lookups.
func openExtended(cfg *config.Config, fs storage.FileSystem, cat catalog.Catalog) (*Session, error) {
	kinds := cfg.Build.StatsKinds
	if !contains(kinds, stats.MembershipID) {
		kinds = append(append([]string{}, kinds...), stats.MembershipID)
	}
	checked, err := checkKinds(kinds)
	if err != nil {
		return nil, err
	}
	return newSession(cfg, fs, cat, checked, config.BackendExtended), nil
}

func newSession(cfg *config.Config, fs storage.FileSystem, cat catalog.Catalog, kinds []string, backend config.Backend) *Session {
	tracker := observability.NewPruneStats(pruneStatsWindow)
	return &Session{
		fs:         fs,
		cat:        cat,
		engine:     engine.NewLocalEngine(cfg.Build.Parallelism),
		statsKinds: kinds,
		backend:    backend,
		pruneStats: tracker,
		pruner:     index.NewFilePruner(fs, tracker),
	}
}

// checkKinds verifies every configured kind has a registered factory
// before any build starts.
func checkKinds(kinds []string) ([]string, error) {
	for _, kind := range kinds {
		if _, err := stats.NewSummary(kind); err != nil {
			return nil, err
		}
	}
	return kinds, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
