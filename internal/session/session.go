// Package session wires storage, catalog, and execution into one handle
// the lifecycle commands run against. The backend variant is an explicit
// capability selected by configuration and resolved through a registry
// at startup, never by dynamic class lookup.
package session

import (
	"fmt"

	"github.com/tesseradb/tessera/internal/build"
	"github.com/tesseradb/tessera/internal/catalog"
	"github.com/tesseradb/tessera/internal/config"
	"github.com/tesseradb/tessera/internal/errors"
	"github.com/tesseradb/tessera/internal/index"
	"github.com/tesseradb/tessera/internal/observability"
	"github.com/tesseradb/tessera/internal/storage"
)

// Session is the per-process handle lifecycle commands operate on.
type Session struct {
	fs         storage.FileSystem
	cat        catalog.Catalog
	engine     build.Engine
	statsKinds []string
	backend    config.Backend
	pruneStats *observability.PruneStats
	pruner     *index.FilePruner
}

// FS returns the session's storage.
func (s *Session) FS() storage.FileSystem { return s.fs }

// Catalog returns the session's table catalog.
func (s *Session) Catalog() catalog.Catalog { return s.cat }

// Engine returns the session's build execution engine.
func (s *Session) Engine() build.Engine { return s.engine }

// StatsKinds returns the statistics kinds this session writes into new
// index segments.
func (s *Session) StatsKinds() []string { return s.statsKinds }

// Backend returns the backend variant this session was opened with.
func (s *Session) Backend() config.Backend { return s.backend }

// Pruner returns the session's file pruner. Its segment cache lives as
// long as the session; index mutations invalidate affected entries.
func (s *Session) Pruner() *index.FilePruner { return s.pruner }

// PruneStats returns the tracker behind the pruner's effectiveness
// counters.
func (s *Session) PruneStats() *observability.PruneStats { return s.pruneStats }

// BackendFactory constructs a session for one backend variant.
type BackendFactory func(cfg *config.Config, fs storage.FileSystem, cat catalog.Catalog) (*Session, error)

var backends = map[config.Backend]BackendFactory{}

// RegisterBackend installs a backend factory. Called from init functions
// of the backend implementations.
func RegisterBackend(name config.Backend, factory BackendFactory) {
	backends[name] = factory
}

// Open resolves the configured backend and constructs the session.
func Open(cfg *config.Config, fs storage.FileSystem, cat catalog.Catalog) (*Session, error) {
	factory, ok := backends[cfg.Backend]
	if !ok {
		return nil, errors.NewValidationError(errors.CodeInvalidState,
			fmt.Sprintf("no session backend registered for %q", cfg.Backend))
	}
	return factory(cfg, fs, cat)
}
