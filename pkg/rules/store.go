package rules

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Store owns the active RuleSet and its hot-reload lifecycle.
//
// Reads are lock-free: Current loads an atomic pointer, and the returned
// RuleSet is immutable, so an evaluation already in flight keeps the
// snapshot it captured even if a reload swaps the pointer underneath it.
// At most one reload runs at a time.
type Store struct {
	path    string
	logger  *slog.Logger
	current atomic.Pointer[RuleSet]

	// reloadMu serializes Reload against concurrent watcher triggers.
	reloadMu sync.Mutex

	// onReload, when set, observes every reload attempt. set is nil on
	// failure.
	onReload func(err error, set *RuleSet)

	watcher *FileWatcher
}

// NewStore creates a store and performs the initial load. A rule file that
// fails to compile at startup is fatal: the engine must never start without
// an enforceable rule set.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		path:   path,
		logger: logger.With("component", "rules.store"),
	}

	set, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	s.current.Store(set)

	s.logger.Info("rule set loaded",
		"path", path,
		"rule_count", set.Len(),
		"version", set.Version(),
	)
	return s, nil
}

// OnReload registers an observer for reload attempts. Call before Watch;
// the hook runs on the watcher goroutine.
func (s *Store) OnReload(fn func(err error, set *RuleSet)) {
	s.onReload = fn
}

// Current returns the active rule set. It never returns nil once NewStore
// has succeeded, and never blocks.
func (s *Store) Current() *RuleSet {
	return s.current.Load()
}

// Reload recompiles the rule file and atomically publishes the new set.
// On compile failure the previous good set keeps serving and the error is
// returned for operator reporting.
func (s *Store) Reload() error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	set, err := LoadFile(s.path)
	if err != nil {
		s.logger.Error("rule reload failed, previous set keeps serving",
			"path", s.path,
			"error", err,
			"active_version", s.Current().Version(),
		)
		if s.onReload != nil {
			s.onReload(err, nil)
		}
		return err
	}

	previous := s.current.Swap(set)
	s.logger.Info("rule set reloaded",
		"path", s.path,
		"rule_count", set.Len(),
		"version", set.Version(),
		"previous_version", previous.Version(),
	)
	if s.onReload != nil {
		s.onReload(nil, set)
	}
	return nil
}

// Watch starts the file watcher and reloads on rule file changes. It blocks
// until the context is cancelled. Reload failures are logged and do not
// stop the watcher.
func (s *Store) Watch(ctx context.Context, cfg *FileWatcherConfig) error {
	if cfg == nil {
		cfg = DefaultFileWatcherConfig()
	}
	cfg.Path = s.path

	watcher, err := NewFileWatcher(cfg, s.logger)
	if err != nil {
		return err
	}
	s.watcher = watcher

	return watcher.Watch(ctx, func() error {
		return s.Reload()
	})
}
