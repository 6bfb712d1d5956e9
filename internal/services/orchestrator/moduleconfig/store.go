package moduleconfig

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/orbicity/opsbot/internal/services/orchestrator/module"
	"github.com/orbicity/opsbot/internal/services/orchestrator/storage"
)

// Store serves module configs from an in-process cache backed by persistent
// rows. Entries change only through Reload, ReloadAll, or Put.
type Store struct {
	records storage.ModuleConfigStore
	logger  zerolog.Logger
	now     func() time.Time

	mu    sync.RWMutex
	cache map[module.Module]Config
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for reload diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock overrides the clock stamped on Put.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore builds a cache over records.
func NewStore(records storage.ModuleConfigStore, opts ...Option) *Store {
	s := &Store{
		records: records,
		logger:  zerolog.Nop(),
		now:     time.Now,
		cache:   make(map[module.Module]Config),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the config for m. A missing row or a store failure yields
// ErrNotFound wrapping the cause; neither result is cached.
func (s *Store) Get(ctx context.Context, m module.Module) (Config, error) {
	s.mu.RLock()
	cfg, ok := s.cache[m]
	s.mu.RUnlock()
	if ok {
		return clone(cfg), nil
	}
	return s.Reload(ctx, m)
}

// Reload re-reads m from storage and replaces its cache entry.
func (s *Store) Reload(ctx context.Context, m module.Module) (Config, error) {
	if s == nil || s.records == nil {
		return Config{}, fmt.Errorf("%w: config store is not configured", ErrNotFound)
	}
	if !m.Valid() {
		return Config{}, fmt.Errorf("%w: %w: %q", ErrNotFound, module.ErrUnknownModule, m)
	}

	record, err := s.records.GetModuleConfig(ctx, string(m))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.mu.Lock()
			delete(s.cache, m)
			s.mu.Unlock()
		} else {
			s.logger.Warn().Err(err).Str("module", string(m)).Msg("module config fetch failed")
		}
		return Config{}, fmt.Errorf("%w: %s: %w", ErrNotFound, m, err)
	}
	cfg, err := fromRecord(record)
	if err != nil {
		s.logger.Warn().Err(err).Str("module", string(m)).Msg("module config row rejected")
		return Config{}, fmt.Errorf("%w: %s: %w", ErrNotFound, m, err)
	}

	s.mu.Lock()
	s.cache[m] = cfg
	s.mu.Unlock()
	return clone(cfg), nil
}

// ReloadAll refreshes every known module. Modules without a row are dropped
// from the cache; the first store failure is returned after all modules are tried.
// A failed fetch leaves the previous entry in place.
func (s *Store) ReloadAll(ctx context.Context) error {
	var firstErr error
	for _, m := range module.All() {
		_, err := s.Reload(ctx, m)
		if err == nil || errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Put validates cfg, persists it, and refreshes the cache entry for its module.
func (s *Store) Put(ctx context.Context, cfg Config) (Config, error) {
	if s == nil || s.records == nil {
		return Config{}, errors.New("config store is not configured")
	}
	normalized, err := Normalize(cfg)
	if err != nil {
		return Config{}, err
	}
	normalized.UpdatedAt = s.now().UTC()
	if err := s.records.PutModuleConfig(ctx, toRecord(normalized)); err != nil {
		return Config{}, fmt.Errorf("put module config: %w", err)
	}
	s.logger.Info().Str("module", string(normalized.Module)).Bool("enabled", normalized.Enabled).Msg("module config updated")
	return s.Reload(ctx, normalized.Module)
}

// List returns the configs of every module that has one, in module order.
func (s *Store) List(ctx context.Context) ([]Config, error) {
	configs := make([]Config, 0, len(module.All()))
	for _, m := range module.All() {
		cfg, err := s.Get(ctx, m)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}
