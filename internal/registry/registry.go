package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/undercontrol/gateway/internal/adapter"
	"github.com/undercontrol/gateway/internal/discovery"
)

// shutdownParallelism bounds how many instances are shut down concurrently
// during reload retirement and process teardown.
const shutdownParallelism = 4

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Entry is one live, configured adapter instance together with the
// immutable metadata the router needs to validate commands against it.
type Entry struct {
	Config     adapter.Config
	Descriptor adapter.Descriptor
	Instance   adapter.Instance

	serial bool
	mu     sync.Mutex
}

// Acquire blocks until the entry is free when its adapter declared
// single-concurrency; it is a no-op otherwise. Callers must pair every
// Acquire with a Release.
func (e *Entry) Acquire() {
	if e.serial {
		e.mu.Lock()
	}
}

// Release unlocks an entry previously locked by Acquire.
func (e *Entry) Release() {
	if e.serial {
		e.mu.Unlock()
	}
}

// Registry owns the mapping from entry id to live adapter instance.
//
// Reads are lock-cheap and write-rare: the entry map is replaced wholesale
// on load/reload, never mutated in place, so Get holds the read lock only
// long enough to fetch a map reference.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry // nil until first successful Load
	logger  Logger
}

// New creates an empty registry. Load must be called before Get.
func New() *Registry {
	return &Registry{logger: noopLogger{}}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Load builds and publishes the initial instance set.
//
// Validation is collect-all: duplicate entry ids (both occurrences named),
// unknown adapter types, and configure failures are gathered into a single
// *ConfigError. On any problem nothing is published and instances already
// built during the attempt are shut down again.
func (r *Registry) Load(ctx context.Context, configs []adapter.Config, catalog *discovery.Catalog) error {
	return r.Reload(ctx, configs, catalog)
}

// Reload atomically replaces the instance set.
//
// The replacement set is built fully before being exposed, then swapped in
// under the write lock, then the retired instances are shut down. No request
// ever observes a partially-built registry. On error the previous set keeps
// serving.
func (r *Registry) Reload(ctx context.Context, configs []adapter.Config, catalog *discovery.Catalog) error {
	next, err := buildEntries(configs, catalog)
	if err != nil {
		return err
	}

	// Publish.
	r.mu.Lock()
	old := r.entries
	r.entries = next
	r.mu.Unlock()

	r.logger.Info("registry loaded", "entries", len(next))

	// Retire the old set after the swap; failures are logged, not raised,
	// since the new set is already serving.
	if old != nil {
		if shutdownErr := shutdownEntries(ctx, old); shutdownErr != nil {
			r.logger.Warn("errors shutting down retired instances", "error", shutdownErr)
		}
	}

	return nil
}

// Get returns the live entry for the given id.
// Returns ErrEntryNotFound if the id is not configured, ErrNotLoaded if the
// registry has never been loaded.
func (r *Registry) Get(entryID string) (*Entry, error) {
	r.mu.RLock()
	entries := r.entries
	r.mu.RUnlock()

	if entries == nil {
		return nil, ErrNotLoaded
	}
	e, ok := entries[entryID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrEntryNotFound, entryID)
	}
	return e, nil
}

// List returns all entries sorted by entry id.
func (r *Registry) List() []*Entry {
	r.mu.RLock()
	entries := r.entries
	r.mu.RUnlock()

	out := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Config.EntryID < out[j].Config.EntryID
	})
	return out
}

// Count returns the number of configured entries.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// ShutdownAll releases every instance, best-effort. One instance failing to
// shut down does not prevent the others from being attempted; all failures
// are collected into the returned error.
func (r *Registry) ShutdownAll(ctx context.Context) error {
	r.mu.Lock()
	entries := r.entries
	r.entries = nil
	r.mu.Unlock()

	if entries == nil {
		return nil
	}

	r.logger.Info("shutting down all adapter instances", "count", len(entries))
	return shutdownEntries(ctx, entries)
}

// buildEntries instantiates the full replacement set, collecting every
// configuration problem before reporting any.
func buildEntries(configs []adapter.Config, catalog *discovery.Catalog) (map[string]*Entry, error) {
	var problems []string
	next := make(map[string]*Entry, len(configs))
	firstIndex := make(map[string]int, len(configs))

	for i, cfg := range configs {
		if cfg.EntryID == "" {
			problems = append(problems, fmt.Sprintf("entry %d: empty entry id", i))
			continue
		}
		if prev, dup := firstIndex[cfg.EntryID]; dup {
			problems = append(problems, fmt.Sprintf(
				"duplicate entry id %q (entries %d and %d)", cfg.EntryID, prev, i))
			continue
		}
		firstIndex[cfg.EntryID] = i

		factory, desc, ok := catalog.Get(cfg.Type)
		if !ok {
			problems = append(problems, fmt.Sprintf(
				"entry %q: unknown adapter type %q", cfg.EntryID, cfg.Type))
			continue
		}

		inst, err := factory.Configure(cfg)
		if err != nil {
			problems = append(problems, fmt.Sprintf("entry %q: %v", cfg.EntryID, err))
			continue
		}

		next[cfg.EntryID] = &Entry{
			Config:     cfg,
			Descriptor: desc,
			Instance:   inst,
			serial:     adapter.InvokesSerially(inst),
		}
	}

	if len(problems) > 0 {
		// Nothing is published on a failed attempt. Instances built so far
		// are released again; configure is side-effect-free so this is only
		// releasing locally-held resources.
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		_ = shutdownEntries(ctx, next)
		return nil, &ConfigError{Problems: problems}
	}

	return next, nil
}

// shutdownEntries shuts every entry down with bounded parallelism, collecting
// all failures. Shutdown may block on vendor I/O, hence the fan-out.
func shutdownEntries(ctx context.Context, entries map[string]*Entry) error {
	var (
		g        errgroup.Group
		mu       sync.Mutex
		failures []error
	)
	g.SetLimit(shutdownParallelism)

	for id, e := range entries {
		id, e := id, e
		g.Go(func() error {
			if err := e.Instance.Shutdown(ctx); err != nil {
				mu.Lock()
				failures = append(failures, fmt.Errorf("entry %q: %w", id, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait() // goroutines report via failures, never via errgroup

	return errors.Join(failures...)
}
