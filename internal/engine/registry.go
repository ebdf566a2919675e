package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/contentgraph/internal/cache"
	"github.com/roach88/contentgraph/internal/config"
	"github.com/roach88/contentgraph/internal/metrics"
	"github.com/roach88/contentgraph/internal/projection"
	"github.com/roach88/contentgraph/internal/store"
)

// ErrUnknownRepository is returned by Registry.Get for an id that was
// never registered.
var ErrUnknownRepository = errors.New("unknown content repository")

// DefaultRepositoryID is the id the CLI registers its repository under.
const DefaultRepositoryID = "default"

// Registry holds the content repositories of a process by id. It is built
// once at startup and passed to whoever needs an engine.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]*Engine
	closers []io.Closer
}

func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]*Engine)}
}

// Register adds e under id. Closers are closed with the registry, after
// the engines' stores.
func (r *Registry) Register(id string, e *Engine, closers ...io.Closer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.engines[id]; ok {
		return fmt.Errorf("content repository %q is already registered", id)
	}
	r.engines[id] = e
	r.closers = append(r.closers, closers...)
	return nil
}

// Get returns the engine registered under id.
func (r *Registry) Get(id string) (*Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRepository, id)
	}
	return e, nil
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.engines))
	for id := range r.engines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close closes every registered store and closer.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, id := range sortedKeys(r.engines) {
		if err := r.engines[id].store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
	}
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.engines = make(map[string]*Engine)
	r.closers = nil
	return errors.Join(errs...)
}

func sortedKeys(m map[string]*Engine) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Open builds a complete engine from env and repo and registers it under
// id: the SQLite store at env.DBPath, the processed-event cache (Redis
// when env.RedisAddr is set) and the projection. reg may be nil.
func (r *Registry) Open(ctx context.Context, id string, env config.Env, repo *config.ContentRepository, reg prometheus.Registerer, logger *slog.Logger, opts ...Option) (*Engine, error) {
	s, err := store.Open(env.DBPath)
	if err != nil {
		return nil, err
	}

	var (
		processed cache.ProcessedEvents
		closers   []io.Closer
	)
	if env.RedisAddr != "" {
		rc := cache.NewRedis(env.RedisAddr, cache.WithTTL(env.EventCacheTTL), cache.WithPrefix("contentgraph:"+id+":processed:"))
		processed = rc
		closers = append(closers, rc)
	} else {
		processed = cache.NewMemory(env.EventCacheTTL)
	}

	m := metrics.New(reg)
	p := projection.New(s,
		projection.WithProcessedEvents(processed),
		projection.WithMetrics(m),
		projection.WithLogger(logger),
	)
	opts = append([]Option{
		WithMaxRetries(env.MaxRetries),
		WithMetrics(m),
		WithLogger(logger),
	}, opts...)
	e := New(s, p, repo, opts...)

	if err := r.Register(id, e, closers...); err != nil {
		s.Close()
		for _, c := range closers {
			c.Close()
		}
		return nil, err
	}
	if _, err := p.CatchUp(ctx); err != nil {
		return nil, fmt.Errorf("open %s: %w", id, err)
	}
	return e, nil
}
