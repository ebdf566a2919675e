// Package cache remembers which events a projection already applied.
//
// The projection checkpoint is the authority on progress. The cache is a
// second, cheaper guard that lets several projector processes share work
// and skips events that were applied but are read again, e.g. after a
// batch was retried.
package cache

import (
	"context"
	"sync"
	"time"
)

// ProcessedEvents records applied event ids.
type ProcessedEvents interface {
	// MarkProcessed records id and reports whether it was new.
	MarkProcessed(ctx context.Context, id string) (bool, error)
	IsProcessed(ctx context.Context, id string) (bool, error)
	// Clear forgets every id. Used when the projection is reset.
	Clear(ctx context.Context) error
}

// DefaultTTL is how long an id is remembered when no TTL is configured.
const DefaultTTL = 10 * time.Minute

// Memory is an in-process ProcessedEvents with per-entry expiry.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]time.Time
}

// MemoryOption configures a Memory cache.
type MemoryOption func(*Memory)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory creates an empty cache. A ttl <= 0 uses DefaultTTL.
func NewMemory(ttl time.Duration, opts ...MemoryOption) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Memory{ttl: ttl, now: time.Now, entries: make(map[string]time.Time)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) MarkProcessed(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.evict(now)
	if _, ok := m.entries[id]; ok {
		return false, nil
	}
	m.entries[id] = now.Add(m.ttl)
	return true, nil
}

func (m *Memory) IsProcessed(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expires, ok := m.entries[id]
	return ok && m.now().Before(expires), nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]time.Time)
	return nil
}

// Len returns the number of unexpired ids.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evict(m.now())
	return len(m.entries)
}

func (m *Memory) evict(now time.Time) {
	for id, expires := range m.entries {
		if !now.Before(expires) {
			delete(m.entries, id)
		}
	}
}

// Nop never remembers anything.
type Nop struct{}

func (Nop) MarkProcessed(context.Context, string) (bool, error) { return true, nil }
func (Nop) IsProcessed(context.Context, string) (bool, error)   { return false, nil }
func (Nop) Clear(context.Context) error                         { return nil }
