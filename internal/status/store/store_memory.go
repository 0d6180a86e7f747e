package store

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"veristat/internal/status/models"
	"veristat/pkg/domain"
	"veristat/pkg/requestcontext"
)

// DefaultMaxEntries bounds the in-memory cache. The console's client
// directory can grow without limit, so the cache must not.
const DefaultMaxEntries = 10000

// entry is one cached status with its write timestamp and LRU position.
type entry struct {
	id        domain.ClientID
	status    models.StatusInfo
	writtenAt time.Time
	elem      *list.Element
}

// InMemoryCache is a TTL- and size-bounded status cache for single-instance
// deployments. Freshness reads use the request-scoped clock so tests inject
// time instead of sleeping through TTLs.
type InMemoryCache struct {
	mu         sync.Mutex
	entries    map[domain.ClientID]*entry
	lru        *list.List // front = most recently used
	ttl        time.Duration
	maxEntries int
}

// MemoryOption configures an InMemoryCache.
type MemoryOption func(*InMemoryCache)

// WithMaxEntries overrides the LRU bound.
func WithMaxEntries(n int) MemoryOption {
	return func(c *InMemoryCache) { c.maxEntries = n }
}

// NewInMemoryCache constructs an empty cache with the given freshness window.
func NewInMemoryCache(ttl time.Duration, opts ...MemoryOption) *InMemoryCache {
	c := &InMemoryCache{
		entries:    make(map[domain.ClientID]*entry),
		lru:        list.New(),
		ttl:        ttl,
		maxEntries: DefaultMaxEntries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached status while fresh. Stale entries are reported as
// absent but kept in place; the next Put overwrites them.
func (c *InMemoryCache) Get(ctx context.Context, id domain.ClientID) (models.StatusInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return models.StatusInfo{}, fmt.Errorf("status for client %s: %w", id, ErrNotFound)
	}
	if requestcontext.Now(ctx).Sub(e.writtenAt) >= c.ttl {
		return models.StatusInfo{}, fmt.Errorf("status for client %s is stale: %w", id, ErrNotFound)
	}
	c.lru.MoveToFront(e.elem)
	return e.status, nil
}

// Put inserts or overwrites the entry, stamping the request-scoped time.
func (c *InMemoryCache) Put(ctx context.Context, id domain.ClientID, status models.StatusInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := requestcontext.Now(ctx)
	if e, ok := c.entries[id]; ok {
		e.status = status
		e.writtenAt = now
		c.lru.MoveToFront(e.elem)
		return nil
	}

	e := &entry{id: id, status: status, writtenAt: now}
	e.elem = c.lru.PushFront(e)
	c.entries[id] = e

	if len(c.entries) > c.maxEntries {
		c.evictOldest()
	}
	return nil
}

// Invalidate removes the entry immediately, regardless of freshness.
func (c *InMemoryCache) Invalidate(_ context.Context, id domain.ClientID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[id]; ok {
		c.lru.Remove(e.elem)
		delete(c.entries, id)
	}
	return nil
}

// Clear removes all entries.
func (c *InMemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[domain.ClientID]*entry)
	c.lru.Init()
	return nil
}

// Snapshot returns the fresh subset of the requested IDs without touching
// LRU order; it is a read for rendering, not a usage signal.
func (c *InMemoryCache) Snapshot(ctx context.Context, ids []domain.ClientID) (map[domain.ClientID]models.StatusInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := requestcontext.Now(ctx)
	out := make(map[domain.ClientID]models.StatusInfo, len(ids))
	for _, id := range ids {
		e, ok := c.entries[id]
		if !ok || now.Sub(e.writtenAt) >= c.ttl {
			continue
		}
		out[id] = e.status
	}
	return out, nil
}

// Len reports the number of physically stored entries, fresh or stale.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictOldest drops the least recently used entry. Caller holds c.mu.
func (c *InMemoryCache) evictOldest() {
	back := c.lru.Back()
	if back == nil {
		return
	}
	e := back.Value.(*entry)
	c.lru.Remove(back)
	delete(c.entries, e.id)
}
