package dataservice

import (
	"context"
	"fmt"
	"sync"

	"github.com/couchcryptid/migration-paths/internal/domain"
	"github.com/couchcryptid/migration-paths/internal/observability"
)

// Source is the window lookup the cache decorates.
type Source interface {
	Window(ctx context.Context, q domain.FocusQuery) (*domain.Window, error)
}

// CachedSource wraps a Source with an in-memory LRU cache. Cached windows are
// shared between callers and must not be modified.
type CachedSource struct {
	inner   Source
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedSource creates a cache decorator around a window source.
func NewCachedSource(inner Source, maxEntries int, metrics *observability.Metrics) *CachedSource {
	return &CachedSource{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedSource) Window(ctx context.Context, q domain.FocusQuery) (*domain.Window, error) {
	key := cacheKey(q)
	if w, ok := c.cache.get(key); ok {
		c.metrics.WindowCache.WithLabelValues("hit").Inc()
		return w, nil
	}
	c.metrics.WindowCache.WithLabelValues("miss").Inc()

	w, err := c.inner.Window(ctx, q)
	if err != nil {
		return nil, err
	}
	c.cache.put(key, w)
	return w, nil
}

func cacheKey(q domain.FocusQuery) string {
	return fmt.Sprintf("%d|%d|%d", q.Focus.UnixNano(), int64(q.Duration), q.StrataCount)
}

// lruCache is a simple thread-safe LRU cache of windows.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value *domain.Window
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (*domain.Window, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value *domain.Window) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
