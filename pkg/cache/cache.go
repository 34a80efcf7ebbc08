// Package cache is a small in-process TTL cache. The auth middleware uses it
// to skip re-verifying a bearer token it has seen recently, and the code
// ledger uses it as a resend throttle when Redis is disabled.
package cache

import (
	"sync"
	"time"
)

type item[V any] struct {
	value     V
	expiresAt time.Time
}

type Cache[V any] struct {
	mu    sync.RWMutex
	items map[string]item[V]
	now   func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New starts a janitor that evicts expired entries every sweep interval.
func New[V any](sweep time.Duration) *Cache[V] {
	c := &Cache[V]{
		items:  make(map[string]item[V]),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	if sweep > 0 {
		go c.janitor(sweep)
	}
	return c
}

func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = item[V]{value: value, expiresAt: c.now().Add(ttl)}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, ok := c.items[key]
	if !ok || !c.now().Before(it.expiresAt) {
		var zero V
		return zero, false
	}
	return it.value, true
}

// SetIfAbsent stores value unless a live entry exists. When one does, it
// reports false and how long that entry has left.
func (c *Cache[V]) SetIfAbsent(key string, value V, ttl time.Duration) (bool, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if it, ok := c.items[key]; ok && now.Before(it.expiresAt) {
		return false, it.expiresAt.Sub(now)
	}
	c.items[key] = item[V]{value: value, expiresAt: now.Add(ttl)}
	return true, 0
}

func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stop ends the janitor goroutine.
func (c *Cache[V]) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *Cache[V]) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, it := range c.items {
		if !now.Before(it.expiresAt) {
			delete(c.items, k)
		}
	}
}

func (c *Cache[V]) janitor(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.evictExpired()
		case <-c.stopCh:
			return
		}
	}
}
