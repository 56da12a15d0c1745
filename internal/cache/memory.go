// Package cache provides an in-process response cache with per-entry expiry.
package cache

import (
	"context"
	"sync"
	"time"

	"popdash/domain/core"
	"popdash/ports"
)

type entry struct {
	body      []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryCache is a mutex-guarded map of response bodies.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	maxEntries int
	now        func() time.Time
}

var _ ports.ResponseCache = (*MemoryCache)(nil)

// NewMemoryCache creates a cache holding at most maxEntries bodies.
// maxEntries <= 0 means unbounded.
func NewMemoryCache(maxEntries int) *MemoryCache {
	return &MemoryCache{
		entries:    make(map[string]entry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns a copy of the cached body or core.ErrCacheMiss.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, core.ErrCacheMiss
	}
	if e.expired(c.now()) {
		// A Put may have replaced the entry since RUnlock.
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur.expired(c.now()) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, core.ErrCacheMiss
	}
	return append([]byte(nil), e.body...), nil
}

// Put stores body under key. ttl <= 0 never expires.
func (c *MemoryCache) Put(ctx context.Context, key string, body []byte, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}
	c.entries[key] = entry{body: append([]byte(nil), body...), expiresAt: expiresAt}
	return nil
}

// Len reports the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictLocked drops expired entries, or the entry closest to expiry when
// nothing has expired yet.
func (c *MemoryCache) evictLocked() {
	now := c.now()
	var victim string
	var victimExp time.Time
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			continue
		}
		if victim == "" || (!e.expiresAt.IsZero() && (victimExp.IsZero() || e.expiresAt.Before(victimExp))) {
			victim, victimExp = k, e.expiresAt
		}
	}
	if len(c.entries) >= c.maxEntries && victim != "" {
		delete(c.entries, victim)
	}
}
