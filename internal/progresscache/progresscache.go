// Copyright 2025 James Ross
package progresscache

import (
	"sync"
	"time"
)

// Progress is the most recent progress tuple for one job (spec.md §3).
type Progress struct {
	JobID      string      `json:"jobId"`
	Percentage int         `json:"percentage"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

type entry struct {
	progress  Progress
	expiresAt time.Time
}

// DefaultTTL matches spec.md's 5-minute progress expiry.
const DefaultTTL = 5 * time.Minute

// Cache is a short-TTL key/value store keyed by job id, grounded on the
// teacher's calendar-view CacheManager: a guarded map plus a background
// cleanup ticker at half the TTL. Stale reads are acceptable (spec §4.3), so
// Get never blocks on cleanup.
type Cache struct {
	mu            sync.RWMutex
	entries       map[string]entry
	ttl           time.Duration
	cleanupTicker *time.Ticker
	stop          chan struct{}
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		entries:       make(map[string]entry),
		ttl:           ttl,
		cleanupTicker: time.NewTicker(ttl / 2),
		stop:          make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

func (c *Cache) Put(id string, p Progress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	p.JobID = id
	c.entries[id] = entry{progress: p, expiresAt: time.Now().Add(c.ttl)}
}

func (c *Cache) Get(id string) (Progress, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok || time.Now().After(e.expiresAt) {
		return Progress{}, false
	}
	return e.progress, true
}

func (c *Cache) cleanupLoop() {
	for {
		select {
		case <-c.cleanupTicker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for id, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, id)
		}
	}
}

func (c *Cache) Stop() {
	c.cleanupTicker.Stop()
	close(c.stop)
}
