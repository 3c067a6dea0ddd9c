package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/smartshop/backend/internal/domain"
)

const defaultCleanupInterval = 10 * time.Minute

// entry is one cached value with its expiry
type entry struct {
	value   any
	expires time.Time
}

// MemoryCache is a TTL cache for upstream catalog responses. Values are
// stored as their JSON form decoded back into plain maps and slices, so
// readers never share memory with the writer.
type MemoryCache struct {
	data  map[string]entry
	mutex sync.RWMutex
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
}

// NewMemoryCache creates a cache that sweeps expired entries every interval.
// A zero interval uses ten minutes.
func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	if cleanupInterval <= 0 {
		cleanupInterval = defaultCleanupInterval
	}
	c := &MemoryCache{
		data: make(map[string]entry),
		now:  time.Now,
		stop: make(chan struct{}),
	}
	go c.sweep(cleanupInterval)
	return c
}

// Get returns the value for key or domain.ErrCacheMiss.
func (c *MemoryCache) Get(ctx context.Context, key string) (any, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	e, ok := c.data[key]
	if !ok || c.now().After(e.expires) {
		return nil, domain.ErrCacheMiss
	}
	return e.value, nil
}

// Set stores value under key for ttl.
func (c *MemoryCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	var stored any
	if err := json.Unmarshal(data, &stored); err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data[key] = entry{value: stored, expires: c.now().Add(ttl)}
	return nil
}

// Size returns the number of stored entries, expired ones included until swept.
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

// Close stops the background sweeper.
func (c *MemoryCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *MemoryCache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *MemoryCache) removeExpired() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	now := c.now()
	for key, e := range c.data {
		if now.After(e.expires) {
			delete(c.data, key)
		}
	}
}
