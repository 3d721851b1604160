package cache

import (
	"sync"
	"time"
)

// TTLBool is a single-slot boolean cache with a short TTL, used wherever a
// hot path needs a cached decision (health monitor's is_system_healthy,
// router's market-data-validator) without going through a Cache for a
// trivial true/false.
type TTLBool struct {
	mu     sync.Mutex
	value  bool
	expiry time.Time
	ttl    time.Duration
}

// NewTTLBool creates a cache that holds a computed value for ttl.
func NewTTLBool(ttl time.Duration) *TTLBool {
	return &TTLBool{ttl: ttl}
}

// Get returns the cached value if still fresh.
func (c *TTLBool) Get() (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Now().After(c.expiry) {
		return false, false
	}
	return c.value, true
}

// Set stores value, resetting the TTL clock.
func (c *TTLBool) Set(value bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
	c.expiry = time.Now().Add(c.ttl)
}

// GetOrCompute returns the cached value, or computes, caches, and returns a
// fresh one via fn.
func (c *TTLBool) GetOrCompute(fn func() bool) bool {
	if v, ok := c.Get(); ok {
		return v
	}
	v := fn()
	c.Set(v)
	return v
}
