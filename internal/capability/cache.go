package capability

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"postern/pkg/logging"
)

// Cache wraps a discovery Client with a TTL cache. Concurrent callers that
// miss the cache share a single in-flight discovery request.
type Cache struct {
	client *Client
	ttl    time.Duration

	mu        sync.RWMutex
	defs      []Definition
	fetchedAt time.Time

	group singleflight.Group
}

// NewCache creates a cache in front of client. A non-positive ttl disables
// caching and every Get hits the backend.
func NewCache(client *Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached definitions, refreshing from the backend when the
// entry is stale or forceFresh is set. On refresh failure the error is
// returned and any previous cache entry is left untouched.
func (c *Cache) Get(ctx context.Context, token string, forceFresh bool) ([]Definition, error) {
	if !forceFresh {
		if defs, ok := c.cached(); ok {
			return defs, nil
		}
	}

	result, err, _ := c.group.Do("discover", func() (interface{}, error) {
		// Double-check under the flight: another caller may have just
		// refreshed while this one was queued.
		if !forceFresh {
			if defs, ok := c.cached(); ok {
				return defs, nil
			}
		}
		defs, err := c.client.Discover(ctx, token)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.defs = defs
		c.fetchedAt = time.Now()
		c.mu.Unlock()
		logging.Debug("Discovery", "Tool cache refreshed with %d entries", len(defs))
		return defs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]Definition), nil
}

// Clear drops the cached definitions so the next Get refetches.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.defs = nil
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}

func (c *Cache) cached() ([]Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.defs == nil || c.ttl <= 0 {
		return nil, false
	}
	if time.Since(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	return c.defs, true
}
