// Package cache holds the most recent weather snapshot across collector
// invocations. Cron cadences of a few minutes would otherwise spend an
// OpenWeatherMap call per cycle for conditions that barely move.
package cache

import (
	"context"
	"time"

	"github.com/smenon/traffic-collector/internal/models"
)

// Cache stores weather snapshots with a TTL.
// Get returns cached data if present and not expired, Set stores data with TTL.
type Cache interface {
	Get(ctx context.Context, key string) (models.WeatherSnapshot, bool, error)
	Set(ctx context.Context, key string, value models.WeatherSnapshot, ttl time.Duration) error
}

// InMemoryCache implements Cache with a map and TTL-based expiration. Only
// useful when the process runs more than one cycle (tests do); expired
// entries are removed on access. Not safe for concurrent use.
type InMemoryCache struct {
	data map[string]cacheEntry
}

type cacheEntry struct {
	value     models.WeatherSnapshot
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache instance.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
	}
}

// Get retrieves the cached snapshot for the key if present and not expired.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.WeatherSnapshot, bool, error) {
	entry, ok := c.data[key]
	if !ok {
		return models.WeatherSnapshot{}, false, nil
	}

	if time.Now().After(entry.expiresAt) {
		delete(c.data, key)
		return models.WeatherSnapshot{}, false, nil
	}

	return entry.value, true, nil
}

// Set stores a snapshot with the specified TTL.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.WeatherSnapshot, ttl time.Duration) error {
	c.data[key] = cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}
