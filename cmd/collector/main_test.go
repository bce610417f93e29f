package main

import (
	"testing"

	"go.uber.org/zap"

	"github.com/smenon/traffic-collector/internal/cache"
	"github.com/smenon/traffic-collector/internal/config"
)

func TestBuildCache(t *testing.T) {
	logger := zap.NewNop()

	c, closer, err := buildCache(&config.Config{CacheBackend: "none"}, logger)
	if err != nil || c != nil || closer != nil {
		t.Errorf("buildCache(none) = (%v, %p, %v), want nil cache", c, closer, err)
	}

	c, closer, err = buildCache(&config.Config{CacheBackend: "in_memory"}, logger)
	if err != nil {
		t.Fatalf("buildCache(in_memory) error = %v", err)
	}
	if _, ok := c.(*cache.InMemoryCache); !ok {
		t.Errorf("buildCache(in_memory) = %T, want *cache.InMemoryCache", c)
	}
	if closer != nil {
		t.Error("in_memory cache should not need a closer")
	}

	c, closer, err = buildCache(&config.Config{CacheBackend: "memcached", MemcachedAddrs: "localhost:11211"}, logger)
	if err != nil {
		t.Fatalf("buildCache(memcached) error = %v", err)
	}
	if _, ok := c.(*cache.MemcachedCache); !ok {
		t.Errorf("buildCache(memcached) = %T, want *cache.MemcachedCache", c)
	}
	if closer == nil {
		t.Error("memcached cache needs a closer")
	} else {
		closer()
	}
}
