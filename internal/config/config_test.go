package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "collector.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TOMTOM_API_KEY", "")
	t.Setenv("OPENWEATHER_API_KEY", "")
	t.Setenv("CACHE_BACKEND", "")
	t.Setenv("MEMCACHED_ADDRS", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PUSHGATEWAY_URL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.RoutesFile != "config/routes.json" {
		t.Errorf("RoutesFile = %q, want config/routes.json", cfg.RoutesFile)
	}
	if cfg.DataDir != "data/raw" {
		t.Errorf("DataDir = %q, want data/raw", cfg.DataDir)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("RequestTimeout = %v, want 10s", cfg.RequestTimeout)
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.RateLimitBackoff != 60*time.Second {
		t.Errorf("RateLimitBackoff = %v, want 60s", cfg.RateLimitBackoff)
	}
	if cfg.TransientBackoff != 5*time.Second {
		t.Errorf("TransientBackoff = %v, want 5s", cfg.TransientBackoff)
	}
	if cfg.RoutePause != time.Second {
		t.Errorf("RoutePause = %v, want 1s", cfg.RoutePause)
	}
	if !cfg.WeatherEnabled {
		t.Error("WeatherEnabled = false, want true by default")
	}
	if cfg.WeatherLat != 12.9716 || cfg.WeatherLon != 77.5946 {
		t.Errorf("weather point = %v,%v, want Bangalore default", cfg.WeatherLat, cfg.WeatherLon)
	}
	if cfg.CacheBackend != "none" {
		t.Errorf("CacheBackend = %q, want none", cfg.CacheBackend)
	}
	if cfg.RoutingAPIKey != "" {
		t.Errorf("RoutingAPIKey = %q, want empty", cfg.RoutingAPIKey)
	}
}

func TestLoad_FileValues(t *testing.T) {
	t.Setenv("TOMTOM_API_KEY", "tt-key")
	t.Setenv("OPENWEATHER_API_KEY", "ow-key")
	t.Setenv("CACHE_BACKEND", "")
	t.Setenv("MEMCACHED_ADDRS", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PUSHGATEWAY_URL", "")

	path := writeConfig(t, `
routes:
  file: /etc/collector/routes.json
output:
  dir: /var/lib/collector
routing_api:
  timeout: 4s
weather_api:
  enabled: false
  lat: 51.5
  lon: -0.12
retry:
  max_attempts: 5
  rate_limit_backoff: 30s
  transient_backoff: 2s
pacing:
  route_pause: 250ms
cache:
  backend: in_memory
  ttl: 5m
monitoring:
  listen_addr: ":9108"
  pushgateway_url: http://gateway:9091
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.RoutesFile != "/etc/collector/routes.json" {
		t.Errorf("RoutesFile = %q", cfg.RoutesFile)
	}
	if cfg.DataDir != "/var/lib/collector" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.RequestTimeout != 4*time.Second {
		t.Errorf("RequestTimeout = %v, want 4s", cfg.RequestTimeout)
	}
	if cfg.WeatherEnabled {
		t.Error("WeatherEnabled = true, want false")
	}
	if cfg.WeatherLat != 51.5 || cfg.WeatherLon != -0.12 {
		t.Errorf("weather point = %v,%v", cfg.WeatherLat, cfg.WeatherLon)
	}
	if cfg.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.MaxAttempts)
	}
	if cfg.RateLimitBackoff != 30*time.Second {
		t.Errorf("RateLimitBackoff = %v, want 30s", cfg.RateLimitBackoff)
	}
	if cfg.RoutePause != 250*time.Millisecond {
		t.Errorf("RoutePause = %v, want 250ms", cfg.RoutePause)
	}
	if cfg.CacheBackend != "in_memory" {
		t.Errorf("CacheBackend = %q, want in_memory", cfg.CacheBackend)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want 5m", cfg.CacheTTL)
	}
	if cfg.ListenAddr != ":9108" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.PushgatewayURL != "http://gateway:9091" {
		t.Errorf("PushgatewayURL = %q", cfg.PushgatewayURL)
	}
	if cfg.RoutingAPIKey != "tt-key" || cfg.WeatherAPIKey != "ow-key" {
		t.Errorf("API keys not read from env: %q, %q", cfg.RoutingAPIKey, cfg.WeatherAPIKey)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("TOMTOM_API_KEY", "")
	t.Setenv("OPENWEATHER_API_KEY", "")
	t.Setenv("CACHE_BACKEND", "memcached")
	t.Setenv("MEMCACHED_ADDRS", "mc1:11211,mc2:11211")
	t.Setenv("DATABASE_URL", "postgres://collector@db/traffic")
	t.Setenv("PUSHGATEWAY_URL", "http://env-gateway:9091")

	path := writeConfig(t, `
cache:
  backend: in_memory
monitoring:
  pushgateway_url: http://file-gateway:9091
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CacheBackend != "memcached" {
		t.Errorf("CacheBackend = %q, want memcached from env", cfg.CacheBackend)
	}
	if cfg.MemcachedAddrs != "mc1:11211,mc2:11211" {
		t.Errorf("MemcachedAddrs = %q", cfg.MemcachedAddrs)
	}
	if cfg.DatabaseURL != "postgres://collector@db/traffic" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.PushgatewayURL != "http://env-gateway:9091" {
		t.Errorf("PushgatewayURL = %q, want env value", cfg.PushgatewayURL)
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("TOMTOM_API_KEY", "")
	t.Setenv("CACHE_BACKEND", "")

	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "routes: [\n"},
		{"bad cache backend", "cache:\n  backend: redis\n"},
		{"bad latitude", "weather_api:\n  lat: 123.0\n  lon: 10.0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("Load() expected error, got nil")
			}
		})
	}
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	t.Setenv("TOMTOM_API_KEY", "")
	t.Setenv("CACHE_BACKEND", "")

	path := writeConfig(t, `
retry:
  rate_limit_backoff: not-a-duration
  transient_backoff: -5s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RateLimitBackoff != 60*time.Second {
		t.Errorf("RateLimitBackoff = %v, want 60s fallback", cfg.RateLimitBackoff)
	}
	if cfg.TransientBackoff != 5*time.Second {
		t.Errorf("TransientBackoff = %v, want 5s fallback", cfg.TransientBackoff)
	}
}
