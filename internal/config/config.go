package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Bangalore city center, the weather reference point for every route.
const (
	defaultWeatherLat = 12.9716
	defaultWeatherLon = 77.5946
)

// Config holds collector configuration loaded from YAML and env. API keys
// come from the environment only and are injected here so nothing below main
// reads globals.
type Config struct {
	RoutesFile string
	DataDir    string

	RoutingAPIKey string
	RoutingAPIURL string
	WeatherAPIKey string
	WeatherAPIURL string

	WeatherEnabled bool
	WeatherLat     float64
	WeatherLon     float64

	RequestTimeout   time.Duration
	MaxAttempts      int
	RateLimitBackoff time.Duration
	TransientBackoff time.Duration
	RoutePause       time.Duration

	CacheBackend          string // "none", "in_memory" or "memcached"
	CacheTTL              time.Duration
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	DatabaseURL string

	ListenAddr     string
	PushgatewayURL string
}

type fileConfig struct {
	Routes struct {
		File string `yaml:"file"`
	} `yaml:"routes"`

	Output struct {
		Dir string `yaml:"dir"`
	} `yaml:"output"`

	RoutingAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"routing_api"`

	WeatherAPI struct {
		Enabled *bool   `yaml:"enabled"`
		URL     string  `yaml:"url"`
		Lat     float64 `yaml:"lat"`
		Lon     float64 `yaml:"lon"`
	} `yaml:"weather_api"`

	Retry struct {
		MaxAttempts      int    `yaml:"max_attempts"`
		RateLimitBackoff string `yaml:"rate_limit_backoff"`
		TransientBackoff string `yaml:"transient_backoff"`
	} `yaml:"retry"`

	Pacing struct {
		RoutePause string `yaml:"route_pause"`
	} `yaml:"pacing"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Monitoring struct {
		ListenAddr     string `yaml:"listen_addr"`
		PushgatewayURL string `yaml:"pushgateway_url"`
	} `yaml:"monitoring"`
}

// Load reads configuration from the YAML file at path (missing file means
// all defaults) and overlays environment variables. The routing key absence
// is not an error here: the collector reports it as a cycle-level failure so
// that misconfiguration shows up in the run outcome, not as a config panic.
func Load(path string) (*Config, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.RoutesFile = fc.Routes.File
	if cfg.RoutesFile == "" {
		cfg.RoutesFile = "config/routes.json"
	}
	cfg.DataDir = fc.Output.Dir
	if cfg.DataDir == "" {
		cfg.DataDir = "data/raw"
	}

	cfg.RoutingAPIKey = strings.TrimSpace(os.Getenv("TOMTOM_API_KEY"))
	cfg.WeatherAPIKey = strings.TrimSpace(os.Getenv("OPENWEATHER_API_KEY"))

	cfg.RoutingAPIURL = fc.RoutingAPI.URL
	if cfg.RoutingAPIURL == "" {
		cfg.RoutingAPIURL = "https://api.tomtom.com/routing/1/calculateRoute"
	}
	cfg.RequestTimeout = parseDuration(fc.RoutingAPI.Timeout, 10*time.Second)

	cfg.WeatherEnabled = true
	if fc.WeatherAPI.Enabled != nil {
		cfg.WeatherEnabled = *fc.WeatherAPI.Enabled
	}
	cfg.WeatherAPIURL = fc.WeatherAPI.URL
	if cfg.WeatherAPIURL == "" {
		cfg.WeatherAPIURL = "https://api.openweathermap.org/data/2.5/weather"
	}
	cfg.WeatherLat = fc.WeatherAPI.Lat
	cfg.WeatherLon = fc.WeatherAPI.Lon
	if cfg.WeatherLat == 0 && cfg.WeatherLon == 0 {
		cfg.WeatherLat = defaultWeatherLat
		cfg.WeatherLon = defaultWeatherLon
	}

	cfg.MaxAttempts = fc.Retry.MaxAttempts
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	cfg.RateLimitBackoff = parseDuration(fc.Retry.RateLimitBackoff, 60*time.Second)
	cfg.TransientBackoff = parseDuration(fc.Retry.TransientBackoff, 5*time.Second)
	cfg.RoutePause = parseDuration(fc.Pacing.RoutePause, time.Second)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "none"
	}
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 10*time.Minute)
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	cfg.ListenAddr = fc.Monitoring.ListenAddr
	cfg.PushgatewayURL = strings.TrimSpace(os.Getenv("PUSHGATEWAY_URL"))
	if cfg.PushgatewayURL == "" {
		cfg.PushgatewayURL = fc.Monitoring.PushgatewayURL
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration parses a duration string and returns defaultVal if parsing
// fails or the result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func validate(cfg *Config) error {
	switch cfg.CacheBackend {
	case "none", "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be none, in_memory or memcached, got %q", cfg.CacheBackend)
	}
	if cfg.WeatherLat < -90 || cfg.WeatherLat > 90 || cfg.WeatherLon < -180 || cfg.WeatherLon > 180 {
		return fmt.Errorf("weather_api.lat/lon out of range: %v, %v", cfg.WeatherLat, cfg.WeatherLon)
	}
	return nil
}
