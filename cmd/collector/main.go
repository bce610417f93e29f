package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/smenon/traffic-collector/internal/cache"
	"github.com/smenon/traffic-collector/internal/client"
	"github.com/smenon/traffic-collector/internal/collector"
	"github.com/smenon/traffic-collector/internal/config"
	"github.com/smenon/traffic-collector/internal/observability"
	"github.com/smenon/traffic-collector/internal/retry"
	"github.com/smenon/traffic-collector/internal/routes"
	"github.com/smenon/traffic-collector/internal/sink"
	"github.com/smenon/traffic-collector/internal/status"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config/collector.yaml", "path to collector config file")
	flag.Parse()

	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Fatal("collection cycle failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	routeList, err := routes.Load(cfg.RoutesFile)
	if err != nil {
		return err
	}
	logger.Info("loaded routes", zap.Int("count", len(routeList)), zap.String("file", cfg.RoutesFile))

	snapCache, closeCache, err := buildCache(cfg, logger)
	if err != nil {
		return err
	}
	if closeCache != nil {
		defer closeCache()
	}

	weatherClient := client.NewWeatherClient(
		cfg.WeatherAPIKey,
		cfg.WeatherAPIURL,
		cfg.WeatherLat,
		cfg.WeatherLon,
		cfg.RequestTimeout,
		snapCache,
		cfg.CacheTTL,
		logger,
	)
	var weather collector.WeatherFetcher = weatherClient
	if !cfg.WeatherEnabled {
		weather = collector.NopWeatherFetcher{}
		logger.Info("weather enrichment disabled")
	}

	var fetcher collector.RouteFetcher
	if cfg.RoutingAPIKey != "" {
		policy := retry.Policy{
			MaxAttempts:    cfg.MaxAttempts,
			RateLimitDelay: cfg.RateLimitBackoff,
			TransientDelay: cfg.TransientBackoff,
		}
		routingClient, err := client.NewRoutingClient(cfg.RoutingAPIKey, cfg.RoutingAPIURL, cfg.RequestTimeout, policy, logger)
		if err != nil {
			return err
		}
		fetcher = routingClient
	}

	coll := collector.New(cfg, routeList, fetcher, weather, logger)

	tracker := status.NewTracker()
	coll.OnCycleStart = tracker.Begin
	coll.Progress = tracker.Update
	if cfg.ListenAddr != "" {
		srv := status.NewServer(cfg.ListenAddr, tracker, logger)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	start := time.Now()
	result, err := coll.RunCycle(ctx)
	observability.CycleDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		pushMetrics(cfg, logger)
		return err
	}

	csvSink := sink.NewCSVSink(cfg.DataDir, logger)
	if err := csvSink.Append(ctx, result.Records, result.StartedAt); err != nil {
		return err
	}

	// The Postgres mirror is best-effort: the CSV partition is the dataset
	// of record, so mirror failures are logged and the cycle still succeeds.
	if cfg.DatabaseURL != "" {
		mirrorToPostgres(ctx, cfg.DatabaseURL, result, logger)
	}

	logger.Info("cycle summary",
		zap.String("cycle_id", result.CycleID),
		zap.Int("succeeded", result.Summary.Succeeded),
		zap.Int("total", result.Summary.Total))

	pushMetrics(cfg, logger)
	return nil
}

func buildCache(cfg *config.Config, logger *zap.Logger) (cache.Cache, func(), error) {
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("weather cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
		return mc, func() { _ = mc.Close() }, nil
	case "in_memory":
		logger.Info("weather cache backend: in_memory")
		return cache.NewInMemoryCache(), nil, nil
	default:
		return nil, nil, nil
	}
}

func mirrorToPostgres(ctx context.Context, databaseURL string, result collector.CycleResult, logger *zap.Logger) {
	pg, err := sink.NewPostgresSink(ctx, databaseURL, logger)
	if err != nil {
		logger.Error("postgres sink unavailable", zap.Error(err))
		return
	}
	defer pg.Close()

	if err := pg.EnsureSchema(ctx); err != nil {
		logger.Error("postgres schema", zap.Error(err))
		return
	}
	if err := pg.Append(ctx, result.Records, result.StartedAt); err != nil {
		logger.Error("postgres append", zap.Error(err))
	}
}

func pushMetrics(cfg *config.Config, logger *zap.Logger) {
	if cfg.PushgatewayURL == "" {
		return
	}
	if err := observability.PushMetrics(cfg.PushgatewayURL, "traffic_collector"); err != nil {
		logger.Warn("metrics push failed", zap.Error(err))
	}
}
