// Package collector sequences one collection cycle: a single weather
// snapshot, a strictly serial pass over the configured routes, and the
// assembly of one record per route regardless of fetch outcome.
package collector

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/smenon/traffic-collector/internal/config"
	"github.com/smenon/traffic-collector/internal/models"
)

// ErrMissingRoutingKey aborts a cycle before any I/O happens.
var ErrMissingRoutingKey = errors.New("routing API key not configured (TOMTOM_API_KEY)")

// RouteFetcher fetches one route's traffic measurement. The bool is false
// when no measurement could be obtained; the collector records a placeholder.
type RouteFetcher interface {
	FetchRoute(ctx context.Context, origin, destination models.Place) (models.TrafficMeasurement, bool)
}

// WeatherFetcher supplies the cycle's shared weather snapshot. It never
// fails; unavailable weather is the all-nil snapshot.
type WeatherFetcher interface {
	FetchCurrent(ctx context.Context) models.WeatherSnapshot
}

// NopWeatherFetcher stands in when weather enrichment is disabled, keeping a
// single collection code path instead of a with/without-weather variant.
type NopWeatherFetcher struct{}

func (NopWeatherFetcher) FetchCurrent(context.Context) models.WeatherSnapshot {
	return models.WeatherSnapshot{}
}

// Summary is the per-cycle outcome count.
type Summary struct {
	Succeeded int
	Total     int
}

// CycleResult carries everything one cycle produced.
type CycleResult struct {
	CycleID   string
	StartedAt time.Time
	Records   []models.Record
	Summary   Summary
	Weather   models.WeatherSnapshot
}

// Collector runs collection cycles. Routes are fetched strictly one after
// another: the upstream rate limit is shared by the whole key, so concurrency
// would only multiply 429s.
type Collector struct {
	cfg     *config.Config
	routes  []models.Route
	fetcher RouteFetcher
	weather WeatherFetcher
	limiter *rate.Limiter
	logger  *zap.Logger

	// OnCycleStart, when set, is invoked once the precondition passes.
	OnCycleStart func(cycleID string, total int)

	// Progress, when set, is invoked after each route with running counts.
	Progress func(completed, succeeded, total int)

	now func() time.Time
}

// New builds a Collector. fetcher may be nil only when the routing key is
// absent; RunCycle fails its precondition before touching it.
func New(cfg *config.Config, routeList []models.Route, fetcher RouteFetcher, weather WeatherFetcher, logger *zap.Logger) *Collector {
	if weather == nil {
		weather = NopWeatherFetcher{}
	}
	return &Collector{
		cfg:     cfg,
		routes:  routeList,
		fetcher: fetcher,
		weather: weather,
		limiter: rate.NewLimiter(rate.Every(cfg.RoutePause), 1),
		logger:  logger,
		now:     time.Now,
	}
}

// RunCycle performs one full collection pass. A single route failing never
// aborts the cycle; partial results are always delivered. Only a missing
// routing credential is fatal, and it fails before any network call.
func (c *Collector) RunCycle(ctx context.Context) (CycleResult, error) {
	if c.cfg.RoutingAPIKey == "" {
		return CycleResult{}, ErrMissingRoutingKey
	}

	cycleID := uuid.NewString()
	if c.OnCycleStart != nil {
		c.OnCycleStart(cycleID, len(c.routes))
	}
	logger := c.logger.With(zap.String("cycle_id", cycleID))
	logger.Info("starting collection cycle", zap.Int("routes", len(c.routes)))

	snapshot := c.weather.FetchCurrent(ctx)
	if snapshot.Available() {
		logger.Info("weather snapshot",
			zap.Float64("temperature", *snapshot.Temperature),
			zap.String("condition", *snapshot.Condition),
			zap.Int("humidity", *snapshot.Humidity))
	} else {
		logger.Warn("weather data unavailable")
	}

	started := c.now()
	timestamp := started.Format("2006-01-02 15:04:05")

	records := make([]models.Record, 0, len(c.routes))
	succeeded := 0
	for _, route := range c.routes {
		// Paces route starts at one per RoutePause; the first route is
		// admitted immediately.
		if err := c.limiter.Wait(ctx); err != nil {
			logger.Warn("pacing interrupted", zap.Error(err))
		}

		logger.Info("collecting route", zap.String("route", route.Name))
		measurement, ok := c.fetcher.FetchRoute(ctx, route.Origin, route.Destination)

		records = append(records, buildRecord(route, timestamp, started, snapshot, measurement, ok))
		if ok {
			succeeded++
			logger.Info("route collected",
				zap.String("route", route.Name),
				zap.Float64("duration_minutes", measurement.DurationMinutes),
				zap.Float64("traffic_delay_minutes", measurement.TrafficDelayMinutes))
		} else {
			logger.Warn("route collection failed", zap.String("route", route.Name))
		}

		if c.Progress != nil {
			c.Progress(len(records), succeeded, len(c.routes))
		}
	}

	summary := Summary{Succeeded: succeeded, Total: len(c.routes)}
	logger.Info("collection cycle complete",
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("total", summary.Total))

	return CycleResult{
		CycleID:   cycleID,
		StartedAt: started,
		Records:   records,
		Summary:   summary,
		Weather:   snapshot,
	}, nil
}

// buildRecord flattens route identity, temporal context, the measurement and
// the shared weather into one output row. Failed fetches keep nil traffic
// fields and status "failed" but still carry identity, time and weather.
func buildRecord(route models.Route, timestamp string, now time.Time, weather models.WeatherSnapshot, m models.TrafficMeasurement, ok bool) models.Record {
	rec := models.Record{
		Timestamp:   timestamp,
		RouteName:   route.Name,
		Status:      models.StatusFailed,
		RouteID:     route.ID,
		Origin:      route.Origin.Name,
		Destination: route.Destination.Name,
		Hour:        now.Hour(),
		DayOfWeek:   now.Weekday().String(),
		IsWeekend:   isWeekend(now),
		Weather:     weather,
	}
	if ok {
		rec.Status = m.Status
		rec.DistanceKM = &m.DistanceKM
		rec.DurationMinutes = &m.DurationMinutes
		rec.TrafficDelayMinutes = &m.TrafficDelayMinutes
	}
	return rec
}

func isWeekend(t time.Time) int {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return 1
	}
	return 0
}
