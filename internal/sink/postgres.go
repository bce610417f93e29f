package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/smenon/traffic-collector/internal/models"
	"github.com/smenon/traffic-collector/internal/observability"
)

// PostgresSink mirrors cycle records into a traffic_records table for teams
// querying the dataset with SQL instead of reading the CSV partitions.
type PostgresSink struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresSink connects a pool for databaseURL.
func NewPostgresSink(ctx context.Context, databaseURL string, logger *zap.Logger) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresSink{pool: pool, logger: logger}, nil
}

// EnsureSchema creates the traffic_records table if missing. The collector
// owns this table; there is no separate migration step.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS traffic_records (
    id                    BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    collected_on          DATE NOT NULL,
    ts                    TIMESTAMP NOT NULL,
    route_name            TEXT NOT NULL,
    distance_km           DOUBLE PRECISION,
    duration_minutes      DOUBLE PRECISION,
    traffic_delay_minutes DOUBLE PRECISION,
    status                TEXT NOT NULL,
    route_id              TEXT NOT NULL,
    origin                TEXT NOT NULL,
    destination           TEXT NOT NULL,
    hour                  SMALLINT NOT NULL,
    day_of_week           TEXT NOT NULL,
    is_weekend            SMALLINT NOT NULL,
    temperature           DOUBLE PRECISION,
    humidity              SMALLINT,
    weather_condition     TEXT,
    rain_1h               DOUBLE PRECISION,
    wind_speed            DOUBLE PRECISION
)`)
	if err != nil {
		return fmt.Errorf("ensure traffic_records table: %w", err)
	}
	return nil
}

// Append batch-inserts the cycle's records.
func (s *PostgresSink) Append(ctx context.Context, records []models.Record, cycleDate time.Time) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `INSERT INTO traffic_records (collected_on, ts, route_name, distance_km, duration_minutes,
traffic_delay_minutes, status, route_id, origin, destination, hour, day_of_week, is_weekend,
temperature, humidity, weather_condition, rain_1h, wind_speed)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`

	for _, r := range records {
		ts, err := time.ParseInLocation("2006-01-02 15:04:05", r.Timestamp, time.Local)
		if err != nil {
			return fmt.Errorf("parse record timestamp %q: %w", r.Timestamp, err)
		}
		batch.Queue(query,
			cycleDate, ts, r.RouteName, r.DistanceKM, r.DurationMinutes,
			r.TrafficDelayMinutes, r.Status, r.RouteID, r.Origin, r.Destination,
			r.Hour, r.DayOfWeek, r.IsWeekend,
			r.Weather.Temperature, r.Weather.Humidity, r.Weather.Condition,
			r.Weather.Rain1H, r.Weather.WindSpeed)
	}

	res := s.pool.SendBatch(ctx, batch)
	defer res.Close()

	for range records {
		if _, err := res.Exec(); err != nil {
			return fmt.Errorf("insert traffic record: %w", err)
		}
	}

	observability.RecordsAppendedTotal.WithLabelValues("postgres").Add(float64(len(records)))
	s.logger.Info("mirrored records to postgres", zap.Int("records", len(records)))
	return nil
}

// Close releases the pool.
func (s *PostgresSink) Close() {
	s.pool.Close()
}
