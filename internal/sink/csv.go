package sink

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/smenon/traffic-collector/internal/models"
	"github.com/smenon/traffic-collector/internal/observability"
)

// columns is the fixed dataset schema. Consumers key on this order; it is
// written once per partition and never rewritten.
var columns = []string{
	"timestamp", "route_name", "distance_km", "duration_minutes",
	"traffic_delay_minutes", "status", "route_id", "origin",
	"destination", "hour", "day_of_week", "is_weekend",
	"temperature", "humidity", "weather_condition", "rain_1h", "wind_speed",
}

// CSVSink appends records to one CSV file per calendar day.
type CSVSink struct {
	dir    string
	logger *zap.Logger
}

// NewCSVSink creates a sink rooted at dir. The directory is created on first
// append, not here.
func NewCSVSink(dir string, logger *zap.Logger) *CSVSink {
	return &CSVSink{dir: dir, logger: logger}
}

// PartitionPath returns the partition file for a cycle date.
func (s *CSVSink) PartitionPath(cycleDate time.Time) string {
	return filepath.Join(s.dir, fmt.Sprintf("traffic_data_%s.csv", cycleDate.Format("20060102")))
}

// Append writes records to the date partition, creating it with a header row
// when absent and appending without one when it exists.
func (s *CSVSink) Append(ctx context.Context, records []models.Record, cycleDate time.Time) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	path := s.PartitionPath(cycleDate)
	_, statErr := os.Stat(path)
	writeHeader := errors.Is(statErr, os.ErrNotExist)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open partition: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(columns); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for _, rec := range records {
		if err := w.Write(row(rec)); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush partition: %w", err)
	}

	observability.RecordsAppendedTotal.WithLabelValues("csv").Add(float64(len(records)))
	if writeHeader {
		s.logger.Info("created dataset partition", zap.String("path", path), zap.Int("records", len(records)))
	} else {
		s.logger.Info("appended to dataset partition", zap.String("path", path), zap.Int("records", len(records)))
	}
	return nil
}

// row serializes one record in column order. Nil measurement or weather
// fields become empty cells, matching how the dataset marks missing data.
func row(r models.Record) []string {
	return []string{
		r.Timestamp,
		r.RouteName,
		floatCell(r.DistanceKM, 2),
		floatCell(r.DurationMinutes, 1),
		floatCell(r.TrafficDelayMinutes, 1),
		r.Status,
		r.RouteID,
		r.Origin,
		r.Destination,
		strconv.Itoa(r.Hour),
		r.DayOfWeek,
		strconv.Itoa(r.IsWeekend),
		floatCell(r.Weather.Temperature, 1),
		intCell(r.Weather.Humidity),
		stringCell(r.Weather.Condition),
		floatCell(r.Weather.Rain1H, -1),
		floatCell(r.Weather.WindSpeed, 1),
	}
}

func floatCell(v *float64, prec int) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}

func intCell(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func stringCell(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
