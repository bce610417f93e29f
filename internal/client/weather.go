package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/smenon/traffic-collector/internal/cache"
	"github.com/smenon/traffic-collector/internal/models"
	"github.com/smenon/traffic-collector/internal/observability"
)

// WeatherClient fetches the current conditions for a fixed point from
// OpenWeatherMap. It never fails outward: a missing key, a bad response or a
// network error all degrade to the all-nil snapshot. Weather is best-effort
// and cheap to omit, so there are no retries either.
type WeatherClient struct {
	apiKey   string
	apiURL   string
	lat      float64
	lon      float64
	client   *http.Client
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewWeatherClient builds a weather client for the given coordinates. An
// empty apiKey is allowed and disables fetching. snapCache may be nil.
func NewWeatherClient(apiKey, apiURL string, lat, lon float64, timeout time.Duration, snapCache cache.Cache, cacheTTL time.Duration, logger *zap.Logger) *WeatherClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WeatherClient{
		apiKey:   apiKey,
		apiURL:   apiURL,
		lat:      lat,
		lon:      lon,
		cache:    snapCache,
		cacheTTL: cacheTTL,
		logger:   logger,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type openWeatherResponse struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main string `json:"main"`
	} `json:"weather"`
	Rain struct {
		OneHour float64 `json:"1h"`
	} `json:"rain"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

// FetchCurrent returns the current snapshot, or the all-nil snapshot when
// weather is unavailable for any reason. The condition is logged, never
// propagated.
func (c *WeatherClient) FetchCurrent(ctx context.Context) models.WeatherSnapshot {
	if c.apiKey == "" {
		c.logger.Warn("weather API key not set, weather fields will be null")
		observability.WeatherFetchesTotal.WithLabelValues("skipped").Inc()
		return models.WeatherSnapshot{}
	}

	if c.cache != nil {
		snap, ok, err := c.cache.Get(ctx, c.cacheKey())
		if err != nil {
			c.logger.Warn("weather cache read failed, fetching live", zap.Error(err))
		} else if ok && snap.Available() {
			observability.WeatherFetchesTotal.WithLabelValues("cached").Inc()
			return snap
		}
	}

	snap, err := c.fetch(ctx)
	if err != nil {
		c.logger.Warn("weather fetch failed, weather fields will be null", zap.Error(err))
		observability.WeatherFetchesTotal.WithLabelValues("failed").Inc()
		return models.WeatherSnapshot{}
	}
	observability.WeatherFetchesTotal.WithLabelValues("success").Inc()

	if c.cache != nil {
		if err := c.cache.Set(ctx, c.cacheKey(), snap, c.cacheTTL); err != nil {
			c.logger.Warn("weather cache write failed", zap.Error(err))
		}
	}
	return snap
}

func (c *WeatherClient) fetch(ctx context.Context) (models.WeatherSnapshot, error) {
	req, err := c.buildRequest(ctx)
	if err != nil {
		return models.WeatherSnapshot{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return models.WeatherSnapshot{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: HTTP %d", ErrUpstream, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.WeatherSnapshot{}, fmt.Errorf("read response body: %w", err)
	}

	var apiResp openWeatherResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.WeatherSnapshot{}, fmt.Errorf("parse response: %w", err)
	}
	if len(apiResp.Weather) == 0 {
		return models.WeatherSnapshot{}, fmt.Errorf("parse response: weather list empty")
	}

	// All fields populated together; rain defaults to 0 when upstream omits
	// the rain block (it does whenever it is not raining).
	temp := roundTo(apiResp.Main.Temp, 1)
	humidity := apiResp.Main.Humidity
	condition := apiResp.Weather[0].Main
	rain := apiResp.Rain.OneHour
	wind := roundTo(apiResp.Wind.Speed, 1)
	return models.WeatherSnapshot{
		Temperature: &temp,
		Humidity:    &humidity,
		Condition:   &condition,
		Rain1H:      &rain,
		WindSpeed:   &wind,
	}, nil
}

func (c *WeatherClient) buildRequest(ctx context.Context) (*http.Request, error) {
	base, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(c.lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(c.lon, 'f', -1, 64))
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	base.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", base.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *WeatherClient) cacheKey() string {
	return fmt.Sprintf("weather:%s,%s",
		strconv.FormatFloat(c.lat, 'f', 4, 64),
		strconv.FormatFloat(c.lon, 'f', 4, 64))
}
