package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/smenon/traffic-collector/internal/models"
	"github.com/smenon/traffic-collector/internal/observability"
	"github.com/smenon/traffic-collector/internal/retry"
)

var (
	ErrInvalidAPIKey = errors.New("invalid API key")
	ErrRateLimited   = errors.New("rate limited")
	ErrNoRoute       = errors.New("no route in response")
	ErrUpstream      = errors.New("upstream failure")
)

// RoutingClient fetches live travel-time metrics for one origin/destination
// pair from the TomTom calculateRoute endpoint, retrying per its Policy.
type RoutingClient struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	policy  retry.Policy
	client  *http.Client
	logger  *zap.Logger
}

// NewRoutingClient validates the key and builds a client. timeout bounds each
// individual attempt, not the whole retry loop.
func NewRoutingClient(apiKey, baseURL string, timeout time.Duration, policy retry.Policy, logger *zap.Logger) (*RoutingClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RoutingClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		timeout: timeout,
		policy:  policy,
		logger:  logger,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type calculateRouteResponse struct {
	Routes []struct {
		Summary struct {
			LengthInMeters        float64  `json:"lengthInMeters"`
			TravelTimeInSeconds   float64  `json:"travelTimeInSeconds"`
			TrafficDelayInSeconds *float64 `json:"trafficDelayInSeconds"`
		} `json:"summary"`
	} `json:"routes"`
}

// FetchRoute runs the retry loop for one pair. The bool is false when no
// measurement could be obtained (no route found, or attempts exhausted);
// failures never propagate as errors, the caller records a placeholder.
func (c *RoutingClient) FetchRoute(ctx context.Context, origin, destination models.Place) (models.TrafficMeasurement, bool) {
	var measurement models.TrafficMeasurement

	state := c.policy.Run(func(attempt int) retry.Outcome {
		m, err := c.attempt(ctx, origin, destination)
		if err == nil {
			measurement = m
			observability.RouteFetchAttemptsTotal.WithLabelValues("success").Inc()
			return retry.OutcomeSuccess
		}

		category := CategorizeError(err)
		observability.RouteFetchAttemptsTotal.WithLabelValues(string(category)).Inc()

		switch {
		case errors.Is(err, ErrNoRoute):
			c.logger.Warn("no route data in response",
				zap.String("origin", origin.Name),
				zap.String("destination", destination.Name))
			return retry.OutcomeNoResult
		case errors.Is(err, ErrRateLimited):
			observability.RateLimitHitsTotal.Inc()
			c.logger.Warn("rate limit hit",
				zap.String("origin", origin.Name),
				zap.String("destination", destination.Name),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", c.policy.MaxAttempts))
			return retry.OutcomeRateLimited
		default:
			c.logger.Warn("route fetch attempt failed",
				zap.String("origin", origin.Name),
				zap.String("destination", destination.Name),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", c.policy.MaxAttempts),
				zap.String("category", string(category)),
				zap.Error(err))
			return retry.OutcomeTransient
		}
	})

	if state != retry.StateSucceeded {
		observability.RouteFetchesTotal.WithLabelValues(state.String()).Inc()
		return models.TrafficMeasurement{}, false
	}
	observability.RouteFetchesTotal.WithLabelValues("success").Inc()
	return measurement, true
}

func (c *RoutingClient) attempt(ctx context.Context, origin, destination models.Place) (models.TrafficMeasurement, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, origin, destination)
	if err != nil {
		return models.TrafficMeasurement{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return models.TrafficMeasurement{}, fmt.Errorf("request timeout: %w", err)
		}
		return models.TrafficMeasurement{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := c.handleErrorResponse(resp); err != nil {
		return models.TrafficMeasurement{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.TrafficMeasurement{}, fmt.Errorf("read response body: %w", err)
	}

	var apiResp calculateRouteResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.TrafficMeasurement{}, fmt.Errorf("parse response: %w", err)
	}

	if len(apiResp.Routes) == 0 {
		return models.TrafficMeasurement{}, ErrNoRoute
	}

	summary := apiResp.Routes[0].Summary
	delaySeconds := 0.0
	if summary.TrafficDelayInSeconds != nil {
		delaySeconds = *summary.TrafficDelayInSeconds
	}

	return models.TrafficMeasurement{
		DistanceKM:          roundTo(summary.LengthInMeters/1000, 2),
		DurationMinutes:     roundTo(summary.TravelTimeInSeconds/60, 1),
		TrafficDelayMinutes: roundTo(delaySeconds/60, 1),
		Status:              models.StatusSuccess,
	}, nil
}

// buildRequest assembles the path-templated calculateRoute URL:
// <base>/{oLat},{oLon}:{dLat},{dLon}/json with live-traffic car routing.
func (c *RoutingClient) buildRequest(ctx context.Context, origin, destination models.Place) (*http.Request, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	locations := fmt.Sprintf("%s,%s:%s,%s",
		formatCoord(origin.Lat), formatCoord(origin.Lon),
		formatCoord(destination.Lat), formatCoord(destination.Lon))
	base = base.JoinPath(locations, "json")

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("traffic", "true")
	params.Set("travelMode", "car")
	params.Set("departAt", "now")
	base.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", base.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *RoutingClient) handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	case http.StatusUnauthorized, http.StatusForbidden:
		// Still routed through the transient path: a key can be rejected
		// temporarily while quota resets propagate.
		return fmt.Errorf("%w: HTTP %d (check API key)", ErrUpstream, resp.StatusCode)
	default:
		return fmt.Errorf("%w: HTTP %d", ErrUpstream, resp.StatusCode)
	}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
