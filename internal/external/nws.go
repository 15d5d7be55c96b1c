package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"tempguard/internal/types"
)

const (
	nwsDefaultBase      = "https://api.weather.gov"
	nwsDefaultUserAgent = "TempAlertPortal/1.0"

	// forecastHours is how many hourly periods a forecast carries.
	forecastHours = 24
)

// FallbackRecorder is told whenever the weather client serves a synthetic
// forecast instead of an upstream one.
type FallbackRecorder interface {
	RecordWeatherFallback(ctx context.Context, reason string)
}

// NWSClientConfig configures an NWSClient.
type NWSClientConfig struct {
	BaseURL   string
	UserAgent string
	// FallbackEnabled makes HourlyForecast return a synthetic curve instead
	// of an error when the upstream call fails.
	FallbackEnabled bool
	Logger          *slog.Logger
	Metrics         FallbackRecorder

	// Now and RandFloat drive the synthetic curve. Defaults are time.Now
	// and math/rand/v2.Float64.
	Now       func() time.Time
	RandFloat func() float64
}

// NWSClient implements WeatherProvider against api.weather.gov.
type NWSClient struct {
	base      *BaseClient
	baseURL   string
	fallback  bool
	logger    *slog.Logger
	metrics   FallbackRecorder
	now       func() time.Time
	randFloat func() float64
}

// NewNWSClient builds an NWSClient with its own breaker.
func NewNWSClient(httpClient *http.Client, cfg NWSClientConfig, opts ...BaseClientOption) *NWSClient {
	ua := cfg.UserAgent
	if ua == "" {
		ua = nwsDefaultUserAgent
	}
	opts = append([]BaseClientOption{WithUpstreamCode(types.ErrCodeUpstreamWeather)}, opts...)
	base := NewBaseClient(httpClient, "nws", DefaultRetryPolicy(), ua, opts...)
	return newNWSClientWithBase(base, cfg)
}

func newNWSClientWithBase(base *BaseClient, cfg NWSClientConfig) *NWSClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = nwsDefaultBase
	}
	c := &NWSClient{
		base:      base,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		fallback:  cfg.FallbackEnabled,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		now:       cfg.Now,
		randFloat: cfg.RandFloat,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.randFloat == nil {
		c.randFloat = rand.Float64
	}
	return c
}

type nwsForecastResponse struct {
	Properties struct {
		Periods []nwsPeriod `json:"periods"`
	} `json:"properties"`
}

type nwsPeriod struct {
	StartTime       string  `json:"startTime"`
	Temperature     float64 `json:"temperature"`
	TemperatureUnit string  `json:"temperatureUnit"`
}

// HourlyForecast returns up to 24 hourly points for grid. When the upstream
// fails or returns no periods and fallback is enabled, it logs a warning and
// returns SyntheticForecast instead.
func (c *NWSClient) HourlyForecast(ctx context.Context, grid types.GridDescriptor) ([]types.ForecastPoint, error) {
	points, err := c.fetch(ctx, grid)
	if err == nil {
		return points, nil
	}
	if !c.fallback {
		return nil, err
	}

	c.logger.WarnContext(ctx, "weather upstream unavailable, serving synthetic forecast",
		"office", grid.Office,
		"grid_x", grid.X,
		"grid_y", grid.Y,
		"error", err,
	)
	if c.metrics != nil {
		c.metrics.RecordWeatherFallback(ctx, grid.Office)
	}
	return SyntheticForecast(c.now(), c.randFloat), nil
}

func (c *NWSClient) fetch(ctx context.Context, grid types.GridDescriptor) ([]types.ForecastPoint, error) {
	url := fmt.Sprintf("%s/gridpoints/%s/%d,%d/forecast/hourly", c.baseURL, grid.Office, grid.X, grid.Y)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build forecast request", err)
	}
	req.Header.Set("Accept", "application/geo+json")

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather,
			fmt.Sprintf("NWS returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var payload nwsForecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather, "failed to decode NWS forecast", err)
	}

	periods := payload.Properties.Periods
	if len(periods) == 0 {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather, "NWS forecast has no periods", nil)
	}
	if len(periods) > forecastHours {
		periods = periods[:forecastHours]
	}

	points := make([]types.ForecastPoint, 0, len(periods))
	for _, p := range periods {
		ts, err := time.Parse(time.RFC3339, p.StartTime)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeUpstreamWeather,
				fmt.Sprintf("bad period start time %q", p.StartTime), err)
		}
		points = append(points, types.ForecastPoint{Time: ts.UTC(), TempF: toFahrenheit(p.Temperature, p.TemperatureUnit)})
	}
	return points, nil
}

// toFahrenheit passes Fahrenheit values through and converts anything else
// from Celsius, rounding to a whole degree.
func toFahrenheit(value float64, unit string) float64 {
	if unit == "F" {
		return value
	}
	return math.Round(value*9/5 + 32)
}

// SyntheticForecast returns 24 hourly points starting at now following
// round(55 + 15*sin((i-6)*pi/12) + noise), where noise is drawn uniformly
// from [-2, 2) using randFloat.
func SyntheticForecast(now time.Time, randFloat func() float64) []types.ForecastPoint {
	points := make([]types.ForecastPoint, forecastHours)
	for i := range points {
		curve := 55 + 15*math.Sin(float64(i-6)*math.Pi/12)
		noise := randFloat()*4 - 2
		points[i] = types.ForecastPoint{
			Time:  now.Add(time.Duration(i) * time.Hour).UTC(),
			TempF: math.Round(curve + noise),
		}
	}
	return points
}

var _ WeatherProvider = (*NWSClient)(nil)
