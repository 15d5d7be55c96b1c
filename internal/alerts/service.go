package alerts

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tempguard/internal/types"
)

// snapshotLookback bounds how far back "yesterday" snapshots are read.
const snapshotLookback = 48 * time.Hour

// LocationStore reads monitored locations.
type LocationStore interface {
	GetByID(ctx context.Context, id string) (*types.LocationConfig, error)
	ListActive(ctx context.Context) ([]*types.LocationConfig, error)
}

// SnapshotStore appends and reads temperature snapshots.
type SnapshotStore interface {
	Create(ctx context.Context, s *types.TemperatureSnapshot) error
	ListRecent(ctx context.Context, locationID string, since time.Time, limit int) ([]types.TemperatureSnapshot, error)
}

// AlertEventStore persists alert events.
type AlertEventStore interface {
	Create(ctx context.Context, e *types.AlertEvent) error
	MarkProcessed(ctx context.Context, id string) error
}

// WeatherProvider supplies hourly forecasts. It degrades to synthetic data
// on its own; an error here means the fallback was disabled or failed.
type WeatherProvider interface {
	HourlyForecast(ctx context.Context, grid types.GridDescriptor) ([]types.ForecastPoint, error)
}

// MessageQueuer fans an alert event out to building recipients.
type MessageQueuer interface {
	QueueForAlert(ctx context.Context, event *types.AlertEvent) ([]string, error)
}

// PendingSender delivers queued messages.
type PendingSender interface {
	SendPending(ctx context.Context) (*types.DispatchSummary, error)
}

// CycleMetrics records the outcome of an orchestrator cycle.
type CycleMetrics interface {
	RecordCycle(ctx context.Context, cycle string, checked, fired, failures int)
}

// Config wires a Service. Queuer, Sender and Metrics are optional; a nil
// Queuer means events are stored but never marked processed.
type Config struct {
	Locations LocationStore
	Snapshots SnapshotStore
	Events    AlertEventStore
	Weather   WeatherProvider
	Queuer    MessageQueuer
	Sender    PendingSender
	Metrics   CycleMetrics
	Logger    *slog.Logger
	Clock     types.Clock
	NewID     func() string
}

// Service exposes the detectors for single locations and runs the
// multi-location cycles.
type Service struct {
	locations LocationStore
	snapshots SnapshotStore
	events    AlertEventStore
	weather   WeatherProvider
	queuer    MessageQueuer
	sender    PendingSender
	metrics   CycleMetrics
	logger    *slog.Logger
	clock     types.Clock
	newID     func() string
}

func NewService(cfg Config) *Service {
	s := &Service{
		locations: cfg.Locations,
		snapshots: cfg.Snapshots,
		events:    cfg.Events,
		weather:   cfg.Weather,
		queuer:    cfg.Queuer,
		sender:    cfg.Sender,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		clock:     cfg.Clock,
		newID:     cfg.NewID,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = types.RealClock{}
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// LocationForecast is the forecast served for a single location.
type LocationForecast struct {
	LocationID string                `json:"cityId"`
	Office     string                `json:"office"`
	Forecast   []types.ForecastPoint `json:"forecast"`
}

// Forecast returns the current hourly forecast for a location. Unlike the
// detectors it reports a missing location as not found.
func (s *Service) Forecast(ctx context.Context, locationID string) (*LocationForecast, error) {
	loc, err := s.locations.GetByID(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundLocation, "location not found", nil)
	}
	points, err := s.weather.HourlyForecast(ctx, loc.Grid())
	if err != nil {
		return nil, err
	}
	return &LocationForecast{LocationID: loc.ID, Office: loc.NWSOffice, Forecast: points}, nil
}

// CheckFluctuation loads the location, fetches its forecast once and runs
// the fluctuation detector. Missing or inactive locations yield nil.
func (s *Service) CheckFluctuation(ctx context.Context, locationID string) (*types.AlertCheckResult, error) {
	loc, forecast, err := s.activeForecast(ctx, locationID)
	if err != nil || loc == nil {
		return nil, err
	}
	return CheckFluctuation(loc, forecast), nil
}

// ComputeDailySummary loads the location, its forecast and the last 48h of
// snapshots and runs the summary calculator.
func (s *Service) ComputeDailySummary(ctx context.Context, locationID string) (*types.DailySummary, error) {
	loc, forecast, err := s.activeForecast(ctx, locationID)
	if err != nil || loc == nil {
		return nil, err
	}
	snaps, err := s.recentSnapshots(ctx, loc.ID)
	if err != nil {
		return nil, err
	}
	return ComputeDailySummary(loc, forecast, snaps), nil
}

func (s *Service) activeForecast(ctx context.Context, locationID string) (*types.LocationConfig, []types.ForecastPoint, error) {
	loc, err := s.locations.GetByID(ctx, locationID)
	if err != nil {
		return nil, nil, err
	}
	if loc == nil || !loc.IsActive {
		return nil, nil, nil
	}
	forecast, err := s.weather.HourlyForecast(ctx, loc.Grid())
	if err != nil {
		return nil, nil, err
	}
	return loc, forecast, nil
}

func (s *Service) recentSnapshots(ctx context.Context, locationID string) ([]types.TemperatureSnapshot, error) {
	since := s.clock.Now().Add(-snapshotLookback)
	return s.snapshots.ListRecent(ctx, locationID, since, SummaryHours)
}
