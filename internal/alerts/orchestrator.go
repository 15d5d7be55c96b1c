package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tempguard/internal/types"
)

// Cycle names, as reported in logs, metrics and job history.
const (
	CycleCheckAlerts  = "check_alerts"
	CycleDailySummary = "daily_summary"
)

// CycleReport summarises one pass over all active locations.
type CycleReport struct {
	Cycle            string                 `json:"cycle"`
	LocationsChecked int                    `json:"locationsChecked"`
	AlertsFired      int                    `json:"alertsFired"`
	AlertIDs         []string               `json:"alertIds"`
	Failures         int                    `json:"failures"`
	Dispatch         *types.DispatchSummary `json:"dispatch,omitempty"`
	StartedAt        time.Time              `json:"startedAt"`
	FinishedAt       time.Time              `json:"finishedAt"`
}

// RunFluctuationCycle checks every active location for a sudden swing,
// fires and queues an event where one is found, saves a snapshot for every
// location and finally sends pending messages.
func (s *Service) RunFluctuationCycle(ctx context.Context) (*CycleReport, error) {
	return s.runCycle(ctx, CycleCheckAlerts, s.detectFluctuation)
}

// RunDailySummaryCycle is RunFluctuationCycle with the daily summary
// calculator in place of the fluctuation detector.
func (s *Service) RunDailySummaryCycle(ctx context.Context) (*CycleReport, error) {
	return s.runCycle(ctx, CycleDailySummary, s.detectSummary)
}

// detectFn inspects one location's forecast and returns the event to fire,
// or nil.
type detectFn func(ctx context.Context, loc *types.LocationConfig, forecast []types.ForecastPoint) (*types.AlertEvent, error)

func (s *Service) runCycle(ctx context.Context, cycle string, detect detectFn) (*CycleReport, error) {
	report := &CycleReport{Cycle: cycle, AlertIDs: []string{}, StartedAt: s.clock.Now()}
	logger := s.logger.With("cycle", cycle)

	locations, err := s.locations.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active locations: %w", err)
	}

	for _, loc := range locations {
		report.LocationsChecked++

		eventID, err := s.runLocation(ctx, loc, detect)
		if eventID != "" {
			report.AlertsFired++
			report.AlertIDs = append(report.AlertIDs, eventID)
		}
		if err != nil {
			report.Failures++
			logger.ErrorContext(ctx, "location cycle failed",
				"location_id", loc.ID,
				"error", err,
			)
		}
	}

	if s.sender != nil {
		summary, err := s.sender.SendPending(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "send pending after cycle failed", "error", err)
		}
		report.Dispatch = summary
	}

	report.FinishedAt = s.clock.Now()
	if s.metrics != nil {
		s.metrics.RecordCycle(ctx, cycle, report.LocationsChecked, report.AlertsFired, report.Failures)
	}
	logger.InfoContext(ctx, "cycle complete",
		"locations_checked", report.LocationsChecked,
		"alerts_fired", report.AlertsFired,
		"failures", report.Failures,
	)
	return report, nil
}

// runLocation fetches the forecast once and hands the same points to the
// detector and to the snapshot. It returns the ID of the event it fired,
// even when a later step failed.
func (s *Service) runLocation(ctx context.Context, loc *types.LocationConfig, detect detectFn) (string, error) {
	forecast, err := s.weather.HourlyForecast(ctx, loc.Grid())
	if err != nil {
		return "", fmt.Errorf("fetch forecast: %w", err)
	}

	var (
		eventID string
		errs    []error
	)
	event, err := detect(ctx, loc, forecast)
	switch {
	case err != nil:
		errs = append(errs, err)
	case event != nil:
		eventID, err = s.fire(ctx, event)
		if err != nil {
			errs = append(errs, err)
		}
	}

	if err := s.saveSnapshot(ctx, loc, forecast); err != nil {
		errs = append(errs, err)
	}
	return eventID, errors.Join(errs...)
}

func (s *Service) detectFluctuation(_ context.Context, loc *types.LocationConfig, forecast []types.ForecastPoint) (*types.AlertEvent, error) {
	result := CheckFluctuation(loc, forecast)
	if result == nil || !result.ShouldAlert {
		return nil, nil
	}
	return &types.AlertEvent{
		LocationID:  loc.ID,
		Kind:        types.AlertSuddenFluctuation,
		Measurement: types.MeasurementData{Fluctuation: result},
		Threshold: types.ThresholdSnapshot{
			TempDelta:   loc.AlertTempDelta,
			WindowHours: loc.AlertWindowHours,
		},
	}, nil
}

func (s *Service) detectSummary(ctx context.Context, loc *types.LocationConfig, forecast []types.ForecastPoint) (*types.AlertEvent, error) {
	// Snapshots are read before this cycle's snapshot is written.
	snaps, err := s.recentSnapshots(ctx, loc.ID)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	summary := ComputeDailySummary(loc, forecast, snaps)
	if summary == nil {
		return nil, nil
	}
	return &types.AlertEvent{
		LocationID:  loc.ID,
		Kind:        types.AlertDailySummary,
		Measurement: types.MeasurementData{Summary: summary},
	}, nil
}

// fire stores the event, queues its messages and marks it processed. The
// event stays unprocessed when queueing fails.
func (s *Service) fire(ctx context.Context, event *types.AlertEvent) (string, error) {
	event.ID = s.newID()
	if err := s.events.Create(ctx, event); err != nil {
		return "", fmt.Errorf("create alert event: %w", err)
	}
	if s.queuer == nil {
		return event.ID, nil
	}

	ids, err := s.queuer.QueueForAlert(ctx, event)
	if err != nil {
		return event.ID, fmt.Errorf("queue messages for %s: %w", event.ID, err)
	}
	if err := s.events.MarkProcessed(ctx, event.ID); err != nil {
		return event.ID, fmt.Errorf("mark %s processed: %w", event.ID, err)
	}
	event.Processed = true

	s.logger.InfoContext(ctx, "alert fired",
		"alert_event_id", event.ID,
		"location_id", event.LocationID,
		"kind", event.Kind,
		"messages", len(ids),
	)
	return event.ID, nil
}

func (s *Service) saveSnapshot(ctx context.Context, loc *types.LocationConfig, forecast []types.ForecastPoint) error {
	if len(forecast) == 0 {
		return nil
	}
	snap := &types.TemperatureSnapshot{
		LocationID:   loc.ID,
		RecordedAt:   s.clock.Now(),
		TemperatureF: forecast[0].TempF,
		ForecastData: forecast,
	}
	if err := s.snapshots.Create(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
