// Package alerts turns hourly forecasts into alert events. It holds the
// pure fluctuation and daily-summary calculations plus the per-cycle
// orchestration that fetches forecasts, fires events, queues messages and
// records temperature snapshots.
package alerts

import (
	"math"

	"tempguard/internal/types"
)

// SummaryHours is the number of forecast points that make up "today" and
// the number of snapshots averaged for "yesterday".
const SummaryHours = 24

// CheckFluctuation compares the temperature now with the temperature at
// the end of the location's alert window. It returns nil when the
// location is missing or inactive, or when the forecast does not reach the
// end of the window.
//
// The threshold is inclusive: a change exactly equal to AlertTempDelta
// alerts.
func CheckFluctuation(cfg *types.LocationConfig, forecast []types.ForecastPoint) *types.AlertCheckResult {
	if cfg == nil || !cfg.IsActive {
		return nil
	}
	window := cfg.AlertWindowHours
	if window < 1 || len(forecast) < window+1 {
		return nil
	}

	end := min(window, len(forecast)-1)
	current := forecast[0].TempF
	future := forecast[end].TempF
	change := math.Abs(future - current)

	return &types.AlertCheckResult{
		ShouldAlert:       change >= cfg.AlertTempDelta,
		TemperatureChange: change,
		TimeWindow:        window,
		CurrentTemp:       current,
		FutureTemp:        future,
		ForecastTime:      forecast[end].Time,
	}
}

// ComputeDailySummary summarises the next 24 forecast hours and compares
// their mean with the mean of recent snapshots. snapshots are expected
// newest first; only the first 24 are used. With no snapshots the change
// is zero.
func ComputeDailySummary(cfg *types.LocationConfig, forecast []types.ForecastPoint, snapshots []types.TemperatureSnapshot) *types.DailySummary {
	if cfg == nil || !cfg.IsActive || len(forecast) < SummaryHours {
		return nil
	}

	today := forecast[:SummaryHours]
	lo, hi, sum := today[0].TempF, today[0].TempF, 0.0
	for _, p := range today {
		sum += p.TempF
		lo = math.Min(lo, p.TempF)
		hi = math.Max(hi, p.TempF)
	}
	todayAvg := sum / float64(len(today))

	yesterdayAvg := todayAvg
	if n := min(len(snapshots), SummaryHours); n > 0 {
		var total float64
		for _, s := range snapshots[:n] {
			total += s.TemperatureF
		}
		yesterdayAvg = total / float64(n)
	}

	return &types.DailySummary{
		AverageTemp:       types.Round(todayAvg, 1),
		MinTemp:           int(types.Round(lo, 0)),
		MaxTemp:           int(types.Round(hi, 0)),
		TemperatureChange: types.Round(todayAvg-yesterdayAvg, 1),
		YesterdayAverage:  types.Round(yesterdayAvg, 1),
	}
}
