// Package energy normalizes building consumption by degree days. It
// computes per-month heating and cooling baselines from a building's billing
// history and compares a single month against them.
package energy

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"tempguard/internal/types"
)

const (
	// BaselineYears is the trailing history a baseline is computed from.
	BaselineYears = 3
	// MinDataPoints is the number of qualifying bills a baseline needs,
	// both overall and per baseline type.
	MinDataPoints = 3
)

// BaselineResult holds the baselines produced for one building-month. A
// type without enough data is nil.
type BaselineResult struct {
	Heating *types.EnergyBaseline `json:"heating"`
	Cooling *types.EnergyBaseline `json:"cooling"`
}

// CalculateBaselines derives heating and cooling baselines for one calendar
// month from the building's bills and the city's degree days. Degree-day
// records are matched to bills by year. It does not touch storage.
func CalculateBaselines(buildingID string, month int, bills []types.UtilityBill, degreeDays []types.DegreeDayRecord) BaselineResult {
	if len(bills) < MinDataPoints {
		return BaselineResult{}
	}

	byYear := make(map[int]types.DegreeDayRecord, len(degreeDays))
	for _, dd := range degreeDays {
		if dd.Month == month {
			byYear[dd.Year] = dd
		}
	}

	var (
		heatSum, coolSum     float64
		heatCount, coolCount int
		minYear, maxYear     = bills[0].Year, bills[0].Year
	)
	for _, b := range bills {
		if dd, ok := byYear[b.Year]; ok {
			if dd.HeatingDegreeDays > 0 {
				heatSum += b.TotalKBTU / dd.HeatingDegreeDays
				heatCount++
			}
			if dd.CoolingDegreeDays > 0 {
				coolSum += b.TotalKBTU / dd.CoolingDegreeDays
				coolCount++
			}
		}
		// The period covers every bill in the window, including bills that
		// fed neither accumulator, so both types report the same bounds.
		minYear = min(minYear, b.Year)
		maxYear = max(maxYear, b.Year)
	}

	start := time.Date(minYear, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(maxYear, time.Month(month), 28, 0, 0, 0, 0, time.UTC)
	build := func(typ types.BaselineType, sum float64, count int) *types.EnergyBaseline {
		if count < MinDataPoints {
			return nil
		}
		return &types.EnergyBaseline{
			BuildingID:                 buildingID,
			Month:                      month,
			Type:                       typ,
			AvgConsumptionPerDegreeDay: sum / float64(count),
			PeriodStart:                start,
			PeriodEnd:                  end,
			DataPoints:                 count,
		}
	}

	return BaselineResult{
		Heating: build(types.BaselineHeating, heatSum, heatCount),
		Cooling: build(types.BaselineCooling, coolSum, coolCount),
	}
}

// windowStart is the year*100+month key of the oldest bill a baseline may
// use: the current calendar month BaselineYears ago.
func windowStart(now time.Time) int {
	cutoff := now.AddDate(-BaselineYears, 0, 0)
	return cutoff.Year()*100 + int(cutoff.Month())
}

// ComputeBaseline recomputes and stores the baselines for one month of a
// building. Types without enough data leave any earlier baseline in place.
// An unknown building has no data and yields an empty result.
func (s *Service) ComputeBaseline(ctx context.Context, buildingID string, month int) (*BaselineResult, error) {
	if err := validateMonth(month); err != nil {
		return nil, err
	}
	building, err := s.buildings.GetByID(ctx, buildingID)
	if err != nil {
		if types.IsCode(err, types.ErrCodeNotFoundBuilding) {
			return &BaselineResult{}, nil
		}
		return nil, err
	}

	minKey := windowStart(s.clock.Now())
	bills, err := s.store.ListBillsForMonth(ctx, buildingID, month, minKey)
	if err != nil {
		return nil, err
	}
	if len(bills) < MinDataPoints {
		return &BaselineResult{}, nil
	}

	degreeDays, err := s.store.ListDegreeDaysForMonth(ctx, building.CityID, month)
	if err != nil {
		return nil, err
	}

	result := CalculateBaselines(buildingID, month, bills, degreeDays)
	for _, b := range []*types.EnergyBaseline{result.Heating, result.Cooling} {
		if b == nil {
			continue
		}
		if err := s.store.UpsertBaseline(ctx, b); err != nil {
			return nil, fmt.Errorf("store %s baseline for month %d: %w", b.Type, month, err)
		}
	}

	s.logger.InfoContext(ctx, "baseline computed",
		"building_id", buildingID,
		"month", month,
		"bills", len(bills),
		"heating", result.Heating != nil,
		"cooling", result.Cooling != nil,
	)
	return &result, nil
}

// RecomputeBuilding recomputes the baselines for all twelve months. Months
// are computed concurrently; the first failure cancels the rest.
func (s *Service) RecomputeBuilding(ctx context.Context, buildingID string) (map[int]*BaselineResult, error) {
	results := make([]*BaselineResult, 12)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range results {
		month := i + 1
		g.Go(func() error {
			res, err := s.ComputeBaseline(gctx, buildingID, month)
			if err != nil {
				return err
			}
			results[month-1] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[int]*BaselineResult, len(results))
	for i, res := range results {
		out[i+1] = res
	}
	return out, nil
}

func validateMonth(month int) error {
	if month < 1 || month > 12 {
		return types.NewAppError(types.ErrCodeValidationInvalidMonth,
			fmt.Sprintf("month must be between 1 and 12, got %d", month), nil)
	}
	return nil
}
