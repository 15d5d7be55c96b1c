package energy

import (
	"context"
	"fmt"

	"tempguard/internal/types"
)

// CompareMonth normalizes one month's bill by its degree days and measures
// savings against the building's baseline. The heating baseline is used
// when it exists and the month had heating degree days; otherwise the
// cooling baseline under the same condition. Without either, savings are
// zero. Savings are positive when consumption came in under the baseline.
func CompareMonth(bill *types.UtilityBill, dd *types.DegreeDayRecord, heating, cooling *types.EnergyBaseline) *types.MonthlyComparison {
	if bill == nil || dd == nil {
		return nil
	}
	hdd, cdd, total := dd.HeatingDegreeDays, dd.CoolingDegreeDays, bill.TotalKBTU

	var perHDD, perCDD float64
	if hdd > 0 {
		perHDD = total / hdd
	}
	if cdd > 0 {
		perCDD = total / cdd
	}

	c := &types.MonthlyComparison{
		Month:                    bill.Month,
		Year:                     bill.Year,
		CurrentConsumptionPerHDD: types.Round(perHDD, 4),
		CurrentConsumptionPerCDD: types.Round(perCDD, 4),
		ElectricKWH:              positive(bill.ElectricKWH),
		GasTherms:                positive(bill.GasTherms),
		FuelOilGallons:           positive(bill.FuelOilGallons),
		DistrictSteamMBTU:        positive(bill.DistrictSteamMBTU),
		TotalKBTU:                total,
		HDD:                      hdd,
		CDD:                      cdd,
	}

	var heatRate, coolRate float64
	if heating != nil {
		heatRate = heating.AvgConsumptionPerDegreeDay
		c.BaselineConsumptionPerHDD = types.Round(heatRate, 4)
	}
	if cooling != nil {
		coolRate = cooling.AvgConsumptionPerDegreeDay
		c.BaselineConsumptionPerCDD = types.Round(coolRate, 4)
	}

	var expected float64
	switch {
	case heatRate > 0 && hdd > 0:
		expected = heatRate * hdd
		c.BaselineUsed = types.BaselineHeating
	case coolRate > 0 && cdd > 0:
		expected = coolRate * cdd
		c.BaselineUsed = types.BaselineCooling
	}
	if expected > 0 {
		saved := expected - total
		c.SavingsKBTU = types.Round(saved, 2)
		c.SavingsPercentage = types.Round(saved/expected*100, 2)
	}
	return c
}

// ComputeMonthlyComparison loads the bill, the city's degree days and both
// baselines for a building-month and compares them. It returns nil when the
// bill or the degree-day record is missing.
func (s *Service) ComputeMonthlyComparison(ctx context.Context, buildingID string, month, year int) (*types.MonthlyComparison, error) {
	c, _, _, err := s.compare(ctx, buildingID, month, year)
	return c, err
}

// GenerateReport computes the comparison and stores it. A missing bill or
// degree-day record is reported as not found.
func (s *Service) GenerateReport(ctx context.Context, buildingID string, month, year int) (*types.EnergyReport, error) {
	c, bill, dd, err := s.compare(ctx, buildingID, month, year)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundComparison,
			fmt.Sprintf("no bill and degree days for %04d-%02d", year, month), nil)
	}

	rep := &types.EnergyReport{
		BuildingID:    buildingID,
		Month:         month,
		Year:          year,
		UtilityBillID: bill.ID,
		DegreeDaysID:  dd.ID,
		Comparison:    *c,
	}
	if err := s.store.UpsertReport(ctx, rep); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "energy report generated",
		"building_id", buildingID,
		"month", month,
		"year", year,
		"savings_pct", c.SavingsPercentage,
	)
	return rep, nil
}

func (s *Service) compare(ctx context.Context, buildingID string, month, year int) (*types.MonthlyComparison, *types.UtilityBill, *types.DegreeDayRecord, error) {
	if err := validateMonth(month); err != nil {
		return nil, nil, nil, err
	}
	if err := validateYear(year); err != nil {
		return nil, nil, nil, err
	}

	bill, err := s.store.GetUtilityBill(ctx, buildingID, month, year)
	if err != nil || bill == nil {
		return nil, nil, nil, err
	}
	building, err := s.buildings.GetByID(ctx, buildingID)
	if err != nil {
		return nil, nil, nil, err
	}
	dd, err := s.store.GetDegreeDays(ctx, building.CityID, month, year)
	if err != nil || dd == nil {
		return nil, nil, nil, err
	}

	heating, err := s.store.GetBaseline(ctx, buildingID, month, types.BaselineHeating)
	if err != nil {
		return nil, nil, nil, err
	}
	cooling, err := s.store.GetBaseline(ctx, buildingID, month, types.BaselineCooling)
	if err != nil {
		return nil, nil, nil, err
	}
	return CompareMonth(bill, dd, heating, cooling), bill, dd, nil
}

// positive drops absent and zero readings so they serialize as missing.
func positive(v *float64) *float64 {
	if v == nil || *v == 0 {
		return nil
	}
	return v
}
