package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"tempguard/internal/types"
)

// EnergyRepository persists utility bills, degree days, baselines and
// energy reports. Bills, degree days and reports upsert on their natural
// key; baselines upsert on (building, month, type).
type EnergyRepository struct {
	db DBTX
}

func NewEnergyRepository(db DBTX) *EnergyRepository {
	return &EnergyRepository{db: db}
}

const billColumns = `id, building_id, month, year, electric_kwh, gas_therms,
	fuel_oil_gallons, district_steam_mbtu, total_kbtu, uploaded_by, created_at, updated_at`

func scanBill(row pgx.Row) (*types.UtilityBill, error) {
	var (
		b  types.UtilityBill
		by *string
	)
	err := row.Scan(
		&b.ID, &b.BuildingID, &b.Month, &b.Year,
		&b.ElectricKWH, &b.GasTherms, &b.FuelOilGallons, &b.DistrictSteamMBTU,
		&b.TotalKBTU, &by, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.UploadedBy = derefString(by)
	return &b, nil
}

// UpsertUtilityBill inserts or replaces the bill for (building, month, year)
// and writes back the stored row.
func (r *EnergyRepository) UpsertUtilityBill(ctx context.Context, b *types.UtilityBill) error {
	stored, err := scanBill(r.db.QueryRow(ctx,
		`INSERT INTO utility_bills (building_id, month, year, electric_kwh, gas_therms,
		   fuel_oil_gallons, district_steam_mbtu, total_kbtu, uploaded_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (building_id, month, year) DO UPDATE SET
		   electric_kwh = EXCLUDED.electric_kwh,
		   gas_therms = EXCLUDED.gas_therms,
		   fuel_oil_gallons = EXCLUDED.fuel_oil_gallons,
		   district_steam_mbtu = EXCLUDED.district_steam_mbtu,
		   total_kbtu = EXCLUDED.total_kbtu,
		   uploaded_by = EXCLUDED.uploaded_by,
		   updated_at = NOW()
		 RETURNING `+billColumns,
		b.BuildingID, b.Month, b.Year,
		b.ElectricKWH, b.GasTherms, b.FuelOilGallons, b.DistrictSteamMBTU,
		b.TotalKBTU, nilIfEmpty(b.UploadedBy),
	))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert utility bill", err)
	}
	*b = *stored
	return nil
}

// GetUtilityBill returns the bill or nil when none was uploaded.
func (r *EnergyRepository) GetUtilityBill(ctx context.Context, buildingID string, month, year int) (*types.UtilityBill, error) {
	b, err := scanBill(r.db.QueryRow(ctx,
		`SELECT `+billColumns+` FROM utility_bills
		 WHERE building_id = $1 AND month = $2 AND year = $3`,
		buildingID, month, year))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load utility bill", err)
	}
	return b, nil
}

// ListUtilityHistory returns the newest bills first.
func (r *EnergyRepository) ListUtilityHistory(ctx context.Context, buildingID string, limit int) ([]types.UtilityBill, error) {
	return r.listBills(ctx,
		`SELECT `+billColumns+` FROM utility_bills
		 WHERE building_id = $1
		 ORDER BY year DESC, month DESC
		 LIMIT $2`,
		buildingID, limit)
}

// ListBillsForMonth returns the building's bills for one calendar month whose
// year*100+month is at least minKey, oldest first.
func (r *EnergyRepository) ListBillsForMonth(ctx context.Context, buildingID string, month, minKey int) ([]types.UtilityBill, error) {
	return r.listBills(ctx,
		`SELECT `+billColumns+` FROM utility_bills
		 WHERE building_id = $1 AND month = $2 AND (year * 100 + month) >= $3
		 ORDER BY year ASC`,
		buildingID, month, minKey)
}

func (r *EnergyRepository) listBills(ctx context.Context, sql string, args ...any) ([]types.UtilityBill, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query utility bills", err)
	}
	defer rows.Close()

	var out []types.UtilityBill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan utility bill", err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating utility bills", err)
	}
	return out, nil
}

const degreeDayColumns = `id, city_id, month, year, heating_degree_days, cooling_degree_days,
	uploaded_by, created_at, updated_at`

func scanDegreeDays(row pgx.Row) (*types.DegreeDayRecord, error) {
	var (
		d  types.DegreeDayRecord
		by *string
	)
	err := row.Scan(&d.ID, &d.CityID, &d.Month, &d.Year,
		&d.HeatingDegreeDays, &d.CoolingDegreeDays, &by, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.UploadedBy = derefString(by)
	return &d, nil
}

// UpsertDegreeDays inserts or replaces the record for (city, month, year).
func (r *EnergyRepository) UpsertDegreeDays(ctx context.Context, d *types.DegreeDayRecord) error {
	stored, err := scanDegreeDays(r.db.QueryRow(ctx,
		`INSERT INTO degree_days (city_id, month, year, heating_degree_days, cooling_degree_days, uploaded_by)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (city_id, month, year) DO UPDATE SET
		   heating_degree_days = EXCLUDED.heating_degree_days,
		   cooling_degree_days = EXCLUDED.cooling_degree_days,
		   uploaded_by = EXCLUDED.uploaded_by,
		   updated_at = NOW()
		 RETURNING `+degreeDayColumns,
		d.CityID, d.Month, d.Year, d.HeatingDegreeDays, d.CoolingDegreeDays, nilIfEmpty(d.UploadedBy),
	))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert degree days", err)
	}
	*d = *stored
	return nil
}

// GetDegreeDays returns the record or nil when none was uploaded.
func (r *EnergyRepository) GetDegreeDays(ctx context.Context, cityID string, month, year int) (*types.DegreeDayRecord, error) {
	d, err := scanDegreeDays(r.db.QueryRow(ctx,
		`SELECT `+degreeDayColumns+` FROM degree_days
		 WHERE city_id = $1 AND month = $2 AND year = $3`,
		cityID, month, year))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load degree days", err)
	}
	return d, nil
}

// ListDegreeDayHistory returns the newest records first.
func (r *EnergyRepository) ListDegreeDayHistory(ctx context.Context, cityID string, limit int) ([]types.DegreeDayRecord, error) {
	return r.listDegreeDays(ctx,
		`SELECT `+degreeDayColumns+` FROM degree_days
		 WHERE city_id = $1
		 ORDER BY year DESC, month DESC
		 LIMIT $2`,
		cityID, limit)
}

// ListDegreeDaysForMonth returns every year's record for one calendar month.
func (r *EnergyRepository) ListDegreeDaysForMonth(ctx context.Context, cityID string, month int) ([]types.DegreeDayRecord, error) {
	return r.listDegreeDays(ctx,
		`SELECT `+degreeDayColumns+` FROM degree_days
		 WHERE city_id = $1 AND month = $2
		 ORDER BY year ASC`,
		cityID, month)
}

func (r *EnergyRepository) listDegreeDays(ctx context.Context, sql string, args ...any) ([]types.DegreeDayRecord, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query degree days", err)
	}
	defer rows.Close()

	var out []types.DegreeDayRecord
	for rows.Next() {
		d, err := scanDegreeDays(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan degree days", err)
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating degree days", err)
	}
	return out, nil
}

const baselineColumns = `id, building_id, month, baseline_type, avg_consumption_per_degree_day,
	baseline_period_start, baseline_period_end, data_points, calculated_at`

func scanBaseline(row pgx.Row) (*types.EnergyBaseline, error) {
	var (
		b   types.EnergyBaseline
		typ string
	)
	err := row.Scan(&b.ID, &b.BuildingID, &b.Month, &typ, &b.AvgConsumptionPerDegreeDay,
		&b.PeriodStart, &b.PeriodEnd, &b.DataPoints, &b.CalculatedAt)
	if err != nil {
		return nil, err
	}
	b.Type = types.BaselineType(typ)
	return &b, nil
}

// UpsertBaseline replaces the baseline for (building, month, type).
func (r *EnergyRepository) UpsertBaseline(ctx context.Context, b *types.EnergyBaseline) error {
	stored, err := scanBaseline(r.db.QueryRow(ctx,
		`INSERT INTO energy_baselines (building_id, month, baseline_type, avg_consumption_per_degree_day,
		   baseline_period_start, baseline_period_end, data_points, calculated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		 ON CONFLICT (building_id, month, baseline_type) DO UPDATE SET
		   avg_consumption_per_degree_day = EXCLUDED.avg_consumption_per_degree_day,
		   baseline_period_start = EXCLUDED.baseline_period_start,
		   baseline_period_end = EXCLUDED.baseline_period_end,
		   data_points = EXCLUDED.data_points,
		   calculated_at = NOW()
		 RETURNING `+baselineColumns,
		b.BuildingID, b.Month, string(b.Type), b.AvgConsumptionPerDegreeDay,
		b.PeriodStart, b.PeriodEnd, b.DataPoints,
	))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert energy baseline", err)
	}
	*b = *stored
	return nil
}

// GetBaseline returns the baseline or nil when none has been computed.
func (r *EnergyRepository) GetBaseline(ctx context.Context, buildingID string, month int, typ types.BaselineType) (*types.EnergyBaseline, error) {
	b, err := scanBaseline(r.db.QueryRow(ctx,
		`SELECT `+baselineColumns+` FROM energy_baselines
		 WHERE building_id = $1 AND month = $2 AND baseline_type = $3`,
		buildingID, month, string(typ)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load energy baseline", err)
	}
	return b, nil
}

const reportColumns = `id, building_id, month, year, utility_bill_id, degree_days_id, report_data, generated_at`

func scanReport(row pgx.Row) (*types.EnergyReport, error) {
	var (
		rep          types.EnergyReport
		billID, ddID *string
	)
	err := row.Scan(&rep.ID, &rep.BuildingID, &rep.Month, &rep.Year, &billID, &ddID, &rep.Comparison, &rep.GeneratedAt)
	if err != nil {
		return nil, err
	}
	rep.UtilityBillID = derefString(billID)
	rep.DegreeDaysID = derefString(ddID)
	return &rep, nil
}

// UpsertReport stores the comparison for (building, month, year).
func (r *EnergyRepository) UpsertReport(ctx context.Context, rep *types.EnergyReport) error {
	stored, err := scanReport(r.db.QueryRow(ctx,
		`INSERT INTO energy_reports (building_id, month, year, utility_bill_id, degree_days_id, report_data, generated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT (building_id, month, year) DO UPDATE SET
		   utility_bill_id = EXCLUDED.utility_bill_id,
		   degree_days_id = EXCLUDED.degree_days_id,
		   report_data = EXCLUDED.report_data,
		   generated_at = NOW()
		 RETURNING `+reportColumns,
		rep.BuildingID, rep.Month, rep.Year,
		nilIfEmpty(rep.UtilityBillID), nilIfEmpty(rep.DegreeDaysID), rep.Comparison,
	))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert energy report", err)
	}
	*rep = *stored
	return nil
}

// GetReport returns the stored report or a not-found error.
func (r *EnergyRepository) GetReport(ctx context.Context, buildingID string, month, year int) (*types.EnergyReport, error) {
	rep, err := scanReport(r.db.QueryRow(ctx,
		`SELECT `+reportColumns+` FROM energy_reports
		 WHERE building_id = $1 AND month = $2 AND year = $3`,
		buildingID, month, year))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundComparison, "energy report not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load energy report", err)
	}
	return rep, nil
}
