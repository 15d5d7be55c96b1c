package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempguard/internal/energy"
	"tempguard/internal/types"
)

type mockEnergyService struct {
	bill        *types.UtilityBill
	degreeDays  *types.DegreeDayRecord
	recordErr   error
	bills       []types.UtilityBill
	limit       int
	month, year int
	baseline    *energy.BaselineResult
	recomputed  map[int]*energy.BaselineResult
	comparison  *types.MonthlyComparison
	report      *types.EnergyReport
	reportErr   error
}

func (m *mockEnergyService) RecordUtilityBill(_ context.Context, b *types.UtilityBill) error {
	m.bill = b
	return m.recordErr
}

func (m *mockEnergyService) RecordDegreeDays(_ context.Context, dd *types.DegreeDayRecord) error {
	m.degreeDays = dd
	return m.recordErr
}

func (m *mockEnergyService) UtilityHistory(_ context.Context, _ string, limit int) ([]types.UtilityBill, error) {
	m.limit = limit
	return m.bills, nil
}

func (m *mockEnergyService) DegreeDayHistory(_ context.Context, _ string, limit int) ([]types.DegreeDayRecord, error) {
	m.limit = limit
	return nil, nil
}

func (m *mockEnergyService) ComputeBaseline(_ context.Context, _ string, month int) (*energy.BaselineResult, error) {
	m.month = month
	return m.baseline, nil
}

func (m *mockEnergyService) RecomputeBuilding(context.Context, string) (map[int]*energy.BaselineResult, error) {
	return m.recomputed, nil
}

func (m *mockEnergyService) ComputeMonthlyComparison(_ context.Context, _ string, month, year int) (*types.MonthlyComparison, error) {
	m.month, m.year = month, year
	return m.comparison, nil
}

func (m *mockEnergyService) GenerateReport(_ context.Context, buildingID string, month, year int) (*types.EnergyReport, error) {
	m.month, m.year = month, year
	return m.report, m.reportErr
}

func newEnergyRouter(svc *mockEnergyService) http.Handler {
	return newV1Router(NewEnergyHandler(svc, testValidator, testLogger))
}

func TestHandleUpsertBill(t *testing.T) {
	svc := &mockEnergyService{}

	rec := serve(t, newEnergyRouter(svc), http.MethodPut, "/v1/buildings/b-1/utility-bills",
		`{"month":1,"year":2026,"gas_therms":410.5,"total_kbtu":41050}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.bill)
	assert.Equal(t, "b-1", svc.bill.BuildingID)
	assert.Equal(t, 41050.0, svc.bill.TotalKBTU)
	require.NotNil(t, svc.bill.GasTherms)
	assert.Equal(t, 410.5, *svc.bill.GasTherms)
	assert.Nil(t, svc.bill.ElectricKWH)
}

func TestHandleUpsertBill_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode types.ErrorCode
	}{
		{"month out of range", `{"month":13,"year":2026,"total_kbtu":1}`, types.ErrCodeValidationInvalidValue},
		{"missing year", `{"month":1,"total_kbtu":1}`, types.ErrCodeValidationMissingField},
		{"negative total", `{"month":1,"year":2026,"total_kbtu":-5}`, types.ErrCodeValidationInvalidValue},
		{"unknown field", `{"month":1,"year":2026,"total_kbtu":1,"building_id":"x"}`, types.ErrCodeValidationInvalidPayload},
		{"malformed", `{"month":`, types.ErrCodeValidationInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockEnergyService{}

			rec := serve(t, newEnergyRouter(svc), http.MethodPut, "/v1/buildings/b-1/utility-bills", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, string(tt.wantCode), errorCode(t, rec))
			assert.Nil(t, svc.bill)
		})
	}
}

func TestHandleUpsertBill_UnknownBuilding(t *testing.T) {
	svc := &mockEnergyService{recordErr: types.NewAppError(types.ErrCodeNotFoundBuilding, "building not found", nil)}

	rec := serve(t, newEnergyRouter(svc), http.MethodPut, "/v1/buildings/nope/utility-bills",
		`{"month":1,"year":2026,"total_kbtu":1}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleUpsertDegreeDays(t *testing.T) {
	svc := &mockEnergyService{}

	rec := serve(t, newEnergyRouter(svc), http.MethodPut, "/v1/cities/nyc/degree-days",
		`{"month":1,"year":2026,"heating_degree_days":950,"cooling_degree_days":0}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.degreeDays)
	assert.Equal(t, "nyc", svc.degreeDays.CityID)
	assert.Equal(t, 950.0, svc.degreeDays.HeatingDegreeDays)
}

func TestHistoryLimit(t *testing.T) {
	svc := &mockEnergyService{}
	router := newEnergyRouter(svc)

	rec := serve(t, router, http.MethodGet, "/v1/buildings/b-1/utility-bills", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, energy.HistoryLimit, svc.limit)
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())

	rec = serve(t, router, http.MethodGet, "/v1/cities/nyc/degree-days?limit=12", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 12, svc.limit)

	rec = serve(t, router, http.MethodGet, "/v1/cities/nyc/degree-days?limit=37", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, router, http.MethodGet, "/v1/cities/nyc/degree-days?limit=all", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleComputeBaseline(t *testing.T) {
	svc := &mockEnergyService{baseline: &energy.BaselineResult{
		Heating: &types.EnergyBaseline{BuildingID: "b-1", Month: 1, Type: types.BaselineHeating, AvgConsumptionPerDegreeDay: 43.2},
	}}
	router := newEnergyRouter(svc)

	rec := serve(t, router, http.MethodPost, "/v1/buildings/b-1/baselines/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.month)

	var got energy.BaselineResult
	decodeData(t, rec, &got)
	require.NotNil(t, got.Heating)
	assert.Nil(t, got.Cooling)

	rec = serve(t, router, http.MethodPost, "/v1/buildings/b-1/baselines/jan", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidMonth), errorCode(t, rec))
}

func TestHandleRecomputeBaselines(t *testing.T) {
	svc := &mockEnergyService{recomputed: map[int]*energy.BaselineResult{1: {}, 2: {}}}

	rec := serve(t, newEnergyRouter(svc), http.MethodPost, "/v1/buildings/b-1/baselines", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]energy.BaselineResult
	decodeData(t, rec, &got)
	assert.Len(t, got, 2)
	assert.Contains(t, got, "1")
}

func TestHandleComparison(t *testing.T) {
	svc := &mockEnergyService{comparison: &types.MonthlyComparison{Month: 1, Year: 2026, SavingsPercentage: 12.5}}
	router := newEnergyRouter(svc)

	rec := serve(t, router, http.MethodGet, "/v1/buildings/b-1/comparison?month=1&year=2026", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.month)
	assert.Equal(t, 2026, svc.year)

	var got types.MonthlyComparison
	decodeData(t, rec, &got)
	assert.Equal(t, 12.5, got.SavingsPercentage)

	rec = serve(t, router, http.MethodGet, "/v1/buildings/b-1/comparison?month=1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationMissingField), errorCode(t, rec))

	rec = serve(t, router, http.MethodGet, "/v1/buildings/b-1/comparison?month=0&year=2026", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleComparison_NoData(t *testing.T) {
	rec := serve(t, newEnergyRouter(&mockEnergyService{}), http.MethodGet, "/v1/buildings/b-1/comparison?month=2&year=2026", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(types.ErrCodeNotFoundComparison), errorCode(t, rec))
}

func TestHandleGenerateReport(t *testing.T) {
	svc := &mockEnergyService{report: &types.EnergyReport{ID: "r-1", BuildingID: "b-1", Month: 1, Year: 2026}}
	router := newEnergyRouter(svc)

	rec := serve(t, router, http.MethodPost, "/v1/buildings/b-1/reports", `{"month":1,"year":2026}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var got types.EnergyReport
	decodeData(t, rec, &got)
	assert.Equal(t, "r-1", got.ID)

	svc.reportErr = types.NewAppError(types.ErrCodeNotFoundComparison, "no bill and degree days for 2026-03", nil)
	rec = serve(t, router, http.MethodPost, "/v1/buildings/b-1/reports", `{"month":3,"year":2026}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
