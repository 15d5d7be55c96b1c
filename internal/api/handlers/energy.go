package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tempguard/internal/core"
	"tempguard/internal/energy"
	"tempguard/internal/types"
)

// EnergyService is the subset of energy.Service served over HTTP.
type EnergyService interface {
	RecordUtilityBill(ctx context.Context, bill *types.UtilityBill) error
	RecordDegreeDays(ctx context.Context, dd *types.DegreeDayRecord) error
	UtilityHistory(ctx context.Context, buildingID string, limit int) ([]types.UtilityBill, error)
	DegreeDayHistory(ctx context.Context, cityID string, limit int) ([]types.DegreeDayRecord, error)
	ComputeBaseline(ctx context.Context, buildingID string, month int) (*energy.BaselineResult, error)
	RecomputeBuilding(ctx context.Context, buildingID string) (map[int]*energy.BaselineResult, error)
	ComputeMonthlyComparison(ctx context.Context, buildingID string, month, year int) (*types.MonthlyComparison, error)
	GenerateReport(ctx context.Context, buildingID string, month, year int) (*types.EnergyReport, error)
}

// UtilityBillRequest is the body of PUT /v1/buildings/{id}/utility-bills.
type UtilityBillRequest struct {
	Month             int      `json:"month" validate:"required,calendar_month"`
	Year              int      `json:"year" validate:"required,min=1900,max=2200"`
	ElectricKWH       *float64 `json:"electric_kwh" validate:"omitempty,gte=0"`
	GasTherms         *float64 `json:"gas_therms" validate:"omitempty,gte=0"`
	FuelOilGallons    *float64 `json:"fuel_oil_gallons" validate:"omitempty,gte=0"`
	DistrictSteamMBTU *float64 `json:"district_steam_mbtu" validate:"omitempty,gte=0"`
	TotalKBTU         float64  `json:"total_kbtu" validate:"gte=0"`
	UploadedBy        string   `json:"uploaded_by" validate:"omitempty,max=255"`
}

// DegreeDaysRequest is the body of PUT /v1/cities/{id}/degree-days.
type DegreeDaysRequest struct {
	Month             int     `json:"month" validate:"required,calendar_month"`
	Year              int     `json:"year" validate:"required,min=1900,max=2200"`
	HeatingDegreeDays float64 `json:"heating_degree_days" validate:"gte=0"`
	CoolingDegreeDays float64 `json:"cooling_degree_days" validate:"gte=0"`
	UploadedBy        string  `json:"uploaded_by" validate:"omitempty,max=255"`
}

// ReportRequest is the body of POST /v1/buildings/{id}/reports.
type ReportRequest struct {
	Month int `json:"month" validate:"required,calendar_month"`
	Year  int `json:"year" validate:"required,min=1900,max=2200"`
}

// EnergyHandler serves utility bills, degree days, baselines, comparisons
// and reports.
type EnergyHandler struct {
	service   EnergyService
	validator *core.Validator
	logger    *slog.Logger
}

func NewEnergyHandler(svc EnergyService, val *core.Validator, logger *slog.Logger) *EnergyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EnergyHandler{service: svc, validator: val, logger: logger}
}

func (h *EnergyHandler) RegisterRoutes(r chi.Router) {
	r.Put("/buildings/{id}/utility-bills", h.HandleUpsertBill)
	r.Get("/buildings/{id}/utility-bills", h.HandleListBills)
	r.Put("/cities/{id}/degree-days", h.HandleUpsertDegreeDays)
	r.Get("/cities/{id}/degree-days", h.HandleListDegreeDays)
	r.Post("/buildings/{id}/baselines", h.HandleRecomputeBaselines)
	r.Post("/buildings/{id}/baselines/{month}", h.HandleComputeBaseline)
	r.Get("/buildings/{id}/comparison", h.HandleComparison)
	r.Post("/buildings/{id}/reports", h.HandleGenerateReport)
}

// HandleUpsertBill handles PUT /v1/buildings/{id}/utility-bills. A second
// bill for the same month replaces the first.
func (h *EnergyHandler) HandleUpsertBill(w http.ResponseWriter, r *http.Request) {
	var req UtilityBillRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	bill := &types.UtilityBill{
		BuildingID:        chi.URLParam(r, "id"),
		Month:             req.Month,
		Year:              req.Year,
		ElectricKWH:       req.ElectricKWH,
		GasTherms:         req.GasTherms,
		FuelOilGallons:    req.FuelOilGallons,
		DistrictSteamMBTU: req.DistrictSteamMBTU,
		TotalKBTU:         req.TotalKBTU,
		UploadedBy:        req.UploadedBy,
	}
	if err := h.service.RecordUtilityBill(r.Context(), bill); err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, bill)
}

// HandleListBills handles GET /v1/buildings/{id}/utility-bills?limit=.
func (h *EnergyHandler) HandleListBills(w http.ResponseWriter, r *http.Request) {
	limit, err := historyLimit(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	bills, err := h.service.UtilityHistory(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if bills == nil {
		bills = []types.UtilityBill{}
	}
	core.Data(w, r, http.StatusOK, bills)
}

// HandleUpsertDegreeDays handles PUT /v1/cities/{id}/degree-days.
func (h *EnergyHandler) HandleUpsertDegreeDays(w http.ResponseWriter, r *http.Request) {
	var req DegreeDaysRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	dd := &types.DegreeDayRecord{
		CityID:            chi.URLParam(r, "id"),
		Month:             req.Month,
		Year:              req.Year,
		HeatingDegreeDays: req.HeatingDegreeDays,
		CoolingDegreeDays: req.CoolingDegreeDays,
		UploadedBy:        req.UploadedBy,
	}
	if err := h.service.RecordDegreeDays(r.Context(), dd); err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, dd)
}

// HandleListDegreeDays handles GET /v1/cities/{id}/degree-days?limit=.
func (h *EnergyHandler) HandleListDegreeDays(w http.ResponseWriter, r *http.Request) {
	limit, err := historyLimit(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	records, err := h.service.DegreeDayHistory(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if records == nil {
		records = []types.DegreeDayRecord{}
	}
	core.Data(w, r, http.StatusOK, records)
}

// HandleComputeBaseline handles POST /v1/buildings/{id}/baselines/{month}.
func (h *EnergyHandler) HandleComputeBaseline(w http.ResponseWriter, r *http.Request) {
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidMonth, "month must be an integer between 1 and 12", err))
		return
	}
	res, err := h.service.ComputeBaseline(r.Context(), chi.URLParam(r, "id"), month)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, res)
}

// HandleRecomputeBaselines handles POST /v1/buildings/{id}/baselines. The
// response is keyed by calendar month.
func (h *EnergyHandler) HandleRecomputeBaselines(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.RecomputeBuilding(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, res)
}

// HandleComparison handles GET /v1/buildings/{id}/comparison?month=&year=.
func (h *EnergyHandler) HandleComparison(w http.ResponseWriter, r *http.Request) {
	month, year, err := periodQuery(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	c, err := h.service.ComputeMonthlyComparison(r.Context(), chi.URLParam(r, "id"), month, year)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if c == nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundComparison,
			"no utility bill and degree days recorded for this period", nil))
		return
	}
	core.Data(w, r, http.StatusOK, c)
}

// HandleGenerateReport handles POST /v1/buildings/{id}/reports.
func (h *EnergyHandler) HandleGenerateReport(w http.ResponseWriter, r *http.Request) {
	var req ReportRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	rep, err := h.service.GenerateReport(r.Context(), chi.URLParam(r, "id"), req.Month, req.Year)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusCreated, rep)
}

func historyLimit(r *http.Request) (int, error) {
	limit, err := core.QueryInt(r, "limit", energy.HistoryLimit)
	if err != nil {
		return 0, err
	}
	if limit < 1 || limit > energy.HistoryLimit {
		return 0, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidValue,
			"limit must be between 1 and 36", nil, map[string]any{"param": "limit"})
	}
	return limit, nil
}

func periodQuery(r *http.Request) (int, int, error) {
	month, err := core.QueryInt(r, "month", 0)
	if err != nil {
		return 0, 0, err
	}
	year, err := core.QueryInt(r, "year", 0)
	if err != nil {
		return 0, 0, err
	}
	if month == 0 || year == 0 {
		return 0, 0, types.NewAppError(types.ErrCodeValidationMissingField, "month and year query parameters are required", nil)
	}
	if month < 1 || month > 12 {
		return 0, 0, types.NewAppError(types.ErrCodeValidationInvalidMonth, "month must be between 1 and 12", nil)
	}
	return month, year, nil
}
