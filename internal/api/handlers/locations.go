package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tempguard/internal/alerts"
	"tempguard/internal/core"
	"tempguard/internal/types"
)

// LocationService is the subset of alerts.Service served over HTTP.
type LocationService interface {
	Forecast(ctx context.Context, locationID string) (*alerts.LocationForecast, error)
	CheckFluctuation(ctx context.Context, locationID string) (*types.AlertCheckResult, error)
	ComputeDailySummary(ctx context.Context, locationID string) (*types.DailySummary, error)
}

type LocationHandler struct {
	service LocationService
	logger  *slog.Logger
}

func NewLocationHandler(svc LocationService, logger *slog.Logger) *LocationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocationHandler{service: svc, logger: logger}
}

func (h *LocationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/locations/{id}/forecast", h.HandleForecast)
	r.Get("/locations/{id}/fluctuation", h.HandleFluctuation)
	r.Get("/locations/{id}/daily-summary", h.HandleDailySummary)
}

// HandleForecast handles GET /v1/locations/{id}/forecast.
func (h *LocationHandler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	fc, err := h.service.Forecast(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	core.Data(w, r, http.StatusOK, fc)
}

// HandleFluctuation handles GET /v1/locations/{id}/fluctuation.
func (h *LocationHandler) HandleFluctuation(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.CheckFluctuation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if res == nil {
		core.Error(w, r, errInactiveLocation)
		return
	}
	core.Data(w, r, http.StatusOK, res)
}

// HandleDailySummary handles GET /v1/locations/{id}/daily-summary.
func (h *LocationHandler) HandleDailySummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.service.ComputeDailySummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if sum == nil {
		core.Error(w, r, errInactiveLocation)
		return
	}
	core.Data(w, r, http.StatusOK, sum)
}

// The detectors treat missing and inactive locations alike.
var errInactiveLocation = types.NewAppError(types.ErrCodeNotFoundLocation, "location not found or inactive", nil)
