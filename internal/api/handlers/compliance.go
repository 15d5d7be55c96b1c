package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tempguard/internal/compliance"
	"tempguard/internal/core"
	"tempguard/internal/types"
)

// ComplianceService is the subset of compliance.Service served over HTTP.
type ComplianceService interface {
	EvaluateCompliance(ctx context.Context, messageID string) (*types.ComplianceStatus, error)
	BuildingComplianceRate(ctx context.Context, buildingID string, days int) (float64, error)
	FleetComplianceRates(ctx context.Context, cityID string, days int) ([]compliance.BuildingRate, error)
	RecordUpload(ctx context.Context, messageID, photoRef string) (*types.ComplianceUpload, error)
	MarkUploadCompliant(ctx context.Context, uploadID string) (*types.ComplianceUpload, error)
}

// UploadRequest is the body of POST /v1/uploads.
type UploadRequest struct {
	MessageID string `json:"message_id" validate:"required,max=64"`
	PhotoRef  string `json:"photo_ref" validate:"omitempty,max=2048"`
}

// BuildingRateResponse is returned by the building compliance-rate route.
type BuildingRateResponse struct {
	BuildingID string  `json:"buildingId"`
	Days       int     `json:"days"`
	Rate       float64 `json:"rate"`
}

type ComplianceHandler struct {
	service   ComplianceService
	validator *core.Validator
	logger    *slog.Logger
}

func NewComplianceHandler(svc ComplianceService, val *core.Validator, logger *slog.Logger) *ComplianceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ComplianceHandler{service: svc, validator: val, logger: logger}
}

func (h *ComplianceHandler) RegisterRoutes(r chi.Router) {
	r.Get("/messages/{id}/compliance", h.HandleMessageCompliance)
	r.Get("/buildings/{id}/compliance-rate", h.HandleBuildingRate)
	r.Get("/cities/{id}/compliance-rates", h.HandleFleetRates)
	r.Post("/uploads", h.HandleRecordUpload)
	r.Post("/uploads/{id}/compliance", h.HandleMarkCompliant)
}

// HandleMessageCompliance handles GET /v1/messages/{id}/compliance.
func (h *ComplianceHandler) HandleMessageCompliance(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.EvaluateCompliance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if status == nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundMessage, "message not found", nil))
		return
	}
	core.Data(w, r, http.StatusOK, status)
}

// HandleBuildingRate handles GET /v1/buildings/{id}/compliance-rate?days=.
func (h *ComplianceHandler) HandleBuildingRate(w http.ResponseWriter, r *http.Request) {
	days, err := rateDays(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	buildingID := chi.URLParam(r, "id")
	rate, err := h.service.BuildingComplianceRate(r.Context(), buildingID, days)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, BuildingRateResponse{BuildingID: buildingID, Days: days, Rate: rate})
}

// HandleFleetRates handles GET /v1/cities/{id}/compliance-rates?days=.
func (h *ComplianceHandler) HandleFleetRates(w http.ResponseWriter, r *http.Request) {
	days, err := rateDays(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	rates, err := h.service.FleetComplianceRates(r.Context(), chi.URLParam(r, "id"), days)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if rates == nil {
		rates = []compliance.BuildingRate{}
	}
	core.Data(w, r, http.StatusOK, rates)
}

// HandleRecordUpload handles POST /v1/uploads.
func (h *ComplianceHandler) HandleRecordUpload(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	upload, err := h.service.RecordUpload(r.Context(), req.MessageID, req.PhotoRef)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusCreated, upload)
}

// HandleMarkCompliant handles POST /v1/uploads/{id}/compliance, which
// re-derives an upload's compliance flag.
func (h *ComplianceHandler) HandleMarkCompliant(w http.ResponseWriter, r *http.Request) {
	upload, err := h.service.MarkUploadCompliant(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, upload)
}

func rateDays(r *http.Request) (int, error) {
	days, err := core.QueryInt(r, "days", compliance.DefaultRateDays)
	if err != nil {
		return 0, err
	}
	if days < 1 || days > 366 {
		return 0, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidValue,
			"days must be between 1 and 366", nil, map[string]any{"param": "days"})
	}
	return days, nil
}
