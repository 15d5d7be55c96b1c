package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tempguard/internal/core"
	"tempguard/internal/types"
)

// TemplateService is the subset of messaging.Service that manages city
// message templates.
type TemplateService interface {
	SaveTemplate(ctx context.Context, cityID string, kind types.MessageKind, content, subject string) (*types.MessageTemplate, error)
	ListCityTemplates(ctx context.Context, cityID string) ([]types.MessageTemplate, error)
	DeleteTemplate(ctx context.Context, id string) error
}

// TemplateRequest is the body of PUT /v1/cities/{id}/templates/{kind}.
type TemplateRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
	Subject string `json:"subject" validate:"omitempty,max=200"`
}

type TemplateHandler struct {
	service   TemplateService
	validator *core.Validator
	logger    *slog.Logger
}

func NewTemplateHandler(svc TemplateService, val *core.Validator, logger *slog.Logger) *TemplateHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TemplateHandler{service: svc, validator: val, logger: logger}
}

func (h *TemplateHandler) RegisterRoutes(r chi.Router) {
	r.Get("/cities/{id}/templates", h.HandleList)
	r.Put("/cities/{id}/templates/{kind}", h.HandleSave)
	r.Delete("/templates/{id}", h.HandleDelete)
}

func (h *TemplateHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListCityTemplates(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, list)
}

// HandleSave replaces the city's active template for the kind in the path.
// Placeholder validation happens in the service.
func (h *TemplateHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	kind := types.MessageKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidKind,
			"template kind must be alert, daily_summary or warning", nil, map[string]any{"kind": string(kind)}))
		return
	}

	var req TemplateRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	t, err := h.service.SaveTemplate(r.Context(), chi.URLParam(r, "id"), kind, req.Content, req.Subject)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, t)
}

func (h *TemplateHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteTemplate(r.Context(), chi.URLParam(r, "id")); err != nil {
		core.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
