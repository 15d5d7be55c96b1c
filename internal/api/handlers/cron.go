// Package handlers contains the HTTP handlers of the alert portal API.
//
// Each handler owns a local service interface, a validator and a logger,
// and mounts its endpoints through RegisterRoutes. Handlers translate
// between HTTP and the domain services; they hold no business rules.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tempguard/internal/core"
	"tempguard/internal/scheduler"
)

// CycleRunner is satisfied by *scheduler.Runner.
type CycleRunner interface {
	RunCycle(ctx context.Context, cycle scheduler.Cycle) (*scheduler.Result, error)
}

// CronHandler exposes the scheduled cycles for external triggers. It is
// mounted under /cron, behind the cron secret middleware.
type CronHandler struct {
	runner CycleRunner
	logger *slog.Logger
}

func NewCronHandler(runner CycleRunner, logger *slog.Logger) *CronHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CronHandler{runner: runner, logger: logger}
}

func (h *CronHandler) RegisterRoutes(r chi.Router) {
	r.Post("/check-alerts", h.trigger(scheduler.CycleCheckAlerts))
	r.Post("/daily-summary", h.trigger(scheduler.CycleDailySummary))
	r.Post("/send-pending", h.trigger(scheduler.CycleSendPending))
	r.Post("/check-compliance", h.trigger(scheduler.CycleCheckCompliance))
}

// trigger runs cycle synchronously. A cycle skipped because another worker
// holds its lock still answers 200 with skipped set.
func (h *CronHandler) trigger(cycle scheduler.Cycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := h.runner.RunCycle(r.Context(), cycle)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "cron trigger failed", "cycle", cycle, "error", err)
			core.Error(w, r, err)
			return
		}
		core.Data(w, r, http.StatusOK, result)
	}
}
