// Package core provides the API chassis for the temperature alert portal.
// It creates a chi router usable both as a standalone HTTP server and behind
// a Lambda proxy integration, and enforces cross-cutting concerns (logging,
// metrics, cron authentication and error formatting) before requests reach
// the domain handlers.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tempguard/internal/config"
)

// MetricsCollector records API request latency and count. The telemetry
// Recorder implements it.
type MetricsCollector interface {
	RecordAPIRequest(ctx context.Context, method, endpoint string, status int, duration time.Duration)
}

// RouteRegistrar mounts a group of handler routes on a router. Handler
// packages register themselves through registrars so core never imports
// them.
type RouteRegistrar func(r chi.Router)

// Server holds the dependencies shared by every route.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Metrics   MetricsCollector

	HealthProbes []HealthProbe

	// V1RouteRegistrars mount the public API under /v1.
	V1RouteRegistrars []RouteRegistrar
	// CronRouteRegistrars mount scheduler triggers under /cron, behind the
	// cron secret check.
	CronRouteRegistrars []RouteRegistrar

	// Closers are released on Shutdown, in order.
	Closers []func() error

	router *chi.Mux
}

// NewServer validates the critical dependencies and prepares an empty
// router. Callers set registrars and probes, then call MountRoutes.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases every registered closer. All closers run even when one
// fails; the errors are joined.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown initiated")

	var errs []error
	for _, c := range s.Closers {
		if err := c(); err != nil {
			s.Logger.ErrorContext(ctx, "error releasing server resource", "error", err)
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}
