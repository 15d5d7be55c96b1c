// Package main is the entry point for the tempguard API server.
//
// It loads the configuration, wires the domain services through
// internal/app, mounts the /v1 and /cron handlers on the core chassis and
// serves HTTP. Inside AWS Lambda the same router is served behind a
// Function URL via lambdaurl.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambdaurl"

	"tempguard/internal/api/handlers"
	"tempguard/internal/app"
	"tempguard/internal/config"
	"tempguard/internal/core"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}

	logger := app.NewLogger(cfg.LogLevel)
	logger.Info("tempguard API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	a, err := app.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		return fmt.Errorf("wiring services: %w", err)
	}

	srv, err := newServer(cfg, logger, a)
	if err != nil {
		_ = a.Close()
		return fmt.Errorf("creating server: %w", err)
	}

	if isLambdaEnvironment() {
		logger.Info("serving via Lambda function URL")
		lambdaurl.Start(srv.Handler())
		return nil
	}
	return runHTTPServer(srv, cfg, logger)
}

// newServer builds the chassis and registers every handler.
func newServer(cfg *config.Config, logger *slog.Logger, a *app.App) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, err
	}
	if a.Metrics != nil {
		srv.Metrics = a.Metrics
	}
	srv.HealthProbes = append(srv.HealthProbes, core.DBProbe{DB: a.Pool})
	srv.Closers = append(srv.Closers, a.Close)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		handlers.NewLocationHandler(a.Alerts, logger).RegisterRoutes,
		handlers.NewEnergyHandler(a.Energy, srv.Validator, logger).RegisterRoutes,
		handlers.NewComplianceHandler(a.Compliance, srv.Validator, logger).RegisterRoutes,
		handlers.NewTemplateHandler(a.Messages, srv.Validator, logger).RegisterRoutes,
	)
	srv.CronRouteRegistrars = append(srv.CronRouteRegistrars,
		handlers.NewCronHandler(a.Runner, logger).RegisterRoutes,
	)

	srv.MountRoutes()
	return srv, nil
}

// isLambdaEnvironment returns true if the process is running inside AWS Lambda.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	// Closes the DB pool.
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}
