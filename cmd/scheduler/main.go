// Package main is the entrypoint for the tempguard scheduler.
//
// Outside Lambda it runs a long-lived robfig/cron loop that triggers each
// cycle on its configured spec. Inside Lambda it is a cycle multiplexer:
// EventBridge rules send a CyclePayload and the handler runs that one
// cycle. Both modes share scheduler.Runner, so every run is guarded by a
// job lock and recorded in job history.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"tempguard/internal/app"
	"tempguard/internal/scheduler"
)

// CycleRunner is satisfied by *scheduler.Runner.
type CycleRunner interface {
	Run(ctx context.Context, payload scheduler.CyclePayload) (*scheduler.Result, error)
}

// Handler processes EventBridge invocations.
type Handler struct {
	Runner CycleRunner
	Logger *slog.Logger
}

// Handle runs the payload's cycle and returns a one-line summary for the
// Lambda console. A skipped run is not an error; a failed one is, so
// EventBridge retries it.
func (h *Handler) Handle(ctx context.Context, payload scheduler.CyclePayload) (string, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "scheduler invoked", "cycle", payload.Cycle)

	res, err := h.Runner.Run(ctx, payload)
	if err != nil {
		return "", err
	}
	if res.Skipped {
		return fmt.Sprintf("skipped: lock %s held by another worker", res.LockID), nil
	}
	return fmt.Sprintf("completed: %s processed %d items", res.Cycle, res.Items), nil
}

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

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	a, err := app.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		return fmt.Errorf("wiring services: %w", err)
	}
	defer a.Close()

	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		logger.Info("scheduler starting in Lambda mode")
		h := &Handler{Runner: a.Runner, Logger: logger}
		lambda.Start(h.Handle)
		return nil
	}

	cr, err := scheduler.NewCronRunner(a.Runner, cfg.Scheduler, logger)
	if err != nil {
		return err
	}
	cr.Start()
	logger.Info("scheduler started", "entries", cr.Entries())

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	sig := <-shutdown
	logger.Info("shutdown signal received", "signal", sig.String())

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Scheduler.LockTTL)
	defer stopCancel()
	if err := cr.Stop(stopCtx); err != nil {
		logger.Warn("running cycles did not finish before shutdown", "error", err)
	}
	logger.Info("scheduler stopped")
	return nil
}
