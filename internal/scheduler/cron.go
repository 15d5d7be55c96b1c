package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"tempguard/internal/config"
)

// CronRunner triggers the Runner from standard five-field cron specs inside
// a long-running process. A cycle still running when its next tick fires is
// skipped for that tick.
type CronRunner struct {
	cron   *cron.Cron
	runner *Runner
	logger *slog.Logger
}

// NewCronRunner registers every cycle with its spec from cfg. An invalid
// spec fails construction.
func NewCronRunner(runner *Runner, cfg config.SchedulerConfig, logger *slog.Logger) (*CronRunner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger: logger}
	c := cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl))

	cr := &CronRunner{cron: c, runner: runner, logger: logger}
	specs := map[Cycle]string{
		CycleCheckAlerts:     cfg.CheckAlertsSpec,
		CycleDailySummary:    cfg.DailySummarySpec,
		CycleSendPending:     cfg.SendPendingSpec,
		CycleCheckCompliance: cfg.CheckComplianceSpec,
	}
	for _, cycle := range Cycles {
		spec := specs[cycle]
		if spec == "" {
			logger.Warn("cycle has no schedule, not registered", "cycle", cycle)
			continue
		}
		if _, err := c.AddFunc(spec, cr.job(cycle)); err != nil {
			return nil, fmt.Errorf("scheduling %s with %q: %w", cycle, spec, err)
		}
	}
	return cr, nil
}

func (c *CronRunner) job(cycle Cycle) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.runner.lockTTL)
		defer cancel()
		if _, err := c.runner.RunCycle(ctx, cycle); err != nil {
			c.logger.Error("scheduled cycle failed", "cycle", cycle, "error", err)
		}
	}
}

// Entries reports how many cycles are scheduled.
func (c *CronRunner) Entries() int {
	return len(c.cron.Entries())
}

func (c *CronRunner) Start() {
	c.cron.Start()
}

// Stop stops scheduling and waits for running cycles until ctx is done.
func (c *CronRunner) Stop(ctx context.Context) error {
	done := c.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
