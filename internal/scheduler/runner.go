package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tempguard/internal/alerts"
	"tempguard/internal/compliance"
	"tempguard/internal/types"
)

// DefaultLockTTL bounds how long a crashed worker can block a cycle.
const DefaultLockTTL = 10 * time.Minute

type AlertCycles interface {
	RunFluctuationCycle(ctx context.Context) (*alerts.CycleReport, error)
	RunDailySummaryCycle(ctx context.Context) (*alerts.CycleReport, error)
}

type PendingSender interface {
	SendPending(ctx context.Context) (*types.DispatchSummary, error)
}

type WarningChecker interface {
	CheckAndSendWarnings(ctx context.Context) (*compliance.WarningReport, error)
}

// JobLocker is implemented by db.JobLockRepository.
type JobLocker interface {
	Acquire(ctx context.Context, lockID, workerID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, lockID, workerID string) error
}

// JobHistorian is implemented by db.JobHistoryRepository.
type JobHistorian interface {
	Start(ctx context.Context, jobType string) (int64, error)
	Finish(ctx context.Context, id int64, status string, items int, err error) error
}

type Config struct {
	Alerts     AlertCycles
	Messages   PendingSender
	Compliance WarningChecker
	Locks      JobLocker
	History    JobHistorian

	LockTTL  time.Duration
	WorkerID string
	Logger   *slog.Logger
	Clock    types.Clock
}

// Runner executes cycles under a job lock and records each run in the job
// history.
type Runner struct {
	alerts     AlertCycles
	messages   PendingSender
	compliance WarningChecker
	locks      JobLocker
	history    JobHistorian
	lockTTL    time.Duration
	workerID   string
	logger     *slog.Logger
	clock      types.Clock
}

func NewRunner(cfg Config) *Runner {
	r := &Runner{
		alerts:     cfg.Alerts,
		messages:   cfg.Messages,
		compliance: cfg.Compliance,
		locks:      cfg.Locks,
		history:    cfg.History,
		lockTTL:    cfg.LockTTL,
		workerID:   cfg.WorkerID,
		logger:     cfg.Logger,
		clock:      cfg.Clock,
	}
	if r.lockTTL <= 0 {
		r.lockTTL = DefaultLockTTL
	}
	if r.workerID == "" {
		r.workerID = uuid.NewString()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.clock == nil {
		r.clock = types.RealClock{}
	}
	return r
}

// lockFor returns the lock ID for a run and whether the lock is kept after
// the run. The daily summary keeps a per-day lock, taken until the end of
// the reference day, so a second trigger on the same day cannot send a
// second summary. A failed summary run releases it. The other cycles are
// released as soon as they finish.
func lockFor(cycle Cycle, ref time.Time) (string, bool) {
	if cycle == CycleDailySummary {
		return fmt.Sprintf("%s:%s", cycle, ref.UTC().Format("2006-01-02")), true
	}
	return string(cycle), false
}

// untilEndOfDay returns the UTC midnight that ends ref's day.
func untilEndOfDay(ref time.Time) time.Time {
	y, m, d := ref.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

// RunCycle runs cycle with the current time as reference.
func (r *Runner) RunCycle(ctx context.Context, cycle Cycle) (*Result, error) {
	return r.Run(ctx, CyclePayload{Cycle: cycle})
}

// Run executes the payload's cycle. A cycle whose lock is held elsewhere is
// skipped without error. History failures are logged and do not stop the
// cycle.
func (r *Runner) Run(ctx context.Context, payload CyclePayload) (*Result, error) {
	if !payload.Cycle.Valid() {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidValue,
			fmt.Sprintf("unknown cycle %q", payload.Cycle), nil)
	}
	ref := r.clock.Now()
	if payload.ReferenceTime != nil {
		ref = *payload.ReferenceTime
	}

	lockID, hold := lockFor(payload.Cycle, ref)
	logger := r.logger.With("cycle", payload.Cycle, "lock_id", lockID, "worker_id", r.workerID)
	result := &Result{Cycle: payload.Cycle, LockID: lockID}

	ttl := r.lockTTL
	if hold {
		ttl = max(ttl, untilEndOfDay(ref).Sub(r.clock.Now()))
	}
	acquired, err := r.locks.Acquire(ctx, lockID, r.workerID, ttl)
	if err != nil {
		return nil, fmt.Errorf("acquiring job lock %s: %w", lockID, err)
	}
	if !acquired {
		logger.InfoContext(ctx, "cycle skipped, lock held by another worker")
		result.Skipped = true
		return result, nil
	}
	if !hold {
		defer func() {
			// The run's context may already be cancelled.
			if err := r.locks.Release(context.WithoutCancel(ctx), lockID, r.workerID); err != nil {
				logger.ErrorContext(ctx, "failed to release job lock", "error", err)
			}
		}()
	}

	jobID, err := r.history.Start(ctx, string(payload.Cycle))
	if err != nil {
		logger.ErrorContext(ctx, "failed to start job history", "error", err)
		jobID = 0
	}

	started := r.clock.Now()
	items, report, execErr := r.dispatch(ctx, payload.Cycle)
	result.Items = items
	result.Report = report

	status := "success"
	if execErr != nil {
		status = "failed"
	}
	if jobID != 0 {
		if err := r.history.Finish(context.WithoutCancel(ctx), jobID, status, items, execErr); err != nil {
			logger.ErrorContext(ctx, "failed to finish job history", "job_id", jobID, "error", err)
		}
	}

	if execErr != nil {
		logger.ErrorContext(ctx, "cycle failed", "items", items, "error", execErr)
		if hold {
			// Nothing was sent, so a later trigger the same day may retry.
			if err := r.locks.Release(context.WithoutCancel(ctx), lockID, r.workerID); err != nil {
				logger.ErrorContext(ctx, "failed to release job lock", "error", err)
			}
		}
		return result, fmt.Errorf("cycle %s failed: %w", payload.Cycle, execErr)
	}
	logger.InfoContext(ctx, "cycle complete",
		"items", items,
		"duration", r.clock.Now().Sub(started),
	)
	return result, nil
}

func (r *Runner) dispatch(ctx context.Context, cycle Cycle) (int, any, error) {
	switch cycle {
	case CycleCheckAlerts:
		report, err := r.alerts.RunFluctuationCycle(ctx)
		if err != nil {
			return 0, nil, err
		}
		return report.AlertsFired, report, nil
	case CycleDailySummary:
		report, err := r.alerts.RunDailySummaryCycle(ctx)
		if err != nil {
			return 0, nil, err
		}
		return report.AlertsFired, report, nil
	case CycleSendPending:
		summary, err := r.messages.SendPending(ctx)
		if err != nil {
			return 0, nil, err
		}
		return summary.Sent, summary, nil
	case CycleCheckCompliance:
		report, err := r.compliance.CheckAndSendWarnings(ctx)
		if err != nil {
			return 0, nil, err
		}
		return report.Warned, report, nil
	default:
		return 0, nil, fmt.Errorf("unknown cycle %q", cycle)
	}
}
