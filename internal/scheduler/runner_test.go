package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempguard/internal/alerts"
	"tempguard/internal/compliance"
	"tempguard/internal/config"
	"tempguard/internal/types"
)

var now = time.Date(2026, 1, 10, 7, 0, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type movingClock struct{ t time.Time }

func (c *movingClock) Now() time.Time { return c.t }

// expiringLocks behaves like job_locks: a lock is taken over once its
// expiry has passed.
type expiringLocks struct {
	clock   types.Clock
	owner   map[string]string
	expires map[string]time.Time
	ttls    []time.Duration
}

func newExpiringLocks(clock types.Clock) *expiringLocks {
	return &expiringLocks{clock: clock, owner: map[string]string{}, expires: map[string]time.Time{}}
}

func (f *expiringLocks) Acquire(_ context.Context, lockID, workerID string, ttl time.Duration) (bool, error) {
	f.ttls = append(f.ttls, ttl)
	at := f.clock.Now()
	if exp, ok := f.expires[lockID]; ok && !exp.Before(at) {
		return false, nil
	}
	f.owner[lockID] = workerID
	f.expires[lockID] = at.Add(ttl)
	return true, nil
}

func (f *expiringLocks) Release(_ context.Context, lockID, workerID string) error {
	if f.owner[lockID] == workerID {
		delete(f.owner, lockID)
		delete(f.expires, lockID)
	}
	return nil
}

type fakeLocks struct {
	held       map[string]string
	acquireErr error
	released   []string
}

func (f *fakeLocks) Acquire(_ context.Context, lockID, workerID string, _ time.Duration) (bool, error) {
	if f.acquireErr != nil {
		return false, f.acquireErr
	}
	if owner, ok := f.held[lockID]; ok && owner != workerID {
		return false, nil
	}
	f.held[lockID] = workerID
	return true, nil
}

func (f *fakeLocks) Release(_ context.Context, lockID, workerID string) error {
	if f.held[lockID] == workerID {
		delete(f.held, lockID)
	}
	f.released = append(f.released, lockID)
	return nil
}

type historyEntry struct {
	jobType string
	status  string
	items   int
	err     error
}

type fakeHistory struct {
	entries  []historyEntry
	startErr error
}

func (f *fakeHistory) Start(_ context.Context, jobType string) (int64, error) {
	if f.startErr != nil {
		return 0, f.startErr
	}
	f.entries = append(f.entries, historyEntry{jobType: jobType, status: "running"})
	return int64(len(f.entries)), nil
}

func (f *fakeHistory) Finish(_ context.Context, id int64, status string, items int, err error) error {
	e := &f.entries[id-1]
	e.status, e.items, e.err = status, items, err
	return nil
}

type fakeCycles struct {
	fluctuation *alerts.CycleReport
	summary     *alerts.CycleReport
	err         error
	calls       []string
}

func (f *fakeCycles) RunFluctuationCycle(context.Context) (*alerts.CycleReport, error) {
	f.calls = append(f.calls, "fluctuation")
	return f.fluctuation, f.err
}

func (f *fakeCycles) RunDailySummaryCycle(context.Context) (*alerts.CycleReport, error) {
	f.calls = append(f.calls, "summary")
	return f.summary, f.err
}

type fakeSender struct{ summary *types.DispatchSummary }

func (f fakeSender) SendPending(context.Context) (*types.DispatchSummary, error) {
	return f.summary, nil
}

type fakeWarnings struct{ report *compliance.WarningReport }

func (f fakeWarnings) CheckAndSendWarnings(context.Context) (*compliance.WarningReport, error) {
	return f.report, nil
}

type harness struct {
	runner  *Runner
	locks   *fakeLocks
	history *fakeHistory
	cycles  *fakeCycles
}

func newHarness() *harness {
	h := &harness{
		locks:   &fakeLocks{held: map[string]string{}},
		history: &fakeHistory{},
		cycles: &fakeCycles{
			fluctuation: &alerts.CycleReport{Cycle: alerts.CycleCheckAlerts, LocationsChecked: 4, AlertsFired: 2},
			summary:     &alerts.CycleReport{Cycle: alerts.CycleDailySummary, LocationsChecked: 4, AlertsFired: 4},
		},
	}
	h.runner = NewRunner(Config{
		Alerts:     h.cycles,
		Messages:   fakeSender{summary: &types.DispatchSummary{Processed: 5, Sent: 3, Failed: 2}},
		Compliance: fakeWarnings{report: &compliance.WarningReport{Candidates: 2, Warned: 1}},
		Locks:      h.locks,
		History:    h.history,
		WorkerID:   "worker-1",
		Clock:      fixedClock{now},
	})
	return h
}

func TestRun_Cycles(t *testing.T) {
	tests := []struct {
		cycle     Cycle
		wantItems int
		wantLock  string
		released  bool
	}{
		{cycle: CycleCheckAlerts, wantItems: 2, wantLock: "check_alerts", released: true},
		{cycle: CycleDailySummary, wantItems: 4, wantLock: "daily_summary:2026-01-10", released: false},
		{cycle: CycleSendPending, wantItems: 3, wantLock: "send_pending", released: true},
		{cycle: CycleCheckCompliance, wantItems: 1, wantLock: "check_compliance", released: true},
	}
	for _, tt := range tests {
		t.Run(string(tt.cycle), func(t *testing.T) {
			h := newHarness()

			res, err := h.runner.RunCycle(context.Background(), tt.cycle)
			require.NoError(t, err)

			assert.False(t, res.Skipped)
			assert.Equal(t, tt.wantItems, res.Items)
			assert.Equal(t, tt.wantLock, res.LockID)
			assert.NotNil(t, res.Report)
			assert.Equal(t, []historyEntry{{jobType: string(tt.cycle), status: "success", items: tt.wantItems}}, h.history.entries)

			_, stillHeld := h.locks.held[tt.wantLock]
			assert.Equal(t, !tt.released, stillHeld)
		})
	}
}

func TestRun_DailySummaryOncePerDay(t *testing.T) {
	h := newHarness()

	_, err := h.runner.RunCycle(context.Background(), CycleDailySummary)
	require.NoError(t, err)

	other := NewRunner(Config{Alerts: h.cycles, Locks: h.locks, History: h.history, WorkerID: "worker-2", Clock: fixedClock{now.Add(3 * time.Hour)}})
	res, err := other.RunCycle(context.Background(), CycleDailySummary)
	require.NoError(t, err)

	assert.True(t, res.Skipped)
	assert.Equal(t, []string{"summary"}, h.cycles.calls)

	tomorrow := now.Add(24 * time.Hour)
	res, err = other.Run(context.Background(), CyclePayload{Cycle: CycleDailySummary, ReferenceTime: &tomorrow})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, "daily_summary:2026-01-11", res.LockID)
}

func TestRun_DailySummaryLockLastsUntilMidnight(t *testing.T) {
	clock := &movingClock{t: now}
	locks := newExpiringLocks(clock)
	cycles := &fakeCycles{summary: &alerts.CycleReport{Cycle: alerts.CycleDailySummary, AlertsFired: 4}}
	newRunner := func(worker string) *Runner {
		return NewRunner(Config{Alerts: cycles, Locks: locks, History: &fakeHistory{}, WorkerID: worker, Clock: clock})
	}

	res, err := newRunner("worker-1").RunCycle(context.Background(), CycleDailySummary)
	require.NoError(t, err)
	require.False(t, res.Skipped)
	assert.Equal(t, []time.Duration{17 * time.Hour}, locks.ttls)

	// Well past the default lock TTL, still the same day.
	for _, later := range []time.Duration{11 * time.Minute, 16 * time.Hour} {
		clock.t = now.Add(later)
		res, err = newRunner("worker-2").RunCycle(context.Background(), CycleDailySummary)
		require.NoError(t, err)
		assert.True(t, res.Skipped, "trigger at +%s", later)
	}
	assert.Equal(t, []string{"summary"}, cycles.calls)

	clock.t = time.Date(2026, 1, 11, 0, 0, 1, 0, time.UTC)
	res, err = newRunner("worker-2").RunCycle(context.Background(), CycleDailySummary)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, "daily_summary:2026-01-11", res.LockID)
	assert.Equal(t, []string{"summary", "summary"}, cycles.calls)
}

func TestRun_FailedDailySummaryCanBeRetried(t *testing.T) {
	clock := &movingClock{t: now}
	locks := newExpiringLocks(clock)
	cycles := &fakeCycles{err: errors.New("list active locations: timeout")}
	runner := NewRunner(Config{Alerts: cycles, Locks: locks, History: &fakeHistory{}, WorkerID: "worker-1", Clock: clock})

	_, err := runner.RunCycle(context.Background(), CycleDailySummary)
	require.Error(t, err)
	assert.NotContains(t, locks.owner, "daily_summary:2026-01-10")

	cycles.err = nil
	cycles.summary = &alerts.CycleReport{Cycle: alerts.CycleDailySummary, AlertsFired: 4}
	clock.t = now.Add(time.Minute)
	res, err := runner.RunCycle(context.Background(), CycleDailySummary)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 4, res.Items)
}

func TestRun_ReleasedCyclesUseLockTTL(t *testing.T) {
	locks := newExpiringLocks(fixedClock{now})
	runner := NewRunner(Config{
		Messages: fakeSender{summary: &types.DispatchSummary{}},
		Locks:    locks,
		History:  &fakeHistory{},
		WorkerID: "worker-1",
		Clock:    fixedClock{now},
	})

	_, err := runner.RunCycle(context.Background(), CycleSendPending)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{DefaultLockTTL}, locks.ttls)
}

func TestUntilEndOfDay(t *testing.T) {
	assert.Equal(t, time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC), untilEndOfDay(now))
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), untilEndOfDay(time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC)))
}

func TestRun_SkipsWhenLocked(t *testing.T) {
	h := newHarness()
	h.locks.held["check_alerts"] = "worker-9"

	res, err := h.runner.RunCycle(context.Background(), CycleCheckAlerts)
	require.NoError(t, err)

	assert.True(t, res.Skipped)
	assert.Empty(t, h.cycles.calls)
	assert.Empty(t, h.history.entries)
	assert.Equal(t, "worker-9", h.locks.held["check_alerts"])
}

func TestRun_CycleFailure(t *testing.T) {
	h := newHarness()
	h.cycles.err = errors.New("no locations")

	_, err := h.runner.RunCycle(context.Background(), CycleCheckAlerts)

	require.Error(t, err)
	require.Len(t, h.history.entries, 1)
	assert.Equal(t, "failed", h.history.entries[0].status)
	assert.EqualError(t, h.history.entries[0].err, "no locations")
	assert.Equal(t, []string{"check_alerts"}, h.locks.released)
}

func TestRun_HistoryFailureDoesNotStopCycle(t *testing.T) {
	h := newHarness()
	h.history.startErr = errors.New("db down")

	res, err := h.runner.RunCycle(context.Background(), CycleSendPending)

	require.NoError(t, err)
	assert.Equal(t, 3, res.Items)
}

func TestRun_Errors(t *testing.T) {
	h := newHarness()

	_, err := h.runner.RunCycle(context.Background(), "reindex")
	assert.True(t, types.IsCode(err, types.ErrCodeValidationInvalidValue))

	h.locks.acquireErr = errors.New("db down")
	_, err = h.runner.RunCycle(context.Background(), CycleSendPending)
	assert.ErrorContains(t, err, "acquiring job lock send_pending")
}

func TestNewCronRunner(t *testing.T) {
	h := newHarness()

	cr, err := NewCronRunner(h.runner, config.SchedulerConfig{
		CheckAlertsSpec:     "0 * * * *",
		DailySummarySpec:    "0 7 * * *",
		SendPendingSpec:     "*/5 * * * *",
		CheckComplianceSpec: "*/15 * * * *",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, cr.Entries())

	cr.Start()
	require.NoError(t, cr.Stop(context.Background()))

	_, err = NewCronRunner(h.runner, config.SchedulerConfig{CheckAlertsSpec: "every hour"}, nil)
	assert.ErrorContains(t, err, "check_alerts")
}

func TestCycleValid(t *testing.T) {
	for _, c := range Cycles {
		assert.True(t, c.Valid())
	}
	assert.False(t, Cycle("").Valid())
}
