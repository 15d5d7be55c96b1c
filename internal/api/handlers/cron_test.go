package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempguard/internal/scheduler"
)

type mockCycleRunner struct {
	ran     []scheduler.Cycle
	skipped bool
	err     error
}

func (m *mockCycleRunner) RunCycle(_ context.Context, cycle scheduler.Cycle) (*scheduler.Result, error) {
	m.ran = append(m.ran, cycle)
	if m.err != nil {
		return nil, m.err
	}
	return &scheduler.Result{Cycle: cycle, LockID: string(cycle), Skipped: m.skipped, Items: 3}, nil
}

func newCronRouter(runner CycleRunner) http.Handler {
	r := chi.NewRouter()
	r.Route("/cron", NewCronHandler(runner, testLogger).RegisterRoutes)
	return r
}

func TestCronHandler_TriggersEachCycle(t *testing.T) {
	runner := &mockCycleRunner{}
	router := newCronRouter(runner)

	for path, cycle := range map[string]scheduler.Cycle{
		"/cron/check-alerts":     scheduler.CycleCheckAlerts,
		"/cron/daily-summary":    scheduler.CycleDailySummary,
		"/cron/send-pending":     scheduler.CycleSendPending,
		"/cron/check-compliance": scheduler.CycleCheckCompliance,
	} {
		runner.ran = nil
		rec := serve(t, router, http.MethodPost, path, "")
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, []scheduler.Cycle{cycle}, runner.ran)

		var res scheduler.Result
		decodeData(t, rec, &res)
		assert.Equal(t, cycle, res.Cycle)
		assert.Equal(t, 3, res.Items)
	}
}

func TestCronHandler_SkippedIsOK(t *testing.T) {
	router := newCronRouter(&mockCycleRunner{skipped: true})

	rec := serve(t, router, http.MethodPost, "/cron/daily-summary", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var res scheduler.Result
	decodeData(t, rec, &res)
	assert.True(t, res.Skipped)
}

func TestCronHandler_Failure(t *testing.T) {
	router := newCronRouter(&mockCycleRunner{err: errors.New("pool exhausted")})

	rec := serve(t, router, http.MethodPost, "/cron/send-pending", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pool exhausted")
}

func TestCronHandler_RejectsGet(t *testing.T) {
	router := newCronRouter(&mockCycleRunner{})

	rec := serve(t, router, http.MethodGet, "/cron/check-alerts", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
