package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPinger struct {
	err   error
	delay time.Duration
}

func (m mockPinger) Ping(ctx context.Context) error {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.err
}

type panicProbe struct{}

func (panicProbe) Name() string                { return "broken" }
func (panicProbe) Check(context.Context) error { panic("nil pool") }

func runHealth(t *testing.T, probes ...HealthProbe) (int, healthResponse) {
	t.Helper()
	srv, _ := newTestServer(t)
	srv.HealthProbes = probes
	rec := httptest.NewRecorder()

	srv.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestHandleHealth(t *testing.T) {
	t.Run("no probes", func(t *testing.T) {
		code, resp := runHealth(t)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "healthy", resp.Status)
	})

	t.Run("database up", func(t *testing.T) {
		code, resp := runHealth(t, DBProbe{DB: mockPinger{}})
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, componentStatus{Status: "healthy"}, resp.Components["database"])
	})

	t.Run("database down", func(t *testing.T) {
		code, resp := runHealth(t, DBProbe{DB: mockPinger{err: errors.New("connection refused")}})
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "unhealthy", resp.Status)
		assert.Equal(t, "connection refused", resp.Components["database"].Message)
	})

	t.Run("panicking probe", func(t *testing.T) {
		code, resp := runHealth(t, DBProbe{DB: mockPinger{}}, panicProbe{})
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Contains(t, resp.Components["broken"].Message, "probe panicked")
		assert.Equal(t, "healthy", resp.Components["database"].Status)
	})
}

func TestHandleHealth_SlowProbe(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the health check deadline")
	}
	code, resp := runHealth(t, DBProbe{DB: mockPinger{delay: 10 * time.Second}})

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", resp.Components["database"].Status)
}
