package external

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempguard/internal/types"
)

func noopSleep(time.Duration) {}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, MinWait: time.Millisecond, MaxWait: 10 * time.Second}
}

func newTestBase(policy RetryPolicy, opts ...BaseClientOption) *BaseClient {
	opts = append([]BaseClientOption{WithSleepFunc(noopSleep)}, opts...)
	return NewBaseClient(&http.Client{Timeout: 5 * time.Second}, "test", policy, "tempguard-test/1.0", opts...)
}

func get(t *testing.T, ctx context.Context, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	return req
}

func requireAppError(t *testing.T, err error, code types.ErrorCode) {
	t.Helper()
	appErr, ok := err.(*types.AppError)
	require.Truef(t, ok, "expected *types.AppError, got %T (%v)", err, err)
	assert.Equal(t, code, appErr.Code)
}

func TestDo_SetsTraceAndUserAgent(t *testing.T) {
	var trace, ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trace = r.Header.Get("X-B3-TraceId")
		ua = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx := types.WithRequestID(context.Background(), "req-42")
	resp, err := newTestBase(fastPolicy()).Do(get(t, ctx, srv.URL))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "req-42", trace)
	assert.Equal(t, "tempguard-test/1.0", ua)
}

func TestDo_RetriesServerErrorsThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	resp, err := newTestBase(fastPolicy()).Do(get(t, context.Background(), srv.URL))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_ExhaustedRetries(t *testing.T) {
	tests := []struct {
		name   string
		status int
		opts   []BaseClientOption
		want   types.ErrorCode
	}{
		{"5xx default code", http.StatusBadGateway, nil, types.ErrCodeUpstreamUnavailable},
		{"5xx custom code", http.StatusInternalServerError, []BaseClientOption{WithUpstreamCode(types.ErrCodeUpstreamWeather)}, types.ErrCodeUpstreamWeather},
		{"429", http.StatusTooManyRequests, nil, types.ErrCodeUpstreamRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			resp, err := newTestBase(fastPolicy(), tt.opts...).Do(get(t, context.Background(), srv.URL))
			assert.Nil(t, resp)
			requireAppError(t, err, tt.want)
			assert.Equal(t, int32(4), calls.Load())
		})
	}
}

func TestDo_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := newTestBase(fastPolicy()).Do(get(t, context.Background(), srv.URL))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestBase(fastPolicy(), WithUpstreamCode(types.ErrCodeUpstreamSMSProvider)).
		Do(get(t, context.Background(), url))
	requireAppError(t, err, types.ErrCodeUpstreamSMSProvider)
}

func TestDo_HonoursRetryAfter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.Header().Set("Retry-After", "3600")
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	var waits []time.Duration
	base := newTestBase(fastPolicy(), WithSleepFunc(func(d time.Duration) { waits = append(waits, d) }))

	resp, err := base.Do(get(t, context.Background(), srv.URL))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []time.Duration{2 * time.Second, 10 * time.Second}, waits)
}

func TestDo_ReplaysBodyOnRetry(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if len(bodies) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader("To=%2B15550100"))
	require.NoError(t, err)

	resp, err := newTestBase(fastPolicy()).Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{"To=%2B15550100", "To=%2B15550100"}, bodies)
}

func TestDo_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	base := newTestBase(RetryPolicy{MaxRetries: 0, MinWait: time.Millisecond, MaxWait: time.Millisecond})
	for i := 0; i < 6; i++ {
		_, err := base.Do(get(t, context.Background(), srv.URL))
		require.Error(t, err)
	}

	_, err := base.Do(get(t, context.Background(), srv.URL))
	requireAppError(t, err, types.ErrCodeUpstreamUnavailable)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.Equal(t, int32(6), calls.Load())
}

func TestBackoff_StaysWithinPolicy(t *testing.T) {
	base := newTestBase(RetryPolicy{MaxRetries: 5, MinWait: 100 * time.Millisecond, MaxWait: time.Second})
	for attempt := 0; attempt < 8; attempt++ {
		d := base.backoff(attempt, nil)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, time.Second)
	}
}
