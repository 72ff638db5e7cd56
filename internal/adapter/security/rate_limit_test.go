package security

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/ngsiproxy/internal/logger"
	"github.com/thushan/ngsiproxy/internal/util"
)

func createTestLogger() logger.StyledLogger {
	return logger.NewPlainStyledLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type fakeRejections struct {
	routes []string
	mu     sync.Mutex
}

func (f *fakeRejections) RecordRateLimited(route string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes = append(f.routes, route)
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(RateLimits{RequestsPerMinute: 60, BurstSize: 2}, nil, createTestLogger())
	defer rl.Stop()

	now := time.Now()

	ok, _ := rl.Allow("10.0.0.1", now)
	assert.True(t, ok)
	ok, _ = rl.Allow("10.0.0.1", now)
	assert.True(t, ok)

	ok, retryAfter := rl.Allow("10.0.0.1", now)
	assert.False(t, ok)
	assert.Equal(t, 2, retryAfter)

	// buckets are per client
	ok, _ = rl.Allow("10.0.0.2", now)
	assert.True(t, ok)

	// one token back after a second at 60/min
	ok, _ = rl.Allow("10.0.0.1", now.Add(time.Second))
	assert.True(t, ok)
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(RateLimits{}, nil, createTestLogger())
	defer rl.Stop()

	for i := 0; i < 100; i++ {
		ok, _ := rl.Allow("10.0.0.1", time.Now())
		require.True(t, ok)
	}
	assert.Equal(t, 0, rl.clients.Size())
}

func TestRateLimiter_Middleware(t *testing.T) {
	recorder := &fakeRejections{}
	rl := NewRateLimiter(RateLimits{RequestsPerMinute: 30, BurstSize: 1}, recorder, createTestLogger())
	defer rl.Stop()

	handler := rl.Middleware("proxy")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/dataset/p/resource/r/ngsiproxy", nil)
		req.RemoteAddr = "192.0.2.10:5555"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	first := send()
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "30", first.Header().Get("X-RateLimit-Limit"))

	second := send()
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Equal(t, []string{"proxy"}, recorder.routes)
}

func TestRateLimiter_TrustedProxyHeaders(t *testing.T) {
	cidrs, err := util.ParseTrustedCIDRs([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	rl := NewRateLimiter(RateLimits{
		RequestsPerMinute: 60,
		BurstSize:         1,
		TrustProxyHeaders: true,
		TrustedCIDRs:      cidrs,
	}, nil, createTestLogger())
	defer rl.Stop()

	handler := rl.Middleware("proxy")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for _, client := range []string{"198.51.100.1", "198.51.100.2"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.1.1.1:443"
		req.Header.Set("X-Forwarded-For", client)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, client)
	}
	assert.Equal(t, 2, rl.clients.Size())
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(RateLimits{RequestsPerMinute: 60, BurstSize: 5}, nil, createTestLogger())
	defer rl.Stop()

	now := time.Now()
	rl.Allow("stale", now.Add(-time.Hour))
	rl.Allow("fresh", now)

	rl.cleanup(now)

	_, stale := rl.clients.Load("stale")
	_, fresh := rl.clients.Load("fresh")
	assert.False(t, stale)
	assert.True(t, fresh)
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(RateLimits{RequestsPerMinute: 60, CleanupInterval: time.Millisecond}, nil, createTestLogger())
	rl.Stop()
	rl.Stop()
}
