package security

/*
				ngsiproxy Security Adapter - Rate Limiter
	RateLimiter keeps one token bucket per client address so a single browser
	tab refreshing a live view can't hammer the context broker through us.
	Idle buckets are swept on a ticker.

	References:
	- https://pkg.go.dev/golang.org/x/time/rate
	- https://datatracker.ietf.org/doc/draft-ietf-httpapi-ratelimit-headers/
*/

import (
	"net/http"
	"net/netip"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/time/rate"

	"github.com/thushan/ngsiproxy/internal/logger"
	"github.com/thushan/ngsiproxy/internal/util"
)

const (
	DefaultCleanupInterval = 5 * time.Minute
	idleLimiterCutoff      = 10 * time.Minute
)

type RateLimits struct {
	TrustedCIDRs      []netip.Prefix
	RequestsPerMinute int
	BurstSize         int
	CleanupInterval   time.Duration
	TrustProxyHeaders bool
}

// RejectionRecorder is told about every rejected request
type RejectionRecorder interface {
	RecordRateLimited(route string)
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess atomic.Int64 // unix nanos
}

type RateLimiter struct {
	clients       *xsync.Map[string, *clientLimiter]
	recorder      RejectionRecorder
	logger        logger.StyledLogger
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	limits        RateLimits
	stopOnce      sync.Once
}

func NewRateLimiter(limits RateLimits, recorder RejectionRecorder, log logger.StyledLogger) *RateLimiter {
	if limits.BurstSize <= 0 {
		limits.BurstSize = 1
	}

	rl := &RateLimiter{
		clients:     xsync.NewMap[string, *clientLimiter](),
		recorder:    recorder,
		logger:      log,
		limits:      limits,
		stopCleanup: make(chan struct{}),
	}

	if limits.RequestsPerMinute > 0 && limits.CleanupInterval > 0 {
		rl.cleanupTicker = time.NewTicker(limits.CleanupInterval)
		go rl.cleanupRoutine()
	}
	return rl
}

// Allow reports whether clientID may make another request now, and if not
// how many seconds it should wait
func (rl *RateLimiter) Allow(clientID string, now time.Time) (bool, int) {
	if rl.limits.RequestsPerMinute <= 0 {
		return true, 0
	}

	cl, _ := rl.clients.LoadOrCompute(clientID, func() (*clientLimiter, bool) {
		return &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(float64(rl.limits.RequestsPerMinute)/60.0), rl.limits.BurstSize),
		}, false
	})
	cl.lastAccess.Store(now.UnixNano())

	reservation := cl.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, 60
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, int(delay.Seconds()) + 1
	}
	return true, 0
}

// Middleware guards next, route is only used to label rejections
func (rl *RateLimiter) Middleware(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := util.GetClientIP(r, rl.limits.TrustProxyHeaders, rl.limits.TrustedCIDRs)

			allowed, retryAfter := rl.Allow(clientIP, time.Now())
			if rl.limits.RequestsPerMinute > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limits.RequestsPerMinute))
			}

			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				if rl.recorder != nil {
					rl.recorder.RecordRateLimited(route)
				}
				rl.logger.Warn("Rate limit exceeded",
					"client_ip", clientIP,
					"method", r.Method,
					"path", r.URL.Path,
					"retry_after", retryAfter)

				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) cleanupRoutine() {
	for {
		select {
		case <-rl.stopCleanup:
			return
		case <-rl.cleanupTicker.C:
			rl.cleanup(time.Now())
		}
	}
}

func (rl *RateLimiter) cleanup(now time.Time) {
	cutoff := now.Add(-idleLimiterCutoff)
	rl.clients.Range(func(key string, cl *clientLimiter) bool {
		if cl.lastAccess.Load() < cutoff.UnixNano() {
			rl.clients.Delete(key)
		}
		return true
	})
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		if rl.cleanupTicker != nil {
			rl.cleanupTicker.Stop()
		}
		close(rl.stopCleanup)
	})
}
