package gateway

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/inferna-ai/inferna/internal/apierr"
	"github.com/inferna-ai/inferna/internal/types"
)

// RateLimiter is a sliding-window-counter limiter keyed by client IP, per
// spec.md §4.5. Grounded on the mutex-guarded-map-plus-GC-loop shape of the
// teacher's UniversalRateLimiter (api/pkg/openai/rate_limiter.go), simplified
// from its token-bucket model to the spec's sliding counter.
type RateLimiter struct {
	windowMs    int64
	maxRequests int

	mu       sync.Mutex
	windows  map[string]*types.RateWindow
}

func NewRateLimiter(windowMs int64, maxRequests int) *RateLimiter {
	if windowMs <= 0 {
		windowMs = 60000
	}
	if maxRequests <= 0 {
		maxRequests = 100
	}
	return &RateLimiter{
		windowMs:    windowMs,
		maxRequests: maxRequests,
		windows:     make(map[string]*types.RateWindow),
	}
}

// Allow applies the sliding-count contract for key, returning false once
// the window's request budget is exhausted.
func (l *RateLimiter) Allow(key string) bool {
	window := time.Duration(l.windowMs) * time.Millisecond
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.WindowStart) > window {
		l.windows[key] = &types.RateWindow{ClientKey: key, Requests: 1, WindowStart: now}
		return true
	}
	if w.Requests >= l.maxRequests {
		return false
	}
	w.Requests++
	return true
}

// GC prunes entries whose window is more than twice the window length
// stale, per spec.md §4.5's "GC loop every 60 s" contract.
func (l *RateLimiter) GC() {
	cutoff := 2 * time.Duration(l.windowMs) * time.Millisecond
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.windows {
		if now.Sub(w.WindowStart) > cutoff {
			delete(l.windows, key)
		}
	}
}

// Run starts the GC loop on its own goroutine, returning once ctx is
// cancelled.
func (l *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.GC()
		}
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit returns middleware enforcing l against the caller's IP. When
// enabled is false every request passes through.
func RateLimit(l *RateLimiter, enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(rw, r)
				return
			}
			if !l.Allow(clientKey(r)) {
				log.Debug().Str("client", clientKey(r)).Msg("rate limit exceeded")
				writeError(rw, apierr.ErrRateLimited)
				return
			}
			next.ServeHTTP(rw, r)
		})
	}
}
