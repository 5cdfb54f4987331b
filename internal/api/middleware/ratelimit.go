package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterMapLimit caps the per-IP map. Limiters are cheap; a full clear
// when the map grows past this is simpler than per-key last-access
// tracking.
const limiterMapLimit = 10000

// RateLimiter hands out one token bucket per client IP.
type RateLimiter struct {
	mu     sync.RWMutex
	byKey  map[string]*rate.Limiter
	perSec rate.Limit
	burst  int
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		byKey:  make(map[string]*rate.Limiter),
		perSec: rate.Limit(rps),
		burst:  burst,
	}
}

// Allow reports whether a request from key fits its bucket.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.RLock()
	lim, ok := rl.byKey[key]
	rl.mu.RUnlock()
	if ok {
		return lim.Allow()
	}

	rl.mu.Lock()
	if lim, ok = rl.byKey[key]; !ok {
		lim = rate.NewLimiter(rl.perSec, rl.burst)
		rl.byKey[key] = lim
	}
	rl.mu.Unlock()
	return lim.Allow()
}

// Cleanup clears the map once it grows past the cap.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	if len(rl.byKey) > limiterMapLimit {
		rl.byKey = make(map[string]*rate.Limiter)
	}
	rl.mu.Unlock()
}

// RateLimit limits requests per client IP. The key is X-Real-IP when
// chi's RealIP middleware has run, falling back to RemoteAddr.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(rps, burst)

	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			limiter.Cleanup()
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.Header.Get("X-Real-IP")
			if ip == "" {
				ip = r.RemoteAddr
			}

			if !limiter.Allow(ip) {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
