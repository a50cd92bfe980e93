package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"controlhub/internal/pkg/errors"
)

// RateLimiter keeps one token bucket per client IP and route class.
type RateLimiter struct {
	store   sync.Map // map[string]*bucket
	idleTTL time.Duration
	done    chan struct{}
}

type bucket struct {
	limiter    *rate.Limiter
	mu         sync.Mutex
	lastAccess time.Time
}

func NewRateLimiter() *RateLimiter {
	rl := &RateLimiter{idleTTL: 10 * time.Minute, done: make(chan struct{})}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) Stop() {
	close(rl.done)
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.idleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case now := <-ticker.C:
			rl.store.Range(func(key, value interface{}) bool {
				b := value.(*bucket)
				b.mu.Lock()
				if now.Sub(b.lastAccess) > rl.idleTTL {
					rl.store.Delete(key)
				}
				b.mu.Unlock()
				return true
			})
		}
	}
}

// Allow spends one token from key's bucket. perMinute is both the refill
// rate and the burst size.
func (rl *RateLimiter) Allow(key string, perMinute int) bool {
	if perMinute <= 0 {
		return true
	}

	val, _ := rl.store.LoadOrStore(key, &bucket{
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
	})
	b := val.(*bucket)

	b.mu.Lock()
	b.lastAccess = time.Now()
	b.mu.Unlock()

	return b.limiter.Allow()
}

// Limit rate limits a route class per client IP.
func (rl *RateLimiter) Limit(class string, perMinute int) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(class+":"+ClientIP(r), perMinute) {
				w.Header().Set("Retry-After", strconv.Itoa(60/max(perMinute, 1)+1))
				errors.WriteError(w, http.StatusTooManyRequests, errors.ErrCodeRateLimitExceeded, "Rate limit exceeded", nil)
				return
			}
			next(w, r)
		}
	}
}

// ClientIP is the host part of RemoteAddr. Forwarding headers are ignored
// because they are client controlled.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
