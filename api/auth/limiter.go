package auth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/learnify/learnify-gateway/metrics"
	"github.com/learnify/learnify-gateway/util"
)

// ErrTooManyAttempts is rendered when a client exceeds the login rate
var ErrTooManyAttempts = errors.New("too many login attempts, try again later")

// LoginLimiter is a wrapper around a standard sync.Map of per-client
// token buckets that also periodically evicts idle entries.
// This keeps the map from growing with every address that ever tried to log in
type LoginLimiter struct {
	internal sync.Map
	limit    rate.Limit
	burst    int
	maxIdle  time.Duration
}

// item is the value type for the internal map
type item struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// NewLoginLimiter creates a new instance of LoginLimiter
// and starts the goroutine that evicts idle entries.
// The goroutine exits when ctx is cancelled
func NewLoginLimiter(ctx context.Context, perSecond float64, burst int,
	interval time.Duration, maxIdle time.Duration) *LoginLimiter {

	l := &LoginLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		maxIdle: maxIdle,
	}

	go l.evict(ctx, interval)
	return l
}

// Blocking function that periodically evicts idle entries
func (l *LoginLimiter) evict(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.evictIdle(now)
		}
	}
}

func (l *LoginLimiter) evictIdle(now time.Time) {
	cutoff := now.Add(-l.maxIdle).UnixNano()
	l.internal.Range(func(key interface{}, value interface{}) bool {
		if value.(*item).lastSeen.Load() < cutoff {
			l.internal.Delete(key)
		}
		return true
	})
}

// Allow reports whether the client identified by key may attempt a login now
func (l *LoginLimiter) Allow(key string) bool {
	fresh := &item{limiter: rate.NewLimiter(l.limit, l.burst)}
	value, _ := l.internal.LoadOrStore(key, fresh)
	entry := value.(*item)
	entry.lastSeen.Store(time.Now().UnixNano())
	return entry.limiter.Allow()
}

// Len returns the number of tracked clients
func (l *LoginLimiter) Len() int {
	n := 0
	l.internal.Range(func(key interface{}, value interface{}) bool {
		n++
		return true
	})
	return n
}

// Middleware rejects requests from clients over their login rate with 429.
// Clients are keyed by remote IP, which middleware.RealIP rewrites
// when forwarded headers are trusted
func (l *LoginLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientIP(r)) {
			metrics.RecordLogin("rate_limited")
			w.Header().Set("Retry-After", "1")
			util.ErrorWithCode(w, r, ErrTooManyAttempts, http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
