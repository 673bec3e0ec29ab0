package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	visitorTTL = 10 * time.Minute
	gcInterval = 5 * time.Minute
)

type limiterEntry struct {
	limiter *rate.Limiter
	last    time.Time
}

// RateLimiter applies an IP-based token bucket per client. Idle clients are
// forgotten after visitorTTL.
type RateLimiter struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	visitors map[string]*limiterEntry

	stop chan struct{}
	once sync.Once
}

// NewRateLimiter starts the eviction loop. Call Stop to end it.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		visitors: map[string]*limiterEntry{},
		stop:     make(chan struct{}),
	}
	go rl.gc()
	return rl
}

func (rl *RateLimiter) gc() {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.evict(now)
		}
	}
}

func (rl *RateLimiter) evict(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for k, v := range rl.visitors {
		if now.Sub(v.last) > visitorTTL {
			delete(rl.visitors, k)
		}
	}
}

func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	le, ok := rl.visitors[key]
	if !ok {
		le = &limiterEntry{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[key] = le
	}
	le.last = time.Now()
	return le.limiter.Allow()
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"success":false,"error":{"code":"rate_limited","message":"too many requests"}}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
