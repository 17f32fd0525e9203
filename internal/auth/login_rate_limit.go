package auth

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cayman031/study-with-me/internal/apperror"
	"github.com/cayman031/study-with-me/internal/observability"
	"github.com/cayman031/study-with-me/internal/response"
)

// IPRateLimiter is a coarse sliding-window limit per client address in front
// of the credential endpoints. It is independent of LoginThrottle, which
// counts failures per email.
type IPRateLimiter struct {
	mu         sync.Mutex
	maxHits    int
	window     time.Duration
	hitsByAddr map[string][]time.Time
	maxTracked int
	now        func() time.Time
	metrics    *observability.Metrics
}

func NewIPRateLimiter(maxHits int, window time.Duration, metrics *observability.Metrics) *IPRateLimiter {
	if maxHits <= 0 {
		maxHits = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return &IPRateLimiter{
		maxHits:    maxHits,
		window:     window,
		hitsByAddr: make(map[string][]time.Time),
		maxTracked: 5000,
		now:        func() time.Time { return time.Now().UTC() },
		metrics:    metrics,
	}
}

func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter := l.allow(clientAddr(r), l.now())
		if !allowed {
			l.metrics.AuthEvent("ip_limit", "rejected")
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			response.Error(w, r, apperror.AuthLoginBlocked)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *IPRateLimiter) allow(addr string, now time.Time) (bool, time.Duration) {
	threshold := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	hits := l.hitsByAddr[addr]
	live := hits[:0]
	for _, hit := range hits {
		if hit.After(threshold) {
			live = append(live, hit)
		}
	}

	if len(live) >= l.maxHits {
		l.hitsByAddr[addr] = live
		retryAfter := live[0].Add(l.window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return false, retryAfter
	}

	l.hitsByAddr[addr] = append(live, now)

	if len(l.hitsByAddr) > l.maxTracked {
		for key, value := range l.hitsByAddr {
			if len(value) == 0 || !value[len(value)-1].After(threshold) {
				delete(l.hitsByAddr, key)
			}
		}
	}

	return true, 0
}

// clientAddr drops the port so one client maps to one bucket.
func clientAddr(r *http.Request) string {
	addr := observability.ClientIP(r)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
