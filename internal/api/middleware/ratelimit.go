package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/kiranshivaraju/consulta/internal/api/response"
	"github.com/kiranshivaraju/consulta/internal/cache"
	"github.com/kiranshivaraju/consulta/internal/metrics"
)

const (
	defaultRequestsPerMinute = 60
	rateLimitWindow          = time.Minute
)

// RateLimit is a fixed-window limiter keyed by client IP and backed by Redis.
type RateLimit struct {
	cache          cache.Cache
	requestsPerMin int
	metrics        *metrics.Metrics
	now            func() time.Time
}

// NewRateLimit creates a new RateLimit middleware. m may be nil.
func NewRateLimit(c cache.Cache, requestsPerMin int, m *metrics.Metrics) *RateLimit {
	if requestsPerMin <= 0 {
		requestsPerMin = defaultRequestsPerMinute
	}
	return &RateLimit{cache: c, requestsPerMin: requestsPerMin, metrics: m, now: time.Now}
}

// Limit counts requests per client IP in the current window. Redis errors
// let the request through.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		now := rl.now()

		count, err := rl.cache.IncrWithExpiry(r.Context(), cache.RateLimitKey(ip, rateLimitWindow, now), rateLimitWindow)
		if err != nil {
			slog.Warn("rate limit check failed, allowing request", "client_ip", ip, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		windowSecs := int64(rateLimitWindow / time.Second)
		reset := (now.Unix()/windowSecs + 1) * windowSecs

		remaining := rl.requestsPerMin - int(count)
		if remaining < 0 {
			remaining = 0
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMin))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))

		if count > int64(rl.requestsPerMin) {
			rl.metrics.RecordRateLimited(r.URL.Path)
			w.Header().Set("Retry-After", strconv.FormatInt(reset-now.Unix(), 10))
			response.Error(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Muitas requisições, tente novamente mais tarde", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP returns the host part of RemoteAddr. When proxy headers are
// trusted, chi's RealIP has already replaced it with the forwarded address.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
