package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/deepgram/aiproxy/internal/logger"
	"github.com/deepgram/aiproxy/internal/metrics"
	"github.com/deepgram/aiproxy/pkg/httpext"
	"github.com/deepgram/aiproxy/pkg/ratelimit"
)

// RateLimit rejects clients that exceed limiter with a 429 rateLimit body. A
// nil limiter disables the check. Clients are keyed by remote address unless
// trustForwarded is set.
func RateLimit(scope string, limiter ratelimit.Limiter, trustForwarded bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			ip := ClientIP(r, trustForwarded)
			if !limiter.Allow(r.Context(), ip) {
				log := logger.For(logger.MIDDLEWARE)
				log.Warn().
					Str("client", ip).
					Str("scope", scope).
					Msg("Rate limit exceeded")
				metrics.RateLimitedTotal.WithLabelValues(scope).Inc()
				httpext.JsonRateLimitError(w, "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the remote address without its port. With trustForwarded
// the first X-Forwarded-For hop wins when present.
func ClientIP(r *http.Request, trustForwarded bool) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); trustForwarded && forwarded != "" {
		if first, _, _ := strings.Cut(forwarded, ","); strings.TrimSpace(first) != "" {
			return strings.TrimSpace(first)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
