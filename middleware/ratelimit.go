package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	authcore "github.com/housekg/authcore"
)

// KeyFunc derives the rate-limit key for a request. The default keys by
// client IP.
type KeyFunc func(r *http.Request) string

// RateLimit enforces the engine's fixed-window budget per request key.
// Denied requests get 429 with a Retry-After header; limiter backend
// failures fail closed with 503.
func RateLimit(engine *authcore.Engine, keyFn KeyFunc) func(http.Handler) http.Handler {
	if keyFn == nil {
		keyFn = ClientIPKey
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			d, err := engine.AllowRequest(r.Context(), keyFn(r))
			if err != nil {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			if !d.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIPKey keys requests by remote IP, stripping the port.
func ClientIPKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// retryAfterSeconds rounds the window remainder up so clients never retry
// inside the still-closed window.
func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
