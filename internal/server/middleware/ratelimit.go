package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitByHeader returns an HTTP middleware that limits requests by a
// header value (X-API-Key) to the given number per minute, sliding window.
// Requests without the header are bucketed by client IP. Over-limit
// responses use the standard error envelope.
func RateLimitByHeader(headerName string, requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if key := r.Header.Get(headerName); key != "" {
				return key, nil
			}
			return httprate.KeyByIP(r)
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeAuthError(w, http.StatusTooManyRequests,
				"Rate limit exceeded. Try again in a minute.")
		}),
	)
}
