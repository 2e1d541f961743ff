package limiter

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"admission/internal/models"
)

// Middleware returns HTTP middleware that applies the given limiter to every
// request, keyed by client IP. It sets standard rate limit response headers
// and answers 429 with a JSON error body when the budget is exhausted. This
// is the gateway's self-protection surface, not the decision API.
func Middleware(l Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientIP(r)

			allowed, info, err := l.Allow(key, time.Now())
			if err != nil {
				slog.Error("Rate limit check failed", "key", key, "error", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(models.NewErrorResponse("Rate limit check failed", models.ErrorCodeInternalError))
				return
			}

			// Headers report the binding budget: the hour window takes over
			// once it has less room than the current minute, so a 429 never
			// claims remaining capacity.
			limit, remaining := info.MinuteLimit, info.MinuteRemaining
			if info.HourRemaining < info.MinuteRemaining {
				limit, remaining = info.HourLimit, info.HourRemaining
			}
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetAt.Unix()))

			if !allowed {
				retryAfterSecs := int(info.RetryAfter.Seconds()) + 1
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(models.NewErrorResponse("Rate limit exceeded", models.ErrorCodeRateLimitExceeded))

				slog.Warn("Rate limit exceeded",
					"key", key,
					"minute_limit", info.MinuteLimit,
					"hour_limit", info.HourLimit,
					"retry_after", retryAfterSecs,
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IsInvariantViolation reports whether an Allow error indicates internal
// state corruption rather than bad input.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrBucketMissing)
}

// ClientIP extracts the client IP from the request, checking proxy headers.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	return r.RemoteAddr
}
