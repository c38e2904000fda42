package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"

	"unikyc/pkg/platform/httputil"
	request "unikyc/pkg/platform/middleware/request"
	"unikyc/pkg/requestcontext"
)

type exceededResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	RetryAfter       int    `json:"retry_after"`
}

// PerIP limits requests by client IP. It must run after the client metadata
// middleware. A nil limiter disables limiting.
func PerIP(l *Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		if logger == nil {
			logger = slog.Default()
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			result := l.Allow(requestcontext.ClientIP(ctx))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				retryAfter := result.RetryAfter(l.now())
				logger.WarnContext(ctx, "rate limit exceeded",
					"path", r.URL.Path,
					"request_id", request.GetRequestID(ctx),
				)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, exceededResponse{
					Error:            "rate_limit_exceeded",
					ErrorDescription: "too many requests from this address, try again later",
					RetryAfter:       retryAfter,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
