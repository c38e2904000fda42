package testutil

import (
	"context"
	"net/http"
	"time"

	id "unikyc/pkg/domain"
	"unikyc/pkg/requestcontext"
)

// WithSubject adds an authenticated address to the request context, as the
// auth middleware would. Invalid addresses are silently ignored.
func WithSubject(req *http.Request, address string) *http.Request {
	addr, err := id.ParseAddress(address)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithSubject(req.Context(), addr))
}

// WithRequestTime pins the request clock.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
