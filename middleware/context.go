package middleware

import (
	"context"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestIDHeader is the response header carrying the request ID
const RequestIDHeader = "X-Request-ID"

// GetRequestIDFromContext retrieves the request ID assigned by chi's
// RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// EchoRequestID copies the request ID into the response headers so clients
// can correlate responses with server logs. It must run after chi's
// RequestID middleware.
func EchoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestID := GetRequestIDFromContext(r.Context()); requestID != "" {
			w.Header().Set(RequestIDHeader, requestID)
		}
		next.ServeHTTP(w, r)
	})
}
