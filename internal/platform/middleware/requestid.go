// Package middleware carries the HTTP middleware chain shared by all
// handlers: request ids, logging, recovery, timeouts, metrics, client
// metadata and bearer-token auth.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"qplace/pkg/requestcontext"
)

// RequestIDHeader is the inbound/outbound header carrying the request id.
const RequestIDHeader = "X-Request-Id"

// RequestID assigns every request an id, honoring one supplied by the
// caller, and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
