package testutil

import (
	"context"
	"net/http"

	"qplace/pkg/requestcontext"
)

// WithClientID adds an authenticated client ID to the request context.
// This simulates what the auth middleware would do for authenticated requests.
func WithClientID(req *http.Request, clientID string) *http.Request {
	ctx := requestcontext.WithClientID(req.Context(), clientID)
	return req.WithContext(ctx)
}

// WithRequestID adds a request ID to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	ctx := requestcontext.WithRequestID(req.Context(), requestID)
	return req.WithContext(ctx)
}

// WithClientInfo adds caller metadata to the request context.
// This simulates what the client-info middleware would have extracted.
func WithClientInfo(req *http.Request, info requestcontext.ClientInfo) *http.Request {
	ctx := requestcontext.WithClient(req.Context(), info)
	return req.WithContext(ctx)
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
