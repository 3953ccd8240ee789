// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Context keys and getter/setter pairs live here so that values set by
// middleware can be consumed by services without the services importing
// net/http. Tests inject values with the With* helpers instead of running
// the middleware chain.
package requestcontext

import (
	"context"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	clientIDKey    struct{}
	requestIDKey   struct{}
	clientInfoKey  struct{}
	requestTimeKey struct{}
)

// ClientInfo describes the caller as seen by the client-info middleware.
// Browser and OS come from User-Agent parsing and may be empty for
// programmatic clients.
type ClientInfo struct {
	IP        string
	UserAgent string
	Browser   string
	OS        string
	Bot       bool
}

// ClientID retrieves the authenticated client ID from the context.
func ClientID(ctx context.Context) string {
	if clientID, ok := ctx.Value(clientIDKey{}).(string); ok {
		return clientID
	}
	return ""
}

// WithClientID injects an authenticated client ID into the context.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey{}, clientID)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return requestID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Client retrieves the caller metadata from the context.
func Client(ctx context.Context) ClientInfo {
	if info, ok := ctx.Value(clientInfoKey{}).(ClientInfo); ok {
		return info
	}
	return ClientInfo{}
}

// WithClient injects caller metadata into the context.
func WithClient(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientInfoKey{}, info)
}

// Now retrieves the request-scoped time from the context. Falls back to
// time.Now for non-HTTP contexts such as workers and tests.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. All operations within
// one request observe the same now.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
