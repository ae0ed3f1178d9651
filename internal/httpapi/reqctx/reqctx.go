// Package reqctx carries the per-request values the middleware chain binds
// before a tool request reaches the dispatcher (spec.md §3.1 RequestContext).
package reqctx

import (
	"context"

	"github.com/enginemcp/broker/pkg/contracts"
)

type ctxKey int

const (
	identityKey ctxKey = iota
	requestIDKey
)

// SetIdentity binds the authenticated caller identity, or nil for an
// anonymous request when the auth provider chain allows it.
func SetIdentity(ctx context.Context, id *contracts.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// Identity returns the bound identity, or nil if the request is anonymous
// or ran before the auth middleware.
func Identity(ctx context.Context) *contracts.Identity {
	id, _ := ctx.Value(identityKey).(*contracts.Identity)
	return id
}

// SetRequestID binds the request id assigned by the transport adapter.
func SetRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the bound request id, or "" if unset.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
