// Package contracts defines the boundary interfaces the core depends on but
// does not implement: the north-face caller-authentication chain and the
// south-face engine/controller clients (spec.md §1, "explicitly out of
// scope ... specify only as collaborators via their contracts").
package contracts

import (
	"context"
	"net/http"
	"time"
)

// Identity represents a caller authenticated by the HTTP transport adapter
// (C11) before a tool request reaches the dispatcher.
type Identity struct {
	Subject     string    `json:"subject"`
	Provider    string    `json:"provider"`
	DisplayName string    `json:"display_name,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

// AuthProvider authenticates one HTTP request. Contract:
//   - (*Identity, nil)  → authenticated, stop walking the chain
//   - (nil, nil)        → not this provider's concern, try the next one
//   - (nil, error)      → attempted and failed, reject immediately
type AuthProvider interface {
	Name() string
	Enabled() bool
	Authenticate(ctx context.Context, r *http.Request) (*Identity, error)
}

// AuthProviderChain walks registered providers in order.
type AuthProviderChain interface {
	Authenticate(ctx context.Context, r *http.Request) (*Identity, error)
	RegisterProvider(provider AuthProvider)
}
