package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/enginemcp/broker/internal/httpapi/reqctx"
	"github.com/enginemcp/broker/pkg/contracts"
	"github.com/rs/zerolog/log"
)

// AuthMiddleware authenticates requests using the pluggable
// contracts.AuthProviderChain and binds the resulting Identity into the
// request context via reqctx.
type AuthMiddleware struct {
	chain       contracts.AuthProviderChain
	requireAuth bool
}

// NewAuthMiddleware builds the auth middleware. If requireAuth is false,
// unauthenticated requests to non-public paths are let through as
// anonymous, the chain being empty (no BROKER_API_KEYS configured) is the
// local/dev bootstrap default.
func NewAuthMiddleware(chain contracts.AuthProviderChain, requireAuth bool) *AuthMiddleware {
	return &AuthMiddleware{chain: chain, requireAuth: requireAuth}
}

// Handler returns the HTTP middleware that authenticates requests.
func (am *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isAuthPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := am.chain.Authenticate(r.Context(), r)
		if err != nil {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("authentication failed")
			writeUnauthorized(w, "authentication_failed", err.Error())
			return
		}
		if identity == nil && am.requireAuth {
			writeUnauthorized(w, "authentication_required", "set Authorization: Bearer <key> or X-API-Key")
			return
		}

		ctx := r.Context()
		if identity != nil {
			ctx = reqctx.SetIdentity(ctx, identity)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="broker"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}

func isAuthPublicPath(path string) bool {
	switch path {
	case "/healthz", "/version", "/metrics":
		return true
	}
	return false
}
