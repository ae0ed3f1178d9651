// Package httpapi is the HTTP Transport Adapter (C11): a thin north-face
// chi router that authenticates, traces, and logs incoming requests, then
// hands each tool call to the dispatcher (C7) unchanged.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/enginemcp/broker/internal/dispatch"
	"github.com/enginemcp/broker/internal/httpapi/middleware"
	"github.com/enginemcp/broker/internal/registry"
	"github.com/enginemcp/broker/pkg/contracts"
)

// Config controls the optional pieces of the router that vary by
// deployment: the caller-auth chain and whether anonymous access is
// permitted.
type Config struct {
	AuthChain   contracts.AuthProviderChain
	RequireAuth bool
	// CORSOrigins is the allowed-origins list; nil or containing only "*"
	// means wildcard (open access, credentials forced off).
	CORSOrigins []string
}

// NewRouter builds the complete HTTP handler: middleware chain, tool
// endpoints, SSE event feed, and operational endpoints.
func NewRouter(d *dispatch.Dispatcher, reg *registry.Registry, cfg Config) http.Handler {
	r := chi.NewRouter()

	// Middleware chain, outermost first: request id, real IP, recoverer,
	// compression, structured logger, OTEL tracing, caller auth (only when
	// an auth chain is configured), then CORS.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)

	if cfg.AuthChain != nil {
		authMW := middleware.NewAuthMiddleware(cfg.AuthChain, cfg.RequireAuth)
		r.Use(authMW.Handler)
	}

	corsOrigins := cfg.CORSOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	isWildcard := len(corsOrigins) == 1 && corsOrigins[0] == "*"
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id", "X-API-Key"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: !isWildcard,
		MaxAge:           300,
	}))

	r.Get("/healthz", healthHandler(reg))
	r.Get("/version", versionHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/tools", toolsListHandler(d))
	r.Post("/tools/{tool_name}", toolInvokeHandler(d))

	r.Get("/events/{system_name}", eventsHandler(d))

	return r
}
