// Package server is the public entry point for assembling a running broker
// process (C10): config load, registry construction with real transport
// factories, the tool dispatcher, the HTTP transport (C11), tracing (C12),
// and the reconciliation janitor (C15), wired into one handler plus a
// Shutdown hook for cmd/broker's `serve` command.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/enginemcp/broker/internal/config"
	"github.com/enginemcp/broker/internal/dispatch"
	"github.com/enginemcp/broker/internal/httpapi"
	"github.com/enginemcp/broker/internal/httpapi/auth"
	"github.com/enginemcp/broker/internal/reconcile"
	"github.com/enginemcp/broker/internal/registry"
	"github.com/enginemcp/broker/internal/telemetry"
	"github.com/enginemcp/broker/internal/transport"
	"github.com/enginemcp/broker/pkg/contracts"
)

// Config is the public configuration for a broker process. cmd/broker
// populates this from viper (flags > environment > config file).
type Config struct {
	ConfigFilePath     string
	ListenAddr         string
	MaxResponseBytes   int64
	ReconcileInterval  time.Duration
	RequireAuth        bool
	APIKeys            []string
	CORSOrigins        []string
	TelemetryEnabled   bool
	TelemetryEndpoint  string
}

// Server holds every long-lived collaborator of a running broker process.
type Server struct {
	Handler http.Handler

	cfgStore *config.Store
	reg      *registry.Registry
	janitor  *reconcile.Janitor
	shutdown func(context.Context) error
}

// New wires every component named in SPEC_FULL.md §4.10–§4.15 and returns a
// ready-to-serve Server. The caller owns the HTTP listener; Handler is
// plain net/http, wrapped with whatever TLS termination the deployment
// needs.
func New(ctx context.Context, cfg Config) (*Server, error) {
	shutdownTelemetry, err := telemetry.Init(telemetry.Config{
		Enabled:      cfg.TelemetryEnabled,
		OTLPEndpoint: cfg.TelemetryEndpoint,
		ServiceName:  "engine-broker",
	})
	if err != nil {
		return nil, err
	}

	cfgStore := config.New(cfg.ConfigFilePath)
	snap, err := cfgStore.Load()
	if err != nil {
		return nil, err
	}

	reg := registry.New(transport.NewCommunityClientFactory(), transport.NewEnterpriseSystemFactory())
	if err := reg.ReplaceFromConfig(ctx, snap); err != nil {
		log.Warn().Err(err).Msg("server: initial registry population reported manager errors")
	}

	d := dispatch.New(cfgStore, reg, cfg.MaxResponseBytes)

	authChain := auth.NewProviderChain()
	if len(cfg.APIKeys) > 0 {
		authChain.RegisterProvider(auth.NewAPIKeyProvider(cfg.APIKeys))
	}
	var chain contracts.AuthProviderChain = authChain

	interval := cfg.ReconcileInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	janitor := reconcile.New(reg, d, interval)
	if err := janitor.Start(ctx); err != nil {
		return nil, err
	}

	router := httpapi.NewRouter(d, reg, httpapi.Config{
		AuthChain:   chain,
		RequireAuth: cfg.RequireAuth,
		CORSOrigins: cfg.CORSOrigins,
	})

	return &Server{
		Handler:  router,
		cfgStore: cfgStore,
		reg:      reg,
		janitor:  janitor,
		shutdown: shutdownTelemetry,
	}, nil
}

// Shutdown stops the reconciliation janitor, closes every registry manager,
// and flushes tracing. Call after the HTTP listener has stopped accepting
// new connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.janitor.Stop()
	closeErr := s.reg.CloseAll(ctx)
	if s.shutdown != nil {
		if err := s.shutdown(ctx); err != nil && closeErr == nil {
			closeErr = err
		}
	}
	return closeErr
}
