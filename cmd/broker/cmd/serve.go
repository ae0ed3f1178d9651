package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/enginemcp/broker/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the broker as a long-running server (default command)",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("listen-addr", "", "HTTP listen address (default :8080)")
	serveCmd.Flags().Bool("require-auth", false, "reject unauthenticated tool calls")
	serveCmd.Flags().String("api-keys", "", "comma-separated list of accepted API keys")
	serveCmd.Flags().String("cors-origins", "", "comma-separated list of allowed CORS origins (default *)")
	serveCmd.Flags().String("reconcile-interval", "", "reconciliation janitor sweep interval (default 5m)")
	serveCmd.Flags().Int64("max-response-bytes", 0, "response size ceiling override (0 = use built-in default)")

	_ = viper.BindPFlag("listen_addr", serveCmd.Flags().Lookup("listen-addr"))
	_ = viper.BindPFlag("require_auth", serveCmd.Flags().Lookup("require-auth"))
	_ = viper.BindPFlag("api_keys", serveCmd.Flags().Lookup("api-keys"))
	_ = viper.BindPFlag("cors_origins", serveCmd.Flags().Lookup("cors-origins"))
	_ = viper.BindPFlag("reconcile_interval", serveCmd.Flags().Lookup("reconcile-interval"))
	_ = viper.BindPFlag("max_response_bytes", serveCmd.Flags().Lookup("max-response-bytes"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	interval, err := time.ParseDuration(viper.GetString("reconcile_interval"))
	if err != nil {
		return fmt.Errorf("parsing reconcile_interval: %w", err)
	}

	cfg := server.Config{
		ConfigFilePath:    viper.GetString("config_file"),
		ListenAddr:        viper.GetString("listen_addr"),
		MaxResponseBytes:  viper.GetInt64("max_response_bytes"),
		ReconcileInterval: interval,
		RequireAuth:       viper.GetBool("require_auth"),
		APIKeys:           splitNonEmpty(viper.GetString("api_keys")),
		CORSOrigins:       splitNonEmpty(viper.GetString("cors_origins")),
		TelemetryEnabled:  viper.GetBool("telemetry_enabled"),
		TelemetryEndpoint: viper.GetString("telemetry_endpoint"),
	}

	srv, err := server.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing server: %w", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.Handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info().Msg("serve: received shutdown signal, draining")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("serve: HTTP server shutdown reported an error")
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("serve: collaborator shutdown reported an error")
		}
	}()

	log.Info().Str("addr", cfg.ListenAddr).Msg("serve: broker listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func splitNonEmpty(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
