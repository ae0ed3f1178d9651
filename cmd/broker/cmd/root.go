// Package cmd implements the broker CLI (C13): serve, validate-config, and
// reload subcommands, with configuration precedence (flags > environment >
// config file) resolved through viper.
package cmd

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var buildVersion = "dev"

// rootCmd is the base command; serve is its default action via RunE, and
// its PersistentPreRun sets up logging shared by every subcommand.
var rootCmd = &cobra.Command{
	Use:   "broker",
	Short: "engine-broker exposes Deephaven community and enterprise engine sessions as MCP tools",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(viper.GetString("log_level"))
	},
	// No subcommand given: run the server, the same as `broker serve`.
	RunE: runServe,
}

// Execute runs the CLI; cmd/broker/main.go's only job is to call this and
// set the process exit code.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion lets main.go inject a build-time version string.
func SetVersion(v string) {
	buildVersion = v
}

func init() {
	cobra.OnInitialize(initConfigPrecedence)

	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("config-file", "", "path to the broker configuration document")
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("config_file", rootCmd.PersistentFlags().Lookup("config-file"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateConfigCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(versionCmd)
}

// initConfigPrecedence binds the ambient environment variables
// (SPEC_FULL.md §4.13: "DH_MCP_* ... plus BROKER_* ambient flags") so that
// viper resolves flags > environment > config file for every value a
// subcommand reads through viper.Get*.
func initConfigPrecedence() {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	_ = viper.BindEnv("config_file", "DH_MCP_CONFIG_FILE")
	_ = viper.BindEnv("log_level", "BROKER_LOG_LEVEL", "LOG_LEVEL")
	_ = viper.BindEnv("listen_addr", "BROKER_LISTEN_ADDR")
	_ = viper.BindEnv("max_response_bytes", "BROKER_MAX_RESPONSE_BYTES")
	_ = viper.BindEnv("reconcile_interval", "BROKER_RECONCILE_INTERVAL")
	_ = viper.BindEnv("require_auth", "BROKER_REQUIRE_AUTH")
	_ = viper.BindEnv("api_keys", "BROKER_API_KEYS")
	_ = viper.BindEnv("cors_origins", "BROKER_CORS_ORIGINS")
	_ = viper.BindEnv("telemetry_enabled", "BROKER_TELEMETRY_ENABLED")
	_ = viper.BindEnv("telemetry_endpoint", "BROKER_TELEMETRY_ENDPOINT")

	viper.SetDefault("listen_addr", ":8080")
	viper.SetDefault("max_response_bytes", int64(0))
	viper.SetDefault("reconcile_interval", "5m")
	viper.SetDefault("require_auth", false)
	viper.SetDefault("telemetry_enabled", false)
}

func setupLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the broker version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(buildVersion)
	},
}
