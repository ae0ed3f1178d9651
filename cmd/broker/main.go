// Command broker is the engine-broker process entrypoint: serve, a
// validate-config static check, and a reload client, per SPEC_FULL.md
// §4.13.
package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/enginemcp/broker/cmd/broker/cmd"
)

var version = "dev"

func main() {
	cmd.SetVersion(version)
	if err := cmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("broker: fatal error")
		os.Exit(1)
	}
}
