package community

import "github.com/rs/zerolog/log"

func logNeverTimeoutUnsupported(key string) {
	log.Warn().Str("session", key).Msg("never_timeout requested but engine client does not expose a keep-alive knob")
}
