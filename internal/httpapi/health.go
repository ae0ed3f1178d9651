package httpapi

import (
	"net/http"

	"github.com/enginemcp/broker/internal/registry"
)

// buildVersion is overridden at link time via -ldflags
// "-X github.com/enginemcp/broker/internal/httpapi.buildVersion=...".
var buildVersion = "dev"

func healthHandler(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":        "healthy",
			"service":       "engine-broker",
			"session_count": len(reg.ListAll()),
		})
	}
}

func versionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": buildVersion,
		"service": "engine-broker",
	})
}
