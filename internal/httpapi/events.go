package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/enginemcp/broker/internal/dispatch"
)

// eventsHandler streams PQ state-change notifications for one enterprise
// system as Server-Sent Events. Each connection gets its own independent
// feed off the system's pq.Subsystem.Watch, the subsystem already owns
// the single authoritative controller subscription and version-gated
// snapshot (internal/pq), so unlike the teacher's mcpgw gateway this
// handler needs no separate subs-map broadcaster: Watch itself is the
// fan-out point, one goroutine per connected client.
func eventsHandler(d *dispatch.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		systemName := chi.URLParam(r, "system_name")
		if systemName == "" {
			http.Error(w, "system_name path parameter is required", http.StatusBadRequest)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		sub, err := d.PQSubsystem(r.Context(), systemName)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		keepAlive := time.NewTicker(15 * time.Second)
		defer keepAlive.Stop()

		feed := sub.Watch(ctx)
		for {
			select {
			case snap, open := <-feed:
				if !open {
					return
				}
				payload, err := json.Marshal(snap)
				if err != nil {
					log.Warn().Err(err).Str("system", systemName).Msg("events: failed to marshal PQ snapshot")
					continue
				}
				fmt.Fprintf(w, "event: pq_snapshot\ndata: %s\n\n", payload)
				flusher.Flush()
			case <-keepAlive.C:
				fmt.Fprint(w, ": keep-alive\n\n")
				flusher.Flush()
			case <-ctx.Done():
				return
			}
		}
	}
}
