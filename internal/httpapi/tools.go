package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/enginemcp/broker/internal/dispatch"
)

// toolsListHandler lists every registered tool name (discovery, mirrors the
// teacher's mcpgw tools/list response shape without the JSON-RPC envelope).
func toolsListHandler(d *dispatch.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names := d.Names()
		sort.Strings(names)
		writeJSON(w, http.StatusOK, map[string]any{"tools": names})
	}
}

// toolInvokeHandler decodes the JSON body as the tool's argument record and
// runs it through the dispatcher, returning the uniform envelope verbatim.
func toolInvokeHandler(d *dispatch.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		toolName := chi.URLParam(r, "tool_name")

		var args map[string]any
		body, err := io.ReadAll(io.LimitReader(r.Body, 16<<20))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false, "is_error": true, "error": "reading request body: " + err.Error(),
			})
			return
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &args); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]any{
					"success": false, "is_error": true, "error": "invalid JSON body: " + err.Error(),
				})
				return
			}
		}

		env := d.Handle(r.Context(), toolName, args)
		status := http.StatusOK
		if !env.Success {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, env)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
