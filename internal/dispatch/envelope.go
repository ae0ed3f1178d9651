// Package dispatch implements the Tool Dispatcher (C7): a tool_name →
// handler registry whose handlers are pure consumers of the core, they
// never cache clients themselves, and never let an error cross the tool
// boundary unformatted.
package dispatch

import (
	"encoding/json"

	"github.com/enginemcp/broker/pkg/brokererr"
)

// Envelope is the uniform success/failure response every handler returns
// (spec.md §4.7).
type Envelope struct {
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	IsError bool           `json:"isError,omitempty"`
	Data    map[string]any `json:"-"` // flattened into the JSON object by MarshalJSON
}

// Ok builds a success envelope carrying the given payload fields.
func Ok(data map[string]any) Envelope {
	if data == nil {
		data = map[string]any{}
	}
	return Envelope{Success: true, Data: data}
}

// Fail builds a failure envelope from any error, never letting it cross the
// tool boundary as a panic or a bare Go error value (spec.md §4.7, §7).
func Fail(err error) Envelope {
	return Envelope{Success: false, Error: err.Error(), IsError: true, Data: map[string]any{
		"kind": string(brokererr.KindOf(err)),
	}}
}

// MarshalJSON flattens Data alongside the envelope's own fields so callers
// see one flat JSON object rather than a nested "data" key.
func (e Envelope) MarshalJSON() ([]byte, error) {
	out := map[string]any{"success": e.Success}
	if e.Error != "" {
		out["error"] = e.Error
	}
	if e.IsError {
		out["isError"] = e.IsError
	}
	for k, v := range e.Data {
		out[k] = v
	}
	return json.Marshal(out)
}
