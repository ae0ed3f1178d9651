// Package transport implements the Controller Transport (C14): the gRPC
// channel the Enterprise System Manager dials for the controller connection
// and the PQ state-change stream, plus the analogous direct-connect channel
// the Community Manager dials for engine sessions.
//
// Neither the controller's nor the engine's wire protocol is a published
// proto schema available to this module (spec.md §1 scopes "the underlying
// engine wire protocols themselves" out), so both clients exchange
// already-JSON-shaped Go structs over plain gRPC using a JSON codec in
// place of protobuf-generated marshaling. The channel, its credentials,
// and its reconnect behavior are otherwise exactly what a generated gRPC
// client in this corpus would use.
package transport

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const jsonCodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec implements google.golang.org/grpc/encoding.Codec so method
// stubs can pass plain Go structs through Invoke/NewStream without
// generated protobuf types.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}
