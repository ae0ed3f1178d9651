package transport

import (
	"testing"

	"google.golang.org/grpc/encoding"
)

type codecFixture struct {
	Serial int64  `json:"serial"`
	Name   string `json:"name"`
}

func TestJSONCodecRoundTrip(t *testing.T) {
	c := jsonCodec{}
	in := codecFixture{Serial: 42, Name: "my_query"}

	data, err := c.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out codecFixture
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out != in {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestJSONCodecName(t *testing.T) {
	if got := (jsonCodec{}).Name(); got != jsonCodecName {
		t.Errorf("Name() = %q, want %q", got, jsonCodecName)
	}
}

func TestJSONCodecIsRegistered(t *testing.T) {
	if encoding.GetCodec(jsonCodecName) == nil {
		t.Fatal("jsonCodec was not registered with grpc/encoding via init()")
	}
}
