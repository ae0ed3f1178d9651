// Package model holds the data types shared across the broker: session ids,
// configuration snapshots, manager lifecycle state, and PQ descriptors.
package model

import (
	"fmt"
	"strings"
)

// Kind discriminates the two session flavors the registry manages.
type Kind string

const (
	KindCommunity  Kind = "community"
	KindEnterprise Kind = "enterprise"
)

// SessionID is the canonical "{kind}:{source}:{name}" identifier. It is
// opaque to callers but stably parseable by the core.
type SessionID struct {
	Kind   Kind
	Source string
	Name   string
}

// String renders the canonical id form.
func (id SessionID) String() string {
	return fmt.Sprintf("%s:%s:%s", id.Kind, id.Source, id.Name)
}

// ParseSessionID parses a "{kind}:{source}:{name}" string. Components may
// not contain colons, so splitting on ':' into exactly three parts is
// sufficient and unambiguous.
func ParseSessionID(s string) (SessionID, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return SessionID{}, fmt.Errorf("malformed session id %q: expected kind:source:name", s)
	}
	kind := Kind(parts[0])
	if kind != KindCommunity && kind != KindEnterprise {
		return SessionID{}, fmt.Errorf("malformed session id %q: unknown kind %q", s, parts[0])
	}
	if parts[1] == "" || parts[2] == "" {
		return SessionID{}, fmt.Errorf("malformed session id %q: empty source or name", s)
	}
	return SessionID{Kind: kind, Source: parts[1], Name: parts[2]}, nil
}
