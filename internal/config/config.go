// Package config implements the Config Store (C1): parsing, validation, and
// atomic in-memory replacement of the broker's configuration document
// (spec.md §4.1).
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/enginemcp/broker/pkg/brokererr"
	"github.com/enginemcp/broker/pkg/model"
)

// Snapshot is an immutable, fully-validated configuration document
// (spec.md §4.1: "all snapshots are immutable after creation").
type Snapshot struct {
	Community  model.CommunityConfig
	Enterprise model.EnterpriseConfig
}

// Store owns the current configuration snapshot and the logic to
// (re)produce one from a source document.
//
// Concurrency: current is guarded by mu. Readers take a short-lived pointer
// copy and never hold the lock across I/O or validation.
type Store struct {
	mu       sync.RWMutex
	current  *Snapshot
	path     string
	validate *validator.Validate
}

// New creates a Store bound to the given config file path. It performs no
// I/O, call Load to populate the first snapshot.
func New(path string) *Store {
	v := validator.New()
	_ = v.RegisterValidation("absolute_path", validateAbsolutePath)
	_ = v.RegisterValidation("env_kv", validateEnvKV)
	return &Store{path: path, validate: v}
}

func validateAbsolutePath(fl validator.FieldLevel) bool {
	p := fl.Field().String()
	if p == "" {
		return true
	}
	return filepath.IsAbs(p)
}

func validateEnvKV(fl validator.FieldLevel) bool {
	return strings.Contains(fl.Field().String(), "=")
}

// Load reads, parses, and validates the config document, installing it as
// the current snapshot only on success. Fails with ConfigMissing if the
// source is absent, ConfigInvalid on any structural or semantic error.
func (s *Store) Load() (*Snapshot, error) {
	return s.loadAndSwap()
}

// Reload re-reads and re-validates the source document. On error the
// previous snapshot is retained and the error is surfaced unchanged
// (spec.md §4.1).
func (s *Store) Reload() (*Snapshot, error) {
	return s.loadAndSwap()
}

func (s *Store) loadAndSwap() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, brokererr.Wrap(brokererr.ConfigMissing, err, "config file %s not found", s.path)
		}
		return nil, brokererr.Wrap(brokererr.ConfigMissing, err, "reading config file %s", s.path)
	}

	snap, err := s.parse(data)
	if err != nil {
		return nil, err
	}
	logRedacted(snap)

	s.mu.Lock()
	s.current = snap
	s.mu.Unlock()
	return snap, nil
}

// Current returns the most recently loaded snapshot. Panics if called
// before the first successful Load, a wiring error in the binder (C10),
// not a runtime condition callers need to guard against.
func (s *Store) Current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		panic("config: Current called before first Load")
	}
	return s.current
}

// parse performs structural decode (rejecting unknown fields), struct-tag
// validation, and the semantic rules tags alone can't express, mainly
// cross-field "at most one of" checks.
func (s *Store) parse(data []byte) (*Snapshot, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()

	var raw model.RawDocument
	if err := dec.Decode(&raw); err != nil {
		return nil, brokererr.Wrap(brokererr.ConfigInvalid, err, "parsing config document")
	}

	snap := &Snapshot{}
	if raw.Community != nil {
		snap.Community = *raw.Community
	}
	if raw.Enterprise != nil {
		snap.Enterprise = *raw.Enterprise
	}
	if snap.Community.Sessions == nil {
		snap.Community.Sessions = map[string]model.CommunitySessionConfig{}
	}
	if snap.Enterprise.Systems == nil {
		snap.Enterprise.Systems = map[string]model.EnterpriseSystemConfig{}
	}

	if err := s.validateSemantics(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Store) validateSemantics(snap *Snapshot) error {
	for key, c := range snap.Community.Sessions {
		if err := s.validate.Struct(c); err != nil {
			return brokererr.Wrap(brokererr.ConfigInvalid, err, "community.sessions.%s: struct validation", key)
		}
		// spec.md §9 resolves the auth_token vs auth_token_env_var precedence
		// Open Question as outright rejection, not a silent fallback order.
		if c.AuthToken != "" && c.AuthTokenEnvVar != "" {
			return brokererr.New(brokererr.ConfigInvalid,
				"community.sessions.%s: specify at most one of auth_token or auth_token_env_var", key)
		}
	}

	for key, c := range snap.Enterprise.Systems {
		if err := s.validate.Struct(c); err != nil {
			return brokererr.Wrap(brokererr.ConfigInvalid, err, "enterprise.systems.%s: struct validation", key)
		}
		switch c.AuthType {
		case model.AuthPassword:
			if c.Password != "" && c.PasswordEnvVar != "" {
				return brokererr.New(brokererr.ConfigInvalid,
					"enterprise.systems.%s: specify at most one of password or password_env_var", key)
			}
			if c.Password == "" && c.PasswordEnvVar == "" {
				return brokererr.New(brokererr.ConfigInvalid,
					"enterprise.systems.%s: auth_type=password requires password or password_env_var", key)
			}
			if c.Username == "" {
				return brokererr.New(brokererr.ConfigInvalid,
					"enterprise.systems.%s: auth_type=password requires username", key)
			}
			if c.PrivateKeyPath != "" {
				log.Warn().Str("system", key).Msg("private_key_path set but auth_type is password; field ignored")
			}
		case model.AuthPrivateKey:
			if c.PrivateKeyPath == "" {
				return brokererr.New(brokererr.ConfigInvalid,
					"enterprise.systems.%s: auth_type=private_key requires private_key_path", key)
			}
			if c.Password != "" || c.PasswordEnvVar != "" {
				log.Warn().Str("system", key).Msg("password fields set but auth_type is private_key; fields ignored")
			}
		default:
			return brokererr.New(brokererr.ConfigInvalid, "enterprise.systems.%s: unknown auth_type %q", key, c.AuthType)
		}
	}
	return nil
}

// logRedacted emits one structured line per configured source, never
// including inline secret values (spec.md §3 redaction invariant,
// Testable Property #5).
func logRedacted(snap *Snapshot) {
	for key, c := range snap.Community.Sessions {
		ev := log.Info().Str("session", key).Str("session_type", string(c.SessionType))
		switch {
		case c.AuthTokenEnvVar != "":
			ev = ev.Str("auth_token_env_var", c.AuthTokenEnvVar)
		case c.AuthToken != "":
			ev = ev.Bool("auth_token_set", true)
		}
		ev.Msg("config: community session loaded")
	}
	for key, c := range snap.Enterprise.Systems {
		ev := log.Info().Str("system", key).Str("auth_type", string(c.AuthType))
		switch {
		case c.PasswordEnvVar != "":
			ev = ev.Str("password_env_var", c.PasswordEnvVar)
		case c.Password != "":
			ev = ev.Bool("password_set", true)
		}
		ev.Msg("config: enterprise system loaded")
	}
}

// Validate reports a ConfigInvalid/ConfigMissing error for the document at
// path by loading it into a fresh, discarded store (no existing store's
// snapshot changes); backs the
// `broker validate-config` CLI command (SPEC_FULL.md §4.13).
func Validate(path string) error {
	_, err := New(path).Load()
	return err
}

// Ambient env vars SPEC_FULL.md §6 adds on top of the document itself;
// parsed by the CLI layer, which keeps the Config Store focused on the
// document contract alone.
const (
	EnvConfigFile        = "DH_MCP_CONFIG_FILE"
	EnvLogLevel          = "LOG_LEVEL"
	EnvMaxResponseBytes  = "BROKER_MAX_RESPONSE_BYTES"
	EnvReconcileInterval = "BROKER_RECONCILE_INTERVAL"
)

// RequireEnv reads an env var or returns an AuthResolution error, the
// single choke point env-var credential indirection goes through so every
// caller gets a uniform, non-leaking error message.
func RequireEnv(name string) (string, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return "", brokererr.New(brokererr.AuthResolution, "environment variable %s is not set", name)
	}
	return v, nil
}
