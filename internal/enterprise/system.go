// Package enterprise implements the Enterprise System Manager (C4) and
// Enterprise Session Manager (C5): controller-brokered engine lifecycles.
package enterprise

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/enginemcp/broker/internal/engineauth"
	"github.com/enginemcp/broker/internal/metrics"
	"github.com/enginemcp/broker/pkg/brokererr"
	"github.com/enginemcp/broker/pkg/contracts"
	"github.com/enginemcp/broker/pkg/model"
)

const managerKindEnterprise = "enterprise_system"

// BuildTimeout bounds the system build procedure (spec.md §5: controller
// handshake default 60s).
const BuildTimeout = 60 * time.Second

// SystemManager owns one enterprise system's auth client, controller
// client, and child session managers (spec.md §4.4).
type SystemManager struct {
	key     string
	cfg     model.EnterpriseSystemConfig
	factory contracts.EnterpriseSystemFactory

	mu         sync.Mutex
	state      model.LifecycleState
	authClient contracts.AuthClient
	controller contracts.ControllerClient
	lastError  error
	children   map[string]*SessionManager

	group singleflight.Group
}

// NewSystemManager constructs a SystemManager in UNINITIALIZED state.
func NewSystemManager(key string, cfg model.EnterpriseSystemConfig, factory contracts.EnterpriseSystemFactory) *SystemManager {
	metrics.SetManagerState(managerKindEnterprise, key, string(model.StateUninitialized), model.AllLifecycleStates())
	return &SystemManager{
		key:      key,
		cfg:      cfg,
		factory:  factory,
		state:    model.StateUninitialized,
		children: map[string]*SessionManager{},
	}
}

func (s *SystemManager) Key() string                   { return s.key }
func (s *SystemManager) Config() model.EnterpriseSystemConfig { return s.cfg }

func (s *SystemManager) State() model.LifecycleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *SystemManager) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// ensure builds the auth+controller client pair if not already READY,
// coalescing concurrent callers via singleflight (Testable Property #1).
func (s *SystemManager) ensure(ctx context.Context) (contracts.ControllerClient, error) {
	s.mu.Lock()
	if s.state == model.StateClosed {
		s.mu.Unlock()
		return nil, brokererr.New(brokererr.Internal, "enterprise system %s is closed", s.key)
	}
	if s.state == model.StateReady && s.controller != nil {
		c := s.controller
		s.mu.Unlock()
		return c, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do(s.key, func() (any, error) {
		return s.build(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(contracts.ControllerClient), nil
}

func (s *SystemManager) build(ctx context.Context) (contracts.ControllerClient, error) {
	s.mu.Lock()
	if s.state == model.StateClosed {
		s.mu.Unlock()
		return nil, brokererr.New(brokererr.Internal, "enterprise system %s is closed", s.key)
	}
	if s.state == model.StateReady && s.controller != nil {
		c := s.controller
		s.mu.Unlock()
		return c, nil
	}
	s.state = model.StateInitializing
	s.mu.Unlock()
	metrics.SetManagerState(managerKindEnterprise, s.key, string(model.StateInitializing), model.AllLifecycleStates())

	buildCtx, cancel := context.WithTimeout(ctx, BuildTimeout)
	defer cancel()

	auth, err := engineauth.ResolveEnterprise(buildCtx, s.cfg)
	if err != nil {
		return nil, s.fail(err)
	}

	authClient, controller, err := s.factory(buildCtx, s.cfg, auth)
	if err != nil {
		if buildCtx.Err() != nil {
			return nil, s.fail(brokererr.Wrap(brokererr.Timeout, err, "building enterprise system %s", s.key))
		}
		return nil, s.fail(brokererr.Wrap(brokererr.RemoteUnavailable, err, "building enterprise system %s", s.key))
	}

	s.mu.Lock()
	s.authClient = authClient
	s.controller = controller
	s.state = model.StateReady
	s.lastError = nil
	s.mu.Unlock()
	metrics.ManagerBuildsTotal.WithLabelValues(managerKindEnterprise, s.key).Inc()
	metrics.SetManagerState(managerKindEnterprise, s.key, string(model.StateReady), model.AllLifecycleStates())
	return controller, nil
}

func (s *SystemManager) fail(err error) error {
	s.mu.Lock()
	s.state = model.StateFailed
	s.lastError = err
	s.mu.Unlock()
	metrics.SetManagerState(managerKindEnterprise, s.key, string(model.StateFailed), model.AllLifecycleStates())
	return err
}

// Controller exposes the controller client to the PQ subsystem, building
// the system on first use.
func (s *SystemManager) Controller(ctx context.Context) (contracts.ControllerClient, error) {
	return s.ensure(ctx)
}

// Status reports the system's health. Lightweight unless probe is true, in
// which case an active auth+controller handshake is attempted.
func (s *SystemManager) Status(ctx context.Context, probe bool) (model.EnterpriseSystemStatus, string) {
	s.mu.Lock()
	state, authClient := s.state, s.authClient
	s.mu.Unlock()

	if !probe {
		switch state {
		case model.StateReady:
			return model.StatusOnline, ""
		case model.StateFailed:
			return model.StatusOffline, s.lastErrorMessage()
		case model.StateClosed:
			return model.StatusOffline, "system closed"
		default:
			return model.StatusUnknown, ""
		}
	}

	if _, err := s.ensure(ctx); err != nil {
		switch brokererr.KindOf(err) {
		case brokererr.AuthResolution:
			return model.StatusUnauthorized, err.Error()
		case brokererr.ConfigInvalid:
			return model.StatusMisconfigured, err.Error()
		default:
			return model.StatusOffline, err.Error()
		}
	}
	s.mu.Lock()
	authClient = s.authClient
	s.mu.Unlock()
	if authClient != nil {
		if err := authClient.Probe(ctx); err != nil {
			return model.StatusUnauthorized, err.Error()
		}
	}
	return model.StatusOnline, ""
}

func (s *SystemManager) lastErrorMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastError == nil {
		return ""
	}
	return s.lastError.Error()
}

// EnterpriseSessions returns a snapshot of this system's child session
// managers, keyed by session name.
func (s *SystemManager) EnterpriseSessions() map[string]*SessionManager {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*SessionManager, len(s.children))
	for k, v := range s.children {
		out[k] = v
	}
	return out
}

// Session looks up an existing child by name, or nil if absent.
func (s *SystemManager) Session(name string) *SessionManager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.children[name]
}

// AdoptSession registers a session manager as this system's child (used by
// both configured-at-build-time sessions and session_enterprise_create).
func (s *SystemManager) AdoptSession(name string, sm *SessionManager) {
	s.mu.Lock()
	s.children[name] = sm
	s.mu.Unlock()
}

// DropSession removes a child from the map without closing it, callers
// close first, then drop.
func (s *SystemManager) DropSession(name string) {
	s.mu.Lock()
	delete(s.children, name)
	s.mu.Unlock()
}

// Close closes every child session first, then the controller client, then
// the auth client, no child may outlive its parent (spec.md §4.4).
func (s *SystemManager) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.state == model.StateClosed {
		s.mu.Unlock()
		return nil
	}
	children := s.children
	s.children = map[string]*SessionManager{}
	controller := s.controller
	authClient := s.authClient
	s.controller = nil
	s.authClient = nil
	s.state = model.StateClosed
	s.mu.Unlock()
	metrics.SetManagerState(managerKindEnterprise, s.key, string(model.StateClosed), model.AllLifecycleStates())

	var firstErr error
	for _, child := range children {
		if err := child.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if controller != nil {
		if err := controller.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if authClient != nil {
		if err := authClient.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
