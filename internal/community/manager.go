// Package community implements the Community Session Manager (C3): the
// lifecycle of one direct-connect engine session, from config to live RPC
// channel.
package community

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

const managerKindCommunity = "community"

// BuildTimeout bounds the full build procedure (spec.md §5 default: 30s).
const BuildTimeout = 30 * time.Second

// Manager owns one community session's lifecycle (spec.md §4.3).
//
// Concurrency: group coalesces concurrent builds into one in-flight call
// (Testable Property #1, "build coalescing"); mu guards only the small
// state fields below, never held across the client factory call itself;
// singleflight.Group already serializes builder entry without a held lock
// spanning the RPC.
type Manager struct {
	key     string
	cfg     model.CommunitySessionConfig
	factory contracts.CommunityClientFactory

	mu        sync.Mutex
	state     model.LifecycleState
	client    contracts.CommunityClient
	lastError error

	group      singleflight.Group
	buildCount int // test instrumentation only
}

// New constructs a Manager in UNINITIALIZED state. No I/O occurs until the
// first Get.
func New(key string, cfg model.CommunitySessionConfig, factory contracts.CommunityClientFactory) *Manager {
	metrics.SetManagerState(managerKindCommunity, key, string(model.StateUninitialized), model.AllLifecycleStates())
	return &Manager{key: key, cfg: cfg, factory: factory, state: model.StateUninitialized}
}

// State reports the manager's current lifecycle state.
func (m *Manager) State() model.LifecycleState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError reports the error recorded on the most recent FAILED transition.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastError
}

// BuildCount reports how many times the build procedure has actually run,
// test instrumentation for Testable Property #1.
func (m *Manager) BuildCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buildCount
}

// IsAlive is a cheap, non-blocking probe: false implies the next Get rebuilds.
func (m *Manager) IsAlive(ctx context.Context) bool {
	m.mu.Lock()
	state, client := m.state, m.client
	m.mu.Unlock()
	if state != model.StateReady || client == nil {
		return false
	}
	return client.IsAlive(ctx)
}

// Get returns a live session, building once if necessary. Never returns a
// non-live client, callers that observe an error must not retry
// themselves; the next Get attempt re-drives the build.
func (m *Manager) Get(ctx context.Context) (contracts.CommunityClient, error) {
	m.mu.Lock()
	if m.state == model.StateClosed {
		m.mu.Unlock()
		return nil, brokererr.New(brokererr.Internal, "community session %s is closed", m.key)
	}
	if m.state == model.StateReady && m.client != nil && m.client.IsAlive(ctx) {
		client := m.client
		m.mu.Unlock()
		return client, nil
	}
	m.mu.Unlock()

	// singleflight coalesces N concurrent callers observing a non-ready
	// manager into exactly one build (Testable Property #1); none of this
	// holds m.mu across the RPC-bearing factory call.
	v, err, _ := m.group.Do(m.key, func() (any, error) {
		return m.build(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(contracts.CommunityClient), nil
}

func (m *Manager) build(ctx context.Context) (contracts.CommunityClient, error) {
	m.mu.Lock()
	if m.state == model.StateClosed {
		m.mu.Unlock()
		return nil, brokererr.New(brokererr.Internal, "community session %s is closed", m.key)
	}
	if m.state == model.StateReady && m.client != nil && m.client.IsAlive(ctx) {
		client := m.client
		m.mu.Unlock()
		return client, nil
	}
	m.state = model.StateInitializing
	m.mu.Unlock()
	metrics.SetManagerState(managerKindCommunity, m.key, string(model.StateInitializing), model.AllLifecycleStates())

	buildCtx, cancel := context.WithTimeout(ctx, BuildTimeout)
	defer cancel()

	auth, err := engineauth.ResolveCommunity(m.cfg)
	if err != nil {
		return nil, m.fail(err)
	}

	client, err := m.factory(buildCtx, m.cfg, auth)
	if err != nil {
		if buildCtx.Err() != nil {
			return nil, m.fail(brokererr.Wrap(brokererr.Timeout, err, "building community session %s", m.key))
		}
		return nil, m.fail(brokererr.Wrap(brokererr.RemoteUnavailable, err, "building community session %s", m.key))
	}

	if !client.SetKeepAlive(m.cfg.NeverTimeout) && m.cfg.NeverTimeout {
		// spec.md §9: advisory only, log and continue when unsupported.
		logNeverTimeoutUnsupported(m.key)
	}

	m.mu.Lock()
	if m.state == model.StateClosed {
		m.mu.Unlock()
		_ = client.Close(ctx)
		return nil, brokererr.New(brokererr.Internal, "community session %s is closed", m.key)
	}
	m.client = client
	m.state = model.StateReady
	m.lastError = nil
	m.buildCount++
	m.mu.Unlock()
	metrics.ManagerBuildsTotal.WithLabelValues(managerKindCommunity, m.key).Inc()
	metrics.SetManagerState(managerKindCommunity, m.key, string(model.StateReady), model.AllLifecycleStates())
	return client, nil
}

func (m *Manager) fail(err error) error {
	m.mu.Lock()
	m.state = model.StateFailed
	m.lastError = err
	m.mu.Unlock()
	metrics.SetManagerState(managerKindCommunity, m.key, string(model.StateFailed), model.AllLifecycleStates())
	return err
}

// Close is idempotent; any concurrent Get racing with Close observes
// failure and must not retry.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.state == model.StateClosed {
		m.mu.Unlock()
		return nil
	}
	client := m.client
	m.client = nil
	m.state = model.StateClosed
	m.mu.Unlock()
	metrics.SetManagerState(managerKindCommunity, m.key, string(model.StateClosed), model.AllLifecycleStates())

	if client == nil {
		return nil
	}
	return client.Close(ctx)
}

// Key reports the configured session key this manager was built from.
func (m *Manager) Key() string { return m.key }
