package enterprise

import (
	"context"
	"sync"
	"time"

	"github.com/enginemcp/broker/pkg/brokererr"
	"github.com/enginemcp/broker/pkg/contracts"
	"github.com/enginemcp/broker/pkg/model"
)

// StartWaitTimeout is the default PQ start/stop wait budget (spec.md §5).
const StartWaitTimeout = 60 * time.Second

// SessionManager owns one controller-brokered engine worker session,
// including its PQ serial (spec.md §4.5).
type SessionManager struct {
	systemKey string
	name      string

	mu      sync.Mutex
	state   model.LifecycleState
	serial  int64
	client  contracts.CommunityClient
	lastErr error
}

// NewSessionManager constructs a SessionManager with no PQ bound yet.
func NewSessionManager(systemKey, name string) *SessionManager {
	return &SessionManager{systemKey: systemKey, name: name, state: model.StateUninitialized}
}

func (m *SessionManager) Name() string   { return m.name }
func (m *SessionManager) Serial() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.serial
}

func (m *SessionManager) State() model.LifecycleState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Waiter is the PQ subsystem's state-transition wait contract (C8),
// consumed here to avoid a package cycle between enterprise and pq.
type Waiter interface {
	WaitFor(ctx context.Context, serial int64, timeout time.Duration, predicate func(model.PQState) bool) (model.PQState, error)
}

// Create drives the build procedure of spec.md §4.5: resolve params,
// add_query, start_and_wait, connect session.
func (m *SessionManager) Create(ctx context.Context, controller contracts.ControllerClient, waiter Waiter, tool CreateParams, sc *model.SessionCreation) error {
	m.mu.Lock()
	if m.state != model.StateUninitialized && m.state != model.StateFailed {
		m.mu.Unlock()
		return brokererr.New(brokererr.InvalidArgument, "enterprise session %s already exists", m.name)
	}
	m.state = model.StateInitializing
	m.mu.Unlock()

	r := resolveParams(tool, sc)

	cfg := contracts.PQConfig{
		Name:              m.name,
		HeapGB:            r.HeapGB,
		Language:          r.Language,
		JVMArgs:           r.JVMArgs,
		EnvVars:           r.EnvVars,
		AdminGroups:       r.AdminGroups,
		ViewerGroups:      r.ViewerGroups,
		Server:            r.Server,
		Engine:            r.Engine,
		AutoDeleteTimeout: time.Duration(r.AutoDeleteTimeout) * time.Second,
		SessionArguments:  r.SessionArguments,
	}

	serial, err := controller.AddQuery(ctx, cfg)
	if err != nil {
		return m.fail(brokererr.Wrap(brokererr.RemoteRejected, err, "add_query for session %s", m.name))
	}

	timeout := StartWaitTimeout
	if r.TimeoutSeconds > 0 {
		timeout = time.Duration(r.TimeoutSeconds * float64(time.Second))
	}

	if err := controller.StartQuery(ctx, serial); err != nil {
		return m.fail(brokererr.Wrap(brokererr.RemoteRejected, err, "start_query for session %s", m.name))
	}
	finalState, err := waiter.WaitFor(ctx, serial, timeout, func(s model.PQState) bool { return s == model.PQRunning })
	if err != nil {
		return m.fail(err)
	}
	if finalState != model.PQRunning {
		return m.fail(brokererr.New(brokererr.Timeout, "PQ %s settled in state %s, not RUNNING", m.name, finalState))
	}

	client, err := controller.ConnectSession(ctx, serial)
	if err != nil {
		return m.fail(brokererr.Wrap(brokererr.RemoteUnavailable, err, "connecting session %s", m.name))
	}

	m.mu.Lock()
	m.serial = serial
	m.client = client
	m.state = model.StateReady
	m.lastErr = nil
	m.mu.Unlock()
	return nil
}

func (m *SessionManager) fail(err error) error {
	m.mu.Lock()
	m.state = model.StateFailed
	m.lastErr = err
	m.mu.Unlock()
	return err
}

// Client returns the connected community-shaped client for this session,
// or an error if the session never reached READY.
func (m *SessionManager) Client() (contracts.CommunityClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != model.StateReady || m.client == nil {
		return nil, brokererr.New(brokererr.Internal, "enterprise session %s is not ready", m.name)
	}
	return m.client, nil
}

// Delete reverses Create: disconnect the session then delete_query. Safe to
// call on a session that never finished building.
func (m *SessionManager) Delete(ctx context.Context, controller contracts.ControllerClient) error {
	m.mu.Lock()
	client := m.client
	serial := m.serial
	hadSerial := m.serial != 0 || m.state == model.StateReady
	m.client = nil
	m.state = model.StateClosed
	m.mu.Unlock()

	var firstErr error
	if client != nil {
		if err := client.Close(ctx); err != nil {
			firstErr = err
		}
	}
	if hadSerial {
		if err := controller.DeleteQuery(ctx, serial); err != nil && firstErr == nil {
			firstErr = brokererr.Wrap(brokererr.RemoteRejected, err, "delete_query for session %s", m.name)
		}
	}
	return firstErr
}

// Close is Delete's lighter sibling used during registry/system shutdown;
// it closes the connected client without issuing delete_query, since
// shutdown must not destroy PQs that should outlive the broker process.
func (m *SessionManager) Close(ctx context.Context) error {
	m.mu.Lock()
	client := m.client
	m.client = nil
	m.state = model.StateClosed
	m.mu.Unlock()
	if client == nil {
		return nil
	}
	return client.Close(ctx)
}
