package model

// LifecycleState is a manager's position in the UNINITIALIZED →
// INITIALIZING → {READY, FAILED} → CLOSED state machine (spec.md §3).
type LifecycleState string

const (
	StateUninitialized LifecycleState = "UNINITIALIZED"
	StateInitializing  LifecycleState = "INITIALIZING"
	StateReady         LifecycleState = "READY"
	StateFailed        LifecycleState = "FAILED"
	StateClosed        LifecycleState = "CLOSED"
)

// AllLifecycleStates enumerates every state, for zero-then-set gauge
// updates (internal/metrics.SetManagerState).
func AllLifecycleStates() []string {
	return []string{
		string(StateUninitialized),
		string(StateInitializing),
		string(StateReady),
		string(StateFailed),
		string(StateClosed),
	}
}

// EnterpriseSystemStatus is the outward health of an enterprise system
// connection, returned by the system.status() operation.
type EnterpriseSystemStatus string

const (
	StatusOnline       EnterpriseSystemStatus = "ONLINE"
	StatusOffline      EnterpriseSystemStatus = "OFFLINE"
	StatusUnauthorized EnterpriseSystemStatus = "UNAUTHORIZED"
	StatusMisconfigured EnterpriseSystemStatus = "MISCONFIGURED"
	StatusUnknown      EnterpriseSystemStatus = "UNKNOWN"
)

// SessionListing is one row of registry.ListAll(), cheap metadata that
// never touches a manager's client.
type SessionListing struct {
	SessionID SessionID `json:"session_id"`
	Kind      Kind      `json:"kind"`
	Source    string    `json:"source"`
	Name      string    `json:"name"`
	State     LifecycleState `json:"state"`
}
