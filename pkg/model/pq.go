package model

import "time"

// PQState is a persistent-query lifecycle state as reported by the
// controller.
type PQState string

const (
	PQPending     PQState = "PENDING"
	PQInitializing PQState = "INITIALIZING"
	PQRunning     PQState = "RUNNING"
	PQStopping    PQState = "STOPPING"
	PQTerminated  PQState = "TERMINATED"
	PQFailed      PQState = "FAILED"
)

// Terminal reports whether the state can no longer transition to RUNNING
// without an explicit start.
func (s PQState) Terminal() bool {
	switch s {
	case PQTerminated, PQFailed:
		return true
	default:
		return false
	}
}

// PQDescriptor mirrors the controller's view of one persistent query.
type PQDescriptor struct {
	Serial            int64           `json:"serial"`
	Name              string          `json:"name"`
	State             PQState         `json:"state"`
	HeapGB            float64         `json:"heap_gb"`
	Language          SessionLanguage `json:"language"`
	JVMArgs           []string        `json:"jvm_args,omitempty"`
	EnvVars           []string        `json:"env_vars,omitempty"`
	AdminGroups       []string        `json:"admin_groups,omitempty"`
	ViewerGroups      []string        `json:"viewer_groups,omitempty"`
	AutoDeleteTimeout int             `json:"auto_delete_timeout,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// PQSnapshot is an immutable point-in-time copy of the controller's PQ map
// for one enterprise system, tagged with the controller's version counter.
type PQSnapshot struct {
	Version int64
	ByName  map[string]PQDescriptor
}
