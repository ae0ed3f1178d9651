package contracts

import (
	"context"
	"time"

	"github.com/enginemcp/broker/pkg/model"
)

// TableHandle is an opaque reference to a remote table returned by engine
// RPCs; the broker never interprets its bytes, only forwards it to the
// response formatter.
type TableHandle struct {
	Name    string
	Columns []ColumnSchema
	RowChunk func(ctx context.Context, maxRows int) ([][]any, bool, error) // rows, isComplete, err
}

// ColumnSchema describes one column of a remote table.
type ColumnSchema struct {
	Name string
	Type string
}

// CommunityClient is the south-face collaborator for a direct-connect
// engine session (spec.md §1, out of scope: "the underlying engine wire
// protocols themselves"). Implementations wrap the real engine client
// library; the broker only depends on this contract.
type CommunityClient interface {
	IsAlive(ctx context.Context) bool
	ListTables(ctx context.Context) ([]string, error)
	TableSchema(ctx context.Context, table string) ([]ColumnSchema, error)
	// TableSize reports the engine's declared row count for table, the
	// cheap stats call the size guard uses to estimate a response's bytes
	// before fetching a single row (spec.md §4.9).
	TableSize(ctx context.Context, table string) (int64, error)
	FetchTable(ctx context.Context, table string, maxRows int) (*TableHandle, error)
	RunScript(ctx context.Context, code string) error
	PipList(ctx context.Context) ([]string, error)
	// SetKeepAlive applies the never_timeout hint if the underlying client
	// library exposes the knob; returns false when unsupported (spec.md §9).
	SetKeepAlive(enabled bool) bool
	Close(ctx context.Context) error
}

// AuthClient is the HTTP client to an enterprise auth endpoint (spec.md §4.4).
type AuthClient interface {
	Authenticate(ctx context.Context) error
	Probe(ctx context.Context) error
	Close(ctx context.Context) error
}

// ControllerClient is the long-lived authenticated connection to the
// enterprise controller (spec.md §4.4/§4.8), transporting PQ lifecycle RPCs
// and the PQ state-change stream.
type ControllerClient interface {
	AddQuery(ctx context.Context, cfg PQConfig) (serial int64, err error)
	StartQuery(ctx context.Context, serial int64) error
	StopQuery(ctx context.Context, serial int64) error
	DeleteQuery(ctx context.Context, serial int64) error
	// Subscribe returns a channel of PQ snapshots; the channel is closed when
	// ctx is cancelled or the stream terminates.
	Subscribe(ctx context.Context) (<-chan model.PQSnapshot, error)
	// ConnectSession opens a Barrage-style session to the worker behind serial.
	ConnectSession(ctx context.Context, serial int64) (CommunityClient, error)
	Close(ctx context.Context) error
}

// PQConfig is the controller's config-builder input for add_query
// (spec.md §4.5 step 2).
type PQConfig struct {
	Name                string
	HeapGB              float64
	Language             model.SessionLanguage
	JVMArgs              []string
	EnvVars              []string
	AdminGroups          []string
	ViewerGroups         []string
	Server               string
	Engine               string
	AutoDeleteTimeout     time.Duration
	SessionArguments      map[string]any
}

// CommunityClientFactory constructs a CommunityClient from a session config.
// Injected so tests can substitute a stub engine client.
type CommunityClientFactory func(ctx context.Context, cfg model.CommunitySessionConfig, auth CommunityAuth) (CommunityClient, error)

// CommunityAuth is the resolved auth material the community client factory
// consumes (spec.md §4.2).
type CommunityAuth struct {
	Type  model.AuthType
	Token string // basic/pre_shared_key/anonymous (packed token or empty)
}

// EnterpriseAuth is the resolved auth material for the enterprise system
// (password tuple or private key bytes).
type EnterpriseAuth struct {
	Type           model.AuthType
	Username       string
	Password       string
	PrivateKeyPEM  []byte
}

// EnterpriseSystemFactory constructs the pair of (AuthClient, ControllerClient)
// for one enterprise system config.
type EnterpriseSystemFactory func(ctx context.Context, cfg model.EnterpriseSystemConfig, auth EnterpriseAuth) (AuthClient, ControllerClient, error)
