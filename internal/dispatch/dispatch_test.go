package dispatch_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/enginemcp/broker/internal/config"
	"github.com/enginemcp/broker/internal/dispatch"
	"github.com/enginemcp/broker/internal/registry"
	"github.com/enginemcp/broker/pkg/contracts"
	"github.com/enginemcp/broker/pkg/model"
)

// stubCommunityClient is the dispatch package's test double for
// contracts.CommunityClient, following the registry package's
// nopCommunityClient pattern with configurable table shape.
type stubCommunityClient struct {
	rows   int64
	cols   []contracts.ColumnSchema
	tables []string
}

func (s *stubCommunityClient) IsAlive(ctx context.Context) bool { return true }
func (s *stubCommunityClient) ListTables(ctx context.Context) ([]string, error) {
	return s.tables, nil
}
func (s *stubCommunityClient) TableSchema(ctx context.Context, t string) ([]contracts.ColumnSchema, error) {
	return s.cols, nil
}
func (s *stubCommunityClient) TableSize(ctx context.Context, t string) (int64, error) {
	return s.rows, nil
}
func (s *stubCommunityClient) FetchTable(ctx context.Context, t string, maxRows int) (*contracts.TableHandle, error) {
	rows := make([][]any, 0, s.rows)
	for i := int64(0); i < s.rows; i++ {
		row := make([]any, len(s.cols))
		for c := range s.cols {
			row[c] = i
		}
		rows = append(rows, row)
	}
	return &contracts.TableHandle{
		Name:    t,
		Columns: s.cols,
		RowChunk: func(ctx context.Context, maxRows int) ([][]any, bool, error) {
			if maxRows > 0 && maxRows < len(rows) {
				return rows[:maxRows], false, nil
			}
			return rows, true, nil
		},
	}, nil
}
func (s *stubCommunityClient) RunScript(ctx context.Context, code string) error { return nil }
func (s *stubCommunityClient) PipList(ctx context.Context) ([]string, error)    { return nil, nil }
func (s *stubCommunityClient) SetKeepAlive(enabled bool) bool                   { return true }
func (s *stubCommunityClient) Close(ctx context.Context) error                  { return nil }

func countingCommunityFactory(connects *int32, rows int64, cols []contracts.ColumnSchema) contracts.CommunityClientFactory {
	return func(ctx context.Context, cfg model.CommunitySessionConfig, auth contracts.CommunityAuth) (contracts.CommunityClient, error) {
		atomic.AddInt32(connects, 1)
		return &stubCommunityClient{rows: rows, cols: cols}, nil
	}
}

type nopAuthClient struct{}

func (nopAuthClient) Authenticate(ctx context.Context) error { return nil }
func (nopAuthClient) Probe(ctx context.Context) error         { return nil }
func (nopAuthClient) Close(ctx context.Context) error         { return nil }

// stubControllerClient drives PQ lifecycle calls by pushing a new snapshot
// onto its subscription channel every time AddQuery/StartQuery/StopQuery
// is invoked, so pq.Subsystem.WaitFor observes a real state transition
// rather than a timeout.
type stubControllerClient struct {
	ch            chan model.PQSnapshot
	serial        int64
	version       int64
	byName        map[string]model.PQDescriptor
	sessionTables []string
}

func newStubControllerClient() *stubControllerClient {
	return &stubControllerClient{
		ch:     make(chan model.PQSnapshot, 16),
		byName: map[string]model.PQDescriptor{},
	}
}

func (c *stubControllerClient) push() {
	c.version++
	snap := model.PQSnapshot{Version: c.version, ByName: map[string]model.PQDescriptor{}}
	for k, v := range c.byName {
		snap.ByName[k] = v
	}
	c.ch <- snap
}

func (c *stubControllerClient) AddQuery(ctx context.Context, cfg contracts.PQConfig) (int64, error) {
	c.serial++
	c.byName[cfg.Name] = model.PQDescriptor{Serial: c.serial, Name: cfg.Name, State: model.PQPending, HeapGB: cfg.HeapGB, Language: cfg.Language}
	c.push()
	return c.serial, nil
}

func (c *stubControllerClient) StartQuery(ctx context.Context, serial int64) error {
	for k, d := range c.byName {
		if d.Serial == serial {
			d.State = model.PQRunning
			c.byName[k] = d
		}
	}
	c.push()
	return nil
}

func (c *stubControllerClient) StopQuery(ctx context.Context, serial int64) error {
	for k, d := range c.byName {
		if d.Serial == serial {
			d.State = model.PQTerminated
			c.byName[k] = d
		}
	}
	c.push()
	return nil
}

func (c *stubControllerClient) DeleteQuery(ctx context.Context, serial int64) error {
	for k, d := range c.byName {
		if d.Serial == serial {
			delete(c.byName, k)
		}
	}
	c.push()
	return nil
}

func (c *stubControllerClient) Subscribe(ctx context.Context) (<-chan model.PQSnapshot, error) {
	return c.ch, nil
}

func (c *stubControllerClient) ConnectSession(ctx context.Context, serial int64) (contracts.CommunityClient, error) {
	return &stubCommunityClient{tables: c.sessionTables}, nil
}

func (c *stubControllerClient) Close(ctx context.Context) error { return nil }

// newTestDispatcher wires a Dispatcher over a config.Store backed by a
// temp file containing doc, a fresh Registry, and the given community
// connect-count/table-shape stub. It mirrors internal/registry/registry_test.go's
// stub-factory pattern so Testable Scenarios S1-S6 of spec.md §8 can be
// asserted against real handlers rather than transport plumbing.
func newTestDispatcher(t *testing.T, doc string, connects *int32, rows int64, cols []contracts.ColumnSchema) (*dispatch.Dispatcher, *config.Store) {
	t.Helper()
	return newTestDispatcherWithEnterpriseTables(t, doc, connects, rows, cols, nil)
}

// newTestDispatcherWithEnterpriseTables is newTestDispatcher, additionally
// seeding every enterprise PQ session's connected client with sessionTables
// so catalog handlers have something to enumerate.
func newTestDispatcherWithEnterpriseTables(t *testing.T, doc string, connects *int32, rows int64, cols []contracts.ColumnSchema, sessionTables []string) (*dispatch.Dispatcher, *config.Store) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "broker.json")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("writing config fixture: %v", err)
	}

	cfgStore := config.New(path)
	snap, err := cfgStore.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	enterpriseFactory := func(ctx context.Context, cfg model.EnterpriseSystemConfig, auth contracts.EnterpriseAuth) (contracts.AuthClient, contracts.ControllerClient, error) {
		c := newStubControllerClient()
		c.sessionTables = sessionTables
		return nopAuthClient{}, c, nil
	}

	reg := registry.New(countingCommunityFactory(connects, rows, cols), enterpriseFactory)
	if err := reg.ReplaceFromConfig(context.Background(), snap); err != nil {
		t.Fatalf("ReplaceFromConfig() error = %v", err)
	}

	d := dispatch.New(cfgStore, reg, 0)
	return d, cfgStore
}
