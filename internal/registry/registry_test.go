package registry_test

import (
	"context"
	"testing"

	"github.com/enginemcp/broker/internal/config"
	"github.com/enginemcp/broker/internal/registry"
	"github.com/enginemcp/broker/pkg/brokererr"
	"github.com/enginemcp/broker/pkg/contracts"
	"github.com/enginemcp/broker/pkg/model"
)

type nopCommunityClient struct{}

func (nopCommunityClient) IsAlive(ctx context.Context) bool { return true }
func (nopCommunityClient) ListTables(ctx context.Context) ([]string, error) { return nil, nil }
func (nopCommunityClient) TableSchema(ctx context.Context, t string) ([]contracts.ColumnSchema, error) {
	return nil, nil
}
func (nopCommunityClient) TableSize(ctx context.Context, t string) (int64, error) { return 0, nil }
func (nopCommunityClient) FetchTable(ctx context.Context, t string, maxRows int) (*contracts.TableHandle, error) {
	return nil, nil
}
func (nopCommunityClient) RunScript(ctx context.Context, code string) error { return nil }
func (nopCommunityClient) PipList(ctx context.Context) ([]string, error)   { return nil, nil }
func (nopCommunityClient) SetKeepAlive(enabled bool) bool                  { return true }
func (nopCommunityClient) Close(ctx context.Context) error                 { return nil }

func stubCommunityFactory(ctx context.Context, cfg model.CommunitySessionConfig, auth contracts.CommunityAuth) (contracts.CommunityClient, error) {
	return nopCommunityClient{}, nil
}

type nopAuthClient struct{}

func (nopAuthClient) Authenticate(ctx context.Context) error { return nil }
func (nopAuthClient) Probe(ctx context.Context) error         { return nil }
func (nopAuthClient) Close(ctx context.Context) error         { return nil }

type nopControllerClient struct{}

func (nopControllerClient) AddQuery(ctx context.Context, cfg contracts.PQConfig) (int64, error) { return 1, nil }
func (nopControllerClient) StartQuery(ctx context.Context, serial int64) error                   { return nil }
func (nopControllerClient) StopQuery(ctx context.Context, serial int64) error                     { return nil }
func (nopControllerClient) DeleteQuery(ctx context.Context, serial int64) error                   { return nil }
func (nopControllerClient) Subscribe(ctx context.Context) (<-chan model.PQSnapshot, error) {
	ch := make(chan model.PQSnapshot)
	close(ch)
	return ch, nil
}
func (nopControllerClient) ConnectSession(ctx context.Context, serial int64) (contracts.CommunityClient, error) {
	return nopCommunityClient{}, nil
}
func (nopControllerClient) Close(ctx context.Context) error { return nil }

func stubEnterpriseFactory(ctx context.Context, cfg model.EnterpriseSystemConfig, auth contracts.EnterpriseAuth) (contracts.AuthClient, contracts.ControllerClient, error) {
	return nopAuthClient{}, nopControllerClient{}, nil
}

func newSnapshot() *config.Snapshot {
	return &config.Snapshot{
		Community: model.CommunityConfig{Sessions: map[string]model.CommunitySessionConfig{
			"local": {AuthType: model.AuthAnonymous, SessionType: model.LangPython},
		}},
		Enterprise: model.EnterpriseConfig{Systems: map[string]model.EnterpriseSystemConfig{
			"prod": {ConnectionJSONURL: "https://ctl.example.com/iris/connection.json", AuthType: model.AuthPassword, Username: "svc", Password: "x"},
		}},
	}
}

func TestRegistry_ReplaceFromConfigAndLookup(t *testing.T) {
	r := registry.New(stubCommunityFactory, stubEnterpriseFactory)
	if err := r.ReplaceFromConfig(context.Background(), newSnapshot()); err != nil {
		t.Fatalf("ReplaceFromConfig() error = %v", err)
	}

	if _, err := r.Community("local"); err != nil {
		t.Fatalf("Community(local) error = %v", err)
	}
	if _, err := r.EnterpriseSystem("prod"); err != nil {
		t.Fatalf("EnterpriseSystem(prod) error = %v", err)
	}
	if _, err := r.Community("missing"); brokererr.KindOf(err) != brokererr.UnknownSource {
		t.Fatalf("Community(missing) KindOf(err) = %v, want UnknownSource", brokererr.KindOf(err))
	}
}

func TestRegistry_ListAllIsCheap(t *testing.T) {
	r := registry.New(stubCommunityFactory, stubEnterpriseFactory)
	if err := r.ReplaceFromConfig(context.Background(), newSnapshot()); err != nil {
		t.Fatalf("ReplaceFromConfig() error = %v", err)
	}
	listing := r.ListAll()
	if len(listing) != 1 {
		t.Fatalf("ListAll() len = %d, want 1 (no enterprise sessions configured yet)", len(listing))
	}
	if listing[0].SessionID.String() == "" {
		t.Errorf("ListAll()[0].SessionID.String() is empty")
	}
}

func TestRegistry_ReplaceFromConfigReplacesAtomically(t *testing.T) {
	r := registry.New(stubCommunityFactory, stubEnterpriseFactory)
	if err := r.ReplaceFromConfig(context.Background(), newSnapshot()); err != nil {
		t.Fatalf("first ReplaceFromConfig() error = %v", err)
	}

	second := &config.Snapshot{
		Community: model.CommunityConfig{Sessions: map[string]model.CommunitySessionConfig{
			"other": {AuthType: model.AuthAnonymous, SessionType: model.LangPython},
		}},
		Enterprise: model.EnterpriseConfig{Systems: map[string]model.EnterpriseSystemConfig{}},
	}
	if err := r.ReplaceFromConfig(context.Background(), second); err != nil {
		t.Fatalf("second ReplaceFromConfig() error = %v", err)
	}

	if _, err := r.Community("local"); err == nil {
		t.Errorf("Community(local) succeeded after replacement, want UnknownSource")
	}
	if _, err := r.Community("other"); err != nil {
		t.Errorf("Community(other) error = %v", err)
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	r := registry.New(stubCommunityFactory, stubEnterpriseFactory)
	if err := r.ReplaceFromConfig(context.Background(), newSnapshot()); err != nil {
		t.Fatalf("ReplaceFromConfig() error = %v", err)
	}
	if err := r.CloseAll(context.Background()); err != nil {
		t.Fatalf("CloseAll() error = %v", err)
	}
	if len(r.ListAll()) != 0 {
		t.Errorf("ListAll() after CloseAll() = %v, want empty", r.ListAll())
	}
}
