package community_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/enginemcp/broker/internal/community"
	"github.com/enginemcp/broker/pkg/contracts"
	"github.com/enginemcp/broker/pkg/model"
)

type stubClient struct {
	alive atomic.Bool
}

func (s *stubClient) IsAlive(ctx context.Context) bool                       { return s.alive.Load() }
func (s *stubClient) ListTables(ctx context.Context) ([]string, error)       { return nil, nil }
func (s *stubClient) TableSchema(ctx context.Context, t string) ([]contracts.ColumnSchema, error) {
	return nil, nil
}
func (s *stubClient) TableSize(ctx context.Context, t string) (int64, error) { return 0, nil }
func (s *stubClient) FetchTable(ctx context.Context, t string, maxRows int) (*contracts.TableHandle, error) {
	return nil, nil
}
func (s *stubClient) RunScript(ctx context.Context, code string) error { return nil }
func (s *stubClient) PipList(ctx context.Context) ([]string, error)   { return nil, nil }
func (s *stubClient) SetKeepAlive(enabled bool) bool                  { return true }
func (s *stubClient) Close(ctx context.Context) error                 { return nil }

func newCountingFactory(connectCount *int32) contracts.CommunityClientFactory {
	return func(ctx context.Context, cfg model.CommunitySessionConfig, auth contracts.CommunityAuth) (contracts.CommunityClient, error) {
		atomic.AddInt32(connectCount, 1)
		time.Sleep(10 * time.Millisecond) // simulate network latency
		c := &stubClient{}
		c.alive.Store(true)
		return c, nil
	}
}

func TestManager_BuildCoalescing(t *testing.T) {
	var connects int32
	mgr := community.New("s1", model.CommunitySessionConfig{AuthType: model.AuthAnonymous, SessionType: model.LangPython}, newCountingFactory(&connects))

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := mgr.Get(context.Background())
			errs[i] = err
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&connects); got != 1 {
		t.Errorf("connect() observed %d times, want 1", got)
	}
	for i, err := range errs {
		if err != nil {
			t.Errorf("Get() call %d error = %v", i, err)
		}
	}
	if mgr.State() != model.StateReady {
		t.Errorf("State() = %v, want READY", mgr.State())
	}
}

func TestManager_GetAfterCloseFails(t *testing.T) {
	var connects int32
	mgr := community.New("s1", model.CommunitySessionConfig{AuthType: model.AuthAnonymous, SessionType: model.LangPython}, newCountingFactory(&connects))

	if _, err := mgr.Get(context.Background()); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if err := mgr.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := mgr.Close(context.Background()); err != nil {
		t.Fatalf("second Close() error = %v, want nil (idempotent)", err)
	}
	if _, err := mgr.Get(context.Background()); err == nil {
		t.Errorf("Get() after Close() error = nil, want error")
	}
}

func TestManager_RebuildsWhenStale(t *testing.T) {
	var connects int32
	factory := func(ctx context.Context, cfg model.CommunitySessionConfig, auth contracts.CommunityAuth) (contracts.CommunityClient, error) {
		atomic.AddInt32(&connects, 1)
		c := &stubClient{}
		c.alive.Store(true)
		return c, nil
	}
	mgr := community.New("s1", model.CommunitySessionConfig{AuthType: model.AuthAnonymous, SessionType: model.LangPython}, factory)

	client, err := mgr.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	client.(*stubClient).alive.Store(false)

	if mgr.IsAlive(context.Background()) {
		t.Fatalf("IsAlive() = true after underlying client went stale")
	}

	if _, err := mgr.Get(context.Background()); err != nil {
		t.Fatalf("Get() after staleness error = %v", err)
	}
	if got := atomic.LoadInt32(&connects); got != 2 {
		t.Errorf("connect() observed %d times, want 2 (rebuild)", got)
	}
}
