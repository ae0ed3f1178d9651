package pq_test

import (
	"context"
	"testing"
	"time"

	"github.com/enginemcp/broker/internal/pq"
	"github.com/enginemcp/broker/pkg/brokererr"
	"github.com/enginemcp/broker/pkg/contracts"
	"github.com/enginemcp/broker/pkg/model"
)

type fakeController struct {
	ch chan model.PQSnapshot
}

func (f *fakeController) AddQuery(ctx context.Context, cfg contracts.PQConfig) (int64, error) { return 0, nil }
func (f *fakeController) StartQuery(ctx context.Context, serial int64) error                   { return nil }
func (f *fakeController) StopQuery(ctx context.Context, serial int64) error                     { return nil }
func (f *fakeController) DeleteQuery(ctx context.Context, serial int64) error                   { return nil }
func (f *fakeController) Subscribe(ctx context.Context) (<-chan model.PQSnapshot, error) {
	go func() {
		<-ctx.Done()
		close(f.ch)
	}()
	return f.ch, nil
}
func (f *fakeController) ConnectSession(ctx context.Context, serial int64) (contracts.CommunityClient, error) {
	return nil, nil
}
func (f *fakeController) Close(ctx context.Context) error { return nil }

func TestSubsystem_WaitForReachesRunning(t *testing.T) {
	ch := make(chan model.PQSnapshot, 4)
	fc := &fakeController{ch: ch}
	sub, err := pq.New(context.Background(), "sys1", fc)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sub.Close()

	ch <- model.PQSnapshot{Version: 1, ByName: map[string]model.PQDescriptor{
		"w1": {Serial: 7, Name: "w1", State: model.PQPending},
	}}
	ch <- model.PQSnapshot{Version: 2, ByName: map[string]model.PQDescriptor{
		"w1": {Serial: 7, Name: "w1", State: model.PQInitializing},
	}}
	ch <- model.PQSnapshot{Version: 3, ByName: map[string]model.PQDescriptor{
		"w1": {Serial: 7, Name: "w1", State: model.PQRunning},
	}}

	state, err := sub.WaitFor(context.Background(), 7, 2*time.Second, func(s model.PQState) bool { return s == model.PQRunning })
	if err != nil {
		t.Fatalf("WaitFor() error = %v", err)
	}
	if state != model.PQRunning {
		t.Errorf("WaitFor() state = %v, want RUNNING", state)
	}
}

func TestSubsystem_WaitForTimesOutOnStuckState(t *testing.T) {
	ch := make(chan model.PQSnapshot, 1)
	fc := &fakeController{ch: ch}
	sub, err := pq.New(context.Background(), "sys1", fc)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sub.Close()

	ch <- model.PQSnapshot{Version: 1, ByName: map[string]model.PQDescriptor{
		"w1": {Serial: 7, Name: "w1", State: model.PQInitializing},
	}}

	_, err = sub.WaitFor(context.Background(), 7, 100*time.Millisecond, func(s model.PQState) bool { return s == model.PQRunning })
	if brokererr.KindOf(err) != brokererr.Timeout {
		t.Fatalf("KindOf(err) = %v, want Timeout", brokererr.KindOf(err))
	}
}

func TestSubsystem_ByNameRefreshesOnMiss(t *testing.T) {
	ch := make(chan model.PQSnapshot, 2)
	fc := &fakeController{ch: ch}
	sub, err := pq.New(context.Background(), "sys1", fc)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sub.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		ch <- model.PQSnapshot{Version: 1, ByName: map[string]model.PQDescriptor{
			"w1": {Serial: 1, Name: "w1", State: model.PQRunning},
		}}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d, err := sub.ByName(ctx, "w1")
	if err != nil {
		t.Fatalf("ByName() error = %v", err)
	}
	if d.Serial != 1 {
		t.Errorf("ByName() serial = %d, want 1", d.Serial)
	}
}

func TestSubsystem_ByNameUnknown(t *testing.T) {
	ch := make(chan model.PQSnapshot)
	fc := &fakeController{ch: ch}
	sub, err := pq.New(context.Background(), "sys1", fc)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = sub.ByName(ctx, "absent")
	if err == nil {
		t.Fatalf("ByName() error = nil, want error")
	}
}
