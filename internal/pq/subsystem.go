// Package pq implements the PQ Subsystem (C8): controller subscription
// management, snapshot caching, and state-transition waits.
package pq

import (
	"context"
	"sync"
	"time"

	"github.com/enginemcp/broker/internal/metrics"
	"github.com/enginemcp/broker/pkg/brokererr"
	"github.com/enginemcp/broker/pkg/contracts"
	"github.com/enginemcp/broker/pkg/model"
)

var allPQStates = []string{
	string(model.PQPending), string(model.PQInitializing), string(model.PQRunning),
	string(model.PQStopping), string(model.PQTerminated), string(model.PQFailed),
}

// Subsystem holds at most one active controller subscription per
// enterprise system and serves pq_list/pq_details/pq_name_to_id from the
// cached snapshot without extra RPCs (spec.md §4.8).
type Subsystem struct {
	systemKey  string
	controller contracts.ControllerClient

	mu       sync.RWMutex
	snapshot model.PQSnapshot

	cancel    context.CancelFunc
	done      chan struct{}
	notify    chan struct{} // closed and replaced on every snapshot update
}

// New starts a background subscription against controller. Call Close to
// stop it.
func New(ctx context.Context, systemKey string, controller contracts.ControllerClient) (*Subsystem, error) {
	subCtx, cancel := context.WithCancel(ctx)
	ch, err := controller.Subscribe(subCtx)
	if err != nil {
		cancel()
		return nil, brokererr.Wrap(brokererr.RemoteUnavailable, err, "subscribing to controller PQ stream")
	}

	s := &Subsystem{
		systemKey:  systemKey,
		controller: controller,
		cancel:     cancel,
		done:       make(chan struct{}),
		notify:     make(chan struct{}),
	}
	go s.consume(ch)
	return s, nil
}

func (s *Subsystem) consume(ch <-chan model.PQSnapshot) {
	defer close(s.done)
	for snap := range ch {
		s.mu.Lock()
		if snap.Version >= s.snapshot.Version {
			s.snapshot = snap
		}
		old := s.notify
		s.notify = make(chan struct{})
		s.mu.Unlock()
		close(old)

		for name, desc := range snap.ByName {
			metrics.SetPQState(s.systemKey, name, string(desc.State), allPQStates)
		}
	}
}

// Snapshot returns the current cached PQ map.
func (s *Subsystem) Snapshot() model.PQSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// ByName resolves a PQ by name from the cached snapshot; if missing, it
// waits once for the next snapshot on the existing subscription (see
// refreshOnce) before failing with UnknownSession (spec.md §4.8
// pq_name_to_id).
func (s *Subsystem) ByName(ctx context.Context, name string) (model.PQDescriptor, error) {
	s.mu.RLock()
	d, ok := s.snapshot.ByName[name]
	s.mu.RUnlock()
	if ok {
		return d, nil
	}

	if err := s.refreshOnce(ctx); err != nil {
		return model.PQDescriptor{}, err
	}

	s.mu.RLock()
	d, ok = s.snapshot.ByName[name]
	s.mu.RUnlock()
	if !ok {
		return model.PQDescriptor{}, brokererr.New(brokererr.UnknownSession, "PQ %q not found", name)
	}
	return d, nil
}

// refreshOnce waits, for at most 10 seconds, for the next snapshot to
// arrive on the existing subscription; it does not open a new
// subscription. Used only on a cache-miss lookup.
func (s *Subsystem) refreshOnce(ctx context.Context) error {
	s.mu.RLock()
	waitCh := s.notify
	s.mu.RUnlock()

	refreshCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	select {
	case <-waitCh:
		return nil
	case <-refreshCtx.Done():
		return brokererr.Wrap(brokererr.Timeout, refreshCtx.Err(), "refreshing PQ snapshot")
	}
}

// WaitFor blocks until predicate(state) holds for serial, or the state
// becomes terminal and predicate still fails, or timeout elapses. Backs
// pq_start/pq_stop/pq_restart (spec.md §4.8).
func (s *Subsystem) WaitFor(ctx context.Context, serial int64, timeout time.Duration, predicate func(model.PQState) bool) (model.PQState, error) {
	deadline := time.Now().Add(timeout)
	for {
		s.mu.RLock()
		var found model.PQDescriptor
		ok := false
		for _, d := range s.snapshot.ByName {
			if d.Serial == serial {
				found, ok = d, true
				break
			}
		}
		waitCh := s.notify
		s.mu.RUnlock()

		if ok {
			if predicate(found.State) {
				return found.State, nil
			}
			if found.State.Terminal() {
				return found.State, nil
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			state := model.PQState("")
			if ok {
				state = found.State
			}
			return state, brokererr.New(brokererr.Timeout, "timed out waiting for PQ serial %d; last observed state %s", serial, state)
		}

		select {
		case <-waitCh:
		case <-time.After(minDuration(remaining, time.Second)):
		case <-ctx.Done():
			return model.PQState(""), brokererr.Wrap(brokererr.Cancelled, ctx.Err(), "waiting for PQ serial %d", serial)
		}
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// Close cancels the subscription and waits for the consumer goroutine to
// drain.
func (s *Subsystem) Close() {
	s.cancel()
	<-s.done
}

// Watch streams snapshots to the returned channel: once immediately, then
// again every time the cached snapshot changes, until ctx is done. Backs
// the SSE PQ state-change feed (C11); the channel is closed before this
// function's goroutine returns.
func (s *Subsystem) Watch(ctx context.Context) <-chan model.PQSnapshot {
	out := make(chan model.PQSnapshot, 1)
	go func() {
		defer close(out)
		for {
			s.mu.RLock()
			snap := s.snapshot
			waitCh := s.notify
			s.mu.RUnlock()

			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}

			select {
			case <-waitCh:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
