package dispatch_test

import (
	"context"
	"sync/atomic"
	"testing"
)

// TestScenarioS1_TrivialReload is spec.md §8 S1: empty config, list_sessions
// is empty before and after a successful reload.
func TestScenarioS1_TrivialReload(t *testing.T) {
	var connects int32
	d, _ := newTestDispatcher(t, `{}`, &connects, 0, nil)
	ctx := context.Background()

	env := d.Handle(ctx, "list_sessions", nil)
	if !env.Success {
		t.Fatalf("list_sessions (before) Success = false, error = %v", env.Error)
	}
	if sessions, _ := env.Data["sessions"].([]map[string]any); len(sessions) != 0 {
		t.Errorf("list_sessions (before) sessions = %v, want empty", sessions)
	}

	env = d.Handle(ctx, "reload", nil)
	if !env.Success {
		t.Fatalf("reload Success = false, error = %v", env.Error)
	}

	env = d.Handle(ctx, "list_sessions", nil)
	if !env.Success {
		t.Fatalf("list_sessions (after) Success = false, error = %v", env.Error)
	}
	if sessions, _ := env.Data["sessions"].([]map[string]any); len(sessions) != 0 {
		t.Errorf("list_sessions (after) sessions = %v, want empty", sessions)
	}
}

// TestScenarioS2_UnknownSession is spec.md §8 S2: a community source that
// resolves but whose name suffix does not match the canonical session name
// must fail UnknownSession, not silently succeed.
func TestScenarioS2_UnknownSession(t *testing.T) {
	var connects int32
	doc := `{"community":{"sessions":{"local":{"auth_type":"anonymous","session_type":"python"}}}}`
	d, _ := newTestDispatcher(t, doc, &connects, 0, nil)

	env := d.Handle(context.Background(), "session_details", map[string]any{
		"session_id": "community:local:missing",
	})
	if env.Success {
		t.Fatalf("session_details(community:local:missing) Success = true, want false")
	}
	if env.Error == "" {
		t.Fatalf("session_details(community:local:missing) Error is empty")
	}
}

// TestScenarioS3_BuildCoalescing is spec.md §8 S3: 20 concurrent
// session_details(attempt_to_connect=true) calls against one community
// session observe exactly one connect().
func TestScenarioS3_BuildCoalescing(t *testing.T) {
	var connects int32
	doc := `{"community":{"sessions":{"s1":{"auth_type":"anonymous","session_type":"python"}}}}`
	d, _ := newTestDispatcher(t, doc, &connects, 0, nil)

	const n = 20
	results := make(chan bool, n)
	for i := 0; i < n; i++ {
		go func() {
			env := d.Handle(context.Background(), "session_details", map[string]any{
				"session_id":         "community:s1:s1",
				"attempt_to_connect": true,
			})
			results <- env.Success
		}()
	}
	for i := 0; i < n; i++ {
		if !<-results {
			t.Errorf("concurrent session_details call %d did not succeed", i)
		}
	}

	if got := atomic.LoadInt32(&connects); got != 1 {
		t.Errorf("connect() observed %d times, want 1", got)
	}
}
