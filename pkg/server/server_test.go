package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/enginemcp/broker/pkg/server"
)

func writeEmptyConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o600); err != nil {
		t.Fatalf("writing fixture config: %v", err)
	}
	return path
}

func TestNewWiresAWorkingHandler(t *testing.T) {
	ctx := context.Background()
	srv, err := server.New(ctx, server.Config{
		ConfigFilePath:    writeEmptyConfig(t),
		ReconcileInterval: time.Minute,
	})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	defer func() {
		if err := srv.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	}()

	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestNewFailsOnMissingConfigFile(t *testing.T) {
	ctx := context.Background()
	_, err := server.New(ctx, server.Config{
		ConfigFilePath: filepath.Join(t.TempDir(), "missing.json"),
	})
	if err == nil {
		t.Fatal("expected an error when the config file does not exist")
	}
}

func TestShutdownSucceedsAfterNew(t *testing.T) {
	ctx := context.Background()
	srv, err := server.New(ctx, server.Config{
		ConfigFilePath:    writeEmptyConfig(t),
		ReconcileInterval: time.Minute,
	})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}
