package httpapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/enginemcp/broker/internal/config"
	"github.com/enginemcp/broker/internal/dispatch"
	"github.com/enginemcp/broker/internal/httpapi"
	"github.com/enginemcp/broker/internal/registry"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfgStore := config.New("")
	reg := registry.New(nil, nil)
	d := dispatch.New(cfgStore, reg, 0)
	return httpapi.NewRouter(d, reg, httpapi.Config{})
}

func TestHealthzReportsSessionCount(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status field = %v, want healthy", body["status"])
	}
	if body["session_count"].(float64) != 0 {
		t.Errorf("session_count = %v, want 0 for an empty registry", body["session_count"])
	}
}

func TestVersionEndpoint(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/version")
	if err != nil {
		t.Fatalf("GET /version: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestToolsListIsSortedAndNonEmpty(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/tools")
	if err != nil {
		t.Fatalf("GET /tools: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Tools []string `json:"tools"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(body.Tools) == 0 {
		t.Fatal("expected at least one registered tool")
	}
	for i := 1; i < len(body.Tools); i++ {
		if body.Tools[i-1] > body.Tools[i] {
			t.Errorf("tools not sorted: %v", body.Tools)
			break
		}
	}
}

func TestToolInvokeUnknownToolReturnsErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/tools/not_a_real_tool", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /tools/not_a_real_tool: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}

	var env map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if env["success"] != false {
		t.Errorf("success = %v, want false", env["success"])
	}
}

func TestToolInvokeRejectsMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/tools/list_tables", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCORSWildcardByDefault(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/tools", nil)
	if err != nil {
		t.Fatalf("building preflight request: %v", err)
	}
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight request: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want \"*\"", got)
	}
}
