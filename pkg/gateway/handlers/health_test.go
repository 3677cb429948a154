package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lumina-press/lumina/pkg/gateway/config"
	"github.com/lumina-press/lumina/pkg/gateway/lifecycle"
)

func readyConfig() config.Config {
	return config.Config{
		GeminiAPIKey: "test-key",
		TextModel:    "gemini-text",
		LiveModel:    "gemini-live",
		LimitRPS:     1,
		LimitBurst:   1,
	}
}

func decodeReady(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v body=%q", err, rr.Body.String())
	}
	return resp
}

func TestHealthHandler_OK(t *testing.T) {
	rr := httptest.NewRecorder()
	HealthHandler{}.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok\n" {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestReadyHandler_Ready(t *testing.T) {
	h := ReadyHandler{Config: readyConfig(), Lifecycle: &lifecycle.Lifecycle{}}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	resp := decodeReady(t, rr)
	if ok, _ := resp["ok"].(bool); !ok {
		t.Fatalf("expected ok=true: %v", resp)
	}
	if resp["live_state"] != "idle" {
		t.Fatalf("live_state=%v", resp["live_state"])
	}
	if limits, _ := resp["limits_enabled"].(bool); !limits {
		t.Fatalf("expected limits_enabled")
	}
}

func TestReadyHandler_MissingKey_NotReady(t *testing.T) {
	cfg := readyConfig()
	cfg.GeminiAPIKey = ""
	h := ReadyHandler{Config: cfg}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	resp := decodeReady(t, rr)
	if ok, _ := resp["ok"].(bool); ok {
		t.Fatalf("expected ok=false")
	}
	issues, _ := resp["issues"].([]any)
	if len(issues) != 1 || !strings.Contains(issues[0].(string), "GEMINI_API_KEY") {
		t.Fatalf("issues=%v", issues)
	}
}

func TestReadyHandler_Draining_NotReady(t *testing.T) {
	lc := &lifecycle.Lifecycle{}
	lc.SetDraining(true)
	h := ReadyHandler{Config: readyConfig(), Lifecycle: lc}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rr.Code)
	}
	resp := decodeReady(t, rr)
	if draining, _ := resp["draining"].(bool); !draining {
		t.Fatalf("expected draining=true: %v", resp)
	}
}

func TestNotFoundHandler_Envelope(t *testing.T) {
	rr := httptest.NewRecorder()
	NotFoundHandler{}.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
	var env struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Error.Type != "not_found_error" {
		t.Fatalf("type=%q", env.Error.Type)
	}
}
