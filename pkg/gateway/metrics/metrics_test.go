package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInstrument_RecordsRouteAndStatus(t *testing.T) {
	m := New("")
	h := m.Instrument("/v1/chat", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/chat", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/chat", nil))

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/v1/chat", "502")); got != 2 {
		t.Fatalf("requests_total=%v", got)
	}
}

func TestLiveSessionLifecycle(t *testing.T) {
	m := New("test")
	m.RecordLiveSessionStart()
	m.RecordLiveSessionStart()
	m.RecordLiveSessionEnd("ok", 3*time.Second)

	if got := testutil.ToFloat64(m.LiveSessionsActive); got != 1 {
		t.Fatalf("active=%v", got)
	}
	if got := testutil.ToFloat64(m.LiveSessionsTotal.WithLabelValues("ok")); got != 1 {
		t.Fatalf("total=%v", got)
	}

	m.RecordLiveAudio("in", 320)
	m.RecordLiveAudio("in", 0)
	if got := testutil.ToFloat64(m.LiveAudioBytesTotal.WithLabelValues("in")); got != 320 {
		t.Fatalf("audio bytes=%v", got)
	}
}

func TestAssistantCalls(t *testing.T) {
	m := New("")
	m.RecordAssistantCall("gist", nil)
	m.RecordAssistantCall("gist", errors.New("boom"))
	if got := testutil.ToFloat64(m.AssistantCallsTotal.WithLabelValues("gist", "error")); got != 1 {
		t.Fatalf("errors=%v", got)
	}
}

func TestHandler_ExposesNamespace(t *testing.T) {
	m := New("")
	m.RecordRateLimitHit()

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "lumina_rate_limit_hits_total 1") {
		t.Fatalf("unexpected exposition: %s", rr.Body.String())
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", 200, time.Second)
	m.RecordAssistantCall("chat", nil)
	m.RecordLiveSessionStart()
	m.RecordError("api_error")
	h := m.Instrument("/", http.NotFoundHandler())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
}
