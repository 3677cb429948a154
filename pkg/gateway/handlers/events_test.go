package handlers

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lumina-press/lumina/pkg/core/types"
	"github.com/lumina-press/lumina/pkg/gateway/config"
	"github.com/lumina-press/lumina/pkg/gateway/lifecycle"
	"github.com/lumina-press/lumina/pkg/gateway/live/sessions"
)

type sseEvent struct {
	ID    string
	Event string
	Data  string
}

// readEvent returns the next event, skipping comment lines.
func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read event: %v (partial %+v)", err, ev)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if ev.Event != "" {
				return ev
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id: "):
			ev.ID = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "event: "):
			ev.Event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.Data = strings.TrimPrefix(line, "data: ")
		}
	}
}

type eventsHarness struct {
	server    *httptest.Server
	history   *types.History
	tracker   *sessions.Tracker
	lifecycle *lifecycle.Lifecycle
}

func newEventsHarness(t *testing.T) eventsHarness {
	t.Helper()
	h := eventsHarness{
		history:   types.NewHistory(),
		tracker:   sessions.NewTracker(),
		lifecycle: &lifecycle.Lifecycle{},
	}
	h.server = httptest.NewServer(EventsHandler{
		Config:    config.Config{LiveWSPingInterval: time.Hour},
		History:   h.history,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Lifecycle: h.lifecycle,
		Streams:   h.tracker,
	})
	t.Cleanup(h.server.Close)
	return h
}

func (h eventsHarness) open(t *testing.T, lastID string) (*http.Response, *bufio.Reader) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, h.server.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	if lastID != "" {
		req.Header.Set("Last-Event-ID", lastID)
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	return resp, bufio.NewReader(resp.Body)
}

func TestEvents_StreamsExistingAndNewTurns(t *testing.T) {
	h := newEventsHarness(t)
	h.history.Append(types.NewTurn(types.SpeakerRequester, "I wrote a 90,000-word fantasy novel", nil))

	_, r := h.open(t, "")

	ev := readEvent(t, r)
	if ev.Event != "turn" || ev.ID != "1" {
		t.Fatalf("event=%+v", ev)
	}
	var turn types.Turn
	if err := json.Unmarshal([]byte(ev.Data), &turn); err != nil {
		t.Fatal(err)
	}
	if turn.Speaker != types.SpeakerRequester || turn.Text != "I wrote a 90,000-word fantasy novel" {
		t.Fatalf("turn=%+v", turn)
	}

	h.history.Append(types.NewTurn(types.SpeakerAssistant, "Tell me more", nil))
	ev = readEvent(t, r)
	if ev.ID != "2" || !strings.Contains(ev.Data, "Tell me more") {
		t.Fatalf("event=%+v", ev)
	}
}

func TestEvents_ResumesAfterLastEventID(t *testing.T) {
	h := newEventsHarness(t)
	h.history.Append(types.NewTurn(types.SpeakerRequester, "first", nil))
	h.history.Append(types.NewTurn(types.SpeakerAssistant, "second", nil))

	_, r := h.open(t, "1")
	ev := readEvent(t, r)
	if ev.ID != "2" || !strings.Contains(ev.Data, "second") {
		t.Fatalf("event=%+v", ev)
	}
}

func TestEvents_DrainNotifyEndsStream(t *testing.T) {
	h := newEventsHarness(t)
	_, r := h.open(t, "")

	deadline := time.Now().Add(2 * time.Second)
	for h.tracker.Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("stream was not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if n := h.tracker.NotifyAll("draining", "gateway is shutting down"); n != 1 {
		t.Fatalf("notified=%d", n)
	}

	ev := readEvent(t, r)
	if ev.Event != "error" || !strings.Contains(ev.Data, `"code":"draining"`) {
		t.Fatalf("event=%+v", ev)
	}
	if _, err := r.ReadString('\n'); err != io.EOF {
		t.Fatalf("expected stream end, got %v", err)
	}
}

func TestEvents_RefusedWhileDraining(t *testing.T) {
	h := newEventsHarness(t)
	h.lifecycle.SetDraining(true)

	resp, err := http.Get(h.server.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 529 {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}

func TestLastEventID(t *testing.T) {
	tests := []struct {
		header string
		query  string
		want   int
	}{
		{"", "", 0},
		{"4", "", 4},
		{"", "2", 2},
		{"-1", "", 0},
		{"abc", "", 0},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/v1/events?after="+tt.query, nil)
		if tt.header != "" {
			r.Header.Set("Last-Event-ID", tt.header)
		}
		if got := lastEventID(r); got != tt.want {
			t.Fatalf("header=%q query=%q got %d want %d", tt.header, tt.query, got, tt.want)
		}
	}
}
