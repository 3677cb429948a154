package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumina-press/lumina/pkg/core"
	"github.com/lumina-press/lumina/pkg/core/types"
	"github.com/lumina-press/lumina/pkg/gateway/config"
	"github.com/lumina-press/lumina/pkg/gateway/lifecycle"
	"github.com/lumina-press/lumina/pkg/gateway/live/sessions"
	"github.com/lumina-press/lumina/pkg/gateway/mw"
	"github.com/lumina-press/lumina/pkg/gateway/sse"
)

const (
	eventTurn  = "turn"
	eventError = "error"
)

type streamError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EventsHandler streams the conversation history as server-sent events so a
// page sees turns from the voice session and other tabs as they land. Each
// turn is sent once with its 1-based position as the event id; a reconnect
// with Last-Event-ID resumes after that position.
type EventsHandler struct {
	Config    config.Config
	History   *types.History
	Logger    *slog.Logger
	Lifecycle *lifecycle.Lifecycle
	Streams   *sessions.Tracker
}

func (h EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	if h.Lifecycle != nil && h.Lifecycle.IsDraining() {
		writeCoreErrorJSON(w, reqID, &core.Error{Type: core.ErrOverloaded, Message: "gateway is draining", Code: "draining"}, 529)
		return
	}

	sent := lastEventID(r)
	if n := h.History.Len(); sent > n {
		sent = n
	}

	stream, err := sse.New(w)
	if err != nil {
		writeCoreErrorJSON(w, reqID, &core.Error{Type: core.ErrAPI, Message: "streaming is not supported"}, http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := "sse_" + uuid.NewString()
	logger = logger.With("stream_id", id, "request_id", reqID)

	notices := make(chan streamError, 1)
	if h.Streams != nil {
		unregister := h.Streams.Register(id, sessions.Handle{
			Cancel: cancel,
			Notify: func(code, message string) bool {
				select {
				case notices <- streamError{Code: code, Message: message}:
					return true
				default:
					return false
				}
			},
		})
		defer unregister()
	}

	updates, unsubscribe := h.History.Subscribe()
	defer unsubscribe()

	interval := h.Config.LiveWSPingInterval
	if interval <= 0 {
		interval = 20 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Debug("history stream opened", "resume_after", sent)
	for {
		turns := h.History.Snapshot()
		for ; sent < len(turns); sent++ {
			if err := stream.Send(strconv.Itoa(sent+1), eventTurn, turns[sent]); err != nil {
				logger.Debug("history stream write failed", "err", err)
				return
			}
		}

		select {
		case <-ctx.Done():
			logger.Debug("history stream closed")
			return
		case n := <-notices:
			_ = stream.Send("", eventError, n)
			return
		case <-updates:
		case <-ticker.C:
			if err := stream.Ping(); err != nil {
				return
			}
		}
	}
}

func lastEventID(r *http.Request) int {
	raw := strings.TrimSpace(r.Header.Get("Last-Event-ID"))
	if raw == "" {
		raw = strings.TrimSpace(r.URL.Query().Get("after"))
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
