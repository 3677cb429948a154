package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lumina-press/lumina/pkg/core"
	"github.com/lumina-press/lumina/pkg/core/live"
	"github.com/lumina-press/lumina/pkg/gateway/config"
	"github.com/lumina-press/lumina/pkg/gateway/lifecycle"
	"github.com/lumina-press/lumina/pkg/gateway/live/protocol"
	"github.com/lumina-press/lumina/pkg/gateway/live/sessions"
	"github.com/lumina-press/lumina/pkg/gateway/metrics"
	"github.com/lumina-press/lumina/pkg/gateway/mw"
)

// LiveHandler bridges /v1/live WebSocket clients to the voice session
// controller. The controller allows one session process-wide, so a start
// from a second client is refused with session_active.
type LiveHandler struct {
	Config       config.Config
	Controller   *live.Controller
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	Lifecycle    *lifecycle.Lifecycle
	LiveSessions *sessions.Tracker
}

func (h LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodGet {
		writeCoreErrorJSON(w, reqID, &core.Error{Type: core.ErrInvalidRequest, Message: "method not allowed", Code: "method_not_allowed"}, http.StatusMethodNotAllowed)
		return
	}
	if h.Lifecycle.IsDraining() {
		writeCoreErrorJSON(w, reqID, &core.Error{Type: core.ErrOverloaded, Message: "gateway is draining", Code: protocol.CodeDraining}, 529)
		return
	}
	if !mw.OriginAllowed(h.Config, r) {
		writeCoreErrorJSON(w, reqID, &core.Error{Type: core.ErrPermission, Message: "origin is not allowed", Param: "Origin"}, http.StatusForbidden)
		return
	}

	upgrader := websocket.Upgrader{
		HandshakeTimeout: h.Config.LiveHandshakeTimeout,
		CheckOrigin:      func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if h.Config.LiveMaxJSONMessageBytes > 0 {
		conn.SetReadLimit(h.Config.LiveMaxJSONMessageBytes)
	}

	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &liveConn{
		id:         "conn_" + uuid.NewString(),
		conn:       conn,
		cfg:        h.Config,
		controller: h.Controller,
		metrics:    h.Metrics,
		out:        make(chan any, 256),
	}
	if bps := h.Config.LiveMaxAudioBytesPerSecond; bps > 0 {
		c.audioBudget = rate.NewLimiter(rate.Limit(bps), int(bps))
	}
	c.logger = logger.With("conn_id", c.id, "request_id", reqID)
	c.run(h.LiveSessions)
}

// liveConn is one WebSocket client. The read loop owns session start and
// stop; the write loop is the only writer on the socket.
type liveConn struct {
	id         string
	conn       *websocket.Conn
	cfg        config.Config
	controller *live.Controller
	logger     *slog.Logger
	metrics    *metrics.Metrics

	out chan any

	// audioBudget bounds inbound microphone bytes. Read loop only.
	audioBudget  *rate.Limiter
	audioLimited bool

	mu      sync.Mutex
	session *live.Session
	capture *wsCapture
}

func (c *liveConn) run(tracker *sessions.Tracker) {
	base, cancel := context.WithCancel(context.Background())
	if c.cfg.LiveMaxSessionDuration > 0 {
		base, cancel = context.WithTimeout(base, c.cfg.LiveMaxSessionDuration)
	}
	defer cancel()

	unregister := tracker.Register(c.id, sessions.Handle{
		Cancel: cancel,
		Notify: func(code, message string) bool {
			return c.send(protocol.ServerError{Type: protocol.TypeError, Code: code, Message: message})
		},
	})
	defer unregister()

	g, ctx := errgroup.WithContext(base)
	c.send(protocol.ServerState{Type: protocol.TypeState, State: c.controller.State().String()})

	g.Go(func() error { return c.writeLoop(ctx) })
	g.Go(func() error {
		defer cancel()
		return c.readLoop(ctx, g)
	})
	if err := g.Wait(); err != nil {
		c.logger.Warn("live connection ended with error", "err", err)
	}

	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s != nil {
		s.Stop()
	}
	c.logger.Info("live connection closed")
}

func (c *liveConn) readLoop(ctx context.Context, g *errgroup.Group) error {
	c.refreshReadDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.refreshReadDeadline()
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			// Client went away or the write loop closed the socket.
			return nil
		}
		c.refreshReadDeadline()
		if messageType != websocket.TextMessage {
			c.sendError(protocol.CodeBadRequest, "frames must be JSON text", false)
			continue
		}

		msg, err := protocol.DecodeClientMessage(data)
		if err != nil {
			var de *protocol.DecodeError
			if errors.As(err, &de) {
				c.sendError(de.Code, de.Error(), false)
			} else {
				c.sendError(protocol.CodeBadRequest, err.Error(), false)
			}
			continue
		}

		switch m := msg.(type) {
		case protocol.ClientStart:
			c.startSession(ctx, g)
		case protocol.ClientAudio:
			c.pushAudio(m)
		case protocol.ClientStop:
			c.stopSession()
		}
	}
}

func (c *liveConn) refreshReadDeadline() {
	if c.cfg.LiveWSPingInterval > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(2*c.cfg.LiveWSPingInterval + c.cfg.LiveWSWriteTimeout))
	}
}

func (c *liveConn) writeLoop(ctx context.Context) error {
	pingInterval := c.cfg.LiveWSPingInterval
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	writeTimeout := c.cfg.LiveWSWriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case <-ctx.Done():
			c.flush(writeTimeout)
			_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
			return nil
		case v := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(v); err != nil {
				return err
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return err
			}
		}
	}
}

// flush writes frames already queued when the connection ends so the final
// state and error frames reach the client.
func (c *liveConn) flush(writeTimeout time.Duration) {
	for {
		select {
		case v := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(v); err != nil {
				return
			}
		default:
			return
		}
	}
}

// send queues a frame without blocking. Frames are dropped when the client
// cannot keep up.
func (c *liveConn) send(v any) bool {
	select {
	case c.out <- v:
		return true
	default:
		c.logger.Warn("dropping live frame, client is behind")
		return false
	}
}

func (c *liveConn) sendError(code, message string, closeAfter bool) {
	c.send(protocol.ServerError{Type: protocol.TypeError, Code: code, Message: message, Close: closeAfter})
}

func (c *liveConn) startSession(ctx context.Context, g *errgroup.Group) {
	capture := &wsCapture{}
	sink := newWSSink(c.send, func(n int) { c.metrics.RecordLiveAudio("out", n) })

	s, err := c.controller.StartWith(ctx, live.Deps{
		Capture: capture,
		Sink:    sink,
		Logger:  c.logger,
	})
	if err != nil {
		if errors.Is(err, live.ErrSessionActive) {
			c.sendError(protocol.CodeSessionActive, "a voice session is already active", false)
			return
		}
		c.logger.Warn("live session start failed", "err", err)
		c.sendError(errorCodeFor(err), err.Error(), false)
		state := live.StateClosed
		if core.IsType(err, core.ErrDevice) {
			state = live.StateIdle
		}
		c.send(protocol.ServerState{Type: protocol.TypeState, State: state.String()})
		return
	}

	c.mu.Lock()
	c.session = s
	c.capture = capture
	c.mu.Unlock()
	c.metrics.RecordLiveSessionStart()

	g.Go(func() error {
		c.forward(ctx, s)
		return nil
	})
}

func (c *liveConn) stopSession() {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		c.sendError(protocol.CodeNoSession, "no voice session is active", false)
		return
	}
	s.Stop()
}

func (c *liveConn) pushAudio(m protocol.ClientAudio) {
	frame, err := m.Frame()
	if err != nil {
		c.sendError(protocol.CodeBadRequest, err.Error(), false)
		return
	}
	c.mu.Lock()
	capture := c.capture
	c.mu.Unlock()
	if capture == nil {
		return
	}

	n := len(frame) * 2
	if c.audioBudget != nil && !c.audioBudget.AllowN(time.Now(), n) {
		if !c.audioLimited {
			c.audioLimited = true
			c.logger.Warn("inbound audio over budget, dropping frames")
			c.sendError(protocol.CodeRateLimited, "audio exceeds the per-connection budget; frames are dropped", false)
		}
		return
	}
	c.audioLimited = false
	if capture.push(frame) {
		c.metrics.RecordLiveAudio("in", n)
	}
}

// forward relays session events to the client until the session ends.
func (c *liveConn) forward(ctx context.Context, s *live.Session) {
	started := time.Now()
	outcome := "ok"
	defer func() {
		c.mu.Lock()
		if c.session == s {
			c.session = nil
			c.capture = nil
		}
		c.mu.Unlock()
		c.metrics.RecordLiveSessionEnd(outcome, time.Since(started))
	}()

	for {
		select {
		case ev := <-s.Events():
			if c.relay(s, ev) {
				outcome = "error"
			}
		case <-s.Done():
			for {
				select {
				case ev := <-s.Events():
					if c.relay(s, ev) {
						outcome = "error"
					}
				default:
					return
				}
			}
		case <-ctx.Done():
			s.Stop()
			return
		}
	}
}

// relay maps one session event to a frame. It reports whether the event was
// an error. Barge-in clears are sent by wsSink.Flush, not here.
func (c *liveConn) relay(s *live.Session, ev live.Event) bool {
	switch e := ev.(type) {
	case *live.StateChangedEvent:
		c.send(protocol.ServerState{Type: protocol.TypeState, State: e.To.String(), SessionID: s.ID()})
	case *live.TranscriptEvent:
		c.send(protocol.ServerTranscript{Type: protocol.TypeTranscript, Speaker: e.Speaker, Text: e.Text})
	case *live.TurnCommittedEvent:
		c.metrics.RecordLiveTurn(string(e.Turn.Speaker))
		c.send(protocol.ServerTurn{Type: protocol.TypeTurn, Turn: e.Turn})
	case *live.ErrorEvent:
		c.sendError(liveErrorCode(e.Code), e.Message, false)
		return true
	case *live.SessionClosedEvent:
		c.send(protocol.ServerClear{Type: protocol.TypeClear})
	}
	return false
}

func errorCodeFor(err error) string {
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		return liveErrorCode(string(coreErr.Type))
	}
	return protocol.CodeRemote
}

func liveErrorCode(t string) string {
	switch core.ErrorType(strings.TrimSpace(t)) {
	case core.ErrDevice:
		return protocol.CodeDevice
	case core.ErrConfiguration:
		return protocol.CodeConfiguration
	default:
		return protocol.CodeRemote
	}
}
