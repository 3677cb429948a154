package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/lumina-press/lumina/pkg/core"
	"github.com/lumina-press/lumina/pkg/core/types"
)

var (
	// ErrSessionActive is returned when a voice session is already running.
	ErrSessionActive = errors.New("live: a voice session is already active")

	// ErrSessionClosed is returned when using a session after teardown.
	ErrSessionClosed = errors.New("live: session closed")
)

// Deps are the collaborators a Session needs.
type Deps struct {
	Connector Connector
	Capture   CaptureDevice
	Sink      Sink
	History   *types.History
	Logger    *slog.Logger
}

// Session is one voice connection. All remote events are handled on a single
// goroutine that owns the transcript buffer; teardown may be triggered from
// any goroutine and runs once.
type Session struct {
	id      string
	config  Config
	deps    Deps
	logger  *slog.Logger
	history *types.History

	mu    sync.RWMutex
	state SessionState

	ctx    context.Context
	cancel context.CancelFunc

	capture   CaptureStream
	transport *Transport
	scheduler *Scheduler

	remoteEvents chan RemoteEvent
	pumpErr      chan error
	events       chan Event
	done         chan struct{}

	transcript Transcript

	closeOnce sync.Once
	closeErr  error
}

// NewSession creates an idle session.
func NewSession(cfg Config, deps Deps) *Session {
	cfg = cfg.withDefaults()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	history := deps.History
	if history == nil {
		history = types.NewHistory()
	}
	id := "live_" + uuid.NewString()
	return &Session{
		id:           id,
		config:       cfg,
		deps:         deps,
		logger:       logger.With("session_id", id),
		history:      history,
		state:        StateIdle,
		remoteEvents: make(chan RemoteEvent, 32),
		pumpErr:      make(chan error, 1),
		events:       make(chan Event, cfg.EventBuffer),
		done:         make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Events returns the channel for receiving session events. Events are dropped
// when the observer falls behind.
func (s *Session) Events() <-chan Event { return s.events }

// Done is closed after teardown completes.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the error that ended the session, if any.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.closeErr
	default:
		return nil
	}
}

// Scheduler exposes the playback scheduler, nil before Start.
func (s *Session) Scheduler() *Scheduler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scheduler
}

// Start acquires the capture device and connects to the remote model. If the
// device cannot be acquired the session stays Idle and nothing is allocated.
// The session becomes Open asynchronously once the remote acknowledges setup.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		if state == StateClosed {
			return ErrSessionClosed
		}
		return ErrSessionActive
	}
	s.mu.Unlock()
	s.setState(StateConnecting)

	capture, err := s.deps.Capture.Open(ctx, s.config.Capture, s.config.FrameSamples)
	if err != nil {
		s.setState(StateIdle)
		s.logger.Warn("capture device unavailable", "err", err)
		if core.IsType(err, core.ErrDevice) {
			return err
		}
		return core.NewDeviceError("microphone unavailable", err)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	scheduler := NewScheduler(s.deps.Sink, s.config.Playback)

	s.mu.Lock()
	s.ctx, s.cancel = sessCtx, cancel
	s.capture = capture
	s.scheduler = scheduler
	s.mu.Unlock()

	remote, err := s.deps.Connector.Connect(sessCtx, s.config, s.remoteEvents)
	if err != nil {
		err = fmt.Errorf("connect live session: %w", err)
		s.teardown(err)
		return err
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		_ = remote.Close()
		return ErrSessionClosed
	}
	s.transport = NewTransport(remote, s.config.Capture, scheduler)
	s.mu.Unlock()

	s.logger.Info("live session connecting", "model", s.config.Model, "voice", s.config.Voice)
	go s.loop()
	return nil
}

// Stop ends the session. It is idempotent and safe from any goroutine.
func (s *Session) Stop() {
	s.teardown(nil)
}

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.teardown(nil)
			return
		case err := <-s.pumpErr:
			s.teardown(err)
			return
		case ev := <-s.remoteEvents:
			if done := s.handleRemote(ev); done {
				return
			}
		}
	}
}

// handleRemote applies one remote event. It reports whether the session ended.
func (s *Session) handleRemote(ev RemoteEvent) bool {
	if s.State() == StateClosed {
		return true
	}

	switch ev.Kind {
	case RemoteSetupComplete:
		if s.State() != StateConnecting {
			return false
		}
		if err := s.capture.Start(); err != nil {
			s.teardown(core.NewDeviceError("start capture", err))
			return true
		}
		s.setState(StateOpen)
		go func() {
			if err := s.transport.Pump(s.ctx, s.capture.Frames()); err != nil {
				select {
				case s.pumpErr <- err:
				default:
				}
			}
		}()

	case RemoteInputTranscript:
		s.addTranscript(types.SpeakerRequester, ev.Text)

	case RemoteOutputTranscript:
		s.addTranscript(types.SpeakerAssistant, ev.Text)

	case RemoteAudio:
		sched, err := s.transport.Play(ev.Audio)
		if err != nil {
			if !errors.Is(err, ErrSessionClosed) {
				s.logger.Warn("dropping playback chunk", "err", err)
			}
			return false
		}
		s.emit(&AudioScheduledEvent{At: sched.At, Duration: sched.Duration})

	case RemoteInterrupted:
		n := s.transport.Interrupt()
		s.logger.Debug("playback interrupted", "discarded", n)
		s.emit(&AudioFlushEvent{Discarded: n})

	case RemoteTurnComplete:
		if turn, ok := s.transcript.Finalize(); ok {
			turn = s.history.Append(turn)
			s.emit(&TurnCommittedEvent{Turn: turn})
		}

	case RemoteClosed:
		s.teardown(ev.Err)
		return true
	}
	return false
}

func (s *Session) addTranscript(speaker types.Speaker, text string) {
	if text == "" {
		return
	}
	s.transcript.Add(speaker, text)
	s.emit(&TranscriptEvent{Speaker: speaker, Text: text})
}

// teardown releases every resource exactly once: capture stops, playback is
// discarded, the remote session closes.
func (s *Session) teardown(cause error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		cancel := s.cancel
		capture := s.capture
		transport := s.transport
		scheduler := s.scheduler
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if capture != nil {
			if err := capture.Close(); err != nil {
				s.logger.Warn("close capture device", "err", err)
			}
		}
		if transport != nil {
			if err := transport.Close(); err != nil {
				s.logger.Warn("close remote session", "err", err)
			}
		} else if scheduler != nil {
			scheduler.Close()
		}

		s.closeErr = cause
		reason := ""
		if cause != nil {
			reason = cause.Error()
			s.logger.Error("live session failed", "err", cause)
			s.emit(&ErrorEvent{Code: errorCode(cause), Message: cause.Error()})
		} else {
			s.logger.Info("live session closed")
		}
		s.setState(StateClosed)
		s.emit(&SessionClosedEvent{Reason: reason})
		close(s.done)
	})
}

func (s *Session) setState(newState SessionState) {
	s.mu.Lock()
	old := s.state
	s.state = newState
	s.mu.Unlock()

	if old != newState {
		s.logger.Debug("live state changed", "from", old.String(), "to", newState.String())
		s.emit(&StateChangedEvent{From: old, To: newState})
	}
}

// emit sends an event without blocking.
func (s *Session) emit(event Event) {
	select {
	case s.events <- event:
	default:
	}
}

func errorCode(err error) string {
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		return string(coreErr.Type)
	}
	return "session_error"
}
