package live

import (
	"context"
	"sync"
)

// Controller owns at most one voice session at a time. After a session
// closes the controller is idle again and the next Start builds a fresh
// session and transport.
type Controller struct {
	config Config
	deps   Deps

	mu      sync.Mutex
	current *Session
}

// NewController creates a controller whose sessions share deps.
func NewController(cfg Config, deps Deps) *Controller {
	return &Controller{config: cfg, deps: deps}
}

// Start begins a new session. It returns ErrSessionActive while another
// session is connecting or open.
func (c *Controller) Start(ctx context.Context) (*Session, error) {
	return c.StartWith(ctx, Deps{})
}

// StartWith is Start with per-session collaborators. Non-nil fields of
// override replace the controller's; the gateway uses it to bind each
// session to the WebSocket that requested it.
func (c *Controller) StartWith(ctx context.Context, override Deps) (*Session, error) {
	deps := c.deps
	if override.Connector != nil {
		deps.Connector = override.Connector
	}
	if override.Capture != nil {
		deps.Capture = override.Capture
	}
	if override.Sink != nil {
		deps.Sink = override.Sink
	}
	if override.History != nil {
		deps.History = override.History
	}
	if override.Logger != nil {
		deps.Logger = override.Logger
	}

	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return nil, ErrSessionActive
	}
	s := NewSession(c.config, deps)
	c.current = s
	c.mu.Unlock()

	if err := s.Start(ctx); err != nil {
		c.release(s)
		return nil, err
	}
	go func() {
		<-s.Done()
		c.release(s)
	}()
	return s, nil
}

func (c *Controller) release(s *Session) {
	c.mu.Lock()
	if c.current == s {
		c.current = nil
	}
	c.mu.Unlock()
}

// Stop ends the current session, if any.
func (c *Controller) Stop() {
	if s := c.Current(); s != nil {
		s.Stop()
	}
}

// Current returns the active session or nil.
func (c *Controller) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// State reports the active session's state, or StateIdle.
func (c *Controller) State() SessionState {
	s := c.Current()
	if s == nil {
		return StateIdle
	}
	st := s.State()
	if st == StateClosed {
		return StateIdle
	}
	return st
}
