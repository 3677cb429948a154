package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/lumina-press/lumina/pkg/core/consult"
	"github.com/lumina-press/lumina/pkg/core/live"
	"github.com/lumina-press/lumina/pkg/gateway/config"
	"github.com/lumina-press/lumina/pkg/gateway/handlers"
	"github.com/lumina-press/lumina/pkg/gateway/lifecycle"
	"github.com/lumina-press/lumina/pkg/gateway/live/sessions"
	"github.com/lumina-press/lumina/pkg/gateway/metrics"
	"github.com/lumina-press/lumina/pkg/gateway/mw"
	"github.com/lumina-press/lumina/pkg/gateway/ratelimit"
)

// Deps are the process-wide collaborators shared by every route.
type Deps struct {
	Consultation *consult.Consultation
	Controller   *live.Controller
	Metrics      *metrics.Metrics
	Lifecycle    *lifecycle.Lifecycle
	LiveSessions *sessions.Tracker
}

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux
	deps   Deps

	limiter *ratelimit.Limiter
}

func New(cfg config.Config, logger *slog.Logger, deps Deps) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Lifecycle == nil {
		deps.Lifecycle = &lifecycle.Lifecycle{}
	}
	if deps.LiveSessions == nil {
		deps.LiveSessions = sessions.NewTracker()
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		mux:    http.NewServeMux(),
		deps:   deps,
		limiter: ratelimit.New(ratelimit.Config{
			RPS:   cfg.LimitRPS,
			Burst: cfg.LimitBurst,
		}),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	m := s.deps.Metrics

	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{
		Config:     s.cfg,
		Lifecycle:  s.deps.Lifecycle,
		Controller: s.deps.Controller,
	})
	if m != nil {
		s.mux.Handle("/metrics", m.Handler())
	}

	if s.deps.Consultation != nil {
		c := handlers.ConsultHandlers{
			Config:       s.cfg,
			Consultation: s.deps.Consultation,
			Metrics:      m,
		}
		s.handleAPI("/v1/consultation", c.State)
		s.handleAPI("/v1/history", c.History)
		s.handleAPI("/v1/chat", c.Chat)
		s.handleAPI("/v1/image-critique", c.ImageCritique)
		s.handleAPI("/v1/gist", c.Gist)
		s.handleAPI("/v1/submission", c.Submission)
		s.handleAPI("/v1/view", c.View)

		// Long-lived like /v1/live: no request timeout, tracked for draining.
		s.mux.Handle("/v1/events", handlers.EventsHandler{
			Config:    s.cfg,
			History:   s.deps.Consultation.History(),
			Logger:    s.logger,
			Lifecycle: s.deps.Lifecycle,
			Streams:   s.deps.LiveSessions,
		})
	}

	if s.deps.Controller != nil {
		// Not instrumented or timed: the handler hijacks the connection.
		s.mux.Handle("/v1/live", handlers.LiveHandler{
			Config:       s.cfg,
			Controller:   s.deps.Controller,
			Logger:       s.logger,
			Metrics:      m,
			Lifecycle:    s.deps.Lifecycle,
			LiveSessions: s.deps.LiveSessions,
		})
	}

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

// handleAPI registers a one-shot route with the total request timeout and
// request metrics.
func (s *Server) handleAPI(route string, fn http.HandlerFunc) {
	var h http.Handler = fn
	h = withTimeout(s.cfg, h)
	h = s.deps.Metrics.Instrument(route, h)
	s.mux.Handle(route, h)
}

func withTimeout(cfg config.Config, next http.Handler) http.Handler {
	if cfg.HandlerTimeout <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), cfg.HandlerTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.RateLimit(s.cfg, s.limiter, func(key string) {
		s.deps.Metrics.RecordRateLimitHit()
		s.logger.Debug("rate limited", "client", key)
	}, h)
	h = mw.APIVersion(h)
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// Lifecycle returns the draining state shared with the live handler.
func (s *Server) Lifecycle() *lifecycle.Lifecycle { return s.deps.Lifecycle }

// LiveSessions returns the tracker of open /v1/live and /v1/events
// connections.
func (s *Server) LiveSessions() *sessions.Tracker { return s.deps.LiveSessions }
