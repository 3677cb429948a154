package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lumina-press/lumina/internal/dotenv"
	"github.com/lumina-press/lumina/pkg/core/assistant"
	"github.com/lumina-press/lumina/pkg/core/consult"
	"github.com/lumina-press/lumina/pkg/core/live"
	"github.com/lumina-press/lumina/pkg/core/types"
	"github.com/lumina-press/lumina/pkg/gateway/config"
	"github.com/lumina-press/lumina/pkg/gateway/live/protocol"
	"github.com/lumina-press/lumina/pkg/gateway/metrics"
	gatewayserver "github.com/lumina-press/lumina/pkg/gateway/server"
)

type gatewayDeps struct {
	loadConfig   func() (config.Config, error)
	newGateway   func(config.Config, *slog.Logger) *gatewayserver.Server
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultGatewayDeps() gatewayDeps {
	return gatewayDeps{
		loadConfig: config.LoadFromEnv,
		newGateway: newGateway,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

// newGateway wires the Gemini-backed consultation and voice controller into
// one server. Chat and voice turns share a single history.
func newGateway(cfg config.Config, logger *slog.Logger) *gatewayserver.Server {
	m := metrics.New("lumina")
	history := types.NewHistory()

	gateway := assistant.New(assistant.NewGenAIGenerator(cfg.GeminiAPIKey),
		assistant.WithModel(cfg.TextModel),
		assistant.WithPrompts(cfg.Prompts),
		assistant.WithLogger(logger),
	)
	consultation := consult.New(gatewayserver.InstrumentAssistant(gateway, m), history, logger)

	controller := live.NewController(liveConfig(cfg), live.Deps{
		Connector: live.NewGenAIConnector(cfg.GeminiAPIKey),
		History:   history,
		Logger:    logger,
	})

	return gatewayserver.New(cfg, logger, gatewayserver.Deps{
		Consultation: consultation,
		Controller:   controller,
		Metrics:      m,
	})
}

func liveConfig(cfg config.Config) live.Config {
	lc := live.DefaultConfig()
	lc.Model = cfg.LiveModel
	lc.Voice = cfg.Voice
	lc.SystemInstruction = cfg.Prompts.LiveGreeting
	return lc
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
	}
}

func newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	var level slog.Level
	_ = level.UnmarshalText([]byte(cfg.LogLevel))
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func runGateway(ctx context.Context, stderr io.Writer, deps gatewayDeps) error {
	if deps.loadConfig == nil {
		return errors.New("missing loadConfig dependency")
	}
	if deps.newGateway == nil {
		return errors.New("missing newGateway dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(stderr, cfg)

	gw := deps.newGateway(cfg, logger)
	httpSrv := buildHTTPServer(cfg, gw.Handler())

	logger.Info("starting gateway",
		"addr", cfg.Addr,
		"text_model", cfg.TextModel,
		"live_model", cfg.LiveModel,
		"config_path", cfg.ConfigPath,
	)
	for _, issue := range cfg.Validate() {
		logger.Warn("gateway not ready", "issue", issue)
	}

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	gw.Lifecycle().SetDraining(true)
	gw.LiveSessions().NotifyAll(protocol.CodeDraining, "gateway is shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer waitCancel()
	if !gw.LiveSessions().Wait(waitCtx) {
		n := gw.LiveSessions().CancelAll()
		logger.Warn("canceled live connections after grace period", "count", n)
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("gateway stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps gatewayDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}

	if err := dotenv.LoadFiles(".env.local", ".env"); err != nil {
		fmt.Fprintf(stderr, "lumina: %v\n", err)
		return 1
	}

	if err := runGateway(ctx, stderr, deps); err != nil {
		fmt.Fprintf(stderr, "lumina: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultGatewayDeps()))
}
