package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lumina-press/lumina/internal/device"
	"github.com/lumina-press/lumina/internal/dotenv"
	"github.com/lumina-press/lumina/internal/tui"
	"github.com/lumina-press/lumina/pkg/core/assistant"
	"github.com/lumina-press/lumina/pkg/core/audio"
	"github.com/lumina-press/lumina/pkg/core/consult"
	"github.com/lumina-press/lumina/pkg/core/live"
	"github.com/lumina-press/lumina/pkg/core/types"
	"github.com/lumina-press/lumina/pkg/gateway/config"
)

const defaultLogPath = "lumina-voice.log"

// app is everything the terminal front end drives.
type app struct {
	consultation *consult.Consultation
	controller   *live.Controller
	microphone   *device.Microphone
	speaker      *device.Speaker
}

func (a *app) close(logger *slog.Logger) {
	if a.controller != nil {
		a.controller.Stop()
	}
	if a.speaker != nil {
		if err := a.speaker.Close(); err != nil {
			logger.Warn("close speaker", "err", err)
		}
	}
}

// newApp builds the consultation and, when a playback device is available,
// the voice controller. Without speakers the TUI runs text-only.
func newApp(cfg config.Config, logger *slog.Logger, newSpeaker func(audio.Format) (*device.Speaker, error)) *app {
	history := types.NewHistory()
	gateway := assistant.New(assistant.NewGenAIGenerator(cfg.GeminiAPIKey),
		assistant.WithModel(cfg.TextModel),
		assistant.WithPrompts(cfg.Prompts),
		assistant.WithLogger(logger),
	)
	a := &app{
		consultation: consult.New(gateway, history, logger),
		microphone:   &device.Microphone{},
	}

	lc := liveConfig(cfg)
	if newSpeaker == nil {
		return a
	}
	speaker, err := newSpeaker(lc.Playback)
	if err != nil {
		logger.Warn("playback device unavailable, voice disabled", "err", err)
		return a
	}
	a.speaker = speaker
	a.controller = live.NewController(lc, live.Deps{
		Connector: live.NewGenAIConnector(cfg.GeminiAPIKey),
		Capture:   a.microphone,
		Sink:      speaker,
		History:   history,
		Logger:    logger,
	})
	return a
}

func liveConfig(cfg config.Config) live.Config {
	lc := live.DefaultConfig()
	lc.Model = cfg.LiveModel
	lc.Voice = cfg.Voice
	lc.SystemInstruction = cfg.Prompts.LiveGreeting
	return lc
}

// openLog opens the log file named by LUMINA_VOICE_LOG. The terminal is
// owned by the TUI, so logs never go to stderr.
func openLog(cfg config.Config) (*slog.Logger, io.Closer, error) {
	path := strings.TrimSpace(os.Getenv("LUMINA_VOICE_LOG"))
	if path == "" {
		path = defaultLogPath
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	var level slog.Level
	_ = level.UnmarshalText([]byte(cfg.LogLevel))
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(f, opts)
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(f, opts)
	}
	return slog.New(h), f, nil
}

func run(ctx context.Context) error {
	if err := dotenv.LoadFiles(".env.local", ".env"); err != nil {
		return err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, logFile, err := openLog(cfg)
	if err != nil {
		return err
	}
	defer logFile.Close()

	for _, issue := range cfg.Validate() {
		logger.Warn("configuration issue", "issue", issue)
	}

	a := newApp(cfg, logger, device.NewSpeaker)
	defer a.close(logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(tui.New(ctx, a.consultation, a.controller), tea.WithAltScreen(), tea.WithContext(ctx))
	a.microphone.OnLevel = func(level float64) {
		p.Send(tui.LevelMsg(level))
	}

	logger.Info("lumina-voice started", "text_model", cfg.TextModel, "live_model", cfg.LiveModel, "voice_enabled", a.controller != nil)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	logger.Info("lumina-voice stopped")
	return nil
}

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "lumina-voice: %v\n", err)
		os.Exit(1)
	}
}
