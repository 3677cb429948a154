package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lumina-press/lumina/pkg/core/assistant"
)

type Config struct {
	Addr string

	// GeminiAPIKey may be empty; the first remote call then fails with a
	// configuration error.
	GeminiAPIKey string

	TextModel string
	LiveModel string
	Voice     string
	Prompts   assistant.Prompts

	LogLevel  string
	LogFormat string

	// If true, client identity may be derived from proxy headers like X-Forwarded-For.
	TrustProxyHeaders bool

	MaxBodyBytes int64

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Live WebSocket mode (/v1/live).
	LiveMaxJSONMessageBytes int64
	LiveMaxSessionDuration  time.Duration
	LiveWSPingInterval      time.Duration
	LiveWSWriteTimeout      time.Duration
	LiveHandshakeTimeout    time.Duration

	// Inbound microphone audio budget per connection, in PCM16 bytes per
	// second. Zero disables the budget.
	LiveMaxAudioBytesPerSecond int64

	// In-memory limits (per client address) on one-shot endpoints.
	LimitRPS   float64
	LimitBurst int

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	HandlerTimeout      time.Duration
	ShutdownGracePeriod time.Duration

	// ConfigPath is the file the settings were merged from, if any.
	ConfigPath string
}

// LoadFromEnv builds the configuration from the optional file named by
// LUMINA_CONFIG and then the environment. Environment values win.
func LoadFromEnv() (Config, error) {
	path := strings.TrimSpace(os.Getenv("LUMINA_CONFIG"))
	file, err := LoadFile(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Addr:                    envOr("LUMINA_ADDR", file.addrOr(":8080")),
		GeminiAPIKey:            envOr("LUMINA_GEMINI_API_KEY", envOr("GEMINI_API_KEY", "")),
		TextModel:               envOr("LUMINA_TEXT_MODEL", file.textModelOr(assistant.DefaultTextModel)),
		LiveModel:               envOr("LUMINA_LIVE_MODEL", file.liveModelOr(assistant.DefaultLiveModel)),
		Voice:                   envOr("LUMINA_VOICE", file.voiceOr(assistant.DefaultVoice)),
		Prompts:                 file.Prompts.WithDefaults(),
		LogLevel:                strings.ToLower(envOr("LUMINA_LOG_LEVEL", "info")),
		LogFormat:               strings.ToLower(envOr("LUMINA_LOG_FORMAT", "text")),
		TrustProxyHeaders:       envBoolOr("LUMINA_TRUST_PROXY_HEADERS", false),
		MaxBodyBytes:            envInt64Or("LUMINA_MAX_BODY_BYTES", 16<<20), // 16 MiB, images arrive as data URLs
		CORSAllowedOrigins:      make(map[string]struct{}),
		LiveMaxJSONMessageBytes: envInt64Or("LUMINA_LIVE_MAX_JSON_MESSAGE_BYTES", 256*1024),
		LiveMaxSessionDuration:  envDurationOr("LUMINA_LIVE_MAX_DURATION", time.Hour),
		LiveWSPingInterval:      envDurationOr("LUMINA_LIVE_WS_PING_INTERVAL", 20*time.Second),
		LiveWSWriteTimeout:      envDurationOr("LUMINA_LIVE_WS_WRITE_TIMEOUT", 5*time.Second),
		LiveHandshakeTimeout:    envDurationOr("LUMINA_LIVE_HANDSHAKE_TIMEOUT", 10*time.Second),
		LimitRPS:                envFloat64Or("LUMINA_RATE_LIMIT_RPS", 2.0),
		LimitBurst:              envIntOr("LUMINA_RATE_LIMIT_BURST", 4),
		ReadHeaderTimeout:       envDurationOr("LUMINA_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:             envDurationOr("LUMINA_READ_TIMEOUT", 30*time.Second),
		HandlerTimeout:          envDurationOr("LUMINA_TOTAL_REQUEST_TIMEOUT", 2*time.Minute),
		ShutdownGracePeriod:     envDurationOr("LUMINA_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		ConfigPath:              path,

		// 16 kHz mono PCM16 is 32000 B/s; allow twice that for jitter.
		LiveMaxAudioBytesPerSecond: envInt64Or("LUMINA_LIVE_MAX_AUDIO_BPS", 64000),
	}

	origins := splitCSV(os.Getenv("LUMINA_CORS_ORIGINS"))
	if len(origins) == 0 {
		origins = file.CORSOrigins
	}
	for _, origin := range origins {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return Config{}, fmt.Errorf("LUMINA_LOG_LEVEL must be one of debug|info|warn|error")
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return Config{}, fmt.Errorf("LUMINA_LOG_FORMAT must be one of text|json")
	}
	if cfg.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("LUMINA_MAX_BODY_BYTES must be > 0")
	}
	if cfg.LiveMaxJSONMessageBytes <= 0 {
		return Config{}, fmt.Errorf("LUMINA_LIVE_MAX_JSON_MESSAGE_BYTES must be > 0")
	}
	if cfg.LiveMaxSessionDuration <= 0 {
		return Config{}, fmt.Errorf("LUMINA_LIVE_MAX_DURATION must be > 0")
	}
	if cfg.LiveWSPingInterval <= 0 {
		return Config{}, fmt.Errorf("LUMINA_LIVE_WS_PING_INTERVAL must be > 0")
	}
	if cfg.LiveWSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("LUMINA_LIVE_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.LiveHandshakeTimeout <= 0 {
		return Config{}, fmt.Errorf("LUMINA_LIVE_HANDSHAKE_TIMEOUT must be > 0")
	}
	if cfg.LiveMaxAudioBytesPerSecond < 0 {
		return Config{}, fmt.Errorf("LUMINA_LIVE_MAX_AUDIO_BPS must be >= 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("LUMINA_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("LUMINA_READ_TIMEOUT must be > 0")
	}
	if cfg.HandlerTimeout <= 0 {
		return Config{}, fmt.Errorf("LUMINA_TOTAL_REQUEST_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("LUMINA_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if cfg.LimitRPS < 0 {
		return Config{}, fmt.Errorf("LUMINA_RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.LimitBurst < 0 {
		return Config{}, fmt.Errorf("LUMINA_RATE_LIMIT_BURST must be >= 0")
	}

	return cfg, nil
}

// Validate reports conditions that keep the service from answering requests.
// An empty result means the service is ready.
func (c Config) Validate() []string {
	var issues []string
	if strings.TrimSpace(c.GeminiAPIKey) == "" {
		issues = append(issues, "GEMINI_API_KEY is not set")
	}
	if strings.TrimSpace(c.TextModel) == "" {
		issues = append(issues, "text model is empty")
	}
	if strings.TrimSpace(c.LiveModel) == "" {
		issues = append(issues, "live model is empty")
	}
	return issues
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
