package live

import (
	"github.com/lumina-press/lumina/pkg/core/assistant"
	"github.com/lumina-press/lumina/pkg/core/audio"
)

// SessionState represents the lifecycle state of a voice session.
type SessionState int

const (
	// StateIdle is the state before Start and after a failed device acquisition.
	StateIdle SessionState = iota
	// StateConnecting is while the remote session is being established.
	StateConnecting
	// StateOpen is while audio flows in both directions.
	StateOpen
	// StateClosed is terminal.
	StateClosed
)

// String returns a human-readable state name.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Active reports whether the state holds remote or device resources.
func (s SessionState) Active() bool {
	return s == StateConnecting || s == StateOpen
}

// Config holds all configuration for a voice session.
type Config struct {
	// Model is the native-audio live model.
	Model string `json:"model" yaml:"model"`

	// Voice is the prebuilt voice name used for replies.
	Voice string `json:"voice" yaml:"voice"`

	// SystemInstruction is the greeting persona.
	SystemInstruction string `json:"system_instruction" yaml:"system_instruction"`

	// Capture is the microphone format sent upstream. Default: 16 kHz mono.
	Capture audio.Format `json:"capture" yaml:"capture"`

	// Playback is the format of received audio. Default: 24 kHz mono.
	Playback audio.Format `json:"playback" yaml:"playback"`

	// FrameSamples is the number of samples per capture frame. Default: 4096.
	FrameSamples int `json:"frame_samples" yaml:"frame_samples"`

	// EventBuffer sizes the observer event channel. Default: 64.
	EventBuffer int `json:"event_buffer" yaml:"event_buffer"`
}

// DefaultConfig returns a Config with the Lumina voice defaults.
func DefaultConfig() Config {
	return Config{
		Model:             assistant.DefaultLiveModel,
		Voice:             assistant.DefaultVoice,
		SystemInstruction: assistant.DefaultPrompts().LiveGreeting,
		Capture:           audio.CaptureFormat(),
		Playback:          audio.PlaybackFormat(),
		FrameSamples:      4096,
		EventBuffer:       64,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.Voice == "" {
		c.Voice = d.Voice
	}
	if c.SystemInstruction == "" {
		c.SystemInstruction = d.SystemInstruction
	}
	if c.Capture.SampleRate == 0 {
		c.Capture = d.Capture
	}
	if c.Playback.SampleRate == 0 {
		c.Playback = d.Playback
	}
	if c.FrameSamples <= 0 {
		c.FrameSamples = d.FrameSamples
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = d.EventBuffer
	}
	return c
}
