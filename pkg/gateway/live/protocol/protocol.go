// Package protocol defines the JSON frames exchanged on /v1/live.
//
// Client frames: start, audio, stop.
// Server frames: state, audio, clear, transcript, turn, error.
package protocol

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/lumina-press/lumina/pkg/core/audio"
	"github.com/lumina-press/lumina/pkg/core/types"
)

const (
	TypeStart      = "start"
	TypeAudio      = "audio"
	TypeStop       = "stop"
	TypeState      = "state"
	TypeClear      = "clear"
	TypeTranscript = "transcript"
	TypeTurn       = "turn"
	TypeError      = "error"
)

// Error codes sent in ServerError.Code.
const (
	CodeBadRequest    = "bad_request"
	CodeSessionActive = "session_active"
	CodeNoSession     = "no_session"
	CodeDevice        = "device_error"
	CodeRemote        = "remote_error"
	CodeConfiguration = "configuration_error"
	CodeDraining      = "draining"
	CodeRateLimited   = "rate_limited"
	CodeInternal      = "internal"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: CodeBadRequest, Message: message, Param: param}
}

// ClientStart asks the gateway to open a voice session.
type ClientStart struct {
	Type string `json:"type"`
}

// ClientAudio carries one captured microphone frame at 16 kHz mono, either as
// base64 PCM16 or as float samples in [-1, 1].
type ClientAudio struct {
	Type    string    `json:"type"`
	Data    string    `json:"data,omitempty"`
	Samples []float32 `json:"samples,omitempty"`
}

// Frame converts the payload to float samples.
func (a ClientAudio) Frame() ([]float32, error) {
	if len(a.Samples) > 0 {
		out := make([]float32, len(a.Samples))
		copy(out, a.Samples)
		return out, nil
	}
	pcm, err := audio.Base64ToPCM16(a.Data)
	if err != nil {
		return nil, badRequest("audio.data is not valid base64", "data")
	}
	buf, err := audio.DecodeToAudioBuffer(pcm, audio.CaptureFormat().SampleRate, 1)
	if err != nil {
		return nil, badRequest(err.Error(), "data")
	}
	return buf.Channels[0], nil
}

// ClientStop ends the voice session.
type ClientStop struct {
	Type string `json:"type"`
}

func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case TypeStart:
		return ClientStart{Type: TypeStart}, nil
	case TypeStop:
		return ClientStop{Type: TypeStop}, nil
	case TypeAudio:
		var msg ClientAudio
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid audio frame", "")
		}
		if strings.TrimSpace(msg.Data) == "" && len(msg.Samples) == 0 {
			return nil, badRequest("audio.data or audio.samples is required", "data")
		}
		if msg.Data != "" && len(msg.Samples) > 0 {
			return nil, badRequest("audio.data and audio.samples are exclusive", "samples")
		}
		for _, s := range msg.Samples {
			if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
				return nil, badRequest("audio.samples must be finite", "samples")
			}
		}
		return msg, nil
	default:
		return nil, badRequest("unsupported message type", "type")
	}
}

// ServerState reports a session state change.
type ServerState struct {
	Type      string `json:"type"`
	State     string `json:"state"`
	SessionID string `json:"session_id,omitempty"`
}

// ServerAudio is one chunk of assistant speech, base64 PCM16 at 24 kHz mono,
// to be started StartAtMS after the session's playback clock origin.
type ServerAudio struct {
	Type       string `json:"type"`
	Data       string `json:"data"`
	StartAtMS  int64  `json:"start_at_ms"`
	DurationMS int64  `json:"duration_ms"`
}

// ServerClear tells the client to stop every scheduled chunk.
type ServerClear struct {
	Type      string `json:"type"`
	Discarded int    `json:"discarded"`
}

// ServerTranscript carries a partial transcription fragment.
type ServerTranscript struct {
	Type    string        `json:"type"`
	Speaker types.Speaker `json:"speaker"`
	Text    string        `json:"text"`
}

// ServerTurn carries a finalized turn appended to the history.
type ServerTurn struct {
	Type string     `json:"type"`
	Turn types.Turn `json:"turn"`
}

type ServerError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Close   bool   `json:"close,omitempty"`
}
