package live

import (
	"time"

	"github.com/lumina-press/lumina/pkg/core/types"
)

// Event is the interface for all session events delivered to observers.
type Event interface {
	// EventType returns the event type string for serialization.
	EventType() string
}

// StateChangedEvent is emitted when the session state changes.
type StateChangedEvent struct {
	From SessionState `json:"from"`
	To   SessionState `json:"to"`
}

func (e *StateChangedEvent) EventType() string { return "state.changed" }

// TranscriptEvent is emitted for each partial transcription fragment.
type TranscriptEvent struct {
	Speaker types.Speaker `json:"speaker"`
	Text    string        `json:"text"`
}

func (e *TranscriptEvent) EventType() string { return "transcript.delta" }

// TurnCommittedEvent is emitted after a finalized turn is appended to history.
type TurnCommittedEvent struct {
	Turn types.Turn `json:"turn"`
}

func (e *TurnCommittedEvent) EventType() string { return "turn.committed" }

// AudioScheduledEvent is emitted when a received chunk is queued for playback.
type AudioScheduledEvent struct {
	At       time.Duration `json:"at"`
	Duration time.Duration `json:"duration"`
}

func (e *AudioScheduledEvent) EventType() string { return "audio.scheduled" }

// AudioFlushEvent signals that all scheduled playback was discarded because
// the remote model was interrupted.
type AudioFlushEvent struct {
	Discarded int `json:"discarded"`
}

func (e *AudioFlushEvent) EventType() string { return "audio.flush" }

// ErrorEvent is emitted when the session fails.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorEvent) EventType() string { return "error" }

// SessionClosedEvent is emitted once when the session ends.
type SessionClosedEvent struct {
	Reason string `json:"reason,omitempty"`
}

func (e *SessionClosedEvent) EventType() string { return "session.closed" }
