package tui

import (
	"github.com/lumina-press/lumina/pkg/core/consult"
	"github.com/lumina-press/lumina/pkg/core/live"
	"github.com/lumina-press/lumina/pkg/core/types"
)

// ChatDoneMsg is sent when a chat turn round trip finishes.
type ChatDoneMsg struct {
	Requester types.Turn
	Reply     *types.Turn
	Err       error
}

// CritiqueDoneMsg carries the result of an image critique.
type CritiqueDoneMsg struct {
	Critique consult.Critique
	Err      error
}

// GistDoneMsg carries the result of a gist extraction.
type GistDoneMsg struct {
	Gist      types.ProjectGist
	Generated bool
	Err       error
}

// VoiceStartedMsg is sent after the controller accepted or refused a start.
type VoiceStartedMsg struct {
	Session *live.Session
	Err     error
}

// VoiceEventMsg wraps one event from the active voice session.
type VoiceEventMsg struct {
	Session *live.Session
	Event   live.Event
}

// VoiceEndedMsg is sent once the session's event stream is exhausted.
type VoiceEndedMsg struct {
	Session *live.Session
	Err     error
}

// LevelMsg is the RMS level of the latest microphone frame, 0 to 1.
type LevelMsg float64

// ClearNoticeMsg clears a transient notice.
type ClearNoticeMsg struct{}
