// Package tui is the terminal front end of a consultation: chat, cover
// critique and submission views plus a push-to-talk voice session.
package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lumina-press/lumina/pkg/core/consult"
	"github.com/lumina-press/lumina/pkg/core/live"
	"github.com/lumina-press/lumina/pkg/core/types"
)

// Model is the bubbletea model for one consultation.
type Model struct {
	ctx     context.Context
	consult *consult.Consultation
	voice   *live.Controller

	input     textinput.Model
	pathInput textinput.Model

	chatBusy     bool
	critiqueBusy bool
	gistBusy     bool

	session        *live.Session
	voiceState     live.SessionState
	partialSpeaker types.Speaker
	partial        string
	level          float64

	notice    string
	noticeErr bool

	width  int
	height int
}

// New creates the model. voice may be nil, in which case ctrl+v reports
// that voice is unavailable.
func New(ctx context.Context, c *consult.Consultation, voice *live.Controller) Model {
	input := textinput.New()
	input.Placeholder = "Tell me about your manuscript..."
	input.CharLimit = 4000
	input.Prompt = "> "
	input.Focus()

	pathInput := textinput.New()
	pathInput.Placeholder = "/path/to/cover.png"
	pathInput.Prompt = "image: "

	return Model{
		ctx:       ctx,
		consult:   c,
		voice:     voice,
		input:     input,
		pathInput: pathInput,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(10, msg.Width-6)
		m.pathInput.Width = max(10, msg.Width-10)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ChatDoneMsg:
		m.chatBusy = false
		if msg.Err != nil {
			m.setError(describeErr(msg.Err))
		}
		return m, nil

	case CritiqueDoneMsg:
		m.critiqueBusy = false
		switch {
		case msg.Critique.Failed:
			m.setError(consult.CritiqueFailedMessage)
		case msg.Err != nil:
			m.setError(describeErr(msg.Err))
		default:
			m.pathInput.Reset()
			m.clearNotice()
		}
		return m, nil

	case GistDoneMsg:
		m.gistBusy = false
		switch {
		case msg.Err != nil:
			m.setError(describeErr(msg.Err))
		case !msg.Generated:
			m.setNotice("Keep talking: the gist needs at least two turns.")
		default:
			m.setNotice("Gist updated.")
		}
		return m, nil

	case VoiceStartedMsg:
		if msg.Err != nil {
			m.voiceState = live.StateIdle
			m.setError(describeErr(msg.Err))
			return m, nil
		}
		m.session = msg.Session
		m.voiceState = msg.Session.State()
		m.clearNotice()
		return m, waitVoiceEvent(msg.Session)

	case VoiceEventMsg:
		if msg.Session != m.session {
			return m, nil
		}
		m.applyVoiceEvent(msg.Event)
		return m, waitVoiceEvent(msg.Session)

	case VoiceEndedMsg:
		if msg.Session != m.session {
			return m, nil
		}
		m.session = nil
		m.voiceState = live.StateIdle
		m.partial = ""
		m.level = 0
		if msg.Err != nil && !m.noticeErr {
			m.setError(describeErr(msg.Err))
		}
		return m, nil

	case LevelMsg:
		m.level = float64(msg)
		return m, nil

	case ClearNoticeMsg:
		m.clearNotice()
		return m, nil
	}
	return m.updateInputs(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit:
		if m.session != nil {
			m.session.Stop()
		}
		return m, tea.Quit

	case KeyNextView:
		next := m.consult.View().Next()
		_ = m.consult.SetView(next)
		m.clearNotice()
		m.focusFor(next)
		if next == consult.ViewSubmission && !m.gistBusy {
			if _, ok := m.consult.Gist(); !ok && m.consult.History().Len() >= consult.MinTurnsForGist {
				m.gistBusy = true
				return m, gistCmd(m.ctx, m.consult)
			}
		}
		return m, nil

	case KeyToggleVoice:
		if m.voice == nil {
			m.setError("Voice is not available in this session.")
			return m, nil
		}
		if m.session != nil {
			m.session.Stop()
			return m, nil
		}
		m.voiceState = live.StateConnecting
		return m, startVoiceCmd(m.ctx, m.voice)
	}

	switch m.consult.View() {
	case consult.ViewConversation:
		if msg.String() == KeyEnter {
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.chatBusy {
				return m, nil
			}
			m.input.Reset()
			m.chatBusy = true
			m.clearNotice()
			return m, sendChatCmd(m.ctx, m.consult, text)
		}

	case consult.ViewImageCritique:
		switch msg.String() {
		case KeyEnter:
			path := strings.TrimSpace(m.pathInput.Value())
			if path == "" || m.critiqueBusy {
				return m, nil
			}
			m.critiqueBusy = true
			m.clearNotice()
			return m, critiqueCmd(m.ctx, m.consult, path)
		case KeyClear:
			m.consult.ClearCritique()
			m.pathInput.Reset()
			return m, nil
		}

	case consult.ViewSubmission:
		switch msg.String() {
		case KeyGist:
			if m.gistBusy {
				return m, nil
			}
			m.gistBusy = true
			return m, gistCmd(m.ctx, m.consult)
		case KeySubmit:
			if _, ok := m.consult.Gist(); !ok {
				m.setError("Generate a gist before submitting.")
				return m, nil
			}
			m.consult.Submit()
			m.setNotice("Submitted for review.")
			return m, nil
		}
		return m, nil
	}
	return m.updateInputs(msg)
}

func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.consult.View() {
	case consult.ViewConversation:
		m.input, cmd = m.input.Update(msg)
	case consult.ViewImageCritique:
		m.pathInput, cmd = m.pathInput.Update(msg)
	}
	return m, cmd
}

func (m *Model) applyVoiceEvent(ev live.Event) {
	switch e := ev.(type) {
	case *live.StateChangedEvent:
		m.voiceState = e.To
		if e.To == live.StateClosed {
			m.partial = ""
			m.level = 0
		}
	case *live.TranscriptEvent:
		if e.Speaker != m.partialSpeaker {
			m.partial = ""
		}
		m.partialSpeaker = e.Speaker
		m.partial += e.Text
	case *live.TurnCommittedEvent:
		m.partial = ""
	case *live.ErrorEvent:
		m.setError("Voice session ended: " + e.Message)
	}
}

func (m *Model) focusFor(v consult.View) {
	m.input.Blur()
	m.pathInput.Blur()
	switch v {
	case consult.ViewConversation:
		m.input.Focus()
	case consult.ViewImageCritique:
		m.pathInput.Focus()
	}
}

func (m *Model) setNotice(s string) {
	m.notice = s
	m.noticeErr = false
}

func (m *Model) setError(s string) {
	m.notice = s
	m.noticeErr = true
}

func (m *Model) clearNotice() {
	m.notice = ""
	m.noticeErr = false
}

func describeErr(err error) string {
	switch {
	case errors.Is(err, live.ErrSessionActive):
		return "A voice session is already active."
	case errors.Is(err, consult.ErrAssistantUnavailable):
		return "The assistant could not be reached. Try again."
	case errors.Is(err, consult.ErrBusy):
		return "Still working on the previous request."
	default:
		return err.Error()
	}
}
