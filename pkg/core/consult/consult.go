// Package consult holds the state shared by every view of one author
// consultation: the conversation history, the extracted gist, the current
// cover critique, the submission flag and the selected view.
package consult

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/lumina-press/lumina/pkg/core/types"
)

// CritiqueFailedMessage is shown in place of a critique when the request fails.
const CritiqueFailedMessage = "We encountered an error analyzing your visual content."

// MinTurnsForGist is the number of turns required before a gist is requested.
const MinTurnsForGist = 2

var (
	// ErrEmptyMessage is returned for a chat message with no text.
	ErrEmptyMessage = errors.New("consult: message is empty")

	// ErrBusy is returned while another request of the same kind is in flight.
	ErrBusy = errors.New("consult: request already in progress")

	// ErrAssistantUnavailable wraps remote failures surfaced to the author.
	ErrAssistantUnavailable = errors.New("consult: the assistant could not be reached")
)

// Assistant issues the one-shot requests of a consultation.
type Assistant interface {
	ChatTurn(ctx context.Context, history []types.Turn, text string, image *types.Image) (string, error)
	AnalyzeImage(ctx context.Context, image types.Image) (string, error)
	ExtractGist(ctx context.Context, history []types.Turn) (types.ProjectGist, error)
}

// Critique is the most recent cover critique.
type Critique struct {
	Image  *types.Image `json:"image,omitempty"`
	Text   string       `json:"text"`
	Failed bool         `json:"failed"`
}

// Snapshot is a copy of the consultation state for rendering.
type Snapshot struct {
	View        View               `json:"view"`
	Turns       []types.Turn       `json:"turns"`
	Gist        *types.ProjectGist `json:"gist,omitempty"`
	GistLoading bool               `json:"gist_loading"`
	Critique    *Critique          `json:"critique,omitempty"`
	Submitted   bool               `json:"submitted"`
}

// Consultation coordinates text chat, critique and gist extraction over one
// shared history. The voice session appends to the same history.
type Consultation struct {
	assistant Assistant
	history   *types.History
	logger    *slog.Logger

	mu          sync.Mutex
	view        View
	chatBusy    bool
	gist        *types.ProjectGist
	gistLoading bool
	critique    *Critique
	submitted   bool
}

// New creates a consultation over history. A nil history starts empty.
func New(assistant Assistant, history *types.History, logger *slog.Logger) *Consultation {
	if history == nil {
		history = types.NewHistory()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consultation{
		assistant: assistant,
		history:   history,
		logger:    logger,
		view:      ViewConversation,
	}
}

// History returns the shared conversation history.
func (c *Consultation) History() *types.History { return c.history }

// SendMessage appends the author's message, asks the assistant for a reply
// and appends it. On failure the author's turn stays in the history and the
// error wraps ErrAssistantUnavailable.
func (c *Consultation) SendMessage(ctx context.Context, text string, image *types.Image) (types.Turn, *types.Turn, error) {
	if strings.TrimSpace(text) == "" {
		return types.Turn{}, nil, ErrEmptyMessage
	}
	c.mu.Lock()
	if c.chatBusy {
		c.mu.Unlock()
		return types.Turn{}, nil, ErrBusy
	}
	c.chatBusy = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.chatBusy = false
		c.mu.Unlock()
	}()

	prior := c.history.Snapshot()
	requester := c.history.Append(types.NewTurn(types.SpeakerRequester, text, image))

	reply, err := c.assistant.ChatTurn(ctx, prior, text, image)
	if err != nil {
		c.logger.Error("chat turn failed", "turn_id", requester.ID, "err", err)
		return requester, nil, fmt.Errorf("%w: %w", ErrAssistantUnavailable, err)
	}
	assistantTurn := c.history.Append(types.NewTurn(types.SpeakerAssistant, reply, nil))
	return requester, &assistantTurn, nil
}

// AnalyzeImage requests a critique of image and records it as the current
// critique. A remote failure records CritiqueFailedMessage instead.
func (c *Consultation) AnalyzeImage(ctx context.Context, image types.Image) (Critique, error) {
	if err := image.Validate(); err != nil {
		return Critique{}, err
	}
	text, err := c.assistant.AnalyzeImage(ctx, image)
	critique := Critique{Image: image.Clone(), Text: text}
	if err != nil {
		c.logger.Error("image critique failed", "mime_type", image.MIMEType, "err", err)
		critique.Text = CritiqueFailedMessage
		critique.Failed = true
	}

	c.mu.Lock()
	c.critique = &critique
	c.mu.Unlock()

	if err != nil {
		return critique, fmt.Errorf("%w: %w", ErrAssistantUnavailable, err)
	}
	return critique, nil
}

// ClearCritique discards the current image and critique.
func (c *Consultation) ClearCritique() {
	c.mu.Lock()
	c.critique = nil
	c.mu.Unlock()
}

// GenerateGist extracts a project gist from the history and replaces the
// current one. With fewer than MinTurnsForGist turns it does nothing and
// reports generated=false. A remote failure leaves the current gist as is.
func (c *Consultation) GenerateGist(ctx context.Context) (gist types.ProjectGist, generated bool, err error) {
	turns := c.history.Snapshot()
	if len(turns) < MinTurnsForGist {
		return types.ProjectGist{}, false, nil
	}

	c.mu.Lock()
	if c.gistLoading {
		c.mu.Unlock()
		return types.ProjectGist{}, false, ErrBusy
	}
	c.gistLoading = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.gistLoading = false
		c.mu.Unlock()
	}()

	gist, err = c.assistant.ExtractGist(ctx, turns)
	if err != nil {
		c.logger.Error("gist extraction failed", "turns", len(turns), "err", err)
		return types.ProjectGist{}, false, fmt.Errorf("%w: %w", ErrAssistantUnavailable, err)
	}

	c.mu.Lock()
	c.gist = &gist
	c.mu.Unlock()
	c.logger.Info("gist generated", "title", gist.Title, "turns", len(turns))
	return gist, true, nil
}

// Gist returns the current gist, if any.
func (c *Consultation) Gist() (types.ProjectGist, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gist == nil {
		return types.ProjectGist{}, false
	}
	return *c.gist, true
}

// Submit records the local acknowledgment of a proposal. Nothing is sent
// anywhere.
func (c *Consultation) Submit() {
	c.mu.Lock()
	c.submitted = true
	c.mu.Unlock()
	c.logger.Info("proposal submitted")
}

// Submitted reports whether the proposal was acknowledged.
func (c *Consultation) Submitted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitted
}

// View returns the selected view.
func (c *Consultation) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// SetView selects a view.
func (c *Consultation) SetView(v View) error {
	if !v.Valid() {
		return fmt.Errorf("unknown view %q", v)
	}
	c.mu.Lock()
	c.view = v
	c.mu.Unlock()
	return nil
}

// Snapshot copies the full state.
func (c *Consultation) Snapshot() Snapshot {
	turns := c.history.Snapshot()
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		View:        c.view,
		Turns:       turns,
		GistLoading: c.gistLoading,
		Submitted:   c.submitted,
	}
	if c.gist != nil {
		g := *c.gist
		snap.Gist = &g
	}
	if c.critique != nil {
		cr := *c.critique
		snap.Critique = &cr
	}
	return snap
}
