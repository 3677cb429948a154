package tui

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lumina-press/lumina/pkg/core/consult"
	"github.com/lumina-press/lumina/pkg/core/live"
	"github.com/lumina-press/lumina/pkg/core/types"
)

func sendChatCmd(ctx context.Context, c *consult.Consultation, text string) tea.Cmd {
	return func() tea.Msg {
		requester, reply, err := c.SendMessage(ctx, text, nil)
		return ChatDoneMsg{Requester: requester, Reply: reply, Err: err}
	}
}

func critiqueCmd(ctx context.Context, c *consult.Consultation, path string) tea.Cmd {
	return func() tea.Msg {
		img, err := loadImage(path)
		if err != nil {
			return CritiqueDoneMsg{Err: err}
		}
		critique, err := c.AnalyzeImage(ctx, *img)
		return CritiqueDoneMsg{Critique: critique, Err: err}
	}
}

func gistCmd(ctx context.Context, c *consult.Consultation) tea.Cmd {
	return func() tea.Msg {
		gist, generated, err := c.GenerateGist(ctx)
		return GistDoneMsg{Gist: gist, Generated: generated, Err: err}
	}
}

func startVoiceCmd(ctx context.Context, ctrl *live.Controller) tea.Cmd {
	return func() tea.Msg {
		s, err := ctrl.Start(ctx)
		return VoiceStartedMsg{Session: s, Err: err}
	}
}

// waitVoiceEvent blocks for the next session event. Events still buffered
// when the session finishes are delivered before VoiceEndedMsg.
func waitVoiceEvent(s *live.Session) tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-s.Events():
			return VoiceEventMsg{Session: s, Event: ev}
		case <-s.Done():
			select {
			case ev := <-s.Events():
				return VoiceEventMsg{Session: s, Event: ev}
			default:
			}
			return VoiceEndedMsg{Session: s, Err: s.Err()}
		}
	}
}

// loadImage reads a cover image from disk. The MIME type comes from the
// extension, falling back to content sniffing.
func loadImage(path string) (*types.Image, error) {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	img := &types.Image{Data: data, MIMEType: mimeType}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}
