package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lumina-press/lumina/pkg/core/consult"
	"github.com/lumina-press/lumina/pkg/core/live"
	"github.com/lumina-press/lumina/pkg/core/types"
)

const meterWidth = 20

func (m Model) View() string {
	view := m.consult.View()

	var b strings.Builder
	b.WriteString(m.renderTabs(view))
	b.WriteString("\n")
	b.WriteString(titleStyle.Render(view.Title()))
	b.WriteString("\n\n")

	switch view {
	case consult.ViewImageCritique:
		b.WriteString(m.renderCritique())
	case consult.ViewSubmission:
		b.WriteString(m.renderSubmission())
	default:
		b.WriteString(m.renderConversation())
	}

	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(helpFor(view)))
	return b.String()
}

func (m Model) renderTabs(current consult.View) string {
	tabs := make([]string, 0, len(consult.Views))
	for _, v := range consult.Views {
		style := tabStyle
		if v == current {
			style = activeTabStyle
		}
		tabs = append(tabs, style.Render(v.Title()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderConversation() string {
	var b strings.Builder
	turns := m.consult.History().Snapshot()
	if len(turns) == 0 {
		b.WriteString(dimStyle.Render("No messages yet. Type below or press ctrl+v to talk."))
		b.WriteString("\n")
	}
	for _, t := range turns {
		b.WriteString(renderTurn(t, m.textWidth()))
		b.WriteString("\n")
	}
	if m.partial != "" {
		b.WriteString(partialStyle.Render(speakerLabel(m.partialSpeaker) + ": " + m.partial))
		b.WriteString("\n")
	}
	if m.chatBusy {
		b.WriteString(dimStyle.Render("Assistant is thinking..."))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderCritique() string {
	var b strings.Builder
	critique := m.consult.Snapshot().Critique
	switch {
	case m.critiqueBusy:
		b.WriteString(dimStyle.Render("Analyzing cover..."))
	case critique == nil:
		b.WriteString(dimStyle.Render("Enter the path of a cover image to critique."))
	case critique.Failed:
		b.WriteString(errorStyle.Render(critique.Text))
	default:
		label := "cover"
		if critique.Image != nil {
			label = fmt.Sprintf("cover (%s, %d bytes)", critique.Image.MIMEType, len(critique.Image.Data))
		}
		body := dimStyle.Render(label) + "\n\n" + lipgloss.NewStyle().Width(m.textWidth()).Render(critique.Text)
		b.WriteString(panelStyle.Render(body))
	}
	b.WriteString("\n\n")
	b.WriteString(m.pathInput.View())
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderSubmission() string {
	var b strings.Builder
	gist, ok := m.consult.Gist()
	switch {
	case m.gistBusy:
		b.WriteString(dimStyle.Render("Extracting project gist..."))
	case !ok:
		b.WriteString(dimStyle.Render(fmt.Sprintf("No gist yet. It needs at least %d turns of conversation.", consult.MinTurnsForGist)))
	default:
		b.WriteString(panelStyle.Render(renderGist(gist, m.textWidth())))
	}
	b.WriteString("\n")
	if m.consult.Submitted() {
		b.WriteString(okStyle.Render("Submitted for review."))
		b.WriteString("\n")
	}
	return b.String()
}

func renderGist(g types.ProjectGist, width int) string {
	rows := []struct{ label, value string }{
		{"Title", g.Title},
		{"Genre", g.Genre},
		{"Audience", g.TargetAudience},
		{"Length", g.WordCount},
		{"Summary", g.Summary},
		{"Note", g.AuthorNote},
	}
	value := lipgloss.NewStyle().Width(max(20, width-12))
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top,
			dimStyle.Width(10).Render(r.label),
			value.Render(r.value),
		))
	}
	return strings.Join(lines, "\n")
}

func renderTurn(t types.Turn, width int) string {
	label := requesterStyle.Render("You")
	if t.Speaker == types.SpeakerAssistant {
		label = assistantStyle.Render("Lumina")
	}
	text := t.Text
	if t.Image != nil {
		text += dimStyle.Render(" [image]")
	}
	return label + "\n" + lipgloss.NewStyle().Width(width).Render(text)
}

func speakerLabel(s types.Speaker) string {
	if s == types.SpeakerAssistant {
		return "Lumina"
	}
	return "You"
}

func (m Model) renderStatus() string {
	parts := []string{"voice: " + m.voiceState.String()}
	if m.voiceState == live.StateOpen {
		parts = append(parts, "mic "+levelMeter(m.level))
	}
	status := dimStyle.Render(strings.Join(parts, "  "))
	if m.notice == "" {
		return status
	}
	if m.noticeErr {
		return status + "  " + errorStyle.Render(m.notice)
	}
	return status + "  " + okStyle.Render(m.notice)
}

// levelMeter renders an RMS level as a fixed-width bar. Speech RMS rarely
// exceeds 0.25, so the bar saturates there.
func levelMeter(level float64) string {
	filled := int(math.Round(math.Min(1, math.Max(0, level*4)) * meterWidth))
	return "[" + strings.Repeat("|", filled) + strings.Repeat(" ", meterWidth-filled) + "]"
}

func (m Model) textWidth() int {
	if m.width <= 0 {
		return 76
	}
	return max(20, m.width-4)
}

func helpFor(v consult.View) string {
	common := "tab: next view • ctrl+v: voice • ctrl+c: quit"
	switch v {
	case consult.ViewImageCritique:
		return "enter: critique • esc: clear • " + common
	case consult.ViewSubmission:
		return "g: generate gist • s: submit • " + common
	default:
		return "enter: send • " + common
	}
}
