// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/morganforge/docchat-tui/internal/config"
	"github.com/morganforge/docchat-tui/internal/model"
	"github.com/morganforge/docchat-tui/internal/ui/styles"
	"github.com/morganforge/docchat-tui/internal/util"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the conversation pane.
func (m Model) View() string {
	var b strings.Builder

	// Header: conversation name + model badge.
	name := m.conversationName
	if name == "" {
		name = "no conversation"
	}
	header := lipgloss.JoinHorizontal(lipgloss.Center,
		m.theme.SidebarTitle.Render(util.TruncateWidth(name, m.width-24)),
		" ",
		m.theme.ModelBadge.Render(m.modelID),
	)
	b.WriteString(header)
	b.WriteString("\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	// Inline error region. Transport and indexing failures land here, next
	// to the transcript they belong to.
	if m.errText != "" {
		b.WriteString(m.theme.ErrorBox.Width(m.width - 2).Render(
			m.theme.ErrorTitle.Render("send failed") + " " +
				m.theme.ErrorMessage.Render(m.errText)))
		b.WriteString("\n")
	}

	if m.inFlight {
		b.WriteString(m.spin.View())
		b.WriteString(m.theme.ThinkingText.Render(" " + m.statusText))
		b.WriteString("\n")
	}

	// Pending attachment chips.
	if len(m.pendingFiles) > 0 {
		chips := make([]string, 0, len(m.pendingFiles))
		for _, file := range m.pendingFiles {
			chips = append(chips, m.theme.PendingFileChip.Render("+ "+file.Name))
		}
		b.WriteString(strings.Join(chips, " "))
		b.WriteString(m.theme.ShortcutDesc.Render("  ctrl+x remove"))
		b.WriteString("\n")
	}

	b.WriteString(m.theme.InputContainer.Width(m.width - 2).Render(m.input.View()))

	return b.String()
}

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

// transcriptRenderer turns messages into viewport content. Assistant text
// goes through glamour; user text is shown verbatim.
type transcriptRenderer struct {
	theme    *styles.Theme
	markdown *glamour.TermRenderer
	width    int

	glamourStyle   string
	showTimestamps bool
}

func newTranscriptRenderer(theme *styles.Theme) *transcriptRenderer {
	cfg := config.Global()
	return &transcriptRenderer{
		theme:          theme,
		glamourStyle:   cfg.UI.GlamourStyle,
		showTimestamps: cfg.UI.ShowTimestamps,
	}
}

// setWidth rebuilds the markdown renderer for a new wrap width.
func (r *transcriptRenderer) setWidth(width int) {
	r.width = width

	wrap := width - 10
	if wrap < 20 {
		wrap = 20
	}

	styleOpt := glamour.WithAutoStyle()
	if r.glamourStyle != "" && r.glamourStyle != "auto" {
		styleOpt = glamour.WithStandardStyle(r.glamourStyle)
	}

	markdown, err := glamour.NewTermRenderer(
		styleOpt,
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		// Fall back to plain text rendering.
		r.markdown = nil
		return
	}
	r.markdown = markdown
}

// renderTranscript renders the whole message list.
func (r *transcriptRenderer) renderTranscript(messages []model.Message) string {
	if len(messages) == 0 {
		return r.theme.ThinkingText.Render(
			"\n  Start the conversation, or press ctrl+o to attach a document.\n")
	}

	parts := make([]string, 0, len(messages))
	for _, msg := range messages {
		parts = append(parts, r.renderMessage(msg))
	}
	return strings.Join(parts, "\n")
}

// renderMessage renders one transcript entry.
func (r *transcriptRenderer) renderMessage(msg model.Message) string {
	var b strings.Builder

	if msg.Role == model.RoleUser {
		b.WriteString(r.theme.Timestamp.Render(r.label("you", msg.Timestamp)))
		b.WriteString("\n")

		body := msg.Text
		if msg.File != nil && msg.File.Name != "" {
			body += "\n" + r.theme.FileChip.Render("file: "+msg.File.Name)
		}
		b.WriteString(r.theme.UserBubble.MaxWidth(r.width - 4).Render(body))
		return b.String()
	}

	b.WriteString(r.theme.Timestamp.Render(r.label("assistant", msg.Timestamp)))
	b.WriteString("\n")

	body := r.renderMarkdown(msg.Text)
	if len(msg.Citations) > 0 {
		body += "\n" + r.renderCitations(msg.Citations)
	}
	b.WriteString(r.theme.AssistantBubble.MaxWidth(r.width - 4).Render(body))
	return b.String()
}

// label builds the role line over a message, with the clock time when
// timestamps are enabled.
func (r *transcriptRenderer) label(role, timestamp string) string {
	if !r.showTimestamps || timestamp == "" {
		return role
	}
	return role + " " + timestamp
}

// renderMarkdown renders assistant text through glamour, falling back to
// the raw text when rendering fails.
func (r *transcriptRenderer) renderMarkdown(text string) string {
	if r.markdown == nil {
		return text
	}
	rendered, err := r.markdown.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimSpace(rendered)
}

// renderCitations renders the citation list under an answer.
func (r *transcriptRenderer) renderCitations(citations []model.Citation) string {
	var b strings.Builder
	for i, citation := range citations {
		marker := fmt.Sprintf("[%d]", i+1)
		b.WriteString(r.theme.CitationMarker.Render(marker))
		b.WriteString(r.theme.Timestamp.Render(fmt.Sprintf(" p.%d ", citation.Page)))
		b.WriteString(r.theme.ThinkingText.Render(
			util.TruncateWidth(util.CollapseWhitespace(citation.Content), r.width-16)))
		if i < len(citations)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// lineOffset returns the first viewport line of the message at index, for
// scroll-to-hit.
func (r *transcriptRenderer) lineOffset(messages []model.Message, index, _ int) int {
	if index <= 0 || index > len(messages) {
		return 0
	}
	offset := 0
	for _, msg := range messages[:index] {
		offset += lipgloss.Height(r.renderMessage(msg)) + 1
	}
	return offset
}
