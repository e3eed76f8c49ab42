// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/morganforge/docchat-tui/internal/search"
	"github.com/morganforge/docchat-tui/internal/ui/styles"
	"github.com/morganforge/docchat-tui/internal/util"
)

// =============================================================================
// SEARCH PANEL MESSAGES
// =============================================================================

// SearchQueryMsg asks the root model to run a search for the current query.
type SearchQueryMsg struct {
	Query string
}

// SearchHitChosenMsg is emitted when the user picks a result. The root
// model opens the conversation and scrolls to the message.
type SearchHitChosenMsg struct {
	Hit search.Hit
}

// =============================================================================
// SEARCH PANEL
// =============================================================================

// SearchPanel is the transcript search overlay. The query re-runs on every
// keystroke; an empty query clears the results and closes the panel.
type SearchPanel struct {
	input  textinput.Model
	hits   []search.Hit
	cursor int

	visible bool
	width   int
	height  int
}

// NewSearchPanel creates a hidden search panel.
func NewSearchPanel() SearchPanel {
	input := textinput.New()
	input.Placeholder = "search transcripts..."
	input.CharLimit = 128
	input.Prompt = "/ "

	return SearchPanel{input: input}
}

// Show opens the panel with a fresh query.
func (p *SearchPanel) Show() tea.Cmd {
	p.visible = true
	p.hits = nil
	p.cursor = 0
	p.input.SetValue("")
	return p.input.Focus()
}

// Hide closes the panel.
func (p *SearchPanel) Hide() {
	p.visible = false
	p.input.Blur()
}

// IsVisible returns whether the panel is open.
func (p *SearchPanel) IsVisible() bool { return p.visible }

// SetHits replaces the result list.
func (p *SearchPanel) SetHits(hits []search.Hit) {
	p.hits = hits
	if p.cursor >= len(hits) {
		p.cursor = 0
	}
}

// SetSize updates the overlay dimensions.
func (p *SearchPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
	p.input.Width = min(width-10, 70)
}

// Update handles key input while the panel is open.
func (p *SearchPanel) Update(msg tea.Msg) tea.Cmd {
	if !p.visible {
		return nil
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}

	switch keyMsg.String() {
	case "esc":
		p.Hide()
		return nil

	case "up":
		if p.cursor > 0 {
			p.cursor--
		}
		return nil

	case "down":
		if p.cursor < len(p.hits)-1 {
			p.cursor++
		}
		return nil

	case "enter":
		if p.cursor < len(p.hits) {
			hit := p.hits[p.cursor]
			p.Hide()
			return func() tea.Msg { return SearchHitChosenMsg{Hit: hit} }
		}
		return nil
	}

	var cmd tea.Cmd
	p.input, cmd = p.input.Update(keyMsg)

	query := strings.TrimSpace(p.input.Value())
	if query == "" {
		// An empty query closes the result panel.
		p.hits = nil
		p.cursor = 0
		return cmd
	}

	return tea.Batch(cmd, func() tea.Msg { return SearchQueryMsg{Query: query} })
}

// View renders the search overlay.
func (p *SearchPanel) View(theme *styles.Theme) string {
	if !p.visible {
		return ""
	}

	var b strings.Builder
	b.WriteString(p.input.View())
	b.WriteString("\n\n")

	if len(p.hits) == 0 {
		if strings.TrimSpace(p.input.Value()) != "" {
			b.WriteString(theme.PanelMeta.Render("no matches"))
		}
	} else {
		maxRows := p.height/2 - 6
		if maxRows < 3 {
			maxRows = 3
		}
		for i, hit := range p.hits {
			if i >= maxRows {
				b.WriteString(theme.PanelMeta.Render(
					fmt.Sprintf("... %d more", len(p.hits)-maxRows)))
				break
			}

			text := util.TruncateWidth(util.CollapseWhitespace(hit.Text), p.input.Width-4)
			row := fmt.Sprintf("%s  %s", text,
				theme.PanelMeta.Render(hit.ConversationName))
			if i == p.cursor {
				b.WriteString(theme.PanelItemSelected.Render(row))
			} else {
				b.WriteString(theme.PanelItem.Render(row))
			}
			b.WriteString("\n")
		}
	}

	box := theme.PanelBox.Render(b.String())
	if p.width > 0 && p.height > 0 {
		return lipgloss.Place(p.width, p.height, lipgloss.Center, lipgloss.Center, box)
	}
	return box
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
