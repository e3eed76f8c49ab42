// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/docchat-tui/internal/model"
	"github.com/morganforge/docchat-tui/internal/ui/styles"
	"github.com/morganforge/docchat-tui/internal/util"
)

// =============================================================================
// SIDEBAR MESSAGES
// =============================================================================

// ConversationSelectedMsg is emitted when the user switches conversations.
type ConversationSelectedMsg struct {
	ID string
}

// ConversationCreatedMsg is emitted when the user starts a new conversation.
type ConversationCreatedMsg struct {
	Conversation model.Conversation
}

// ConversationRenamedMsg is emitted when an inline rename is confirmed.
type ConversationRenamedMsg struct {
	ID   string
	Name string
}

// ConversationDeletedMsg is emitted when the user deletes a conversation.
type ConversationDeletedMsg struct {
	ID string
}

// =============================================================================
// SIDEBAR
// =============================================================================

// Sidebar is the conversation list pane. It owns selection and the inline
// rename editor; persistence is the root model's job, driven by the
// messages above.
type Sidebar struct {
	conversations []model.Conversation
	cursor        int

	editing     bool
	renameInput textinput.Model

	focused bool
	width   int
	height  int
}

// NewSidebar creates an empty sidebar.
func NewSidebar() Sidebar {
	input := textinput.New()
	input.CharLimit = 64
	input.Prompt = ""

	return Sidebar{renameInput: input}
}

// SetConversations replaces the list, keeping the cursor on the same
// conversation when it still exists.
func (s *Sidebar) SetConversations(conversations []model.Conversation) {
	selectedID := s.SelectedID()
	s.conversations = conversations

	s.cursor = 0
	for i, conv := range conversations {
		if conv.ID == selectedID {
			s.cursor = i
			break
		}
	}
}

// Conversations returns the current list.
func (s *Sidebar) Conversations() []model.Conversation {
	return s.conversations
}

// SelectedID returns the id under the cursor, empty when the list is empty.
func (s *Sidebar) SelectedID() string {
	if s.cursor < 0 || s.cursor >= len(s.conversations) {
		return ""
	}
	return s.conversations[s.cursor].ID
}

// Select moves the cursor to the conversation with the given id.
func (s *Sidebar) Select(id string) {
	for i, conv := range s.conversations {
		if conv.ID == id {
			s.cursor = i
			return
		}
	}
}

// Focus gives the sidebar keyboard focus.
func (s *Sidebar) Focus() { s.focused = true }

// Blur removes keyboard focus and cancels any in-progress rename.
func (s *Sidebar) Blur() {
	s.focused = false
	s.editing = false
	s.renameInput.Blur()
}

// Focused returns whether the sidebar has keyboard focus.
func (s *Sidebar) Focused() bool { return s.focused }

// Editing returns whether an inline rename is in progress.
func (s *Sidebar) Editing() bool { return s.editing }

// SetSize updates the pane dimensions.
func (s *Sidebar) SetSize(width, height int) {
	s.width = width
	s.height = height
	s.renameInput.Width = width - 6
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles key input while the sidebar has focus.
func (s *Sidebar) Update(msg tea.Msg) tea.Cmd {
	if !s.focused {
		return nil
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}

	if s.editing {
		return s.updateRename(keyMsg)
	}

	switch keyMsg.String() {
	case "up", "k":
		if s.cursor > 0 {
			s.cursor--
			return s.emitSelected()
		}

	case "down", "j":
		if s.cursor < len(s.conversations)-1 {
			s.cursor++
			return s.emitSelected()
		}

	case "ctrl+n", "n":
		conv := model.NewConversation()
		s.conversations = append(s.conversations, conv)
		s.cursor = len(s.conversations) - 1
		return func() tea.Msg { return ConversationCreatedMsg{Conversation: conv} }

	case "f2", "r":
		if s.cursor < len(s.conversations) {
			s.editing = true
			s.renameInput.SetValue(s.conversations[s.cursor].Name)
			s.renameInput.CursorEnd()
			s.renameInput.Focus()
		}

	case "ctrl+d", "x":
		if s.cursor < len(s.conversations) {
			id := s.conversations[s.cursor].ID
			s.conversations = append(s.conversations[:s.cursor], s.conversations[s.cursor+1:]...)
			if s.cursor >= len(s.conversations) && s.cursor > 0 {
				s.cursor--
			}
			return tea.Batch(
				func() tea.Msg { return ConversationDeletedMsg{ID: id} },
				s.emitSelected(),
			)
		}
	}
	return nil
}

// updateRename handles key input while the rename editor is open. Enter
// saves, Esc cancels, a blank name keeps the old one.
func (s *Sidebar) updateRename(keyMsg tea.KeyMsg) tea.Cmd {
	switch keyMsg.String() {
	case "enter":
		s.editing = false
		s.renameInput.Blur()

		name := strings.TrimSpace(s.renameInput.Value())
		if name == "" || s.cursor >= len(s.conversations) {
			return nil
		}
		s.conversations[s.cursor].Rename(name)
		id := s.conversations[s.cursor].ID
		return func() tea.Msg { return ConversationRenamedMsg{ID: id, Name: name} }

	case "esc":
		s.editing = false
		s.renameInput.Blur()
		return nil
	}

	var cmd tea.Cmd
	s.renameInput, cmd = s.renameInput.Update(keyMsg)
	return cmd
}

// emitSelected emits the current selection.
func (s *Sidebar) emitSelected() tea.Cmd {
	id := s.SelectedID()
	if id == "" {
		return nil
	}
	return func() tea.Msg { return ConversationSelectedMsg{ID: id} }
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the conversation list.
func (s *Sidebar) View(theme *styles.Theme) string {
	var b strings.Builder
	b.WriteString(theme.SidebarTitle.Render("Conversations"))
	b.WriteString("\n")

	if len(s.conversations) == 0 {
		b.WriteString(theme.SidebarHint.Render("n: new chat"))
		return theme.Sidebar.Width(s.width).Height(s.height).Render(b.String())
	}

	maxName := s.width - 4
	for i, conv := range s.conversations {
		if s.editing && i == s.cursor {
			b.WriteString(theme.SidebarItemEditing.Render(s.renameInput.View()))
			b.WriteString("\n")
			continue
		}

		name := util.TruncateWidth(conv.Name, maxName)
		if i == s.cursor {
			b.WriteString(theme.SidebarItemSelected.Render(name))
		} else {
			b.WriteString(theme.SidebarItem.Render(name))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(theme.SidebarHint.Render("n new  r rename  x delete"))

	return theme.Sidebar.Width(s.width).Height(s.height).Render(b.String())
}
