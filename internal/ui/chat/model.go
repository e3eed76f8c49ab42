// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the conversation pane: the transcript viewport,
// the composer, and the inline error region.
package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/docchat-tui/internal/model"
	"github.com/morganforge/docchat-tui/internal/ui/styles"
)

// SubmitRequestedMsg asks the root model to run a submission with the
// composer's current contents. The composer is NOT cleared yet; it clears
// when the optimistic user message lands.
type SubmitRequestedMsg struct {
	ConversationID string
	Text           string
	Files          []model.PendingFile
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the conversation pane.
type Model struct {
	theme *styles.Theme

	viewport viewport.Model
	input    textinput.Model
	spin     spinner.Model

	conversationID   string
	conversationName string
	modelID          string
	messages         []model.Message

	pendingFiles []model.PendingFile
	attaching    bool // composer is capturing a file path
	inFlight     bool
	statusText   string // spinner caption while in flight
	errText      string // inline error region, empty when clear

	renderer *transcriptRenderer

	width  int
	height int

	focused bool
}

// New creates the conversation pane.
func New(theme *styles.Theme, modelID string) Model {
	input := textinput.New()
	input.Placeholder = "ask about your documents..."
	input.CharLimit = 4000
	input.Prompt = "> "

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = theme.Spinner

	return Model{
		theme:    theme,
		viewport: viewport.New(0, 0),
		input:    input,
		spin:     spin,
		modelID:  modelID,
		renderer: newTranscriptRenderer(theme),
	}
}

// Init starts the composer cursor blink.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// =============================================================================
// STATE MUTATORS (driven by the root model)
// =============================================================================

// SetConversation points the pane at a conversation and its transcript.
func (m *Model) SetConversation(id, name string, messages []model.Message) {
	m.conversationID = id
	m.conversationName = name
	m.messages = messages
	m.errText = ""
	m.refreshViewport()
	m.viewport.GotoBottom()
}

// ConversationID returns the conversation currently shown.
func (m *Model) ConversationID() string {
	return m.conversationID
}

// AppendMessage adds a message to the visible transcript.
func (m *Model) AppendMessage(msg model.Message) {
	m.messages = append(m.messages, msg)
	m.refreshViewport()
	m.viewport.GotoBottom()
}

// SetInFlight toggles the spinner. statusText captions what is happening
// ("uploading...", "thinking...").
func (m *Model) SetInFlight(inFlight bool, statusText string) tea.Cmd {
	m.inFlight = inFlight
	m.statusText = statusText
	if inFlight {
		return m.spin.Tick
	}
	return nil
}

// SetError fills the inline error region. Empty clears it.
func (m *Model) SetError(text string) {
	m.errText = text
}

// ClearComposer empties the input and the pending-file list. Called when
// the optimistic user message has been appended, regardless of what the
// backend does afterwards.
func (m *Model) ClearComposer() {
	m.input.SetValue("")
	m.pendingFiles = nil
	m.attaching = false
}

// AddPendingFile attaches a file to the next message. Re-attaching a name
// already pending replaces it.
func (m *Model) AddPendingFile(file model.PendingFile) {
	for i, pending := range m.pendingFiles {
		if pending.Name == file.Name {
			m.pendingFiles[i] = file
			return
		}
	}
	m.pendingFiles = append(m.pendingFiles, file)
}

// ScrollToMessage scrolls the viewport to a message index, used when a
// search hit is opened.
func (m *Model) ScrollToMessage(index int) {
	line := m.renderer.lineOffset(m.messages, index, m.viewport.Width)
	m.viewport.SetYOffset(line)
}

// Focus gives the composer keyboard focus.
func (m *Model) Focus() tea.Cmd {
	m.focused = true
	return m.input.Focus()
}

// Blur removes keyboard focus.
func (m *Model) Blur() {
	m.focused = false
	m.input.Blur()
}

// Focused returns whether the composer has focus.
func (m *Model) Focused() bool { return m.focused }

// SetSize lays the pane out for a new terminal size.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height

	chrome := 6 // header, composer, error region, borders
	m.viewport.Width = width
	m.viewport.Height = height - chrome
	if m.viewport.Height < 3 {
		m.viewport.Height = 3
	}
	m.input.Width = width - 8

	m.renderer.setWidth(width)
	m.refreshViewport()
}

// refreshViewport re-renders the transcript into the viewport.
func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.renderer.renderTranscript(m.messages))
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles input and async results for the pane.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}
		return m.updateKey(msg)

	case spinner.TickMsg:
		if m.inFlight {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			cmds = append(cmds, cmd)
		}

	case FileAttachedMsg:
		if msg.Err != nil {
			m.errText = msg.Err.Error()
		} else {
			m.AddPendingFile(msg.File)
			m.errText = ""
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// updateKey handles keystrokes while the pane has focus.
func (m Model) updateKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		if m.attaching {
			path := strings.TrimSpace(m.input.Value())
			m.attaching = false
			m.input.SetValue("")
			m.input.Placeholder = "ask about your documents..."
			if path == "" {
				return m, nil
			}
			return m, AttachFileCmd(path)
		}

		if m.inFlight {
			// One submission at a time per conversation pane.
			return m, nil
		}

		text := m.input.Value()
		files := make([]model.PendingFile, len(m.pendingFiles))
		copy(files, m.pendingFiles)
		conversationID := m.conversationID
		return m, func() tea.Msg {
			return SubmitRequestedMsg{
				ConversationID: conversationID,
				Text:           text,
				Files:          files,
			}
		}

	case "ctrl+o":
		m.attaching = true
		m.input.SetValue("")
		m.input.Placeholder = "path to file..."
		return m, nil

	case "esc":
		if m.attaching {
			m.attaching = false
			m.input.SetValue("")
			m.input.Placeholder = "ask about your documents..."
			return m, nil
		}
		m.errText = ""
		return m, nil

	case "ctrl+x":
		if len(m.pendingFiles) > 0 {
			m.pendingFiles = m.pendingFiles[:len(m.pendingFiles)-1]
		}
		return m, nil

	case "pgup", "pgdown", "ctrl+u", "ctrl+b":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}
