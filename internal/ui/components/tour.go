// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/morganforge/docchat-tui/internal/ui/styles"
)

// =============================================================================
// PRODUCT TOUR
// =============================================================================

// TourStep is one page of the first-run product tour.
type TourStep struct {
	Title   string
	Message string
	Action  string
}

// tourSteps walks a new user through the document chat workflow.
var tourSteps = []TourStep{
	{
		Title:   "Welcome to docchat",
		Message: "Chat with an assistant over your own documents.\n\nUpload a file, ask questions, and answers come back with citations into the source.",
		Action:  "Press Enter to continue",
	},
	{
		Title:   "Conversations",
		Message: "Each conversation keeps its own transcript and its own documents.\n\nCtrl+N starts a new conversation, F2 renames it, Ctrl+D deletes it.",
		Action:  "Press Enter to continue",
	},
	{
		Title:   "Attaching documents",
		Message: "Ctrl+O attaches a file to your next message.\n\nThe file is uploaded and indexed before the message is sent; a prompt is required whenever files are attached.",
		Action:  "Press Enter to continue",
	},
	{
		Title:   "Finding things later",
		Message: "Ctrl+F searches every transcript as you type.\n\nSelecting a result jumps straight to the matching message.",
		Action:  "Press Enter or Esc to start chatting",
	},
}

// TourDoneMsg is emitted when the tour finishes or is skipped. Completed is
// false for a skip; the completion flag is persisted either way so the tour
// does not reappear.
type TourDoneMsg struct {
	Completed bool
}

// TourOverlay is the first-run tour overlay.
type TourOverlay struct {
	visible     bool
	currentStep int

	width  int
	height int
}

// NewTourOverlay creates a hidden tour overlay.
func NewTourOverlay() TourOverlay {
	return TourOverlay{}
}

// Show displays the tour from the first step.
func (t *TourOverlay) Show() {
	t.visible = true
	t.currentStep = 0
}

// Hide hides the tour overlay.
func (t *TourOverlay) Hide() {
	t.visible = false
}

// IsVisible returns whether the tour is showing.
func (t *TourOverlay) IsVisible() bool {
	return t.visible
}

// SetSize updates the overlay dimensions.
func (t *TourOverlay) SetSize(width, height int) {
	t.width = width
	t.height = height
}

// Update handles key input while the tour is visible. It returns a
// TourDoneMsg command when the tour ends.
func (t *TourOverlay) Update(msg tea.Msg) tea.Cmd {
	if !t.visible {
		return nil
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}

	switch keyMsg.String() {
	case "enter", " ", "right":
		if t.currentStep >= len(tourSteps)-1 {
			t.visible = false
			return func() tea.Msg { return TourDoneMsg{Completed: true} }
		}
		t.currentStep++

	case "left":
		if t.currentStep > 0 {
			t.currentStep--
		}

	case "esc", "q":
		t.visible = false
		return func() tea.Msg { return TourDoneMsg{Completed: false} }
	}
	return nil
}

// View renders the tour centered on the screen.
func (t *TourOverlay) View(theme *styles.Theme) string {
	if !t.visible || t.currentStep >= len(tourSteps) {
		return ""
	}

	step := tourSteps[t.currentStep]

	var b strings.Builder
	b.WriteString(theme.TourTitle.Render(step.Title))
	b.WriteString("\n\n")
	b.WriteString(theme.TourBody.Render(step.Message))
	b.WriteString("\n\n")
	b.WriteString(theme.ShortcutDesc.Render(step.Action))
	b.WriteString("\n")
	b.WriteString(theme.TourProgress.Render(
		fmt.Sprintf("step %d of %d  (Esc to skip)", t.currentStep+1, len(tourSteps))))

	box := theme.TourBox.Render(b.String())
	if t.width > 0 && t.height > 0 {
		return lipgloss.Place(t.width, t.height, lipgloss.Center, lipgloss.Center, box)
	}
	return box
}
