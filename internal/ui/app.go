// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui composes the docchat TUI: sidebar, conversation pane, search
// overlay, product tour, and toasts, over per-conversation sessions.
package ui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/morganforge/docchat-tui/internal/backend"
	"github.com/morganforge/docchat-tui/internal/config"
	"github.com/morganforge/docchat-tui/internal/model"
	"github.com/morganforge/docchat-tui/internal/search"
	"github.com/morganforge/docchat-tui/internal/session"
	"github.com/morganforge/docchat-tui/internal/storage"
	"github.com/morganforge/docchat-tui/internal/ui/chat"
	"github.com/morganforge/docchat-tui/internal/ui/components"
	"github.com/morganforge/docchat-tui/internal/ui/styles"
)

// =============================================================================
// FOCUS
// =============================================================================

// focusArea is which pane receives keystrokes.
type focusArea int

const (
	focusChat focusArea = iota
	focusSidebar
)

// storageChangedMsg reports an external write to the state directory.
type storageChangedMsg struct {
	key string
}

// =============================================================================
// APP MODEL
// =============================================================================

// App is the root Bubble Tea model.
type App struct {
	theme *styles.Theme
	cfg   *config.Config

	store    *storage.ChatStore
	client   *backend.Client
	searcher *search.Searcher
	watcher  *storage.Watcher // nil when external watching is off

	sidebar     components.Sidebar
	chatPane    chat.Model
	searchPanel components.SearchPanel
	tour        components.TourOverlay
	toasts      *components.ToastManager

	// sessions holds one session per conversation. An in-flight
	// submission keeps running in its own session when the user switches
	// away; its result lands in that conversation's transcript.
	sessions map[string]*session.Session

	focus  focusArea
	width  int
	height int

	// pendingScroll is a message index to scroll to once the selected
	// conversation is shown, set when a search hit is opened.
	pendingScroll int
}

// NewApp assembles the application model. The caller owns the watcher's
// lifecycle via App.Close.
func NewApp(cfg *config.Config) (*App, error) {
	var kv *storage.FileKV
	var err error
	if cfg.Storage.StateDir != "" {
		kv, err = storage.NewFileKVWithDir(cfg.Storage.StateDir)
	} else {
		kv, err = storage.NewFileKV()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open state directory: %w", err)
	}

	store := storage.NewChatStore(kv)

	var watcher *storage.Watcher
	if cfg.Storage.WatchExternal {
		watcher, err = storage.NewWatcher(kv, 300*time.Millisecond)
		if err == nil {
			err = watcher.Watch()
		}
		if err != nil {
			// Watching is best-effort; the app still works without it.
			watcher = nil
		}
	}

	theme := styles.NewTheme()

	app := &App{
		theme:         theme,
		cfg:           cfg,
		store:         store,
		client:        backend.New(cfg.Backend.BaseURL),
		searcher:      search.NewSearcher(store),
		watcher:       watcher,
		sidebar:       components.NewSidebar(),
		chatPane:      chat.New(theme, cfg.Backend.Model),
		searchPanel:   components.NewSearchPanel(),
		tour:          components.NewTourOverlay(),
		toasts:        components.NewToastManager(),
		sessions:      make(map[string]*session.Session),
		pendingScroll: -1,
	}

	conversations, err := store.ListConversations()
	if err != nil {
		return nil, err
	}
	if len(conversations) == 0 {
		conversations = []model.Conversation{model.NewConversation()}
		if err := store.SaveConversations(conversations); err != nil {
			return nil, err
		}
	}
	app.sidebar.SetConversations(conversations)

	return app, nil
}

// Close releases background resources.
func (a *App) Close() {
	if a.watcher != nil {
		a.watcher.Close()
	}
}

// Init opens the first conversation and, on first run, the product tour.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.chatPane.Init(), a.openConversation(a.sidebar.SelectedID())}
	cmds = append(cmds, a.chatPane.Focus())

	if done, err := a.store.TourCompleted(); err == nil && !done {
		a.tour.Show()
	}

	if a.watcher != nil {
		cmds = append(cmds, waitForStorageChange(a.watcher.Changes()))
	}
	return tea.Batch(cmds...)
}

// waitForStorageChange blocks on the watcher channel and converts one
// change into a message, re-arming afterwards.
func waitForStorageChange(changes <-chan string) tea.Cmd {
	return func() tea.Msg {
		key, ok := <-changes
		if !ok {
			return nil
		}
		return storageChangedMsg{key: key}
	}
}

// =============================================================================
// SESSIONS
// =============================================================================

// sessionFor returns the conversation's session, creating it on first use.
func (a *App) sessionFor(conversationID string) (*session.Session, error) {
	if sess, ok := a.sessions[conversationID]; ok {
		return sess, nil
	}
	sess, err := session.New(a.store, a.client, conversationID, a.cfg.Backend.Model)
	if err != nil {
		return nil, err
	}
	sess.WithPolling(
		time.Duration(a.cfg.Backend.PollIntervalSecs)*time.Second,
		a.cfg.Backend.PollAttempts,
	)
	a.sessions[conversationID] = sess
	return sess, nil
}

// openConversation points the chat pane at a conversation.
func (a *App) openConversation(conversationID string) tea.Cmd {
	if conversationID == "" {
		return nil
	}
	sess, err := a.sessionFor(conversationID)
	if err != nil {
		a.toasts.Add(err.Error(), components.ToastError)
		return components.ToastTickCmd()
	}

	name := conversationID
	for _, conv := range a.sidebar.Conversations() {
		if conv.ID == conversationID {
			name = conv.Name
			break
		}
	}

	a.chatPane.SetConversation(conversationID, name, sess.Transcript())
	if a.pendingScroll >= 0 {
		a.chatPane.ScrollToMessage(a.pendingScroll)
		a.pendingScroll = -1
	}
	return nil
}

// =============================================================================
// UPDATE
// =============================================================================

// Update routes messages to overlays, panes, and sessions.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.layout(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.updateKey(msg)

	case components.TourDoneMsg:
		if err := a.store.SetTourCompleted(true); err != nil {
			a.toasts.Add(err.Error(), components.ToastError)
			return a, components.ToastTickCmd()
		}
		return a, nil

	case components.ConversationCreatedMsg:
		if err := a.store.SaveConversations(a.sidebar.Conversations()); err != nil {
			a.toasts.Add(err.Error(), components.ToastError)
			return a, components.ToastTickCmd()
		}
		return a, a.openConversation(msg.Conversation.ID)

	case components.ConversationSelectedMsg:
		return a, a.openConversation(msg.ID)

	case components.ConversationRenamedMsg:
		if err := a.store.SaveConversations(a.sidebar.Conversations()); err != nil {
			a.toasts.Add(err.Error(), components.ToastError)
			return a, components.ToastTickCmd()
		}
		return a, a.openConversation(msg.ID)

	case components.ConversationDeletedMsg:
		if err := a.store.DeleteConversation(msg.ID); err != nil {
			a.toasts.Add(err.Error(), components.ToastError)
			return a, components.ToastTickCmd()
		}
		delete(a.sessions, msg.ID)
		if a.sidebar.SelectedID() == "" {
			conv := model.NewConversation()
			a.sidebar.SetConversations([]model.Conversation{conv})
			if err := a.store.SaveConversations(a.sidebar.Conversations()); err != nil {
				a.toasts.Add(err.Error(), components.ToastError)
				return a, components.ToastTickCmd()
			}
		}
		return a, a.openConversation(a.sidebar.SelectedID())

	case chat.SubmitRequestedMsg:
		return a.handleSubmit(msg)

	case chat.StagedMsg:
		return a.handleStaged(msg)

	case chat.CompletionMsg:
		return a.handleCompletion(msg)

	case components.SearchQueryMsg:
		hits, err := a.searcher.Search(msg.Query)
		if err != nil {
			a.toasts.Add(err.Error(), components.ToastError)
			return a, components.ToastTickCmd()
		}
		a.searchPanel.SetHits(hits)
		return a, nil

	case components.SearchHitChosenMsg:
		a.sidebar.Select(msg.Hit.ConversationID)
		a.pendingScroll = msg.Hit.MessageIndex
		return a, a.openConversation(msg.Hit.ConversationID)

	case components.ToastTickMsg:
		a.toasts.Tick()
		if a.toasts.HasToasts() {
			return a, components.ToastTickCmd()
		}
		return a, nil

	case storageChangedMsg:
		cmds = append(cmds, a.handleStorageChange(msg.key))
		cmds = append(cmds, waitForStorageChange(a.watcher.Changes()))
		return a, tea.Batch(cmds...)
	}

	// Everything else (spinner ticks, viewport motion, attach results)
	// flows into the chat pane.
	var cmd tea.Cmd
	a.chatPane, cmd = a.chatPane.Update(msg)
	return a, cmd
}

// updateKey routes keystrokes: overlays first, then global keys, then the
// focused pane.
func (a *App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a, tea.Quit
	}

	if a.tour.IsVisible() {
		return a, a.tour.Update(msg)
	}
	if a.searchPanel.IsVisible() {
		return a, a.searchPanel.Update(msg)
	}

	switch msg.String() {
	case "ctrl+f":
		return a, a.searchPanel.Show()

	case "tab":
		if a.focus == focusChat {
			a.focus = focusSidebar
			a.chatPane.Blur()
			a.sidebar.Focus()
			return a, nil
		}
		a.focus = focusChat
		a.sidebar.Blur()
		return a, a.chatPane.Focus()
	}

	if a.focus == focusSidebar {
		return a, a.sidebar.Update(msg)
	}

	var cmd tea.Cmd
	a.chatPane, cmd = a.chatPane.Update(msg)
	return a, cmd
}

// handleSubmit starts the staging phase for a submission.
func (a *App) handleSubmit(msg chat.SubmitRequestedMsg) (tea.Model, tea.Cmd) {
	sess, err := a.sessionFor(msg.ConversationID)
	if err != nil {
		a.toasts.Add(err.Error(), components.ToastError)
		return a, components.ToastTickCmd()
	}

	status := "sending..."
	if len(msg.Files) > 0 {
		status = "uploading and indexing..."
	}

	cmds := []tea.Cmd{chat.StageCmd(sess, msg.Text, msg.Files)}
	if spin := a.chatPane.SetInFlight(true, status); spin != nil {
		cmds = append(cmds, spin)
	}
	a.chatPane.SetError("")
	return a, tea.Batch(cmds...)
}

// handleStaged reacts to the staging outcome. The completion request is
// issued even when the user has switched away; the session is bound to
// its conversation.
func (a *App) handleStaged(msg chat.StagedMsg) (tea.Model, tea.Cmd) {
	visible := msg.ConversationID == a.chatPane.ConversationID()

	if msg.Err != nil {
		if visible {
			a.chatPane.SetInFlight(false, "")
		}
		switch msg.Err {
		case session.ErrNothingToSend:
			return a, nil
		case session.ErrPromptRequired:
			// Validation feedback is transient; the composer keeps its
			// attachments so the user can add a prompt and resend.
			a.toasts.Add("Add a prompt before sending attached files.", components.ToastWarning)
			return a, components.ToastTickCmd()
		default:
			if visible {
				a.chatPane.SetError(msg.Err.Error())
			}
			return a, nil
		}
	}

	sess, err := a.sessionFor(msg.ConversationID)
	if err != nil {
		a.toasts.Add(err.Error(), components.ToastError)
		return a, components.ToastTickCmd()
	}

	cmds := []tea.Cmd{chat.CompleteCmd(sess)}
	if visible {
		a.chatPane.AppendMessage(*msg.Message)
		a.chatPane.ClearComposer()
		if spin := a.chatPane.SetInFlight(true, "thinking..."); spin != nil {
			cmds = append(cmds, spin)
		}
	}
	return a, tea.Batch(cmds...)
}

// handleCompletion reacts to the completion outcome.
func (a *App) handleCompletion(msg chat.CompletionMsg) (tea.Model, tea.Cmd) {
	visible := msg.ConversationID == a.chatPane.ConversationID()
	if !visible {
		return a, nil
	}

	a.chatPane.SetInFlight(false, "")
	if msg.Err != nil {
		a.chatPane.SetError(msg.Err.Error())
		return a, nil
	}

	a.chatPane.AppendMessage(*msg.Message)
	return a, nil
}

// handleStorageChange reloads state another process wrote. Writes race
// last-writer-wins; the reload at least keeps this instance's view fresh.
func (a *App) handleStorageChange(key string) tea.Cmd {
	if key == "chat-list" {
		conversations, err := a.store.ListConversations()
		if err != nil {
			return nil
		}
		a.sidebar.SetConversations(conversations)
		return nil
	}

	// A transcript changed. If it is the visible one and nothing is in
	// flight, rebuild its session from the store.
	visibleID := a.chatPane.ConversationID()
	if key != "chat-"+visibleID {
		return nil
	}
	if sess, ok := a.sessions[visibleID]; ok && sess.State() != session.Idle && sess.State() != session.Errored {
		return nil
	}
	delete(a.sessions, visibleID)
	return a.openConversation(visibleID)
}

// =============================================================================
// LAYOUT AND VIEW
// =============================================================================

// sidebarWidth returns the sidebar's column budget, zero when hidden.
func (a *App) sidebarWidth() int {
	if a.theme.GetLayoutMode() == styles.LayoutNarrow {
		return 0
	}
	return 28
}

// layout distributes a new terminal size across panes and overlays.
func (a *App) layout(width, height int) {
	a.width = width
	a.height = height
	a.theme.SetSize(width, height)

	sidebarWidth := a.sidebarWidth()
	a.sidebar.SetSize(sidebarWidth, height-2)
	a.chatPane.SetSize(width-sidebarWidth, height)
	a.searchPanel.SetSize(width, height)
	a.tour.SetSize(width, height)
}

// View renders the application.
func (a *App) View() string {
	if a.tour.IsVisible() {
		return a.tour.View(a.theme)
	}
	if a.searchPanel.IsVisible() {
		return a.searchPanel.View(a.theme)
	}

	var main string
	if a.sidebarWidth() > 0 {
		main = lipgloss.JoinHorizontal(lipgloss.Top,
			a.sidebar.View(a.theme),
			a.chatPane.View(),
		)
	} else {
		main = a.chatPane.View()
	}

	if a.toasts.HasToasts() {
		main += "\n" + components.RenderToastStack(a.theme, a.toasts.Active(), 0, 0)
	}
	return main
}
