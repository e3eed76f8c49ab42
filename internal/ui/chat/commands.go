// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/docchat-tui/internal/model"
	"github.com/morganforge/docchat-tui/internal/session"
)

// =============================================================================
// COMMANDS
// =============================================================================

// maxAttachmentSize bounds the file read so attaching the wrong path does
// not balloon memory. The backend enforces its own limit server-side.
const maxAttachmentSize = 50 * 1024 * 1024

// StageCmd runs the staging phase of a submission off the UI goroutine.
func StageCmd(sess *session.Session, text string, files []model.PendingFile) tea.Cmd {
	conversationID := sess.ConversationID()
	return func() tea.Msg {
		msg, err := sess.Stage(context.Background(), text, files)
		return StagedMsg{ConversationID: conversationID, Message: msg, Err: err}
	}
}

// CompleteCmd runs the completion phase of a submission.
func CompleteCmd(sess *session.Session) tea.Cmd {
	conversationID := sess.ConversationID()
	return func() tea.Msg {
		msg, err := sess.Complete(context.Background())
		return CompletionMsg{ConversationID: conversationID, Message: msg, Err: err}
	}
}

// AttachFileCmd reads a local file into a pending attachment.
func AttachFileCmd(path string) tea.Cmd {
	return func() tea.Msg {
		info, err := os.Stat(path)
		if err != nil {
			return FileAttachedMsg{Err: fmt.Errorf("cannot attach %s: %w", path, err)}
		}
		if info.IsDir() {
			return FileAttachedMsg{Err: fmt.Errorf("cannot attach %s: is a directory", path)}
		}
		if info.Size() > maxAttachmentSize {
			return FileAttachedMsg{Err: fmt.Errorf("cannot attach %s: larger than %d bytes", path, maxAttachmentSize)}
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return FileAttachedMsg{Err: fmt.Errorf("cannot attach %s: %w", path, err)}
		}

		return FileAttachedMsg{File: model.PendingFile{
			Name: filepath.Base(path),
			Data: data,
		}}
	}
}
