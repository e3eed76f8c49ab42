// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/morganforge/docchat-tui/internal/model"
)

// =============================================================================
// BUBBLE TEA MESSAGES
// =============================================================================

// Every message carries the conversation id it belongs to. A submission is
// never cancelled; when the user switches conversations mid-flight the
// result message still arrives and is routed to its own conversation.

// StagedMsg reports the outcome of the staging phase: uploads, the
// indexing wait, and the optimistic user-message append.
type StagedMsg struct {
	ConversationID string
	Message        *model.Message // nil on failure
	Err            error
}

// CompletionMsg reports the outcome of the completion phase.
type CompletionMsg struct {
	ConversationID string
	Message        *model.Message // nil on failure
	Err            error
}

// FileAttachedMsg reports an attempt to attach a local file to the next
// message.
type FileAttachedMsg struct {
	File model.PendingFile
	Err  error
}
