// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"
)

// Role values for Message.Role.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is one transcript entry. Messages are append-only: once added to
// a transcript they are never mutated. Array order is chronological order.
type Message struct {
	Text string `json:"text"`
	Role string `json:"role"` // "user" or "assistant"

	// Timestamp is a localized clock time for display only. It is not
	// sortable across days.
	Timestamp string `json:"timestamp"`

	// File names the attachment sent with a user message, nil otherwise.
	File *FileRef `json:"file"`

	// Citations accompany assistant messages produced from indexed
	// documents, nil otherwise.
	Citations []Citation `json:"citations,omitempty"`
}

// FileRef records the name of a file attached to a message.
type FileRef struct {
	Name string `json:"name"`
}

// Citation is a backend-supplied reference supporting part of an answer.
// The payload is opaque to the client; it is stored and displayed as-is.
type Citation struct {
	Page    int    `json:"page"`
	ChunkID string `json:"chunk_id"`
	Content string `json:"content"`
}

// NewUserMessage builds a user message stamped with the current clock time.
func NewUserMessage(text string, fileName string) Message {
	msg := Message{
		Text:      text,
		Role:      RoleUser,
		Timestamp: Clock(),
	}
	if fileName != "" {
		msg.File = &FileRef{Name: fileName}
	}
	return msg
}

// NewAssistantMessage builds an assistant message stamped with the current
// clock time.
func NewAssistantMessage(text string, citations []Citation) Message {
	return Message{
		Text:      text,
		Role:      RoleAssistant,
		Timestamp: Clock(),
		Citations: citations,
	}
}

// Clock returns the current wall time formatted the way transcripts show it.
func Clock() string {
	return time.Now().Format("3:04 PM")
}

// =============================================================================
// PENDING FILE
// =============================================================================

// PendingFile is a file the user attached but has not sent yet. It is held
// in session memory only; once uploaded, only its name survives (on the
// message and in the uploaded-file registry).
type PendingFile struct {
	Name string
	Data []byte
}
