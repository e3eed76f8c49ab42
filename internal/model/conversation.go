// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"github.com/google/uuid"
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is one entry in the conversation index. The transcript is
// stored separately, keyed by ID.
type Conversation struct {
	// ID is an opaque, client-generated identifier. It never changes.
	ID string `json:"id"`

	// Name is the display name. It defaults to the ID and can be renamed.
	Name string `json:"name"`
}

// NewConversation creates a conversation with a generated ID and the ID as
// its initial name.
func NewConversation() Conversation {
	id := uuid.NewString()
	return Conversation{ID: id, Name: id}
}

// Rename sets a new display name. A blank name keeps the old one.
func (c *Conversation) Rename(name string) {
	if name == "" {
		return
	}
	c.Name = name
}
