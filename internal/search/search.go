// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package search scans persisted transcripts for matching messages.
//
// The scan is linear and runs on every keystroke. At the scale of one
// user's local conversations this is cheap; an inverted index would only
// pay off far beyond that.
package search

import (
	"strings"

	"github.com/morganforge/docchat-tui/internal/storage"
)

// Hit is one matching message.
type Hit struct {
	ConversationID   string
	ConversationName string

	// MessageIndex is the position of the match in its transcript, so the
	// UI can scroll straight to it.
	MessageIndex int

	Text      string
	Timestamp string
	Role      string
}

// Searcher finds messages across all persisted transcripts.
type Searcher struct {
	store *storage.ChatStore
}

// NewSearcher creates a searcher over the given store.
func NewSearcher(store *storage.ChatStore) *Searcher {
	return &Searcher{store: store}
}

// Search returns every message whose text contains the query,
// case-insensitively. Results keep encounter order: conversation list
// order, then message order. An empty or whitespace query yields no hits.
func (s *Searcher) Search(query string) ([]Hit, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, nil
	}

	conversations, err := s.store.ListConversations()
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for _, conv := range conversations {
		messages, err := s.store.Transcript(conv.ID)
		if err != nil {
			return nil, err
		}
		for i, msg := range messages {
			if !strings.Contains(strings.ToLower(msg.Text), query) {
				continue
			}
			hits = append(hits, Hit{
				ConversationID:   conv.ID,
				ConversationName: conv.Name,
				MessageIndex:     i,
				Text:             msg.Text,
				Timestamp:        msg.Timestamp,
				Role:             msg.Role,
			})
		}
	}
	return hits, nil
}
