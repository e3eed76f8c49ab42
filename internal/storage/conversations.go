// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/morganforge/docchat-tui/internal/model"
)

// =============================================================================
// STORE KEYS
// =============================================================================

// Key layout, kept compatible with the web client's local storage:
//
//	chat-list                conversation index (JSON array of Conversation)
//	chat-{id}                transcript for one conversation (JSON array of Message)
//	product-tour-completed   marker; presence means the tour was finished
const (
	keyChatList      = "chat-list"
	keyChatPrefix    = "chat-"
	keyTourCompleted = "product-tour-completed"
)

// transcriptKey returns the KV key holding a conversation's transcript.
func transcriptKey(conversationID string) string {
	return keyChatPrefix + conversationID
}

// =============================================================================
// STORE ERRORS
// =============================================================================

// StoreError wraps a storage failure with the operation and key involved.
type StoreError struct {
	Op  string // operation, e.g. "list", "save-transcript"
	Key string // KV key involved
	Err error
}

func (e *StoreError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s (%s): %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// storeErr builds a StoreError.
func storeErr(op, key string, err error) error {
	return &StoreError{Op: op, Key: key, Err: err}
}

// ErrCorruptData marks a value that exists but does not parse as the
// expected JSON shape. Callers can errors.Is against it to distinguish
// corruption from I/O failures.
var ErrCorruptData = errors.New("corrupt stored data")

// =============================================================================
// CHAT STORE
// =============================================================================

// ChatStore persists the conversation index and per-conversation transcripts
// over a KV. It is not safe for concurrent use; the UI event loop is the
// single caller.
type ChatStore struct {
	kv KV
}

// NewChatStore creates a ChatStore over the given KV.
func NewChatStore(kv KV) *ChatStore {
	return &ChatStore{kv: kv}
}

// ListConversations returns the conversation index in stored order.
// A missing index means no conversations yet and returns an empty slice.
func (s *ChatStore) ListConversations() ([]model.Conversation, error) {
	data, ok, err := s.kv.Get(keyChatList)
	if err != nil {
		return nil, storeErr("list", keyChatList, err)
	}
	if !ok {
		return []model.Conversation{}, nil
	}

	var conversations []model.Conversation
	if err := json.Unmarshal(data, &conversations); err != nil {
		return nil, storeErr("list", keyChatList, fmt.Errorf("%w: %v", ErrCorruptData, err))
	}
	if conversations == nil {
		conversations = []model.Conversation{}
	}
	return conversations, nil
}

// SaveConversations replaces the conversation index. The caller owns
// ordering; the index is written exactly as given.
func (s *ChatStore) SaveConversations(conversations []model.Conversation) error {
	if conversations == nil {
		conversations = []model.Conversation{}
	}
	data, err := json.Marshal(conversations)
	if err != nil {
		return storeErr("save-list", keyChatList, err)
	}
	if err := s.kv.Set(keyChatList, data); err != nil {
		return storeErr("save-list", keyChatList, err)
	}
	return nil
}

// Transcript returns the messages of one conversation in chronological
// order. A missing transcript returns an empty slice; a conversation with
// no messages yet and a deleted conversation look the same.
func (s *ChatStore) Transcript(conversationID string) ([]model.Message, error) {
	key := transcriptKey(conversationID)
	data, ok, err := s.kv.Get(key)
	if err != nil {
		return nil, storeErr("transcript", key, err)
	}
	if !ok {
		return []model.Message{}, nil
	}

	var messages []model.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, storeErr("transcript", key, fmt.Errorf("%w: %v", ErrCorruptData, err))
	}
	if messages == nil {
		messages = []model.Message{}
	}
	return messages, nil
}

// SaveTranscript replaces a conversation's transcript with the given
// messages. Appending is read-modify-write at the caller.
func (s *ChatStore) SaveTranscript(conversationID string, messages []model.Message) error {
	key := transcriptKey(conversationID)
	if messages == nil {
		messages = []model.Message{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return storeErr("save-transcript", key, err)
	}
	if err := s.kv.Set(key, data); err != nil {
		return storeErr("save-transcript", key, err)
	}
	return nil
}

// AppendMessages appends messages to a conversation's transcript.
func (s *ChatStore) AppendMessages(conversationID string, messages ...model.Message) error {
	existing, err := s.Transcript(conversationID)
	if err != nil {
		return err
	}
	return s.SaveTranscript(conversationID, append(existing, messages...))
}

// DeleteTranscript removes a conversation's transcript. Deleting a missing
// transcript is not an error.
func (s *ChatStore) DeleteTranscript(conversationID string) error {
	key := transcriptKey(conversationID)
	if err := s.kv.Delete(key); err != nil {
		return storeErr("delete-transcript", key, err)
	}
	return nil
}

// DeleteConversation removes a conversation from the index and deletes its
// transcript. Removing an ID not present in the index is not an error; the
// transcript delete still runs so an orphaned transcript gets cleaned up.
func (s *ChatStore) DeleteConversation(conversationID string) error {
	conversations, err := s.ListConversations()
	if err != nil {
		return err
	}

	kept := conversations[:0]
	for _, c := range conversations {
		if c.ID != conversationID {
			kept = append(kept, c)
		}
	}
	if err := s.SaveConversations(kept); err != nil {
		return err
	}
	return s.DeleteTranscript(conversationID)
}

// TourCompleted reports whether the product tour has been completed.
// Presence of the marker key is the flag; the stored value is ignored.
func (s *ChatStore) TourCompleted() (bool, error) {
	_, ok, err := s.kv.Get(keyTourCompleted)
	if err != nil {
		return false, storeErr("tour", keyTourCompleted, err)
	}
	return ok, nil
}

// SetTourCompleted records or clears the product tour marker.
func (s *ChatStore) SetTourCompleted(completed bool) error {
	if !completed {
		if err := s.kv.Delete(keyTourCompleted); err != nil {
			return storeErr("tour", keyTourCompleted, err)
		}
		return nil
	}
	if err := s.kv.Set(keyTourCompleted, []byte("true")); err != nil {
		return storeErr("tour", keyTourCompleted, err)
	}
	return nil
}
