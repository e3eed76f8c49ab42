// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"testing"

	"github.com/morganforge/docchat-tui/internal/model"
)

// =============================================================================
// CHAT STORE TESTS
// =============================================================================

func TestChatStore_ListEmpty(t *testing.T) {
	store := NewChatStore(NewMemKV())

	conversations, err := store.ListConversations()
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if conversations == nil {
		t.Error("Expected empty slice, got nil")
	}
	if len(conversations) != 0 {
		t.Errorf("Conversation count = %d, want 0", len(conversations))
	}
}

func TestChatStore_SaveAndListConversations(t *testing.T) {
	store := NewChatStore(NewMemKV())

	first := model.NewConversation()
	second := model.NewConversation()
	second.Rename("invoices")

	if err := store.SaveConversations([]model.Conversation{first, second}); err != nil {
		t.Fatalf("SaveConversations failed: %v", err)
	}

	listed, err := store.ListConversations()
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("Conversation count = %d, want 2", len(listed))
	}
	if listed[0].ID != first.ID {
		t.Errorf("First ID = %q, want %q", listed[0].ID, first.ID)
	}
	if listed[1].Name != "invoices" {
		t.Errorf("Second Name = %q, want %q", listed[1].Name, "invoices")
	}
}

func TestChatStore_TranscriptRoundTrip(t *testing.T) {
	store := NewChatStore(NewMemKV())
	conv := model.NewConversation()

	messages := []model.Message{
		model.NewUserMessage("summarize this", "report.pdf"),
		model.NewAssistantMessage("Here is a summary.", []model.Citation{
			{Page: 3, ChunkID: "c-17", Content: "Revenue grew 12%."},
		}),
	}
	if err := store.SaveTranscript(conv.ID, messages); err != nil {
		t.Fatalf("SaveTranscript failed: %v", err)
	}

	loaded, err := store.Transcript(conv.ID)
	if err != nil {
		t.Fatalf("Transcript failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Message count = %d, want 2", len(loaded))
	}
	if loaded[0].Role != model.RoleUser {
		t.Errorf("First Role = %q, want %q", loaded[0].Role, model.RoleUser)
	}
	if loaded[0].File == nil || loaded[0].File.Name != "report.pdf" {
		t.Errorf("First File = %+v, want name %q", loaded[0].File, "report.pdf")
	}
	if len(loaded[1].Citations) != 1 || loaded[1].Citations[0].Page != 3 {
		t.Errorf("Citations = %+v, want one citation on page 3", loaded[1].Citations)
	}
}

func TestChatStore_TranscriptMissing(t *testing.T) {
	store := NewChatStore(NewMemKV())

	messages, err := store.Transcript("no-such-id")
	if err != nil {
		t.Fatalf("Transcript failed: %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("Message count = %d, want 0", len(messages))
	}
}

func TestChatStore_AppendMessages(t *testing.T) {
	store := NewChatStore(NewMemKV())
	conv := model.NewConversation()

	if err := store.AppendMessages(conv.ID, model.NewUserMessage("first", "")); err != nil {
		t.Fatalf("AppendMessages failed: %v", err)
	}
	if err := store.AppendMessages(conv.ID, model.NewAssistantMessage("second", nil)); err != nil {
		t.Fatalf("AppendMessages failed: %v", err)
	}

	messages, err := store.Transcript(conv.ID)
	if err != nil {
		t.Fatalf("Transcript failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("Message count = %d, want 2", len(messages))
	}
	if messages[0].Text != "first" || messages[1].Text != "second" {
		t.Errorf("Messages out of order: %q, %q", messages[0].Text, messages[1].Text)
	}
}

func TestChatStore_DeleteConversation(t *testing.T) {
	store := NewChatStore(NewMemKV())

	keep := model.NewConversation()
	drop := model.NewConversation()
	if err := store.SaveConversations([]model.Conversation{keep, drop}); err != nil {
		t.Fatalf("SaveConversations failed: %v", err)
	}
	if err := store.SaveTranscript(drop.ID, []model.Message{model.NewUserMessage("hi", "")}); err != nil {
		t.Fatalf("SaveTranscript failed: %v", err)
	}

	if err := store.DeleteConversation(drop.ID); err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}

	listed, err := store.ListConversations()
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != keep.ID {
		t.Errorf("Remaining conversations = %+v, want only %q", listed, keep.ID)
	}

	messages, err := store.Transcript(drop.ID)
	if err != nil {
		t.Fatalf("Transcript failed: %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("Deleted transcript still has %d messages", len(messages))
	}
}

func TestChatStore_DeleteConversationMissing(t *testing.T) {
	store := NewChatStore(NewMemKV())

	if err := store.DeleteConversation("no-such-id"); err != nil {
		t.Fatalf("DeleteConversation on missing ID failed: %v", err)
	}
}

func TestChatStore_CorruptIndex(t *testing.T) {
	kv := NewMemKV()
	if err := kv.Set(keyChatList, []byte("{not json")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	store := NewChatStore(kv)

	_, err := store.ListConversations()
	if err == nil {
		t.Fatal("Expected error for corrupt index")
	}
	if !errors.Is(err, ErrCorruptData) {
		t.Errorf("Error = %v, want ErrCorruptData", err)
	}

	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("Error is not a *StoreError: %v", err)
	}
	if storeErr.Key != keyChatList {
		t.Errorf("StoreError.Key = %q, want %q", storeErr.Key, keyChatList)
	}
}

func TestChatStore_TourFlag(t *testing.T) {
	store := NewChatStore(NewMemKV())

	done, err := store.TourCompleted()
	if err != nil {
		t.Fatalf("TourCompleted failed: %v", err)
	}
	if done {
		t.Error("Tour should start incomplete")
	}

	if err := store.SetTourCompleted(true); err != nil {
		t.Fatalf("SetTourCompleted failed: %v", err)
	}
	done, err = store.TourCompleted()
	if err != nil {
		t.Fatalf("TourCompleted failed: %v", err)
	}
	if !done {
		t.Error("Tour should be complete after SetTourCompleted(true)")
	}

	if err := store.SetTourCompleted(false); err != nil {
		t.Fatalf("SetTourCompleted(false) failed: %v", err)
	}
	done, err = store.TourCompleted()
	if err != nil {
		t.Fatalf("TourCompleted failed: %v", err)
	}
	if done {
		t.Error("Tour should be incomplete after SetTourCompleted(false)")
	}
}

// =============================================================================
// FILE KV TESTS
// =============================================================================

func TestFileKV_RoundTrip(t *testing.T) {
	kv, err := NewFileKVWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKVWithDir failed: %v", err)
	}

	if err := kv.Set("chat-list", []byte(`[]`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := kv.Set("chat-abc", []byte(`[{"text":"hi"}]`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, ok, err := kv.Get("chat-abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected key to exist")
	}
	if string(value) != `[{"text":"hi"}]` {
		t.Errorf("Value = %q", value)
	}

	keys, err := kv.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 2 || keys[0] != "chat-abc" || keys[1] != "chat-list" {
		t.Errorf("Keys = %v, want [chat-abc chat-list]", keys)
	}
}

func TestFileKV_GetMissing(t *testing.T) {
	kv, err := NewFileKVWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKVWithDir failed: %v", err)
	}

	_, ok, err := kv.Get("absent")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("Expected missing key")
	}
}

func TestFileKV_Delete(t *testing.T) {
	kv, err := NewFileKVWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKVWithDir failed: %v", err)
	}

	if err := kv.Set("chat-x", []byte("[]")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := kv.Delete("chat-x"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := kv.Delete("chat-x"); err != nil {
		t.Fatalf("Delete of missing key failed: %v", err)
	}

	_, ok, err := kv.Get("chat-x")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("Key should be gone after Delete")
	}
}

func TestFileKV_KeyEscaping(t *testing.T) {
	kv, err := NewFileKVWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKVWithDir failed: %v", err)
	}

	key := "chat-../../etc/passwd"
	if err := kv.Set(key, []byte("x")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	keys, err := kv.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != key {
		t.Errorf("Keys = %v, want [%q]", keys, key)
	}
}
