// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/morganforge/docchat-tui/internal/backend"
	"github.com/morganforge/docchat-tui/internal/model"
	"github.com/morganforge/docchat-tui/internal/storage"
)

// =============================================================================
// FAKE BACKEND
// =============================================================================

// fakeBackend records calls and returns scripted results.
type fakeBackend struct {
	mu sync.Mutex

	ingested      []string // file names passed to Ingest, in call order
	ingestErr     map[string]error
	checkCalls    int
	indexedAfter  int // CheckIndexed returns true from this call on (1-based); 0 = never
	completeCalls int
	completeReq   []model.Message
	completeModel string
	answer        *backend.Completion
	completeErr   error
}

func (f *fakeBackend) Ingest(ctx context.Context, conversationID string, file model.PendingFile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingested = append(f.ingested, file.Name)
	if err, ok := f.ingestErr[file.Name]; ok {
		return err
	}
	return nil
}

func (f *fakeBackend) CheckIndexed(ctx context.Context, conversationID string, fileNames []string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkCalls++
	return f.indexedAfter > 0 && f.checkCalls >= f.indexedAfter
}

func (f *fakeBackend) Complete(ctx context.Context, conversationID string, history []model.Message, modelID string) (*backend.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls++
	f.completeReq = history
	f.completeModel = modelID
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	if f.answer != nil {
		return f.answer, nil
	}
	return &backend.Completion{Answer: "ok"}, nil
}

func (f *fakeBackend) ingestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ingested)
}

// newTestSession builds a session over an in-memory store with fast polling.
func newTestSession(t *testing.T, be *fakeBackend) (*Session, *storage.ChatStore) {
	t.Helper()
	store := storage.NewChatStore(storage.NewMemKV())
	sess, err := New(store, be, "conv-1", "openai/gpt-4o")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	sess.WithPolling(time.Millisecond, DefaultPollAttempts)
	return sess, store
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestStage_FilesWithoutPrompt(t *testing.T) {
	be := &fakeBackend{indexedAfter: 1}
	sess, _ := newTestSession(t, be)

	_, err := sess.Stage(context.Background(), "  ", []model.PendingFile{{Name: "a.pdf"}})
	if !errors.Is(err, ErrPromptRequired) {
		t.Fatalf("err = %v, want ErrPromptRequired", err)
	}
	if be.ingestCount() != 0 || be.checkCalls != 0 {
		t.Error("Validation failure must not issue network calls")
	}
	if len(sess.Transcript()) != 0 {
		t.Error("Transcript must be unchanged after validation failure")
	}
}

func TestStage_NothingToSend(t *testing.T) {
	be := &fakeBackend{}
	sess, _ := newTestSession(t, be)

	_, err := sess.Stage(context.Background(), "", nil)
	if !errors.Is(err, ErrNothingToSend) {
		t.Fatalf("err = %v, want ErrNothingToSend", err)
	}
	if be.ingestCount() != 0 {
		t.Error("Empty submission must not issue network calls")
	}
}

// =============================================================================
// TEXT-ONLY TURN
// =============================================================================

func TestSubmit_TextOnly(t *testing.T) {
	be := &fakeBackend{answer: &backend.Completion{Answer: "Hi!", Citations: []model.Citation{}}}
	sess, store := newTestSession(t, be)

	staged, err := sess.Stage(context.Background(), "Hello", nil)
	if err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	if staged.Text != "Hello" || staged.Role != model.RoleUser {
		t.Errorf("Staged message = %+v", staged)
	}
	if staged.File != nil {
		t.Errorf("File = %+v, want nil for text-only turn", staged.File)
	}
	if sess.State() != AwaitingCompletion {
		t.Errorf("State = %v, want AwaitingCompletion", sess.State())
	}
	if be.ingestCount() != 0 || be.checkCalls != 0 {
		t.Error("Text-only turn must not call ingest or checkIndexed")
	}

	// Optimistic append is persisted before the answer arrives.
	persisted, err := store.Transcript("conv-1")
	if err != nil {
		t.Fatalf("Transcript failed: %v", err)
	}
	if len(persisted) != 1 || persisted[0].Text != "Hello" {
		t.Fatalf("Persisted transcript = %+v, want just the user message", persisted)
	}

	reply, err := sess.Complete(context.Background())
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if reply.Text != "Hi!" || reply.Role != model.RoleAssistant {
		t.Errorf("Reply = %+v", reply)
	}
	if sess.State() != Idle {
		t.Errorf("State = %v, want Idle", sess.State())
	}

	persisted, _ = store.Transcript("conv-1")
	if len(persisted) != 2 || persisted[1].Text != "Hi!" {
		t.Fatalf("Persisted transcript = %+v, want user + assistant", persisted)
	}
}

// =============================================================================
// FILE TURN
// =============================================================================

func TestSubmit_FileTurn(t *testing.T) {
	be := &fakeBackend{indexedAfter: 3, answer: &backend.Completion{Answer: "Summary."}}
	sess, _ := newTestSession(t, be)

	staged, err := sess.Stage(context.Background(), "Summarize this", []model.PendingFile{
		{Name: "report.pdf", Data: []byte("x")},
	})
	if err != nil {
		t.Fatalf("Stage failed: %v", err)
	}

	if be.ingestCount() != 1 || be.ingested[0] != "report.pdf" {
		t.Errorf("Ingested = %v, want [report.pdf]", be.ingested)
	}
	if be.checkCalls != 3 {
		t.Errorf("checkIndexed calls = %d, want 3 (polled until true)", be.checkCalls)
	}
	if staged.File == nil || staged.File.Name != "report.pdf" {
		t.Errorf("Staged File = %+v, want report.pdf", staged.File)
	}
	if !sess.Uploaded("report.pdf") {
		t.Error("report.pdf should be in the uploaded registry")
	}

	if _, err := sess.Complete(context.Background()); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if len(be.completeReq) != 1 || be.completeReq[0].File == nil || be.completeReq[0].File.Name != "report.pdf" {
		t.Errorf("Completion history = %+v, want the staged user message", be.completeReq)
	}
	if be.completeModel != "openai/gpt-4o" {
		t.Errorf("Model = %q", be.completeModel)
	}
}

func TestStage_PlaceholderForEmptyPromptNeverReachable(t *testing.T) {
	// Validation rejects files without a prompt before message
	// construction, so the placeholder path is exercised directly.
	msg := buildUserMessage("", []model.PendingFile{{Name: "a.pdf"}})
	if msg.Text != uploadPlaceholder {
		t.Errorf("Text = %q, want the upload placeholder", msg.Text)
	}
}

func TestStage_RegistrySkipsReupload(t *testing.T) {
	be := &fakeBackend{indexedAfter: 1}
	sess, _ := newTestSession(t, be)

	if _, err := sess.Stage(context.Background(), "first", []model.PendingFile{{Name: "a.pdf"}}); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	if _, err := sess.Complete(context.Background()); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	checksBefore := be.checkCalls
	if _, err := sess.Stage(context.Background(), "again", []model.PendingFile{{Name: "a.pdf"}}); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}

	if be.ingestCount() != 1 {
		t.Errorf("Ingest called %d times, want 1 (registry lookup by name)", be.ingestCount())
	}
	if be.checkCalls != checksBefore {
		t.Error("No new uploads means no indexing poll")
	}
}

func TestStage_RegistryRebuiltFromTranscript(t *testing.T) {
	be := &fakeBackend{indexedAfter: 1}
	store := storage.NewChatStore(storage.NewMemKV())
	if err := store.SaveTranscript("conv-1", []model.Message{
		model.NewUserMessage("earlier", "a.pdf, b.pdf"),
	}); err != nil {
		t.Fatalf("SaveTranscript failed: %v", err)
	}

	sess, err := New(store, be, "conv-1", "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if !sess.Uploaded("a.pdf") || !sess.Uploaded("b.pdf") {
		t.Error("Registry should be rebuilt from transcript file fields")
	}
}

// =============================================================================
// CONCURRENT UPLOADS
// =============================================================================

func TestStage_ConcurrentUploadFailure(t *testing.T) {
	uploadErr := errors.New("disk full")
	be := &fakeBackend{
		indexedAfter: 1,
		ingestErr:    map[string]error{"bad.pdf": uploadErr},
	}
	sess, store := newTestSession(t, be)

	files := []model.PendingFile{{Name: "good.pdf"}, {Name: "bad.pdf"}}
	_, err := sess.Stage(context.Background(), "send these", files)
	if !errors.Is(err, uploadErr) {
		t.Fatalf("err = %v, want the upload failure", err)
	}
	if sess.State() != Errored {
		t.Errorf("State = %v, want Errored", sess.State())
	}

	// Siblings are not cancelled; both uploads ran.
	if be.ingestCount() != 2 {
		t.Errorf("Ingest called %d times, want 2", be.ingestCount())
	}
	// The successful sibling stays registered.
	if !sess.Uploaded("good.pdf") {
		t.Error("good.pdf should remain in the registry")
	}
	if sess.Uploaded("bad.pdf") {
		t.Error("bad.pdf must not be registered")
	}

	persisted, _ := store.Transcript("conv-1")
	if len(persisted) != 0 {
		t.Errorf("Transcript = %+v, want unchanged on failed submission", persisted)
	}
}

// =============================================================================
// INDEXING POLL
// =============================================================================

func TestStage_IndexingTimeout(t *testing.T) {
	be := &fakeBackend{indexedAfter: 0} // never indexed
	sess, store := newTestSession(t, be)

	_, err := sess.Stage(context.Background(), "summarize", []model.PendingFile{{Name: "slow.pdf"}})
	if !errors.Is(err, ErrIndexingTimeout) {
		t.Fatalf("err = %v, want ErrIndexingTimeout", err)
	}
	if be.checkCalls != DefaultPollAttempts {
		t.Errorf("checkIndexed calls = %d, want %d", be.checkCalls, DefaultPollAttempts)
	}
	if sess.State() != Errored {
		t.Errorf("State = %v, want Errored", sess.State())
	}

	// Message unsent, registry not rolled back.
	persisted, _ := store.Transcript("conv-1")
	if len(persisted) != 0 {
		t.Errorf("Transcript = %+v, want unchanged", persisted)
	}
	if !sess.Uploaded("slow.pdf") {
		t.Error("slow.pdf stays registered after a timeout")
	}
}

func TestAwaitIndexed_FixedDelayBetweenAttempts(t *testing.T) {
	be := &fakeBackend{indexedAfter: 4}
	sess, _ := newTestSession(t, be)
	sess.WithPolling(20*time.Millisecond, 10)

	start := time.Now()
	if _, err := sess.Stage(context.Background(), "go", []model.PendingFile{{Name: "a.pdf"}}); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	elapsed := time.Since(start)

	// Three waits of 20ms precede the fourth (successful) check.
	if elapsed < 60*time.Millisecond {
		t.Errorf("elapsed = %v, want at least 60ms of poll delay", elapsed)
	}
}

// =============================================================================
// COMPLETION FAILURE
// =============================================================================

func TestComplete_FailureKeepsOptimisticMessage(t *testing.T) {
	be := &fakeBackend{completeErr: errors.New("backend down")}
	sess, store := newTestSession(t, be)

	if _, err := sess.Stage(context.Background(), "Hello", nil); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	_, err := sess.Complete(context.Background())
	if err == nil {
		t.Fatal("Expected completion error")
	}
	if sess.State() != Errored {
		t.Errorf("State = %v, want Errored", sess.State())
	}

	persisted, _ := store.Transcript("conv-1")
	if len(persisted) != 1 || persisted[0].Text != "Hello" {
		t.Errorf("Transcript = %+v, want the optimistic user message preserved", persisted)
	}

	// The session is retryable; a later attempt succeeds.
	be.mu.Lock()
	be.completeErr = nil
	be.answer = &backend.Completion{Answer: "recovered"}
	be.mu.Unlock()

	reply, err := sess.Complete(context.Background())
	if err != nil {
		t.Fatalf("Retry Complete failed: %v", err)
	}
	if reply.Text != "recovered" {
		t.Errorf("Reply = %q", reply.Text)
	}
	if sess.State() != Idle {
		t.Errorf("State = %v, want Idle", sess.State())
	}
}
