// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session drives one conversation's submission state machine.
//
// A Session binds a conversation id to the store and the backend client and
// owns the in-memory transcript. Submission runs in two phases matching
// what the UI observes: Stage uploads attachments, waits for indexing, and
// appends the user message optimistically; Complete requests the
// assistant's answer over the updated transcript. Both phases persist the
// transcript after every append.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/morganforge/docchat-tui/internal/backend"
	"github.com/morganforge/docchat-tui/internal/model"
	"github.com/morganforge/docchat-tui/internal/storage"
)

// =============================================================================
// STATES
// =============================================================================

// State is the session's position in the submission lifecycle.
type State int

const (
	// Idle means no submission is in flight.
	Idle State = iota

	// Sending means attachments are being uploaded.
	Sending

	// AwaitingIndexing means uploads finished and the session is polling
	// until they become queryable.
	AwaitingIndexing

	// AwaitingCompletion means the user message is staged and the answer
	// request is in flight.
	AwaitingCompletion

	// Errored means the last submission failed. The next user action
	// clears it.
	Errored
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sending:
		return "sending"
	case AwaitingIndexing:
		return "awaiting-indexing"
	case AwaitingCompletion:
		return "awaiting-completion"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	// DefaultPollInterval is the fixed delay between indexing checks.
	DefaultPollInterval = 1 * time.Second

	// DefaultPollAttempts is the maximum number of indexing checks per
	// submission before it fails with ErrIndexingTimeout.
	DefaultPollAttempts = 10
)

// uploadPlaceholder is sent as the prompt when files are attached with no
// text, so the assistant acknowledges the upload.
const uploadPlaceholder = "Just respond back to me saying, that the file has been uploaded."

// =============================================================================
// BACKEND CONTRACT
// =============================================================================

// Backend is the slice of the backend client the session uses. Satisfied
// by *backend.Client; tests substitute a fake.
type Backend interface {
	Ingest(ctx context.Context, conversationID string, file model.PendingFile) error
	CheckIndexed(ctx context.Context, conversationID string, fileNames []string) bool
	Complete(ctx context.Context, conversationID string, history []model.Message, modelID string) (*backend.Completion, error)
}

// =============================================================================
// SESSION
// =============================================================================

// Session is the per-conversation submission state machine. A Session is
// bound to its conversation id for life: switching conversations in the UI
// detaches an in-flight submission rather than cancelling it, and its
// result still lands in this conversation's transcript.
type Session struct {
	store          *storage.ChatStore
	backend        Backend
	conversationID string
	modelID        string

	pollInterval time.Duration
	pollAttempts int

	mu         sync.Mutex
	state      State
	lastErr    error
	transcript []model.Message
	uploaded   map[string]bool // file names successfully ingested
}

// New creates a session for one conversation and loads its transcript.
// The uploaded-file registry is rebuilt from the transcript's file fields
// so a reload does not re-upload previously ingested documents.
func New(store *storage.ChatStore, be Backend, conversationID, modelID string) (*Session, error) {
	transcript, err := store.Transcript(conversationID)
	if err != nil {
		return nil, err
	}

	uploaded := make(map[string]bool)
	for _, msg := range transcript {
		if msg.File == nil {
			continue
		}
		for _, name := range splitFileNames(msg.File.Name) {
			uploaded[name] = true
		}
	}

	return &Session{
		store:          store,
		backend:        be,
		conversationID: conversationID,
		modelID:        modelID,
		pollInterval:   DefaultPollInterval,
		pollAttempts:   DefaultPollAttempts,
		transcript:     transcript,
		uploaded:       uploaded,
	}, nil
}

// WithPolling overrides the indexing poll cadence. Used by tests.
func (s *Session) WithPolling(interval time.Duration, attempts int) *Session {
	s.pollInterval = interval
	s.pollAttempts = attempts
	return s
}

// ConversationID returns the conversation this session is bound to.
func (s *Session) ConversationID() string {
	return s.conversationID
}

// ModelID returns the completion model this session requests.
func (s *Session) ModelID() string {
	return s.modelID
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error of the last failed submission, nil otherwise.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Transcript returns a copy of the in-memory transcript.
func (s *Session) Transcript() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Uploaded reports whether a file name is in the uploaded registry.
// Lookup is by name only; content changes under an unchanged name are not
// detected.
func (s *Session) Uploaded(fileName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploaded[fileName]
}

// =============================================================================
// STAGE (upload, index wait, optimistic append)
// =============================================================================

// Stage runs the front half of a submission: validation, concurrent upload
// of new attachments, the bounded indexing wait, and the optimistic append
// of the user message. On success the returned message is already in the
// transcript and persisted; the caller clears its input immediately,
// before Complete runs.
//
// Validation failures (ErrPromptRequired, ErrNothingToSend) happen before
// any network call and leave the state untouched.
func (s *Session) Stage(ctx context.Context, text string, files []model.PendingFile) (*model.Message, error) {
	text = strings.TrimSpace(text)

	if text == "" && len(files) > 0 {
		return nil, ErrPromptRequired
	}
	if text == "" && len(files) == 0 {
		return nil, ErrNothingToSend
	}

	s.setState(Sending, nil)

	newNames, err := s.ingestNew(ctx, files)
	if err != nil {
		s.setState(Errored, err)
		return nil, err
	}

	if len(newNames) > 0 {
		s.setState(AwaitingIndexing, nil)
		if err := s.awaitIndexed(ctx, newNames); err != nil {
			// Already-uploaded files stay registered; only the message
			// goes unsent.
			s.setState(Errored, err)
			return nil, err
		}
	}

	msg := buildUserMessage(text, files)

	s.mu.Lock()
	s.transcript = append(s.transcript, msg)
	transcript := s.transcript
	s.mu.Unlock()

	if err := s.store.SaveTranscript(s.conversationID, transcript); err != nil {
		s.setState(Errored, err)
		return nil, err
	}

	s.setState(AwaitingCompletion, nil)
	return &msg, nil
}

// ingestNew uploads every attachment not yet in the registry, concurrently.
// The submission fails on the first upload failure; in-flight siblings run
// to completion and their results are ignored, but names that did succeed
// still enter the registry.
func (s *Session) ingestNew(ctx context.Context, files []model.PendingFile) ([]string, error) {
	s.mu.Lock()
	var pending []model.PendingFile
	seen := make(map[string]bool)
	for _, file := range files {
		if s.uploaded[file.Name] || seen[file.Name] {
			continue
		}
		seen[file.Name] = true
		pending = append(pending, file)
	}
	s.mu.Unlock()

	if len(pending) == 0 {
		return nil, nil
	}

	// A plain errgroup (no WithContext) keeps the no-cancellation
	// contract: the first failure decides the outcome without tearing
	// down sibling uploads.
	var g errgroup.Group
	for _, file := range pending {
		file := file
		g.Go(func() error {
			if err := s.backend.Ingest(ctx, s.conversationID, file); err != nil {
				return err
			}
			s.mu.Lock()
			s.uploaded[file.Name] = true
			s.mu.Unlock()
			return nil
		})
	}

	err := g.Wait()

	names := make([]string, 0, len(pending))
	for _, file := range pending {
		names = append(names, file.Name)
	}
	if err != nil {
		return nil, err
	}
	return names, nil
}

// awaitIndexed polls until the newly uploaded files are queryable, with a
// fixed delay between attempts and a bounded attempt count.
func (s *Session) awaitIndexed(ctx context.Context, fileNames []string) error {
	for attempt := 0; attempt < s.pollAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.pollInterval):
			}
		}
		if s.backend.CheckIndexed(ctx, s.conversationID, fileNames) {
			return nil
		}
	}
	return ErrIndexingTimeout
}

// buildUserMessage assembles the outgoing user message. Attached file names
// are joined into the message's file field; an empty prompt with files
// present is replaced by the upload acknowledgement placeholder.
func buildUserMessage(text string, files []model.PendingFile) model.Message {
	if text == "" && len(files) > 0 {
		text = uploadPlaceholder
	}

	names := make([]string, 0, len(files))
	for _, file := range files {
		names = append(names, file.Name)
	}
	return model.NewUserMessage(text, strings.Join(names, ", "))
}

// splitFileNames undoes the joining done by buildUserMessage.
func splitFileNames(joined string) []string {
	if joined == "" {
		return nil
	}
	parts := strings.Split(joined, ", ")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// =============================================================================
// COMPLETE (answer request)
// =============================================================================

// Complete runs the back half of a submission: it sends the full updated
// transcript to the completion endpoint and appends the assistant's answer.
// On failure the optimistic user message stays in the transcript; the
// caller surfaces the error inline and the session is retryable.
func (s *Session) Complete(ctx context.Context) (*model.Message, error) {
	s.mu.Lock()
	history := make([]model.Message, len(s.transcript))
	copy(history, s.transcript)
	s.mu.Unlock()

	completion, err := s.backend.Complete(ctx, s.conversationID, history, s.modelID)
	if err != nil {
		s.setState(Errored, err)
		return nil, err
	}

	msg := model.NewAssistantMessage(completion.Answer, completion.Citations)

	s.mu.Lock()
	s.transcript = append(s.transcript, msg)
	transcript := s.transcript
	s.mu.Unlock()

	if err := s.store.SaveTranscript(s.conversationID, transcript); err != nil {
		s.setState(Errored, err)
		return nil, err
	}

	s.setState(Idle, nil)
	return &msg, nil
}

// setState moves the state machine and records the submission error.
func (s *Session) setState(state State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.lastErr = err
}
