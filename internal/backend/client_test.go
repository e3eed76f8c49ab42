// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/morganforge/docchat-tui/internal/model"
)

// =============================================================================
// INGEST TESTS
// =============================================================================

func TestIngest_SendsMultipartFields(t *testing.T) {
	var gotChatID, gotFileName string
	var gotData []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ingest" {
			t.Errorf("Path = %q, want /api/ingest", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm failed: %v", err)
		}
		gotChatID = r.FormValue("chat_id")

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile failed: %v", err)
		}
		defer file.Close()
		gotFileName = header.Filename
		gotData, _ = io.ReadAll(file)

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := New(server.URL)
	err := client.Ingest(context.Background(), "conv-1", model.PendingFile{
		Name: "report.pdf",
		Data: []byte("pdf-bytes"),
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if gotChatID != "conv-1" {
		t.Errorf("chat_id = %q, want %q", gotChatID, "conv-1")
	}
	if gotFileName != "report.pdf" {
		t.Errorf("file name = %q, want %q", gotFileName, "report.pdf")
	}
	if string(gotData) != "pdf-bytes" {
		t.Errorf("file data = %q, want %q", gotData, "pdf-bytes")
	}
}

func TestIngest_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"embedding service unavailable"}`))
	}))
	defer server.Close()

	client := New(server.URL)
	err := client.Ingest(context.Background(), "conv-1", model.PendingFile{Name: "a.pdf"})
	if err == nil {
		t.Fatal("Expected error for 500 response")
	}

	var ingestErr *IngestError
	if !errors.As(err, &ingestErr) {
		t.Fatalf("Error is not an *IngestError: %v", err)
	}
	if ingestErr.Status != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", ingestErr.Status)
	}
	if ingestErr.FileName != "a.pdf" {
		t.Errorf("FileName = %q, want %q", ingestErr.FileName, "a.pdf")
	}
}

func TestIngest_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := New(server.URL)
	err := client.Ingest(context.Background(), "conv-1", model.PendingFile{Name: "a.pdf"})
	if err == nil {
		t.Fatal("Expected error for unreachable server")
	}

	var ingestErr *IngestError
	if !errors.As(err, &ingestErr) {
		t.Fatalf("Error is not an *IngestError: %v", err)
	}
	if ingestErr.Status != 0 {
		t.Errorf("Status = %d, want 0 for transport failure", ingestErr.Status)
	}
}

// =============================================================================
// CHECK INDEXED TESTS
// =============================================================================

func TestCheckIndexed_True(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/check_indexed" {
			t.Errorf("Path = %q, want /api/check_indexed", r.URL.Path)
		}

		var req checkIndexedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if req.ChatID != "conv-1" {
			t.Errorf("chat_id = %q, want %q", req.ChatID, "conv-1")
		}
		if len(req.FileNames) != 2 || req.FileNames[0] != "a.pdf" || req.FileNames[1] != "b.pdf" {
			t.Errorf("file_names = %v, want [a.pdf b.pdf]", req.FileNames)
		}

		w.Write([]byte(`{"indexed":true}`))
	}))
	defer server.Close()

	client := New(server.URL)
	if !client.CheckIndexed(context.Background(), "conv-1", []string{"a.pdf", "b.pdf"}) {
		t.Error("CheckIndexed = false, want true")
	}
}

func TestCheckIndexed_False(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"indexed":false}`))
	}))
	defer server.Close()

	client := New(server.URL)
	if client.CheckIndexed(context.Background(), "conv-1", []string{"a.pdf"}) {
		t.Error("CheckIndexed = true, want false")
	}
}

func TestCheckIndexed_FailuresReadAsNotIndexed(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		close   bool
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{not json`))
			},
		},
		{
			name:    "unreachable server",
			handler: func(w http.ResponseWriter, r *http.Request) {},
			close:   true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			if tc.close {
				server.Close()
			} else {
				defer server.Close()
			}

			client := New(server.URL)
			if client.CheckIndexed(context.Background(), "conv-1", []string{"a.pdf"}) {
				t.Error("CheckIndexed = true, want false on failure")
			}
		})
	}
}

// =============================================================================
// COMPLETION TESTS
// =============================================================================

func TestComplete_SendsFullHistory(t *testing.T) {
	var gotReq chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("Path = %q, want /api/chat", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		w.Write([]byte(`{"answer":"The total is $42.","citations":[{"page":2,"chunk_id":"c-9","content":"Total: $42"}]}`))
	}))
	defer server.Close()

	history := []model.Message{
		model.NewUserMessage("what is the total?", "invoice.pdf"),
		model.NewAssistantMessage("Checking.", nil),
		model.NewUserMessage("and now?", ""),
	}

	client := New(server.URL)
	completion, err := client.Complete(context.Background(), "conv-1", history, "openai/gpt-4o")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if gotReq.ID != "conv-1" {
		t.Errorf("id = %q, want %q", gotReq.ID, "conv-1")
	}
	if gotReq.Model != "openai/gpt-4o" {
		t.Errorf("model = %q, want %q", gotReq.Model, "openai/gpt-4o")
	}
	if len(gotReq.Messages) != 3 {
		t.Fatalf("message count = %d, want 3", len(gotReq.Messages))
	}

	first := gotReq.Messages[0]
	if first.Role != "user" || first.Content != "what is the total?" {
		t.Errorf("first message = %+v", first)
	}
	if len(first.Parts) != 1 || first.Parts[0].Type != "text" || first.Parts[0].Text != first.Content {
		t.Errorf("first parts = %+v, want one text part mirroring content", first.Parts)
	}
	if gotReq.Messages[1].Role != "assistant" {
		t.Errorf("second role = %q, want assistant", gotReq.Messages[1].Role)
	}

	if completion.Answer != "The total is $42." {
		t.Errorf("Answer = %q", completion.Answer)
	}
	if len(completion.Citations) != 1 || completion.Citations[0].Page != 2 {
		t.Errorf("Citations = %+v, want one citation on page 2", completion.Citations)
	}
}

func TestComplete_DefaultModel(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(`{"answer":"ok"}`))
	}))
	defer server.Close()

	client := New(server.URL)
	if _, err := client.Complete(context.Background(), "conv-1", nil, ""); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if gotReq.Model != DefaultModel {
		t.Errorf("model = %q, want %q", gotReq.Model, DefaultModel)
	}
}

func TestComplete_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"detail":"model overloaded"}`))
	}))
	defer server.Close()

	client := New(server.URL)
	_, err := client.Complete(context.Background(), "conv-1", nil, "openai/gpt-4o")
	if err == nil {
		t.Fatal("Expected error for 502 response")
	}

	var chatErr *ChatError
	if !errors.As(err, &chatErr) {
		t.Fatalf("Error is not a *ChatError: %v", err)
	}
	if chatErr.Status != http.StatusBadGateway {
		t.Errorf("Status = %d, want 502", chatErr.Status)
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	client := New("http://example.test/")
	if client.BaseURL() != "http://example.test" {
		t.Errorf("BaseURL = %q", client.BaseURL())
	}

	defaulted := New("")
	if defaulted.BaseURL() != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", defaulted.BaseURL(), DefaultBaseURL)
	}
}
