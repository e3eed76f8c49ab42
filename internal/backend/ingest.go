// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/morganforge/docchat-tui/internal/model"
)

// =============================================================================
// DOCUMENT INGESTION
// =============================================================================

// Ingest uploads one document into the conversation's retrieval index.
//
// The upload is a multipart POST with the file bytes under "file" and the
// conversation id under "chat_id". The backend chunks, embeds, and indexes
// the document asynchronously; use CheckIndexed to learn when it becomes
// queryable.
func (c *Client) Ingest(ctx context.Context, conversationID string, file model.PendingFile) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", file.Name)
	if err != nil {
		return &IngestError{FileName: file.Name, Err: err}
	}
	if _, err := part.Write(file.Data); err != nil {
		return &IngestError{FileName: file.Name, Err: err}
	}
	if err := writer.WriteField("chat_id", conversationID); err != nil {
		return &IngestError{FileName: file.Name, Err: err}
	}
	if err := writer.Close(); err != nil {
		return &IngestError{FileName: file.Name, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/ingest"), &buf)
	if err != nil {
		return &IngestError{FileName: file.Name, Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return &IngestError{FileName: file.Name, Err: err}
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return &IngestError{FileName: file.Name, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &IngestError{
			FileName: file.Name,
			Status:   resp.StatusCode,
			Err:      errors.New(errorDetail(body)),
		}
	}

	return nil
}

// checkIndexedRequest is the request body for /api/check_indexed.
type checkIndexedRequest struct {
	ChatID    string   `json:"chat_id"`
	FileNames []string `json:"file_names"`
}

// checkIndexedResponse is the response body for /api/check_indexed.
type checkIndexedResponse struct {
	Indexed bool `json:"indexed"`
}

// CheckIndexed reports whether every named file is queryable in the
// conversation's index.
//
// Any failure reads as "not yet indexed": the caller is a poll loop and a
// transient error on one attempt must not abort it.
func (c *Client) CheckIndexed(ctx context.Context, conversationID string, fileNames []string) bool {
	reqBody, err := json.Marshal(checkIndexedRequest{
		ChatID:    conversationID,
		FileNames: fileNames,
	})
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/check_indexed"), bytes.NewReader(reqBody))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return false
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false
	}

	var parsed checkIndexedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return false
	}
	return parsed.Indexed
}

// errorDetail extracts a human-readable message from an error body. The
// backend wraps failures as {"detail": "..."}; anything else is shown raw.
func errorDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	if len(body) == 0 {
		return "no error detail"
	}
	return fmt.Sprintf("server error: %s", body)
}
