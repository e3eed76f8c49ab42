// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/morganforge/docchat-tui/internal/model"
)

// =============================================================================
// CHAT COMPLETION
// =============================================================================

// wirePart is one content part of a wire message. The backend accepts the
// multi-part message shape; this client only ever sends a single text part.
type wirePart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// wireMessage is one transcript entry as the backend expects it: the text
// doubled into both the flat content field and a text part.
type wireMessage struct {
	Role    string     `json:"role"`
	Content string     `json:"content"`
	Parts   []wirePart `json:"parts"`
}

// chatRequest is the request body for /api/chat.
type chatRequest struct {
	ID       string        `json:"id"`
	Messages []wireMessage `json:"messages"`
	Model    string        `json:"model"`
}

// Completion is a successful answer from the backend.
type Completion struct {
	Answer    string           `json:"answer"`
	Citations []model.Citation `json:"citations"`
}

// Complete requests an answer over the conversation's indexed documents.
//
// The full prior transcript is sent every turn; the backend is stateless
// with respect to chat history. history must already include the user
// message being answered.
func (c *Client) Complete(ctx context.Context, conversationID string, history []model.Message, modelID string) (*Completion, error) {
	if modelID == "" {
		modelID = DefaultModel
	}

	messages := make([]wireMessage, 0, len(history))
	for _, msg := range history {
		messages = append(messages, wireMessage{
			Role:    msg.Role,
			Content: msg.Text,
			Parts:   []wirePart{{Type: "text", Text: msg.Text}},
		})
	}

	reqBody, err := json.Marshal(chatRequest{
		ID:       conversationID,
		Messages: messages,
		Model:    modelID,
	})
	if err != nil {
		return nil, &ChatError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/chat"), bytes.NewReader(reqBody))
	if err != nil {
		return nil, &ChatError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, &ChatError{Err: err}
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, &ChatError{Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ChatError{Status: resp.StatusCode, Err: errors.New(errorDetail(body))}
	}

	var completion Completion
	if err := json.Unmarshal(body, &completion); err != nil {
		return nil, &ChatError{Status: resp.StatusCode, Err: err}
	}
	return &completion, nil
}
