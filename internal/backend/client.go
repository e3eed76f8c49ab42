// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend is the HTTP client for the docchat backend service.
//
// The backend exposes three endpoints: /api/ingest uploads a document into
// the retrieval index, /api/check_indexed reports whether uploads are
// queryable yet, and /api/chat produces a grounded answer over the indexed
// documents. This package wraps all three behind one Client.
package backend

import (
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Configuration constants for the backend API.
const (
	// DefaultBaseURL is the base URL of a locally running backend.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultModel is the completion model requested when none is configured.
	DefaultModel = "openai/gpt-4o"

	// DefaultTimeout is the default timeout for API requests. Completions
	// over large documents are slow, so this is generous.
	DefaultTimeout = 120 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit
)

// Shared HTTP client with connection pooling for all backend requests.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
	Timeout: DefaultTimeout,
}

// =============================================================================
// ERRORS
// =============================================================================

// IngestError is a failed document upload.
type IngestError struct {
	FileName string
	Status   int // 0 when the request never reached the server
	Err      error
}

func (e *IngestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("ingest %q failed (HTTP %d): %v", e.FileName, e.Status, e.Err)
	}
	return fmt.Sprintf("ingest %q failed: %v", e.FileName, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// ChatError is a failed completion request.
type ChatError struct {
	Status int // 0 when the request never reached the server
	Err    error
}

func (e *ChatError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("chat request failed (HTTP %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("chat request failed: %v", e.Err)
}

func (e *ChatError) Unwrap() error {
	return e.Err
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to one backend instance. Zero-value construction is not
// supported; use New.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the backend at baseURL. An empty baseURL means
// DefaultBaseURL.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: sharedHTTPClient,
	}
}

// WithHTTPClient sets a custom HTTP client. Used by tests.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	c.httpClient = httpClient
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// endpoint joins the base URL with an API path.
func (c *Client) endpoint(path string) string {
	return c.baseURL + path
}

// =============================================================================
// REQUEST/RESPONSE LOGGING
// =============================================================================

// logRequest logs an API request. Bodies hold user documents and prompts,
// so only method and path are logged.
func logRequest(req *http.Request) {
	log.Printf("API Request: %s %s", req.Method, req.URL.Path)
}

// logResponse logs an API response with duration. Never logs the body.
func logResponse(resp *http.Response, duration time.Duration) {
	log.Printf("API Response: %d %s (%v)", resp.StatusCode, resp.Status, duration)
}

// do sends the request through the shared client with logging.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	logRequest(req)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	logResponse(resp, time.Since(start))
	return resp, nil
}

// readResponse reads the response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	limitedReader := io.LimitReader(resp.Body, MaxResponseSize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}

	return body, nil
}
