// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Package llm is the boundary to remote model APIs. It defines a small
// common request/response vocabulary and non-streaming clients for the
// Anthropic Messages API and OpenAI-compatible chat completions.
//
// The agent loop depends only on [Client]; the pipeline on the other
// side of a tool call never sees provider wire formats.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Client is a remote model backend.
type Client interface {
	// Complete sends one request and blocks for the full response.
	Complete(ctx context.Context, request Request) (*Response, error)
}

// Message is one conversation turn.
type Message struct {
	// Role is "user" or "assistant".
	Role string
	// Content is the message text, empty for pure tool-call turns.
	Content string
	// ToolCalls are the calls an assistant turn requested.
	ToolCalls []ToolCall
	// ToolResults carry tool outputs back in a user turn.
	ToolResults []ToolResult
}

// ToolCall is a model's request to invoke a named tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolResult is the outcome of one tool call.
type ToolResult struct {
	CallID  string
	Content string
	IsError bool
}

// ToolDef describes a tool offered to the model.
type ToolDef struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// Request is a provider-independent completion request.
type Request struct {
	System      string
	Messages    []Message
	Tools       []ToolDef
	MaxTokens   int
	Temperature *float64
}

// Response is a provider-independent completion response.
type Response struct {
	Text       string
	ToolCalls  []ToolCall
	StopReason string
	Model      string
	Usage      Usage
}

// WantsTools reports whether the model stopped to request tool calls.
func (r *Response) WantsTools() bool {
	return len(r.ToolCalls) > 0
}

// Usage is token accounting for one exchange.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// ProviderError is a non-200 response from the model API.
type ProviderError struct {
	StatusCode int
	Type       string
	Message    string
}

func (err *ProviderError) Error() string {
	if err.Type != "" {
		return fmt.Sprintf("llm: HTTP %d: %s: %s", err.StatusCode, err.Type, err.Message)
	}
	return fmt.Sprintf("llm: HTTP %d: %s", err.StatusCode, err.Message)
}

// IsRateLimited reports an HTTP 429 response.
func (err *ProviderError) IsRateLimited() bool {
	return err.StatusCode == http.StatusTooManyRequests
}

// postJSON sends wireRequest to endpoint and returns the open response
// body on 200. Non-200 responses come back as a *ProviderError with
// the body already closed.
func postJSON(ctx context.Context, httpClient *http.Client, endpoint string, headers map[string]string, wireRequest any, prefix string) (*http.Response, error) {
	body, err := json.Marshal(wireRequest)
	if err != nil {
		return nil, fmt.Errorf("%s: marshaling request: %w", prefix, err)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: creating request: %w", prefix, err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	for name, value := range headers {
		httpRequest.Header.Set(name, value)
	}

	httpResponse, err := httpClient.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("%s: sending request: %w", prefix, err)
	}
	if httpResponse.StatusCode != http.StatusOK {
		defer httpResponse.Body.Close()
		return nil, readProviderError(httpResponse)
	}
	return httpResponse, nil
}

// readProviderError parses the common error envelope used by both
// Anthropic and OpenAI: {"error":{"type":"...","message":"..."}}.
func readProviderError(httpResponse *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(httpResponse.Body, 4096))

	var wireError struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &wireError) == nil && wireError.Error.Message != "" {
		return &ProviderError{
			StatusCode: httpResponse.StatusCode,
			Type:       wireError.Error.Type,
			Message:    wireError.Error.Message,
		}
	}
	return &ProviderError{StatusCode: httpResponse.StatusCode, Message: string(body)}
}
