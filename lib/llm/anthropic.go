// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const anthropicVersion = "2023-06-01"

// Anthropic implements [Client] for the Anthropic Messages API.
type Anthropic struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewAnthropic creates an Anthropic client. An empty baseURL targets
// the public API; tests point it at a local server.
func NewAnthropic(httpClient *http.Client, baseURL, apiKey, model string) *Anthropic {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	return &Anthropic{httpClient: httpClient, baseURL: baseURL, apiKey: apiKey, model: model}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []anthropicTool    `json:"tools,omitempty"`

	Temperature *float64 `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

// anthropicBlock is one content block: text, tool_use, or tool_result.
type anthropicBlock struct {
	Type string `json:"type"`

	Text string `json:"text,omitempty"`

	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

type anthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

type anthropicResponse struct {
	Model      string           `json:"model"`
	Content    []anthropicBlock `json:"content"`
	StopReason string           `json:"stop_reason"`
	Usage      struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

// Complete sends a non-streaming request and returns the full response.
func (provider *Anthropic) Complete(ctx context.Context, request Request) (*Response, error) {
	wireRequest := anthropicRequest{
		Model:       provider.model,
		MaxTokens:   request.MaxTokens,
		System:      request.System,
		Temperature: request.Temperature,
	}
	if wireRequest.MaxTokens <= 0 {
		wireRequest.MaxTokens = 4096
	}
	for _, message := range request.Messages {
		wireRequest.Messages = append(wireRequest.Messages, toAnthropicMessage(message))
	}
	for _, tool := range request.Tools {
		wireRequest.Tools = append(wireRequest.Tools, anthropicTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		})
	}

	httpResponse, err := postJSON(ctx, provider.httpClient,
		provider.baseURL+"/v1/messages",
		map[string]string{
			"x-api-key":         provider.apiKey,
			"anthropic-version": anthropicVersion,
		},
		wireRequest, "llm/anthropic")
	if err != nil {
		return nil, err
	}
	defer httpResponse.Body.Close()

	var wireResponse anthropicResponse
	if err := json.NewDecoder(httpResponse.Body).Decode(&wireResponse); err != nil {
		return nil, fmt.Errorf("llm/anthropic: decoding response: %w", err)
	}

	response := &Response{
		Model:      wireResponse.Model,
		StopReason: wireResponse.StopReason,
	}
	response.Usage.InputTokens = wireResponse.Usage.InputTokens
	response.Usage.OutputTokens = wireResponse.Usage.OutputTokens
	for _, block := range wireResponse.Content {
		switch block.Type {
		case "text":
			response.Text += block.Text
		case "tool_use":
			response.ToolCalls = append(response.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: block.Input,
			})
		}
	}
	return response, nil
}

func toAnthropicMessage(message Message) anthropicMessage {
	wire := anthropicMessage{Role: message.Role}
	for _, result := range message.ToolResults {
		wire.Content = append(wire.Content, anthropicBlock{
			Type:      "tool_result",
			ToolUseID: result.CallID,
			Content:   result.Content,
			IsError:   result.IsError,
		})
	}
	if message.Content != "" {
		wire.Content = append(wire.Content, anthropicBlock{Type: "text", Text: message.Content})
	}
	for _, call := range message.ToolCalls {
		wire.Content = append(wire.Content, anthropicBlock{
			Type:  "tool_use",
			ID:    call.ID,
			Name:  call.Name,
			Input: call.Arguments,
		})
	}
	return wire
}
