// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// OpenAI implements [Client] for OpenAI-compatible chat completion
// APIs.
type OpenAI struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewOpenAI creates an OpenAI client. An empty baseURL targets the
// public API; compatible servers supply their own.
func NewOpenAI(httpClient *http.Client, baseURL, apiKey, model string) *OpenAI {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	return &OpenAI{httpClient: httpClient, baseURL: baseURL, apiKey: apiKey, model: model}
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Tools       []openaiTool    `json:"tools,omitempty"`
	MaxTokens   int             `json:"max_completion_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openaiToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openaiTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description,omitempty"`
		Parameters  json.RawMessage `json:"parameters,omitempty"`
	} `json:"function"`
}

type openaiResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      openaiMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete sends a non-streaming request and returns the full response.
func (provider *OpenAI) Complete(ctx context.Context, request Request) (*Response, error) {
	wireRequest := openaiRequest{
		Model:       provider.model,
		MaxTokens:   request.MaxTokens,
		Temperature: request.Temperature,
	}
	if request.System != "" {
		wireRequest.Messages = append(wireRequest.Messages,
			openaiMessage{Role: "system", Content: request.System})
	}
	for _, message := range request.Messages {
		wireRequest.Messages = append(wireRequest.Messages, toOpenAIMessages(message)...)
	}
	for _, tool := range request.Tools {
		wireTool := openaiTool{Type: "function"}
		wireTool.Function.Name = tool.Name
		wireTool.Function.Description = tool.Description
		wireTool.Function.Parameters = tool.InputSchema
		wireRequest.Tools = append(wireRequest.Tools, wireTool)
	}

	httpResponse, err := postJSON(ctx, provider.httpClient,
		provider.baseURL+"/v1/chat/completions",
		map[string]string{"Authorization": "Bearer " + provider.apiKey},
		wireRequest, "llm/openai")
	if err != nil {
		return nil, err
	}
	defer httpResponse.Body.Close()

	var wireResponse openaiResponse
	if err := json.NewDecoder(httpResponse.Body).Decode(&wireResponse); err != nil {
		return nil, fmt.Errorf("llm/openai: decoding response: %w", err)
	}
	if len(wireResponse.Choices) == 0 {
		return nil, fmt.Errorf("llm/openai: response has no choices")
	}

	choice := wireResponse.Choices[0]
	response := &Response{
		Model:      wireResponse.Model,
		Text:       choice.Message.Content,
		StopReason: choice.FinishReason,
	}
	response.Usage.InputTokens = wireResponse.Usage.PromptTokens
	response.Usage.OutputTokens = wireResponse.Usage.CompletionTokens
	for _, call := range choice.Message.ToolCalls {
		response.ToolCalls = append(response.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: json.RawMessage(call.Function.Arguments),
		})
	}
	return response, nil
}

// toOpenAIMessages flattens a common message into OpenAI wire
// messages. Tool results become separate role:"tool" messages.
func toOpenAIMessages(message Message) []openaiMessage {
	var wire []openaiMessage
	for _, result := range message.ToolResults {
		wire = append(wire, openaiMessage{
			Role:       "tool",
			Content:    result.Content,
			ToolCallID: result.CallID,
		})
	}
	if message.Content != "" || len(message.ToolCalls) > 0 {
		entry := openaiMessage{Role: message.Role, Content: message.Content}
		for _, call := range message.ToolCalls {
			wireCall := openaiToolCall{ID: call.ID, Type: "function"}
			wireCall.Function.Name = call.Name
			wireCall.Function.Arguments = string(call.Arguments)
			entry.ToolCalls = append(entry.ToolCalls, wireCall)
		}
		wire = append(wire, entry)
	}
	return wire
}
