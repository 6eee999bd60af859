// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent runs a model conversation whose tool calls all pass
// through the guarded action pipeline. The model proposes; policy
// disposes. An unknown tool name is answered with an error result and
// never executed.
package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/saferclaw/saferclaw/lib/action"
	"github.com/saferclaw/saferclaw/lib/config"
	"github.com/saferclaw/saferclaw/lib/executor"
	"github.com/saferclaw/saferclaw/lib/llm"
	"github.com/saferclaw/saferclaw/lib/policy"
	"github.com/saferclaw/saferclaw/lib/workspace"
)

const defaultSystem = `You are a careful local assistant. You act only
through the provided tools. Commands run without a shell against an
allowlist; file access is confined to allowed roots. Denied actions are
final: do not retry them, explain the denial instead.`

// defaultMaxTurns bounds the conversation; each turn is one model
// round trip.
const defaultMaxTurns = 16

// Agent drives one conversation.
type Agent struct {
	Client    llm.Client
	Config    *config.Config
	Executor  *executor.Executor
	Workspace *workspace.Workspace
	Logger    *slog.Logger

	// MaxTurns caps model round trips. Zero means the default.
	MaxTurns int
}

// Run submits the prompt and loops until the model stops requesting
// tools or the turn budget runs out. Returns the model's final text.
func (a *Agent) Run(ctx context.Context, prompt string) (string, error) {
	system := defaultSystem
	if a.Workspace != nil && !a.Workspace.Empty() {
		system = system + "\n\n" + a.Workspace.Context()
	}

	messages := []llm.Message{{Role: "user", Content: prompt}}
	maxTurns := a.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}

	for turn := 0; turn < maxTurns; turn++ {
		response, err := a.Client.Complete(ctx, llm.Request{
			System:   system,
			Messages: messages,
			Tools:    llm.ActionTools(),
		})
		if err != nil {
			return "", fmt.Errorf("agent: model request: %w", err)
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   response.Text,
			ToolCalls: response.ToolCalls,
		})
		if !response.WantsTools() {
			return response.Text, nil
		}

		results := make([]llm.ToolResult, 0, len(response.ToolCalls))
		for _, call := range response.ToolCalls {
			results = append(results, a.handleCall(ctx, call))
		}
		messages = append(messages, llm.Message{Role: "user", ToolResults: results})
	}
	return "", fmt.Errorf("agent: conversation exceeded %d turns", maxTurns)
}

// handleCall runs one tool call through parse → policy → executor.
// Every failure mode comes back as an error tool result; the model
// sees what happened and the conversation continues.
func (a *Agent) handleCall(ctx context.Context, call llm.ToolCall) llm.ToolResult {
	logger := a.logger().With("tool", call.Name)

	request, err := action.ParseToolCall(call.Name, call.Arguments)
	if err != nil {
		logger.Warn("tool call rejected", "error", err)
		return llm.ToolResult{CallID: call.ID, IsError: true, Content: err.Error()}
	}

	decision := policy.Evaluate(request, a.Config)
	if !decision.Allowed() {
		if err := a.Executor.RecordDenial(request, decision); err != nil {
			return llm.ToolResult{CallID: call.ID, IsError: true, Content: err.Error()}
		}
		logger.Info("tool call denied", "reason", decision.Reason.String())
		return llm.ToolResult{
			CallID:  call.ID,
			IsError: true,
			Content: fmt.Sprintf("denied (%s): %s", decision.Reason, decision.Detail),
		}
	}

	result, err := a.Executor.Execute(ctx, request, decision)
	if err != nil {
		return llm.ToolResult{CallID: call.ID, IsError: true, Content: err.Error()}
	}
	return llm.ToolResult{
		CallID:  call.ID,
		IsError: !result.Success && !result.Skipped,
		Content: renderResult(result),
	}
}

// renderResult formats an execution result as tool output text.
func renderResult(result executor.Result) string {
	var sb strings.Builder
	switch {
	case result.Skipped:
		fmt.Fprintf(&sb, "skipped: %s", result.Detail)
	case result.Kind == action.KindReadFile:
		sb.Write(result.Content)
	case result.Kind == action.KindWriteFile:
		fmt.Fprintf(&sb, "wrote %d bytes", result.BytesWritten)
	case result.Kind == action.KindPlan:
		for i, step := range result.Steps {
			fmt.Fprintf(&sb, "step %d: %s\n", i+1, renderResult(step))
		}
		if !result.Success {
			fmt.Fprintf(&sb, "plan failed: %s", result.Detail)
		}
	default:
		if result.Stdout != "" {
			sb.WriteString(result.Stdout)
		}
		if result.Stderr != "" {
			fmt.Fprintf(&sb, "\n[stderr]\n%s", result.Stderr)
		}
		if !result.Success {
			fmt.Fprintf(&sb, "\n[%s] %s", result.Failure, result.Detail)
		}
	}
	return strings.TrimSpace(sb.String())
}

func (a *Agent) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return a.Logger
}
