// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import "encoding/json"

// ActionTools returns the tool definitions for the guarded action
// pipeline. The schemas mirror the action payload wire formats, so a
// tool call's arguments decode directly into an action request.
func ActionTools() []ToolDef {
	return []ToolDef{
		{
			Name:        "run_command",
			Description: "Run an allowlisted command without a shell. Shell operators are rejected.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"command": {
						"description": "Command line (tokenized without shell semantics) or argv array.",
						"anyOf": [
							{"type": "string"},
							{"type": "array", "items": {"type": "string"}}
						]
					}
				},
				"required": ["command"]
			}`),
		},
		{
			Name:        "read_file",
			Description: "Read a file inside the allowed roots. Content beyond the output ceiling is truncated.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"path": {"type": "string"}
				},
				"required": ["path"]
			}`),
		},
		{
			Name:        "write_file",
			Description: "Write a text file inside the allowed roots, creating parent directories as needed.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"path": {"type": "string"},
					"content": {"type": "string"}
				},
				"required": ["path", "content"]
			}`),
		},
		{
			Name:        "run_plan",
			Description: "Run an ordered sequence of steps. The plan executes only if every step passes policy; execution stops at the first failing step.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"steps": {
						"type": "array",
						"items": {
							"type": "object",
							"minProperties": 1,
							"maxProperties": 1,
							"properties": {
								"command": {},
								"read_file": {},
								"write_file": {}
							}
						}
					}
				},
				"required": ["steps"]
			}`),
		},
	}
}
