// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package action

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/jsonc"
)

// Wire formats. A request payload is a JSON object keyed by the
// request kind:
//
//	command    { "command": "ls -la" }            (string or argv array)
//	read_file  { "path": "notes.txt" }
//	write_file { "path": "out.txt", "content": "..." }
//	plan       { "steps": [ { "command": ... }, ... ] }
//
// The same objects appear as model tool-call arguments and as
// persisted job payloads, so a deferred job re-validates exactly what
// a direct caller would have submitted.

type commandPayload struct {
	Command json.RawMessage `json:"command"`
}

type readFilePayload struct {
	Path string `json:"path"`
}

type writeFilePayload struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type planPayload struct {
	Steps []json.RawMessage `json:"steps"`
}

// MarshalPayload encodes a request into its wire payload.
func MarshalPayload(r Request) ([]byte, error) {
	switch r.Kind {
	case KindCommand:
		argv, err := json.Marshal(r.Argv)
		if err != nil {
			return nil, fmt.Errorf("action: encoding argv: %w", err)
		}
		return json.Marshal(commandPayload{Command: argv})
	case KindReadFile:
		return json.Marshal(readFilePayload{Path: r.Path})
	case KindWriteFile:
		return json.Marshal(writeFilePayload{Path: r.Path, Content: string(r.Content)})
	case KindPlan:
		steps := make([]json.RawMessage, 0, len(r.Steps))
		for _, step := range r.Steps {
			encoded, err := marshalStep(step)
			if err != nil {
				return nil, err
			}
			steps = append(steps, encoded)
		}
		return json.Marshal(planPayload{Steps: steps})
	default:
		return nil, fmt.Errorf("action: cannot encode kind %s", r.Kind)
	}
}

// marshalStep encodes a plan step as a single-key object, matching the
// plan file format.
func marshalStep(step Request) (json.RawMessage, error) {
	switch step.Kind {
	case KindCommand:
		return json.Marshal(map[string][]string{"command": step.Argv})
	case KindReadFile:
		return json.Marshal(map[string]string{"read_file": step.Path})
	case KindWriteFile:
		return json.Marshal(map[string]writeFilePayload{
			"write_file": {Path: step.Path, Content: string(step.Content)},
		})
	default:
		return nil, fmt.Errorf("action: plan step cannot have kind %s", step.Kind)
	}
}

// UnmarshalPayload decodes a wire payload for the given kind.
func UnmarshalPayload(kind Kind, data []byte) (Request, error) {
	switch kind {
	case KindCommand:
		var payload commandPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return Request{}, fmt.Errorf("action: decoding command payload: %w", err)
		}
		return commandFromRaw(payload.Command)
	case KindReadFile:
		var payload readFilePayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return Request{}, fmt.Errorf("action: decoding read_file payload: %w", err)
		}
		return NewReadFile(payload.Path), nil
	case KindWriteFile:
		var payload writeFilePayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return Request{}, fmt.Errorf("action: decoding write_file payload: %w", err)
		}
		return NewWriteFile(payload.Path, []byte(payload.Content)), nil
	case KindPlan:
		var payload planPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return Request{}, fmt.Errorf("action: decoding plan payload: %w", err)
		}
		return planFromSteps(payload.Steps)
	default:
		return Request{}, fmt.Errorf("action: cannot decode kind %s", kind)
	}
}

// ParseToolCall converts a model tool call (name plus JSON arguments)
// into a Request. Tool names mirror the payload kinds with the
// original run_ prefixes.
func ParseToolCall(name string, arguments []byte) (Request, error) {
	if len(arguments) == 0 {
		arguments = []byte("{}")
	}
	switch name {
	case "run_command":
		return UnmarshalPayload(KindCommand, arguments)
	case "read_file":
		return UnmarshalPayload(KindReadFile, arguments)
	case "write_file":
		return UnmarshalPayload(KindWriteFile, arguments)
	case "run_plan":
		return UnmarshalPayload(KindPlan, arguments)
	default:
		return Request{}, fmt.Errorf("action: unknown tool %q", name)
	}
}

// ParsePlanFile decodes a plan document into a KindPlan request. The
// document may be a bare array of steps or an object with a "steps"
// array, and may contain JSONC comments.
func ParsePlanFile(data []byte) (Request, error) {
	plain := jsonc.ToJSON(data)

	var steps []json.RawMessage
	if err := json.Unmarshal(plain, &steps); err != nil {
		var payload planPayload
		if err := json.Unmarshal(plain, &payload); err != nil {
			return Request{}, fmt.Errorf("action: plan must be a step array or an object with a steps array")
		}
		steps = payload.Steps
	}
	return planFromSteps(steps)
}

// commandFromRaw accepts either a command string (tokenized without
// shell interpretation) or a pre-split argv array.
func commandFromRaw(raw json.RawMessage) (Request, error) {
	if len(raw) == 0 {
		return Request{}, fmt.Errorf("action: command payload missing \"command\"")
	}

	var line string
	if err := json.Unmarshal(raw, &line); err == nil {
		argv, err := Tokenize(line)
		if err != nil {
			return Request{}, err
		}
		return NewCommand(argv...), nil
	}

	var argv []string
	if err := json.Unmarshal(raw, &argv); err != nil {
		return Request{}, fmt.Errorf("action: \"command\" must be a string or an array of strings")
	}
	return NewCommand(argv...), nil
}

// planFromSteps decodes plan steps. Each step is an object with
// exactly one of the keys "command", "read_file", or "write_file".
// Nested plans are rejected: a plan is a flat ordered sequence.
func planFromSteps(steps []json.RawMessage) (Request, error) {
	decoded := make([]Request, 0, len(steps))
	for i, raw := range steps {
		step, err := decodeStep(raw)
		if err != nil {
			return Request{}, fmt.Errorf("action: step %d: %w", i+1, err)
		}
		decoded = append(decoded, step)
	}
	return NewPlan(decoded...), nil
}

func decodeStep(raw json.RawMessage) (Request, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Request{}, fmt.Errorf("step is not an object")
	}

	if len(fields) != 1 {
		return Request{}, fmt.Errorf("step must have exactly one of command, read_file, write_file")
	}

	if raw, ok := fields["command"]; ok {
		return commandFromRaw(raw)
	}
	if raw, ok := fields["read_file"]; ok {
		var path string
		if err := json.Unmarshal(raw, &path); err == nil {
			return NewReadFile(path), nil
		}
		var payload readFilePayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return Request{}, fmt.Errorf("read_file must be a path string or {path}")
		}
		return NewReadFile(payload.Path), nil
	}
	if raw, ok := fields["write_file"]; ok {
		var payload writeFilePayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return Request{}, fmt.Errorf("write_file must be {path, content}")
		}
		return NewWriteFile(payload.Path, []byte(payload.Content)), nil
	}
	if _, ok := fields["plan"]; ok {
		return Request{}, fmt.Errorf("nested plans are not supported")
	}
	return Request{}, fmt.Errorf("step must have exactly one of command, read_file, write_file")
}
