// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package action

import (
	"fmt"
	"strings"
)

// Tokenize splits a command line into an argument vector without any
// shell semantics: no variable expansion, no globbing, no redirection.
// Single and double quotes group words; a backslash escapes the next
// character outside single quotes. This exists so callers can accept
// `run "ls -la"` from a human without ever handing the string to a
// shell — operators like && or | survive tokenization as literal
// tokens and are rejected by the policy engine.
func Tokenize(commandLine string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		inWord  bool
	)

	const (
		stateBare = iota
		stateSingle
		stateDouble
	)
	state := stateBare
	escaped := false

	for _, r := range commandLine {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
			inWord = true
		case state == stateSingle:
			if r == '\'' {
				state = stateBare
			} else {
				current.WriteRune(r)
			}
		case state == stateDouble:
			switch r {
			case '"':
				state = stateBare
			case '\\':
				escaped = true
			default:
				current.WriteRune(r)
			}
		case r == '\\':
			escaped = true
			inWord = true
		case r == '\'':
			state = stateSingle
			inWord = true
		case r == '"':
			state = stateDouble
			inWord = true
		case r == ' ' || r == '\t':
			if inWord {
				tokens = append(tokens, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(r)
			inWord = true
		}
	}

	if escaped {
		return nil, fmt.Errorf("action: trailing backslash in command")
	}
	if state != stateBare {
		return nil, fmt.Errorf("action: unterminated quote in command")
	}
	if inWord {
		tokens = append(tokens, current.String())
	}
	return tokens, nil
}
