// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package action

import (
	"fmt"
	"strings"
)

// Kind identifies the variant of a Request. The set is closed: every
// dispatch point switches over all four values and treats anything
// else as a programming error.
type Kind int

const (
	// KindCommand runs an executable from an argument vector.
	KindCommand Kind = iota

	// KindReadFile reads a file from an allowed root.
	KindReadFile

	// KindWriteFile writes a file under an allowed root.
	KindWriteFile

	// KindPlan executes an ordered sequence of steps.
	KindPlan
)

// String returns the wire name of the kind, as used in job records and
// audit events.
func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindReadFile:
		return "read_file"
	case KindWriteFile:
		return "write_file"
	case KindPlan:
		return "plan"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts a wire name back into a Kind.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "command":
		return KindCommand, nil
	case "read_file":
		return KindReadFile, nil
	case "write_file":
		return KindWriteFile, nil
	case "plan":
		return KindPlan, nil
	default:
		return 0, fmt.Errorf("action: unknown kind %q", name)
	}
}

// Request is the unit of work a caller wants performed. It is a tagged
// variant: exactly the fields for its Kind are populated. Requests are
// immutable once constructed — constructors copy their inputs, and no
// code mutates a Request after validation.
type Request struct {
	// Kind selects the variant.
	Kind Kind

	// Argv is the argument vector for KindCommand. Argv[0] is the
	// executable name. Never passed through a shell.
	Argv []string

	// Path is the target file for KindReadFile and KindWriteFile.
	Path string

	// Content is the data written for KindWriteFile.
	Content []byte

	// Steps are the ordered sub-requests for KindPlan. Steps never
	// contain a nested KindPlan.
	Steps []Request
}

// NewCommand builds a command request from an argument vector.
func NewCommand(argv ...string) Request {
	copied := make([]string, len(argv))
	copy(copied, argv)
	return Request{Kind: KindCommand, Argv: copied}
}

// NewReadFile builds a file-read request.
func NewReadFile(path string) Request {
	return Request{Kind: KindReadFile, Path: path}
}

// NewWriteFile builds a file-write request.
func NewWriteFile(path string, content []byte) Request {
	copied := make([]byte, len(content))
	copy(copied, content)
	return Request{Kind: KindWriteFile, Path: path, Content: copied}
}

// NewPlan builds a plan request from an ordered sequence of steps.
func NewPlan(steps ...Request) Request {
	copied := make([]Request, len(steps))
	copy(copied, steps)
	return Request{Kind: KindPlan, Steps: copied}
}

// Summary returns a short human-readable description of the request,
// suitable for confirmation prompts and log lines. File contents are
// never included.
func (r Request) Summary() string {
	switch r.Kind {
	case KindCommand:
		return fmt.Sprintf("command: %s", strings.Join(r.Argv, " "))
	case KindReadFile:
		return fmt.Sprintf("read file: %s", r.Path)
	case KindWriteFile:
		return fmt.Sprintf("write file: %s (%d bytes)", r.Path, len(r.Content))
	case KindPlan:
		return fmt.Sprintf("plan: %d steps", len(r.Steps))
	default:
		return r.Kind.String()
	}
}
