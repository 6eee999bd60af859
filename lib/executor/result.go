// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"encoding/json"
	"time"

	"github.com/saferclaw/saferclaw/lib/action"
)

// FailureClass labels why an execution attempt did not succeed.
// Failures are structured results, not faults: a non-zero exit or a
// timeout is a normal outcome of running untrusted work.
type FailureClass string

const (
	FailureNone FailureClass = ""
	// FailureTimeout: the command outlived its wall-clock budget and
	// its process group was killed.
	FailureTimeout FailureClass = "timeout"
	// FailureNonZeroExit: the command ran to completion with a
	// non-zero exit status.
	FailureNonZeroExit FailureClass = "non_zero_exit"
	// FailureSpawn: the process could not be started at all, for
	// example an allowlisted binary missing at runtime. Fatal to this
	// action, not to the process.
	FailureSpawn FailureClass = "spawn_failure"
	// FailureIO: a file operation failed, or a write target moved
	// outside the allowed roots between validation and the write.
	FailureIO FailureClass = "io_failure"
	// FailureDeclined: the confirmation gate did not approve the
	// action. The action never ran.
	FailureDeclined FailureClass = "confirmation_declined"
)

// Result is the bounded outcome of one executed action.
type Result struct {
	Kind    action.Kind   `json:"kind"`
	Success bool          `json:"success"`
	Skipped bool          `json:"skipped,omitempty"`
	Failure FailureClass  `json:"failure,omitempty"`
	Detail  string        `json:"detail,omitempty"`
	Elapsed time.Duration `json:"-"`

	// Command outcomes.
	ExitCode  int    `json:"exit_code,omitempty"`
	Stdout    string `json:"stdout,omitempty"`
	Stderr    string `json:"stderr,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`

	// File outcomes. Content is the bounded file content for reads.
	Content      []byte `json:"-"`
	BytesRead    int    `json:"bytes_read,omitempty"`
	BytesWritten int    `json:"bytes_written,omitempty"`

	// Steps holds per-step results for plans, in plan order. After a
	// failing step the remaining entries are marked skipped.
	Steps []Result `json:"steps,omitempty"`
}

// Summary serializes the result for persistence in a job record.
func (r Result) Summary() string {
	encoded, err := json.Marshal(struct {
		Result
		ElapsedMs int64 `json:"elapsed_ms"`
	}{r, r.Elapsed.Milliseconds()})
	if err != nil {
		return ""
	}
	return string(encoded)
}
