// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit appends an immutable record of every validated,
// attempted, and blocked action to a JSONL file. The audit trail is a
// forensic record, not a transactional log: append order is event
// order, and events are never rewritten.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saferclaw/saferclaw/lib/clock"
)

// Status classifies an audit event.
type Status string

const (
	// StatusAttempted is written at decision time, before the
	// executor runs an allowed action.
	StatusAttempted Status = "attempted"
	// StatusBlocked records a policy denial. A blocked event is the
	// only trace a denied request leaves.
	StatusBlocked Status = "blocked"
	// StatusSkipped records an action that was approved but never
	// ran: a declined confirmation, a dry run, or a plan step after
	// an earlier failure.
	StatusSkipped Status = "skipped"
	// StatusSucceeded and StatusFailed record execution outcomes,
	// written after the attempt completes.
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Event is one line of the audit trail.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	Payload   map[string]any `json:"payload,omitempty"`
	Status    Status         `json:"status"`
	Reason    string         `json:"reason,omitempty"`

	// Correlation groups the events of one pipeline pass: the
	// attempted event and its outcome event share a value, as do all
	// events of one plan.
	Correlation string `json:"correlation,omitempty"`

	ExitCode   *int  `json:"exit_code,omitempty"`
	DurationMs int64 `json:"duration_ms,omitempty"`
}

// NewCorrelation returns a fresh correlation identifier.
func NewCorrelation() string {
	return uuid.NewString()
}

// Recorder appends events to a single JSONL file. Safe for concurrent
// use within one process; the file is opened O_APPEND so interleaved
// writers from other processes corrupt nothing, though their ordering
// is whatever the kernel gives them.
type Recorder struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	size     int64
	maxBytes int64
	clock    clock.Clock
}

// Open creates or opens the audit file at path. maxBytes of 0 disables
// rotation.
func Open(path string, maxBytes int64, clk clock.Clock) (*Recorder, error) {
	if clk == nil {
		clk = clock.Real()
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("audit: stat %s: %w", path, err)
	}
	return &Recorder{
		file:     file,
		path:     path,
		size:     info.Size(),
		maxBytes: maxBytes,
		clock:    clk,
	}, nil
}

// Record appends one event. The timestamp and ID are filled in if the
// caller left them zero.
func (r *Recorder) Record(event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = r.clock.Now().UTC()
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit: encode event: %w", err)
	}
	line = append(line, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxBytes > 0 && r.size+int64(len(line)) > r.maxBytes && r.size > 0 {
		if err := r.rotateLocked(); err != nil {
			return err
		}
	}
	n, err := r.file.Write(line)
	r.size += int64(n)
	if err != nil {
		return fmt.Errorf("audit: append: %w", err)
	}
	return nil
}

// Close closes the underlying file. The recorder is unusable after.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}

// Path returns the audit file location.
func (r *Recorder) Path() string {
	return r.path
}

// Tail returns the last n events in the live audit file, oldest first.
// Rotated archives are not consulted. Lines that fail to decode are
// skipped rather than failing the whole read, so a torn final line
// from a crashed process does not hide the rest of the trail.
func Tail(path string, n int) ([]Event, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("audit: read %s: %w", path, err)
	}
	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}
	return events, nil
}
