// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"time"

	"github.com/saferclaw/saferclaw/lib/action"
)

// Status is a job's position in its state machine:
// queued → running → {done, queued (retry), failed, blocked}.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
	// StatusBlocked is terminal: the job's action was denied by
	// policy. Denials are never retried, because re-evaluating the
	// same request yields the same denial.
	StatusBlocked Status = "blocked"
)

// terminal reports whether a status admits no further transitions.
func (s Status) terminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusBlocked
}

// Job is a persisted action request plus its execution bookkeeping.
// Jobs are mutated only through store transitions and are never
// deleted automatically; terminal jobs remain for inspection.
type Job struct {
	ID          int64
	Kind        action.Kind
	Payload     []byte
	Status      Status
	Attempts    int
	MaxAttempts int
	CreatedAt   time.Time
	ClaimedAt   time.Time
	FinishedAt  time.Time
	LastError   string
	Result      string
}

// Request decodes the job's payload back into an action request.
func (j Job) Request() (action.Request, error) {
	return action.UnmarshalPayload(j.Kind, j.Payload)
}
