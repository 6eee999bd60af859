// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/saferclaw/saferclaw/lib/clock"
	"github.com/saferclaw/saferclaw/lib/config"
	"github.com/saferclaw/saferclaw/lib/executor"
	"github.com/saferclaw/saferclaw/lib/policy"
)

// Worker drains the store, re-submitting each claimed job's payload
// through the policy engine and executor. Policy runs fresh on every
// attempt: an enqueue-time decision is not trusted at execution time,
// because the config may have changed between the two.
type Worker struct {
	Store    *Store
	Config   *config.Config
	Executor *executor.Executor
	Clock    clock.Clock
	Logger   *slog.Logger

	// PollInterval is the sleep between claim attempts when the queue
	// is empty. Zero means one second.
	PollInterval time.Duration
}

// Run processes jobs until ctx is cancelled. An empty queue is not an
// error; the worker sleeps and polls again.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		err := w.RunOnce(ctx)
		switch {
		case errors.Is(err, ErrNoJob):
			select {
			case <-ctx.Done():
				return nil
			case <-w.clock().After(w.pollInterval()):
			}
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		case err != nil:
			return err
		}
	}
}

// RunOnce claims and processes a single job. Returns ErrNoJob when the
// queue is empty.
func (w *Worker) RunOnce(ctx context.Context) error {
	job, err := w.Store.ClaimNext(ctx)
	if err != nil {
		return err
	}
	return w.process(ctx, job)
}

func (w *Worker) process(ctx context.Context, job Job) error {
	logger := w.logger().With("job_id", job.ID, "kind", job.Kind.String())

	request, err := job.Request()
	if err != nil {
		// Undecodable payloads park as blocked: they can never
		// validate, so retrying is pointless.
		logger.Warn("job payload undecodable", "error", err)
		return w.Store.MarkBlocked(ctx, job.ID, fmt.Sprintf("malformed payload: %v", err))
	}

	decision := policy.Evaluate(request, w.Config)
	if !decision.Allowed() {
		if err := w.Executor.RecordDenial(request, decision); err != nil {
			return err
		}
		reason := decision.Reason.String()
		if decision.Detail != "" {
			reason = fmt.Sprintf("%s: %s", reason, decision.Detail)
		}
		logger.Info("job blocked by policy", "reason", reason)
		return w.Store.MarkBlocked(ctx, job.ID, reason)
	}

	result, err := w.Executor.Execute(ctx, request, decision)
	if err != nil {
		return err
	}

	switch {
	case result.Success:
		return w.Store.MarkDone(ctx, job.ID, result.Summary())
	case result.Skipped:
		// A declined or unavailable confirmation gate counts as a
		// failed attempt. Queue workers are expected to run with
		// confirmation disabled; a misconfigured one must not spin
		// forever on the same job.
		_, err := w.Store.MarkFailed(ctx, job.ID, result.Detail)
		return err
	default:
		cause := string(result.Failure)
		if result.Detail != "" {
			cause = fmt.Sprintf("%s: %s", result.Failure, result.Detail)
		}
		failed, err := w.Store.MarkFailed(ctx, job.ID, cause)
		if err != nil {
			return err
		}
		logger.Info("job attempt failed",
			"attempt", failed.Attempts, "status", string(failed.Status), "cause", cause)
		return nil
	}
}

func (w *Worker) clock() clock.Clock {
	if w.Clock == nil {
		return clock.Real()
	}
	return w.Clock
}

func (w *Worker) pollInterval() time.Duration {
	if w.PollInterval <= 0 {
		return time.Second
	}
	return w.PollInterval
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return w.Logger
}
