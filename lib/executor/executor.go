// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Package executor performs already-approved actions: it spawns
// allowlisted commands without a shell, reads and writes files inside
// the allowed roots, and runs plans step by step.
//
// The executor never decides anything. Every Execute call requires the
// policy result that approved the request; calling it with a denial is
// a programming error and panics. Everything the executor does leaves
// an audit trail: one event at decision time, one after the attempt.
package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/saferclaw/saferclaw/lib/action"
	"github.com/saferclaw/saferclaw/lib/audit"
	"github.com/saferclaw/saferclaw/lib/clock"
	"github.com/saferclaw/saferclaw/lib/config"
	"github.com/saferclaw/saferclaw/lib/policy"
)

// Executor runs approved actions. The zero value is not usable; fill
// in Config and Recorder at minimum.
type Executor struct {
	Config   *config.Config
	Recorder *audit.Recorder
	Clock    clock.Clock
	Logger   *slog.Logger

	// Confirm is the confirmation gate, consulted when the config
	// requires confirmation and the caller has not pre-authorized.
	// A nil Confirm with confirmation required fails closed: the
	// action is skipped, never silently run.
	Confirm Confirmer

	// PreAuthorized bypasses the confirmation gate (the --yes flag).
	PreAuthorized bool

	// DryRun validates and records but performs nothing.
	DryRun bool
}

// Execute performs an action that policy has already approved.
// Execution failures come back inside the Result; the error return is
// for infrastructure problems only (an unwritable audit trail).
//
// Execute panics if decision is not an Allow. The policy engine is the
// only component that may approve an action, and that approval must
// happen before, not during, execution.
func (e *Executor) Execute(ctx context.Context, request action.Request, decision policy.Result) (Result, error) {
	if !decision.Allowed() {
		panic("executor: Execute called without an allow decision")
	}

	correlation := audit.NewCorrelation()
	if err := e.record(audit.Event{
		Action:      request.Kind.String(),
		Payload:     audit.RedactPayload(request),
		Status:      audit.StatusAttempted,
		Correlation: correlation,
	}); err != nil {
		return Result{}, err
	}

	if e.DryRun {
		if err := e.record(audit.Event{
			Action:      request.Kind.String(),
			Status:      audit.StatusSkipped,
			Reason:      "dry_run",
			Correlation: correlation,
		}); err != nil {
			return Result{}, err
		}
		return Result{Kind: request.Kind, Skipped: true, Detail: "dry run"}, nil
	}

	if e.Config.RequireConfirmation && !e.PreAuthorized {
		approved, err := e.confirm(request)
		if err != nil || !approved {
			detail := "confirmation declined"
			if err != nil {
				detail = fmt.Sprintf("confirmation unavailable: %v", err)
			}
			if recordErr := e.record(audit.Event{
				Action:      request.Kind.String(),
				Status:      audit.StatusSkipped,
				Reason:      string(FailureDeclined),
				Correlation: correlation,
			}); recordErr != nil {
				return Result{}, recordErr
			}
			return Result{
				Kind:    request.Kind,
				Skipped: true,
				Failure: FailureDeclined,
				Detail:  detail,
			}, nil
		}
	}

	var result Result
	if request.Kind == action.KindPlan {
		var err error
		result, err = e.runPlan(ctx, request, decision, correlation)
		if err != nil {
			return Result{}, err
		}
	} else {
		result = e.dispatch(ctx, request, decision)
		if err := e.recordOutcome(request, result, correlation); err != nil {
			return Result{}, err
		}
	}

	e.logger().Info("action executed",
		"kind", request.Kind.String(),
		"success", result.Success,
		"failure", string(result.Failure),
		"elapsed", result.Elapsed,
	)
	return result, nil
}

// RecordDenial writes the blocked audit event for a denied request.
// The blocked event is the only trace a denial leaves; no side effect
// ever follows it.
func (e *Executor) RecordDenial(request action.Request, decision policy.Result) error {
	if decision.Allowed() {
		panic("executor: RecordDenial called with an allow decision")
	}
	reason := decision.Reason.String()
	if decision.Detail != "" {
		reason = fmt.Sprintf("%s: %s", reason, decision.Detail)
	}
	return e.record(audit.Event{
		Action:      request.Kind.String(),
		Payload:     audit.RedactPayload(request),
		Status:      audit.StatusBlocked,
		Reason:      reason,
		Correlation: audit.NewCorrelation(),
	})
}

// dispatch runs one non-plan action.
func (e *Executor) dispatch(ctx context.Context, request action.Request, decision policy.Result) Result {
	switch request.Kind {
	case action.KindCommand:
		return e.runCommand(ctx, request.Argv, decision.WorkingDirectory)
	case action.KindReadFile:
		return e.readFile(decision.CanonicalPath)
	case action.KindWriteFile:
		return e.writeFile(request, decision)
	default:
		return Result{
			Kind:    request.Kind,
			Failure: FailureIO,
			Detail:  fmt.Sprintf("unexecutable kind %s", request.Kind),
		}
	}
}

func (e *Executor) confirm(request action.Request) (bool, error) {
	if e.Confirm == nil {
		return false, fmt.Errorf("confirmation required but no confirmer is configured")
	}
	return e.Confirm(request)
}

func (e *Executor) recordOutcome(request action.Request, result Result, correlation string) error {
	status := audit.StatusSucceeded
	reason := ""
	if !result.Success {
		status = audit.StatusFailed
		reason = string(result.Failure)
		if result.Detail != "" {
			reason = fmt.Sprintf("%s: %s", result.Failure, result.Detail)
		}
	}
	event := audit.Event{
		Action:      request.Kind.String(),
		Status:      status,
		Reason:      reason,
		Correlation: correlation,
		DurationMs:  result.Elapsed.Milliseconds(),
	}
	if request.Kind == action.KindCommand && !result.Skipped {
		code := result.ExitCode
		event.ExitCode = &code
	}
	return e.record(event)
}

func (e *Executor) record(event audit.Event) error {
	if e.Recorder == nil {
		return nil
	}
	if err := e.Recorder.Record(event); err != nil {
		return fmt.Errorf("executor: audit: %w", err)
	}
	return nil
}

func (e *Executor) clock() clock.Clock {
	if e.Clock == nil {
		return clock.Real()
	}
	return e.Clock
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e.Logger
}
