// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"context"
	"fmt"

	"github.com/saferclaw/saferclaw/lib/action"
	"github.com/saferclaw/saferclaw/lib/audit"
	"github.com/saferclaw/saferclaw/lib/policy"
)

// runPlan executes plan steps sequentially and fail-fast: the first
// failing step stops the plan, and the remaining steps are recorded as
// skipped without running. Every step shares the plan's correlation in
// the audit trail.
func (e *Executor) runPlan(ctx context.Context, request action.Request, decision policy.Result, correlation string) (Result, error) {
	result := Result{Kind: action.KindPlan, Success: true}

	failedAt := -1
	for i, step := range request.Steps {
		if failedAt >= 0 {
			if err := e.record(audit.Event{
				Action:      step.Kind.String(),
				Status:      audit.StatusSkipped,
				Reason:      fmt.Sprintf("plan aborted by step %d", failedAt+1),
				Correlation: correlation,
			}); err != nil {
				return Result{}, err
			}
			result.Steps = append(result.Steps, Result{Kind: step.Kind, Skipped: true})
			continue
		}

		if err := e.record(audit.Event{
			Action:      step.Kind.String(),
			Payload:     audit.RedactPayload(step),
			Status:      audit.StatusAttempted,
			Correlation: correlation,
		}); err != nil {
			return Result{}, err
		}

		stepResult := e.dispatch(ctx, step, decision.Steps[i])
		if err := e.recordOutcome(step, stepResult, correlation); err != nil {
			return Result{}, err
		}
		result.Steps = append(result.Steps, stepResult)
		result.Elapsed += stepResult.Elapsed

		if !stepResult.Success {
			failedAt = i
			result.Success = false
			result.Failure = stepResult.Failure
			result.Detail = fmt.Sprintf("step %d: %s", i+1, stepResult.Detail)
		}
	}
	return result, nil
}
