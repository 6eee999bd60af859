// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"

	"github.com/saferclaw/saferclaw/lib/action"
	"github.com/saferclaw/saferclaw/lib/config"
)

// evaluatePlan validates every step of a plan. Validation is
// all-or-nothing: one denied step denies the whole plan, before any
// step has executed. The per-step trace stops at the first denial.
func evaluatePlan(steps []action.Request, cfg *config.Config, workingDirectory string) Result {
	if len(steps) == 0 {
		return deny(ReasonMalformed, "plan has no steps")
	}

	result := Result{Decision: Allow, Steps: make([]Result, 0, len(steps))}
	for i, step := range steps {
		if step.Kind == action.KindPlan {
			stepResult := deny(ReasonMalformed, "nested plans are not supported")
			result.Steps = append(result.Steps, stepResult)
			return planDenied(result, i, stepResult)
		}
		stepResult := EvaluateIn(step, cfg, workingDirectory)
		result.Steps = append(result.Steps, stepResult)
		if !stepResult.Allowed() {
			return planDenied(result, i, stepResult)
		}
	}
	return result
}

func planDenied(result Result, index int, stepResult Result) Result {
	result.Decision = Deny
	result.Reason = stepResult.Reason
	result.Detail = fmt.Sprintf("step %d: %s", index+1, stepResult.Detail)
	return result
}
