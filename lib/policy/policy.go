// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"github.com/saferclaw/saferclaw/lib/action"
	"github.com/saferclaw/saferclaw/lib/config"
)

// Decision is the outcome of a policy check.
type Decision int

const (
	// Deny means the action is not permitted. Deny is final: no retry,
	// no partial execution.
	Deny Decision = iota

	// Allow means the action is permitted.
	Allow
)

// String returns "allow" or "deny".
func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// DenyReason describes why a policy check was denied.
type DenyReason int

const (
	// ReasonNotAllowlisted means the executable is not in the
	// allowlist.
	ReasonNotAllowlisted DenyReason = iota

	// ReasonDenylisted means the executable is in the denylist, or is
	// a network executable while network access is disabled. The
	// denylist always wins over the allowlist.
	ReasonDenylisted

	// ReasonShellOperator means a command token contains a shell
	// operator or metacharacter.
	ReasonShellOperator

	// ReasonPathOutsideRoots means the canonical form of a path is not
	// contained in any allowed root.
	ReasonPathOutsideRoots

	// ReasonMalformed means the request itself is invalid: empty
	// command, empty path, NUL bytes, or a nested plan.
	ReasonMalformed
)

// String returns the wire name of the reason, as recorded in audit
// events and job records.
func (r DenyReason) String() string {
	switch r {
	case ReasonNotAllowlisted:
		return "not_allowlisted"
	case ReasonDenylisted:
		return "denylisted"
	case ReasonShellOperator:
		return "shell_operator"
	case ReasonPathOutsideRoots:
		return "path_outside_roots"
	case ReasonMalformed:
		return "malformed_request"
	default:
		return "unknown"
	}
}

// Result describes the outcome of a policy check. Beyond the decision
// it carries the evaluation trace: a human-readable detail line, the
// canonical path for file requests, and per-step results for plans.
type Result struct {
	// Decision is Allow or Deny.
	Decision Decision

	// Reason describes why the check was denied. Only meaningful when
	// Decision is Deny.
	Reason DenyReason

	// Detail is a human-readable explanation for the denial, or empty.
	Detail string

	// CanonicalPath is the absolute, symlink-resolved form of the
	// request path. Set for allowed file requests; the executor acts
	// on this path, never on the nominal one.
	CanonicalPath string

	// WorkingDirectory is the canonical working directory for command
	// requests. Set for allowed commands.
	WorkingDirectory string

	// Steps holds the per-step results for a plan request, in step
	// order. Populated up to and including the first denied step.
	Steps []Result
}

// Allowed reports whether the decision is Allow.
func (r Result) Allowed() bool {
	return r.Decision == Allow
}

func deny(reason DenyReason, detail string) Result {
	return Result{Decision: Deny, Reason: reason, Detail: detail}
}

// Evaluate checks a request against the configuration and returns the
// decision with its trace. Evaluate is pure apart from read-only
// filesystem access for symlink resolution: it never executes
// anything, never writes, and holds no state, so any number of
// goroutines may call it concurrently.
//
// The request's working directory context is the process working
// directory; callers running commands elsewhere pass that directory
// through EvaluateIn.
func Evaluate(request action.Request, cfg *config.Config) Result {
	return EvaluateIn(request, cfg, "")
}

// EvaluateIn is Evaluate with an explicit working directory for
// command requests and relative paths. An empty workingDirectory means
// the process working directory.
func EvaluateIn(request action.Request, cfg *config.Config, workingDirectory string) Result {
	switch request.Kind {
	case action.KindCommand:
		return evaluateCommand(request.Argv, cfg, workingDirectory)
	case action.KindReadFile, action.KindWriteFile:
		return evaluatePath(request.Path, cfg, workingDirectory)
	case action.KindPlan:
		return evaluatePlan(request.Steps, cfg, workingDirectory)
	default:
		return deny(ReasonMalformed, "unknown request kind")
	}
}
