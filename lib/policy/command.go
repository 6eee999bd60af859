// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/saferclaw/saferclaw/lib/config"
)

// shellOperators are rejected in any command token. The request is
// already argument-vectorized and never reaches a shell, but a caller
// that concatenates user text before tokenizing could smuggle an
// operator into a token; rejecting them here keeps that mistake
// harmless.
var shellOperators = []string{"&&", "||", "|", ";", "`", "$(", "\n"}

// networkExecutables are denied unless the network-access flag is on,
// regardless of allowlist membership.
var networkExecutables = map[string]bool{
	"curl":   true,
	"wget":   true,
	"nc":     true,
	"ncat":   true,
	"netcat": true,
	"ssh":    true,
	"scp":    true,
	"sftp":   true,
	"ftp":    true,
}

// evaluateCommand validates an argument vector. Order matters: shape
// checks first, then the operator scan, then denylist before
// allowlist (denylist precedence is absolute), then argument path
// screening.
func evaluateCommand(argv []string, cfg *config.Config, workingDirectory string) Result {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return deny(ReasonMalformed, "empty command")
	}

	for _, token := range argv {
		if strings.ContainsRune(token, 0) {
			return deny(ReasonMalformed, "command token contains NUL byte")
		}
		for _, operator := range shellOperators {
			if strings.Contains(token, operator) {
				return deny(ReasonShellOperator,
					fmt.Sprintf("shell operator %q in token %q", printableOperator(operator), token))
			}
		}
	}

	executable := strings.ToLower(filepath.Base(argv[0]))
	if cfg.CommandDenied(executable) {
		return deny(ReasonDenylisted, fmt.Sprintf("executable is denied: %s", executable))
	}
	if networkExecutables[executable] && !cfg.NetworkAccess {
		return deny(ReasonDenylisted,
			fmt.Sprintf("network executable blocked by policy: %s", executable))
	}
	if !cfg.CommandAllowed(executable) {
		return deny(ReasonNotAllowlisted,
			fmt.Sprintf("executable is not allowlisted: %s", executable))
	}

	// The command runs inside an allowed root.
	workingResult := evaluatePath(defaultDirectory(workingDirectory), cfg, "")
	if !workingResult.Allowed() {
		return workingResult
	}

	// Screen arguments that look like paths. Flags are skipped; bare
	// words without separators (subcommands, patterns) are skipped.
	for _, argument := range argv[1:] {
		if strings.HasPrefix(argument, "-") {
			continue
		}
		if !looksLikePath(argument) {
			continue
		}
		if result := evaluatePath(argument, cfg, workingResult.CanonicalPath); !result.Allowed() {
			result.Detail = fmt.Sprintf("argument %q: %s", argument, result.Detail)
			return result
		}
	}

	return Result{Decision: Allow, WorkingDirectory: workingResult.CanonicalPath}
}

func defaultDirectory(workingDirectory string) string {
	if workingDirectory == "" {
		return "."
	}
	return workingDirectory
}

// looksLikePath reports whether a command argument plausibly names a
// filesystem location worth containment-checking.
func looksLikePath(argument string) bool {
	return strings.Contains(argument, "/") ||
		strings.HasPrefix(argument, "~") ||
		strings.Contains(argument, "..")
}

// printableOperator renders the newline operator readably in denial
// details.
func printableOperator(operator string) string {
	if operator == "\n" {
		return "\\n"
	}
	return operator
}
