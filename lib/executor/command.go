// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/saferclaw/saferclaw/lib/action"
)

// TruncationMarker is appended wherever captured output or file
// content exceeds the configured byte ceiling. The head of the output
// is kept; the tail is dropped.
const TruncationMarker = "\n...[truncated]"

// fallbackPath is injected when PATH is not among the allowed
// environment variables. Without it exec.LookPath finds nothing and
// every allowlisted command would spawn-fail.
const fallbackPath = "PATH=/usr/local/bin:/usr/bin:/bin"

// runCommand spawns argv directly, without any shell. The process gets
// a filtered environment, runs in its own process group, and is killed
// as a group when the timeout expires.
func (e *Executor) runCommand(ctx context.Context, argv []string, workingDirectory string) Result {
	result := Result{Kind: action.KindCommand}

	timeoutCtx, cancel := context.WithTimeout(ctx, e.Config.CommandTimeout())
	defer cancel()

	command := exec.CommandContext(timeoutCtx, argv[0], argv[1:]...)
	command.Dir = workingDirectory
	command.Env = filterEnvironment(os.Environ(), e.Config.AllowedEnv)
	setProcessGroup(command)
	command.Cancel = func() error { return killProcessGroup(command) }
	command.WaitDelay = 2 * time.Second

	stdout := &boundedBuffer{limit: e.Config.MaxOutputBytes}
	stderr := &boundedBuffer{limit: e.Config.MaxOutputBytes}
	command.Stdout = stdout
	command.Stderr = stderr

	started := e.clock().Now()
	err := command.Run()
	result.Elapsed = e.clock().Now().Sub(started)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	result.Truncated = stdout.truncated || stderr.truncated

	switch {
	case err == nil:
		result.Success = true
	case timeoutCtx.Err() == context.DeadlineExceeded:
		result.Failure = FailureTimeout
		result.Detail = "command exceeded " + e.Config.CommandTimeout().String()
		result.ExitCode = -1
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.Failure = FailureNonZeroExit
			result.ExitCode = exitErr.ExitCode()
			result.Detail = err.Error()
		} else {
			result.Failure = FailureSpawn
			result.ExitCode = -1
			result.Detail = err.Error()
		}
	}
	return result
}

// filterEnvironment keeps only the variables whose names appear in
// allowed. Names are matched exactly; environment variable names are
// case-sensitive. PATH gets a minimal fallback when stripped.
func filterEnvironment(environ, allowed []string) []string {
	allowedNames := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		allowedNames[name] = true
	}

	var filtered []string
	havePath := false
	for _, entry := range environ {
		name, _, ok := strings.Cut(entry, "=")
		if !ok || !allowedNames[name] {
			continue
		}
		if name == "PATH" {
			havePath = true
		}
		filtered = append(filtered, entry)
	}
	if !havePath {
		filtered = append(filtered, fallbackPath)
	}
	return filtered
}

// boundedBuffer keeps the first limit bytes written and notes whether
// anything was dropped. It never returns a write error: a chatty child
// process keeps running, its excess output simply vanishes.
type boundedBuffer struct {
	limit     int
	data      []byte
	truncated bool
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	room := b.limit - len(b.data)
	if room <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		b.data = append(b.data, p[:room]...)
		b.truncated = true
		return len(p), nil
	}
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	if b.truncated {
		return string(b.data) + TruncationMarker
	}
	return string(b.data)
}
