// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/saferclaw/saferclaw/lib/action"
	"github.com/saferclaw/saferclaw/lib/policy"
)

// readFile returns the content of an approved path, bounded by the
// output ceiling with the usual truncation marker.
func (e *Executor) readFile(canonicalPath string) Result {
	result := Result{Kind: action.KindReadFile}
	started := e.clock().Now()
	defer func() { result.Elapsed = e.clock().Now().Sub(started) }()

	file, err := os.Open(canonicalPath)
	if err != nil {
		result.Failure = FailureIO
		result.Detail = err.Error()
		return result
	}
	defer file.Close()

	limit := e.Config.MaxOutputBytes
	content, err := io.ReadAll(io.LimitReader(file, int64(limit)+1))
	if err != nil {
		result.Failure = FailureIO
		result.Detail = err.Error()
		return result
	}
	if len(content) > limit {
		content = append(content[:limit], []byte(TruncationMarker)...)
		result.Truncated = true
		result.BytesRead = limit
	} else {
		result.BytesRead = len(content)
	}
	result.Content = content
	result.Success = true
	return result
}

// writeFile writes the request content to the canonical path the
// decision approved. The target is re-resolved immediately before the
// write: a symlink swapped in after validation must not redirect the
// write, outside the allowed roots or anywhere else. Rechecking the
// decision's canonical path (always absolute) rather than the nominal
// request path also keeps relative paths anchored to the working
// directory the decision resolved them against, not wherever the
// process happens to be running at execution time.
func (e *Executor) writeFile(request action.Request, decision policy.Result) Result {
	result := Result{Kind: action.KindWriteFile}
	started := e.clock().Now()
	defer func() { result.Elapsed = e.clock().Now().Sub(started) }()

	recheck := policy.Evaluate(action.NewWriteFile(decision.CanonicalPath, nil), e.Config)
	if !recheck.Allowed() {
		result.Failure = FailureIO
		result.Detail = fmt.Sprintf("write target left allowed roots: %s", recheck.Detail)
		return result
	}
	if recheck.CanonicalPath != decision.CanonicalPath {
		result.Failure = FailureIO
		result.Detail = fmt.Sprintf("write target moved after validation: %s resolves to %s",
			decision.CanonicalPath, recheck.CanonicalPath)
		return result
	}
	target := recheck.CanonicalPath

	// Intermediate directories stay inside the roots by construction:
	// they are ancestors of a contained canonical path.
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		result.Failure = FailureIO
		result.Detail = err.Error()
		return result
	}
	if err := os.WriteFile(target, request.Content, 0o644); err != nil {
		result.Failure = FailureIO
		result.Detail = err.Error()
		return result
	}
	result.BytesWritten = len(request.Content)
	result.Success = true
	return result
}
