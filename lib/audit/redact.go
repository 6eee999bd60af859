// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/saferclaw/saferclaw/lib/action"
)

// maxPayloadString bounds any single string recorded in an audit
// payload. Full command lines and paths fit; pathological arguments do
// not bloat the trail.
const maxPayloadString = 512

// RedactPayload summarizes a request for the audit trail. File content
// never appears in the trail: writes record a BLAKE3 digest and byte
// count instead, so the trail proves what was written without
// retaining it.
func RedactPayload(request action.Request) map[string]any {
	switch request.Kind {
	case action.KindCommand:
		argv := make([]string, len(request.Argv))
		for i, token := range request.Argv {
			argv[i] = clip(token)
		}
		return map[string]any{"command": argv}
	case action.KindReadFile:
		return map[string]any{"path": clip(request.Path)}
	case action.KindWriteFile:
		digest := blake3.Sum256(request.Content)
		return map[string]any{
			"path":           clip(request.Path),
			"content_bytes":  len(request.Content),
			"content_blake3": fmt.Sprintf("%x", digest),
		}
	case action.KindPlan:
		steps := make([]map[string]any, len(request.Steps))
		for i, step := range request.Steps {
			steps[i] = RedactPayload(step)
		}
		return map[string]any{"steps": steps}
	default:
		return map[string]any{"kind": request.Kind.String()}
	}
}

func clip(s string) string {
	if len(s) <= maxPayloadString {
		return s
	}
	return s[:maxPayloadString] + "..."
}
