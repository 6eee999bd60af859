// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package executor

import "os/exec"

// setProcessGroup is a no-op on Windows; there is no process-group
// kill, so a timeout reaches only the direct child.
func setProcessGroup(command *exec.Cmd) {}

func killProcessGroup(command *exec.Cmd) error {
	if command.Process == nil {
		return nil
	}
	return command.Process.Kill()
}
