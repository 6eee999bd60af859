// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package executor

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup puts the child in its own process group so a timeout
// kill reaches the whole tree, not just the direct child.
func setProcessGroup(command *exec.Cmd) {
	command.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup kills the child's entire process group. A command
// that forks helpers (git spawning ssh, find spawning exec'd tools)
// leaves no survivors behind.
func killProcessGroup(command *exec.Cmd) error {
	if command.Process == nil {
		return nil
	}
	pgid, err := unix.Getpgid(command.Process.Pid)
	if err != nil {
		return command.Process.Kill()
	}
	return unix.Kill(-pgid, unix.SIGKILL)
}
