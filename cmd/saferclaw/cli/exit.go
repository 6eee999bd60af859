// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError carries an exit code from a command that has already
// printed its own output. main exits with the code without adding a
// redundant error line.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the process exit code.
func (e *ExitError) ExitCode() int {
	return e.Code
}
