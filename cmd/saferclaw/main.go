// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/saferclaw/saferclaw/cmd/saferclaw/commands"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own output (doctor, a failed run)
		// return an exit error with the desired code. Don't add a
		// redundant "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return commands.Root().Execute(os.Args[1:])
}
