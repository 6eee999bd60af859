// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/saferclaw/saferclaw/lib/action"
)

// Confirmer answers whether an approved action may proceed. Returning
// an error counts as no: an unavailable gate fails closed, never open.
type Confirmer func(request action.Request) (bool, error)

// TerminalConfirmer prompts on a terminal and reads a yes/no answer.
// When input is not a terminal (a pipe, a queue worker, a CI job), the
// gate refuses rather than guessing — non-interactive contexts must
// disable confirmation explicitly instead of having it silently
// skipped.
func TerminalConfirmer(input *os.File, output io.Writer) Confirmer {
	return func(request action.Request) (bool, error) {
		if !term.IsTerminal(int(input.Fd())) {
			return false, fmt.Errorf("confirmation required but input is not a terminal")
		}
		fmt.Fprintf(output, "About to execute: %s\nProceed? [y/N] ", request.Summary())

		reader := bufio.NewReader(input)
		answer, err := reader.ReadString('\n')
		if err != nil && answer == "" {
			return false, fmt.Errorf("reading confirmation: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}
