// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/saferclaw/saferclaw/cmd/saferclaw/cli"
	"github.com/saferclaw/saferclaw/lib/action"
	"github.com/saferclaw/saferclaw/lib/executor"
	"github.com/saferclaw/saferclaw/lib/policy"
)

func runCommand() *cli.Command {
	globals := &globalOptions{}
	return &cli.Command{
		Name:    "run",
		Summary: "run an allowlisted command",
		Usage:   `saferclaw run [flags] -- <command> [args...]`,
		Description: `Run a command through the policy gate. A single argument is tokenized
without shell semantics; multiple arguments are used as the argument
vector directly. Shell operators are rejected either way.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			globals.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("run: command required")
			}
			argv := args
			if len(args) == 1 {
				tokens, err := action.Tokenize(args[0])
				if err != nil {
					return fmt.Errorf("run: %w", err)
				}
				argv = tokens
			}
			return executeRequest(globals, action.NewCommand(argv...))
		},
	}
}

func readCommand() *cli.Command {
	globals := &globalOptions{}
	return &cli.Command{
		Name:    "read",
		Summary: "read a file inside the allowed roots",
		Usage:   `saferclaw read [flags] <path>`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("read", pflag.ContinueOnError)
			globals.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("read: exactly one path required")
			}
			return executeRequest(globals, action.NewReadFile(args[0]))
		},
	}
}

func writeCommand() *cli.Command {
	globals := &globalOptions{}
	return &cli.Command{
		Name:    "write",
		Summary: "write a file inside the allowed roots",
		Usage:   `saferclaw write [flags] <path> <content|->`,
		Description: `Write content to a file through the policy gate. Pass "-" as the
content to read it from stdin.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("write", pflag.ContinueOnError)
			globals.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("write: path and content required")
			}
			content := []byte(args[1])
			if args[1] == "-" {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("write: reading stdin: %w", err)
				}
				content = data
			}
			return executeRequest(globals, action.NewWriteFile(args[0], content))
		},
	}
}

func runPlanCommand() *cli.Command {
	globals := &globalOptions{}
	return &cli.Command{
		Name:    "run-plan",
		Summary: "run an ordered plan of steps from a file",
		Usage:   `saferclaw run-plan [flags] <plan.json>`,
		Description: `Run a plan document: a JSON (or JSONC) array of steps, each with
exactly one of "command", "read_file", or "write_file". The plan
executes only if every step passes policy; execution stops at the
first failing step.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run-plan", pflag.ContinueOnError)
			globals.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("run-plan: exactly one plan file required")
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("run-plan: %w", err)
			}
			plan, err := action.ParsePlanFile(data)
			if err != nil {
				return fmt.Errorf("run-plan: %w", err)
			}
			return executeRequest(globals, plan)
		},
	}
}

// executeRequest drives one request through policy and the executor
// and renders the outcome.
func executeRequest(globals *globalOptions, request action.Request) error {
	cfg, recorder, exec, err := globals.pipeline()
	if err != nil {
		return err
	}
	defer recorder.Close()

	decision := policy.EvaluateIn(request, cfg, globals.cwd)
	if !decision.Allowed() {
		if err := exec.RecordDenial(request, decision); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "denied (%s): %s\n", decision.Reason, decision.Detail)
		return &cli.ExitError{Code: 2}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := exec.Execute(ctx, request, decision)
	if err != nil {
		return err
	}
	return renderResult(result)
}

func renderResult(result executor.Result) error {
	switch {
	case result.Skipped:
		fmt.Fprintf(os.Stderr, "skipped: %s\n", result.Detail)
		return nil
	case result.Kind == action.KindReadFile:
		os.Stdout.Write(result.Content)
	case result.Kind == action.KindWriteFile:
		if result.Success {
			fmt.Printf("wrote %d bytes\n", result.BytesWritten)
		}
	case result.Kind == action.KindPlan:
		for i, step := range result.Steps {
			status := "ok"
			switch {
			case step.Skipped:
				status = "skipped"
			case !step.Success:
				status = string(step.Failure)
			}
			fmt.Printf("step %d: %s\n", i+1, status)
		}
	default:
		os.Stdout.WriteString(result.Stdout)
		os.Stderr.WriteString(result.Stderr)
	}

	if !result.Success {
		fmt.Fprintf(os.Stderr, "failed (%s): %s\n", result.Failure, result.Detail)
		code := 1
		if result.Kind == action.KindCommand && result.ExitCode > 0 {
			code = result.ExitCode
		}
		return &cli.ExitError{Code: code}
	}
	return nil
}
