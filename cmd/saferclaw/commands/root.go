// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands defines the saferclaw command tree.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/saferclaw/saferclaw/cmd/saferclaw/cli"
	"github.com/saferclaw/saferclaw/lib/audit"
	"github.com/saferclaw/saferclaw/lib/config"
	"github.com/saferclaw/saferclaw/lib/executor"
	"github.com/saferclaw/saferclaw/lib/version"
)

// Root returns the saferclaw command tree.
func Root() *cli.Command {
	var showVersion bool
	root := &cli.Command{
		Name:    "saferclaw",
		Summary: "policy-gated local action execution",
		Description: `saferclaw runs commands, file operations, and plans through a policy
gate: an executable allowlist/denylist, allowed directory roots, output
ceilings, and an append-only audit trail. Actions can run directly, be
queued for later execution, or be proposed by a model and dispatched
through the same pipeline.`,
		Subcommands: []*cli.Command{
			runCommand(),
			readCommand(),
			writeCommand(),
			runPlanCommand(),
			queueCommand(),
			agentCommand(),
			auditCommand(),
			initConfigCommand(),
			doctorCommand(),
			versionCommand(),
		},
	}
	root.Flags = func() *pflag.FlagSet {
		flagSet := pflag.NewFlagSet("saferclaw", pflag.ContinueOnError)
		flagSet.BoolVar(&showVersion, "version", false, "print version information")
		return flagSet
	}
	root.Run = func(args []string) error {
		if showVersion {
			fmt.Println(version.Full())
			return nil
		}
		root.PrintHelp(os.Stderr)
		if len(args) > 0 {
			return fmt.Errorf("unknown command %q", args[0])
		}
		return fmt.Errorf("subcommand required")
	}
	return root
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "print version information",
		Run: func(args []string) error {
			fmt.Println(version.Full())
			return nil
		},
	}
}

// globalOptions are the flags shared by every action-executing
// command.
type globalOptions struct {
	configPath string
	cwd        string
	dryRun     bool
	yes        bool
	verbose    bool
}

func (g *globalOptions) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&g.configPath, "config", "", "config file (YAML, JSON, or JSONC)")
	flagSet.StringVar(&g.cwd, "cwd", "", "working directory for commands (must be inside allowed roots)")
	flagSet.BoolVar(&g.dryRun, "dry-run", false, "validate and audit, execute nothing")
	flagSet.BoolVar(&g.yes, "yes", false, "pre-authorize: skip the confirmation prompt")
	flagSet.BoolVarP(&g.verbose, "verbose", "v", false, "log operational detail to stderr")
}

func (g *globalOptions) logger() *slog.Logger {
	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// pipeline builds the config, audit recorder, and executor shared by
// the action commands. The caller closes the recorder.
func (g *globalOptions) pipeline() (*config.Config, *audit.Recorder, *executor.Executor, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	recorder, err := audit.Open(cfg.AuditPath, cfg.AuditMaxBytes, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	exec := &executor.Executor{
		Config:        cfg,
		Recorder:      recorder,
		Logger:        g.logger(),
		Confirm:       executor.TerminalConfirmer(os.Stdin, os.Stderr),
		PreAuthorized: g.yes,
		DryRun:        g.dryRun,
	}
	return cfg, recorder, exec, nil
}
