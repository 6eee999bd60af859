// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/saferclaw/saferclaw/cmd/saferclaw/cli"
	"github.com/saferclaw/saferclaw/lib/agent"
	"github.com/saferclaw/saferclaw/lib/llm"
	"github.com/saferclaw/saferclaw/lib/workspace"
)

func agentCommand() *cli.Command {
	globals := &globalOptions{}
	var (
		provider      string
		model         string
		workspaceRoot string
		maxTurns      int
	)
	return &cli.Command{
		Name:    "agent",
		Summary: "let a model act through the guarded pipeline",
		Usage:   `saferclaw agent [flags] <prompt...>`,
		Description: `Send a prompt to a model whose tool calls all pass through the same
policy gate as direct commands. API keys come from the environment
(ANTHROPIC_API_KEY or OPENAI_API_KEY), never from config files.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("agent", pflag.ContinueOnError)
			globals.register(flagSet)
			flagSet.StringVar(&provider, "provider", "anthropic", "model provider: anthropic or openai")
			flagSet.StringVar(&model, "model", "", "model name (required)")
			flagSet.StringVar(&workspaceRoot, "workspace", "", "workspace directory with profile markdown")
			flagSet.IntVar(&maxTurns, "max-turns", 0, "model round-trip budget")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("agent: prompt required")
			}
			if model == "" {
				return fmt.Errorf("agent: --model is required")
			}

			client, err := buildClient(provider, model)
			if err != nil {
				return err
			}

			var profile *workspace.Workspace
			if workspaceRoot != "" {
				profile, err = workspace.Load(workspaceRoot)
				if err != nil {
					return err
				}
			}

			cfg, recorder, exec, err := globals.pipeline()
			if err != nil {
				return err
			}
			defer recorder.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			loop := &agent.Agent{
				Client:    client,
				Config:    cfg,
				Executor:  exec,
				Workspace: profile,
				Logger:    globals.logger(),
				MaxTurns:  maxTurns,
			}
			final, err := loop.Run(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Println(final)
			return nil
		},
	}
}

func buildClient(provider, model string) (llm.Client, error) {
	switch provider {
	case "anthropic":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("agent: ANTHROPIC_API_KEY is not set")
		}
		return llm.NewAnthropic(nil, "", key, model), nil
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("agent: OPENAI_API_KEY is not set")
		}
		return llm.NewOpenAI(nil, "", key, model), nil
	default:
		return nil, fmt.Errorf("agent: unknown provider %q", provider)
	}
}
