// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/saferclaw/saferclaw/cmd/saferclaw/cli"
	"github.com/saferclaw/saferclaw/lib/action"
	"github.com/saferclaw/saferclaw/lib/queue"
)

func queueCommand() *cli.Command {
	return &cli.Command{
		Name:    "queue",
		Summary: "durable job queue: enqueue, work, list",
		Subcommands: []*cli.Command{
			queueEnqueueCommand(),
			queueWorkCommand(),
			queueListCommand(),
		},
	}
}

func queueEnqueueCommand() *cli.Command {
	globals := &globalOptions{}
	var (
		readPath  string
		writePath string
		content   string
		planFile  string
		attempts  int
	)
	return &cli.Command{
		Name:    "enqueue",
		Summary: "persist an action as a queued job",
		Usage:   `saferclaw queue enqueue [flags] [-- <command> [args...]]`,
		Description: `Enqueue an action for later execution by a queue worker. Without
flags the positional arguments form a command; --read, --write, and
--plan enqueue the other action kinds. Policy runs at execution time,
not enqueue time.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("enqueue", pflag.ContinueOnError)
			globals.register(flagSet)
			flagSet.StringVar(&readPath, "read", "", "enqueue a file read of this path")
			flagSet.StringVar(&writePath, "write", "", "enqueue a file write to this path")
			flagSet.StringVar(&content, "content", "", "content for --write")
			flagSet.StringVar(&planFile, "plan", "", "enqueue the plan in this file")
			flagSet.IntVar(&attempts, "max-attempts", 0, "execution attempts before the job fails (default from config)")
			return flagSet
		},
		Run: func(args []string) error {
			request, err := enqueueRequest(readPath, writePath, content, planFile, args)
			if err != nil {
				return err
			}
			cfg, recorder, _, err := globals.pipeline()
			if err != nil {
				return err
			}
			defer recorder.Close()

			store, err := queue.Open(cfg.QueuePath, nil, globals.logger())
			if err != nil {
				return err
			}
			defer store.Close()

			if attempts <= 0 {
				attempts = cfg.MaxJobAttempts
			}
			job, err := store.Enqueue(context.Background(), request, attempts)
			if err != nil {
				return err
			}
			fmt.Printf("job %d queued: %s\n", job.ID, request.Summary())
			return nil
		},
	}
}

func enqueueRequest(readPath, writePath, content, planFile string, args []string) (action.Request, error) {
	switch {
	case readPath != "":
		return action.NewReadFile(readPath), nil
	case writePath != "":
		return action.NewWriteFile(writePath, []byte(content)), nil
	case planFile != "":
		data, err := os.ReadFile(planFile)
		if err != nil {
			return action.Request{}, fmt.Errorf("enqueue: %w", err)
		}
		return action.ParsePlanFile(data)
	case len(args) == 1:
		argv, err := action.Tokenize(args[0])
		if err != nil {
			return action.Request{}, fmt.Errorf("enqueue: %w", err)
		}
		return action.NewCommand(argv...), nil
	case len(args) > 1:
		return action.NewCommand(args...), nil
	default:
		return action.Request{}, fmt.Errorf("enqueue: an action is required")
	}
}

func queueWorkCommand() *cli.Command {
	globals := &globalOptions{}
	var poll time.Duration
	return &cli.Command{
		Name:    "work",
		Summary: "process queued jobs until interrupted",
		Usage:   `saferclaw queue work [flags]`,
		Description: `Claim and execute queued jobs in a loop. Workers are non-interactive:
if the config requires confirmation, either disable it there or pass
--yes; otherwise every job fails its attempts at the closed gate.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("work", pflag.ContinueOnError)
			globals.register(flagSet)
			flagSet.DurationVar(&poll, "poll", time.Second, "sleep between claims when the queue is empty")
			return flagSet
		},
		Run: func(args []string) error {
			cfg, recorder, exec, err := globals.pipeline()
			if err != nil {
				return err
			}
			defer recorder.Close()
			// No terminal gate in a worker; --yes or config decides.
			exec.Confirm = nil

			store, err := queue.Open(cfg.QueuePath, nil, globals.logger())
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			worker := &queue.Worker{
				Store:        store,
				Config:       cfg,
				Executor:     exec,
				Logger:       globals.logger(),
				PollInterval: poll,
			}
			return worker.Run(ctx)
		},
	}
}

func queueListCommand() *cli.Command {
	globals := &globalOptions{}
	var (
		status string
		limit  int
	)
	return &cli.Command{
		Name:    "list",
		Summary: "list jobs and their statuses",
		Usage:   `saferclaw queue list [flags]`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			globals.register(flagSet)
			flagSet.StringVar(&status, "status", "", "filter by status (queued, running, done, failed, blocked)")
			flagSet.IntVar(&limit, "limit", 50, "maximum jobs to list (0 for all)")
			return flagSet
		},
		Run: func(args []string) error {
			cfg, recorder, _, err := globals.pipeline()
			if err != nil {
				return err
			}
			defer recorder.Close()

			store, err := queue.Open(cfg.QueuePath, nil, globals.logger())
			if err != nil {
				return err
			}
			defer store.Close()

			jobs, err := store.List(context.Background(), queue.Status(status), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "ID\tKIND\tSTATUS\tATTEMPTS\tCREATED\tLAST ERROR")
			for _, job := range jobs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d/%d\t%s\t%s\n",
					job.ID, job.Kind, job.Status, job.Attempts, job.MaxAttempts,
					job.CreatedAt.Local().Format(time.DateTime), job.LastError)
			}
			return tw.Flush()
		},
	}
}
