// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/saferclaw/saferclaw/cmd/saferclaw/cli"
	"github.com/saferclaw/saferclaw/lib/audit"
	"github.com/saferclaw/saferclaw/lib/config"
)

func auditCommand() *cli.Command {
	return &cli.Command{
		Name:    "audit",
		Summary: "inspect the audit trail",
		Subcommands: []*cli.Command{
			auditTailCommand(),
		},
	}
}

func auditTailCommand() *cli.Command {
	globals := &globalOptions{}
	var (
		count   int
		rawJSON bool
	)
	return &cli.Command{
		Name:    "tail",
		Summary: "print the most recent audit events",
		Usage:   `saferclaw audit tail [flags]`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("tail", pflag.ContinueOnError)
			globals.register(flagSet)
			flagSet.IntVarP(&count, "count", "n", 20, "number of events")
			flagSet.BoolVar(&rawJSON, "json", false, "print raw JSONL instead of a table")
			return flagSet
		},
		Run: func(args []string) error {
			cfg, err := config.Load(globals.configPath)
			if err != nil {
				return err
			}
			events, err := audit.Tail(cfg.AuditPath, count)
			if err != nil {
				return err
			}

			if rawJSON {
				encoder := json.NewEncoder(os.Stdout)
				for _, event := range events {
					if err := encoder.Encode(event); err != nil {
						return err
					}
				}
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "TIME\tACTION\tSTATUS\tREASON")
			for _, event := range events {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					event.Timestamp.Local().Format(time.DateTime),
					event.Action, event.Status, event.Reason)
			}
			return tw.Flush()
		},
	}
}
