// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/saferclaw/saferclaw/cmd/saferclaw/cli"
	"github.com/saferclaw/saferclaw/lib/config"
	"github.com/saferclaw/saferclaw/lib/preflight"
)

func initConfigCommand() *cli.Command {
	return &cli.Command{
		Name:    "init-config",
		Summary: "write a commented default config file",
		Usage:   `saferclaw init-config [path]`,
		Run: func(args []string) error {
			path := ".saferclaw.yaml"
			if len(args) == 1 {
				path = args[0]
			} else if len(args) > 1 {
				return fmt.Errorf("init-config: at most one path")
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
}

func doctorCommand() *cli.Command {
	globals := &globalOptions{}
	return &cli.Command{
		Name:    "doctor",
		Summary: "check that the environment supports the configured policy",
		Usage:   `saferclaw doctor [flags]`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("doctor", pflag.ContinueOnError)
			globals.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			cfg, err := config.Load(globals.configPath)
			if err != nil {
				return err
			}

			validator := preflight.NewValidator()
			validator.ValidateAll(cfg)

			for _, result := range validator.Results() {
				mark := "ok"
				switch {
				case !result.Passed:
					mark = "FAIL"
				case result.Warning:
					mark = "warn"
				}
				fmt.Fprintf(os.Stdout, "[%s] %s: %s\n", mark, result.Name, result.Message)
			}

			if validator.HasErrors() {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}
