// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

package main

import (
	"github.com/spf13/cobra"

	"github.com/vmprof/vmprof-go/profiler/cli"
)

func getCmdShow(gs *globalState) *cobra.Command {
	var opts cli.Options
	cmd := &cobra.Command{
		Use:   "show <profile>",
		Short: "Print a summary of a recorded profile",
		Long: `Print a summary of a recorded profile.

The profile is read from a file written with "vmprof record --output" or by a
middleware running in file mode.`,
		Example: `  vmprof show cpu.prof
  vmprof show --lines --top 50 cpu.prof`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			p, err := cli.ReadProfile(args[0])
			if err != nil {
				return err
			}
			return cli.Show(gs.stdout, p, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Lines, "lines", false, "show the source line of every entry")
	cmd.Flags().IntVar(&opts.Top, "top", cli.DefaultTop, "number of entries to show")
	return cmd
}
