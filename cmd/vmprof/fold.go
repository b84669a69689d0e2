// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

package main

import (
	"github.com/spf13/cobra"

	"github.com/vmprof/vmprof-go/profiler/cli"
)

func getCmdFold(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:     "fold <profile>",
		Short:   "Print a recorded profile as folded stacks",
		Example: `  vmprof fold cpu.prof | flamegraph.pl > cpu.svg`,
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			p, err := cli.ReadProfile(args[0])
			if err != nil {
				return err
			}
			return cli.Fold(gs.stdout, p)
		},
	}
}
