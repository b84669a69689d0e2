// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

package main

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/vmprof/vmprof-go/internal/version"
	"github.com/vmprof/vmprof-go/profiler"
)

func getCmdVersion(gs *globalState) *cobra.Command {
	var isJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show application version",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			details := map[string]string{
				"version":        version.Tag,
				"go":             runtime.Version(),
				"implementation": profiler.Implementation(),
			}
			if !isJSON {
				_, err := fmt.Fprintf(gs.stdout, "vmprof %s (%s, %s)\n",
					details["version"], details["go"], details["implementation"])
				return err
			}
			out, err := json.Marshal(details)
			if err != nil {
				return fmt.Errorf("failed to produce JSON version details: %w", err)
			}
			_, err = fmt.Fprintln(gs.stdout, string(out))
			return err
		},
	}
	cmd.Flags().BoolVar(&isJSON, "json", false, "print version information in JSON format")
	return cmd
}
