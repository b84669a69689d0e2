// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	vmlogrus "github.com/vmprof/vmprof-go/contrib/sirupsen/logrus"
	"github.com/vmprof/vmprof-go/internal/version"
	"github.com/vmprof/vmprof-go/profiler"
)

var bannerColor = color.New(color.FgCyan)

type globalFlags struct {
	verbose    bool
	noColor    bool
	statsdAddr string
}

// globalState holds everything the commands share. Tests build their own
// with in-memory writers.
type globalState struct {
	ctx    context.Context
	stdout io.Writer
	stderr io.Writer
	logger *logrus.Logger
	flags  globalFlags

	undoLogger func()
}

func newGlobalState(ctx context.Context, stdout, stderr io.Writer) *globalState {
	logger := logrus.New()
	logger.SetOutput(stderr)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return &globalState{
		ctx:    ctx,
		stdout: stdout,
		stderr: stderr,
		logger: logger,
	}
}

// statsd returns a client for the configured address, or a no-op client.
func (gs *globalState) statsd() (statsd.ClientInterface, error) {
	if gs.flags.statsdAddr == "" {
		return &statsd.NoOpClient{}, nil
	}
	client, err := statsd.New(gs.flags.statsdAddr)
	if err != nil {
		return nil, fmt.Errorf("connecting to statsd at %s: %w", gs.flags.statsdAddr, err)
	}
	return client, nil
}

func rootFlagSet(gs *globalState) *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.BoolVarP(&gs.flags.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&gs.flags.noColor, "no-color", false, "disable colored output")
	flags.StringVar(&gs.flags.statsdAddr, "statsd-addr", "", "send metrics to the statsd agent at `address`")
	return flags
}

func newRootCommand(gs *globalState) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vmprof",
		Short:         "record, display and upload vmprof profiles",
		Long:          bannerColor.Sprintf("vmprof %s", version.Tag),
		Version:       version.Tag,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if gs.flags.noColor {
				color.NoColor = true
			}
			if gs.flags.verbose {
				gs.logger.SetLevel(logrus.DebugLevel)
				profiler.SetLogLevel(profiler.LogLevelDebug)
			}
			gs.undoLogger = profiler.UseLogger(vmlogrus.NewLogger(logrus.NewEntry(gs.logger)))
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if gs.flags.verbose {
				profiler.SetLogLevel(profiler.LogLevelWarn)
			}
			if gs.undoLogger != nil {
				gs.undoLogger()
			}
		},
	}
	cmd.SetOut(gs.stdout)
	cmd.SetErr(gs.stderr)
	cmd.PersistentFlags().AddFlagSet(rootFlagSet(gs))

	cmd.AddCommand(
		getCmdFold(gs),
		getCmdRecord(gs),
		getCmdShow(gs),
		getCmdUpload(gs),
		getCmdVersion(gs),
	)
	return cmd
}
