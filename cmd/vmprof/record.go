// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vmprof/vmprof-go/profiler"
)

type recordFlags struct {
	output   string
	web      bool
	webURL   string
	webAuth  string
	period   time.Duration
	memory   bool
	lines    bool
	jitlog   bool
	duration time.Duration
	workload string
}

// workloads are the built-in functions record can profile.
var workloads = map[string]func(ctx context.Context, d time.Duration) error{
	"hash":  hashWorkload,
	"alloc": allocWorkload,
}

func recordFlagSet(f *recordFlags) *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.StringVarP(&f.output, "output", "o", "", "write the profile to `file` instead of printing it")
	flags.BoolVar(&f.web, "web", false, "upload the profile to a vmprof server")
	flags.StringVar(&f.webURL, "web-url", profiler.DefaultWebURL, "vmprof server `url`")
	flags.StringVar(&f.webAuth, "web-auth", "", "authentication `token`")
	flags.DurationVar(&f.period, "period", profiler.DefaultPeriod, "sampling period")
	flags.BoolVar(&f.memory, "mem", false, "also record allocations")
	flags.BoolVar(&f.lines, "lines", false, "keep line numbers of samples")
	flags.BoolVar(&f.jitlog, "jitlog", false, "also record a JIT log when the runtime supports it")
	flags.DurationVarP(&f.duration, "duration", "d", time.Second, "how long the workload runs")
	flags.StringVarP(&f.workload, "workload", "w", "hash", "built-in workload to profile: hash or alloc")
	return flags
}

func getCmdRecord(gs *globalState) *cobra.Command {
	f := &recordFlags{}
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Profile a built-in workload",
		Long: `Profile a built-in workload with the same middleware applications use.

Without --output or --web the profile is printed to the terminal.`,
		Example: `  vmprof record --duration 2s
  vmprof record --workload alloc --mem --output alloc.prof
  vmprof record --web --web-url http://localhost:8000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRecord(gs, cmd, f)
		},
	}
	cmd.Flags().AddFlagSet(recordFlagSet(f))
	return cmd
}

func runRecord(gs *globalState, cmd *cobra.Command, f *recordFlags) error {
	work, ok := workloads[f.workload]
	if !ok {
		return fmt.Errorf("unknown workload %q", f.workload)
	}
	client, err := gs.statsd()
	if err != nil {
		return err
	}
	defer client.Close()

	opts := []profiler.Option{
		profiler.WithStdout(gs.stdout),
		profiler.WithStderr(gs.stderr),
		profiler.WithStatsd(client),
	}
	// Only flags set on the command line override the environment.
	changed := cmd.Flags().Changed
	if changed("mem") {
		opts = append(opts, profiler.WithMemory(f.memory))
	}
	if changed("lines") {
		opts = append(opts, profiler.WithLines(f.lines))
	}
	if changed("jitlog") {
		opts = append(opts, profiler.WithJITLog(f.jitlog))
	}
	if changed("period") {
		opts = append(opts, profiler.WithPeriod(f.period))
	}
	if changed("output") {
		opts = append(opts, profiler.WithOutput(f.output))
	}
	if changed("web") {
		opts = append(opts, profiler.WithWeb(f.web))
	}
	if changed("web-url") {
		opts = append(opts, profiler.WithWebURL(f.webURL))
	}
	if changed("web-auth") {
		opts = append(opts, profiler.WithWebAuth(f.webAuth))
	}
	m, err := profiler.New(opts...)
	if err != nil {
		return err
	}
	gs.logger.WithField("mode", m.Mode()).WithField("workload", f.workload).Debug("recording")
	return m.Call(gs.ctx, func(ctx context.Context) error {
		return work(ctx, f.duration)
	})
}

func hashWorkload(ctx context.Context, d time.Duration) error {
	deadline := time.Now().Add(d)
	sum := sha256.Sum256([]byte("vmprof"))
	for i := 0; time.Now().Before(deadline); i++ {
		if i%1024 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		sum = sha256.Sum256(sum[:])
	}
	return nil
}

var allocSink [][]byte

// maxAllocs bounds the heap growth of allocWorkload while the collector is off.
const maxAllocs = 1 << 14

func allocWorkload(ctx context.Context, d time.Duration) error {
	deadline := time.Now().Add(d)
	for i := 0; i < maxAllocs && time.Now().Before(deadline); i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		allocSink = append(allocSink, make([]byte, 4096))
		if len(allocSink) > 1024 {
			allocSink = allocSink[:0]
		}
	}
	allocSink = nil
	return nil
}
