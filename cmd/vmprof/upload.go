// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vmprof/vmprof-go/internal/env"
	"github.com/vmprof/vmprof-go/profiler"
	"github.com/vmprof/vmprof-go/service"
)

type uploadFlags struct {
	jitlog      string
	webURL      string
	webAuth     string
	compression string
	retries     int
}

func getCmdUpload(gs *globalState) *cobra.Command {
	f := uploadFlags{}
	cmd := &cobra.Command{
		Use:   "upload <profile>",
		Short: "Upload a recorded profile to a vmprof server",
		Example: `  vmprof upload cpu.prof
  vmprof upload --jitlog cpu.prof.jitlog --web-url https://vmprof.example.com cpu.prof`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runUpload(gs, args[0], f)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.jitlog, "jitlog", "", "also upload the JIT log at `path`")
	flags.StringVar(&f.webURL, "web-url", env.StringEnv("VMPROF_WEB_URL", profiler.DefaultWebURL), "vmprof server `url`")
	flags.StringVar(&f.webAuth, "web-auth", env.StringEnv("VMPROF_WEB_AUTH", ""), "authentication `token`")
	flags.StringVar(&f.compression, "compression", "zstd", "upload `compression`: zstd, gzip or none")
	flags.IntVar(&f.retries, "retries", service.DefaultMaxRetries, "number of retries on transient errors")
	return cmd
}

func runUpload(gs *globalState, path string, f uploadFlags) error {
	fields := service.Fields{
		service.FileCPUProfile: path,
		service.FieldVM:        profiler.Implementation(),
	}
	if f.jitlog != "" {
		if _, err := os.Stat(f.jitlog); err != nil {
			return err
		}
		fields[service.FileJITProfile] = f.jitlog
	}
	client, err := gs.statsd()
	if err != nil {
		return err
	}
	defer client.Close()
	svc, err := service.New(f.webURL, f.webAuth,
		service.WithCompression(f.compression),
		service.WithMaxRetries(f.retries),
		service.WithStatsd(client),
	)
	if err != nil {
		return err
	}
	fmt.Fprintf(gs.stderr, "Compiling and uploading to %s...\n", f.webURL)
	if err := svc.Post(gs.ctx, fields); err != nil {
		return fmt.Errorf("uploading %s: %w", path, err)
	}
	gs.logger.WithField("url", svc.URL()).Debug("profile uploaded")
	return nil
}
