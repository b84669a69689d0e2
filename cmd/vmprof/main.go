// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

// Command vmprof records, displays and uploads vmprof profiles.
package main

import (
	"context"
	"os"
	"os/signal"

	_ "github.com/vmprof/vmprof-go/jitlog/exectrace"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	gs := newGlobalState(ctx, os.Stdout, os.Stderr)
	err := newRootCommand(gs).ExecuteContext(ctx)
	stop()
	if err != nil {
		gs.logger.Error(err)
		os.Exit(1)
	}
}
