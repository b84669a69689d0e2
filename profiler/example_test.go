// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-2020 Datadog, Inc.

package profiler_test

import (
	"context"
	"log"

	"github.com/vmprof/vmprof-go/profiler"
)

// This example illustrates how to profile a single call and upload the
// profile.
func Example() {
	m, err := profiler.New(
		profiler.WithWeb(true),
		profiler.WithWebAuth("token"),
		profiler.WithMemory(true),
	)
	if err != nil {
		log.Fatal(err)
	}
	err = m.Call(context.Background(), func(ctx context.Context) error {
		// ...
		return nil
	})
	if err != nil {
		log.Print(err)
	}
}

// This example illustrates how to keep the profile of a call in a file.
func ExampleRun() {
	m, err := profiler.New(profiler.WithOutput("handler.prof"), profiler.WithLines(true))
	if err != nil {
		log.Fatal(err)
	}
	n, err := profiler.Run(context.Background(), m, func(ctx context.Context) (int, error) {
		// ...
		return 42, nil
	})
	if err != nil {
		log.Print(err)
	}
	_ = n
}
