// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package mux

import (
	"net/http"

	"github.com/vmprof/vmprof-go/contrib/internal/httputil"
)

// RouterOption represents an option that can be passed to NewRouter and
// Middleware.
type RouterOption func(*httputil.Config)

func newConfig(opts []RouterOption) *httputil.Config {
	cfg := &httputil.Config{
		IgnoreRequest: func(_ *http.Request) bool { return false },
	}
	for _, fn := range opts {
		fn(cfg)
	}
	return cfg
}

// WithIgnoreRequest holds the function to use for determining if the
// incoming HTTP request should not be profiled.
func WithIgnoreRequest(f func(*http.Request) bool) RouterOption {
	return func(cfg *httputil.Config) {
		cfg.IgnoreRequest = f
	}
}

// WithSessionHeader writes the session ID of profiled requests to the given
// response header.
func WithSessionHeader(name string) RouterOption {
	return func(cfg *httputil.Config) {
		cfg.SessionHeader = name
	}
}
