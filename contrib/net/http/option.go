// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package http

import (
	"net/http"

	"github.com/vmprof/vmprof-go/contrib/internal/httputil"
)

// DefaultSessionHeader is the response header carrying the session ID when
// WithSessionHeader is given an empty name.
const DefaultSessionHeader = "X-Vmprof-Session"

// Option describes options for the net/http integration.
type Option func(*httputil.Config)

func newConfig(opts []Option) *httputil.Config {
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
func WithIgnoreRequest(f func(*http.Request) bool) Option {
	return func(cfg *httputil.Config) {
		cfg.IgnoreRequest = f
	}
}

// WithSessionHeader writes the session ID of profiled requests to the given
// response header, DefaultSessionHeader if name is empty.
func WithSessionHeader(name string) Option {
	return func(cfg *httputil.Config) {
		if name == "" {
			name = DefaultSessionHeader
		}
		cfg.SessionHeader = name
	}
}
