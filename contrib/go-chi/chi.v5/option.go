// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package chi

import (
	"net/http"

	"github.com/vmprof/vmprof-go/contrib/internal/httputil"
)

// Option describes options for the Chi.v5 integration.
type Option interface {
	apply(*httputil.Config)
}

// OptionFn represents options applicable to Middleware.
type OptionFn func(*httputil.Config)

func (fn OptionFn) apply(cfg *httputil.Config) {
	fn(cfg)
}

func defaults(cfg *httputil.Config) {
	cfg.IgnoreRequest = func(_ *http.Request) bool { return false }
}

// WithIgnoreRequest specifies a function to use for determining if the
// incoming HTTP request should not be profiled.
func WithIgnoreRequest(fn func(r *http.Request) bool) OptionFn {
	return func(cfg *httputil.Config) {
		cfg.IgnoreRequest = fn
	}
}

// WithSessionHeader writes the session ID of profiled requests to the given
// response header.
func WithSessionHeader(name string) OptionFn {
	return func(cfg *httputil.Config) {
		cfg.SessionHeader = name
	}
}
