// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

// Package chi provides profiling functions for the go-chi/chi/v5 package (https://github.com/go-chi/chi).
package chi // import "github.com/vmprof/vmprof-go/contrib/go-chi/chi.v5"

import (
	"net/http"

	"github.com/vmprof/vmprof-go/contrib/internal/httputil"
	"github.com/vmprof/vmprof-go/profiler"
)

// Middleware returns middleware that will profile incoming requests with m.
func Middleware(m *profiler.Middleware, opts ...Option) func(next http.Handler) http.Handler {
	cfg := new(httputil.Config)
	defaults(cfg)
	for _, fn := range opts {
		fn.apply(cfg)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httputil.ProfileAndServe(m, next, w, r, cfg)
		})
	}
}
