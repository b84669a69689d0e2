// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

// Package http provides functions to profile the handlers of the net/http package (https://golang.org/pkg/net/http).
package http // import "github.com/vmprof/vmprof-go/contrib/net/http"

import (
	"net/http"

	"github.com/vmprof/vmprof-go/contrib/internal/httputil"
	"github.com/vmprof/vmprof-go/profiler"
)

// ServeMux is an HTTP request multiplexer that profiles all the incoming requests.
type ServeMux struct {
	*http.ServeMux
	m   *profiler.Middleware
	cfg *httputil.Config
}

// NewServeMux allocates and returns an http.ServeMux profiling every request
// with m.
func NewServeMux(m *profiler.Middleware, opts ...Option) *ServeMux {
	return &ServeMux{
		ServeMux: http.NewServeMux(),
		m:        m,
		cfg:      newConfig(opts),
	}
}

// ServeHTTP dispatches the request to the handler
// whose pattern most closely matches the request URL.
func (mux *ServeMux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	httputil.ProfileAndServe(mux.m, mux.ServeMux, w, r, mux.cfg)
}

// WrapHandler wraps an http.Handler so that every request it serves is
// profiled with m.
func WrapHandler(h http.Handler, m *profiler.Middleware, opts ...Option) http.Handler {
	cfg := newConfig(opts)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.ProfileAndServe(m, h, w, r, cfg)
	})
}
