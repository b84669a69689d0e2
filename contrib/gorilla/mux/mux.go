// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

// Package mux provides profiling functions for the Gorilla Mux framework.
package mux // import "github.com/vmprof/vmprof-go/contrib/gorilla/mux"

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vmprof/vmprof-go/contrib/internal/httputil"
	"github.com/vmprof/vmprof-go/profiler"
)

// Router registers routes to be matched and dispatches a handler.
type Router struct {
	*mux.Router
	m   *profiler.Middleware
	cfg *httputil.Config
}

// NewRouter returns a new router instance profiling every matched request
// with m.
func NewRouter(m *profiler.Middleware, opts ...RouterOption) *Router {
	return WrapRouter(mux.NewRouter(), m, opts...)
}

// WrapRouter returns the given router wrapped so that matched requests are
// profiled with m.
func WrapRouter(router *mux.Router, m *profiler.Middleware, opts ...RouterOption) *Router {
	return &Router{Router: router, m: m, cfg: newConfig(opts)}
}

// ServeHTTP dispatches the request to the handler
// whose pattern most closely matches the request URL.
// Requests that match no route are not profiled.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var match mux.RouteMatch
	if !r.Match(req, &match) || match.MatchErr != nil {
		r.Router.ServeHTTP(w, req)
		return
	}
	httputil.ProfileAndServe(r.m, r.Router, w, req, r.cfg)
}

// Middleware returns a mux.MiddlewareFunc profiling the requests served by
// the routes it is applied to.
func Middleware(m *profiler.Middleware, opts ...RouterOption) mux.MiddlewareFunc {
	cfg := newConfig(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			httputil.ProfileAndServe(m, next, w, req, cfg)
		})
	}
}
