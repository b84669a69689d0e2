// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

// Package httputil profiles HTTP handlers for the net/http based integrations.
package httputil

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/vmprof/vmprof-go/internal/log"
	"github.com/vmprof/vmprof-go/profiler"
)

// Config holds the settings shared by the HTTP integrations.
type Config struct {
	// IgnoreRequest reports whether r is served without being profiled.
	IgnoreRequest func(r *http.Request) bool
	// SessionHeader, when not empty, is the response header the session ID
	// of profiled requests is written to.
	SessionHeader string
}

// ProfileAndServe serves r with h, profiling the call with m. If the
// profiler cannot be started the request fails with a 500 status.
func ProfileAndServe(m *profiler.Middleware, h http.Handler, w http.ResponseWriter, r *http.Request, cfg *Config) {
	if cfg != nil && cfg.IgnoreRequest != nil && cfg.IgnoreRequest(r) {
		h.ServeHTTP(w, r)
		return
	}
	var rw http.ResponseWriter
	if _, ok := w.(http.Hijacker); ok {
		rw = newHijackableResponseWriter(w)
	} else {
		rw = newResponseWriter(w)
	}
	served := false
	err := m.Call(r.Context(), func(ctx context.Context) error {
		served = true
		if s, ok := profiler.SessionFromContext(ctx); ok && cfg != nil && cfg.SessionHeader != "" {
			w.Header().Set(cfg.SessionHeader, s.ID())
		}
		h.ServeHTTP(rw, r.WithContext(ctx))
		return nil
	})
	if err == nil {
		return
	}
	if !served {
		log.Error("Could not profile %s %s: %v", r.Method, r.URL.Path, err)
		http.Error(w, "profiler could not be started", http.StatusInternalServerError)
		return
	}
	log.Error("Profile of %s %s could not be processed: %v", r.Method, r.URL.Path, err)
}

// responseWriter is a small wrapper around an http response writer that will
// intercept and store the status of a request.
type responseWriter struct {
	http.ResponseWriter
	status int
}

var (
	_ http.Hijacker       = (*hijackableResponseWriter)(nil)
	_ http.ResponseWriter = (*hijackableResponseWriter)(nil)
	_ http.ResponseWriter = (*responseWriter)(nil)
)

type hijackableResponseWriter struct{ *responseWriter }

func newHijackableResponseWriter(w http.ResponseWriter) *hijackableResponseWriter {
	return &hijackableResponseWriter{newResponseWriter(w)}
}

func (hrw *hijackableResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := hrw.responseWriter.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("underlying ResponseWriter does not implement http.Hijacker")
	}
	return h.Hijack()
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, 0}
}

// Write writes the data to the connection as part of an HTTP reply.
func (w *responseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// WriteHeader sends an HTTP response header with status code.
func (w *responseWriter) WriteHeader(status int) {
	w.ResponseWriter.WriteHeader(status)
	w.status = status
	if status >= 500 && status < 600 {
		log.Debug("Profiled request answered with status %d", status)
	}
}

// Status returns the status code written so far, or 0.
func (w *responseWriter) Status() int { return w.status }
