// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package httputil

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmprof/vmprof-go/internal/log"
	"github.com/vmprof/vmprof-go/profiler"
)

func newMiddleware(t *testing.T, opts ...profiler.Option) *profiler.Middleware {
	t.Helper()
	opts = append([]profiler.Option{
		profiler.WithStdout(io.Discard),
		profiler.WithStderr(io.Discard),
		profiler.WithTempDir(t.TempDir()),
	}, opts...)
	m, err := profiler.New(opts...)
	require.NoError(t, err)
	return m
}

func TestProfileAndServe(t *testing.T) {
	t.Run("regular", func(t *testing.T) {
		assert := assert.New(t)
		m := newMiddleware(t)

		called := false
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "http://localhost/", nil)
		handler := func(w http.ResponseWriter, r *http.Request) {
			_, ok := w.(http.Hijacker)
			assert.False(ok)
			_, ok = w.(*responseWriter)
			assert.True(ok)
			_, ok = profiler.SessionFromContext(r.Context())
			assert.True(ok)
			http.Error(w, "some error", http.StatusServiceUnavailable)
			called = true
		}
		ProfileAndServe(m, http.HandlerFunc(handler), w, r, &Config{SessionHeader: "X-Vmprof-Session"})

		assert.True(called)
		assert.Equal(http.StatusServiceUnavailable, w.Code)
		assert.NotEmpty(w.Header().Get("X-Vmprof-Session"))
	})

	t.Run("hijackable", func(t *testing.T) {
		assert := assert.New(t)
		m := newMiddleware(t)
		called := false
		handler := func(w http.ResponseWriter, r *http.Request) {
			_, ok := w.(http.Hijacker)
			assert.True(ok)
			_, ok = w.(*hijackableResponseWriter)
			assert.True(ok)
			fmt.Fprintln(w, "Hello, world!")
			called = true
		}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ProfileAndServe(m, http.HandlerFunc(handler), w, r, nil)
		}))
		defer srv.Close()

		res, err := http.Get(srv.URL)
		require.NoError(t, err)
		body, err := io.ReadAll(res.Body)
		res.Body.Close()
		require.NoError(t, err)
		assert.Equal("Hello, world!\n", string(body))
		assert.True(called)
	})

	t.Run("ignored", func(t *testing.T) {
		m := newMiddleware(t)
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "http://localhost/health", nil)
		ProfileAndServe(m, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, ok := profiler.SessionFromContext(r.Context())
			assert.False(t, ok)
			_, ok = w.(*responseWriter)
			assert.False(t, ok)
		}), w, r, &Config{IgnoreRequest: func(r *http.Request) bool { return r.URL.Path == "/health" }})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("setupFailure", func(t *testing.T) {
		tp := new(log.RecordLogger)
		defer log.UseLogger(tp)()
		m := newMiddleware(t, profiler.WithOutput(filepath.Join(t.TempDir(), "missing", "out.prof")))

		called := false
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "http://localhost/", nil)
		ProfileAndServe(m, http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }), w, r, nil)
		log.Flush()

		assert.False(t, called)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		require.NotEmpty(t, tp.Logs())
		assert.Contains(t, tp.Logs()[0], "Could not profile GET /")
	})
}
