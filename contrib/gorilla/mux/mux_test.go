// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package mux

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmprof/vmprof-go/profiler"
	"github.com/vmprof/vmprof-go/service"
)

type mockReporter struct {
	mu      sync.Mutex
	uploads int
}

func (r *mockReporter) Post(context.Context, service.Fields) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploads++
	return nil
}

func newMiddleware(t *testing.T) (*profiler.Middleware, *mockReporter) {
	t.Helper()
	rep := &mockReporter{}
	m, err := profiler.New(
		profiler.WithWeb(true),
		profiler.WithReporter(rep),
		profiler.WithStderr(io.Discard),
		profiler.WithTempDir(t.TempDir()),
	)
	require.NoError(t, err)
	return m, rep
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := profiler.SessionFromContext(r.Context()); !ok {
		http.Error(w, "not profiled", http.StatusTeapot)
		return
	}
	w.Write([]byte(mux.Vars(r)["id"] + "\n"))
}

func TestRouter(t *testing.T) {
	m, rep := newMiddleware(t)
	router := NewRouter(m, WithSessionHeader("X-Session"))
	router.HandleFunc("/user/{id}", okHandler)

	t.Run("match", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/user/123", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "123\n", w.Body.String())
		assert.NotEmpty(t, w.Header().Get("X-Session"))
		assert.Equal(t, 1, rep.uploads)
	})

	t.Run("notFound", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/missing", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, 1, rep.uploads)
	})
}

func TestMiddleware(t *testing.T) {
	m, rep := newMiddleware(t)
	r := mux.NewRouter()
	r.HandleFunc("/user/{id}", okHandler)
	r.HandleFunc("/health", okHandler)
	r.Use(Middleware(m, WithIgnoreRequest(func(r *http.Request) bool { return r.URL.Path == "/health" })))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/user/7", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "7\n", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, 1, rep.uploads)
}
