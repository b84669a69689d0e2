// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	kgzip "github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmprof/vmprof-go/internal/version"
)

type upload struct {
	header http.Header
	path   string
	event  uploadEvent
	files  map[string][]byte
	names  map[string]string
	values map[string]string
}

func parseUpload(t *testing.T, r *http.Request) upload {
	t.Helper()
	require.NoError(t, r.ParseMultipartForm(32<<20))
	u := upload{
		header: r.Header.Clone(),
		path:   r.URL.Path,
		files:  map[string][]byte{},
		names:  map[string]string{},
		values: map[string]string{},
	}
	for name, fhs := range r.MultipartForm.File {
		f, err := fhs[0].Open()
		require.NoError(t, err)
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		f.Close()
		if name == "event" {
			require.NoError(t, json.Unmarshal(data, &u.event))
			continue
		}
		u.files[name] = data
		u.names[name] = fhs[0].Filename
	}
	for k, v := range r.MultipartForm.Value {
		u.values[k] = v[0]
	}
	return u
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := kgzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func unzstd(t *testing.T, data []byte) []byte {
	t.Helper()
	r, err := zstd.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer r.Close()
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return out
}

func TestNew(t *testing.T) {
	s, err := New("http://vmprof.com/", "")
	require.NoError(t, err)
	assert.Equal(t, "http://vmprof.com/api/profile/", s.URL())

	s, err = New("https://example.org/base", "")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/base/api/profile/", s.URL())

	for _, bad := range []string{"vmprof.com", "ftp://vmprof.com", "http://", "://x"} {
		_, err := New(bad, "")
		assert.Error(t, err, bad)
	}
}

func TestPost(t *testing.T) {
	uploads := make(chan upload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uploads <- parseUpload(t, r)
	}))
	defer srv.Close()

	cpu := writeFile(t, "vmprof-1.prof", gzipped(t, []byte("cpu profile")))
	jit := writeFile(t, "vmprof-1.prof.jitlog", []byte("jit log"))

	s, err := New(srv.URL, "secret", WithTags("env:test"))
	require.NoError(t, err)
	err = s.Post(context.Background(), Fields{
		FileCPUProfile: cpu,
		FileJITProfile: jit,
		FieldVM:        "gc",
	})
	require.NoError(t, err)

	u := <-uploads
	assert.Equal(t, endpointPath, u.path)
	assert.Equal(t, "Token secret", u.header.Get("Authorization"))
	assert.Equal(t, "vmprof-go/"+version.Tag, u.header.Get("User-Agent"))

	assert.Equal(t, "gc", u.event.VM)
	assert.Equal(t, []string{"vmprof-1.prof.jitlog", "vmprof-1.prof"}, u.event.Attachments)
	assert.Equal(t, "zstd-2", u.event.Compression["vmprof-1.prof"])
	assert.Equal(t, []string{"env:test"}, u.event.Tags)
	assert.Equal(t, version.Tag, u.event.Version)
	assert.NotEmpty(t, u.event.ID)

	assert.Equal(t, "vmprof-1.prof", u.names[FileCPUProfile])
	assert.Equal(t, []byte("cpu profile"), unzstd(t, u.files[FileCPUProfile]))
	assert.Equal(t, []byte("jit log"), unzstd(t, u.files[FileJITProfile]))
	assert.Equal(t, "gc", u.values[FieldVM])
}

func TestPostWithoutJITLog(t *testing.T) {
	uploads := make(chan upload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uploads <- parseUpload(t, r)
	}))
	defer srv.Close()

	cpu := writeFile(t, "a.prof", gzipped(t, []byte("cpu")))
	s, err := New(srv.URL, "")
	require.NoError(t, err)
	require.NoError(t, s.Post(context.Background(), Fields{FileCPUProfile: cpu, FieldVM: "gc"}))

	u := <-uploads
	assert.Empty(t, u.header.Get("Authorization"))
	assert.Len(t, u.files, 1)
	assert.NotContains(t, u.files, FileJITProfile)
	assert.Equal(t, []string{"a.prof"}, u.event.Attachments)
}

func TestPostCompression(t *testing.T) {
	raw := []byte("profile bytes")
	for _, tc := range []struct {
		config string
		check  func(t *testing.T, got []byte)
	}{
		{config: "none", check: func(t *testing.T, got []byte) { assert.Equal(t, raw, got) }},
		{config: "gzip", check: func(t *testing.T, got []byte) {
			r, err := kgzip.NewReader(bytes.NewReader(got))
			require.NoError(t, err)
			data, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, raw, data)
		}},
		{config: "zstd-4", check: func(t *testing.T, got []byte) { assert.Equal(t, raw, unzstd(t, got)) }},
	} {
		t.Run(tc.config, func(t *testing.T) {
			uploads := make(chan upload, 1)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				uploads <- parseUpload(t, r)
			}))
			defer srv.Close()

			cpu := writeFile(t, "a.prof", gzipped(t, raw))
			s, err := New(srv.URL, "", WithCompression(tc.config))
			require.NoError(t, err)
			require.NoError(t, s.Post(context.Background(), Fields{FileCPUProfile: cpu}))
			tc.check(t, (<-uploads).files[FileCPUProfile])
		})
	}
}

func TestPostRetries(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}))
	defer srv.Close()

	cpu := writeFile(t, "a.prof", []byte("x"))
	s, err := New(srv.URL, "", WithBackoff(time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, s.Post(context.Background(), Fields{FileCPUProfile: cpu}))
	assert.EqualValues(t, 3, atomic.LoadInt32(&attempts))
}

func TestPostGivesUp(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cpu := writeFile(t, "a.prof", []byte("x"))
	s, err := New(srv.URL, "", WithBackoff(time.Millisecond), WithMaxRetries(1))
	require.NoError(t, err)
	err = s.Post(context.Background(), Fields{FileCPUProfile: cpu})
	var serr *StatusError
	require.True(t, errors.As(err, &serr), err)
	assert.Equal(t, http.StatusInternalServerError, serr.StatusCode)
	assert.EqualValues(t, 2, atomic.LoadInt32(&attempts))
}

func TestPostClientError(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		http.Error(w, "bad token", http.StatusForbidden)
	}))
	defer srv.Close()

	cpu := writeFile(t, "a.prof", []byte("x"))
	s, err := New(srv.URL, "wrong", WithBackoff(time.Millisecond))
	require.NoError(t, err)
	err = s.Post(context.Background(), Fields{FileCPUProfile: cpu})
	var serr *StatusError
	require.True(t, errors.As(err, &serr), err)
	assert.Equal(t, http.StatusForbidden, serr.StatusCode)
	assert.Equal(t, "bad token", serr.Body)
	assert.EqualValues(t, 1, atomic.LoadInt32(&attempts))
}

func TestPostCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cpu := writeFile(t, "a.prof", []byte("x"))
	s, err := New(srv.URL, "", WithBackoff(time.Hour))
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = s.Post(ctx, Fields{FileCPUProfile: cpu})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPostMissingFile(t *testing.T) {
	s, err := New("http://127.0.0.1:1", "")
	require.NoError(t, err)
	err = s.Post(context.Background(), Fields{FileCPUProfile: filepath.Join(t.TempDir(), "missing")})
	assert.ErrorIs(t, err, os.ErrNotExist)

	err = s.Post(context.Background(), Fields{FieldVM: "gc"})
	assert.Error(t, err)
}
