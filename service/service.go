// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

// Package service uploads collected profiles to a vmprof reporting server.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vmprof/vmprof-go/internal/log"
	"github.com/vmprof/vmprof-go/internal/version"
)

// Field keys understood by Post.
const (
	// FileCPUProfile is the path of the primary profile file.
	FileCPUProfile = "profile_file"
	// FileJITProfile is the path of the JIT log collected alongside the
	// profile.
	FileJITProfile = "jitlog_file"
	// FieldVM names the runtime implementation that produced the profile.
	FieldVM = "VM"
)

const endpointPath = "/api/profile/"

// Fields holds the metadata and file paths of one upload. Values of
// FileCPUProfile and FileJITProfile are paths of files to attach; all other
// values are sent as form fields.
type Fields map[string]string

func isFileField(key string) bool {
	return key == FileCPUProfile || key == FileJITProfile
}

// StatusError is returned when the server rejects an upload.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upload failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("upload failed with status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Service uploads profiles to a single reporting server.
type Service struct {
	endpoint string
	token    string
	cfg      *config
}

// New returns a Service posting to the server at baseURL, authenticating with
// token when it is not empty.
func New(baseURL, token string, opts ...Option) (*Service, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid web url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid web url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid web url %q: missing host", baseURL)
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Service{
		endpoint: strings.TrimRight(u.String(), "/") + endpointPath,
		token:    token,
		cfg:      cfg,
	}, nil
}

// URL returns the endpoint uploads are posted to.
func (s *Service) URL() string { return s.endpoint }

// uploadEvent is the JSON document sent in the "event" part.
type uploadEvent struct {
	ID          string            `json:"id"`
	Start       string            `json:"start"`
	VM          string            `json:"vm,omitempty"`
	Attachments []string          `json:"attachments"`
	Compression map[string]string `json:"compression,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Version     string            `json:"version"`
}

type attachment struct {
	field string
	name  string
	data  []byte
}

// Post uploads the given fields. Transport errors, 429 and 5xx responses are
// retried with exponential backoff; other failures are returned immediately
// as *StatusError.
func (s *Service) Post(ctx context.Context, fields Fields) error {
	start := time.Now()
	body, contentType, err := s.encode(fields, start)
	if err != nil {
		return err
	}
	defer func() {
		s.cfg.statsd.Timing("vmprof.upload.duration", time.Since(start), s.cfg.tags, 1)
	}()

	backoff := s.cfg.backoff
	for attempt := 0; ; attempt++ {
		err = s.doRequest(ctx, body, contentType)
		if err == nil {
			log.Debug("Uploaded profile to %s (%d bytes)", s.endpoint, len(body))
			return nil
		}
		var serr *StatusError
		if errors.As(err, &serr) && !serr.retryable() {
			return err
		}
		if attempt >= s.cfg.maxRetries {
			s.cfg.statsd.Count("vmprof.upload.error", 1, s.cfg.tags, 1)
			return fmt.Errorf("giving up after %d attempts: %w", attempt+1, err)
		}
		log.Debug("Upload attempt %d failed, retrying in %s: %v", attempt+1, backoff, err)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(ctx.Err(), err)
		case <-timer.C:
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (s *Service) doRequest(ctx context.Context, body []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", "vmprof-go/"+version.Tag)
	if s.token != "" {
		req.Header.Set("Authorization", "Token "+s.token)
	}
	resp, err := s.cfg.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 == 2 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
}

// encode builds the multipart body: one "event" part, one part per attached
// file and one form value per remaining field.
func (s *Service) encode(fields Fields, start time.Time) ([]byte, string, error) {
	event := uploadEvent{
		ID:          uuid.NewString(),
		Start:       start.UTC().Format(time.RFC3339),
		VM:          fields[FieldVM],
		Attachments: []string{},
		Compression: map[string]string{},
		Tags:        s.cfg.tags,
		Version:     version.Tag,
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var attachments []attachment
	for _, k := range keys {
		v := fields[k]
		if !isFileField(k) {
			if event.Fields == nil {
				event.Fields = map[string]string{}
			}
			event.Fields[k] = v
			continue
		}
		if v == "" {
			continue
		}
		raw, err := os.ReadFile(v)
		if err != nil {
			return nil, "", fmt.Errorf("reading %s: %w", k, err)
		}
		data, err := recompress(raw, s.cfg.compression)
		if err != nil {
			return nil, "", fmt.Errorf("compressing %s: %w", k, err)
		}
		name := filepath.Base(v)
		attachments = append(attachments, attachment{field: k, name: name, data: data})
		event.Attachments = append(event.Attachments, name)
		event.Compression[name] = s.cfg.compression.String()
	}
	if len(attachments) == 0 {
		return nil, "", errors.New("nothing to upload: no profile file given")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="event"; filename="event.json"`)
	h.Set("Content-Type", "application/json")
	ew, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if err := json.NewEncoder(ew).Encode(event); err != nil {
		return nil, "", err
	}
	for _, a := range attachments {
		fw, err := mw.CreateFormFile(a.field, a.name)
		if err != nil {
			return nil, "", err
		}
		if _, err := fw.Write(a.data); err != nil {
			return nil, "", err
		}
	}
	for _, k := range keys {
		if isFileField(k) {
			continue
		}
		if err := mw.WriteField(k, fields[k]); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
