// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

package service

import (
	"net/http"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
)

const (
	// DefaultMaxRetries is the number of times a failed upload is retried.
	DefaultMaxRetries = 2

	// DefaultTimeout is the timeout of a single upload attempt.
	DefaultTimeout = 10 * time.Second

	defaultBackoff = 100 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// StatsdClient is the subset of statsd.ClientInterface used by the service.
type StatsdClient interface {
	Count(name string, value int64, tags []string, rate float64) error
	Timing(name string, value time.Duration, tags []string, rate float64) error
}

type config struct {
	client      *http.Client
	compression compression
	maxRetries  int
	backoff     time.Duration
	tags        []string
	statsd      StatsdClient
}

func defaultConfig() *config {
	return &config{
		client:      &http.Client{Timeout: DefaultTimeout},
		compression: zstdCompression,
		maxRetries:  DefaultMaxRetries,
		backoff:     defaultBackoff,
		statsd:      &statsd.NoOpClient{},
	}
}

// An Option configures a Service.
type Option func(*config)

// WithHTTPClient sets the HTTP client used for uploads.
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *config) {
		cfg.client = client
	}
}

// WithCompression sets the compression applied to attachments. Valid values
// are "none", "gzip", "zstd" optionally followed by a level, e.g. "gzip-6".
// Invalid values keep the current setting.
func WithCompression(c string) Option {
	return func(cfg *config) {
		parsed, err := parseCompression(c)
		if err != nil {
			return
		}
		cfg.compression = parsed
	}
}

// WithMaxRetries sets how many times an upload is retried after a transport
// error or a retryable status code.
func WithMaxRetries(n int) Option {
	return func(cfg *config) {
		if n < 0 {
			n = 0
		}
		cfg.maxRetries = n
	}
}

// WithBackoff sets the initial delay between upload attempts. The delay is
// doubled after each attempt.
func WithBackoff(d time.Duration) Option {
	return func(cfg *config) {
		cfg.backoff = d
	}
}

// WithTags adds tags to the upload event.
func WithTags(tags ...string) Option {
	return func(cfg *config) {
		cfg.tags = append(cfg.tags, tags...)
	}
}

// WithStatsd sets the client used to report upload metrics.
func WithStatsd(client StatsdClient) Option {
	return func(cfg *config) {
		cfg.statsd = client
	}
}
