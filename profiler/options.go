// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package profiler

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/vmprof/vmprof-go/internal/env"
	"github.com/vmprof/vmprof-go/internal/version"
)

const (
	// DefaultPeriod is the default interval between two samples.
	DefaultPeriod = time.Millisecond

	// DefaultWebURL is the default address of the reporting service.
	DefaultWebURL = "http://vmprof.com"

	// MaxPeriod is the largest sampling period accepted by WithPeriod.
	MaxPeriod = time.Second

	defaultHTTPTimeout = 10 * time.Second // defines the current timeout before giving up with the send process
)

var defaultClient = &http.Client{
	// We copy the transport to avoid using the default one, as it might be
	// augmented with instrumentation we don't want these calls to go through.
	// See https://golang.org/pkg/net/http/#DefaultTransport .
	Transport: &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	},
	Timeout: defaultHTTPTimeout,
}

type config struct {
	period  time.Duration
	memory  bool
	lines   bool
	jitlog  bool
	web     bool
	webURL  string
	webAuth string
	output  string

	statsd         StatsdClient
	httpClient     *http.Client
	compression    string
	tags           []string
	stdout, stderr io.Writer
	tempDir        string
	sampler        Sampler
	reporter       Reporter
	waitForSession bool
	keepGCDisabled bool
}

func defaultConfig() *config {
	c := config{
		period:     DefaultPeriod,
		webURL:     DefaultWebURL,
		statsd:     &statsd.NoOpClient{},
		httpClient: defaultClient,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		tags:       []string{fmt.Sprintf("pid:%d", os.Getpid())},
	}
	WithPeriod(env.DurationEnv("VMPROF_PERIOD", DefaultPeriod))(&c)
	c.memory = env.BoolEnv("VMPROF_MEM", false)
	c.lines = env.BoolEnv("VMPROF_LINES", false)
	c.jitlog = env.BoolEnv("VMPROF_JITLOG", false)
	c.web = env.BoolEnv("VMPROF_WEB", false)
	c.webURL = env.StringEnv("VMPROF_WEB_URL", DefaultWebURL)
	c.webAuth = env.StringEnv("VMPROF_WEB_AUTH", "")
	c.output = env.StringEnv("VMPROF_OUTPUT", "")
	c.compression = env.StringEnv("VMPROF_UPLOAD_COMPRESSION", "")
	if v := os.Getenv("VMPROF_TAGS"); v != "" {
		sep := " "
		if strings.Contains(v, ",") {
			// falling back to comma as separator
			sep = ","
		}
		for _, tag := range strings.Split(v, sep) {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				continue
			}
			WithTags(tag)(&c)
		}
	}
	WithTags(
		"profiler_version:"+version.Tag,
		"runtime_version:"+strings.TrimPrefix(runtime.Version(), "go"),
		"runtime_compiler:"+runtime.Compiler,
		"runtime_arch:"+runtime.GOARCH,
		"runtime_os:"+runtime.GOOS,
	)(&c)
	return &c
}

// outputMode resolves where profiles go. Remote upload wins over an explicit
// output file, which wins over rendering on the terminal.
func (c *config) outputMode() OutputMode {
	switch {
	case c.web:
		return OutputWeb
	case c.output != "":
		return OutputFile
	default:
		return OutputCLI
	}
}

// An Option is used to configure the middleware's behaviour.
type Option func(*config)

// WithPeriod sets the interval between two samples. Values outside of
// (0, MaxPeriod] are ignored.
//
// Any period other than 10ms makes the Go runtime print "runtime: cannot set
// cpu profile rate until previous profile has finished." to stderr once per
// session, as runtime/pprof.StartCPUProfile tries to reset the rate. The
// profile is still sampled at the requested period.
func WithPeriod(d time.Duration) Option {
	return func(cfg *config) {
		if d <= 0 || d > MaxPeriod {
			return
		}
		cfg.period = d
	}
}

// WithMemory adds allocation statistics to the profile.
func WithMemory(enabled bool) Option {
	return func(cfg *config) {
		cfg.memory = enabled
	}
}

// WithLines keeps per-line statistics in the profile. Without it samples are
// aggregated per function.
func WithLines(enabled bool) Option {
	return func(cfg *config) {
		cfg.lines = enabled
	}
}

// WithJITLog collects a JIT log next to the profile when a JIT log
// implementation is registered, see package jitlog.
func WithJITLog(enabled bool) Option {
	return func(cfg *config) {
		cfg.jitlog = enabled
	}
}

// WithWeb uploads profiles to the reporting service.
func WithWeb(enabled bool) Option {
	return func(cfg *config) {
		cfg.web = enabled
	}
}

// WithWebURL sets the address of the reporting service.
func WithWebURL(url string) Option {
	return func(cfg *config) {
		cfg.webURL = url
	}
}

// WithWebAuth sets the token used to authenticate uploads.
func WithWebAuth(token string) Option {
	return func(cfg *config) {
		cfg.webAuth = token
	}
}

// WithOutput persists profiles to the given path instead of rendering them.
// Each profiled call truncates the file.
func WithOutput(path string) Option {
	return func(cfg *config) {
		cfg.output = path
	}
}

// WithTags specifies a set of tags to be attached to uploads and metrics.
func WithTags(tags ...string) Option {
	return func(cfg *config) {
		cfg.tags = append(cfg.tags, tags...)
	}
}

// WithStatsd specifies an optional statsd client to use for metrics. By
// default, no metrics are sent.
func WithStatsd(client StatsdClient) Option {
	return func(cfg *config) {
		cfg.statsd = client
	}
}

// WithHTTPClient specifies the HTTP client to use when uploading profiles.
// In general, using this method is only necessary if you have need to customize the
// transport layer, for instance when using a unix domain socket.
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *config) {
		cfg.httpClient = client
	}
}

// WithUDS configures the HTTP client to dial the reporting service via the specified Unix Domain Socket path.
func WithUDS(socketPath string) Option {
	return WithHTTPClient(&http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socketPath)
			},
		},
		Timeout: defaultHTTPTimeout,
	})
}

// WithUploadCompression sets the compression of uploaded files, e.g. "zstd",
// "gzip-6" or "none".
func WithUploadCompression(c string) Option {
	return func(cfg *config) {
		cfg.compression = c
	}
}

// WithStdout sets where profiles are rendered in terminal mode.
func WithStdout(w io.Writer) Option {
	return func(cfg *config) {
		cfg.stdout = w
	}
}

// WithStderr sets where progress messages are written.
func WithStderr(w io.Writer) Option {
	return func(cfg *config) {
		cfg.stderr = w
	}
}

// WithTempDir sets the directory temporary profiles are created in. It
// defaults to os.TempDir.
func WithTempDir(dir string) Option {
	return func(cfg *config) {
		cfg.tempDir = dir
	}
}

// WithSampler replaces the runtime CPU profiler.
func WithSampler(s Sampler) Option {
	return func(cfg *config) {
		cfg.sampler = s
	}
}

// WithReporter replaces the client used in web mode.
func WithReporter(r Reporter) Option {
	return func(cfg *config) {
		cfg.reporter = r
	}
}

// WithWaitForSession makes Start block until the active session, if any,
// is stopped. By default Start fails with ErrSessionActive.
func WithWaitForSession(wait bool) Option {
	return func(cfg *config) {
		cfg.waitForSession = wait
	}
}

// KeepGCDisabled leaves the garbage collector disabled after a profiled call
// instead of restoring the previous setting.
func KeepGCDisabled() Option {
	return func(cfg *config) {
		cfg.keepGCDisabled = true
	}
}
