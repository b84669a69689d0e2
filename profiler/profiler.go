// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

// Package profiler profiles single calls, such as the handling of one HTTP
// request, and renders, uploads or stores the resulting profile.
package profiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/vmprof/vmprof-go/internal/log"
	"github.com/vmprof/vmprof-go/jitlog"
	"github.com/vmprof/vmprof-go/service"
)

// ErrSessionActive is returned by Start when another session is active in
// the process. The runtime profilers are process wide, so only one call can
// be profiled at a time.
var ErrSessionActive = errors.New("a profiling session is already active")

var (
	errSessionNotStarted = errors.New("session not started")
	errForeignSession    = errors.New("session was started by another middleware")
)

// slot is held by the active session.
var slot = make(chan struct{}, 1)

func acquireSlot(ctx context.Context, wait bool) error {
	select {
	case slot <- struct{}{}:
		return nil
	default:
	}
	if !wait {
		return ErrSessionActive
	}
	select {
	case slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func releaseSlot() {
	<-slot
}

// Implementation returns the name of the runtime the profiles are taken
// from.
func Implementation() string {
	return runtime.Compiler
}

// Middleware profiles calls with a fixed configuration.
type Middleware struct {
	cfg      *config
	mode     OutputMode
	sampler  Sampler
	reporter Reporter
}

// New returns a Middleware configured by opts on top of the defaults read
// from the VMPROF_* environment variables.
func New(opts ...Option) (*Middleware, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	m := &Middleware{
		cfg:      cfg,
		mode:     cfg.outputMode(),
		sampler:  cfg.sampler,
		reporter: cfg.reporter,
	}
	if m.sampler == nil {
		m.sampler = newPprofSampler()
	}
	if m.mode == OutputWeb && m.reporter == nil {
		sopts := []service.Option{
			service.WithHTTPClient(cfg.httpClient),
			service.WithTags(cfg.tags...),
			service.WithStatsd(cfg.statsd),
		}
		if cfg.compression != "" {
			sopts = append(sopts, service.WithCompression(cfg.compression))
		}
		svc, err := service.New(cfg.webURL, cfg.webAuth, sopts...)
		if err != nil {
			return nil, err
		}
		m.reporter = svc
	}
	if cfg.jitlog && !jitlog.Available() {
		log.Warn("JIT log requested but no implementation is registered; import jitlog/exectrace to enable it")
	}
	log.Debug("Middleware configuration: mode=%s period=%s memory=%t lines=%t jitlog=%t", m.mode, cfg.period, cfg.memory, cfg.lines, cfg.jitlog)
	return m, nil
}

// Mode returns where the profiles of m go.
func (m *Middleware) Mode() OutputMode { return m.mode }

// Start opens the profile target and enables sampling. The returned session
// must be passed to Stop. Start fails with ErrSessionActive when another
// session is active, unless WithWaitForSession was given.
func (m *Middleware) Start(ctx context.Context) (*Session, error) {
	if err := acquireSlot(ctx, m.cfg.waitForSession); err != nil {
		return nil, err
	}
	s, err := m.start()
	if err != nil {
		releaseSlot()
		m.cfg.statsd.Count("vmprof.session.error", 1, m.cfg.tags, 1)
		return nil, err
	}
	m.cfg.statsd.Count("vmprof.session.started", 1, m.cfg.tags, 1)
	return s, nil
}

func (m *Middleware) start() (s *Session, err error) {
	s = &Session{
		id:      uuid.NewString(),
		owner:   m,
		start:   time.Now(),
		metrics: newMetrics(),
	}
	defer func() {
		if err != nil {
			m.discard(s)
		}
	}()

	if m.mode == OutputFile {
		s.file, err = os.OpenFile(m.cfg.output, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return s, fmt.Errorf("opening profile output: %w", err)
		}
	} else {
		s.file, err = os.CreateTemp(m.cfg.tempDir, "vmprof-*.prof")
		if err != nil {
			return s, fmt.Errorf("creating temporary profile: %w", err)
		}
	}
	s.path = s.file.Name()

	if m.cfg.jitlog {
		if l, ok := jitlog.Lookup(); ok {
			s.jitPath = s.path + ".jitlog"
			s.jitFile, err = os.OpenFile(s.jitPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
			if err != nil {
				s.jitPath = ""
				return s, fmt.Errorf("opening jit log: %w", err)
			}
			if err = l.Enable(s.jitFile); err != nil {
				return s, fmt.Errorf("enabling jit log: %w", err)
			}
			s.jitlog = l
		} else {
			log.Debug("No JIT log implementation registered, skipping JIT log")
		}
	}

	if err = m.sampler.Enable(s.file, m.cfg.period, m.cfg.memory, m.cfg.lines); err != nil {
		return s, fmt.Errorf("enabling sampler: %w", err)
	}
	s.metrics.reset(s.start)
	s.state = stateStarted
	log.Debug("Started session %s writing to %s", s.id, s.path)
	return s, nil
}

// discard releases what a failed start acquired.
func (m *Middleware) discard(s *Session) {
	if s.jitlog != nil {
		if err := s.jitlog.Disable(); err != nil {
			log.Warn("Disabling JIT log: %v", err)
		}
	}
	s.closeFiles()
	if m.mode == OutputFile {
		if s.jitPath != "" {
			os.Remove(s.jitPath)
		}
		return
	}
	if err := removeArtifacts(s); err != nil {
		log.Warn("Removing temporary profile: %v", err)
	}
}

// Stop disables sampling, closes the profile target, restores the garbage
// collector and hands the profile to the configured output. Outside of file
// mode the profile files are removed afterwards. All errors encountered are
// returned joined.
func (m *Middleware) Stop(s *Session) error {
	if s == nil || (s.state != stateStarted && s.state != stateRunning) {
		return errSessionNotStarted
	}
	if s.owner != m {
		return errForeignSession
	}
	defer releaseSlot()
	s.state = stateStopped

	var errs []error
	if err := m.sampler.Disable(); err != nil {
		errs = append(errs, fmt.Errorf("disabling sampler: %w", err))
	}
	if s.jitlog != nil {
		if err := s.jitlog.Disable(); err != nil {
			errs = append(errs, fmt.Errorf("disabling jit log: %w", err))
		}
	}
	if err := s.closeFiles(); err != nil {
		errs = append(errs, fmt.Errorf("closing profile: %w", err))
	}
	s.resumeGC(m.cfg.keepGCDisabled)

	now := time.Now()
	s.metrics.report(now, m.cfg.statsd, m.cfg.tags)
	m.cfg.statsd.Timing("vmprof.session.duration", now.Sub(s.start), m.cfg.tags, 1)

	if len(errs) == 0 {
		if err := m.dispatch(context.Background(), s); err != nil {
			errs = append(errs, err)
		}
	}
	if m.mode != OutputFile {
		if err := removeArtifacts(s); err != nil {
			errs = append(errs, fmt.Errorf("removing profile: %w", err))
		}
	}
	if len(errs) > 0 {
		m.cfg.statsd.Count("vmprof.session.error", 1, m.cfg.tags, 1)
	}
	log.Debug("Stopped session %s after %s", s.id, now.Sub(s.start))
	return errors.Join(errs...)
}

// Call profiles fn. The garbage collector is disabled while fn runs. The
// error of fn is returned as is, joined with the error of Stop if stopping
// fails. If the profiler cannot be started fn is not run and the start
// error is returned, except when another session is active: fn is then run
// without being profiled.
func (m *Middleware) Call(ctx context.Context, fn func(context.Context) error) (err error) {
	s, err := m.Start(ctx)
	if errors.Is(err, ErrSessionActive) {
		log.Debug("Another session is active, running call without profiling")
		m.cfg.statsd.Count("vmprof.session.skipped", 1, m.cfg.tags, 1)
		return fn(ctx)
	}
	if err != nil {
		return err
	}
	panicked := true
	defer func() {
		stopErr := m.Stop(s)
		if stopErr == nil {
			return
		}
		if panicked {
			log.Error("Stopping profiler after panic: %v", stopErr)
			return
		}
		err = errors.Join(err, stopErr)
	}()
	s.suspendGC()
	err = fn(ContextWithSession(ctx, s))
	panicked = false
	return err
}

// Run profiles fn like Call and returns its result.
func Run[T any](ctx context.Context, m *Middleware, fn func(context.Context) (T, error)) (T, error) {
	var v T
	err := m.Call(ctx, func(ctx context.Context) error {
		var err error
		v, err = fn(ctx)
		return err
	})
	return v, err
}
