// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

package profiler

import (
	"context"
	"os"
	"runtime/debug"
	"time"

	"github.com/vmprof/vmprof-go/jitlog"
)

type sessionState int

const (
	stateIdle sessionState = iota
	stateStarted
	stateRunning
	stateStopped
)

func (s sessionState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateStarted:
		return "started"
	case stateRunning:
		return "running"
	case stateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Session holds the resources of one profiled call. It is returned by
// Middleware.Start and must be passed to Middleware.Stop.
type Session struct {
	id    string
	owner *Middleware
	state sessionState
	start time.Time

	file *os.File
	path string

	jitlog  jitlog.Logger
	jitFile *os.File
	jitPath string

	gcSuspended bool
	gcPercent   int

	metrics *metrics
}

// ID returns the unique identifier of the session.
func (s *Session) ID() string { return s.id }

// Path returns the path of the profile file.
func (s *Session) Path() string { return s.path }

// JITLogPath returns the path of the JIT log, or "" when none is collected.
func (s *Session) JITLogPath() string { return s.jitPath }

// suspendGC disables the garbage collector until resumeGC is called.
func (s *Session) suspendGC() {
	s.gcPercent = debug.SetGCPercent(-1)
	s.gcSuspended = true
	s.state = stateRunning
}

func (s *Session) resumeGC(keepDisabled bool) {
	if !s.gcSuspended {
		return
	}
	s.gcSuspended = false
	if !keepDisabled {
		debug.SetGCPercent(s.gcPercent)
	}
}

// closeFiles closes the profile and JIT log files, ignoring files that are
// already closed.
func (s *Session) closeFiles() error {
	var err error
	if s.jitFile != nil {
		err = s.jitFile.Close()
		s.jitFile = nil
	}
	if s.file != nil {
		if cerr := s.file.Close(); err == nil {
			err = cerr
		}
		s.file = nil
	}
	return err
}

type sessionKey struct{}

// ContextWithSession returns a copy of ctx carrying s.
func ContextWithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session of the profiled call ctx belongs to.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok
}
