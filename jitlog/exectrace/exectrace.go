// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2022 Datadog, Inc.

// Package exectrace registers the Go execution tracer as the JIT-log
// collector. Import it for its side effect:
//
//	import _ "github.com/vmprof/vmprof-go/jitlog/exectrace"
package exectrace

import (
	"errors"
	"io"
	"runtime/trace"
	"sync"

	"github.com/vmprof/vmprof-go/internal/log"
	"github.com/vmprof/vmprof-go/jitlog"
)

// DefaultLimit is the default maximum number of bytes written to a JIT log
// before the execution tracer is stopped early.
const DefaultLimit = 5 * 1024 * 1024

func init() {
	jitlog.Register(New(DefaultLimit))
}

// Tracer records a runtime/trace execution trace as JIT log.
type Tracer struct {
	limit int64

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	exited  chan struct{}
}

var _ jitlog.Logger = (*Tracer)(nil)

// New returns a Tracer that stops tracing once limit bytes have been written.
// A limit <= 0 disables the size limit.
func New(limit int64) *Tracer {
	return &Tracer{limit: limit}
}

// Enable implements jitlog.Logger.
func (t *Tracer) Enable(w io.Writer) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return errors.New("execution tracer already enabled")
	}
	lt := newLimitedTraceCollector(w, t.limit)
	if err := trace.Start(lt); err != nil {
		return err
	}
	t.running = true
	t.stop = make(chan struct{})
	t.exited = make(chan struct{})
	go func(stop, exited chan struct{}) {
		defer close(exited)
		select {
		case <-stop:
		case <-lt.done:
			log.Debug("JIT log reached its size limit of %d bytes, stopping the execution tracer", t.limit)
		}
		trace.Stop()
	}(t.stop, t.exited)
	return nil
}

// Disable implements jitlog.Logger. It blocks until the trace has been
// flushed to the writer given to Enable.
func (t *Tracer) Disable() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return nil
	}
	close(t.stop)
	<-t.exited
	t.running = false
	return nil
}

type limitedTraceCollector struct {
	w       io.Writer
	limit   int64
	written int64
	// done is closed to signal that the limit has been exceeded
	done chan struct{}
}

func newLimitedTraceCollector(w io.Writer, limit int64) *limitedTraceCollector {
	return &limitedTraceCollector{w: w, limit: limit, done: make(chan struct{})}
}

// Write calls the underlying writer's Write method, and signals that tracing
// should stop once the limit has been reached.
func (l *limitedTraceCollector) Write(p []byte) (n int, err error) {
	n, err = l.w.Write(p)
	if err != nil {
		return
	}
	l.written += int64(n)
	if l.limit > 0 && l.written >= l.limit {
		select {
		case <-l.done:
		default:
			close(l.done)
		}
	}
	return
}
