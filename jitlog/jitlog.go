// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2022 Datadog, Inc.

// Package jitlog provides a registry for the optional JIT-log collector.
//
// The JIT log is a side-channel trace recorded next to the CPU profile. Its
// collector may require facilities that typical users don't want linked into
// their binaries, so the profiler package never imports an implementation
// directly. An implementation registers itself here, usually from an init
// function, which makes the capability known once at process start:
//
//	import _ "github.com/vmprof/vmprof-go/jitlog/exectrace"
package jitlog

import (
	"io"
	"sync"
)

// Logger records a JIT log into a writer.
//
// A Logger implementation is not necessarily safe to use from multiple
// goroutines concurrently; the profiler serializes sessions.
type Logger interface {
	// Enable starts recording the JIT log into w.
	Enable(w io.Writer) error
	// Disable stops recording and flushes any buffered data into the writer
	// given to Enable.
	Disable() error
}

var (
	mu     sync.RWMutex
	logger Logger
)

// Register registers a JIT-log collector implementation. Registering nil
// removes the capability.
func Register(l Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

// Lookup returns the currently registered JIT-log collector, if one is
// registered.
func Lookup() (impl Logger, registered bool) {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		return nil, false
	}
	return logger, true
}

// Available reports whether a JIT-log collector is registered.
func Available() bool {
	_, ok := Lookup()
	return ok
}
