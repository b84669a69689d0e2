// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

// Package log provides logging utilities for the profiling middleware.
package log

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vmprof/vmprof-go/internal/version"
)

// Level specifies the logging level that the log package prints at.
type Level int

const (
	// LevelDebug represents debug level messages.
	LevelDebug Level = iota
	// LevelInfo represents informational messages.
	LevelInfo
	// LevelWarn represents warning and errors.
	LevelWarn
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	default:
		return "WARN"
	}
}

// Logger implementations are able to log given messages that the middleware
// might output.
type Logger interface {
	// Log prints the given message.
	Log(msg string)
}

var prefix = "vmprof-go " + version.Tag

var (
	mu        sync.RWMutex
	threshold = LevelWarn
	logger    Logger = &stdLogger{l: log.New(os.Stderr, "", log.LstdFlags)}
)

var errs = newAggregator(loggingRate(os.Getenv("VMPROF_LOGGING_RATE")))

func init() {
	if debug, _ := strconv.ParseBool(os.Getenv("VMPROF_DEBUG")); debug {
		threshold = LevelDebug
	}
}

// UseLogger sets l as the active logger and returns a function to restore the
// previous logger. Pending errors are flushed to the old logger first.
func UseLogger(l Logger) (undo func()) {
	Flush()
	mu.Lock()
	prev := logger
	logger = l
	mu.Unlock()
	return func() { UseLogger(prev) }
}

// SetLevel sets the given lvl as log threshold for logging.
func SetLevel(lvl Level) {
	mu.Lock()
	threshold = lvl
	mu.Unlock()
}

func enabled(lvl Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return lvl >= threshold
}

// DebugEnabled returns true if debug log messages are enabled.
func DebugEnabled() bool { return enabled(LevelDebug) }

// Debug prints the given message if the level is LevelDebug.
func Debug(format string, a ...interface{}) {
	if enabled(LevelDebug) {
		printMsg(LevelDebug.String(), format, a...)
	}
}

// Info prints an informational message if the level is LevelInfo or lower.
func Info(format string, a ...interface{}) {
	if enabled(LevelInfo) {
		printMsg(LevelInfo.String(), format, a...)
	}
}

// Warn prints a warning message.
func Warn(format string, a ...interface{}) {
	printMsg(LevelWarn.String(), format, a...)
}

// Error reports an error. Errors sharing a format are aggregated and logged
// once per VMPROF_LOGGING_RATE seconds (one minute by default). A rate of 0
// logs every error immediately.
func Error(format string, a ...interface{}) {
	errs.add(format, a...)
}

// Flush logs and resets all aggregated errors.
func Flush() {
	errs.flush()
}

func printMsg(lvl, format string, a ...interface{}) {
	msg := prefix + " " + lvl + ": " + fmt.Sprintf(format, a...)
	mu.RLock()
	logger.Log(msg)
	mu.RUnlock()
}

// loggingRate parses v as a number of seconds.
func loggingRate(v string) time.Duration {
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil || sec < 0 {
		return time.Minute
	}
	return time.Duration(sec) * time.Second
}

// errorLimit is the number of errors counted per format before further
// occurrences are dropped without locking.
const errorLimit = 200

type errorReport struct {
	first time.Time
	err   error
	count uint64
}

func (r *errorReport) String() string {
	switch {
	case r.count > errorLimit:
		return fmt.Sprintf("%v, %d+ additional messages skipped (first occurrence: %s)", r.err, errorLimit, r.first.Format(time.RFC822))
	case r.count > 1:
		return fmt.Sprintf("%v, %d additional messages skipped (first occurrence: %s)", r.err, r.count-1, r.first.Format(time.RFC822))
	default:
		return r.err.Error()
	}
}

// aggregator groups errors by format until they are flushed.
type aggregator struct {
	mu        sync.RWMutex
	rate      time.Duration
	reports   map[string]*errorReport
	scheduled bool
}

func newAggregator(rate time.Duration) *aggregator {
	return &aggregator{rate: rate, reports: map[string]*errorReport{}}
}

func (a *aggregator) saturated(key string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.reports[key]
	return ok && r.count > errorLimit
}

func (a *aggregator) add(format string, args ...interface{}) {
	if a.saturated(format) {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.reports[format]
	if !ok {
		r = &errorReport{err: fmt.Errorf(format, args...), first: time.Now()}
		a.reports[format] = r
	}
	r.count++
	if a.rate == 0 {
		a.flushLocked()
		return
	}
	if !a.scheduled {
		a.scheduled = true
		time.AfterFunc(a.rate, a.flush)
	}
}

func (a *aggregator) flush() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.flushLocked()
}

func (a *aggregator) flushLocked() {
	for key, r := range a.reports {
		printMsg("ERROR", "%s", r)
		delete(a.reports, key)
	}
	a.scheduled = false
}

type stdLogger struct{ l *log.Logger }

func (p *stdLogger) Log(msg string) { p.l.Print(msg) }

// DiscardLogger discards every call to Log().
type DiscardLogger struct{}

// Log implements Logger.
func (DiscardLogger) Log(string) {}

// RecordLogger records every call to Log() and makes it available via Logs().
type RecordLogger struct {
	mu     sync.Mutex
	logs   []string
	ignore []string
}

// Ignore drops future messages containing any of substrings.
func (r *RecordLogger) Ignore(substrings ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ignore = append(r.ignore, substrings...)
}

// Log implements Logger.
func (r *RecordLogger) Log(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.ignore {
		if strings.Contains(msg, s) {
			return
		}
	}
	r.logs = append(r.logs, msg)
}

// Logs returns the recorded messages in order.
func (r *RecordLogger) Logs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.logs...)
}

// Reset forgets all recorded messages and ignored substrings.
func (r *RecordLogger) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = r.logs[:0]
	r.ignore = r.ignore[:0]
}
