// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2022 Datadog, Inc.

// Package logrus connects the profiler to the sirupsen/logrus package (https://github.com/sirupsen/logrus).
package logrus

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/vmprof/vmprof-go/profiler"
)

// SessionIDKey is the entry field holding the profiling session ID.
const SessionIDKey = "vmprof.session_id"

// Logger forwards the log output of the profiler to a logrus entry, mapping
// the level of every message to the matching logrus level.
type Logger struct {
	entry *logrus.Entry
}

var _ profiler.Logger = (*Logger)(nil)

// NewLogger returns a Logger writing to e. Use it with profiler.UseLogger.
func NewLogger(e *logrus.Entry) *Logger {
	return &Logger{entry: e.WithField("component", "vmprof")}
}

// Log implements profiler.Logger.
func (l *Logger) Log(msg string) {
	level, text := parseLevel(msg)
	l.entry.Log(level, text)
}

// parseLevel splits messages formatted as "<prefix> LEVEL: text".
func parseLevel(msg string) (logrus.Level, string) {
	for _, lvl := range []struct {
		tag   string
		level logrus.Level
	}{
		{" ERROR: ", logrus.ErrorLevel},
		{" WARN: ", logrus.WarnLevel},
		{" INFO: ", logrus.InfoLevel},
		{" DEBUG: ", logrus.DebugLevel},
	} {
		if _, text, ok := strings.Cut(msg, lvl.tag); ok {
			return lvl.level, text
		}
	}
	return logrus.InfoLevel, msg
}

// SessionHook adds the ID of the profiling session found in the entry
// context to the entry.
type SessionHook struct{}

var _ logrus.Hook = (*SessionHook)(nil)

// Levels implements logrus.Hook interface, this hook applies to all defined levels
func (h *SessionHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook interface, attaches the session ID found in
// entry context.
func (h *SessionHook) Fire(e *logrus.Entry) error {
	if e.Context == nil {
		return nil
	}
	if s, ok := profiler.SessionFromContext(e.Context); ok {
		e.Data[SessionIDKey] = s.ID()
	}
	return nil
}
