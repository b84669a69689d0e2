// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2022 Datadog, Inc.

package profiler

import (
	"github.com/vmprof/vmprof-go/internal/log"
)

// Logger receives the log output of the middleware.
type Logger interface {
	Log(msg string)
}

// UseLogger sets l as the destination of all log output of the middleware,
// the sampler and the upload client. The returned function restores the
// previous logger.
func UseLogger(l Logger) (undo func()) {
	return log.UseLogger(l)
}

// LogLevel is the threshold below which messages are not passed to the
// Logger.
type LogLevel int

const (
	// LogLevelDebug passes every message, including per-session details.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo passes informational messages, warnings and errors.
	LogLevelInfo
	// LogLevelWarn passes warnings and errors. It is the default unless
	// VMPROF_DEBUG is set.
	LogLevelWarn
)

// SetLogLevel sets the threshold of the log output of the middleware.
func SetLogLevel(lvl LogLevel) {
	switch lvl {
	case LogLevelDebug:
		log.SetLevel(log.LevelDebug)
	case LogLevelInfo:
		log.SetLevel(log.LevelInfo)
	default:
		log.SetLevel(log.LevelWarn)
	}
}
