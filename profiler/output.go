// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

package profiler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/vmprof/vmprof-go/internal/log"
	"github.com/vmprof/vmprof-go/profiler/cli"
	"github.com/vmprof/vmprof-go/service"
)

// OutputMode selects where the profile of a call goes.
type OutputMode int

const (
	// OutputCLI renders the profile on the terminal.
	OutputCLI OutputMode = iota
	// OutputWeb uploads the profile to the reporting service.
	OutputWeb
	// OutputFile keeps the profile in the configured output file.
	OutputFile
)

func (m OutputMode) String() string {
	switch m {
	case OutputCLI:
		return "cli"
	case OutputWeb:
		return "web"
	case OutputFile:
		return "file"
	default:
		return fmt.Sprintf("OutputMode(%d)", int(m))
	}
}

// Reporter uploads collected profiles. *service.Service is the default
// implementation.
type Reporter interface {
	Post(ctx context.Context, fields service.Fields) error
}

// dispatch hands the closed profile of s to the configured output.
func (m *Middleware) dispatch(ctx context.Context, s *Session) error {
	switch m.mode {
	case OutputCLI:
		p, err := cli.ReadProfile(s.path)
		if err != nil {
			return err
		}
		return cli.Show(m.cfg.stdout, p, cli.Options{Lines: m.cfg.lines})
	case OutputWeb:
		fmt.Fprintf(m.cfg.stderr, "Compiling and uploading to %s...\n", m.cfg.webURL)
		fields := service.Fields{
			service.FileCPUProfile: s.path,
			service.FieldVM:        Implementation(),
		}
		if s.jitPath != "" {
			fields[service.FileJITProfile] = s.jitPath
		}
		start := time.Now()
		err := m.reporter.Post(ctx, fields)
		m.cfg.statsd.Timing("vmprof.report.duration", time.Since(start), m.cfg.tags, 1)
		if err != nil {
			return fmt.Errorf("uploading profile: %w", err)
		}
		return nil
	default:
		log.Debug("Profile of session %s written to %s", s.id, s.path)
		return nil
	}
}

// removeArtifacts deletes the files of s. Files that are already gone are
// not an error.
func removeArtifacts(s *Session) error {
	var errs []error
	for _, path := range []string{s.path, s.jitPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
