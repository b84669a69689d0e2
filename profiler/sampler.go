// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package profiler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"runtime"
	"runtime/pprof"
	"sync"
	"time"

	pprofile "github.com/google/pprof/profile"

	"github.com/vmprof/vmprof-go/internal/log"
	"github.com/vmprof/vmprof-go/profiler/internal/pprofutils"
)

// Sampler is a statistical profiler writing its profile to the writer given
// to Enable once it is disabled.
type Sampler interface {
	// Enable starts sampling every period. With memory set, allocation
	// statistics are included. With lines set, statistics are kept per line
	// instead of per function.
	Enable(w io.Writer, period time.Duration, memory, lines bool) error
	// Disable stops sampling and writes the profile.
	Disable() error
}

var (
	errSamplerEnabled    = errors.New("sampler already enabled")
	errSamplerNotEnabled = errors.New("sampler not enabled")
)

// allocSampleTypes are the heap profile sample types covering allocations
// since the start of the process. The in-use types are snapshots and are not
// added to profiles.
var allocSampleTypes = []pprofutils.ValueType{
	{Type: "alloc_objects", Unit: "count"},
	{Type: "alloc_space", Unit: "bytes"},
}

// pprofSampler samples with the Go runtime CPU profiler.
type pprofSampler struct {
	mu       sync.Mutex
	enabled  bool
	w        io.Writer
	buf      bytes.Buffer
	memory   bool
	lines    bool
	heapBase *pprofile.Profile
}

// defaultCPUProfileRate is the rate runtime/pprof.StartCPUProfile sets.
const defaultCPUProfileRate = 100

// cpuProfileRate returns the sampling frequency for period and whether it
// differs from the rate runtime/pprof sets on its own.
func cpuProfileRate(period time.Duration) (hz int, custom bool) {
	hz = int(time.Second / period)
	return hz, hz != defaultCPUProfileRate
}

func newPprofSampler() *pprofSampler {
	return &pprofSampler{}
}

func (s *pprofSampler) Enable(w io.Writer, period time.Duration, memory, lines bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enabled {
		return errSamplerEnabled
	}
	if period <= 0 || period > MaxPeriod {
		return fmt.Errorf("invalid sampling period %s", period)
	}
	s.buf.Reset()
	s.w, s.memory, s.lines, s.heapBase = w, memory, lines, nil
	if memory {
		runtime.GC()
		base, err := heapProfile()
		if err != nil {
			return fmt.Errorf("capturing heap baseline: %w", err)
		}
		s.heapBase = base
	}
	// The rate has to be set each time before profiling is started.
	// Otherwise, runtime/pprof.StartCPUProfile will set the rate itself.
	if hz, custom := cpuProfileRate(period); custom {
		runtime.SetCPUProfileRate(hz)
	}
	if err := pprof.StartCPUProfile(&s.buf); err != nil {
		return err
	}
	s.enabled = true
	return nil
}

func (s *pprofSampler) Disable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return errSamplerNotEnabled
	}
	pprof.StopCPUProfile()
	s.enabled = false

	p, err := pprofile.Parse(&s.buf)
	if err != nil {
		return fmt.Errorf("parsing cpu profile: %w", err)
	}
	if s.memory {
		if p, err = s.addAllocations(p); err != nil {
			return err
		}
	}
	if !s.lines {
		if err := p.Aggregate(true, true, true, false, false, false); err != nil {
			return err
		}
	}
	log.Debug("Sampled %d stacks", len(p.Sample))
	return p.Write(s.w)
}

// addAllocations merges the allocations made since Enable into cpu.
func (s *pprofSampler) addAllocations(cpu *pprofile.Profile) (*pprofile.Profile, error) {
	// The heap profile only reflects allocations up to the most recently
	// completed GC cycle.
	runtime.GC()
	curr, err := heapProfile()
	if err != nil {
		return nil, fmt.Errorf("capturing heap profile: %w", err)
	}
	allocs, err := pprofutils.Growth(s.heapBase, curr, allocSampleTypes...)
	if err != nil {
		return nil, fmt.Errorf("computing allocations: %w", err)
	}
	return pprofutils.Combine(cpu, allocs)
}

func heapProfile() (*pprofile.Profile, error) {
	var buf bytes.Buffer
	if err := pprof.Lookup("heap").WriteTo(&buf, 0); err != nil {
		return nil, err
	}
	return pprofile.Parse(&buf)
}
