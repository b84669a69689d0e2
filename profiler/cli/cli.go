// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

// Package cli renders profiles on a terminal.
package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/google/pprof/profile"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/vmprof/vmprof-go/profiler/internal/pprofutils"
)

// DefaultTop is the number of functions shown when Options.Top is not set.
const DefaultTop = 20

var (
	headerColor = color.New(color.Bold)
	titleColor  = color.New(color.FgCyan, color.Bold)
)

// Options configures Show.
type Options struct {
	// Lines shows the source location of every entry and keeps entries of
	// the same function on different lines apart.
	Lines bool
	// Top limits the number of entries per table.
	Top int
}

// ReadProfile parses the profile at path. Besides the pprof formats it
// accepts folded stacks, one "frame;frame;... value..." line per sample,
// optionally preceded by a "type/unit ..." header.
func ReadProfile(path string) (*profile.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := profile.ParseData(data)
	if err == nil {
		return p, nil
	}
	p, textErr := pprofutils.Text{}.Convert(bytes.NewReader(data))
	if textErr != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return p, nil
}

// Fold writes p to w as folded stacks, the format flame graph tools read.
func Fold(w io.Writer, p *profile.Profile) error {
	if p == nil {
		return errors.New("no profile to fold")
	}
	return pprofutils.Protobuf{SampleTypes: true}.Convert(p, w)
}

// Show writes a summary of p followed by its hottest entries to w. When p
// carries allocation sample types a second table lists the biggest
// allocators.
func Show(w io.Writer, p *profile.Profile, opts Options) error {
	if p == nil {
		return errors.New("no profile to show")
	}
	if opts.Top <= 0 {
		opts.Top = DefaultTop
	}

	samples, cpu := sampleIndex(p, "samples"), sampleIndex(p, "cpu")
	var nSamples, total int64
	for _, s := range p.Sample {
		if samples >= 0 {
			nSamples += s.Value[samples]
		}
		if cpu >= 0 {
			total += s.Value[cpu]
		}
	}
	headerColor.Fprintf(w, "vmprof output:\n")
	fmt.Fprintf(w, "duration: %s  samples: %d  period: %s  total cpu: %s\n",
		time.Duration(p.DurationNanos), nSamples, periodString(p), time.Duration(total))

	if len(p.Sample) == 0 {
		fmt.Fprintln(w, "no samples recorded")
		return nil
	}
	if cpu >= 0 {
		renderTable(w, "cpu", entries(p, cpu, opts.Lines), opts, func(v int64) string { return time.Duration(v).String() })
	} else {
		renderTable(w, p.SampleType[0].Type, entries(p, 0, opts.Lines), opts, func(v int64) string { return fmt.Sprint(v) })
	}
	if space := sampleIndex(p, "alloc_space"); space >= 0 {
		renderTable(w, "alloc_space", entries(p, space, opts.Lines), opts, formatBytes)
	}
	return nil
}

func sampleIndex(p *profile.Profile, typ string) int {
	for i, st := range p.SampleType {
		if st.Type == typ {
			return i
		}
	}
	return -1
}

func periodString(p *profile.Profile) string {
	if p.PeriodType != nil && p.PeriodType.Unit == "nanoseconds" {
		return time.Duration(p.Period).String()
	}
	return fmt.Sprint(p.Period)
}

type entry struct {
	name     string
	location string
	flat     int64
	cum      int64
}

// entries computes flat and cumulative values of every function, or of every
// function line when lines is set.
func entries(p *profile.Profile, idx int, lines bool) (list []*entry) {
	byKey := map[string]*entry{}
	get := func(l profile.Line) *entry {
		name, loc := "?", ""
		if l.Function != nil {
			name = l.Function.Name
			if lines {
				loc = fmt.Sprintf("%s:%d", l.Function.Filename, l.Line)
			}
		}
		key := name + " " + loc
		e, ok := byKey[key]
		if !ok {
			e = &entry{name: name, location: loc}
			byKey[key] = e
			list = append(list, e)
		}
		return e
	}
	for _, s := range p.Sample {
		v := s.Value[idx]
		if v == 0 {
			continue
		}
		seen := map[*entry]bool{}
		for i, loc := range s.Location {
			for j, l := range loc.Line {
				e := get(l)
				if i == 0 && j == 0 {
					e.flat += v
				}
				if !seen[e] {
					seen[e] = true
					e.cum += v
				}
			}
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].flat != list[j].flat {
			return list[i].flat > list[j].flat
		}
		if list[i].cum != list[j].cum {
			return list[i].cum > list[j].cum
		}
		return list[i].name < list[j].name
	})
	return list
}

func renderTable(w io.Writer, title string, list []*entry, opts Options, format func(int64) string) {
	var total int64
	for _, e := range list {
		total += e.flat
	}
	if total == 0 {
		return
	}
	if len(list) > opts.Top {
		list = list[:opts.Top]
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(titleColor.Sprint(title))
	header := table.Row{"flat", "flat%", "cum", "cum%", "function"}
	if opts.Lines {
		header = append(header, "location")
	}
	t.AppendHeader(header)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	for _, e := range list {
		row := table.Row{
			format(e.flat), percent(e.flat, total),
			format(e.cum), percent(e.cum, total),
			e.name,
		}
		if opts.Lines {
			row = append(row, e.location)
		}
		t.AppendRow(row)
	}
	t.Render()
}

func percent(v, total int64) string {
	return fmt.Sprintf("%.2f%%", 100*float64(v)/float64(total))
}

func formatBytes(v int64) string {
	const unit = 1024
	if v < unit {
		return fmt.Sprintf("%dB", v)
	}
	div, exp := int64(unit), 0
	for n := v / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(v)/float64(div), "KMGTPE"[exp])
}
