// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2021 Datadog, Inc.

package pprofutils

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/pprof/profile"
)

// Text converts from folded text to protobuf format.
//
// Every line holds a semicolon separated stack trace (root first) followed by
// one or more values. An optional first line lists the sample types as
// type/unit pairs, e.g. "alloc_objects/count alloc_space/bytes".
type Text struct{}

// Convert parses the given text and returns it as a protobuf profile.
func (c Text) Convert(text io.Reader) (*profile.Profile, error) {
	var (
		p = &profile.Profile{
			TimeNanos:  time.Now().UnixNano(),
			SampleType: []*profile.ValueType{{Type: "samples", Unit: "count"}},
			PeriodType: &profile.ValueType{Type: "samples", Unit: "count"},
			Period:     1,
		}
		functionID = uint64(1)
		locationID = uint64(1)
		locations  = map[string]*profile.Location{}
	)

	scanner := bufio.NewScanner(text)
	for n := 0; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if n == 0 {
			if sampleTypes, ok := parseSampleTypes(line); ok {
				p.SampleType = sampleTypes
				continue
			}
		}

		parts := strings.Fields(line)
		if len(parts) < 2 {
			return nil, fmt.Errorf("bad line: %d: %q", n, line)
		}
		valueParts := parts[1:]
		if len(valueParts) != len(p.SampleType) {
			return nil, fmt.Errorf("bad line: %d: %q: got %d values, want %d", n, line, len(valueParts), len(p.SampleType))
		}
		values := make([]int64, 0, len(valueParts))
		for _, vs := range valueParts {
			v, err := strconv.ParseInt(vs, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("bad line: %d: %q: %w", n, line, err)
			}
			values = append(values, v)
		}

		stack := strings.Split(parts[0], ";")
		sample := &profile.Sample{Value: values}
		for i := range stack {
			frame := stack[len(stack)-i-1]
			if loc, ok := locations[frame]; ok {
				sample.Location = append(sample.Location, loc)
				continue
			}
			function := &profile.Function{
				ID:   functionID,
				Name: frame,
			}
			p.Function = append(p.Function, function)
			functionID++

			location := &profile.Location{
				ID:   locationID,
				Line: []profile.Line{{Function: function}},
			}
			p.Location = append(p.Location, location)
			locations[frame] = location
			locationID++

			sample.Location = append(sample.Location, location)
		}

		p.Sample = append(p.Sample, sample)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return p, p.CheckValid()
}

// parseSampleTypes parses a header line of type/unit pairs.
func parseSampleTypes(line string) ([]*profile.ValueType, bool) {
	var sampleTypes []*profile.ValueType
	for _, field := range strings.Fields(line) {
		typ, unit, ok := strings.Cut(field, "/")
		if !ok || strings.Contains(typ, ";") {
			return nil, false
		}
		sampleTypes = append(sampleTypes, &profile.ValueType{Type: typ, Unit: unit})
	}
	return sampleTypes, len(sampleTypes) > 0
}

// Protobuf converts from pprof's protobuf to folded text format.
type Protobuf struct {
	// SampleTypes causes the text output to begin with a header line listing
	// the sample types found in the profile.
	SampleTypes bool
}

// Convert marshals the given protobuf profile into folded text format.
// Stacks are printed root first and identical stacks are aggregated. Lines are
// sorted by stack so the output is deterministic.
func (c Protobuf) Convert(p *profile.Profile, w io.Writer) error {
	if c.SampleTypes {
		var sampleTypes []string
		for _, sampleType := range p.SampleType {
			sampleTypes = append(sampleTypes, sampleType.Type+"/"+sampleType.Unit)
		}
		if _, err := fmt.Fprintln(w, strings.Join(sampleTypes, " ")); err != nil {
			return err
		}
	}

	var (
		order  []string
		totals = map[string][]int64{}
	)
	for _, s := range p.Sample {
		var stack []string
		for i := range s.Location {
			loc := s.Location[len(s.Location)-i-1]
			for j := range loc.Line {
				line := loc.Line[len(loc.Line)-j-1]
				if line.Function != nil {
					stack = append(stack, line.Function.Name)
				}
			}
		}
		key := strings.Join(stack, ";")
		sum, ok := totals[key]
		if !ok {
			sum = make([]int64, len(s.Value))
			totals[key] = sum
			order = append(order, key)
		}
		for i, v := range s.Value {
			sum[i] += v
		}
	}
	sort.Strings(order)
	for _, key := range order {
		values := make([]string, 0, len(totals[key]))
		for _, v := range totals[key] {
			values = append(values, strconv.FormatInt(v, 10))
		}
		if _, err := fmt.Fprintf(w, "%s %s\n", key, strings.Join(values, " ")); err != nil {
			return err
		}
	}
	return nil
}
