// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2021 Datadog, Inc.

// Package pprofutils post-processes pprof profiles collected during a
// profiling session.
package pprofutils

import (
	"errors"
	"strconv"
	"strings"

	"github.com/google/pprof/profile"
)

// ValueType describes the type and unit of a sample value.
type ValueType struct {
	Type string
	Unit string
}

// Growth returns how much the given sample types grew from base to curr. The
// result only carries those sample types, and samples that did not grow are
// dropped. Samples are matched on their symbolized stacks: the same program
// counters are sometimes symbolized with different file names, and matching
// on addresses would report them as new. Neither input is modified.
//
// This is meant for cumulative profiles such as the alloc_* sample types of
// the heap profile.
func Growth(base, curr *profile.Profile, types ...ValueType) (*profile.Profile, error) {
	if len(types) == 0 {
		return nil, errors.New("no sample types to compare")
	}
	before, err := Select(base, types...)
	if err != nil {
		return nil, err
	}
	after, err := Select(curr, types...)
	if err != nil {
		return nil, err
	}

	seen := make(map[string][]int64, len(before.Sample))
	for _, s := range before.Sample {
		k := stackKey(s)
		acc := seen[k]
		if acc == nil {
			acc = make([]int64, len(types))
			seen[k] = acc
		}
		for i, v := range s.Value {
			acc[i] += v
		}
	}

	grown := after.Sample[:0]
	for _, s := range after.Sample {
		if acc := seen[stackKey(s)]; acc != nil {
			for i := range s.Value {
				if d := min(acc[i], s.Value[i]); d > 0 {
					s.Value[i] -= d
					acc[i] -= d
				}
			}
		}
		if hasPositiveValue(s) {
			grown = append(grown, s)
		}
	}
	after.Sample = grown
	return after, after.CheckValid()
}

// stackKey identifies a sample by the functions and lines of its stack.
func stackKey(s *profile.Sample) string {
	var b strings.Builder
	for _, loc := range s.Location {
		for _, l := range loc.Line {
			if l.Function != nil {
				b.WriteString(l.Function.Name)
			}
			b.WriteByte(':')
			b.WriteString(strconv.FormatInt(l.Line, 10))
			b.WriteByte(';')
		}
	}
	return b.String()
}

func hasPositiveValue(s *profile.Sample) bool {
	for _, v := range s.Value {
		if v > 0 {
			return true
		}
	}
	return false
}
