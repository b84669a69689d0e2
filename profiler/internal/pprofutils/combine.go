// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

package pprofutils

import (
	"fmt"

	"github.com/google/pprof/profile"
)

// Combine returns a single profile holding the samples of all given profiles.
// Unlike profile.Merge, the inputs may carry different sample types: the result
// has the union of all sample types (in order of first appearance) and every
// sample is padded with zeros for the sample types its source did not have.
// The period type and period of the first profile are kept. The inputs are not
// modified.
func Combine(profiles ...*profile.Profile) (*profile.Profile, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("no profiles to combine")
	}
	var (
		union []*profile.ValueType
		index = map[ValueType]int{}
	)
	for _, p := range profiles {
		for _, st := range p.SampleType {
			key := ValueType{Type: st.Type, Unit: st.Unit}
			if _, ok := index[key]; ok {
				continue
			}
			index[key] = len(union)
			union = append(union, &profile.ValueType{Type: st.Type, Unit: st.Unit})
		}
	}

	first := profiles[0]
	periodType := profile.ValueType{}
	if first.PeriodType != nil {
		periodType = profile.ValueType{Type: first.PeriodType.Type, Unit: first.PeriodType.Unit}
	}
	widened := make([]*profile.Profile, 0, len(profiles))
	for _, p := range profiles {
		w := p.Copy()
		positions := make([]int, len(w.SampleType))
		for i, st := range w.SampleType {
			positions[i] = index[ValueType{Type: st.Type, Unit: st.Unit}]
		}
		for _, s := range w.Sample {
			values := make([]int64, len(union))
			for i, v := range s.Value {
				values[positions[i]] = v
			}
			s.Value = values
		}
		w.SampleType = make([]*profile.ValueType, len(union))
		for i, st := range union {
			w.SampleType[i] = &profile.ValueType{Type: st.Type, Unit: st.Unit}
		}
		pt := periodType
		w.PeriodType = &pt
		w.Period = first.Period
		w.DefaultSampleType = first.DefaultSampleType
		widened = append(widened, w)
	}

	combined, err := profile.Merge(widened)
	if err != nil {
		return nil, err
	}
	return combined, combined.CheckValid()
}

// Select returns a copy of p that only holds the given sample types, in the
// given order. Samples whose selected values are all zero are dropped.
func Select(p *profile.Profile, types ...ValueType) (*profile.Profile, error) {
	positions := make([]int, 0, len(types))
	for _, t := range types {
		pos := -1
		for i, st := range p.SampleType {
			if st.Type == t.Type && st.Unit == t.Unit {
				pos = i
				break
			}
		}
		if pos < 0 {
			return nil, fmt.Errorf("sample type %s/%s not found in profile", t.Type, t.Unit)
		}
		positions = append(positions, pos)
	}

	s := p.Copy()
	s.SampleType = make([]*profile.ValueType, len(types))
	for i, t := range types {
		s.SampleType[i] = &profile.ValueType{Type: t.Type, Unit: t.Unit}
	}
	s.DefaultSampleType = ""
	samples := s.Sample[:0]
	for _, sample := range s.Sample {
		values := make([]int64, len(positions))
		nonZero := false
		for i, pos := range positions {
			values[i] = sample.Value[pos]
			nonZero = nonZero || values[i] != 0
		}
		if !nonZero {
			continue
		}
		sample.Value = values
		samples = append(samples, sample)
	}
	s.Sample = samples
	return s, s.CheckValid()
}
