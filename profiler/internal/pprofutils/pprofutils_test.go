// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2021 Datadog, Inc.

package pprofutils

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/pprof/profile"
	"github.com/stretchr/testify/require"
)

func mustText(t *testing.T, s string) *profile.Profile {
	t.Helper()
	p, err := Text{}.Convert(strings.NewReader(strings.TrimSpace(s)))
	require.NoError(t, err)
	return p
}

func folded(t *testing.T, p *profile.Profile, sampleTypes bool) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Protobuf{SampleTypes: sampleTypes}.Convert(p, &buf))
	return buf.String()
}

func TestText(t *testing.T) {
	t.Run("roundtrip", func(t *testing.T) {
		p := mustText(t, `
main;foo 5
main;foo;bar 3
main;foobar 4
`)
		require.Len(t, p.Sample, 3)
		require.Equal(t, "main;foo 5\nmain;foo;bar 3\nmain;foobar 4\n", folded(t, p, false))
	})

	t.Run("leafFirst", func(t *testing.T) {
		p := mustText(t, "main;foo;bar 1")
		require.Len(t, p.Sample, 1)
		require.Equal(t, "bar", p.Sample[0].Location[0].Line[0].Function.Name)
		require.Equal(t, "main", p.Sample[0].Location[2].Line[0].Function.Name)
	})

	t.Run("badValueCount", func(t *testing.T) {
		_, err := Text{}.Convert(strings.NewReader("x/count y/count\nmain;foo 1"))
		require.Error(t, err)
	})

	t.Run("badValue", func(t *testing.T) {
		_, err := Text{}.Convert(strings.NewReader("main;foo abc"))
		require.Error(t, err)
	})
}

func TestGrowth(t *testing.T) {
	const a = `
x/count y/count
main;foo 5 10
main;foo;bar 3 6
main;foobar 4 8
`
	const b = `
x/count y/count
main;foo 8 16
main;foo;bar 3 6
main;foobar 5 10
main;baz 2 4
`

	t.Run("singleType", func(t *testing.T) {
		grown, err := Growth(mustText(t, a), mustText(t, b), ValueType{Type: "x", Unit: "count"})
		require.NoError(t, err)
		require.Equal(t, "x/count\nmain;baz 2\nmain;foo 3\nmain;foobar 1\n", folded(t, grown, true))
	})

	t.Run("allTypes", func(t *testing.T) {
		grown, err := Growth(mustText(t, a), mustText(t, b),
			ValueType{Type: "x", Unit: "count"}, ValueType{Type: "y", Unit: "count"})
		require.NoError(t, err)
		require.Equal(t, "x/count y/count\nmain;baz 2 4\nmain;foo 3 6\nmain;foobar 1 2\n", folded(t, grown, true))
	})

	t.Run("shrunk", func(t *testing.T) {
		grown, err := Growth(mustText(t, b), mustText(t, a), ValueType{Type: "x", Unit: "count"})
		require.NoError(t, err)
		require.Empty(t, grown.Sample)
	})

	t.Run("inputsUntouched", func(t *testing.T) {
		base, curr := mustText(t, a), mustText(t, b)
		_, err := Growth(base, curr, ValueType{Type: "x", Unit: "count"})
		require.NoError(t, err)
		require.Equal(t, int64(8), curr.Sample[0].Value[0])
		require.Len(t, curr.SampleType, 2)
	})

	t.Run("unknownSampleType", func(t *testing.T) {
		_, err := Growth(mustText(t, a), mustText(t, b), ValueType{Type: "z", Unit: "count"})
		require.Error(t, err)
	})

	t.Run("noSampleTypes", func(t *testing.T) {
		_, err := Growth(mustText(t, a), mustText(t, b))
		require.Error(t, err)
	})
}

func TestCombine(t *testing.T) {
	t.Run("disjointSampleTypes", func(t *testing.T) {
		cpu := mustText(t, `
samples/count cpu/nanoseconds
main;foo 2 20
main;bar 1 10
`)
		alloc := mustText(t, `
alloc_objects/count alloc_space/bytes
main;foo 4 400
main;baz 1 64
`)
		combined, err := Combine(cpu, alloc)
		require.NoError(t, err)
		require.Equal(t, `samples/count cpu/nanoseconds alloc_objects/count alloc_space/bytes
main;bar 1 10 0 0
main;baz 0 0 1 64
main;foo 2 20 4 400
`, folded(t, combined, true))
		require.Equal(t, cpu.PeriodType.Type, combined.PeriodType.Type)

		// inputs are left untouched
		require.Len(t, cpu.SampleType, 2)
		require.Len(t, alloc.Sample[0].Value, 2)
	})

	t.Run("sharedSampleTypes", func(t *testing.T) {
		combined, err := Combine(mustText(t, "main;foo 1"), mustText(t, "main;foo 2"))
		require.NoError(t, err)
		require.Equal(t, "main;foo 3\n", folded(t, combined, false))
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Combine()
		require.Error(t, err)
	})
}

func TestSelect(t *testing.T) {
	p := mustText(t, `
x/count y/count z/count
main;foo 1 0 3
main;bar 0 0 7
`)
	s, err := Select(p, ValueType{Type: "y", Unit: "count"}, ValueType{Type: "x", Unit: "count"})
	require.NoError(t, err)
	require.Equal(t, "y/count x/count\nmain;foo 0 1\n", folded(t, s, true))
	require.Len(t, p.SampleType, 3)

	_, err = Select(p, ValueType{Type: "w", Unit: "count"})
	require.Error(t, err)
}
