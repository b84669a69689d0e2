// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-2020 Datadog, Inc.

package profiler

import (
	"math"
	"runtime"
	"time"
)

// StatsdClient implementations can count, gauge and time events.
type StatsdClient interface {
	Count(name string, value int64, tags []string, rate float64) error
	Gauge(name string, value float64, tags []string, rate float64) error
	Timing(name string, value time.Duration, tags []string, rate float64) error
}

type point struct {
	metric string
	value  float64
}

// metrics captures runtime memory statistics over one profiling session.
type metrics struct {
	collectedAt time.Time
	stats       runtime.MemStats
	compute     func(*runtime.MemStats, *runtime.MemStats, time.Duration) []point
}

func newMetrics() *metrics {
	return &metrics{
		compute: computeMetrics,
	}
}

func (m *metrics) reset(now time.Time) {
	m.collectedAt = now
	runtime.ReadMemStats(&m.stats)
}

// report sends the difference between the stats captured by reset and the
// current ones as gauges.
func (m *metrics) report(now time.Time, client StatsdClient, tags []string) {
	period := now.Sub(m.collectedAt)
	previousStats := m.stats
	m.reset(now)

	for _, p := range removeInvalid(m.compute(&previousStats, &m.stats, period)) {
		client.Gauge("vmprof.runtime."+p.metric, p.value, tags, 1)
	}
}

func computeMetrics(prev *runtime.MemStats, curr *runtime.MemStats, period time.Duration) []point {
	return []point{
		{metric: "go_alloc_bytes", value: delta(curr.TotalAlloc, prev.TotalAlloc)},
		{metric: "go_allocs", value: delta(curr.Mallocs, prev.Mallocs)},
		{metric: "go_frees", value: delta(curr.Frees, prev.Frees)},
		{metric: "go_heap_growth_bytes", value: delta(curr.HeapAlloc, prev.HeapAlloc)},
		{metric: "go_gc_cycles", value: float64(curr.NumGC - prev.NumGC)},
		{metric: "go_alloc_bytes_per_sec", value: rate(curr.TotalAlloc, prev.TotalAlloc, period)},
	}
}

func delta(curr, prev uint64) float64 {
	return float64(int64(curr) - int64(prev))
}

func rate(curr, prev uint64, period time.Duration) float64 {
	return delta(curr, prev) / period.Seconds()
}

// removeInvalid removes NaN and +/-Inf values, e.g. rates of sessions too
// short to be measured.
func removeInvalid(points []point) (result []point) {
	for _, p := range points {
		if math.IsNaN(p.value) || math.IsInf(p.value, 0) {
			continue
		}
		result = append(result, p)
	}
	return result
}
