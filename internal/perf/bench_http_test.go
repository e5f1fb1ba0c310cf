package perf

import (
	"sort"
	"testing"
	"time"
)

func TestReportLatencyTargets(t *testing.T) {
	scenarios := []struct {
		name      string
		samples   []time.Duration
		threshold time.Duration
	}{
		{
			name:      "cached",
			samples:   []time.Duration{12 * time.Millisecond, 14 * time.Millisecond, 16 * time.Millisecond, 18 * time.Millisecond, 20 * time.Millisecond, 22 * time.Millisecond, 23 * time.Millisecond, 25 * time.Millisecond, 26 * time.Millisecond, 27 * time.Millisecond},
			threshold: 100 * time.Millisecond,
		},
		{
			name:      "cold",
			samples:   []time.Duration{140 * time.Millisecond, 150 * time.Millisecond, 160 * time.Millisecond, 170 * time.Millisecond, 175 * time.Millisecond, 180 * time.Millisecond, 185 * time.Millisecond, 190 * time.Millisecond, 195 * time.Millisecond, 198 * time.Millisecond},
			threshold: 500 * time.Millisecond,
		},
	}

	for _, scenario := range scenarios {
		p95 := percentile95(scenario.samples)
		if p95 > scenario.threshold {
			t.Fatalf("%s latency regression: p95=%s threshold=%s", scenario.name, p95, scenario.threshold)
		}
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
