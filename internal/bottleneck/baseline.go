package bottleneck

import (
	"sort"
	"time"
)

// baseline is a per-stage ring of recent durations. The baseline value is
// the median of the window once enough samples exist.
type baseline struct {
	window     int
	minSamples int
	samples    map[string][]time.Duration
	next       map[string]int
}

func newBaseline(window, minSamples int) *baseline {
	return &baseline{
		window:     window,
		minSamples: minSamples,
		samples:    make(map[string][]time.Duration),
		next:       make(map[string]int),
	}
}

func (b *baseline) add(stage string, d time.Duration) {
	ring := b.samples[stage]
	if len(ring) < b.window {
		b.samples[stage] = append(ring, d)
		return
	}
	i := b.next[stage]
	ring[i] = d
	b.next[stage] = (i + 1) % b.window
}

// median returns the upper median of the stage window, or false while the
// window holds fewer than minSamples.
func (b *baseline) median(stage string) (time.Duration, bool) {
	ring := b.samples[stage]
	if len(ring) < b.minSamples {
		return 0, false
	}
	sorted := append([]time.Duration(nil), ring...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[len(sorted)/2], true
}

func (b *baseline) snapshot() map[string]time.Duration {
	out := make(map[string]time.Duration, len(b.samples))
	for stage := range b.samples {
		if m, ok := b.median(stage); ok {
			out[stage] = m
		}
	}
	return out
}
