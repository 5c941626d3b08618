package types

import (
	"sort"
	"time"
)

// CycleTiming maps stage name to the wall time it took within one tick.
type CycleTiming map[string]time.Duration

// Total returns the sum of all stage durations.
func (t CycleTiming) Total() time.Duration {
	var total time.Duration
	for _, d := range t {
		total += d
	}
	return total
}

// Millis returns the stage duration in fractional milliseconds.
func (t CycleTiming) Millis(stage string) float64 {
	return float64(t[stage]) / float64(time.Millisecond)
}

// Stages returns the stage names in lexical order.
func (t CycleTiming) Stages() []string {
	out := make([]string, 0, len(t))
	for s := range t {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (t CycleTiming) Clone() CycleTiming {
	out := make(CycleTiming, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}
