package communication

import "time"

// History returns up to n recent results, newest first. n <= 0 returns all.
func (g *Gate) History(n int) []Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	size := len(g.history)
	if n <= 0 || n > size {
		n = size
	}
	out := make([]Result, 0, n)
	for i := 1; i <= n; i++ {
		idx := (g.histNext - i + g.config.HistorySize) % g.config.HistorySize
		if idx >= size {
			break
		}
		out = append(out, g.history[idx])
	}
	return out
}

// Deferred returns a copy of the deferred queue, oldest first.
func (g *Gate) Deferred() []DeferredEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]DeferredEntry(nil), g.deferred...)
}

// Counts returns the per-decision totals.
func (g *Gate) Counts() map[Decision]uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[Decision]uint64, len(g.counts))
	for k, v := range g.counts {
		out[k] = v
	}
	return out
}

// Summary is a point-in-time view of gate activity.
type Summary struct {
	Total          uint64               `yaml:"total_decisions"`
	Counts         map[Decision]uint64  `yaml:"counts"`
	Distribution   map[Decision]float64 `yaml:"distribution"`
	DeferredQueue  int                  `yaml:"deferred_queue_size"`
	ReadyDeferred  int                  `yaml:"ready_deferred"`
	Dropped        uint64               `yaml:"dropped_deferred"`
	Exhausted      uint64               `yaml:"exhausted_deferred"`
	Recent         []Decision           `yaml:"recent_decisions"`
	HistorySize    int                  `yaml:"history_size"`
	LastEvaluation time.Time            `yaml:"last_evaluation"`
}

// Summary returns counters, the decision distribution and the last five
// decisions (newest first). Readiness is judged at the last evaluation.
func (g *Gate) Summary() Summary {
	recent := g.History(5)

	g.mu.Lock()
	defer g.mu.Unlock()
	s := Summary{
		Counts:         make(map[Decision]uint64, 3),
		Distribution:   make(map[Decision]float64, 3),
		DeferredQueue:  len(g.deferred),
		Dropped:        g.dropped,
		Exhausted:      g.exhausted,
		HistorySize:    len(g.history),
		LastEvaluation: g.lastEval,
	}
	for _, d := range []Decision{Speak, Silence, Defer} {
		s.Counts[d] = g.counts[d]
		s.Total += g.counts[d]
	}
	if s.Total > 0 {
		for d, c := range s.Counts {
			s.Distribution[d] = float64(c) / float64(s.Total)
		}
	}
	for _, e := range g.deferred {
		if !g.lastEval.Before(e.ReconsiderAt) {
			s.ReadyDeferred++
		}
	}
	for _, r := range recent {
		s.Recent = append(s.Recent, r.Decision)
	}
	return s
}
