// Package attention implements budgeted admission of percepts into the
// workspace.
//
// Admission is greedy: candidates are scored, sorted by score (stable, so
// ties keep input order) and accepted while the cumulative cost fits the
// budget. The first candidate that does not fit ends admission; it and
// everything after it are rejected. There is no backtracking.
package attention

import (
	"math"
	"sort"
	"sync/atomic"

	"cogsched/internal/config"
	"cogsched/internal/logging"
	"cogsched/internal/types"
)

// Influencer lets an external affect model adjust a percept's score.
type Influencer interface {
	InfluenceScore(score float64, p types.Percept) float64
}

// Config configures an Allocator.
type Config struct {
	Budget       int     // Default per-tick capacity
	AffectMode   string  // config.AffectModeNone, Additive or Multiplicative
	AffectWeight float64 // Arousal weight for built-in modulation
}

// DefaultConfig returns allocator defaults.
func DefaultConfig() Config {
	return Config{
		Budget:       100,
		AffectMode:   config.AffectModeAdditive,
		AffectWeight: 0.1,
	}
}

// Trace describes one Select call.
type Trace struct {
	Candidates int
	Selected   int
	Rejected   int
	Budget     int
	BudgetUsed int
	Truncated  bool // A candidate did not fit and admission stopped
}

// Selection is the outcome of Select.
type Selection struct {
	Selected []types.Percept // Score order
	Rejected []types.Percept // Score order
	Trace    Trace
}

// Allocator scores and admits percepts. Select is called from the tick
// loop only; Summary may be read concurrently.
type Allocator struct {
	config     Config
	influencer Influencer

	calls      atomic.Uint64
	candidates atomic.Uint64
	selected   atomic.Uint64
	rejected   atomic.Uint64
	budgetUsed atomic.Uint64
	lastTrace  atomic.Pointer[Trace]
}

// NewAllocator validates cfg and returns an Allocator. influencer may be nil.
func NewAllocator(cfg Config, influencer Influencer) (*Allocator, error) {
	if cfg.Budget <= 0 {
		return nil, config.Invalid("attention.budget", "must be > 0, got %d", cfg.Budget)
	}
	switch cfg.AffectMode {
	case "":
		cfg.AffectMode = config.AffectModeNone
	case config.AffectModeNone, config.AffectModeAdditive, config.AffectModeMultiplicative:
	default:
		return nil, config.Invalid("attention.affect_mode", "unknown mode %q", cfg.AffectMode)
	}
	if cfg.AffectWeight < 0 || math.IsNaN(cfg.AffectWeight) {
		return nil, config.Invalid("attention.affect_weight", "must be >= 0")
	}
	return &Allocator{config: cfg, influencer: influencer}, nil
}

// Budget returns the configured default budget.
func (a *Allocator) Budget() int { return a.config.Budget }

// Score computes the desirability of p under the given affect state.
func (a *Allocator) Score(p types.Percept, affect types.AffectState) float64 {
	score := baseScore(p)
	switch a.config.AffectMode {
	case config.AffectModeAdditive:
		score += a.config.AffectWeight * affect.Arousal
	case config.AffectModeMultiplicative:
		score *= 1 + a.config.AffectWeight*affect.Arousal
	}
	if a.influencer != nil {
		score = a.influencer.InfluenceScore(score, p)
	}
	if math.IsNaN(score) {
		return 0
	}
	return score
}

// baseScore is the embedding magnitude, or the producer salience when the
// percept carries no embedding.
func baseScore(p types.Percept) float64 {
	if len(p.Embedding) == 0 {
		return p.Salience
	}
	var sum float64
	for _, v := range p.Embedding {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// Select admits candidates under budget. A budget <= 0 uses the configured
// default. Every candidate ends up in exactly one of Selected or Rejected.
func (a *Allocator) Select(candidates []types.Percept, budget int, affect types.AffectState) Selection {
	if budget <= 0 {
		budget = a.config.Budget
	}
	sel := Selection{Trace: Trace{Candidates: len(candidates), Budget: budget}}
	if len(candidates) == 0 {
		a.record(sel.Trace)
		return sel
	}

	scored := make([]types.Percept, len(candidates))
	for i, c := range candidates {
		scored[i] = c
		scored[i].Score = a.Score(c, affect)
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	used := 0
	for i, p := range scored {
		if p.Cost() > budget-used {
			sel.Rejected = scored[i:]
			sel.Trace.Truncated = true
			break
		}
		used += p.Cost()
		sel.Selected = append(sel.Selected, p)
	}

	sel.Trace.Selected = len(sel.Selected)
	sel.Trace.Rejected = len(sel.Rejected)
	sel.Trace.BudgetUsed = used
	a.record(sel.Trace)

	if sel.Trace.Rejected > 0 {
		logging.AttentionDebug("admitted %d/%d percepts, used %d/%d, first rejected %q (cost %d)",
			sel.Trace.Selected, sel.Trace.Candidates, used, budget, sel.Rejected[0].ID, sel.Rejected[0].Cost())
	}
	return sel
}

func (a *Allocator) record(t Trace) {
	a.calls.Add(1)
	a.candidates.Add(uint64(t.Candidates))
	a.selected.Add(uint64(t.Selected))
	a.rejected.Add(uint64(t.Rejected))
	a.budgetUsed.Add(uint64(t.BudgetUsed))
	a.lastTrace.Store(&t)
}

// Summary is a point-in-time view of allocator counters.
type Summary struct {
	Calls          uint64  `yaml:"calls"`
	Candidates     uint64  `yaml:"candidates"`
	Selected       uint64  `yaml:"selected"`
	Rejected       uint64  `yaml:"rejected"`
	BudgetUsed     uint64  `yaml:"budget_used"`
	AdmissionRate  float64 `yaml:"admission_rate"`
	LastBudgetUsed int     `yaml:"last_budget_used"`
	LastBudget     int     `yaml:"last_budget"`
}

// Summary returns cumulative counters.
func (a *Allocator) Summary() Summary {
	s := Summary{
		Calls:      a.calls.Load(),
		Candidates: a.candidates.Load(),
		Selected:   a.selected.Load(),
		Rejected:   a.rejected.Load(),
		BudgetUsed: a.budgetUsed.Load(),
	}
	if s.Candidates > 0 {
		s.AdmissionRate = float64(s.Selected) / float64(s.Candidates)
	}
	if t := a.lastTrace.Load(); t != nil {
		s.LastBudgetUsed = t.BudgetUsed
		s.LastBudget = t.Budget
	}
	return s
}
