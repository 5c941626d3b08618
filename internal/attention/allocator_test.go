package attention

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogsched/internal/config"
	"cogsched/internal/types"
)

func newAllocator(t *testing.T, cfg Config) *Allocator {
	t.Helper()
	a, err := NewAllocator(cfg, nil)
	require.NoError(t, err)
	return a
}

func percept(id string, salience float64, cost int) types.Percept {
	return types.Percept{ID: id, Salience: salience, Complexity: cost}
}

func ids(ps []types.Percept) []string {
	out := []string{}
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func noAffect() Config {
	cfg := DefaultConfig()
	cfg.AffectMode = config.AffectModeNone
	return cfg
}

func TestSelect_GreedyStopsAtBudget(t *testing.T) {
	a := newAllocator(t, noAffect())
	candidates := []types.Percept{
		percept("p1", 0.9, 10),
		percept("p2", 0.8, 10),
		percept("p3", 0.7, 10),
		percept("p4", 0.6, 10),
		percept("p5", 0.5, 10),
	}

	sel := a.Select(candidates, 30, types.NeutralAffect)

	if diff := cmp.Diff([]string{"p1", "p2", "p3"}, ids(sel.Selected)); diff != "" {
		t.Errorf("selected mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"p4", "p5"}, ids(sel.Rejected)); diff != "" {
		t.Errorf("rejected mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Trace{Candidates: 5, Selected: 3, Rejected: 2, Budget: 30, BudgetUsed: 30, Truncated: true}, sel.Trace)
}

func TestSelect_NoBacktrackingAfterMisfit(t *testing.T) {
	a := newAllocator(t, noAffect())
	candidates := []types.Percept{
		percept("big", 0.9, 25),
		percept("mid", 0.8, 10),
		percept("tiny", 0.1, 1),
	}

	sel := a.Select(candidates, 30, types.NeutralAffect)

	assert.Equal(t, []string{"big"}, ids(sel.Selected))
	assert.Equal(t, []string{"mid", "tiny"}, ids(sel.Rejected), "tiny would fit but admission already stopped")
}

func TestSelect_OversizedCandidateRejected(t *testing.T) {
	a := newAllocator(t, noAffect())
	sel := a.Select([]types.Percept{percept("huge", 1, 500)}, 100, types.NeutralAffect)

	assert.Empty(t, sel.Selected)
	assert.Equal(t, []string{"huge"}, ids(sel.Rejected))
	assert.Zero(t, sel.Trace.BudgetUsed)
}

func TestSelect_EmptyInput(t *testing.T) {
	a := newAllocator(t, noAffect())
	sel := a.Select(nil, 100, types.NeutralAffect)

	assert.Empty(t, sel.Selected)
	assert.Empty(t, sel.Rejected)
	assert.Zero(t, sel.Trace.BudgetUsed)
	assert.Equal(t, uint64(1), a.Summary().Calls)
}

func TestSelect_TiesKeepInputOrder(t *testing.T) {
	a := newAllocator(t, noAffect())
	candidates := []types.Percept{
		percept("first", 0.5, 10),
		percept("second", 0.5, 10),
		percept("third", 0.5, 10),
	}

	sel := a.Select(candidates, 20, types.NeutralAffect)

	assert.Equal(t, []string{"first", "second"}, ids(sel.Selected))
	assert.Equal(t, []string{"third"}, ids(sel.Rejected))
}

func TestSelect_EmbeddingMagnitudeScores(t *testing.T) {
	a := newAllocator(t, noAffect())
	candidates := []types.Percept{
		{ID: "small", Embedding: []float64{0.1, 0.1}, Complexity: 1},
		{ID: "large", Embedding: []float64{3, 4}, Complexity: 1},
	}

	sel := a.Select(candidates, 10, types.NeutralAffect)

	require.Len(t, sel.Selected, 2)
	assert.Equal(t, "large", sel.Selected[0].ID)
	assert.InDelta(t, 5.0, sel.Selected[0].Score, 1e-9)
}

func TestSelect_DefaultBudget(t *testing.T) {
	cfg := noAffect()
	cfg.Budget = 15
	a := newAllocator(t, cfg)

	sel := a.Select([]types.Percept{percept("a", 1, 10), percept("b", 0.5, 10)}, 0, types.NeutralAffect)
	assert.Equal(t, 15, sel.Trace.Budget)
	assert.Len(t, sel.Selected, 1)
}

func TestSelect_HugeCostNeverWrapsBudget(t *testing.T) {
	a := newAllocator(t, noAffect())
	candidates := []types.Percept{percept("small", 0.9, 10), percept("huge", 0.1, math.MaxInt)}

	sel := a.Select(candidates, 30, types.NeutralAffect)

	assert.Equal(t, []string{"small"}, ids(sel.Selected))
	assert.Equal(t, []string{"huge"}, ids(sel.Rejected))
	assert.Equal(t, 10, sel.Trace.BudgetUsed)
	assert.True(t, sel.Trace.Truncated)
}

// Randomised check of the admission invariants.
func TestSelect_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	a := newAllocator(t, DefaultConfig())

	for round := 0; round < 200; round++ {
		n := rng.Intn(20)
		candidates := make([]types.Percept, n)
		for i := range candidates {
			candidates[i] = percept(fmt.Sprintf("r%d-%d", round, i), rng.Float64(), rng.Intn(40))
		}
		budget := 1 + rng.Intn(120)
		affect := types.AffectState{Arousal: rng.Float64()}

		sel := a.Select(candidates, budget, affect)

		cost := 0
		for _, p := range sel.Selected {
			cost += p.Cost()
		}
		require.LessOrEqual(t, cost, budget)
		require.Equal(t, n, len(sel.Selected)+len(sel.Rejected))

		seen := map[string]int{}
		for _, p := range append(append([]types.Percept{}, sel.Selected...), sel.Rejected...) {
			seen[p.ID]++
		}
		for _, c := range candidates {
			require.Equal(t, 1, seen[c.ID], "candidate %s", c.ID)
		}

		again := a.Select(candidates, budget, affect)
		require.Equal(t, ids(sel.Selected), ids(again.Selected), "selection must be deterministic")
	}
}

func TestAffectModulation(t *testing.T) {
	p := percept("p", 0.5, 1)
	aroused := types.AffectState{Arousal: 1}

	additive := newAllocator(t, Config{Budget: 10, AffectMode: config.AffectModeAdditive, AffectWeight: 0.2})
	assert.InDelta(t, 0.7, additive.Score(p, aroused), 1e-9)

	multiplicative := newAllocator(t, Config{Budget: 10, AffectMode: config.AffectModeMultiplicative, AffectWeight: 0.2})
	assert.InDelta(t, 0.6, multiplicative.Score(p, aroused), 1e-9)

	none := newAllocator(t, noAffect())
	assert.InDelta(t, 0.5, none.Score(p, aroused), 1e-9)
}

type boostTool struct{}

func (boostTool) InfluenceScore(score float64, p types.Percept) float64 {
	if p.Modality == types.ModalityTool {
		return score + 1
	}
	return score
}

func TestInfluencerReordersCandidates(t *testing.T) {
	a, err := NewAllocator(noAffect(), boostTool{})
	require.NoError(t, err)

	candidates := []types.Percept{
		percept("text", 0.9, 10),
		{ID: "tool", Modality: types.ModalityTool, Salience: 0.1, Complexity: 10},
	}
	sel := a.Select(candidates, 10, types.NeutralAffect)

	assert.Equal(t, []string{"tool"}, ids(sel.Selected))
}

func TestNewAllocatorRejectsBadConfig(t *testing.T) {
	_, err := NewAllocator(Config{Budget: 0}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))

	_, err = NewAllocator(Config{Budget: 10, AffectMode: "sideways"}, nil)
	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "attention.affect_mode", cfgErr.Field)
}

func TestSummaryAccumulates(t *testing.T) {
	a := newAllocator(t, noAffect())
	a.Select([]types.Percept{percept("a", 1, 10), percept("b", 0.5, 10)}, 10, types.NeutralAffect)
	a.Select([]types.Percept{percept("c", 1, 5)}, 10, types.NeutralAffect)

	s := a.Summary()
	assert.Equal(t, uint64(2), s.Calls)
	assert.Equal(t, uint64(3), s.Candidates)
	assert.Equal(t, uint64(2), s.Selected)
	assert.Equal(t, uint64(1), s.Rejected)
	assert.Equal(t, uint64(15), s.BudgetUsed)
	assert.InDelta(t, 2.0/3.0, s.AdmissionRate, 1e-9)
	assert.Equal(t, 5, s.LastBudgetUsed)
}
