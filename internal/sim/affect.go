package sim

import (
	"context"
	"sync"

	"cogsched/internal/logging"
	"cogsched/internal/types"
)

// Affect is a small VAD model. Each tick it moves a fraction of the way
// toward a target derived from what the workspace holds.
type Affect struct {
	inertia float64

	mu    sync.RWMutex
	state types.AffectState
}

// NewAffect returns a model at rest. inertia in [0,1) is the share of the
// previous state kept each tick; out-of-range values fall back to 0.7.
func NewAffect(inertia float64) *Affect {
	if inertia < 0 || inertia >= 1 {
		inertia = 0.7
	}
	return &Affect{inertia: inertia, state: types.NeutralAffect}
}

// State implements core.AffectProvider.
func (a *Affect) State() types.AffectState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// InfluenceScore boosts safety alerts and user speech while aroused.
func (a *Affect) InfluenceScore(score float64, p types.Percept) float64 {
	st := a.State()
	switch {
	case p.MetaString(types.MetaType) == types.TypeSafetyAlert:
		return score * (1 + 0.5*st.Arousal)
	case p.Modality == types.ModalityText:
		return score * (1 + 0.2*st.Arousal)
	}
	return score
}

// UpdateAffect implements core.AffectUpdater.
func (a *Affect) UpdateAffect(_ context.Context, snap *types.WorkspaceSnapshot) error {
	target := types.AffectState{Dominance: 0.6}
	var alarms, overwhelm, text int
	if snap != nil {
		for i := range snap.Percepts {
			p := &snap.Percepts[i]
			switch {
			case p.MetaString(types.MetaType) == types.TypeSafetyAlert:
				alarms++
			case p.MetaString(types.MetaType) == types.TypeOverwhelm:
				overwhelm++
			case p.Modality == types.ModalityText:
				text++
			}
		}
	}
	target.Arousal = clamp(float64(snap.PerceptCount())/25+0.4*float64(alarms)+0.2*float64(overwhelm), 0, 1)
	target.Valence = clamp(0.1*float64(text)-0.5*float64(alarms)-0.2*float64(overwhelm), -1, 1)
	target.Dominance = clamp(target.Dominance-0.2*float64(overwhelm)-0.1*float64(alarms), 0, 1)

	a.mu.Lock()
	k := a.inertia
	a.state = types.AffectState{
		Valence:   k*a.state.Valence + (1-k)*target.Valence,
		Arousal:   k*a.state.Arousal + (1-k)*target.Arousal,
		Dominance: k*a.state.Dominance + (1-k)*target.Dominance,
	}
	st := a.state
	a.mu.Unlock()

	logging.AffectDebug("affect v=%.2f a=%.2f d=%.2f", st.Valence, st.Arousal, st.Dominance)
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
