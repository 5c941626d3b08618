package interruption

import (
	"time"

	"cogsched/internal/types"
)

type input struct {
	snap   *types.WorkspaceSnapshot
	affect types.AffectState
	urges  []types.CommunicationUrge
	now    time.Time
}

// rule is one trigger. match returns a content hint when it fires.
type rule struct {
	reason  Reason
	urgency float64
	match   func(in input) (string, bool)
}

// defaultRules lists triggers in strict priority order.
func defaultRules(cfg Config) []rule {
	return []rule{
		{ReasonSafety, 0.95, safetyConcern},
		{ReasonValueConflict, 0.90, valueConflict},
		{ReasonCriticalInsight, 0.87, criticalInsight(cfg.InsightComplexityThreshold)},
		{ReasonEmotionalUrgency, 0.88, emotionalDistress},
		{ReasonCorrection, 0.86, correctionUrge},
	}
}

func percepts(in input) []types.Percept {
	if in.snap == nil {
		return nil
	}
	return in.snap.Percepts
}

func safetyConcern(in input) (string, bool) {
	for i := range percepts(in) {
		p := &in.snap.Percepts[i]
		if p.MetaBool(types.MetaSafetyConcern) || p.MetaString(types.MetaType) == types.TypeSafetyAlert {
			return "safety concern detected", true
		}
	}
	return "", false
}

func valueConflict(in input) (string, bool) {
	for i := range percepts(in) {
		p := &in.snap.Percepts[i]
		if p.Modality != types.ModalityIntrospection || p.MetaString(types.MetaType) != types.TypeValueConflict {
			continue
		}
		if p.MetaBool(types.MetaResolved) {
			continue
		}
		severity, ok := p.MetaFloat(types.MetaSeverity)
		if !ok {
			severity = 0.5
		}
		if severity > 0.8 {
			return "significant value conflict detected", true
		}
	}
	return "", false
}

func criticalInsight(minComplexity int) func(input) (string, bool) {
	return func(in input) (string, bool) {
		for _, p := range percepts(in) {
			if p.Modality == types.ModalityIntrospection && p.Salience > 0.9 && p.Complexity > minComplexity {
				return "critical introspective insight", true
			}
		}
		return "", false
	}
}

func emotionalDistress(in input) (string, bool) {
	if in.affect.Arousal > 0.9 && in.affect.Valence < -0.7 {
		return "extreme emotional distress", true
	}
	return "", false
}

func correctionUrge(in input) (string, bool) {
	for _, u := range in.urges {
		if u.DriveType != types.DriveCorrection || u.Intensity <= 0.9 || !u.Active(in.now) {
			continue
		}
		if u.Content != "" {
			return u.Content, true
		}
		return "critical correction needed", true
	}
	return "", false
}
