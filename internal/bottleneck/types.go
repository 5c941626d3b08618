// Package bottleneck monitors cognitive load and turns per-tick metrics into
// backpressure: a debounced bottleneck flag, a fused load score and a single
// recommended adaptation.
package bottleneck

import (
	"fmt"
	"time"
)

// Type identifies one of the five detection rules.
type Type string

const (
	WorkspaceOverload  Type = "workspace_overload"
	SubsystemSlowdown  Type = "subsystem_slowdown"
	ResourceExhaustion Type = "resource_exhaustion"
	MemoryLag          Type = "memory_lag"
	CycleOverrun       Type = "cycle_overrun"
)

// Recommendations emitted by the detector.
const (
	RecommendNormal           = "normal_operation"
	RecommendReduceLoad       = "reduce_processing_load"
	RecommendPauseLowPriority = "pause_low_priority_goals"
	RecommendReduceGoals      = "reduce_goal_parallelism"
	RecommendSelectivity      = "increase_attention_selectivity"
	RecommendDeferMemory      = "defer_memory_consolidation"
	RecommendSkipOptional     = "skip_optional_processing"
	recommendInvestigate      = "investigate_"
)

// Investigate returns the recommendation for a slow stage.
func Investigate(stage string) string { return recommendInvestigate + stage }

// Signal is one rule firing on one tick.
type Signal struct {
	Type              Type
	Severity          float64 // Always in [0,1]
	Source            string
	Description       string
	DetectedAt        time.Time
	ConsecutiveCycles int
	Metrics           map[string]float64
}

func (s Signal) String() string {
	return fmt.Sprintf("%s[%s] severity=%.2f x%d", s.Type, s.Source, s.Severity, s.ConsecutiveCycles)
}

// QueueDepths reports goal competition for the resource rule.
type QueueDepths struct {
	Active  int // Goals currently pursued
	Waiting int // Goals waiting for capacity
}

// State is the detector output for one tick. A published State is never
// mutated.
type State struct {
	IsBottlenecked bool
	OverallLoad    float64
	Active         []Signal
	Recommendation string
	UpdatedAt      time.Time

	inhibit bool
}

// MaxSeverity returns the highest severity among active signals.
func (s *State) MaxSeverity() float64 {
	if s == nil {
		return 0
	}
	max := 0.0
	for _, sig := range s.Active {
		if sig.Severity > max {
			max = sig.Severity
		}
	}
	return max
}

// ShouldInhibitCommunication reports whether load is high enough that
// outward communication should be suppressed.
func (s *State) ShouldInhibitCommunication() bool {
	return s != nil && s.inhibit
}

// Types returns the rule types of the active signals in detection order.
func (s *State) Types() []Type {
	if s == nil {
		return nil
	}
	out := make([]Type, 0, len(s.Active))
	for _, sig := range s.Active {
		out = append(out, sig.Type)
	}
	return out
}

// NewState builds a State for callers that feed the decision gate directly.
func NewState(bottlenecked bool, load float64, inhibit bool, active ...Signal) *State {
	return &State{
		IsBottlenecked: bottlenecked,
		OverallLoad:    clamp01(load),
		Active:         active,
		Recommendation: RecommendNormal,
		inhibit:        inhibit,
	}
}
