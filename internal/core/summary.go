package core

import (
	"time"

	"cogsched/internal/attention"
	"cogsched/internal/bottleneck"
	"cogsched/internal/communication"
	"cogsched/internal/interruption"
	"cogsched/internal/workspace"
)

// Summary is the scheduler's observability surface, one section per
// component.
type Summary struct {
	Cycles         uint64             `yaml:"cycles"`
	Overruns       uint64             `yaml:"overruns"`
	Cancelled      uint64             `yaml:"cancelled_ticks"`
	StageErrors    map[string]uint64  `yaml:"stage_errors"`
	LastTimingsMs  map[string]float64 `yaml:"last_timings_ms"`
	LastCycleMs    float64            `yaml:"last_cycle_ms"`
	Goals          int                `yaml:"goals"`
	PendingInput   int                `yaml:"pending_input"`
	Outputs        uint64             `yaml:"outputs"`
	OutputsDropped uint64             `yaml:"outputs_dropped"`
	ReportsDropped uint64             `yaml:"reports_dropped"`

	Workspace     workspace.Stats       `yaml:"workspace"`
	Attention     attention.Summary     `yaml:"attention"`
	Bottleneck    bottleneck.Summary    `yaml:"bottleneck"`
	Communication communication.Summary `yaml:"communication"`
	Interruption  interruption.Summary  `yaml:"interruption"`
	Resources     *LimitsStatus         `yaml:"resources,omitempty"`
}

// Summary gathers every component summary. Safe for concurrent use.
func (s *Scheduler) Summary() Summary {
	timings := s.lastTimingsCopy()
	ms := make(map[string]float64, len(timings))
	for _, stage := range timings.Stages() {
		ms[stage] = timings.Millis(stage)
	}

	sum := Summary{
		Cycles:         s.cycles.Load(),
		Overruns:       s.overruns.Load(),
		Cancelled:      s.cancelled.Load(),
		StageErrors:    s.StageErrors(),
		LastTimingsMs:  ms,
		LastCycleMs:    float64(timings.Total()) / float64(time.Millisecond),
		Goals:          len(s.workspace.Snapshot().Goals),
		PendingInput:   int(s.pendingLen.Load()),
		Outputs:        s.emitted.Load(),
		OutputsDropped: s.outputsDropped.Load(),
		ReportsDropped: s.events.dropped.Load(),
		Workspace:      s.workspace.Stats(),
		Attention:      s.allocator.Summary(),
		Bottleneck:     s.detector.Summary(),
		Communication:  s.gate.Summary(),
		Interruption:   s.interrupts.Summary(),
	}
	if s.limits != nil {
		st := s.limits.Status()
		sum.Resources = &st
	}
	return sum
}
