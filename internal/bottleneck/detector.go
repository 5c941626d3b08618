package bottleneck

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"cogsched/internal/clock"
	"cogsched/internal/config"
	"cogsched/internal/logging"
	"cogsched/internal/types"
)

// Config holds detector thresholds.
type Config struct {
	WorkspaceOverloadThreshold  int
	SlowdownFactor              float64
	ResourceExhaustionThreshold float64
	CycleTarget                 time.Duration
	PersistenceCycles           int
	MemoryLagThreshold          time.Duration
	MemoryLagStage              string
	BaselineWindow              int
	BaselineMinSamples          int
	MinBaseline                 time.Duration // Baselines below this are too noisy to compare
	LoadHistory                 int
	HighLoad                    float64
	HighSeverity                float64
}

// DefaultConfig returns the detector defaults.
func DefaultConfig() Config {
	return Config{
		WorkspaceOverloadThreshold:  20,
		SlowdownFactor:              2.0,
		ResourceExhaustionThreshold: 0.9,
		CycleTarget:                 100 * time.Millisecond,
		PersistenceCycles:           3,
		MemoryLagThreshold:          500 * time.Millisecond,
		MemoryLagStage:              "memory_consolidation",
		BaselineWindow:              100,
		BaselineMinSamples:          10,
		MinBaseline:                 time.Millisecond,
		LoadHistory:                 100,
		HighLoad:                    0.8,
		HighSeverity:                0.7,
	}
}

func (c Config) validate() error {
	switch {
	case c.WorkspaceOverloadThreshold <= 0:
		return config.Invalid("bottleneck.workspace_overload_threshold", "must be > 0, got %d", c.WorkspaceOverloadThreshold)
	case !(c.SlowdownFactor > 1):
		return config.Invalid("bottleneck.subsystem_slowdown_factor", "must be > 1, got %v", c.SlowdownFactor)
	case !(c.ResourceExhaustionThreshold > 0 && c.ResourceExhaustionThreshold < 1):
		return config.Invalid("bottleneck.resource_exhaustion_threshold", "must be in (0,1), got %v", c.ResourceExhaustionThreshold)
	case c.CycleTarget <= 0:
		return config.Invalid("bottleneck.cycle_duration_target", "must be positive")
	case c.MemoryLagThreshold <= 0:
		return config.Invalid("bottleneck.memory_lag_threshold", "must be positive")
	case c.PersistenceCycles < 1:
		return config.Invalid("bottleneck.consecutive_cycles_for_bottleneck", "must be >= 1")
	case c.BaselineMinSamples < 1 || c.BaselineWindow < c.BaselineMinSamples:
		return config.Invalid("bottleneck.baseline_window", "window %d must hold at least %d samples", c.BaselineWindow, c.BaselineMinSamples)
	case c.LoadHistory < 1:
		return config.Invalid("bottleneck.load_history", "must be >= 1")
	case !(c.HighLoad > 0 && c.HighLoad <= 1):
		return config.Invalid("bottleneck.high_load", "must be in (0,1]")
	case !(c.HighSeverity > 0 && c.HighSeverity <= 1):
		return config.Invalid("bottleneck.high_severity", "must be in (0,1]")
	}
	return nil
}

// published is everything concurrent readers may see, swapped in one store.
type published struct {
	state     *State
	loads     []float64 // Oldest first
	baselines map[string]time.Duration
	updates   uint64
	onsets    uint64
}

// Detector evaluates the five rules once per tick. Update must be called
// from a single goroutine; every query is safe for concurrent use.
type Detector struct {
	config Config
	clock  clock.Clock

	// Writer-only state.
	counters map[string]int
	baseline *baseline
	loads    []float64
	updates  uint64
	onsets   uint64

	current atomic.Pointer[published]
}

// NewDetector validates cfg and returns a Detector in the normal state.
func NewDetector(cfg Config, clk clock.Clock) (*Detector, error) {
	if cfg.MemoryLagStage == "" {
		cfg.MemoryLagStage = DefaultConfig().MemoryLagStage
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	d := &Detector{
		config:   cfg,
		clock:    clock.OrReal(clk),
		counters: make(map[string]int),
		baseline: newBaseline(cfg.BaselineWindow, cfg.BaselineMinSamples),
	}
	d.current.Store(&published{
		state: &State{Recommendation: RecommendNormal, UpdatedAt: d.clock.Now()},
	})
	return d, nil
}

// Update ingests one tick of metrics and publishes the resulting State.
func (d *Detector) Update(timings types.CycleTiming, workspaceCount int, utilization float64, queues QueueDepths) *State {
	now := d.clock.Now()
	prev := d.current.Load().state

	for stage, dur := range timings {
		d.baseline.add(stage, dur)
	}

	var signals []Signal
	if s, ok := d.detectWorkspaceOverload(workspaceCount, now); ok {
		signals = append(signals, s)
	}
	signals = append(signals, d.detectSlowdowns(timings, now)...)
	if s, ok := d.detectResourceExhaustion(utilization, queues, now); ok {
		signals = append(signals, s)
	}
	if s, ok := d.detectMemoryLag(timings, now); ok {
		signals = append(signals, s)
	}
	if s, ok := d.detectCycleOverrun(timings, now); ok {
		signals = append(signals, s)
	}

	load := d.overallLoad(workspaceCount, utilization, timings.Total())
	d.loads = append(d.loads, load)
	if len(d.loads) > d.config.LoadHistory {
		d.loads = d.loads[len(d.loads)-d.config.LoadHistory:]
	}

	state := &State{
		IsBottlenecked: d.persisted(signals),
		OverallLoad:    load,
		Active:         signals,
		UpdatedAt:      now,
	}
	state.Recommendation = d.recommend(signals, load)
	state.inhibit = state.IsBottlenecked &&
		(load > d.config.HighLoad || state.MaxSeverity() > d.config.HighSeverity)

	d.updates++
	if state.IsBottlenecked && !prev.IsBottlenecked {
		d.onsets++
	}
	d.current.Store(&published{
		state:     state,
		loads:     append([]float64(nil), d.loads...),
		baselines: d.baseline.snapshot(),
		updates:   d.updates,
		onsets:    d.onsets,
	})

	switch {
	case state.IsBottlenecked && !prev.IsBottlenecked:
		logging.BottleneckWarn("bottleneck onset: load=%.0f%% signals=%v recommendation=%s",
			load*100, state.Types(), state.Recommendation)
		logging.Audit().Bottleneck(true, state.Recommendation, load)
	case !state.IsBottlenecked && prev.IsBottlenecked:
		logging.Bottleneck("bottleneck cleared: load=%.0f%%", load*100)
		logging.Audit().Bottleneck(false, state.Recommendation, load)
	case len(signals) > 0:
		logging.BottleneckDebug("signals=%v load=%.2f", signals, load)
	}
	return state
}

// bump increments a rule counter and returns its new value.
func (d *Detector) bump(key string) int {
	d.counters[key]++
	return d.counters[key]
}

func (d *Detector) reset(key string) { delete(d.counters, key) }

func (d *Detector) detectWorkspaceOverload(count int, now time.Time) (Signal, bool) {
	const key = "workspace_overload"
	th := d.config.WorkspaceOverloadThreshold
	if count <= th {
		d.reset(key)
		return Signal{}, false
	}
	return Signal{
		Type:              WorkspaceOverload,
		Severity:          clamp01(float64(count-th) / float64(th)),
		Source:            "workspace",
		Description:       fmt.Sprintf("workspace holds %d percepts (threshold %d)", count, th),
		DetectedAt:        now,
		ConsecutiveCycles: d.bump(key),
		Metrics:           map[string]float64{"percept_count": float64(count), "threshold": float64(th)},
	}, true
}

func (d *Detector) detectSlowdowns(timings types.CycleTiming, now time.Time) []Signal {
	var out []Signal
	flagged := make(map[string]bool)
	for _, stage := range timings.Stages() {
		dur := timings[stage]
		base, ok := d.baseline.median(stage)
		if !ok || base < d.config.MinBaseline {
			continue
		}
		ratio := float64(dur) / float64(base)
		if ratio < d.config.SlowdownFactor {
			continue
		}
		key := "slowdown_" + stage
		flagged[key] = true
		out = append(out, Signal{
			Type:              SubsystemSlowdown,
			Severity:          clamp01((ratio - 1) / (d.config.SlowdownFactor * 2)),
			Source:            stage,
			Description:       fmt.Sprintf("%s running %.1fx slower than baseline", stage, ratio),
			DetectedAt:        now,
			ConsecutiveCycles: d.bump(key),
			Metrics: map[string]float64{
				"duration_ms":    ms(dur),
				"baseline_ms":    ms(base),
				"slowdown_ratio": ratio,
			},
		})
	}
	// A stage that is fast again, or absent this tick, loses its streak.
	for key := range d.counters {
		if strings.HasPrefix(key, "slowdown_") && !flagged[key] {
			delete(d.counters, key)
		}
	}
	return out
}

func (d *Detector) detectResourceExhaustion(util float64, q QueueDepths, now time.Time) (Signal, bool) {
	const key = "resource_exhaustion"
	th := d.config.ResourceExhaustionThreshold
	if math.IsNaN(util) || util < th {
		d.reset(key)
		return Signal{}, false
	}
	severity := clamp01((util - th) / (1 - th))
	if q.Waiting > 0 {
		severity = clamp01(severity + 0.2)
	}
	return Signal{
		Type:              ResourceExhaustion,
		Severity:          severity,
		Source:            "goal_competition",
		Description:       fmt.Sprintf("resource utilization at %.0f%%, %d goals waiting", util*100, q.Waiting),
		DetectedAt:        now,
		ConsecutiveCycles: d.bump(key),
		Metrics: map[string]float64{
			"utilization":   util,
			"active_goals":  float64(q.Active),
			"waiting_goals": float64(q.Waiting),
		},
	}, true
}

func (d *Detector) detectMemoryLag(timings types.CycleTiming, now time.Time) (Signal, bool) {
	const key = "memory_lag"
	th := d.config.MemoryLagThreshold
	dur := timings[d.config.MemoryLagStage]
	if dur <= th {
		d.reset(key)
		return Signal{}, false
	}
	return Signal{
		Type:              MemoryLag,
		Severity:          clamp01(float64(dur-th) / float64(th)),
		Source:            "memory",
		Description:       fmt.Sprintf("%s took %.0fms (threshold %.0fms)", d.config.MemoryLagStage, ms(dur), ms(th)),
		DetectedAt:        now,
		ConsecutiveCycles: d.bump(key),
		Metrics:           map[string]float64{"duration_ms": ms(dur), "threshold_ms": ms(th)},
	}, true
}

func (d *Detector) detectCycleOverrun(timings types.CycleTiming, now time.Time) (Signal, bool) {
	const key = "cycle_overrun"
	target := d.config.CycleTarget
	total := timings.Total()
	if total <= target {
		d.reset(key)
		return Signal{}, false
	}
	ratio := float64(total) / float64(target)
	return Signal{
		Type:              CycleOverrun,
		Severity:          clamp01((ratio - 1) / 2),
		Source:            "cycle_executor",
		Description:       fmt.Sprintf("cycle took %.0fms (target %.0fms)", ms(total), ms(target)),
		DetectedAt:        now,
		ConsecutiveCycles: d.bump(key),
		Metrics:           map[string]float64{"total_ms": ms(total), "target_ms": ms(target), "overrun_ratio": ratio},
	}, true
}

// overallLoad fuses workspace fill, utilization and cycle time into [0,1].
func (d *Detector) overallLoad(count int, util float64, total time.Duration) float64 {
	workspace := clamp01(float64(count) / (float64(d.config.WorkspaceOverloadThreshold) * 1.5))
	resource := clamp01(util)
	timing := clamp01(float64(total) / float64(2*d.config.CycleTarget))
	return clamp01(0.25*workspace + 0.5*resource + 0.25*timing)
}

func (d *Detector) persisted(signals []Signal) bool {
	for _, s := range signals {
		if s.ConsecutiveCycles >= d.config.PersistenceCycles {
			return true
		}
	}
	return false
}

// recommend maps the most severe signal to an adaptation. The first signal
// wins a severity tie.
func (d *Detector) recommend(signals []Signal, load float64) string {
	if len(signals) == 0 {
		if load > d.config.HighLoad {
			return RecommendReduceLoad
		}
		return RecommendNormal
	}
	top := signals[0]
	for _, s := range signals[1:] {
		if s.Severity > top.Severity {
			top = s
		}
	}
	switch top.Type {
	case ResourceExhaustion:
		if top.Severity > 0.7 {
			return RecommendPauseLowPriority
		}
		return RecommendReduceGoals
	case WorkspaceOverload:
		return RecommendSelectivity
	case MemoryLag:
		return RecommendDeferMemory
	case CycleOverrun:
		return RecommendSkipOptional
	case SubsystemSlowdown:
		return Investigate(top.Source)
	}
	return RecommendNormal
}

// State returns the most recently published state.
func (d *Detector) State() *State { return d.current.Load().state }

// IsOverloaded reports the debounced bottleneck flag.
func (d *Detector) IsOverloaded() bool { return d.State().IsBottlenecked }

// Load returns the current fused load.
func (d *Detector) Load() float64 { return d.State().OverallLoad }

// AverageLoad returns the mean load over the last k ticks (all retained
// ticks when k <= 0).
func (d *Detector) AverageLoad(k int) float64 {
	loads := d.current.Load().loads
	if len(loads) == 0 {
		return 0
	}
	if k > 0 && k < len(loads) {
		loads = loads[len(loads)-k:]
	}
	sum := 0.0
	for _, l := range loads {
		sum += l
	}
	return sum / float64(len(loads))
}

// ShouldInhibitCommunication is true iff bottlenecked and either load or
// some active severity is high.
func (d *Detector) ShouldInhibitCommunication() bool {
	return d.State().ShouldInhibitCommunication()
}

// Baselines returns the current per-stage median baselines.
func (d *Detector) Baselines() map[string]time.Duration {
	src := d.current.Load().baselines
	out := make(map[string]time.Duration, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Summary is a point-in-time view for dashboards.
type Summary struct {
	IsBottlenecked bool               `yaml:"is_bottlenecked"`
	OverallLoad    float64            `yaml:"overall_load"`
	AverageLoad    float64            `yaml:"average_load"`
	ActiveCount    int                `yaml:"active_bottleneck_count"`
	Types          []Type             `yaml:"bottleneck_types"`
	MaxSeverity    float64            `yaml:"max_severity"`
	Recommendation string             `yaml:"recommendation"`
	InhibitsSpeech bool               `yaml:"should_inhibit_communication"`
	BaselineMillis map[string]float64 `yaml:"baseline_ms"`
	BaselineStages []string           `yaml:"-"`
	Updates        uint64             `yaml:"updates"`
	Onsets         uint64             `yaml:"onsets"`
}

// Summary returns the current state plus the average over the last 10 ticks.
func (d *Detector) Summary() Summary {
	p := d.current.Load()
	s := Summary{
		IsBottlenecked: p.state.IsBottlenecked,
		OverallLoad:    p.state.OverallLoad,
		AverageLoad:    d.AverageLoad(10),
		ActiveCount:    len(p.state.Active),
		Types:          p.state.Types(),
		MaxSeverity:    p.state.MaxSeverity(),
		Recommendation: p.state.Recommendation,
		InhibitsSpeech: p.state.ShouldInhibitCommunication(),
		BaselineMillis: make(map[string]float64, len(p.baselines)),
		Updates:        p.updates,
		Onsets:         p.onsets,
	}
	for stage, b := range p.baselines {
		s.BaselineMillis[stage] = ms(b)
		s.BaselineStages = append(s.BaselineStages, stage)
	}
	sort.Strings(s.BaselineStages)
	return s
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
