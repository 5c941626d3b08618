package config

import "time"

// Affect modulation modes for attention scoring.
const (
	AffectModeNone           = "none"
	AffectModeAdditive       = "additive"
	AffectModeMultiplicative = "multiplicative"
)

// CycleConfig configures the tick driver.
type CycleConfig struct {
	TargetPeriod string `yaml:"target_period"` // Fixed tick rate; overrunning ticks start the next one immediately
	OutputBuffer int    `yaml:"output_buffer"` // Spoken outputs held for AwaitOutput
}

// AttentionConfig configures admission control.
type AttentionConfig struct {
	Budget       int     `yaml:"budget"`        // Per-tick capacity in cost units
	AffectMode   string  `yaml:"affect_mode"`   // none, additive, multiplicative
	AffectWeight float64 `yaml:"affect_weight"` // Strength of affect modulation
}

// WorkspaceConfig configures the shared working set.
type WorkspaceConfig struct {
	MaxPercepts      int `yaml:"max_percepts"`       // Hard cap; lowest-score percepts are evicted first
	PerceptTTLCycles int `yaml:"percept_ttl_cycles"` // Ticks a percept survives without being re-admitted
}

// BottleneckConfig configures the load monitor.
type BottleneckConfig struct {
	WorkspaceOverloadThreshold  int     `yaml:"workspace_overload_threshold"`
	SlowdownFactor              float64 `yaml:"subsystem_slowdown_factor"`
	ResourceExhaustionThreshold float64 `yaml:"resource_exhaustion_threshold"`
	CycleTarget                 string  `yaml:"cycle_duration_target"`
	PersistenceCycles           int     `yaml:"consecutive_cycles_for_bottleneck"`
	MemoryLagThreshold          string  `yaml:"memory_lag_threshold"`
	MemoryLagStage              string  `yaml:"memory_lag_stage"`
	BaselineWindow              int     `yaml:"baseline_window"`
	BaselineMinSamples          int     `yaml:"baseline_min_samples"`
	LoadHistory                 int     `yaml:"load_history"`
	HighLoad                    float64 `yaml:"high_load"`     // Load above which communication is inhibited
	HighSeverity                float64 `yaml:"high_severity"` // Severity above which communication is inhibited
}

// GetCycleTarget returns the cycle budget as a duration.
func (b BottleneckConfig) GetCycleTarget() time.Duration {
	return parseDuration(b.CycleTarget, 100*time.Millisecond)
}

// GetMemoryLagThreshold returns the memory lag threshold as a duration.
func (b BottleneckConfig) GetMemoryLagThreshold() time.Duration {
	return parseDuration(b.MemoryLagThreshold, 500*time.Millisecond)
}

// CommunicationConfig configures the decision gate.
type CommunicationConfig struct {
	SpeakThreshold       float64 `yaml:"speak_threshold"`
	SilenceThreshold     float64 `yaml:"silence_threshold"`
	DeferMinDrive        float64 `yaml:"defer_min_drive"`
	DeferMinInhibition   float64 `yaml:"defer_min_inhibition"`
	DeferDuration        string  `yaml:"defer_duration"`
	MaxDeferred          int     `yaml:"max_deferred"`
	MaxDeferAttempts     int     `yaml:"max_defer_attempts"`
	HistorySize          int     `yaml:"history_size"`
	BottleneckInhibition float64 `yaml:"bottleneck_inhibition"` // Strength of the overload inhibition factor
}

// GetDeferDuration returns the deferral window as a duration.
func (c CommunicationConfig) GetDeferDuration() time.Duration {
	return parseDuration(c.DeferDuration, 30*time.Second)
}

// InterruptionConfig configures the emergency override.
type InterruptionConfig struct {
	UrgencyThreshold           float64 `yaml:"urgency_threshold"`
	Cooldown                   string  `yaml:"cooldown"`
	MaxHistory                 int     `yaml:"max_history"`
	InsightComplexityThreshold int     `yaml:"insight_complexity_threshold"`
}

// GetCooldown returns the interruption cooldown as a duration.
func (i InterruptionConfig) GetCooldown() time.Duration {
	return parseDuration(i.Cooldown, 60*time.Second)
}

// PerceptionConfig configures the perception inbox.
type PerceptionConfig struct {
	MaxQueueSize   int     `yaml:"max_queue_size"`
	MaxPerPriority int     `yaml:"max_per_priority"`
	HighWaterMark  float64 `yaml:"high_water_mark"`
}

// MemoryConfig configures calls into memory collaborators.
type MemoryConfig struct {
	FastMode             bool   `yaml:"fast_mode"`
	RetrievalTimeout     string `yaml:"retrieval_timeout"`
	ConsolidationTimeout string `yaml:"consolidation_timeout"`
	Parallelism          int    `yaml:"parallelism"` // Concurrent retrievers in a fan-out
}

// GetRetrievalTimeout returns the retrieval timeout as a duration.
func (m MemoryConfig) GetRetrievalTimeout() time.Duration {
	return parseDuration(m.RetrievalTimeout, 50*time.Millisecond)
}

// GetConsolidationTimeout returns the consolidation timeout as a duration.
func (m MemoryConfig) GetConsolidationTimeout() time.Duration {
	return parseDuration(m.ConsolidationTimeout, 500*time.Millisecond)
}

// ResourcesConfig configures the goal-competition resource monitor.
type ResourcesConfig struct {
	MaxMemoryMB  int `yaml:"max_memory_mb"` // Heap ceiling; 0 disables the memory term
	GoalCapacity int `yaml:"goal_capacity"` // Goals that can be pursued at once
}

// GetTargetPeriod returns the tick period as a duration.
func (c CycleConfig) GetTargetPeriod() time.Duration {
	return parseDuration(c.TargetPeriod, 100*time.Millisecond)
}
