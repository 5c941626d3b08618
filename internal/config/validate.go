package config

import (
	"errors"
	"time"
)

// Validate checks every threshold, weight and duration. It returns the
// first ConfigurationError found, joined with any others.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, field, format string, args ...interface{}) {
		if !ok {
			errs = append(errs, Invalid(field, format, args...))
		}
	}
	duration := func(field, s string) {
		if s == "" {
			return
		}
		d, err := time.ParseDuration(s)
		check(err == nil && d > 0, field, "%q is not a positive duration", s)
	}

	duration("cycle.target_period", c.Cycle.TargetPeriod)
	check(c.Cycle.OutputBuffer >= 0, "cycle.output_buffer", "must be >= 0")

	check(c.Attention.Budget > 0, "attention.budget", "must be > 0, got %d", c.Attention.Budget)
	switch c.Attention.AffectMode {
	case "", AffectModeNone, AffectModeAdditive, AffectModeMultiplicative:
	default:
		check(false, "attention.affect_mode", "unknown mode %q", c.Attention.AffectMode)
	}
	check(c.Attention.AffectWeight >= 0, "attention.affect_weight", "must be >= 0")

	check(c.Workspace.MaxPercepts > 0, "workspace.max_percepts", "must be > 0")
	check(c.Workspace.PerceptTTLCycles > 0, "workspace.percept_ttl_cycles", "must be > 0")

	b := c.Bottleneck
	check(b.WorkspaceOverloadThreshold > 0, "bottleneck.workspace_overload_threshold", "must be > 0")
	check(b.SlowdownFactor > 1, "bottleneck.subsystem_slowdown_factor", "must be > 1, got %.2f", b.SlowdownFactor)
	check(b.ResourceExhaustionThreshold > 0 && b.ResourceExhaustionThreshold < 1,
		"bottleneck.resource_exhaustion_threshold", "must be in (0,1), got %.2f", b.ResourceExhaustionThreshold)
	duration("bottleneck.cycle_duration_target", b.CycleTarget)
	duration("bottleneck.memory_lag_threshold", b.MemoryLagThreshold)
	check(b.PersistenceCycles >= 1, "bottleneck.consecutive_cycles_for_bottleneck", "must be >= 1")
	check(b.BaselineWindow >= b.BaselineMinSamples && b.BaselineMinSamples >= 1,
		"bottleneck.baseline_window", "window %d must hold at least min samples %d (>=1)", b.BaselineWindow, b.BaselineMinSamples)
	check(b.LoadHistory >= 1, "bottleneck.load_history", "must be >= 1")
	check(b.HighLoad > 0 && b.HighLoad <= 1, "bottleneck.high_load", "must be in (0,1]")
	check(b.HighSeverity > 0 && b.HighSeverity <= 1, "bottleneck.high_severity", "must be in (0,1]")

	m := c.Communication
	check(m.SilenceThreshold < m.SpeakThreshold, "communication.silence_threshold",
		"%.2f must be below speak_threshold %.2f", m.SilenceThreshold, m.SpeakThreshold)
	check(m.DeferMinDrive >= 0 && m.DeferMinDrive <= 1, "communication.defer_min_drive", "must be in [0,1]")
	check(m.DeferMinInhibition >= 0 && m.DeferMinInhibition <= 1, "communication.defer_min_inhibition", "must be in [0,1]")
	duration("communication.defer_duration", m.DeferDuration)
	check(m.MaxDeferred >= 1, "communication.max_deferred", "must be >= 1")
	check(m.MaxDeferAttempts >= 1, "communication.max_defer_attempts", "must be >= 1")
	check(m.HistorySize >= 1, "communication.history_size", "must be >= 1")
	check(m.BottleneckInhibition >= 0 && m.BottleneckInhibition <= 1, "communication.bottleneck_inhibition", "must be in [0,1]")

	duration("interruption.cooldown", c.Interruption.Cooldown)
	check(c.Interruption.MaxHistory >= 0, "interruption.max_history", "must be >= 0")

	check(c.Perception.MaxQueueSize > 0, "perception.max_queue_size", "must be > 0")
	check(c.Perception.MaxPerPriority > 0, "perception.max_per_priority", "must be > 0")
	check(c.Perception.HighWaterMark > 0 && c.Perception.HighWaterMark <= 1, "perception.high_water_mark", "must be in (0,1]")

	duration("memory.retrieval_timeout", c.Memory.RetrievalTimeout)
	duration("memory.consolidation_timeout", c.Memory.ConsolidationTimeout)
	check(c.Memory.Parallelism >= 1, "memory.parallelism", "must be >= 1")

	check(c.Resources.MaxMemoryMB >= 0, "resources.max_memory_mb", "must be >= 0")
	check(c.Resources.GoalCapacity >= 1, "resources.goal_capacity", "must be >= 1")

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		check(false, "logging.level", "unknown level %q", c.Logging.Level)
	}

	return errors.Join(errs...)
}
