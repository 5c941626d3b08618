// Package core drives the cognitive scheduler: one explicit Scheduler
// instance per agent owns the workspace, the attention allocator, the
// bottleneck detector, the communication gate and the interruption system,
// and runs them through a fixed nine-stage tick.
package core

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"cogsched/internal/attention"
	"cogsched/internal/bottleneck"
	"cogsched/internal/clock"
	"cogsched/internal/communication"
	"cogsched/internal/config"
	"cogsched/internal/interruption"
	"cogsched/internal/logging"
	"cogsched/internal/types"
	"cogsched/internal/workspace"
)

// =============================================================================
// SCHEDULER CONFIGURATION
// =============================================================================

// Config holds the resolved settings for one Scheduler.
type Config struct {
	CyclePeriod          time.Duration // Fixed tick rate
	OutputBuffer         int           // Spoken outputs held for AwaitOutput
	FastMode             bool          // Passed to the memory retriever
	RetrievalTimeout     time.Duration
	ConsolidationTimeout time.Duration

	Attention     attention.Config
	Workspace     workspace.Config
	Bottleneck    bottleneck.Config
	Communication communication.Config
	Interruption  interruption.Config
	Limits        LimitsConfig

	Clock clock.Clock // nil means the wall clock
}

// DefaultConfig returns the scheduler defaults.
func DefaultConfig() Config {
	return Config{
		CyclePeriod:          100 * time.Millisecond,
		OutputBuffer:         16,
		FastMode:             true,
		RetrievalTimeout:     50 * time.Millisecond,
		ConsolidationTimeout: 500 * time.Millisecond,
		Attention:            attention.DefaultConfig(),
		Workspace:            workspace.DefaultConfig(),
		Bottleneck:           bottleneck.DefaultConfig(),
		Communication:        communication.DefaultConfig(),
		Interruption:         interruption.DefaultConfig(),
		Limits:               DefaultLimitsConfig(),
	}
}

// ConfigFrom maps the YAML configuration onto scheduler settings.
func ConfigFrom(c *config.Config) Config {
	b := c.Bottleneck
	m := c.Communication
	return Config{
		CyclePeriod:          c.Cycle.GetTargetPeriod(),
		OutputBuffer:         c.Cycle.OutputBuffer,
		FastMode:             c.Memory.FastMode,
		RetrievalTimeout:     c.Memory.GetRetrievalTimeout(),
		ConsolidationTimeout: c.Memory.GetConsolidationTimeout(),
		Attention: attention.Config{
			Budget:       c.Attention.Budget,
			AffectMode:   c.Attention.AffectMode,
			AffectWeight: c.Attention.AffectWeight,
		},
		Workspace: workspace.Config{
			MaxPercepts: c.Workspace.MaxPercepts,
			TTLCycles:   uint64(max(c.Workspace.PerceptTTLCycles, 0)),
		},
		Bottleneck: bottleneck.Config{
			WorkspaceOverloadThreshold:  b.WorkspaceOverloadThreshold,
			SlowdownFactor:              b.SlowdownFactor,
			ResourceExhaustionThreshold: b.ResourceExhaustionThreshold,
			CycleTarget:                 b.GetCycleTarget(),
			PersistenceCycles:           b.PersistenceCycles,
			MemoryLagThreshold:          b.GetMemoryLagThreshold(),
			MemoryLagStage:              b.MemoryLagStage,
			BaselineWindow:              b.BaselineWindow,
			BaselineMinSamples:          b.BaselineMinSamples,
			MinBaseline:                 bottleneck.DefaultConfig().MinBaseline,
			LoadHistory:                 b.LoadHistory,
			HighLoad:                    b.HighLoad,
			HighSeverity:                b.HighSeverity,
		},
		Communication: communication.Config{
			SpeakThreshold:       m.SpeakThreshold,
			SilenceThreshold:     m.SilenceThreshold,
			DeferMinDrive:        m.DeferMinDrive,
			DeferMinInhibition:   m.DeferMinInhibition,
			DeferDuration:        m.GetDeferDuration(),
			MaxDeferred:          m.MaxDeferred,
			MaxDeferAttempts:     m.MaxDeferAttempts,
			HistorySize:          m.HistorySize,
			BottleneckInhibition: m.BottleneckInhibition,
		},
		Interruption: interruption.Config{
			UrgencyThreshold:           c.Interruption.UrgencyThreshold,
			Cooldown:                   c.Interruption.GetCooldown(),
			MaxHistory:                 c.Interruption.MaxHistory,
			InsightComplexityThreshold: c.Interruption.InsightComplexityThreshold,
		},
		Limits: LimitsConfig{
			MaxMemoryMB:  c.Resources.MaxMemoryMB,
			GoalCapacity: c.Resources.GoalCapacity,
		},
	}
}

func (c Config) validate() error {
	switch {
	case c.CyclePeriod <= 0:
		return config.Invalid("cycle.target_period", "must be positive")
	case c.OutputBuffer < 0:
		return config.Invalid("cycle.output_buffer", "must be >= 0")
	case c.RetrievalTimeout <= 0:
		return config.Invalid("memory.retrieval_timeout", "must be positive")
	case c.ConsolidationTimeout <= 0:
		return config.Invalid("memory.consolidation_timeout", "must be positive")
	}
	return nil
}

// =============================================================================
// SCHEDULER
// =============================================================================

// Scheduler is one agent's tick loop and everything it owns. Ticks are
// strictly sequential; queries are safe to call from other goroutines.
type Scheduler struct {
	config Config
	clock  clock.Clock
	collab Collaborators

	workspace  *workspace.Workspace
	allocator  *attention.Allocator
	detector   *bottleneck.Detector
	gate       *communication.Gate
	interrupts *interruption.System
	resources  ResourceMonitor
	limits     *GoalLimits // Set when the built-in monitor is used

	// Tick-loop state, guarded by tickMu.
	tickMu  sync.Mutex
	cycle   uint64
	pending []types.Percept // Input carried into the next tick

	goalMu       sync.Mutex
	pendingGoals []types.Goal

	outputs chan types.Output
	events  eventBus
	running atomic.Bool

	// Counters
	cycles         atomic.Uint64
	cancelled      atomic.Uint64
	overruns       atomic.Uint64
	emitted        atomic.Uint64
	outputsDropped atomic.Uint64
	pendingLen     atomic.Int64
	lastTimings    atomic.Pointer[types.CycleTiming]

	errMu       sync.Mutex
	stageErrors map[string]uint64
}

// NewScheduler validates cfg and wires the components. A
// *config.ConfigurationError is the only error it returns.
func NewScheduler(cfg Config, collab Collaborators) (*Scheduler, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	clk := clock.OrReal(cfg.Clock)

	var influencer attention.Influencer
	if collab.Affect != nil {
		influencer = collab.Affect
	}
	allocator, err := attention.NewAllocator(cfg.Attention, influencer)
	if err != nil {
		return nil, err
	}
	detector, err := bottleneck.NewDetector(cfg.Bottleneck, clk)
	if err != nil {
		return nil, err
	}
	gate, err := communication.NewGate(cfg.Communication)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		config:      cfg,
		clock:       clk,
		collab:      collab,
		workspace:   workspace.New(cfg.Workspace, clk),
		allocator:   allocator,
		detector:    detector,
		gate:        gate,
		interrupts:  interruption.NewSystem(cfg.Interruption, clk),
		resources:   collab.Resources,
		outputs:     make(chan types.Output, cfg.OutputBuffer),
		stageErrors: make(map[string]uint64),
	}
	if s.resources == nil {
		s.limits = NewGoalLimits(cfg.Limits)
		s.resources = s.limits
	}

	logging.Boot("scheduler ready: period=%s budget=%d workspace=%d", cfg.CyclePeriod, cfg.Attention.Budget, cfg.Workspace.MaxPercepts)
	return s, nil
}

// AddGoal queues a goal for the next workspace commit and returns its ID.
// Safe for concurrent use.
func (s *Scheduler) AddGoal(g types.Goal) string {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = s.clock.Now()
	}
	s.goalMu.Lock()
	s.pendingGoals = append(s.pendingGoals, g)
	s.goalMu.Unlock()
	return g.ID
}

func (s *Scheduler) takeGoals() []types.Goal {
	s.goalMu.Lock()
	defer s.goalMu.Unlock()
	goals := s.pendingGoals
	s.pendingGoals = nil
	return goals
}

// Snapshot returns the last committed workspace.
func (s *Scheduler) Snapshot() *types.WorkspaceSnapshot { return s.workspace.Snapshot() }

// Cycle returns the number of the last committed tick.
func (s *Scheduler) Cycle() uint64 { return s.cycles.Load() }

// Detector exposes the bottleneck detector for queries.
func (s *Scheduler) Detector() *bottleneck.Detector { return s.detector }

// Gate exposes the communication gate for queries.
func (s *Scheduler) Gate() *communication.Gate { return s.gate }

// Interruptions exposes the interruption system for queries.
func (s *Scheduler) Interruptions() *interruption.System { return s.interrupts }

// Allocator exposes the attention allocator for queries.
func (s *Scheduler) Allocator() *attention.Allocator { return s.allocator }

func (s *Scheduler) countStageError(stage string) {
	s.errMu.Lock()
	s.stageErrors[stage]++
	s.errMu.Unlock()
}

// StageErrors returns per-stage failure counts.
func (s *Scheduler) StageErrors() map[string]uint64 {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	out := make(map[string]uint64, len(s.stageErrors))
	for k, v := range s.stageErrors {
		out[k] = v
	}
	return out
}
