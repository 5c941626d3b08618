package sim

import (
	"time"

	"cogsched/internal/clock"
	"cogsched/internal/config"
	"cogsched/internal/core"
	"cogsched/internal/perception"
	"cogsched/internal/retrieval"
)

// Agent bundles one full set of simulated collaborators.
type Agent struct {
	Inbox       *perception.Inbox
	World       *World
	Episodic    *Store
	Semantic    *Store
	Memory      *retrieval.Fanout
	Affect      *Affect
	Decider     *Decider
	Executor    *Executor
	Meta        *Meta
	Drives      *Drives
	Inhibitions *Inhibitions
	Interrupts  *InterruptLog
}

// NewAgent wires the simulated collaborators from cfg. memoryLatency is the
// artificial delay of each memory store.
func NewAgent(opts Options, cfg *config.Config, clk clock.Clock, memoryLatency time.Duration) *Agent {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	clk = clock.OrReal(clk)

	inbox := perception.NewInbox(perception.Config{
		MaxQueueSize:   cfg.Perception.MaxQueueSize,
		MaxPerPriority: cfg.Perception.MaxPerPriority,
		HighWaterMark:  cfg.Perception.HighWaterMark,
	}, clk)
	episodic := NewEpisodicStore(200, memoryLatency)
	semantic := NewSemanticStore(200, memoryLatency)
	exec := NewExecutor(clk, opts.ToolResults)

	return &Agent{
		Inbox:       inbox,
		World:       NewWorld(opts, inbox, clk),
		Episodic:    episodic,
		Semantic:    semantic,
		Memory:      retrieval.NewFanout(cfg.Memory.Parallelism, episodic, semantic),
		Affect:      NewAffect(0.7),
		Decider:     NewDecider(),
		Executor:    exec,
		Meta:        NewMeta(opts.MetaEvery),
		Drives:      NewDrives(50, cfg.Communication.GetDeferDuration()),
		Inhibitions: NewInhibitions(exec, 2*cfg.Cycle.GetTargetPeriod()),
		Interrupts:  &InterruptLog{},
	}
}

// Collaborators returns the agent as scheduler collaborators.
func (a *Agent) Collaborators() core.Collaborators {
	return core.Collaborators{
		Perception:  a.World,
		Memory:      a.Memory,
		Affect:      a.Affect,
		Decider:     a.Decider,
		Executor:    a.Executor,
		Meta:        a.Meta,
		Drives:      a.Drives,
		Inhibitions: a.Inhibitions,
		Peer:        a.World,
		Interrupts:  a.Interrupts,
	}
}

// Close stops the inbox accepting input.
func (a *Agent) Close() {
	a.Inbox.Close()
}
