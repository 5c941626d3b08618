// Package workspace holds the capacity-limited working set shared by every
// stage of a tick. The tick loop is the only writer; readers load immutable
// snapshots published at commit points.
package workspace

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"cogsched/internal/clock"
	"cogsched/internal/logging"
	"cogsched/internal/types"
)

// Config bounds the workspace.
type Config struct {
	MaxPercepts int    // Hard cap; lowest-score percepts are evicted first
	TTLCycles   uint64 // Ticks a percept survives after admission
}

// DefaultConfig returns the workspace defaults.
func DefaultConfig() Config {
	return Config{MaxPercepts: 50, TTLCycles: 10}
}

// Update is the set of changes applied at one commit.
type Update struct {
	Cycle          uint64
	Admitted       []types.Percept // Newly admitted, in admission order
	AddGoals       []types.Goal
	CompletedGoals []string // Goal IDs to drop
	Affect         types.AffectState
}

// Workspace is a single-writer store with copy-on-publish snapshots.
type Workspace struct {
	config Config
	clock  clock.Clock

	current atomic.Pointer[types.WorkspaceSnapshot]

	// Writer-only state.
	admittedAt map[string]uint64

	evicted atomic.Uint64
	expired atomic.Uint64
}

// New creates an empty workspace.
func New(cfg Config, clk clock.Clock) *Workspace {
	def := DefaultConfig()
	if cfg.MaxPercepts <= 0 {
		cfg.MaxPercepts = def.MaxPercepts
	}
	if cfg.TTLCycles == 0 {
		cfg.TTLCycles = def.TTLCycles
	}
	w := &Workspace{
		config:     cfg,
		clock:      clock.OrReal(clk),
		admittedAt: make(map[string]uint64),
	}
	w.current.Store(&types.WorkspaceSnapshot{Affect: types.NeutralAffect, TakenAt: w.clock.Now()})
	return w
}

// Snapshot returns the last published snapshot. Safe for concurrent use.
func (w *Workspace) Snapshot() *types.WorkspaceSnapshot {
	return w.current.Load()
}

// Count returns the number of percepts in the last published snapshot.
func (w *Workspace) Count() int {
	return w.Snapshot().PerceptCount()
}

// Commit applies u on top of the current snapshot and publishes the result
// atomically. It must only be called from the tick loop. Admitted percepts
// without an ID are given one so they expire like any other.
func (w *Workspace) Commit(u Update) *types.WorkspaceSnapshot {
	prev := w.current.Load()
	now := w.clock.Now()

	// Re-admission refreshes a percept in place.
	admitted := make([]types.Percept, len(u.Admitted))
	fresh := make(map[string]int, len(u.Admitted))
	for i, p := range u.Admitted {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		admitted[i] = p
		fresh[p.ID] = i
		w.admittedAt[p.ID] = u.Cycle
	}

	percepts := make([]types.Percept, 0, len(prev.Percepts)+len(u.Admitted))
	for _, p := range prev.Percepts {
		if _, ok := fresh[p.ID]; ok {
			continue
		}
		if at, ok := w.admittedAt[p.ID]; ok && u.Cycle >= at+w.config.TTLCycles {
			delete(w.admittedAt, p.ID)
			w.expired.Add(1)
			continue
		}
		percepts = append(percepts, p)
	}
	percepts = append(percepts, admitted...)
	percepts = w.evict(percepts)

	next := &types.WorkspaceSnapshot{
		Cycle:    u.Cycle,
		Percepts: percepts,
		Goals:    mergeGoals(prev.Goals, u.AddGoals, u.CompletedGoals),
		Affect:   u.Affect,
		TakenAt:  now,
	}
	w.current.Store(next)
	return next
}

// evict drops the lowest-score percepts until the cap holds. Survivors keep
// their admission order; among equal scores the oldest goes first.
func (w *Workspace) evict(percepts []types.Percept) []types.Percept {
	over := len(percepts) - w.config.MaxPercepts
	if over <= 0 {
		return percepts
	}
	idx := make([]int, len(percepts))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return percepts[idx[a]].Score < percepts[idx[b]].Score
	})
	drop := make(map[int]bool, over)
	for _, i := range idx[:over] {
		drop[i] = true
		delete(w.admittedAt, percepts[i].ID)
	}
	kept := make([]types.Percept, 0, w.config.MaxPercepts)
	for i, p := range percepts {
		if !drop[i] {
			kept = append(kept, p)
		}
	}
	w.evicted.Add(uint64(over))
	logging.AttentionDebug("workspace evicted %d percepts (cap %d)", over, w.config.MaxPercepts)
	return kept
}

func mergeGoals(prev, add []types.Goal, completed []string) []types.Goal {
	done := make(map[string]bool, len(completed))
	for _, id := range completed {
		done[id] = true
	}
	out := make([]types.Goal, 0, len(prev)+len(add))
	for _, g := range prev {
		if !done[g.ID] {
			out = append(out, g)
		}
	}
	for _, g := range add {
		if !done[g.ID] {
			out = append(out, g)
		}
	}
	return out
}

// Stats reports lifetime eviction and expiry counts.
type Stats struct {
	Evicted uint64        `yaml:"evicted"`
	Expired uint64        `yaml:"expired"`
	Size    int           `yaml:"size"`
	Age     time.Duration `yaml:"snapshot_age"`
}

// Stats returns lifetime counters. Safe for concurrent use.
func (w *Workspace) Stats() Stats {
	snap := w.Snapshot()
	return Stats{
		Evicted: w.evicted.Load(),
		Expired: w.expired.Load(),
		Size:    snap.PerceptCount(),
		Age:     w.clock.Now().Sub(snap.TakenAt),
	}
}
