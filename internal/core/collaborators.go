package core

import (
	"context"
	"time"

	"cogsched/internal/interruption"
	"cogsched/internal/types"
)

// =============================================================================
// COLLABORATOR CONTRACTS
// =============================================================================
//
// Everything outside scheduling (content generation, embeddings, memory
// stores, the affect model) is consumed through these narrow interfaces.
// A nil collaborator makes its stage a timed no-op.

// PerceptionSource hands over everything perceived since the last drain.
// Drain must not block.
type PerceptionSource interface {
	Drain() []types.Percept
}

// MemoryRetriever recalls memories relevant to the workspace and
// consolidates the committed workspace. Both calls honor ctx and timeout.
type MemoryRetriever interface {
	Retrieve(ctx context.Context, snap *types.WorkspaceSnapshot, fastMode bool, timeout time.Duration) ([]types.Percept, error)
	Consolidate(ctx context.Context, snap *types.WorkspaceSnapshot) error
}

// AffectProvider exposes the current VAD state and may bias attention scores.
type AffectProvider interface {
	State() types.AffectState
	InfluenceScore(score float64, p types.Percept) float64
}

// AffectUpdater is implemented by affect providers that recompute their
// state from the workspace each tick. The affect stage passes the snapshot
// as it stood at tick start.
type AffectUpdater interface {
	UpdateAffect(ctx context.Context, snap *types.WorkspaceSnapshot) error
}

// ActionDecider proposes actions for the current workspace.
type ActionDecider interface {
	Decide(ctx context.Context, snap *types.WorkspaceSnapshot) ([]types.Action, error)
}

// ActionExecutor carries out one action.
type ActionExecutor interface {
	Execute(ctx context.Context, action types.Action, snap *types.WorkspaceSnapshot) (types.ActionResult, error)
}

// MetaCognition observes the workspace and returns introspective percepts.
type MetaCognition interface {
	Observe(ctx context.Context, snap *types.WorkspaceSnapshot) ([]types.Percept, error)
}

// DriveSource computes the urges to communicate.
type DriveSource interface {
	ComputeDrives(snap *types.WorkspaceSnapshot, affect types.AffectState) []types.CommunicationUrge
}

// InhibitionSource computes the reasons for restraint.
type InhibitionSource interface {
	ComputeInhibitions(snap *types.WorkspaceSnapshot, urges []types.CommunicationUrge, affect types.AffectState) []types.InhibitionFactor
}

// PeerState reports whether the conversation partner is mid-turn.
type PeerState interface {
	PeerSpeaking() bool
}

// InterruptHandler acts on an interruption request. It returns true only if
// it actually interrupted; only then is the request recorded.
type InterruptHandler interface {
	Interrupt(ctx context.Context, req interruption.Request) bool
}

// Collaborators bundles the external parts of one agent.
type Collaborators struct {
	Perception  PerceptionSource
	Memory      MemoryRetriever
	Affect      AffectProvider
	Decider     ActionDecider
	Executor    ActionExecutor
	Meta        MetaCognition
	Drives      DriveSource
	Inhibitions InhibitionSource
	Peer        PeerState
	Interrupts  InterruptHandler
	Resources   ResourceMonitor // nil uses the built-in GoalLimits monitor
}
