package core

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"cogsched/internal/bottleneck"
	"cogsched/internal/logging"
	"cogsched/internal/types"
	"cogsched/internal/workspace"
)

// =============================================================================
// CYCLE EXECUTOR
// =============================================================================

// Stage names, in execution order. They key CycleTiming entries.
const (
	StagePerception    = "perception"
	StageMemory        = "memory_retrieval"
	StageAttention     = "attention"
	StageAffect        = "affect"
	StageAction        = "action"
	StageMetaCognition = "meta_cognition"
	StageAutonomous    = "autonomous_initiation"
	StageWorkspace     = "workspace_update"
	StageConsolidation = "memory_consolidation"
)

// Stages lists every stage in the fixed order a tick runs them.
var Stages = []string{
	StagePerception,
	StageMemory,
	StageAttention,
	StageAffect,
	StageAction,
	StageMetaCognition,
	StageAutonomous,
	StageWorkspace,
	StageConsolidation,
}

// tick is the working state of one cycle.
type tick struct {
	cycle  uint64
	base   *types.WorkspaceSnapshot // As committed at tick start
	staged *types.WorkspaceSnapshot // base plus this tick's admissions

	candidates []types.Percept
	admitted   []types.Percept
	affect     types.AffectState
	addGoals   []types.Goal
	completed  []string
	next       []types.Percept // Carried into the next tick
	committed  *types.WorkspaceSnapshot

	report *CycleReport
}

type stage struct {
	name string
	run  func(ctx context.Context, t *tick) error
	// Checkpoints are where cancellation is honored. Once actions have been
	// dispatched the tick runs through the workspace commit.
	checkpoint bool
}

func (s *Scheduler) stages() []stage {
	return []stage{
		{StagePerception, s.perceive, true},
		{StageMemory, s.retrieve, true},
		{StageAttention, s.attend, true},
		{StageAffect, s.updateAffect, true},
		{StageAction, s.act, true},
		{StageMetaCognition, s.observe, false},
		{StageAutonomous, s.initiate, false},
		{StageWorkspace, s.commit, false},
		{StageConsolidation, s.consolidate, true},
	}
}

// ExecuteCycle runs one tick. It never fails: a failing stage contributes
// nothing and is reported in the returned CycleReport, whose Timings hold an
// entry for every stage.
//
// If ctx is cancelled before actions are dispatched, the tick stops without
// committing and the drained input is kept for the next tick.
func (s *Scheduler) ExecuteCycle(ctx context.Context) *CycleReport {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	start := s.clock.Now()
	t := &tick{
		cycle: s.cycle + 1,
		base:  s.workspace.Snapshot(),
		report: &CycleReport{
			ID:        uuid.NewString(),
			StartedAt: start,
			Timings:   make(types.CycleTiming, len(Stages)),
		},
	}
	t.report.Cycle = t.cycle
	t.staged = t.base
	t.affect = t.base.Affect

	uncancellable := context.WithoutCancel(ctx)
	for _, st := range s.stages() {
		if st.checkpoint && ctx.Err() != nil {
			t.report.Cancelled = true
			break
		}
		stageCtx := ctx
		if !st.checkpoint {
			stageCtx = uncancellable
		}
		s.runStage(stageCtx, t, st)
	}
	for _, name := range Stages {
		if _, ok := t.report.Timings[name]; !ok {
			t.report.Timings[name] = 0
		}
	}

	s.finish(t)
	t.report.Duration = s.clock.Now().Sub(start)
	s.events.publish(*t.report)
	return t.report
}

func (s *Scheduler) runStage(ctx context.Context, t *tick, st stage) {
	start := s.clock.Now()
	err := guard(func() error { return st.run(ctx, t) })
	t.report.Timings[st.name] = s.clock.Now().Sub(start)
	if err != nil {
		s.stageFailed(t, st.name, err)
	}
}

// guard converts a panic in fn into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return fn()
}

func (s *Scheduler) stageFailed(t *tick, stage string, err error) {
	se := &StageError{Cycle: t.cycle, Stage: stage, Err: err}
	t.report.Errors = append(t.report.Errors, se)
	s.countStageError(stage)
	logging.Get(logging.CategoryCycle).With("stage", stage, "cycle", t.cycle).Error("stage failed: %v", err)
	logging.Audit().StageError(t.cycle, stage, err)
}

// finish publishes the tick's bookkeeping: carried input, counters and the
// detector update.
func (s *Scheduler) finish(t *tick) {
	if t.report.Cancelled {
		s.cancelled.Add(1)
	}
	if t.committed == nil {
		// Nothing was committed; keep the input for the next tick.
		s.pending = append(append(s.pending, t.candidates...), t.next...)
		s.pendingLen.Store(int64(len(s.pending)))
		logging.CycleDebug("cycle %d ended without commit, %d percepts carried", t.cycle, len(s.pending))
		return
	}

	s.pending = t.next
	s.pendingLen.Store(int64(len(s.pending)))
	s.cycle = t.cycle
	s.cycles.Store(t.cycle)

	timings := t.report.Timings.Clone()
	s.lastTimings.Store(&timings)

	sample := s.resources.Sample(t.committed)
	state := s.detector.Update(timings, s.workspace.Count(), sample.Utilization, bottleneck.QueueDepths{
		Active:  sample.ActiveGoals,
		Waiting: sample.Waiting,
	})
	t.report.Resources = sample
	t.report.Bottleneck = state

	logging.CycleDebug("cycle %d: %d candidates, %d admitted, %d actions, load %.2f, took %s",
		t.cycle, t.report.Attention.Candidates, t.report.Attention.Selected, len(t.report.Actions),
		state.OverallLoad, timings.Total())
}

// -----------------------------------------------------------------------------
// Stages
// -----------------------------------------------------------------------------

func (s *Scheduler) perceive(_ context.Context, t *tick) error {
	t.candidates = append(t.candidates, s.pending...)
	s.pending = nil
	if s.collab.Perception == nil {
		return nil
	}
	drained := s.collab.Perception.Drain()
	t.candidates = append(t.candidates, drained...)
	if len(drained) > 0 {
		logging.PerceptionDebug("cycle %d drained %d percepts", t.cycle, len(drained))
	}
	return nil
}

// retrieve runs only while the workspace holds a retrieve_memory goal.
// Those goals complete once retrieval succeeds.
func (s *Scheduler) retrieve(ctx context.Context, t *tick) error {
	if s.collab.Memory == nil || !t.base.HasGoal(types.GoalRetrieveMemory) {
		return nil
	}
	recalled, err := s.collab.Memory.Retrieve(ctx, t.base, s.config.FastMode, s.config.RetrievalTimeout)
	if err != nil {
		return fmt.Errorf("retrieve: %w", err)
	}
	t.candidates = append(t.candidates, recalled...)
	for _, g := range t.base.Goals {
		if g.Type == types.GoalRetrieveMemory {
			t.completed = append(t.completed, g.ID)
		}
	}
	logging.MemoryDebug("cycle %d recalled %d memories", t.cycle, len(recalled))
	return nil
}

func (s *Scheduler) attend(_ context.Context, t *tick) error {
	sel := s.allocator.Select(t.candidates, 0, t.base.Affect)
	t.admitted = sel.Selected
	t.report.Attention = sel.Trace
	t.staged = t.base.WithPercepts(sel.Selected)
	return nil
}

// updateAffect sees the workspace as it stood at tick start; this tick's
// admissions reach affect on the next tick.
func (s *Scheduler) updateAffect(ctx context.Context, t *tick) error {
	if s.collab.Affect == nil {
		return nil
	}
	if u, ok := s.collab.Affect.(AffectUpdater); ok {
		if err := u.UpdateAffect(ctx, t.base); err != nil {
			return fmt.Errorf("update affect: %w", err)
		}
	}
	t.affect = s.collab.Affect.State()
	logging.AffectDebug("cycle %d affect v=%.2f a=%.2f d=%.2f", t.cycle, t.affect.Valence, t.affect.Arousal, t.affect.Dominance)
	return nil
}

// act dispatches decided actions in descending priority. A failing action
// does not stop the ones after it.
func (s *Scheduler) act(ctx context.Context, t *tick) error {
	if s.collab.Decider == nil {
		return nil
	}
	actions, err := s.collab.Decider.Decide(ctx, t.staged)
	if err != nil {
		return fmt.Errorf("decide: %w", err)
	}
	sort.SliceStable(actions, func(i, j int) bool { return actions[i].Priority > actions[j].Priority })

	var errs []error
	for _, a := range actions {
		t.report.Actions = append(t.report.Actions, a.Type)
		if err := guard(func() error { return s.dispatch(ctx, t, a) }); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a.Type, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) dispatch(ctx context.Context, t *tick, a types.Action) error {
	switch a.Type {
	case types.ActionNoOp, types.ActionWait:
		return nil
	case types.ActionRetrieveMemory:
		t.addGoals = append(t.addGoals, s.goalFor(types.GoalRetrieveMemory, a))
		return nil
	case types.ActionIntrospect:
		t.addGoals = append(t.addGoals, s.goalFor(types.GoalIntrospect, a))
		return nil
	case types.ActionUpdateGoal:
		if id := types.ExtractString(a.Metadata[types.MetaGoalID]); id != "" {
			t.completed = append(t.completed, id)
		}
		return nil
	}

	if s.collab.Executor == nil {
		logging.ActionDebug("no executor for %s", a)
		return nil
	}
	res, err := s.collab.Executor.Execute(ctx, a, t.staged)
	if err != nil {
		return err
	}

	switch {
	case a.Type.IsSpeech():
		s.emit(t, a, res.Text)
		if a.Type == types.ActionSpeakAutonomous {
			for _, g := range t.base.Goals {
				if g.Type == types.GoalSpeakAutonomous {
					t.completed = append(t.completed, g.ID)
				}
			}
		}
	case a.Type == types.ActionToolCall:
		for _, p := range res.Percepts {
			if p.Modality == "" {
				p.Modality = types.ModalityTool
			}
			if p.MetaString(types.MetaType) == "" {
				p.SetMeta(types.MetaType, types.TypeToolResult)
			}
			t.next = append(t.next, p)
		}
	}
	logging.ActionDebug("cycle %d executed %s", t.cycle, a)
	return nil
}

func (s *Scheduler) goalFor(gt types.GoalType, a types.Action) types.Goal {
	return types.Goal{
		ID:          uuid.NewString(),
		Type:        gt,
		Description: a.Reason,
		Priority:    a.Priority,
		CreatedAt:   s.clock.Now(),
	}
}

// observe collects introspective percepts for the next tick, adding one
// that describes the current bottleneck when the detector reports one.
func (s *Scheduler) observe(ctx context.Context, t *tick) error {
	if state := s.detector.State(); state.IsBottlenecked {
		p := types.Percept{
			ID:         uuid.NewString(),
			Modality:   types.ModalityIntrospection,
			Content:    s.detector.IntrospectionText(),
			Complexity: 1 + len(state.Active),
			Salience:   state.MaxSeverity(),
			Timestamp:  s.clock.Now(),
		}
		p.SetMeta(types.MetaType, types.TypeOverwhelm)
		p.SetMeta(types.MetaSource, "bottleneck")
		t.next = append(t.next, p)
	}

	if s.collab.Meta == nil {
		return nil
	}
	observed, err := s.collab.Meta.Observe(ctx, t.staged)
	if err != nil {
		return fmt.Errorf("observe: %w", err)
	}
	for _, p := range observed {
		if p.Modality == "" {
			p.Modality = types.ModalityIntrospection
		}
		t.next = append(t.next, p)
	}
	if len(observed) > 0 {
		logging.MetacognitionDebug("cycle %d produced %d introspective percepts", t.cycle, len(observed))
	}
	return nil
}

// initiate runs the communication gate and, while the peer is speaking,
// the interruption check.
func (s *Scheduler) initiate(ctx context.Context, t *tick) error {
	var urges []types.CommunicationUrge
	if s.collab.Drives != nil {
		urges = s.collab.Drives.ComputeDrives(t.staged, t.affect)
	}
	var inhibitions []types.InhibitionFactor
	if s.collab.Inhibitions != nil {
		inhibitions = s.collab.Inhibitions.ComputeInhibitions(t.staged, urges, t.affect)
	}

	now := s.clock.Now()
	res := s.gate.Evaluate(urges, inhibitions, s.detector.State(), now)
	t.report.Decision = &res
	if spoken, ok := res.Spoken(); ok && spoken.Urge != nil {
		t.addGoals = append(t.addGoals, types.Goal{
			ID:          uuid.NewString(),
			Type:        types.GoalSpeakAutonomous,
			Description: spoken.Urge.Content,
			Priority:    spoken.Confidence,
			Metadata: map[string]interface{}{
				"decision_id": spoken.ID,
				"urge_id":     spoken.Urge.ID,
				"drive_type":  string(spoken.Urge.DriveType),
			},
			CreatedAt: now,
		})
	}

	if s.collab.Peer == nil || !s.collab.Peer.PeerSpeaking() {
		return nil
	}
	req, ok := s.interrupts.Evaluate(t.staged, t.affect, urges, true)
	if !ok {
		return nil
	}
	t.report.Interruption = &req
	if s.collab.Interrupts != nil && s.collab.Interrupts.Interrupt(ctx, req) {
		s.interrupts.Record(req)
		t.report.Interrupted = true
	}
	return nil
}

func (s *Scheduler) commit(_ context.Context, t *tick) error {
	goals := append(s.takeGoals(), t.addGoals...)
	t.committed = s.workspace.Commit(workspace.Update{
		Cycle:          t.cycle,
		Admitted:       t.admitted,
		AddGoals:       goals,
		CompletedGoals: t.completed,
		Affect:         t.affect,
	})
	return nil
}

func (s *Scheduler) consolidate(ctx context.Context, t *tick) error {
	if s.collab.Memory == nil || t.committed == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.config.ConsolidationTimeout)
	defer cancel()
	if err := s.collab.Memory.Consolidate(ctx, t.committed); err != nil {
		return fmt.Errorf("consolidate: %w", err)
	}
	return nil
}

// lastTimingsCopy returns the timings of the last committed tick.
func (s *Scheduler) lastTimingsCopy() types.CycleTiming {
	if p := s.lastTimings.Load(); p != nil {
		return p.Clone()
	}
	return types.CycleTiming{}
}

func (s *Scheduler) emit(t *tick, a types.Action, text string) {
	out := types.Output{
		ID:        uuid.NewString(),
		Type:      a.Type,
		Text:      text,
		Cycle:     t.cycle,
		Affect:    t.affect,
		EmittedAt: s.clock.Now(),
		Metadata:  a.Metadata,
	}
	t.report.Outputs++
	s.emitted.Add(1)
	for {
		select {
		case s.outputs <- out:
			return
		default:
		}
		// Full: drop the oldest unread output and retry.
		select {
		case <-s.outputs:
			s.outputsDropped.Add(1)
			logging.ActionWarn("output buffer full, dropped oldest output")
		default:
			// Unbuffered with no waiter.
			s.outputsDropped.Add(1)
			return
		}
	}
}
