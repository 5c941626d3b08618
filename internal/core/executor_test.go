package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"cogsched/internal/bottleneck"
	"cogsched/internal/communication"
	"cogsched/internal/config"
	"cogsched/internal/interruption"
	"cogsched/internal/logging"
	"cogsched/internal/types"
)

func TestExecuteCycle_TimingForEveryStage(t *testing.T) {
	s, _ := newTestScheduler(t, Collaborators{}, nil)

	report := s.ExecuteCycle(context.Background())

	require.Len(t, report.Timings, len(Stages))
	for _, stage := range Stages {
		assert.Contains(t, report.Timings, stage)
	}
	assert.Empty(t, report.Errors)
	assert.False(t, report.Cancelled)
	assert.Equal(t, uint64(1), report.Cycle)
	assert.Equal(t, uint64(1), s.Snapshot().Cycle)
	assert.Equal(t, uint64(1), s.Cycle())
}

func TestExecuteCycle_StageFailureDoesNotHaltTick(t *testing.T) {
	obs, logs := observer.New(zapcore.DebugLevel)
	logging.SetLogger(zap.New(obs), logging.Options{DebugMode: true})
	t.Cleanup(func() { logging.SetLogger(zap.NewNop(), logging.Options{}) })

	mem := &fakeMemory{}
	s, _ := newTestScheduler(t, Collaborators{
		Perception: &queueSource{batches: [][]types.Percept{{percept("p1", 0.5, 5)}}},
		Memory:     mem,
		Decider: deciderFunc(func(context.Context, *types.WorkspaceSnapshot) ([]types.Action, error) {
			return nil, errors.New("model unavailable")
		}),
		Meta: panickingMeta{},
	}, nil)

	report := s.ExecuteCycle(context.Background())

	require.Len(t, report.Errors, 2)
	assert.True(t, report.Failed(StageAction))
	assert.True(t, report.Failed(StageMetaCognition))
	assert.False(t, report.Failed(StageWorkspace))

	var metaErr *StageError
	for _, e := range report.Errors {
		if e.Stage == StageMetaCognition {
			metaErr = e
		}
	}
	require.NotNil(t, metaErr)
	assert.ErrorIs(t, metaErr, ErrStagePanic)

	// Later stages still ran.
	assert.Equal(t, 1, s.Snapshot().PerceptCount())
	assert.Equal(t, 1, mem.consolidated)
	assert.Len(t, report.Timings, len(Stages))

	errs := s.StageErrors()
	assert.Equal(t, uint64(1), errs[StageAction])
	assert.Equal(t, uint64(1), errs[StageMetaCognition])

	failed := logs.FilterMessageSnippet("stage failed").FilterField(zap.String("stage", StageMetaCognition))
	assert.Equal(t, 1, failed.Len())
	assert.Equal(t, 2, logs.FilterLoggerName("audit").FilterMessage(string(logging.AuditStageError)).Len())
}

func TestExecuteCycle_AffectLagsOneTick(t *testing.T) {
	affect := &trackingAffect{state: types.NeutralAffect, next: types.AffectState{Valence: 0.4, Arousal: 0.6, Dominance: 0.5}}
	s, _ := newTestScheduler(t, Collaborators{
		Perception: &queueSource{batches: [][]types.Percept{
			{percept("a", 0.5, 1), percept("b", 0.4, 1)},
			{percept("c", 0.3, 1)},
		}},
		Affect: affect,
	}, nil)

	s.ExecuteCycle(context.Background())
	s.ExecuteCycle(context.Background())

	// Tick 1 saw the empty workspace, tick 2 saw tick 1's admissions only.
	assert.Equal(t, []int{0, 2}, affect.seen)
	assert.Equal(t, affect.next, s.Snapshot().Affect)
	assert.Equal(t, 3, s.Snapshot().PerceptCount())
}

func TestExecuteCycle_AdmissionUnderBudget(t *testing.T) {
	batch := []types.Percept{
		percept("p1", 0.9, 10),
		percept("p2", 0.8, 10),
		percept("p3", 0.7, 10),
		percept("p4", 0.6, 10),
		percept("p5", 0.5, 10),
	}
	s, _ := newTestScheduler(t, Collaborators{
		Perception: &queueSource{batches: [][]types.Percept{batch}},
	}, func(c *Config) { c.Attention.Budget = 30 })

	report := s.ExecuteCycle(context.Background())

	assert.Equal(t, 5, report.Attention.Candidates)
	assert.Equal(t, 3, report.Attention.Selected)
	assert.Equal(t, 2, report.Attention.Rejected)
	assert.Equal(t, 30, report.Attention.BudgetUsed)

	var ids []string
	for _, p := range s.Snapshot().Percepts {
		ids = append(ids, p.ID)
	}
	if diff := cmp.Diff([]string{"p1", "p2", "p3"}, ids); diff != "" {
		t.Errorf("admitted mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteCycle_ActionsRunInPriorityOrder(t *testing.T) {
	exec := &recordingExecutor{}
	s, _ := newTestScheduler(t, Collaborators{
		Decider: deciderFunc(func(context.Context, *types.WorkspaceSnapshot) ([]types.Action, error) {
			return []types.Action{
				{Type: types.ActionSpeak, Priority: 0.1},
				{Type: types.ActionToolCall, Priority: 0.9},
				{Type: types.ActionNoOp, Priority: 0.7},
				{Type: types.ActionCommitMemory, Priority: 0.5},
			}, nil
		}),
		Executor: exec,
	}, nil)

	report := s.ExecuteCycle(context.Background())

	want := []types.ActionType{types.ActionToolCall, types.ActionNoOp, types.ActionCommitMemory, types.ActionSpeak}
	if diff := cmp.Diff(want, report.Actions); diff != "" {
		t.Errorf("dispatch order mismatch (-want +got):\n%s", diff)
	}
	// No-ops never reach the executor.
	want = []types.ActionType{types.ActionToolCall, types.ActionCommitMemory, types.ActionSpeak}
	if diff := cmp.Diff(want, exec.executedTypes()); diff != "" {
		t.Errorf("executed mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteCycle_FailingActionDoesNotStopOthers(t *testing.T) {
	exec := &recordingExecutor{
		errs:    map[types.ActionType]error{types.ActionToolCall: errors.New("tool crashed")},
		results: map[types.ActionType]types.ActionResult{types.ActionSpeak: {Text: "still here"}},
	}
	s, _ := newTestScheduler(t, Collaborators{
		Decider: deciderFunc(func(context.Context, *types.WorkspaceSnapshot) ([]types.Action, error) {
			return []types.Action{
				{Type: types.ActionToolCall, Priority: 0.9},
				{Type: types.ActionSpeak, Priority: 0.1},
			}, nil
		}),
		Executor: exec,
	}, nil)

	report := s.ExecuteCycle(context.Background())

	assert.True(t, report.Failed(StageAction))
	assert.Equal(t, 1, report.Outputs)
	out, ok := s.AwaitOutput(context.Background(), 0)
	require.True(t, ok)
	assert.Equal(t, "still here", out.Text)
}

func TestExecuteCycle_ToolResultsFeedNextTick(t *testing.T) {
	calls := 0
	exec := &recordingExecutor{results: map[types.ActionType]types.ActionResult{
		types.ActionToolCall: {Percepts: []types.Percept{{ID: "tool-1", Salience: 0.6, Complexity: 2}}},
	}}
	s, _ := newTestScheduler(t, Collaborators{
		Decider: deciderFunc(func(context.Context, *types.WorkspaceSnapshot) ([]types.Action, error) {
			calls++
			if calls == 1 {
				return []types.Action{{Type: types.ActionToolCall, Priority: 1}}, nil
			}
			return nil, nil
		}),
		Executor: exec,
	}, nil)

	s.ExecuteCycle(context.Background())
	assert.Zero(t, s.Snapshot().PerceptCount())
	assert.Equal(t, 1, s.Summary().PendingInput)

	s.ExecuteCycle(context.Background())
	snap := s.Snapshot()
	require.Equal(t, 1, snap.PerceptCount())
	p := snap.Percepts[0]
	assert.Equal(t, "tool-1", p.ID)
	assert.Equal(t, types.ModalityTool, p.Modality)
	assert.Equal(t, types.TypeToolResult, p.MetaString(types.MetaType))
}

func TestExecuteCycle_RetrievalTriggeredByGoal(t *testing.T) {
	mem := &fakeMemory{recalled: []types.Percept{percept("m1", 0.5, 1)}}
	s, _ := newTestScheduler(t, Collaborators{Memory: mem}, nil)

	s.AddGoal(types.Goal{Type: types.GoalRetrieveMemory, Description: "recall the user's name"})

	s.ExecuteCycle(context.Background())
	assert.Zero(t, mem.retrieves, "goal is committed at the end of the first tick")
	assert.True(t, s.Snapshot().HasGoal(types.GoalRetrieveMemory))

	s.ExecuteCycle(context.Background())
	assert.Equal(t, 1, mem.retrieves)
	assert.False(t, s.Snapshot().HasGoal(types.GoalRetrieveMemory))
	require.Equal(t, 1, s.Snapshot().PerceptCount())
	assert.Equal(t, "m1", s.Snapshot().Percepts[0].ID)

	s.ExecuteCycle(context.Background())
	assert.Equal(t, 1, mem.retrieves)
}

func TestExecuteCycle_FailedRetrievalKeepsGoal(t *testing.T) {
	mem := &fakeMemory{retrieveErr: context.DeadlineExceeded}
	s, _ := newTestScheduler(t, Collaborators{Memory: mem}, nil)
	s.AddGoal(types.Goal{Type: types.GoalRetrieveMemory})

	s.ExecuteCycle(context.Background())
	report := s.ExecuteCycle(context.Background())

	assert.True(t, report.Failed(StageMemory))
	assert.True(t, s.Snapshot().HasGoal(types.GoalRetrieveMemory))
}

func TestExecuteCycle_PartialRecallIsDiscarded(t *testing.T) {
	mem := &fakeMemory{
		recalled:    []types.Percept{percept("m1", 0.5, 1)},
		retrieveErr: errors.New("semantic: store offline"),
	}
	s, _ := newTestScheduler(t, Collaborators{Memory: mem}, nil)
	s.AddGoal(types.Goal{Type: types.GoalRetrieveMemory})

	s.ExecuteCycle(context.Background())
	report := s.ExecuteCycle(context.Background())

	assert.True(t, report.Failed(StageMemory))
	assert.Zero(t, s.Snapshot().PerceptCount())
	assert.True(t, s.Snapshot().HasGoal(types.GoalRetrieveMemory))
}

func TestExecuteCycle_ActionGoals(t *testing.T) {
	var target string
	calls := 0
	s, _ := newTestScheduler(t, Collaborators{
		Decider: deciderFunc(func(context.Context, *types.WorkspaceSnapshot) ([]types.Action, error) {
			calls++
			switch calls {
			case 1:
				return []types.Action{
					{Type: types.ActionIntrospect, Priority: 0.4, Reason: "check my state"},
					{Type: types.ActionRetrieveMemory, Priority: 0.2},
				}, nil
			case 2:
				return []types.Action{{
					Type:     types.ActionUpdateGoal,
					Priority: 1,
					Metadata: map[string]interface{}{types.MetaGoalID: target},
				}}, nil
			}
			return nil, nil
		}),
	}, nil)
	target = s.AddGoal(types.Goal{Type: types.GoalLearn, Description: "learn the task"})

	s.ExecuteCycle(context.Background())
	snap := s.Snapshot()
	assert.True(t, snap.HasGoal(types.GoalIntrospect))
	assert.True(t, snap.HasGoal(types.GoalRetrieveMemory))
	assert.True(t, snap.HasGoal(types.GoalLearn))

	s.ExecuteCycle(context.Background())
	assert.False(t, s.Snapshot().HasGoal(types.GoalLearn))
}

func TestExecuteCycle_AutonomousSpeech(t *testing.T) {
	drives := &onceDrives{urges: []types.CommunicationUrge{{
		ID:        "u1",
		DriveType: types.DriveInsight,
		Intensity: 0.8,
		Priority:  0.9,
		Content:   "I just realised something",
	}}}
	exec := &recordingExecutor{results: map[types.ActionType]types.ActionResult{
		types.ActionSpeakAutonomous: {Text: "I just realised something"},
	}}
	s, _ := newTestScheduler(t, Collaborators{
		Drives: drives,
		Decider: deciderFunc(func(_ context.Context, snap *types.WorkspaceSnapshot) ([]types.Action, error) {
			if snap.HasGoal(types.GoalSpeakAutonomous) {
				return []types.Action{{Type: types.ActionSpeakAutonomous, Priority: 1}}, nil
			}
			return nil, nil
		}),
		Executor: exec,
	}, nil)

	report := s.ExecuteCycle(context.Background())
	require.NotNil(t, report.Decision)
	assert.Equal(t, communication.Speak, report.Decision.Decision)

	var goal *types.Goal
	for i := range s.Snapshot().Goals {
		if g := s.Snapshot().Goals[i]; g.Type == types.GoalSpeakAutonomous {
			goal = &g
		}
	}
	require.NotNil(t, goal)
	assert.Equal(t, "I just realised something", goal.Description)
	assert.InDelta(t, report.Decision.Confidence, goal.Priority, 1e-9)
	assert.Equal(t, "u1", goal.Metadata["urge_id"])

	report = s.ExecuteCycle(context.Background())
	assert.Equal(t, communication.Silence, report.Decision.Decision)
	assert.False(t, s.Snapshot().HasGoal(types.GoalSpeakAutonomous))

	out, ok := s.AwaitOutput(context.Background(), 0)
	require.True(t, ok)
	assert.Equal(t, types.ActionSpeakAutonomous, out.Type)
	assert.Equal(t, uint64(2), out.Cycle)
}

func TestExecuteCycle_BottleneckIntrospection(t *testing.T) {
	s, _ := newTestScheduler(t, Collaborators{
		Perception: &queueSource{batches: [][]types.Percept{
			{percept("a", 0.5, 1), percept("b", 0.5, 1), percept("c", 0.5, 1)},
		}},
	}, func(c *Config) {
		c.Bottleneck.WorkspaceOverloadThreshold = 1
		c.Bottleneck.PersistenceCycles = 1
	})

	report := s.ExecuteCycle(context.Background())
	require.NotNil(t, report.Bottleneck)
	assert.True(t, report.Bottleneck.IsBottlenecked)

	s.ExecuteCycle(context.Background())
	require.Len(t, s.pending, 1)
	p := s.pending[0]
	assert.Equal(t, types.ModalityIntrospection, p.Modality)
	assert.Equal(t, types.TypeOverwhelm, p.MetaString(types.MetaType))
	assert.Contains(t, p.Content, "I notice my processing is constrained")
}

func safetyPercept(id string) types.Percept {
	p := percept(id, 0.9, 1)
	p.SetMeta(types.MetaSafetyConcern, true)
	return p
}

func TestExecuteCycle_InterruptionRecordedWhenHandled(t *testing.T) {
	handler := &interruptHandler{accept: true}
	s, clk := newTestScheduler(t, Collaborators{
		Perception: &queueSource{batches: [][]types.Percept{{safetyPercept("s1")}}},
		Peer:       peerState(true),
		Interrupts: handler,
	}, nil)

	report := s.ExecuteCycle(context.Background())
	require.NotNil(t, report.Interruption)
	assert.Equal(t, interruption.ReasonSafety, report.Interruption.Reason)
	assert.True(t, report.Interrupted)
	assert.Equal(t, uint64(1), s.Interruptions().Summary().Count)

	// Still flagged in the workspace, but on cooldown.
	clk.Advance(10 * time.Second)
	report = s.ExecuteCycle(context.Background())
	assert.Nil(t, report.Interruption)
	assert.Len(t, handler.requests, 1)
}

func TestExecuteCycle_DeclinedInterruptionNotRecorded(t *testing.T) {
	handler := &interruptHandler{accept: false}
	s, _ := newTestScheduler(t, Collaborators{
		Perception: &queueSource{batches: [][]types.Percept{{safetyPercept("s1")}}},
		Peer:       peerState(true),
		Interrupts: handler,
	}, nil)

	report := s.ExecuteCycle(context.Background())
	require.NotNil(t, report.Interruption)
	assert.False(t, report.Interrupted)
	assert.Zero(t, s.Interruptions().Summary().Count)

	report = s.ExecuteCycle(context.Background())
	assert.NotNil(t, report.Interruption, "no cooldown without a recorded interruption")
	assert.Len(t, handler.requests, 2)
}

func TestExecuteCycle_NoInterruptionWhilePeerSilent(t *testing.T) {
	handler := &interruptHandler{accept: true}
	s, _ := newTestScheduler(t, Collaborators{
		Perception: &queueSource{batches: [][]types.Percept{{safetyPercept("s1")}}},
		Peer:       peerState(false),
		Interrupts: handler,
	}, nil)

	report := s.ExecuteCycle(context.Background())
	assert.Nil(t, report.Interruption)
	assert.Empty(t, handler.requests)
}

func TestExecuteCycle_CancelledBeforeStart(t *testing.T) {
	src := &queueSource{batches: [][]types.Percept{{percept("p1", 0.5, 1)}}}
	s, _ := newTestScheduler(t, Collaborators{Perception: src}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := s.ExecuteCycle(ctx)

	assert.True(t, report.Cancelled)
	assert.Len(t, report.Timings, len(Stages))
	assert.Zero(t, src.drains)
	assert.Zero(t, s.Snapshot().Cycle)
	assert.Zero(t, s.Cycle())
	assert.Equal(t, uint64(1), s.Summary().Cancelled)
}

func TestExecuteCycle_CancelledBeforeActionKeepsInput(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exec := &recordingExecutor{}
	affect := &trackingAffect{state: types.NeutralAffect, next: types.NeutralAffect, onTick: cancel}
	s, _ := newTestScheduler(t, Collaborators{
		Perception: &queueSource{batches: [][]types.Percept{{percept("p1", 0.5, 1)}}},
		Affect:     affect,
		Decider: deciderFunc(func(context.Context, *types.WorkspaceSnapshot) ([]types.Action, error) {
			return []types.Action{{Type: types.ActionSpeak, Priority: 1}}, nil
		}),
		Executor: exec,
	}, nil)

	report := s.ExecuteCycle(ctx)
	assert.True(t, report.Cancelled)
	assert.Empty(t, exec.executedTypes())
	assert.Zero(t, s.Snapshot().PerceptCount())

	affect.onTick = nil
	report = s.ExecuteCycle(context.Background())
	assert.False(t, report.Cancelled)
	assert.Equal(t, uint64(1), report.Cycle)
	require.Equal(t, 1, s.Snapshot().PerceptCount())
	assert.Equal(t, "p1", s.Snapshot().Percepts[0].ID)
}

func TestExecuteCycle_CancelDuringActionStillCommits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mem := &fakeMemory{}
	s, _ := newTestScheduler(t, Collaborators{
		Perception: &queueSource{batches: [][]types.Percept{{percept("p1", 0.5, 1)}}},
		Memory:     mem,
		Decider: deciderFunc(func(context.Context, *types.WorkspaceSnapshot) ([]types.Action, error) {
			cancel()
			return []types.Action{{Type: types.ActionWait}}, nil
		}),
	}, nil)

	report := s.ExecuteCycle(ctx)

	assert.True(t, report.Cancelled)
	assert.Equal(t, uint64(1), s.Snapshot().Cycle)
	assert.Equal(t, 1, s.Snapshot().PerceptCount())
	assert.Zero(t, mem.consolidated)
	assert.Zero(t, report.Timings[StageConsolidation])
	assert.Contains(t, report.Timings, StageConsolidation)
}

func TestExecuteCycle_SlowStageFeedsDetector(t *testing.T) {
	var clk interface{ Advance(time.Duration) }
	s, fake := newTestScheduler(t, Collaborators{
		Decider: deciderFunc(func(context.Context, *types.WorkspaceSnapshot) ([]types.Action, error) {
			clk.Advance(150 * time.Millisecond)
			return nil, nil
		}),
	}, func(c *Config) { c.Bottleneck.PersistenceCycles = 1 })
	clk = fake

	report := s.ExecuteCycle(context.Background())

	assert.Equal(t, 150*time.Millisecond, report.Timings[StageAction])
	assert.Equal(t, 150*time.Millisecond, report.Timings.Total())
	require.NotNil(t, report.Bottleneck)
	assert.True(t, report.Bottleneck.IsBottlenecked)
	assert.Contains(t, report.Bottleneck.Types(), bottleneck.CycleOverrun)
}

func TestNewScheduler_RejectsBadConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero period", func(c *Config) { c.CyclePeriod = 0 }, "cycle.target_period"},
		{"negative output buffer", func(c *Config) { c.OutputBuffer = -1 }, "cycle.output_buffer"},
		{"zero budget", func(c *Config) { c.Attention.Budget = 0 }, "attention.budget"},
		{"slowdown factor", func(c *Config) { c.Bottleneck.SlowdownFactor = 1 }, "bottleneck.subsystem_slowdown_factor"},
		{"inverted thresholds", func(c *Config) { c.Communication.SilenceThreshold = 0.5 }, "communication.silence_threshold"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			_, err := NewScheduler(cfg, Collaborators{})
			require.Error(t, err)
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
			var ce *config.ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tc.field, ce.Field)
		})
	}
}

func TestConfigFrom_MatchesDefaults(t *testing.T) {
	if diff := cmp.Diff(DefaultConfig(), ConfigFrom(config.DefaultConfig())); diff != "" {
		t.Errorf("config mapping mismatch (-want +got):\n%s", diff)
	}
}

func TestSummary(t *testing.T) {
	s, _ := newTestScheduler(t, Collaborators{
		Perception: &queueSource{batches: [][]types.Percept{{percept("p1", 0.5, 4)}}},
		Meta:       panickingMeta{},
	}, nil)
	s.AddGoal(types.Goal{Type: types.GoalRespondToUser})

	s.ExecuteCycle(context.Background())
	s.ExecuteCycle(context.Background())
	sum := s.Summary()

	assert.Equal(t, uint64(2), sum.Cycles)
	assert.Equal(t, uint64(2), sum.StageErrors[StageMetaCognition])
	assert.Len(t, sum.LastTimingsMs, len(Stages))
	assert.Equal(t, 1, sum.Goals)
	assert.Equal(t, 1, sum.Workspace.Size)
	assert.Equal(t, uint64(2), sum.Attention.Calls)
	assert.Equal(t, uint64(2), sum.Bottleneck.Updates)
	assert.Equal(t, uint64(2), sum.Communication.Total)
	require.NotNil(t, sum.Resources)
	assert.Equal(t, uint64(2), sum.Resources.Samples)
	assert.InDelta(t, 0.1, sum.Resources.Utilization, 1e-9)
}
