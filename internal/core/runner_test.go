package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogsched/internal/communication"
	"cogsched/internal/types"
)

func TestRunCycles_FixedRate(t *testing.T) {
	s, clk := newTestScheduler(t, Collaborators{}, nil)

	done := make(chan error, 1)
	go func() { done <- s.RunCycles(context.Background(), 3) }()

	for i := 0; i < 2; i++ {
		clk.WaitForTimers(1)
		assert.Equal(t, uint64(i+1), s.Cycle())
		clk.Advance(100 * time.Millisecond)
	}
	require.NoError(t, <-done)
	assert.Equal(t, uint64(3), s.Cycle())
	assert.Zero(t, s.Summary().Overruns)
	assert.Zero(t, clk.PendingCount(), "no wait after the last tick")
}

func TestRunCycles_OverrunStartsNextTickImmediately(t *testing.T) {
	var advance func(time.Duration)
	s, clk := newTestScheduler(t, Collaborators{
		Decider: deciderFunc(func(context.Context, *types.WorkspaceSnapshot) ([]types.Action, error) {
			advance(150 * time.Millisecond)
			return nil, nil
		}),
	}, nil)
	advance = clk.Advance

	// Every tick takes longer than the period, so the loop never waits.
	require.NoError(t, s.RunCycles(context.Background(), 3))
	assert.Equal(t, uint64(3), s.Cycle())
	assert.Equal(t, uint64(2), s.Summary().Overruns)
	assert.Zero(t, clk.PendingCount())
}

func TestRun_StopsOnCancel(t *testing.T) {
	s, clk := newTestScheduler(t, Collaborators{}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	clk.WaitForTimers(1)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, uint64(1), s.Cycle())
}

func TestRun_RejectsSecondLoop(t *testing.T) {
	s, clk := newTestScheduler(t, Collaborators{}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	clk.WaitForTimers(1)

	assert.ErrorIs(t, s.RunCycles(context.Background(), 1), ErrAlreadyRunning)

	cancel()
	<-done
}

func speakingScheduler(t *testing.T, buffer int) *Scheduler {
	t.Helper()
	exec := &recordingExecutor{results: map[types.ActionType]types.ActionResult{
		types.ActionSpeak: {Text: "hello"},
	}}
	s, _ := newTestScheduler(t, Collaborators{
		Decider: deciderFunc(func(context.Context, *types.WorkspaceSnapshot) ([]types.Action, error) {
			return []types.Action{{Type: types.ActionSpeak, Priority: 1}}, nil
		}),
		Executor: exec,
	}, func(c *Config) { c.OutputBuffer = buffer })
	return s
}

func TestAwaitOutput_TimesOutToNoAnswer(t *testing.T) {
	s, clk := newTestScheduler(t, Collaborators{}, nil)

	got := make(chan bool, 1)
	go func() {
		_, ok := s.AwaitOutput(context.Background(), 5*time.Second)
		got <- ok
	}()
	clk.WaitForTimers(1)
	clk.Advance(5 * time.Second)
	assert.False(t, <-got)
}

func TestAwaitOutput_ContextCancelled(t *testing.T) {
	s, clk := newTestScheduler(t, Collaborators{}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	got := make(chan bool, 1)
	go func() {
		_, ok := s.AwaitOutput(ctx, time.Minute)
		got <- ok
	}()
	clk.WaitForTimers(1)
	cancel()
	assert.False(t, <-got)
}

func TestAwaitOutput_ReceivesSpeech(t *testing.T) {
	s := speakingScheduler(t, 4)

	s.ExecuteCycle(context.Background())
	out, ok := s.AwaitOutput(context.Background(), time.Second)
	require.True(t, ok)
	assert.Equal(t, "hello", out.Text)
	assert.Equal(t, types.ActionSpeak, out.Type)
	assert.Equal(t, uint64(1), out.Cycle)
	assert.NotEmpty(t, out.ID)

	_, ok = s.AwaitOutput(context.Background(), 0)
	assert.False(t, ok)
}

func TestAwaitOutput_DropsOldestWhenFull(t *testing.T) {
	s := speakingScheduler(t, 2)

	for i := 0; i < 3; i++ {
		s.ExecuteCycle(context.Background())
	}

	first, ok := s.AwaitOutput(context.Background(), 0)
	require.True(t, ok)
	second, ok := s.AwaitOutput(context.Background(), 0)
	require.True(t, ok)
	assert.Equal(t, uint64(2), first.Cycle)
	assert.Equal(t, uint64(3), second.Cycle)

	sum := s.Summary()
	assert.Equal(t, uint64(3), sum.Outputs)
	assert.Equal(t, uint64(1), sum.OutputsDropped)
}

func TestExecuteCycle_GateDefersUnderRestraint(t *testing.T) {
	s, _ := newTestScheduler(t, Collaborators{
		Drives: &onceDrives{urges: []types.CommunicationUrge{{
			ID:        "u1",
			DriveType: types.DriveQuestion,
			Intensity: 0.5,
			Priority:  0.5,
			Content:   "ask about the plan",
		}}},
		Inhibitions: staticInhibitions{{Type: types.InhibitionBadTiming, Strength: 0.4, Reason: "user is busy"}},
	}, nil)

	report := s.ExecuteCycle(context.Background())

	require.NotNil(t, report.Decision)
	assert.Equal(t, communication.Defer, report.Decision.Decision)
	assert.Len(t, s.Gate().Deferred(), 1)
	assert.False(t, s.Snapshot().HasGoal(types.GoalSpeakAutonomous))
}
