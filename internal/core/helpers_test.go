package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"cogsched/internal/clock"
	"cogsched/internal/interruption"
	"cogsched/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

// newTestScheduler builds a scheduler on a fake clock with the heap term of
// the resource monitor disabled.
func newTestScheduler(t *testing.T, collab Collaborators, mutate func(*Config)) (*Scheduler, *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(epoch)
	cfg := DefaultConfig()
	cfg.Clock = clk
	cfg.Limits.MaxMemoryMB = 0
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewScheduler(cfg, collab)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, clk
}

func percept(id string, salience float64, complexity int) types.Percept {
	return types.Percept{
		ID:         id,
		Modality:   types.ModalityText,
		Content:    id,
		Salience:   salience,
		Complexity: complexity,
		Timestamp:  epoch,
	}
}

// queueSource returns one batch per Drain.
type queueSource struct {
	mu      sync.Mutex
	batches [][]types.Percept
	drains  int
}

func (q *queueSource) Drain() []types.Percept {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.drains++
	if len(q.batches) == 0 {
		return nil
	}
	b := q.batches[0]
	q.batches = q.batches[1:]
	return b
}

type deciderFunc func(ctx context.Context, snap *types.WorkspaceSnapshot) ([]types.Action, error)

func (f deciderFunc) Decide(ctx context.Context, snap *types.WorkspaceSnapshot) ([]types.Action, error) {
	return f(ctx, snap)
}

type recordingExecutor struct {
	mu       sync.Mutex
	executed []types.Action
	results  map[types.ActionType]types.ActionResult
	errs     map[types.ActionType]error
}

func (r *recordingExecutor) Execute(_ context.Context, a types.Action, _ *types.WorkspaceSnapshot) (types.ActionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executed = append(r.executed, a)
	if err := r.errs[a.Type]; err != nil {
		return types.ActionResult{}, err
	}
	return r.results[a.Type], nil
}

func (r *recordingExecutor) executedTypes() []types.ActionType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.ActionType, len(r.executed))
	for i, a := range r.executed {
		out[i] = a.Type
	}
	return out
}

// trackingAffect records the workspace size it was shown each tick.
type trackingAffect struct {
	state  types.AffectState
	next   types.AffectState
	seen   []int
	onTick func()
}

func (a *trackingAffect) State() types.AffectState { return a.state }

func (a *trackingAffect) InfluenceScore(score float64, _ types.Percept) float64 { return score }

func (a *trackingAffect) UpdateAffect(_ context.Context, snap *types.WorkspaceSnapshot) error {
	a.seen = append(a.seen, snap.PerceptCount())
	a.state = a.next
	if a.onTick != nil {
		a.onTick()
	}
	return nil
}

type fakeMemory struct {
	mu           sync.Mutex
	recalled     []types.Percept
	retrieveErr  error
	retrieves    int
	consolidated int
}

func (m *fakeMemory) Retrieve(_ context.Context, _ *types.WorkspaceSnapshot, _ bool, _ time.Duration) ([]types.Percept, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retrieves++
	return m.recalled, m.retrieveErr
}

func (m *fakeMemory) Consolidate(_ context.Context, _ *types.WorkspaceSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consolidated++
	return nil
}

type panickingMeta struct{}

func (panickingMeta) Observe(context.Context, *types.WorkspaceSnapshot) ([]types.Percept, error) {
	panic("introspection exploded")
}

// onceDrives returns its urges on the first call only.
type onceDrives struct {
	urges []types.CommunicationUrge
	calls int
}

func (d *onceDrives) ComputeDrives(*types.WorkspaceSnapshot, types.AffectState) []types.CommunicationUrge {
	d.calls++
	if d.calls > 1 {
		return nil
	}
	return d.urges
}

type staticInhibitions []types.InhibitionFactor

func (s staticInhibitions) ComputeInhibitions(*types.WorkspaceSnapshot, []types.CommunicationUrge, types.AffectState) []types.InhibitionFactor {
	return s
}

type peerState bool

func (p peerState) PeerSpeaking() bool { return bool(p) }

type interruptHandler struct {
	accept   bool
	requests []interruption.Request
}

func (h *interruptHandler) Interrupt(_ context.Context, req interruption.Request) bool {
	h.requests = append(h.requests, req)
	return h.accept
}
