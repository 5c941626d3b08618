package retrieval

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"cogsched/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubSource struct {
	name        string
	percepts    []types.Percept
	err         error
	block       bool // Wait for ctx instead of answering
	inFlight    *atomic.Int32
	maxInFlight *atomic.Int32
	consolidate atomic.Int32
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Retrieve(ctx context.Context, _ *types.WorkspaceSnapshot, _ bool) ([]types.Percept, error) {
	if s.inFlight != nil {
		n := s.inFlight.Add(1)
		defer s.inFlight.Add(-1)
		for {
			m := s.maxInFlight.Load()
			if n <= m || s.maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	out := make([]types.Percept, len(s.percepts))
	copy(out, s.percepts)
	return out, s.err
}

func (s *stubSource) Consolidate(context.Context, *types.WorkspaceSnapshot) error {
	s.consolidate.Add(1)
	return s.err
}

func TestRetrieveMergesInSourceOrder(t *testing.T) {
	episodic := &stubSource{name: "episodic", percepts: []types.Percept{{ID: "e1"}, {ID: "e2"}}}
	semantic := &stubSource{name: "semantic", percepts: []types.Percept{{ID: "s1", Modality: types.ModalityText}}}
	f := NewFanout(0, episodic, semantic)

	got, err := f.Retrieve(context.Background(), &types.WorkspaceSnapshot{}, true, time.Second)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "e1", got[0].ID)
	assert.Equal(t, "s1", got[2].ID)
	assert.Equal(t, types.ModalityMemory, got[0].Modality)
	assert.Equal(t, types.ModalityText, got[2].Modality, "existing modality is kept")
	assert.Equal(t, "semantic", got[2].MetaString(types.MetaSource))
}

func TestRetrieveKeepsPartialResults(t *testing.T) {
	ok := &stubSource{name: "ok", percepts: []types.Percept{{ID: "m"}}}
	broken := &stubSource{name: "broken", err: errors.New("disk on fire")}
	f := NewFanout(2, ok, broken)

	got, err := f.Retrieve(context.Background(), nil, false, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken: disk on fire")
	assert.Len(t, got, 1)
}

func TestRetrieveHonoursTimeout(t *testing.T) {
	slow := &stubSource{name: "slow", block: true}
	fast := &stubSource{name: "fast", percepts: []types.Percept{{ID: "f"}}}
	f := NewFanout(2, slow, fast)

	start := time.Now()
	got, err := f.Retrieve(context.Background(), nil, true, 20*time.Millisecond)

	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, got, 1)
}

func TestRetrieveBoundsParallelism(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	var sources []Source
	for i := 0; i < 6; i++ {
		sources = append(sources, &stubSource{name: "s", inFlight: &inFlight, maxInFlight: &maxInFlight})
	}
	f := NewFanout(2, sources...)

	_, err := f.Retrieve(context.Background(), nil, true, time.Second)
	require.NoError(t, err)
	assert.LessOrEqual(t, maxInFlight.Load(), int32(2))
}

func TestConsolidateTriesEverySource(t *testing.T) {
	a := &stubSource{name: "a", err: errors.New("locked")}
	b := &stubSource{name: "b"}
	f := NewFanout(1, a, b)

	err := f.Consolidate(context.Background(), nil)
	assert.ErrorContains(t, err, "a: locked")
	assert.Equal(t, int32(1), a.consolidate.Load())
	assert.Equal(t, int32(1), b.consolidate.Load())
	assert.Equal(t, []string{"a", "b"}, f.Sources())
}

func TestEmptyFanout(t *testing.T) {
	f := NewFanout(0)
	got, err := f.Retrieve(context.Background(), nil, true, time.Second)
	assert.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, f.Consolidate(context.Background(), nil))
}
