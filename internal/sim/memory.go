package sim

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"cogsched/internal/logging"
	"cogsched/internal/retrieval"
	"cogsched/internal/types"
)

// Store is an in-memory long-term store usable as a retrieval.Source.
// Consolidation copies matching workspace percepts in; retrieval hands the
// most recent ones back as memory percepts.
type Store struct {
	name     string
	capacity int
	latency  time.Duration
	keep     func(p *types.Percept) bool

	mu    sync.Mutex
	items []types.Percept
	seen  map[string]bool
}

var _ retrieval.Source = (*Store)(nil)

// NewEpisodicStore remembers what the user said.
func NewEpisodicStore(capacity int, latency time.Duration) *Store {
	return newStore("episodic", capacity, latency, func(p *types.Percept) bool {
		return p.Modality == types.ModalityText
	})
}

// NewSemanticStore remembers tool results and self-observations.
func NewSemanticStore(capacity int, latency time.Duration) *Store {
	return newStore("semantic", capacity, latency, func(p *types.Percept) bool {
		return p.Modality == types.ModalityTool || p.MetaString(types.MetaType) == types.TypeSelfModel
	})
}

func newStore(name string, capacity int, latency time.Duration, keep func(p *types.Percept) bool) *Store {
	if capacity <= 0 {
		capacity = 100
	}
	return &Store{name: name, capacity: capacity, latency: latency, keep: keep, seen: make(map[string]bool)}
}

// Name implements retrieval.Source.
func (s *Store) Name() string { return s.name }

// Len returns how many memories are held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Retrieve returns up to two memories in fast mode and five otherwise,
// newest first, skipping anything already in the workspace.
func (s *Store) Retrieve(ctx context.Context, snap *types.WorkspaceSnapshot, fastMode bool) ([]types.Percept, error) {
	limit, delay := 5, s.latency
	if fastMode {
		limit, delay = 2, s.latency/2
	}
	if err := sleep(ctx, delay); err != nil {
		return nil, err
	}

	present := make(map[string]bool, snap.PerceptCount())
	if snap != nil {
		for _, p := range snap.Percepts {
			present[p.ID] = true
			if origin := p.MetaString("recalled_from"); origin != "" {
				present[origin] = true
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Percept
	for i := len(s.items) - 1; i >= 0 && len(out) < limit; i-- {
		item := s.items[i]
		if present[item.ID] {
			continue
		}
		m := item.Clone()
		m.ID = uuid.NewString()
		m.Modality = types.ModalityMemory
		m.Salience = item.Salience * 0.8
		m.Score = 0
		m.SetMeta(types.MetaType, types.TypeMemoryRecalled)
		m.SetMeta("recalled_from", item.ID)
		out = append(out, m)
	}
	return out, nil
}

// Consolidate stores new matching percepts, evicting the oldest past
// capacity.
func (s *Store) Consolidate(ctx context.Context, snap *types.WorkspaceSnapshot) error {
	if err := sleep(ctx, s.latency); err != nil {
		return err
	}
	if snap == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for i := range snap.Percepts {
		p := &snap.Percepts[i]
		if s.seen[p.ID] || !s.keep(p) {
			continue
		}
		s.seen[p.ID] = true
		s.items = append(s.items, p.Clone())
		added++
	}
	if over := len(s.items) - s.capacity; over > 0 {
		for _, old := range s.items[:over] {
			delete(s.seen, old.ID)
		}
		s.items = append([]types.Percept(nil), s.items[over:]...)
	}
	if added > 0 {
		logging.MemoryDebug("%s: consolidated %d percepts (%d held)", s.name, added, len(s.items))
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
