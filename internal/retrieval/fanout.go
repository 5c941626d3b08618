// Package retrieval fans a memory query out to several memory stores and
// merges what comes back within a deadline.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cogsched/internal/logging"
	"cogsched/internal/types"
)

// Source is one memory store. Implementations must return promptly once
// ctx is done.
type Source interface {
	Name() string
	Retrieve(ctx context.Context, snap *types.WorkspaceSnapshot, fastMode bool) ([]types.Percept, error)
	Consolidate(ctx context.Context, snap *types.WorkspaceSnapshot) error
}

// Fanout queries every Source concurrently with bounded parallelism. A
// failing source never hides the results of the others.
type Fanout struct {
	sources     []Source
	parallelism int
}

// NewFanout returns a Fanout over sources. parallelism <= 0 means one
// goroutine per source.
func NewFanout(parallelism int, sources ...Source) *Fanout {
	if parallelism <= 0 {
		parallelism = len(sources)
	}
	return &Fanout{sources: sources, parallelism: parallelism}
}

// Retrieve gathers memories from all sources within timeout. Percepts are
// returned in source order and tagged with their source. The error, if
// any, joins the individual source failures; partial results are still
// returned. Callers that need all-or-nothing recall may discard them when
// the error is non-nil.
func (f *Fanout) Retrieve(ctx context.Context, snap *types.WorkspaceSnapshot, fastMode bool, timeout time.Duration) ([]types.Percept, error) {
	if len(f.sources) == 0 {
		return nil, nil
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	results := make([][]types.Percept, len(f.sources))
	var mu sync.Mutex
	var errs []error

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(f.parallelism)
	for i, src := range f.sources {
		i, src := i, src
		eg.Go(func() error {
			ps, err := src.Retrieve(egCtx, snap, fastMode)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
				mu.Unlock()
			}
			for j := range ps {
				if ps[j].Modality == "" {
					ps[j].Modality = types.ModalityMemory
				}
				if _, ok := ps[j].Metadata[types.MetaSource]; !ok {
					ps[j].SetMeta(types.MetaSource, src.Name())
				}
			}
			results[i] = ps
			return nil
		})
	}
	_ = eg.Wait()

	var out []types.Percept
	for _, ps := range results {
		out = append(out, ps...)
	}
	if len(errs) > 0 {
		logging.MemoryWarn("retrieval: %d/%d sources failed", len(errs), len(f.sources))
	}
	logging.MemoryDebug("retrieval: %d memories from %d sources", len(out), len(f.sources))
	return out, errors.Join(errs...)
}

// Consolidate asks every source to consolidate snap. All sources are tried;
// failures are joined.
func (f *Fanout) Consolidate(ctx context.Context, snap *types.WorkspaceSnapshot) error {
	var mu sync.Mutex
	var errs []error

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(max(f.parallelism, 1))
	for _, src := range f.sources {
		src := src
		eg.Go(func() error {
			if err := src.Consolidate(egCtx, snap); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()
	return errors.Join(errs...)
}

// Sources returns the configured source names.
func (f *Fanout) Sources() []string {
	names := make([]string, len(f.sources))
	for i, s := range f.sources {
		names[i] = s.Name()
	}
	return names
}
