package core

import (
	"sync"
	"sync/atomic"
	"time"

	"cogsched/internal/attention"
	"cogsched/internal/bottleneck"
	"cogsched/internal/communication"
	"cogsched/internal/interruption"
	"cogsched/internal/logging"
	"cogsched/internal/types"
)

// CycleReport describes one tick.
type CycleReport struct {
	ID        string
	Cycle     uint64
	StartedAt time.Time
	Duration  time.Duration
	Timings   types.CycleTiming // One entry per stage, zero for skipped stages

	Attention    attention.Trace
	Actions      []types.ActionType // Dispatch order
	Outputs      int
	Decision     *communication.Result
	Interruption *interruption.Request // Set when a request cleared the threshold
	Interrupted  bool                  // The handler acted and the request was recorded
	Resources    ResourceSample
	Bottleneck   *bottleneck.State

	Errors    []*StageError
	Cancelled bool
}

// Failed reports whether stage failed during the tick.
func (r *CycleReport) Failed(stage string) bool {
	for _, e := range r.Errors {
		if e.Stage == stage {
			return true
		}
	}
	return false
}

// =============================================================================
// REPORT SUBSCRIPTIONS
// =============================================================================
// Reports fan out to buffered subscriber channels. Publishing never blocks
// the tick loop; a subscriber that falls behind misses reports.

type eventBus struct {
	mu      sync.RWMutex
	subs    []chan CycleReport
	closed  bool
	dropped atomic.Uint64
}

func (b *eventBus) subscribe(buffer int) <-chan CycleReport {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan CycleReport, buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

func (b *eventBus) unsubscribe(ch <-chan CycleReport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub == ch {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(sub)
			return
		}
	}
}

func (b *eventBus) publish(r CycleReport) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		select {
		case sub <- r:
		default:
			if b.dropped.Add(1) == 1 {
				logging.CycleWarn("report subscriber is falling behind, dropping reports")
			}
		}
	}
}

func (b *eventBus) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub)
	}
	b.subs = nil
}

// Subscribe returns a channel receiving a CycleReport after every tick.
// buffer is the channel capacity (at least 1).
func (s *Scheduler) Subscribe(buffer int) <-chan CycleReport {
	return s.events.subscribe(buffer)
}

// Unsubscribe stops delivery to ch and closes it.
func (s *Scheduler) Unsubscribe(ch <-chan CycleReport) {
	s.events.unsubscribe(ch)
}

// Close closes every subscription. The scheduler must not tick afterwards.
func (s *Scheduler) Close() {
	s.events.close()
}
