// Package perception provides the bounded, priority-laned inbox that
// producers push percepts into and the tick loop drains once per cycle.
package perception

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"cogsched/internal/clock"
	"cogsched/internal/logging"
	"cogsched/internal/types"
)

// =============================================================================
// PERCEPTION INBOX WITH BACKPRESSURE
// =============================================================================
//
// Producers submit from any goroutine; Submit never blocks. When the inbox
// fills, low-priority input is refused first so that safety-relevant
// percepts still get through.

// Priority selects an inbox lane.
type Priority int

const (
	PriorityLow      Priority = 0 // Background sensor chatter
	PriorityNormal   Priority = 1 // Regular input
	PriorityHigh     Priority = 2 // Direct user input
	PriorityCritical Priority = 3 // Safety alerts

	numLanes = 4
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return fmt.Sprintf("unknown(%d)", p)
	}
}

var (
	// ErrInboxFull is returned when the inbox cannot accept a percept.
	ErrInboxFull = errors.New("perception inbox is full")

	// ErrInboxClosed is returned after Close.
	ErrInboxClosed = errors.New("perception inbox is closed")
)

// Config configures the inbox.
type Config struct {
	MaxQueueSize   int     // Max percepts across all lanes
	MaxPerPriority int     // Max percepts per lane
	HighWaterMark  float64 // Utilization at which low-priority input is refused
}

// DefaultConfig returns inbox defaults.
func DefaultConfig() Config {
	return Config{MaxQueueSize: 100, MaxPerPriority: 30, HighWaterMark: 0.7}
}

// BackpressureStatus tells producers how full the inbox is.
type BackpressureStatus struct {
	Depth       int
	Utilization float64
	Accepting   bool
	Reason      string
}

// Inbox implements the scheduler's PerceptionSource.
type Inbox struct {
	config Config
	clock  clock.Clock
	lanes  [numLanes]chan types.Percept

	mu     sync.RWMutex
	closed bool

	submitted atomic.Int64
	drained   atomic.Int64
	rejected  atomic.Int64
}

// NewInbox creates an inbox; zero config fields take defaults.
func NewInbox(cfg Config, clk clock.Clock) *Inbox {
	def := DefaultConfig()
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = def.MaxQueueSize
	}
	if cfg.MaxPerPriority <= 0 {
		cfg.MaxPerPriority = def.MaxPerPriority
	}
	if cfg.HighWaterMark <= 0 || cfg.HighWaterMark > 1 {
		cfg.HighWaterMark = def.HighWaterMark
	}
	in := &Inbox{config: cfg, clock: clock.OrReal(clk)}
	for i := range in.lanes {
		in.lanes[i] = make(chan types.Percept, cfg.MaxPerPriority)
	}
	return in
}

// PriorityFor derives a lane from percept metadata.
func PriorityFor(p types.Percept) Priority {
	switch {
	case p.MetaBool(types.MetaSafetyConcern), p.MetaString(types.MetaType) == types.TypeSafetyAlert:
		return PriorityCritical
	case p.Modality == types.ModalityText:
		return PriorityHigh
	case p.Modality == types.ModalitySensor:
		return PriorityLow
	default:
		return PriorityNormal
	}
}

// Push submits p at the lane chosen by PriorityFor.
func (in *Inbox) Push(p types.Percept) error {
	return in.Submit(p, PriorityFor(p))
}

// Submit queues p at the given priority. It never blocks.
func (in *Inbox) Submit(p types.Percept, pri Priority) error {
	if pri < PriorityLow || pri > PriorityCritical {
		return fmt.Errorf("perception: invalid priority %d", pri)
	}
	in.mu.RLock()
	defer in.mu.RUnlock()
	if in.closed {
		return ErrInboxClosed
	}
	if ok, reason := in.canAccept(pri); !ok {
		in.rejected.Add(1)
		return fmt.Errorf("%w: %s", ErrInboxFull, reason)
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = in.clock.Now()
	}

	select {
	case in.lanes[pri] <- p:
		in.submitted.Add(1)
		return nil
	default:
		in.rejected.Add(1)
		return fmt.Errorf("%w: %s lane full", ErrInboxFull, pri)
	}
}

func (in *Inbox) canAccept(pri Priority) (bool, string) {
	depth := in.Depth()
	util := float64(depth) / float64(in.config.MaxQueueSize)
	switch {
	case depth >= in.config.MaxQueueSize:
		return false, "total capacity reached"
	case len(in.lanes[pri]) >= in.config.MaxPerPriority:
		return false, fmt.Sprintf("%s lane full", pri)
	case util > 0.9 && pri < PriorityCritical:
		return false, "inbox >90% full, only critical percepts accepted"
	case util > in.config.HighWaterMark && pri == PriorityLow:
		return false, fmt.Sprintf("inbox >%.0f%% full, low priority refused", in.config.HighWaterMark*100)
	}
	return true, ""
}

// Drain removes everything queued, highest priority first and FIFO within
// a lane. It never blocks.
func (in *Inbox) Drain() []types.Percept {
	var out []types.Percept
	for pri := PriorityCritical; pri >= PriorityLow; pri-- {
		lane := in.lanes[pri]
		for n := len(lane); n > 0; n-- {
			select {
			case p := <-lane:
				out = append(out, p)
			default:
				n = 0
			}
		}
	}
	if len(out) > 0 {
		in.drained.Add(int64(len(out)))
		logging.PerceptionDebug("drained %d percepts", len(out))
	}
	return out
}

// Depth returns the number of queued percepts.
func (in *Inbox) Depth() int {
	total := 0
	for i := range in.lanes {
		total += len(in.lanes[i])
	}
	return total
}

// Backpressure reports fill level for producers.
func (in *Inbox) Backpressure() BackpressureStatus {
	depth := in.Depth()
	st := BackpressureStatus{
		Depth:       depth,
		Utilization: float64(depth) / float64(in.config.MaxQueueSize),
		Accepting:   true,
	}
	in.mu.RLock()
	closed := in.closed
	in.mu.RUnlock()
	switch {
	case closed:
		st.Accepting, st.Reason = false, "closed"
	case st.Utilization >= 1:
		st.Accepting, st.Reason = false, "inbox full"
	case st.Utilization > in.config.HighWaterMark:
		st.Reason = "above high water mark; low priority refused"
	}
	return st
}

// Close stops accepting new percepts. Already queued percepts can still be
// drained.
func (in *Inbox) Close() {
	in.mu.Lock()
	in.closed = true
	in.mu.Unlock()
}

// Metrics provides observability into the inbox.
type Metrics struct {
	DepthByPriority [numLanes]int
	Submitted       int64
	Drained         int64
	Rejected        int64
}

// Metrics returns lifetime counters and the current lane depths.
func (in *Inbox) Metrics() Metrics {
	m := Metrics{
		Submitted: in.submitted.Load(),
		Drained:   in.drained.Load(),
		Rejected:  in.rejected.Load(),
	}
	for i := range in.lanes {
		m.DepthByPriority[i] = len(in.lanes[i])
	}
	return m
}
