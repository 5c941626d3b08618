package core

import (
	"context"
	"errors"
	"time"

	"cogsched/internal/logging"
	"cogsched/internal/types"
)

// ErrAlreadyRunning is returned when a second tick loop is started.
var ErrAlreadyRunning = errors.New("scheduler already running")

// Run ticks at the configured period until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	return s.RunCycles(ctx, 0)
}

// RunCycles runs n ticks at the configured period, or until ctx is done
// when n <= 0. The rate is fixed: a tick that overruns the period is
// followed immediately by the next one, nothing is skipped. It returns
// ctx.Err() if cancelled.
func (s *Scheduler) RunCycles(ctx context.Context, n int) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	logging.Cycle("tick loop started: period=%s cycles=%d", s.config.CyclePeriod, n)
	defer func() { logging.Cycle("tick loop stopped after cycle %d", s.Cycle()) }()

	for i := 0; n <= 0 || i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := s.clock.Now()
		report := s.ExecuteCycle(ctx)
		if report.Cancelled {
			return ctx.Err()
		}
		if n > 0 && i == n-1 {
			break
		}

		wait := s.config.CyclePeriod - s.clock.Now().Sub(start)
		if wait <= 0 {
			if wait < 0 {
				s.overran(report, -wait)
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(wait):
		}
	}
	return nil
}

func (s *Scheduler) overran(r *CycleReport, by time.Duration) {
	s.overruns.Add(1)
	logging.CycleWarn("cycle %d overran its period by %s", r.Cycle, by)
	logging.AuditWithCategory(logging.CategoryCycle).Log(logging.AuditEvent{
		EventType: logging.AuditCycleOverrun,
		Cycle:     r.Cycle,
		Reason:    "tick exceeded target period",
		Value:     float64(by) / float64(time.Millisecond),
	})
}

// AwaitOutput waits up to timeout for the next spoken output. It returns
// false when nothing was said in time; silence is a valid outcome.
func (s *Scheduler) AwaitOutput(ctx context.Context, timeout time.Duration) (types.Output, bool) {
	select {
	case out := <-s.outputs:
		return out, true
	default:
	}
	if timeout <= 0 {
		return types.Output{}, false
	}
	select {
	case out := <-s.outputs:
		return out, true
	case <-s.clock.After(timeout):
		return types.Output{}, false
	case <-ctx.Done():
		return types.Output{}, false
	}
}
