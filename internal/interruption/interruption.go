// Package interruption decides whether something is urgent enough to break
// turn-taking while the peer is still speaking.
//
// Evaluate has no side effects. The caller invokes Record only when it
// actually interrupts; only Record starts the cooldown.
package interruption

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"cogsched/internal/clock"
	"cogsched/internal/logging"
	"cogsched/internal/types"
)

// Reason classifies why an interruption is warranted.
type Reason string

const (
	ReasonSafety           Reason = "safety"
	ReasonValueConflict    Reason = "value_conflict"
	ReasonCriticalInsight  Reason = "critical_insight"
	ReasonEmotionalUrgency Reason = "emotional_urgency"
	ReasonCorrection       Reason = "correction"
)

// Request is a transient proposal to interrupt.
type Request struct {
	ID          string
	Reason      Reason
	Urgency     float64
	ContentHint string
	CreatedAt   time.Time
}

// Record is one interruption the caller acted on.
type Record struct {
	At          time.Time
	Reason      Reason
	Urgency     float64
	ContentHint string
}

// Config configures the System. Out-of-range values are clamped, not
// rejected: the threshold to [0.5,1], the cooldown to at least 10s and the
// history to at least one entry.
type Config struct {
	UrgencyThreshold           float64
	Cooldown                   time.Duration
	MaxHistory                 int
	InsightComplexityThreshold int // Introspective percepts above this size count as critical
}

// DefaultConfig returns the interruption defaults.
func DefaultConfig() Config {
	return Config{
		UrgencyThreshold:           0.85,
		Cooldown:                   60 * time.Second,
		MaxHistory:                 20,
		InsightComplexityThreshold: 20,
	}
}

const minCooldown = 10 * time.Second

// System evaluates interruption rules and tracks the cooldown.
type System struct {
	config Config
	clock  clock.Clock
	rules  []rule

	mu      sync.Mutex
	last    time.Time
	count   uint64
	history []Record
}

// NewSystem clamps cfg into range and returns a System.
func NewSystem(cfg Config, clk clock.Clock) *System {
	switch {
	case math.IsNaN(cfg.UrgencyThreshold):
		cfg.UrgencyThreshold = 1
	case cfg.UrgencyThreshold < 0.5:
		cfg.UrgencyThreshold = 0.5
	case cfg.UrgencyThreshold > 1:
		cfg.UrgencyThreshold = 1
	}
	if cfg.Cooldown < minCooldown {
		cfg.Cooldown = minCooldown
	}
	if cfg.MaxHistory < 1 {
		cfg.MaxHistory = 1
	}
	if cfg.InsightComplexityThreshold <= 0 {
		cfg.InsightComplexityThreshold = DefaultConfig().InsightComplexityThreshold
	}
	s := &System{config: cfg, clock: clock.OrReal(clk)}
	s.rules = defaultRules(cfg)
	logging.InterruptionDebug("interruption system ready: threshold=%.2f cooldown=%s", cfg.UrgencyThreshold, cfg.Cooldown)
	return s
}

// Config returns the effective (clamped) configuration.
func (s *System) Config() Config { return s.config }

// Evaluate returns a request when the peer is speaking, the cooldown has
// elapsed and the first matching rule clears the urgency threshold. Rules
// are tried in priority order; a later rule never overrides an earlier
// match even if its urgency is higher.
func (s *System) Evaluate(snap *types.WorkspaceSnapshot, affect types.AffectState, urges []types.CommunicationUrge, peerSpeaking bool) (Request, bool) {
	if !peerSpeaking {
		return Request{}, false
	}
	now := s.clock.Now()
	if s.onCooldown(now) {
		return Request{}, false
	}

	in := input{snap: snap, affect: affect, urges: urges, now: now}
	for _, r := range s.rules {
		hint, ok := r.match(in)
		if !ok {
			continue
		}
		if r.urgency < s.config.UrgencyThreshold {
			logging.InterruptionDebug("%s matched but urgency %.2f is below threshold %.2f", r.reason, r.urgency, s.config.UrgencyThreshold)
			return Request{}, false
		}
		return Request{
			ID:          uuid.NewString(),
			Reason:      r.reason,
			Urgency:     r.urgency,
			ContentHint: hint,
			CreatedAt:   now,
		}, true
	}
	return Request{}, false
}

// Record marks req as acted upon: it starts the cooldown, bumps the counter
// and appends to the bounded history.
func (s *System) Record(req Request) {
	now := s.clock.Now()

	s.mu.Lock()
	s.last = now
	s.count++
	s.history = append(s.history, Record{At: now, Reason: req.Reason, Urgency: req.Urgency, ContentHint: req.ContentHint})
	if len(s.history) > s.config.MaxHistory {
		s.history = s.history[len(s.history)-s.config.MaxHistory:]
	}
	total := s.count
	s.mu.Unlock()

	logging.Interruption("interruption recorded: reason=%s urgency=%.2f total=%d", req.Reason, req.Urgency, total)
	logging.Audit().Interruption(string(req.Reason), req.Urgency, req.ContentHint)
}

func (s *System) onCooldown(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.last.IsZero() && now.Sub(s.last) < s.config.Cooldown
}

// OnCooldown reports whether an interruption was recorded within the
// cooldown window.
func (s *System) OnCooldown() bool { return s.onCooldown(s.clock.Now()) }

// History returns the recorded interruptions, oldest first.
func (s *System) History() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.history...)
}

// Summary is a point-in-time view of the interruption system.
type Summary struct {
	Count            uint64        `yaml:"interruption_count"`
	LastInterruption time.Time     `yaml:"last_interruption"`
	OnCooldown       bool          `yaml:"on_cooldown"`
	UrgencyThreshold float64       `yaml:"urgency_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
	Recent           []Record      `yaml:"recent_interruptions"`
}

// Summary returns counters and the last five records.
func (s *System) Summary() Summary {
	now := s.clock.Now()
	on := s.onCooldown(now)

	s.mu.Lock()
	defer s.mu.Unlock()
	recent := s.history
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	return Summary{
		Count:            s.count,
		LastInterruption: s.last,
		OnCooldown:       on,
		UrgencyThreshold: s.config.UrgencyThreshold,
		Cooldown:         s.config.Cooldown,
		Recent:           append([]Record(nil), recent...),
	}
}

func (r Request) String() string {
	return fmt.Sprintf("%s(%.2f): %s", r.Reason, r.Urgency, r.ContentHint)
}
