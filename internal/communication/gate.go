package communication

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"cogsched/internal/bottleneck"
	"cogsched/internal/config"
	"cogsched/internal/logging"
	"cogsched/internal/types"
)

// Config holds gate thresholds. Nil aggregators default to SaturatingSum.
type Config struct {
	SpeakThreshold       float64
	SilenceThreshold     float64
	DeferMinDrive        float64
	DeferMinInhibition   float64
	DeferDuration        time.Duration
	MaxDeferred          int
	MaxDeferAttempts     int
	HistorySize          int
	BottleneckInhibition float64 // Strength of the overload inhibition

	DriveAggregator      Aggregator
	InhibitionAggregator Aggregator
}

// DefaultConfig returns the gate defaults.
func DefaultConfig() Config {
	return Config{
		SpeakThreshold:       0.3,
		SilenceThreshold:     -0.2,
		DeferMinDrive:        0.3,
		DeferMinInhibition:   0.3,
		DeferDuration:        30 * time.Second,
		MaxDeferred:          10,
		MaxDeferAttempts:     3,
		HistorySize:          100,
		BottleneckInhibition: 0.5,
	}
}

func (c Config) validate() error {
	switch {
	case !(c.SilenceThreshold < c.SpeakThreshold):
		return config.Invalid("communication.silence_threshold", "%v must be below speak_threshold %v", c.SilenceThreshold, c.SpeakThreshold)
	case c.DeferMinDrive < 0 || c.DeferMinDrive > 1:
		return config.Invalid("communication.defer_min_drive", "must be in [0,1], got %v", c.DeferMinDrive)
	case c.DeferMinInhibition < 0 || c.DeferMinInhibition > 1:
		return config.Invalid("communication.defer_min_inhibition", "must be in [0,1], got %v", c.DeferMinInhibition)
	case c.DeferDuration <= 0:
		return config.Invalid("communication.defer_duration", "must be positive")
	case c.MaxDeferred < 1:
		return config.Invalid("communication.max_deferred", "must be >= 1")
	case c.MaxDeferAttempts < 1:
		return config.Invalid("communication.max_defer_attempts", "must be >= 1")
	case c.HistorySize < 1:
		return config.Invalid("communication.history_size", "must be >= 1")
	case c.BottleneckInhibition < 0 || c.BottleneckInhibition > 1:
		return config.Invalid("communication.bottleneck_inhibition", "must be in [0,1]")
	}
	return nil
}

// DeferredEntry is a postponed decision context.
type DeferredEntry struct {
	ID           string
	Urges        []types.CommunicationUrge
	Reason       string
	DeferredAt   time.Time
	ReconsiderAt time.Time
	Attempts     int // Evaluations that ended in DEFER
}

func (e DeferredEntry) basisID() string {
	if top := topUrge(e.Urges); top != nil {
		return top.ID
	}
	return ""
}

// Gate is the SPEAK/SILENCE/DEFER arbiter. Apart from the deferred queue,
// history and counters it is a pure function of its inputs; time is
// always supplied by the caller.
type Gate struct {
	config Config

	mu        sync.Mutex
	deferred  []DeferredEntry // FIFO, oldest first
	history   []Result        // Ring buffer
	histNext  int
	counts    map[Decision]uint64
	dropped   uint64
	exhausted uint64
	lastEval  time.Time
}

// NewGate validates cfg and returns a Gate with an empty queue.
func NewGate(cfg Config) (*Gate, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.DriveAggregator == nil {
		cfg.DriveAggregator = SaturatingSum
	}
	if cfg.InhibitionAggregator == nil {
		cfg.InhibitionAggregator = SaturatingSum
	}
	return &Gate{
		config:  cfg,
		history: make([]Result, 0, cfg.HistorySize),
		counts:  make(map[Decision]uint64),
	}, nil
}

// Evaluate drains ready deferred entries through the policy, then makes a
// fresh decision over the active urges and inhibitions. state may be nil.
func (g *Gate) Evaluate(urges []types.CommunicationUrge, inhibitions []types.InhibitionFactor, state *bottleneck.State, now time.Time) Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastEval = now

	activeUrges := filterUrges(urges, now)
	activeInhib := filterInhibitions(inhibitions, now)
	if state.ShouldInhibitCommunication() {
		activeInhib = append(activeInhib, types.InhibitionFactor{
			Type:      types.InhibitionCognitiveOverload,
			Strength:  g.config.BottleneckInhibition,
			Reason:    fmt.Sprintf("processing overloaded (load %.0f%%)", state.OverallLoad*100),
			CreatedAt: now,
		})
	}

	reconsidered := g.drainLocked(activeInhib, now)

	fresh := g.decide(activeUrges, activeInhib, now)
	if fresh.Decision == Defer {
		fresh = g.deferLocked(fresh, activeUrges, now)
	}
	g.recordLocked(fresh)
	fresh.Reconsidered = reconsidered
	return fresh
}

// decide applies the four-step policy. It has no side effects.
func (g *Gate) decide(urges []types.CommunicationUrge, inhibitions []types.InhibitionFactor, now time.Time) Result {
	intensities := make([]float64, len(urges))
	for i, u := range urges {
		intensities[i] = u.Intensity
	}
	strengths := make([]float64, len(inhibitions))
	for i, f := range inhibitions {
		strengths[i] = f.Strength
	}
	drive := clamp01(g.config.DriveAggregator(intensities))
	inhib := clamp01(g.config.InhibitionAggregator(strengths))
	net := drive - inhib

	r := Result{
		ID:              uuid.NewString(),
		DriveLevel:      drive,
		InhibitionLevel: inhib,
		NetPressure:     net,
		DecidedAt:       now,
		Urge:            topUrge(urges),
	}
	switch {
	case net >= g.config.SpeakThreshold && r.Urge != nil:
		r.Decision = Speak
		r.Confidence = clamp01((net + r.Urge.Intensity) / 2)
		r.Reason = fmt.Sprintf("%s drive outweighs restraint", r.Urge.DriveType)
	case net <= g.config.SilenceThreshold:
		r.Decision = Silence
		r.Confidence = clamp01(-net)
		r.Reason = "restraint outweighs drive: " + strongestReason(inhibitions)
	case drive >= g.config.DeferMinDrive && inhib >= g.config.DeferMinInhibition:
		r.Decision = Defer
		r.Confidence = 0.5
		r.Reason = "drive and restraint both significant: " + strongestReason(inhibitions)
	default:
		r.Decision = Silence
		r.Confidence = 0.5
		r.Reason = "insufficient pressure either way"
	}
	return r
}

// drainLocked re-runs the policy once on every entry whose reconsideration
// time has arrived. Entries that defer again are re-queued after the pass.
func (g *Gate) drainLocked(inhibitions []types.InhibitionFactor, now time.Time) []Result {
	var ready, waiting []DeferredEntry
	for _, e := range g.deferred {
		if !now.Before(e.ReconsiderAt) {
			ready = append(ready, e)
		} else {
			waiting = append(waiting, e)
		}
	}
	if len(ready) == 0 {
		return nil
	}
	g.deferred = waiting

	var requeue []DeferredEntry
	out := make([]Result, 0, len(ready))
	for _, e := range ready {
		urges := filterUrges(e.Urges, now)
		var r Result
		if len(urges) == 0 {
			r = Result{ID: uuid.NewString(), Decision: Silence, Reason: "deferred urges expired", Confidence: 0.5, DecidedAt: now}
		} else {
			r = g.decide(urges, inhibitions, now)
		}
		r.FromDeferred = true
		if r.Decision == Defer {
			e.Attempts++
			if e.Attempts >= g.config.MaxDeferAttempts {
				g.exhausted++
				r.Decision = Silence
				r.Reason = fmt.Sprintf("deferred %d times; letting it go", e.Attempts)
				r.DeferUntil = time.Time{}
			} else {
				e.Urges = urges
				e.ReconsiderAt = now.Add(g.config.DeferDuration)
				r.DeferUntil = e.ReconsiderAt
				requeue = append(requeue, e)
			}
		}
		g.recordLocked(r)
		out = append(out, r)
	}
	for _, e := range requeue {
		g.enqueueLocked(e)
	}
	logging.CommunicationDebug("reconsidered %d deferred entries, %d re-deferred", len(ready), len(requeue))
	return out
}

// deferLocked queues the context behind a fresh DEFER. A deferral for an
// urge that is already queued reuses the existing entry.
func (g *Gate) deferLocked(r Result, urges []types.CommunicationUrge, now time.Time) Result {
	basis := ""
	if r.Urge != nil {
		basis = r.Urge.ID
	}
	if basis != "" {
		for _, e := range g.deferred {
			if e.basisID() == basis {
				r.DeferUntil = e.ReconsiderAt
				return r
			}
		}
	}
	e := DeferredEntry{
		ID:           uuid.NewString(),
		Urges:        append([]types.CommunicationUrge(nil), urges...),
		Reason:       r.Reason,
		DeferredAt:   now,
		ReconsiderAt: now.Add(g.config.DeferDuration),
		Attempts:     1,
	}
	if e.Attempts >= g.config.MaxDeferAttempts {
		// A limit of one allows no retries at all.
		g.exhausted++
		r.Decision = Silence
		r.Reason = "deferral disabled; " + r.Reason
		return r
	}
	g.enqueueLocked(e)
	r.DeferUntil = e.ReconsiderAt
	return r
}

func (g *Gate) enqueueLocked(e DeferredEntry) {
	if len(g.deferred) >= g.config.MaxDeferred {
		oldest := g.deferred[0]
		g.deferred = g.deferred[1:]
		g.dropped++
		logging.CommunicationWarn("deferred queue full (%d), dropping oldest entry %s", g.config.MaxDeferred, oldest.ID)
		logging.AuditWithCategory(logging.CategoryCommunication).Log(logging.AuditEvent{
			EventType: logging.AuditDeferDropped,
			Target:    oldest.ID,
			Reason:    oldest.Reason,
		})
	}
	g.deferred = append(g.deferred, e)
}

func (g *Gate) recordLocked(r Result) {
	g.counts[r.Decision]++
	r.Reconsidered = nil
	if len(g.history) < g.config.HistorySize {
		g.history = append(g.history, r)
	} else {
		g.history[g.histNext] = r
	}
	g.histNext = (g.histNext + 1) % g.config.HistorySize

	event := map[Decision]logging.AuditEventType{
		Speak:   logging.AuditDecisionSpeak,
		Silence: logging.AuditDecisionSilence,
		Defer:   logging.AuditDecisionDefer,
	}[r.Decision]
	logging.Audit().Decision(event, r.Reason, r.Confidence, r.NetPressure)
	logging.CommunicationDebug("decision %s", r)
}

func filterUrges(urges []types.CommunicationUrge, now time.Time) []types.CommunicationUrge {
	out := make([]types.CommunicationUrge, 0, len(urges))
	for _, u := range urges {
		if u.Active(now) {
			out = append(out, u)
		}
	}
	return out
}

func filterInhibitions(factors []types.InhibitionFactor, now time.Time) []types.InhibitionFactor {
	out := make([]types.InhibitionFactor, 0, len(factors)+1)
	for _, f := range factors {
		if f.Active(now) {
			out = append(out, f)
		}
	}
	return out
}

func strongestReason(factors []types.InhibitionFactor) string {
	if len(factors) == 0 {
		return "no inhibitions"
	}
	best := factors[0]
	for _, f := range factors[1:] {
		if f.Strength > best.Strength {
			best = f
		}
	}
	if best.Reason != "" {
		return best.Reason
	}
	return string(best.Type)
}
