// Package communication arbitrates between the urge to speak and the
// reasons for restraint. Every evaluation yields exactly one of SPEAK,
// SILENCE or DEFER; deferred intents are re-run through the same policy
// once their reconsideration time arrives.
package communication

import (
	"fmt"
	"math"
	"time"

	"cogsched/internal/types"
)

// Decision is the outcome of one evaluation.
type Decision string

const (
	Speak   Decision = "speak"
	Silence Decision = "silence"
	Defer   Decision = "defer"
)

// Result describes one decision and the pressures behind it.
type Result struct {
	ID              string
	Decision        Decision
	Reason          string
	Confidence      float64
	DriveLevel      float64
	InhibitionLevel float64
	NetPressure     float64
	DeferUntil      time.Time                // Set for DEFER only
	Urge            *types.CommunicationUrge // Basis urge, if any
	DecidedAt       time.Time
	FromDeferred    bool // Produced by reconsidering a deferred entry

	// Reconsidered holds the results of deferred entries drained before
	// this (fresh) decision was made.
	Reconsidered []Result
}

func (r Result) String() string {
	return fmt.Sprintf("%s (net=%.2f drive=%.2f inhib=%.2f conf=%.2f): %s",
		r.Decision, r.NetPressure, r.DriveLevel, r.InhibitionLevel, r.Confidence, r.Reason)
}

// Spoken returns the result that should be voiced: the fresh decision when
// it is SPEAK, otherwise the first reconsidered SPEAK.
func (r Result) Spoken() (Result, bool) {
	if r.Decision == Speak {
		return r, true
	}
	for _, rr := range r.Reconsidered {
		if rr.Decision == Speak {
			return rr, true
		}
	}
	return Result{}, false
}

// Aggregator folds intensities or strengths in [0,1] into one level.
type Aggregator func(levels []float64) float64

// SaturatingSum combines levels as independent probabilities:
// 1 - prod(1 - x). Adding a signal never lowers the level and the result
// stays in [0,1].
func SaturatingSum(levels []float64) float64 {
	rest := 1.0
	for _, l := range levels {
		rest *= 1 - clamp01(l)
	}
	return clamp01(1 - rest)
}

// Max returns the strongest level.
func Max(levels []float64) float64 {
	m := 0.0
	for _, l := range levels {
		m = math.Max(m, clamp01(l))
	}
	return m
}

// Mean returns the average level, 0 for none.
func Mean(levels []float64) float64 {
	if len(levels) == 0 {
		return 0
	}
	sum := 0.0
	for _, l := range levels {
		sum += clamp01(l)
	}
	return sum / float64(len(levels))
}

// topUrge picks the highest-priority urge, breaking ties on intensity and
// then on input order.
func topUrge(urges []types.CommunicationUrge) *types.CommunicationUrge {
	if len(urges) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(urges); i++ {
		u, b := urges[i], urges[best]
		if u.Priority > b.Priority || (u.Priority == b.Priority && u.Intensity > b.Intensity) {
			best = i
		}
	}
	top := urges[best]
	return &top
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
