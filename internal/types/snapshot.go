package types

import "time"

// WorkspaceSnapshot is an immutable view of the workspace published at a
// commit point. Readers must not mutate the slices.
type WorkspaceSnapshot struct {
	Cycle    uint64
	Percepts []Percept // Admission order
	Goals    []Goal
	Affect   AffectState
	TakenAt  time.Time
}

// PerceptCount returns the number of admitted percepts.
func (s *WorkspaceSnapshot) PerceptCount() int {
	if s == nil {
		return 0
	}
	return len(s.Percepts)
}

// HasGoal reports whether any goal of type t is present.
func (s *WorkspaceSnapshot) HasGoal(t GoalType) bool {
	if s == nil {
		return false
	}
	for _, g := range s.Goals {
		if g.Type == t {
			return true
		}
	}
	return false
}

// WithPercepts returns a copy of s with extra appended after the existing
// percepts. The receiver is left untouched.
func (s *WorkspaceSnapshot) WithPercepts(extra []Percept) *WorkspaceSnapshot {
	out := &WorkspaceSnapshot{
		Cycle:   s.Cycle,
		Goals:   s.Goals,
		Affect:  s.Affect,
		TakenAt: s.TakenAt,
	}
	out.Percepts = make([]Percept, 0, len(s.Percepts)+len(extra))
	out.Percepts = append(out.Percepts, s.Percepts...)
	out.Percepts = append(out.Percepts, extra...)
	return out
}
