package sim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cogsched/internal/clock"
	"cogsched/internal/interruption"
	"cogsched/internal/logging"
	"cogsched/internal/types"
)

// =============================================================================
// DECIDER
// =============================================================================

// Decider is a rule-based ActionDecider. It answers each user utterance
// once, reaches for a tool or memory when the wording asks for one, and
// voices whatever the communication gate has approved.
type Decider struct {
	mu       sync.Mutex
	answered map[string]bool
}

// NewDecider returns an empty Decider.
func NewDecider() *Decider {
	return &Decider{answered: make(map[string]bool)}
}

// Decide implements core.ActionDecider.
func (d *Decider) Decide(_ context.Context, snap *types.WorkspaceSnapshot) ([]types.Action, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var actions []types.Action
	live := make(map[string]bool, snap.PerceptCount())
	var selfModel bool
	for i := range snap.Percepts {
		p := &snap.Percepts[i]
		live[p.ID] = true
		if p.MetaString(types.MetaType) == types.TypeSelfModel {
			selfModel = true
		}
		if p.Modality != types.ModalityText || d.answered[p.ID] {
			continue
		}
		d.answered[p.ID] = true
		text := types.ExtractString(p.Content)
		lower := strings.ToLower(text)

		actions = append(actions, types.Action{
			Type:     types.ActionSpeak,
			Priority: 0.9,
			Reason:   "user spoke",
			Metadata: map[string]interface{}{"prompt": text, "in_reply_to": p.ID},
		})
		if strings.Contains(lower, "weather") {
			actions = append(actions, types.Action{
				Type:     types.ActionToolCall,
				Priority: 0.7,
				Reason:   "needs a lookup",
				Metadata: map[string]interface{}{"tool": "weather", "query": text},
			})
		}
		if strings.Contains(lower, "remember") {
			actions = append(actions, types.Action{
				Type:     types.ActionRetrieveMemory,
				Priority: 0.6,
				Reason:   "asked to recall",
				Metadata: map[string]interface{}{"query": text},
			})
		}
	}
	// Forget percepts that have left the workspace.
	for id := range d.answered {
		if !live[id] {
			delete(d.answered, id)
		}
	}

	for _, g := range snap.Goals {
		switch g.Type {
		case types.GoalSpeakAutonomous:
			actions = append(actions, types.Action{
				Type:     types.ActionSpeakAutonomous,
				Priority: 0.5 + 0.4*g.Priority,
				Reason:   "gate approved speech",
				Metadata: map[string]interface{}{"text": g.Description, types.MetaGoalID: g.ID},
			})
		case types.GoalIntrospect:
			if selfModel {
				actions = append(actions, types.Action{
					Type:     types.ActionUpdateGoal,
					Priority: 0.4,
					Reason:   "introspection done",
					Metadata: map[string]interface{}{types.MetaGoalID: g.ID},
				})
			}
		}
	}

	if snap.Affect.Arousal > 0.7 && !snap.HasGoal(types.GoalIntrospect) {
		actions = append(actions, types.Action{Type: types.ActionIntrospect, Priority: 0.3, Reason: "highly aroused"})
	}
	if snap.PerceptCount() > 10 {
		actions = append(actions, types.Action{Type: types.ActionCommitMemory, Priority: 0.2, Reason: "workspace is busy"})
	}
	if len(actions) == 0 {
		actions = append(actions, types.Action{Type: types.ActionNoOp})
	}
	return actions, nil
}

// =============================================================================
// EXECUTOR
// =============================================================================

// Executor carries out actions with canned results.
type Executor struct {
	clock       clock.Clock
	toolResults bool

	mu        sync.Mutex
	lastSpoke time.Time
	executed  map[types.ActionType]int
}

// NewExecutor returns an Executor. With toolResults off, tool calls return
// nothing.
func NewExecutor(clk clock.Clock, toolResults bool) *Executor {
	return &Executor{clock: clock.OrReal(clk), toolResults: toolResults, executed: make(map[types.ActionType]int)}
}

// Execute implements core.ActionExecutor.
func (e *Executor) Execute(ctx context.Context, a types.Action, _ *types.WorkspaceSnapshot) (types.ActionResult, error) {
	if err := ctx.Err(); err != nil {
		return types.ActionResult{}, err
	}
	e.mu.Lock()
	e.executed[a.Type]++
	if a.Type.IsSpeech() {
		e.lastSpoke = e.clock.Now()
	}
	e.mu.Unlock()

	switch a.Type {
	case types.ActionSpeak:
		return types.ActionResult{Text: reply(types.ExtractString(a.Metadata["prompt"]))}, nil
	case types.ActionSpeakAutonomous:
		return types.ActionResult{Text: types.ExtractString(a.Metadata["text"])}, nil
	case types.ActionToolCall:
		if !e.toolResults {
			return types.ActionResult{}, nil
		}
		tool := types.ExtractString(a.Metadata["tool"])
		if tool == "" {
			return types.ActionResult{}, errors.New("tool call without a tool name")
		}
		p := types.Percept{
			ID:         uuid.NewString(),
			Content:    fmt.Sprintf("%s: mild, 18C, light breeze", tool),
			Complexity: 4,
			Salience:   0.6,
			Timestamp:  e.clock.Now(),
		}
		p.SetMeta(types.MetaSource, "tool/"+tool)
		return types.ActionResult{Percepts: []types.Percept{p}}, nil
	case types.ActionCommitMemory:
		logging.ActionDebug("commit_memory requested: %s", a.Reason)
		return types.ActionResult{}, nil
	}
	return types.ActionResult{}, nil
}

// SpokeWithin reports whether speech was produced in the last d.
func (e *Executor) SpokeWithin(d time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.lastSpoke.IsZero() && e.clock.Now().Sub(e.lastSpoke) < d
}

// Executed returns per-type execution counts.
func (e *Executor) Executed() map[types.ActionType]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[types.ActionType]int, len(e.executed))
	for k, v := range e.executed {
		out[k] = v
	}
	return out
}

func reply(prompt string) string {
	lower := strings.ToLower(prompt)
	switch {
	case prompt == "":
		return "Mm."
	case strings.HasSuffix(prompt, "?"):
		return fmt.Sprintf("Good question. Let me think about %q.", strings.TrimSuffix(prompt, "?"))
	case strings.Contains(lower, "wrong"):
		return "You may be right, let me check that."
	default:
		return fmt.Sprintf("I heard: %s", prompt)
	}
}

// =============================================================================
// META-COGNITION
// =============================================================================

// Meta observes the workspace. It reports a self-model update every few
// ticks or when introspection is requested, and flags user corrections as
// value conflicts.
type Meta struct {
	every int

	mu      sync.Mutex
	ticks   int
	flagged map[string]bool
}

// NewMeta returns a Meta reporting every n ticks; n <= 0 reports only on
// request.
func NewMeta(n int) *Meta {
	return &Meta{every: n, flagged: make(map[string]bool)}
}

// Observe implements core.MetaCognition.
func (m *Meta) Observe(_ context.Context, snap *types.WorkspaceSnapshot) ([]types.Percept, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks++

	var out []types.Percept
	if (m.every > 0 && m.ticks%m.every == 0) || snap.HasGoal(types.GoalIntrospect) {
		p := types.Percept{
			ID:         uuid.NewString(),
			Modality:   types.ModalityIntrospection,
			Content:    fmt.Sprintf("holding %d percepts and %d goals", snap.PerceptCount(), len(snap.Goals)),
			Complexity: 4,
			Salience:   clamp(0.3+float64(snap.PerceptCount())/50, 0, 1),
			Timestamp:  snap.TakenAt,
		}
		p.SetMeta(types.MetaType, types.TypeSelfModel)
		out = append(out, p)
	}

	for i := range snap.Percepts {
		src := &snap.Percepts[i]
		if src.Modality != types.ModalityText || m.flagged[src.ID] {
			continue
		}
		if !strings.Contains(strings.ToLower(types.ExtractString(src.Content)), "wrong") {
			continue
		}
		m.flagged[src.ID] = true
		p := types.Percept{
			ID:         uuid.NewString(),
			Modality:   types.ModalityIntrospection,
			Content:    "user disputes something I said",
			Complexity: 3,
			Salience:   0.8,
			Timestamp:  snap.TakenAt,
		}
		p.SetMeta(types.MetaType, types.TypeValueConflict)
		p.SetMeta(types.MetaSeverity, 0.85)
		out = append(out, p)
		logging.MetacognitionDebug("value conflict raised for %s", src.ID)
	}
	return out, nil
}

// =============================================================================
// DRIVES AND INHIBITIONS
// =============================================================================

// Drives turns workspace content into communication urges. Each source
// percept produces at most one urge.
type Drives struct {
	quietTicks int // Ticks without user input before a social urge
	ttl        time.Duration

	mu    sync.Mutex
	quiet int
	urged map[string]bool
}

// NewDrives returns Drives. Urges expire ttl after creation.
func NewDrives(quietTicks int, ttl time.Duration) *Drives {
	if quietTicks <= 0 {
		quietTicks = 50
	}
	return &Drives{quietTicks: quietTicks, ttl: ttl, urged: make(map[string]bool)}
}

// ComputeDrives implements core.DriveSource.
func (d *Drives) ComputeDrives(snap *types.WorkspaceSnapshot, affect types.AffectState) []types.CommunicationUrge {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := snap.TakenAt
	urge := func(dt types.DriveType, intensity, priority float64, content string) types.CommunicationUrge {
		u := types.CommunicationUrge{
			ID:        uuid.NewString(),
			DriveType: dt,
			Intensity: intensity,
			Priority:  priority,
			Content:   content,
			CreatedAt: now,
		}
		if d.ttl > 0 {
			u.ExpiresAt = now.Add(d.ttl)
		}
		return u
	}

	var urges []types.CommunicationUrge
	heard := false
	for i := range snap.Percepts {
		p := &snap.Percepts[i]
		if p.Modality == types.ModalityText {
			heard = true
		}
		if d.urged[p.ID] {
			continue
		}
		switch {
		case p.MetaString(types.MetaType) == types.TypeValueConflict:
			sev, _ := p.MetaFloat(types.MetaSeverity)
			d.urged[p.ID] = true
			urges = append(urges, urge(types.DriveCorrection, sev, 0.8, "I should double check what I told you."))
		case p.Modality == types.ModalityIntrospection && p.Salience > 0.6:
			d.urged[p.ID] = true
			urges = append(urges, urge(types.DriveInsight, p.Salience, 0.6, "I noticed: "+types.ExtractString(p.Content)))
		case p.Modality == types.ModalityTool:
			d.urged[p.ID] = true
			urges = append(urges, urge(types.DriveAcknowledgment, 0.5, 0.5, "Here is what I found. "+types.ExtractString(p.Content)))
		}
	}

	if heard {
		d.quiet = 0
	} else {
		d.quiet++
	}
	if d.quiet >= d.quietTicks {
		d.quiet = 0
		urges = append(urges, urge(types.DriveSocial, 0.4, 0.3, "It has been quiet. Anything on your mind?"))
	}
	if affect.Valence < -0.3 && affect.Arousal > 0.6 {
		urges = append(urges, urge(types.DriveEmotional, affect.Arousal, 0.7, "I'm a little uneasy about this."))
	}
	if len(d.urged) > 1000 {
		d.urged = make(map[string]bool)
	}
	return urges
}

// Inhibitions supplies reasons to hold back.
type Inhibitions struct {
	exec   *Executor
	recent time.Duration
}

// NewInhibitions returns Inhibitions that consider speech by exec within
// recent to be too fresh to follow up on.
func NewInhibitions(exec *Executor, recent time.Duration) *Inhibitions {
	return &Inhibitions{exec: exec, recent: recent}
}

// ComputeInhibitions implements core.InhibitionSource.
func (in *Inhibitions) ComputeInhibitions(snap *types.WorkspaceSnapshot, urges []types.CommunicationUrge, affect types.AffectState) []types.InhibitionFactor {
	var out []types.InhibitionFactor
	if in.exec != nil && in.exec.SpokeWithin(in.recent) {
		out = append(out, types.InhibitionFactor{Type: types.InhibitionRecentOutput, Strength: 0.4, Reason: "just spoke"})
	}
	if snap.HasGoal(types.GoalSpeakAutonomous) {
		out = append(out, types.InhibitionFactor{Type: types.InhibitionRedundancy, Strength: 0.5, Reason: "already about to speak"})
	}
	if affect.Dominance < 0.4 {
		out = append(out, types.InhibitionFactor{Type: types.InhibitionUncertainty, Strength: 0.3, Reason: "feeling unsure"})
	}
	if len(urges) > 0 && snap.PerceptCount() == 0 {
		out = append(out, types.InhibitionFactor{Type: types.InhibitionLowValue, Strength: 0.2, Reason: "nothing to anchor on"})
	}
	return out
}

// =============================================================================
// INTERRUPTIONS
// =============================================================================

// InterruptLog accepts every interruption and remembers it.
type InterruptLog struct {
	mu       sync.Mutex
	requests []interruption.Request
}

// Interrupt implements core.InterruptHandler.
func (l *InterruptLog) Interrupt(_ context.Context, req interruption.Request) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, req)
	logging.Interruption("interrupting: %s", req)
	return true
}

// Requests returns the accepted interruptions.
func (l *InterruptLog) Requests() []interruption.Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]interruption.Request(nil), l.requests...)
}
