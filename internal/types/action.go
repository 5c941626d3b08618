package types

import (
	"fmt"
	"time"
)

// =============================================================================
// ACTIONS
// =============================================================================

// ActionType tags an Action. Every action is one explicit variant; the
// executor dispatches on the tag, never on the dynamic type.
type ActionType string

const (
	ActionSpeak           ActionType = "speak"
	ActionSpeakAutonomous ActionType = "speak_autonomous"
	ActionToolCall        ActionType = "tool_call"
	ActionWait            ActionType = "wait"
	ActionNoOp            ActionType = "no_op"
	ActionCommitMemory    ActionType = "commit_memory"
	ActionRetrieveMemory  ActionType = "retrieve_memory"
	ActionIntrospect      ActionType = "introspect"
	ActionUpdateGoal      ActionType = "update_goal"
)

// IsSpeech reports whether the action produces outward speech.
func (t ActionType) IsSpeech() bool {
	return t == ActionSpeak || t == ActionSpeakAutonomous
}

// Action is a decision emitted by the ActionDecider.
type Action struct {
	Type     ActionType
	Priority float64 // Higher runs first within a tick
	Reason   string
	Metadata map[string]interface{}
}

func (a Action) String() string {
	return fmt.Sprintf("%s(p=%.2f)", a.Type, a.Priority)
}

// ActionResult is what an ActionExecutor reports back for one action.
type ActionResult struct {
	Text     string    // Generated utterance for speech actions
	Percepts []Percept // Tool output fed back as next-tick input
}

// Output is one utterance produced by a speech action.
type Output struct {
	ID        string
	Type      ActionType
	Text      string
	Cycle     uint64
	Affect    AffectState
	EmittedAt time.Time
	Metadata  map[string]interface{}
}
