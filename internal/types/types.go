// Package types provides the shared data model of the cognitive scheduler.
// This package exists to break import cycles between core, attention,
// communication and interruption. Types here are plain data with no
// behaviour beyond small accessors.
package types

import "time"

// =============================================================================
// PERCEPTS
// =============================================================================

// Modality tags where a percept came from.
type Modality string

const (
	ModalityText          Modality = "text"
	ModalityImage         Modality = "image"
	ModalityAudio         Modality = "audio"
	ModalitySensor        Modality = "sensor"
	ModalityIntrospection Modality = "introspection" // Meta-cognitive observations
	ModalityMemory        Modality = "memory"        // Retrieved long-term memories
	ModalityTool          Modality = "tool"          // Tool call results
)

// Well-known metadata keys read by the scheduler.
const (
	MetaType          = "type"           // Percept subtype (see Type* constants)
	MetaSafetyConcern = "safety_concern" // bool; marks a safety-relevant percept
	MetaSeverity      = "severity"       // float; value-conflict severity
	MetaResolved      = "resolved"       // bool; value conflict already handled
	MetaSource        = "source"         // Producer name
	MetaGoalID        = "goal_id"        // string; goal an UPDATE_GOAL action completes
)

// Well-known values for MetaType.
const (
	TypeSafetyAlert    = "safety_alert"
	TypeValueConflict  = "value_conflict"
	TypeOverwhelm      = "cognitive_overwhelm"
	TypeSelfModel      = "self_model_update"
	TypeToolResult     = "tool_result"
	TypeMemoryRecalled = "memory_recalled"
)

// Percept is a discrete unit of sensory or internal input competing for a
// place in the workspace.
type Percept struct {
	ID         string
	Modality   Modality
	Content    interface{} // Opaque to the scheduler
	Embedding  []float64   // Optional fixed-dimension vector
	Complexity int         // Cost in attention units
	Salience   float64     // Producer-supplied salience in [0,1]
	Timestamp  time.Time
	Metadata   map[string]interface{}

	// Score is the attention score computed at admission time.
	Score float64
}

// Cost returns the attention cost of admitting the percept. Negative
// complexities are treated as free.
func (p *Percept) Cost() int {
	if p.Complexity < 0 {
		return 0
	}
	return p.Complexity
}

// Clone returns a deep copy of the percept's mutable fields.
func (p Percept) Clone() Percept {
	if p.Embedding != nil {
		p.Embedding = append([]float64(nil), p.Embedding...)
	}
	if p.Metadata != nil {
		md := make(map[string]interface{}, len(p.Metadata))
		for k, v := range p.Metadata {
			md[k] = v
		}
		p.Metadata = md
	}
	return p
}

// SetMeta sets a metadata key, allocating the map on first use.
func (p *Percept) SetMeta(key string, value interface{}) {
	if p.Metadata == nil {
		p.Metadata = make(map[string]interface{})
	}
	p.Metadata[key] = value
}

// MetaString returns a metadata value as a string ("" if absent).
func (p *Percept) MetaString(key string) string {
	v, ok := p.Metadata[key]
	if !ok {
		return ""
	}
	return ExtractString(v)
}

// MetaFloat returns a metadata value as float64.
func (p *Percept) MetaFloat(key string) (float64, bool) {
	v, ok := p.Metadata[key]
	if !ok {
		return 0, false
	}
	return ExtractFloat64(v)
}

// MetaBool returns a metadata value as bool; absent or non-boolean values are false.
func (p *Percept) MetaBool(key string) bool {
	v, ok := p.Metadata[key]
	if !ok {
		return false
	}
	b, _ := ExtractBool(v)
	return b
}

// =============================================================================
// AFFECT
// =============================================================================

// AffectState is a Valence-Arousal-Dominance triple. Valence is in [-1,1],
// arousal and dominance in [0,1].
type AffectState struct {
	Valence   float64 `yaml:"valence"`
	Arousal   float64 `yaml:"arousal"`
	Dominance float64 `yaml:"dominance"`
}

// NeutralAffect is the resting affect state.
var NeutralAffect = AffectState{Valence: 0, Arousal: 0, Dominance: 0.5}

// =============================================================================
// GOALS
// =============================================================================

// GoalType classifies workspace goals.
type GoalType string

const (
	GoalRespondToUser   GoalType = "respond_to_user"
	GoalRetrieveMemory  GoalType = "retrieve_memory"
	GoalSpeakAutonomous GoalType = "speak_autonomous"
	GoalIntrospect      GoalType = "introspect"
	GoalLearn           GoalType = "learn"
)

// Goal is a unit of intent held in the workspace.
type Goal struct {
	ID          string
	Type        GoalType
	Description string
	Priority    float64
	Metadata    map[string]interface{}
	CreatedAt   time.Time
}
