package types

import "time"

// =============================================================================
// COMMUNICATION DRIVES AND INHIBITIONS
// =============================================================================

// DriveType classifies an internal urge to communicate.
type DriveType string

const (
	DriveInsight        DriveType = "insight"
	DriveQuestion       DriveType = "question"
	DriveEmotional      DriveType = "emotional"
	DriveSocial         DriveType = "social"
	DriveGoal           DriveType = "goal"
	DriveCorrection     DriveType = "correction"
	DriveAcknowledgment DriveType = "acknowledgment"
)

// CommunicationUrge is an external input pushing toward speech.
type CommunicationUrge struct {
	ID        string
	DriveType DriveType
	Intensity float64 // [0,1]
	Priority  float64 // [0,1]; the gate bases SPEAK on the highest-priority urge
	Content   string
	Reason    string
	CreatedAt time.Time
	ExpiresAt time.Time // Zero means never
}

// Active reports whether the urge is still live at now.
func (u CommunicationUrge) Active(now time.Time) bool {
	return u.ExpiresAt.IsZero() || now.Before(u.ExpiresAt)
}

// InhibitionType classifies a reason for restraint.
type InhibitionType string

const (
	InhibitionLowValue          InhibitionType = "low_value"
	InhibitionBadTiming         InhibitionType = "bad_timing"
	InhibitionRedundancy        InhibitionType = "redundancy"
	InhibitionRespectSilence    InhibitionType = "respect_silence"
	InhibitionUncertainty       InhibitionType = "uncertainty"
	InhibitionRecentOutput      InhibitionType = "recent_output"
	InhibitionCognitiveOverload InhibitionType = "cognitive_overload"
)

// InhibitionFactor is an external input pushing against speech.
type InhibitionFactor struct {
	Type      InhibitionType
	Strength  float64 // [0,1]
	Reason    string
	CreatedAt time.Time
	ExpiresAt time.Time // Zero means never
}

// Active reports whether the inhibition is still live at now.
func (f InhibitionFactor) Active(now time.Time) bool {
	return f.ExpiresAt.IsZero() || now.Before(f.ExpiresAt)
}
