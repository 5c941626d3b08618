package logging

import (
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================
// Audit events record every explicit outcome of the scheduler, including
// non-actions (SILENCE) and rejected overrides, as structured zap entries
// on the "audit" logger.

// AuditEventType defines the type of audit event
type AuditEventType string

const (
	// Communication gate outcomes
	AuditDecisionSpeak   AuditEventType = "decision_speak"
	AuditDecisionSilence AuditEventType = "decision_silence"
	AuditDecisionDefer   AuditEventType = "decision_defer"
	AuditDeferDropped    AuditEventType = "defer_dropped"

	// Interruption system
	AuditInterruptionRecorded AuditEventType = "interruption_recorded"

	// Bottleneck detector transitions
	AuditBottleneckOnset   AuditEventType = "bottleneck_onset"
	AuditBottleneckCleared AuditEventType = "bottleneck_cleared"

	// Cycle executor
	AuditStageError   AuditEventType = "stage_error"
	AuditCycleOverrun AuditEventType = "cycle_overrun"
)

// AuditEvent is a structured audit log entry.
type AuditEvent struct {
	Timestamp time.Time
	EventType AuditEventType
	Category  Category
	Cycle     uint64 // Tick number, 0 when not tied to a tick
	Target    string // Stage, urge or signal the event concerns
	Reason    string
	Value     float64 // Confidence, urgency or load depending on the event
	Fields    map[string]interface{}
}

// AuditLogger writes audit events.
type AuditLogger struct {
	category Category
}

// Audit returns the global audit logger
func Audit() *AuditLogger {
	return &AuditLogger{}
}

// AuditWithCategory scopes the audit logger to a category.
func AuditWithCategory(category Category) *AuditLogger {
	return &AuditLogger{category: category}
}

// Log writes an audit event. Audit entries honour the debug-mode toggle
// but ignore per-category filters.
func (a *AuditLogger) Log(event AuditEvent) {
	mu.RLock()
	enabled := opts.DebugMode
	l := root
	mu.RUnlock()
	if !enabled {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = a.category
	}

	fields := []zap.Field{
		zap.String("event", string(event.EventType)),
		zap.String("cat", string(event.Category)),
		zap.Time("at", event.Timestamp),
	}
	if event.Cycle > 0 {
		fields = append(fields, zap.Uint64("cycle", event.Cycle))
	}
	if event.Target != "" {
		fields = append(fields, zap.String("target", event.Target))
	}
	if event.Reason != "" {
		fields = append(fields, zap.String("reason", event.Reason))
	}
	fields = append(fields, zap.Float64("value", event.Value))
	if len(event.Fields) > 0 {
		fields = append(fields, zap.Any("fields", event.Fields))
	}

	l.Named("audit").Info(string(event.EventType), fields...)
}

// Decision records a communication gate outcome.
func (a *AuditLogger) Decision(eventType AuditEventType, reason string, confidence, netPressure float64) {
	a.Log(AuditEvent{
		EventType: eventType,
		Category:  CategoryCommunication,
		Reason:    reason,
		Value:     confidence,
		Fields:    map[string]interface{}{"net_pressure": netPressure},
	})
}

// Interruption records an interruption the caller acted on.
func (a *AuditLogger) Interruption(reason string, urgency float64, hint string) {
	a.Log(AuditEvent{
		EventType: AuditInterruptionRecorded,
		Category:  CategoryInterruption,
		Target:    reason,
		Reason:    hint,
		Value:     urgency,
	})
}

// StageError records a collaborator failure inside a tick.
func (a *AuditLogger) StageError(cycle uint64, stage string, err error) {
	a.Log(AuditEvent{
		EventType: AuditStageError,
		Category:  CategoryCycle,
		Cycle:     cycle,
		Target:    stage,
		Reason:    err.Error(),
	})
}

// Bottleneck records a transition of the aggregate bottleneck flag.
func (a *AuditLogger) Bottleneck(onset bool, recommendation string, load float64) {
	eventType := AuditBottleneckCleared
	if onset {
		eventType = AuditBottleneckOnset
	}
	a.Log(AuditEvent{
		EventType: eventType,
		Category:  CategoryBottleneck,
		Reason:    recommendation,
		Value:     load,
	})
}
