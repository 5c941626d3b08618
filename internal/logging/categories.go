package logging

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// BootDebug logs debug to the boot category
func BootDebug(format string, args ...interface{}) {
	Get(CategoryBoot).Debug(format, args...)
}

// BootWarn logs warning to the boot category
func BootWarn(format string, args ...interface{}) {
	Get(CategoryBoot).Warn(format, args...)
}

// BootError logs error to the boot category
func BootError(format string, args ...interface{}) {
	Get(CategoryBoot).Error(format, args...)
}

// Cycle logs to the cycle category
func Cycle(format string, args ...interface{}) {
	Get(CategoryCycle).Info(format, args...)
}

// CycleDebug logs debug to the cycle category
func CycleDebug(format string, args ...interface{}) {
	Get(CategoryCycle).Debug(format, args...)
}

// CycleWarn logs warning to the cycle category
func CycleWarn(format string, args ...interface{}) {
	Get(CategoryCycle).Warn(format, args...)
}

// CycleError logs error to the cycle category
func CycleError(format string, args ...interface{}) {
	Get(CategoryCycle).Error(format, args...)
}

// Perception logs to the perception category
func Perception(format string, args ...interface{}) {
	Get(CategoryPerception).Info(format, args...)
}

// PerceptionDebug logs debug to the perception category
func PerceptionDebug(format string, args ...interface{}) {
	Get(CategoryPerception).Debug(format, args...)
}

// PerceptionWarn logs warning to the perception category
func PerceptionWarn(format string, args ...interface{}) {
	Get(CategoryPerception).Warn(format, args...)
}

// PerceptionError logs error to the perception category
func PerceptionError(format string, args ...interface{}) {
	Get(CategoryPerception).Error(format, args...)
}

// Memory logs to the memory category
func Memory(format string, args ...interface{}) {
	Get(CategoryMemory).Info(format, args...)
}

// MemoryDebug logs debug to the memory category
func MemoryDebug(format string, args ...interface{}) {
	Get(CategoryMemory).Debug(format, args...)
}

// MemoryWarn logs warning to the memory category
func MemoryWarn(format string, args ...interface{}) {
	Get(CategoryMemory).Warn(format, args...)
}

// MemoryError logs error to the memory category
func MemoryError(format string, args ...interface{}) {
	Get(CategoryMemory).Error(format, args...)
}

// Attention logs to the attention category
func Attention(format string, args ...interface{}) {
	Get(CategoryAttention).Info(format, args...)
}

// AttentionDebug logs debug to the attention category
func AttentionDebug(format string, args ...interface{}) {
	Get(CategoryAttention).Debug(format, args...)
}

// AttentionWarn logs warning to the attention category
func AttentionWarn(format string, args ...interface{}) {
	Get(CategoryAttention).Warn(format, args...)
}

// AttentionError logs error to the attention category
func AttentionError(format string, args ...interface{}) {
	Get(CategoryAttention).Error(format, args...)
}

// Affect logs to the affect category
func Affect(format string, args ...interface{}) {
	Get(CategoryAffect).Info(format, args...)
}

// AffectDebug logs debug to the affect category
func AffectDebug(format string, args ...interface{}) {
	Get(CategoryAffect).Debug(format, args...)
}

// AffectWarn logs warning to the affect category
func AffectWarn(format string, args ...interface{}) {
	Get(CategoryAffect).Warn(format, args...)
}

// AffectError logs error to the affect category
func AffectError(format string, args ...interface{}) {
	Get(CategoryAffect).Error(format, args...)
}

// Action logs to the action category
func Action(format string, args ...interface{}) {
	Get(CategoryAction).Info(format, args...)
}

// ActionDebug logs debug to the action category
func ActionDebug(format string, args ...interface{}) {
	Get(CategoryAction).Debug(format, args...)
}

// ActionWarn logs warning to the action category
func ActionWarn(format string, args ...interface{}) {
	Get(CategoryAction).Warn(format, args...)
}

// ActionError logs error to the action category
func ActionError(format string, args ...interface{}) {
	Get(CategoryAction).Error(format, args...)
}

// Metacognition logs to the metacognition category
func Metacognition(format string, args ...interface{}) {
	Get(CategoryMetacognition).Info(format, args...)
}

// MetacognitionDebug logs debug to the metacognition category
func MetacognitionDebug(format string, args ...interface{}) {
	Get(CategoryMetacognition).Debug(format, args...)
}

// MetacognitionWarn logs warning to the metacognition category
func MetacognitionWarn(format string, args ...interface{}) {
	Get(CategoryMetacognition).Warn(format, args...)
}

// MetacognitionError logs error to the metacognition category
func MetacognitionError(format string, args ...interface{}) {
	Get(CategoryMetacognition).Error(format, args...)
}

// Bottleneck logs to the bottleneck category
func Bottleneck(format string, args ...interface{}) {
	Get(CategoryBottleneck).Info(format, args...)
}

// BottleneckDebug logs debug to the bottleneck category
func BottleneckDebug(format string, args ...interface{}) {
	Get(CategoryBottleneck).Debug(format, args...)
}

// BottleneckWarn logs warning to the bottleneck category
func BottleneckWarn(format string, args ...interface{}) {
	Get(CategoryBottleneck).Warn(format, args...)
}

// BottleneckError logs error to the bottleneck category
func BottleneckError(format string, args ...interface{}) {
	Get(CategoryBottleneck).Error(format, args...)
}

// Communication logs to the communication category
func Communication(format string, args ...interface{}) {
	Get(CategoryCommunication).Info(format, args...)
}

// CommunicationDebug logs debug to the communication category
func CommunicationDebug(format string, args ...interface{}) {
	Get(CategoryCommunication).Debug(format, args...)
}

// CommunicationWarn logs warning to the communication category
func CommunicationWarn(format string, args ...interface{}) {
	Get(CategoryCommunication).Warn(format, args...)
}

// CommunicationError logs error to the communication category
func CommunicationError(format string, args ...interface{}) {
	Get(CategoryCommunication).Error(format, args...)
}

// Interruption logs to the interruption category
func Interruption(format string, args ...interface{}) {
	Get(CategoryInterruption).Info(format, args...)
}

// InterruptionDebug logs debug to the interruption category
func InterruptionDebug(format string, args ...interface{}) {
	Get(CategoryInterruption).Debug(format, args...)
}

// InterruptionWarn logs warning to the interruption category
func InterruptionWarn(format string, args ...interface{}) {
	Get(CategoryInterruption).Warn(format, args...)
}

// InterruptionError logs error to the interruption category
func InterruptionError(format string, args ...interface{}) {
	Get(CategoryInterruption).Error(format, args...)
}
