// Package logging provides config-driven categorised logging for the scheduler.
// Every category is a named child of a single zap root logger.
// Logging is silent until Initialize (or SetLogger) enables debug mode.
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/subsystem
type Category string

const (
	CategoryBoot          Category = "boot"          // Construction, config
	CategoryCycle         Category = "cycle"         // Tick driver, stage failures
	CategoryPerception    Category = "perception"    // Inbox drain, producer backpressure
	CategoryMemory        Category = "memory"        // Retrieval and consolidation
	CategoryAttention     Category = "attention"     // Admission control
	CategoryAffect        Category = "affect"        // Affect updates
	CategoryAction        Category = "action"        // Action decision/dispatch
	CategoryMetacognition Category = "metacognition" // Introspective percepts
	CategoryBottleneck    Category = "bottleneck"    // Load monitor
	CategoryCommunication Category = "communication" // SPEAK/SILENCE/DEFER gate
	CategoryInterruption  Category = "interruption"  // Emergency override
)

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	DebugMode  bool
	Level      string // debug, info, warn, error
	Format     string // json, console
	Categories map[string]bool
}

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	opts    Options
	loggers = make(map[Category]*Logger)
	nop     = zap.NewNop().Sugar()
)

// Initialize builds the root zap logger from opts. With DebugMode off the
// package stays a no-op, matching production behaviour.
func Initialize(o Options) error {
	if !o.DebugMode {
		SetLogger(zap.NewNop(), o)
		return nil
	}

	level, err := zap.ParseAtomicLevel(levelOrDefault(o.Level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", o.Level, err)
	}

	var cfg zap.Config
	if o.Format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = level
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	SetLogger(l, o)
	Get(CategoryBoot).Info("logging initialised: level=%s format=%s categories=%d",
		levelOrDefault(o.Level), o.Format, len(o.Categories))
	return nil
}

// SetLogger installs l as the root logger. Tests use this to attach
// zaptest or observer cores.
func SetLogger(l *zap.Logger, o Options) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	defer mu.Unlock()
	root = l
	opts = o
	loggers = make(map[Category]*Logger)
}

// Root returns the installed zap logger for callers that want typed fields.
func Root() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// Sync flushes buffered entries. Call at shutdown.
func Sync() {
	_ = Root().Sync()
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabledLocked(category)
}

func categoryEnabledLocked(category Category) bool {
	if !opts.DebugMode {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) the logger for a category. Disabled categories
// get a no-op logger.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	l := &Logger{category: category, sugar: nop}
	if categoryEnabledLocked(category) {
		l.sugar = root.Named(string(category)).Sugar()
	}
	loggers[category] = l
	return l
}

// With returns a child logger carrying structured key/value context.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) { l.sugar.Infof(format, args...) }

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) { l.sugar.Warnf(format, args...) }

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

func levelOrDefault(level string) string {
	switch level {
	case "":
		return "info"
	case "warning":
		return "warn"
	default:
		return level
	}
}
