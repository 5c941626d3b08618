package config

import "cogsched/internal/logging"

// LoggingConfig configures the logging facade.
type LoggingConfig struct {
	Level      string          `yaml:"level"`      // debug, info, warn, error
	Format     string          `yaml:"format"`     // json, console
	DebugMode  bool            `yaml:"debug_mode"` // Master switch; off means no output at all
	Categories map[string]bool `yaml:"categories"` // Per-category switches; absent means on
}

// Options converts c into the form logging.Initialize takes.
func (c LoggingConfig) Options() logging.Options {
	return logging.Options{
		DebugMode:  c.DebugMode,
		Level:      c.Level,
		Format:     c.Format,
		Categories: c.Categories,
	}
}

// IsCategoryEnabled answers what logging.IsCategoryEnabled would once c
// is installed.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if !c.DebugMode {
		return false
	}
	enabled, ok := c.Categories[category]
	return !ok || enabled
}
