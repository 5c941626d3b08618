package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all scheduler configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Tick driver
	Cycle CycleConfig `yaml:"cycle"`

	// Admission control
	Attention AttentionConfig `yaml:"attention"`

	// Shared working set
	Workspace WorkspaceConfig `yaml:"workspace"`

	// Load monitor
	Bottleneck BottleneckConfig `yaml:"bottleneck"`

	// SPEAK/SILENCE/DEFER gate
	Communication CommunicationConfig `yaml:"communication"`

	// Emergency override
	Interruption InterruptionConfig `yaml:"interruption"`

	// Perception inbox
	Perception PerceptionConfig `yaml:"perception"`

	// Memory collaborators
	Memory MemoryConfig `yaml:"memory"`

	// Goal-competition resources
	Resources ResourcesConfig `yaml:"resources"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "cogsched",
		Version: "0.3.0",

		Cycle: CycleConfig{
			TargetPeriod: "100ms",
			OutputBuffer: 16,
		},

		Attention: AttentionConfig{
			Budget:       100,
			AffectMode:   AffectModeAdditive,
			AffectWeight: 0.1,
		},

		Workspace: WorkspaceConfig{
			MaxPercepts:      50,
			PerceptTTLCycles: 10,
		},

		Bottleneck: BottleneckConfig{
			WorkspaceOverloadThreshold:  20,
			SlowdownFactor:              2.0,
			ResourceExhaustionThreshold: 0.9,
			CycleTarget:                 "100ms",
			PersistenceCycles:           3,
			MemoryLagThreshold:          "500ms",
			MemoryLagStage:              "memory_consolidation",
			BaselineWindow:              100,
			BaselineMinSamples:          10,
			LoadHistory:                 100,
			HighLoad:                    0.8,
			HighSeverity:                0.7,
		},

		Communication: CommunicationConfig{
			SpeakThreshold:       0.3,
			SilenceThreshold:     -0.2,
			DeferMinDrive:        0.3,
			DeferMinInhibition:   0.3,
			DeferDuration:        "30s",
			MaxDeferred:          10,
			MaxDeferAttempts:     3,
			HistorySize:          100,
			BottleneckInhibition: 0.5,
		},

		Interruption: InterruptionConfig{
			UrgencyThreshold:           0.85,
			Cooldown:                   "60s",
			MaxHistory:                 20,
			InsightComplexityThreshold: 20,
		},

		Perception: PerceptionConfig{
			MaxQueueSize:   100,
			MaxPerPriority: 30,
			HighWaterMark:  0.7,
		},

		Memory: MemoryConfig{
			FastMode:             true,
			RetrievalTimeout:     "50ms",
			ConsolidationTimeout: "500ms",
			Parallelism:          4,
		},

		Resources: ResourcesConfig{
			MaxMemoryMB:  1024,
			GoalCapacity: 10,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("COGSCHED_CYCLE_TARGET"); v != "" {
		c.Cycle.TargetPeriod = v
		c.Bottleneck.CycleTarget = v
	}
	if v := os.Getenv("COGSCHED_ATTENTION_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Attention.Budget = n
		}
	}
	if v := os.Getenv("COGSCHED_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("COGSCHED_DEBUG"); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			c.Logging.DebugMode = true
		case "0", "false", "no", "off":
			c.Logging.DebugMode = false
		}
	}
}

// parseDuration returns the parsed duration or def when s is empty or invalid.
// Validate reports invalid strings; accessors never fail.
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
