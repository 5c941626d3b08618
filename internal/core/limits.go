package core

import (
	"runtime"
	"sync"

	"cogsched/internal/types"
)

// =============================================================================
// RESOURCE MONITOR
// =============================================================================
// Utilization fed to the bottleneck detector is the larger of heap pressure
// and goal competition. Goals beyond capacity count as waiting consumers.

// ResourceSample is one utilization reading.
type ResourceSample struct {
	Utilization float64 // max(heap/limit, goals/capacity); may exceed 1
	HeapMB      float64
	ActiveGoals int
	Waiting     int
}

// ResourceMonitor samples utilization once per tick.
type ResourceMonitor interface {
	Sample(snap *types.WorkspaceSnapshot) ResourceSample
}

// LimitsConfig holds the capacity parameters.
type LimitsConfig struct {
	MaxMemoryMB  int // Heap ceiling; 0 disables the memory term
	GoalCapacity int // Goals pursued at once; 0 disables the goal term
}

// DefaultLimitsConfig returns production defaults matching config.go.
func DefaultLimitsConfig() LimitsConfig {
	return LimitsConfig{
		MaxMemoryMB:  1024,
		GoalCapacity: 10,
	}
}

// GoalLimits is the built-in ResourceMonitor.
type GoalLimits struct {
	config   LimitsConfig
	heapSize func() uint64 // bytes

	mu       sync.Mutex
	samples  uint64
	last     ResourceSample
	peakUtil float64
}

// NewGoalLimits creates a monitor reading the Go heap.
func NewGoalLimits(cfg LimitsConfig) *GoalLimits {
	return &GoalLimits{config: cfg, heapSize: heapAlloc}
}

func heapAlloc() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	// Alloc is bytes of allocated heap objects
	return m.Alloc
}

// Sample implements ResourceMonitor.
func (l *GoalLimits) Sample(snap *types.WorkspaceSnapshot) ResourceSample {
	s := ResourceSample{HeapMB: float64(l.heapSize()) / 1024 / 1024}

	var memUtil float64
	if l.config.MaxMemoryMB > 0 {
		memUtil = s.HeapMB / float64(l.config.MaxMemoryMB)
	}

	if snap != nil {
		s.ActiveGoals = len(snap.Goals)
	}
	var goalUtil float64
	if l.config.GoalCapacity > 0 {
		goalUtil = float64(s.ActiveGoals) / float64(l.config.GoalCapacity)
		if s.ActiveGoals > l.config.GoalCapacity {
			s.Waiting = s.ActiveGoals - l.config.GoalCapacity
			s.ActiveGoals = l.config.GoalCapacity
		}
	}
	s.Utilization = max(memUtil, goalUtil)

	l.mu.Lock()
	l.samples++
	l.last = s
	l.peakUtil = max(l.peakUtil, s.Utilization)
	l.mu.Unlock()
	return s
}

// LimitsStatus summarizes monitor readings.
type LimitsStatus struct {
	Samples         uint64  `yaml:"samples"`
	Utilization     float64 `yaml:"utilization"`
	PeakUtilization float64 `yaml:"peak_utilization"`
	HeapMB          float64 `yaml:"heap_mb"`
	MemoryLimitMB   int     `yaml:"memory_limit_mb"`
	ActiveGoals     int     `yaml:"active_goals"`
	WaitingGoals    int     `yaml:"waiting_goals"`
	GoalCapacity    int     `yaml:"goal_capacity"`
}

// Status returns the latest reading and the peak seen so far.
func (l *GoalLimits) Status() LimitsStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LimitsStatus{
		Samples:         l.samples,
		Utilization:     l.last.Utilization,
		PeakUtilization: l.peakUtil,
		HeapMB:          l.last.HeapMB,
		MemoryLimitMB:   l.config.MaxMemoryMB,
		ActiveGoals:     l.last.ActiveGoals,
		WaitingGoals:    l.last.Waiting,
		GoalCapacity:    l.config.GoalCapacity,
	}
}
