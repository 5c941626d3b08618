// Package sim provides scripted collaborators that let the scheduler run
// without real perception, memory stores or language models. Everything is
// driven by a seeded random source so runs are reproducible.
package sim

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/google/uuid"

	"cogsched/internal/clock"
	"cogsched/internal/logging"
	"cogsched/internal/perception"
	"cogsched/internal/types"
)

// Options tunes the simulated environment. Rates are per-tick probabilities.
type Options struct {
	Seed          int64   `yaml:"seed"`
	UtteranceRate float64 `yaml:"utterance_rate"`
	SensorRate    float64 `yaml:"sensor_rate"`
	SafetyRate    float64 `yaml:"safety_rate"`
	PeerTalkRate  float64 `yaml:"peer_talk_rate"`
	MetaEvery     int     `yaml:"meta_every"` // Ticks between self-model observations
	ToolResults   bool    `yaml:"tool_results"`
}

// DefaultOptions returns a lively but not overwhelming environment.
func DefaultOptions() Options {
	return Options{
		Seed:          1,
		UtteranceRate: 0.15,
		SensorRate:    0.5,
		SafetyRate:    0.01,
		PeerTalkRate:  0.2,
		MetaEvery:     10,
		ToolResults:   true,
	}
}

var utterances = []string{
	"hello there",
	"what is the weather like today?",
	"can you remember what we discussed yesterday",
	"I think the plan needs another look",
	"that is wrong, the meeting was on tuesday",
	"tell me something interesting",
	"how are you feeling?",
	"remember to water the plants",
}

var sensors = []string{"temperature", "ambient_noise", "light_level", "motion"}

// World produces percepts into a perception inbox and drains it once per
// tick, so it can stand in directly as the scheduler's PerceptionSource.
type World struct {
	opts  Options
	inbox *perception.Inbox
	clock clock.Clock

	mu       sync.Mutex
	rng      *rand.Rand
	ticks    int
	speaking bool
	rejected int
}

// NewWorld returns a World feeding inbox.
func NewWorld(opts Options, inbox *perception.Inbox, clk clock.Clock) *World {
	return &World{
		opts:  opts,
		inbox: inbox,
		clock: clock.OrReal(clk),
		rng:   rand.New(rand.NewSource(opts.Seed)),
	}
}

// Drain advances the environment by one step and returns everything the
// inbox holds.
func (w *World) Drain() []types.Percept {
	w.step()
	return w.inbox.Drain()
}

// PeerSpeaking reports whether the simulated user is mid-utterance.
func (w *World) PeerSpeaking() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.speaking
}

// Say injects a user utterance outside the random schedule.
func (w *World) Say(text string) error {
	return w.push(utterance(text, w.clock))
}

// Rejected returns how many generated percepts the inbox refused.
func (w *World) Rejected() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rejected
}

func (w *World) step() {
	w.mu.Lock()
	w.ticks++
	var batch []types.Percept
	if w.rng.Float64() < w.opts.UtteranceRate {
		batch = append(batch, utterance(utterances[w.rng.Intn(len(utterances))], w.clock))
	}
	if w.rng.Float64() < w.opts.SensorRate {
		batch = append(batch, w.sensorLocked())
	}
	if w.rng.Float64() < w.opts.SafetyRate {
		batch = append(batch, safetyAlert(w.clock))
	}
	w.speaking = w.rng.Float64() < w.opts.PeerTalkRate
	w.mu.Unlock()

	for _, p := range batch {
		if err := w.push(p); err != nil {
			logging.PerceptionDebug("world: %v", err)
		}
	}
}

func (w *World) push(p types.Percept) error {
	if err := w.inbox.Push(p); err != nil {
		w.mu.Lock()
		w.rejected++
		w.mu.Unlock()
		return err
	}
	return nil
}

func (w *World) sensorLocked() types.Percept {
	name := sensors[w.rng.Intn(len(sensors))]
	value := w.rng.Float64()
	p := types.Percept{
		ID:         uuid.NewString(),
		Modality:   types.ModalitySensor,
		Content:    fmt.Sprintf("%s=%.2f", name, value),
		Embedding:  []float64{value, 1 - value},
		Complexity: 2,
		Salience:   0.1 + 0.3*value,
		Timestamp:  w.clock.Now(),
	}
	p.SetMeta(types.MetaSource, "sensor/"+name)
	return p
}

func utterance(text string, clk clock.Clock) types.Percept {
	p := types.Percept{
		ID:         uuid.NewString(),
		Modality:   types.ModalityText,
		Content:    text,
		Complexity: 5 + len(strings.Fields(text)),
		Salience:   0.7,
		Timestamp:  clk.Now(),
	}
	p.SetMeta(types.MetaSource, "user")
	if strings.HasSuffix(text, "?") {
		p.Salience = 0.85
	}
	return p
}

func safetyAlert(clk clock.Clock) types.Percept {
	p := types.Percept{
		ID:         uuid.NewString(),
		Modality:   types.ModalitySensor,
		Content:    "smoke detected in the kitchen",
		Complexity: 3,
		Salience:   1,
		Timestamp:  clk.Now(),
	}
	p.SetMeta(types.MetaType, types.TypeSafetyAlert)
	p.SetMeta(types.MetaSafetyConcern, true)
	p.SetMeta(types.MetaSource, "sensor/smoke")
	return p
}
