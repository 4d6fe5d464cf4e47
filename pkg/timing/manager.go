// Package timing owns the live tempo configuration of the timeline and the
// frozen snapshots export pipelines schedule against.
//
// The Manager is the single shared-mutation point of the engine: setters
// rebuild a fresh immutable mapper and swap it in atomically, so readers see
// either the fully-old or fully-new mapping, never a partially rebuilt one.
package timing

import (
	"fmt"
	"math"
	"sync"

	"github.com/kagelight/tempocore/pkg/tempomap"
	"github.com/kagelight/tempocore/pkg/timeunits"
)

// Config is the live timing configuration. It is owned exclusively by the
// Manager; setters copy their input and Config() returns a copy, so callers
// never share slices with the manager.
type Config struct {
	TicksPerQuarter int
	GlobalBPM       float64 // used when no tempo map is set
	BeatsPerBar     float64 // bar length for bar-aligned window queries
	Events          []tempomap.ChangeEvent
}

// Window is a bar-aligned span of the timeline in wall-clock seconds,
// half-open [Start, End).
type Window struct {
	Start timeunits.Seconds
	End   timeunits.Seconds
}

// Manager holds the current BPM, tempo map, and tick resolution, and
// re-derives its internal mapper whenever any of them changes. A failed
// rebuild leaves the last-valid configuration untouched.
type Manager struct {
	// setMu serializes setters so concurrent read-modify-write cycles do
	// not drop each other's changes. mu alone guards the swapped state.
	setMu  sync.Mutex
	mu     sync.RWMutex
	cfg    Config
	mapper *tempomap.Mapper
	prof   tempomap.Profiler
}

// NewManager creates a manager at the default 120 BPM, 960 ticks per
// quarter, 4 beats per bar, with no tempo map.
func NewManager() *Manager {
	m, err := NewManagerWithConfig(Config{
		TicksPerQuarter: timeunits.DefaultTicksPerQuarter,
		GlobalBPM:       timeunits.DefaultBPM,
		BeatsPerBar:     timeunits.DefaultBeatsPerBar,
	})
	if err != nil {
		// Defaults are statically valid.
		panic(err)
	}
	return m
}

// NewManagerWithConfig creates a manager from an explicit configuration.
func NewManagerWithConfig(cfg Config) (*Manager, error) {
	if cfg.BeatsPerBar == 0 {
		cfg.BeatsPerBar = timeunits.DefaultBeatsPerBar
	}
	m := &Manager{}
	if err := m.apply(cfg); err != nil {
		return nil, err
	}
	return m, nil
}

// apply validates cfg, rebuilds the mapper, and swaps both in. The swap
// happens only after the rebuild succeeds.
func (m *Manager) apply(cfg Config) error {
	if math.IsNaN(cfg.BeatsPerBar) || math.IsInf(cfg.BeatsPerBar, 0) || cfg.BeatsPerBar <= 0 {
		return fmt.Errorf("beats per bar must be positive and finite, got %v", cfg.BeatsPerBar)
	}

	events := make([]tempomap.ChangeEvent, len(cfg.Events))
	copy(events, cfg.Events)
	cfg.Events = events

	tm, err := tempomap.New(cfg.Events, cfg.GlobalBPM, cfg.TicksPerQuarter)
	if err != nil {
		return err
	}
	mapper := tempomap.NewMapper(tm)

	m.mu.Lock()
	mapper.SetProfiler(m.prof)
	m.cfg = cfg
	m.mapper = mapper
	m.mu.Unlock()
	return nil
}

// update runs one serialized read-modify-write cycle over the configuration.
func (m *Manager) update(mutate func(*Config)) error {
	m.setMu.Lock()
	defer m.setMu.Unlock()
	cfg := m.Config()
	mutate(&cfg)
	return m.apply(cfg)
}

// SetBPM changes the global tempo used when no tempo map is set.
func (m *Manager) SetBPM(bpm float64) error {
	return m.update(func(cfg *Config) { cfg.GlobalBPM = bpm })
}

// SetTicksPerQuarter changes the canonical tick resolution.
func (m *Manager) SetTicksPerQuarter(ticksPerQuarter int) error {
	return m.update(func(cfg *Config) { cfg.TicksPerQuarter = ticksPerQuarter })
}

// SetTempoMap replaces the tempo map. Passing an empty list clears it, so
// the global BPM applies to the whole timeline again. If any event is
// invalid the previous map stays in effect.
func (m *Manager) SetTempoMap(events []tempomap.ChangeEvent) error {
	return m.update(func(cfg *Config) { cfg.Events = events })
}

// SetBeatsPerBar changes the bar length used by BarWindow.
func (m *Manager) SetBeatsPerBar(beatsPerBar float64) error {
	return m.update(func(cfg *Config) { cfg.BeatsPerBar = beatsPerBar })
}

// SetProfiler attaches a profiler to the current and all future mappers.
// Pass nil to disable. The published mapper is never mutated in place: a
// fresh mapper over the same segment table is swapped in, so conversions
// already in flight keep the mapper they started with.
func (m *Manager) SetProfiler(p tempomap.Profiler) {
	m.mu.Lock()
	m.prof = p
	mapper := tempomap.NewMapper(m.mapper.TempoMap())
	mapper.SetProfiler(p)
	m.mapper = mapper
	m.mu.Unlock()
}

// Config returns a copy of the current configuration.
func (m *Manager) Config() Config {
	m.mu.RLock()
	cfg := m.cfg
	m.mu.RUnlock()
	events := make([]tempomap.ChangeEvent, len(cfg.Events))
	copy(events, cfg.Events)
	cfg.Events = events
	return cfg
}

// currentMapper returns the mapper reference under the read lock. The mapper
// itself is immutable, so conversions then proceed without any lock held.
func (m *Manager) currentMapper() *tempomap.Mapper {
	m.mu.RLock()
	mp := m.mapper
	m.mu.RUnlock()
	return mp
}

// SecondsToTicks converts seconds to ticks under the current configuration.
func (m *Manager) SecondsToTicks(s timeunits.Seconds) timeunits.Ticks {
	return m.currentMapper().SecondsToTicks(s)
}

// TicksToSeconds converts ticks to seconds under the current configuration.
func (m *Manager) TicksToSeconds(t timeunits.Ticks) timeunits.Seconds {
	return m.currentMapper().TicksToSeconds(t)
}

// SecondsToBeats converts seconds to beats under the current configuration.
func (m *Manager) SecondsToBeats(s timeunits.Seconds) timeunits.Beats {
	return m.currentMapper().SecondsToBeats(s)
}

// BeatsToSeconds converts beats to seconds under the current configuration.
func (m *Manager) BeatsToSeconds(b timeunits.Beats) timeunits.Seconds {
	return m.currentMapper().BeatsToSeconds(b)
}

// SecondsToTicksBatch converts a sequence of seconds under the current
// configuration.
func (m *Manager) SecondsToTicksBatch(in []timeunits.Seconds) []timeunits.Ticks {
	return m.currentMapper().SecondsToTicksBatch(in)
}

// TicksToSecondsBatch converts a sequence of ticks under the current
// configuration.
func (m *Manager) TicksToSecondsBatch(in []timeunits.Ticks) []timeunits.Seconds {
	return m.currentMapper().TicksToSecondsBatch(in)
}

// SecondsToBeatsBatch converts a sequence of seconds to beats under the
// current configuration.
func (m *Manager) SecondsToBeatsBatch(in []timeunits.Seconds) []timeunits.Beats {
	return m.currentMapper().SecondsToBeatsBatch(in)
}

// BeatsToSecondsBatch converts a sequence of beats under the current
// configuration.
func (m *Manager) BeatsToSecondsBatch(in []timeunits.Beats) []timeunits.Seconds {
	return m.currentMapper().BeatsToSecondsBatch(in)
}

// BeatsToSecondsWithMap performs a one-shot conversion against a
// caller-supplied tempo map without touching the manager's configuration.
// The current tick resolution and global BPM still apply. Used for transient
// what-if queries from the editor.
func (m *Manager) BeatsToSecondsWithMap(b timeunits.Beats, events []tempomap.ChangeEvent) (timeunits.Seconds, error) {
	mp, err := m.transientMapper(events)
	if err != nil {
		return 0, err
	}
	return mp.BeatsToSeconds(b), nil
}

// SecondsToBeatsWithMap is the forward counterpart of BeatsToSecondsWithMap.
func (m *Manager) SecondsToBeatsWithMap(s timeunits.Seconds, events []tempomap.ChangeEvent) (timeunits.Beats, error) {
	mp, err := m.transientMapper(events)
	if err != nil {
		return 0, err
	}
	return mp.SecondsToBeats(s), nil
}

// transientMapper builds a throwaway mapper over events using the current
// resolution and fallback BPM.
func (m *Manager) transientMapper(events []tempomap.ChangeEvent) (*tempomap.Mapper, error) {
	cfg := m.Config()
	tm, err := tempomap.New(events, cfg.GlobalBPM, cfg.TicksPerQuarter)
	if err != nil {
		return nil, err
	}
	return tempomap.NewMapper(tm), nil
}

// BarWindow returns the [start, end) second boundaries of a windowBars-wide
// span of bars containing the bar at centerSeconds. The span is not centered:
// it is aligned so its first bar index is the largest multiple of windowBars
// at or below the containing bar. Negative center positions are clamped to
// bar zero. Boundaries are evaluated through the mapper, so they stay correct
// under stepped and ramped tempo maps.
func (m *Manager) BarWindow(centerSeconds timeunits.Seconds, windowBars int) (Window, error) {
	if windowBars <= 0 {
		return Window{}, fmt.Errorf("window bars must be positive, got %d", windowBars)
	}

	m.mu.RLock()
	mp := m.mapper
	beatsPerBar := m.cfg.BeatsPerBar
	m.mu.RUnlock()

	beats := float64(mp.SecondsToBeats(centerSeconds))
	barIndex := int(math.Floor(beats / beatsPerBar))
	if barIndex < 0 {
		barIndex = 0
	}
	firstBar := (barIndex / windowBars) * windowBars

	start := mp.BeatsToSeconds(timeunits.Beats(float64(firstBar) * beatsPerBar))
	end := mp.BeatsToSeconds(timeunits.Beats(float64(firstBar+windowBars) * beatsPerBar))
	return Window{Start: start, End: end}, nil
}
