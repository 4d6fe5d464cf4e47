// Package tempomap converts between ticks, beats, and wall-clock seconds
// under a tempo that may be constant or may change over time through stepped
// or linearly-ramped tempo segments.
//
// A TempoMap is built once from raw change events and is immutable after
// construction: every tempo edit produces a whole new map instead of patching
// segment tables in place, so readers never observe a half-updated mapping.
package tempomap

import (
	"fmt"
	"math"
	"sort"
)

// ResolvedSegment is one contiguous stretch of the timeline with a single
// tempo function. The cumulative beat and tick offsets at the segment start
// are precomputed at construction so conversions never re-integrate earlier
// segments.
type ResolvedSegment struct {
	StartTime  float64 // wall-clock seconds at segment start
	StartBeats float64 // cumulative beats at segment start
	StartTicks float64 // cumulative ticks at segment start
	StartBPM   float64 // tempo at segment start
	EndBPM     float64 // tempo at segment end; equals StartBPM for step segments
	Curve      Curve
}

// TempoMap is an ordered, validated segment table derived from tempo change
// events. Segments are contiguous and non-overlapping; StartTime, StartBeats,
// and StartTicks are strictly increasing across segments because BPM is
// always positive.
type TempoMap struct {
	ticksPerQuarter int
	segments        []ResolvedSegment
}

// New builds a TempoMap from raw change events.
//
// Events may arrive unsorted and may contain duplicate timestamps; the list
// is sorted ascending by time and, where timestamps collide, the
// later-declared event wins. If no event sits at time zero, an implicit
// leading segment at globalBPM is synthesized so the map always covers the
// whole timeline from zero. Any event with non-positive BPM or non-finite
// time is rejected with ErrInvalidTempoEvent and no map is produced.
func New(events []ChangeEvent, globalBPM float64, ticksPerQuarter int) (*TempoMap, error) {
	if ticksPerQuarter <= 0 {
		return nil, fmt.Errorf("ticks per quarter must be positive, got %d", ticksPerQuarter)
	}
	if math.IsNaN(globalBPM) || math.IsInf(globalBPM, 0) || globalBPM <= 0 {
		return nil, fmt.Errorf("%w: global bpm must be positive and finite, got %v", ErrInvalidTempoEvent, globalBPM)
	}

	for _, ev := range events {
		if err := ev.validate(); err != nil {
			return nil, err
		}
	}

	normalized := normalizeEvents(events, globalBPM)

	segments := make([]ResolvedSegment, len(normalized))
	beats := 0.0
	for i, ev := range normalized {
		seg := ResolvedSegment{
			StartTime:  ev.Time,
			StartBeats: beats,
			StartTicks: beats * float64(ticksPerQuarter),
			StartBPM:   ev.BPM,
			EndBPM:     ev.BPM,
			Curve:      ev.Curve,
		}

		if i+1 < len(normalized) {
			next := normalized[i+1]
			if ev.Curve == CurveLinear {
				seg.EndBPM = next.BPM
			}
			// Integrate this segment's beats-per-second rate over its
			// duration. For a linear ramp the rate varies linearly in time,
			// so the integral is the trapezoid of the endpoint rates.
			dt := next.Time - ev.Time
			beats += (seg.StartBPM + seg.EndBPM) / 2.0 / 60.0 * dt
		} else {
			// The open-ended final segment is always held constant.
			seg.Curve = CurveStep
		}

		segments[i] = seg
	}

	return &TempoMap{
		ticksPerQuarter: ticksPerQuarter,
		segments:        segments,
	}, nil
}

// Constant builds a single-segment map holding bpm for the whole timeline.
func Constant(bpm float64, ticksPerQuarter int) (*TempoMap, error) {
	return New(nil, bpm, ticksPerQuarter)
}

// normalizeEvents sorts events ascending by time, collapses duplicate
// timestamps keeping the later-declared event, and prepends the implicit
// globalBPM segment when nothing starts at time zero.
func normalizeEvents(events []ChangeEvent, globalBPM float64) []ChangeEvent {
	sorted := make([]ChangeEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time < sorted[j].Time
	})

	deduped := sorted[:0]
	for _, ev := range sorted {
		if n := len(deduped); n > 0 && deduped[n-1].Time == ev.Time {
			deduped[n-1] = ev
			continue
		}
		deduped = append(deduped, ev)
	}

	if len(deduped) == 0 || deduped[0].Time > 0 {
		deduped = append([]ChangeEvent{{Time: 0, BPM: globalBPM, Curve: CurveStep}}, deduped...)
	}

	return deduped
}

// TicksPerQuarter returns the tick resolution the map was built with.
func (m *TempoMap) TicksPerQuarter() int {
	return m.ticksPerQuarter
}

// NumSegments returns the number of resolved segments.
func (m *TempoMap) NumSegments() int {
	return len(m.segments)
}

// Segments returns a copy of the resolved segment table. The map's own table
// is never handed out by reference so callers cannot perturb it.
func (m *TempoMap) Segments() []ResolvedSegment {
	out := make([]ResolvedSegment, len(m.segments))
	copy(out, m.segments)
	return out
}

// Clone returns an independent deep copy of the map. Export snapshots use
// this so later edits to the live configuration cannot reach frozen tables.
func (m *TempoMap) Clone() *TempoMap {
	return &TempoMap{
		ticksPerQuarter: m.ticksPerQuarter,
		segments:        m.Segments(),
	}
}
