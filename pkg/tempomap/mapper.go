package tempomap

import (
	"fmt"
	"math"
	"sort"

	"github.com/kagelight/tempocore/pkg/timeunits"
)

// rampEpsilon is the BPM delta below which a linear segment is treated as
// constant. The quadratic ramp math divides by the delta, so near-equal
// endpoint tempos fall back to the step formula instead.
const rampEpsilon = 1e-9

// Mapper performs forward and inverse conversions among ticks, beats, and
// seconds over an immutable TempoMap. All methods are pure functions of the
// segment table and safe to call concurrently without locks.
//
// Negative inputs are clamped to zero rather than rejected: playback code
// routinely probes near-zero boundaries and should not have to special-case
// them.
type Mapper struct {
	tm   *TempoMap
	prof Profiler
}

// NewMapper wraps a TempoMap in a conversion engine with profiling disabled.
func NewMapper(tm *TempoMap) *Mapper {
	return &Mapper{tm: tm}
}

// SetProfiler attaches an optional profiler. Pass nil to disable. The mapper
// checks the field for nil at each call site, so an absent profiler costs a
// single branch. Attach before the mapper is shared across goroutines; a
// mapper already published to readers must be replaced, not mutated.
func (mp *Mapper) SetProfiler(p Profiler) {
	mp.prof = p
}

// TempoMap returns the underlying map.
func (mp *Mapper) TempoMap() *TempoMap {
	return mp.tm
}

// SecondsToBeats converts a wall-clock position to cumulative beats.
func (mp *Mapper) SecondsToBeats(s timeunits.Seconds) timeunits.Beats {
	start := mp.profStart()
	beats := mp.beatsAtSeconds(float64(s))
	mp.profStop(ProfileSecondsToTicks, start)
	return timeunits.Beats(beats)
}

// SecondsToTicks converts a wall-clock position to cumulative ticks.
func (mp *Mapper) SecondsToTicks(s timeunits.Seconds) timeunits.Ticks {
	start := mp.profStart()
	ticks := mp.beatsAtSeconds(float64(s)) * float64(mp.tm.ticksPerQuarter)
	mp.profStop(ProfileSecondsToTicks, start)
	return timeunits.Ticks(ticks)
}

// BeatsToSeconds converts cumulative beats to a wall-clock position.
func (mp *Mapper) BeatsToSeconds(b timeunits.Beats) timeunits.Seconds {
	start := mp.profStart()
	s := mp.secondsAtBeats(float64(b))
	mp.profStop(ProfileTicksToSeconds, start)
	return timeunits.Seconds(s)
}

// TicksToSeconds converts cumulative ticks to a wall-clock position.
func (mp *Mapper) TicksToSeconds(t timeunits.Ticks) timeunits.Seconds {
	start := mp.profStart()
	s := mp.secondsAtBeats(float64(t) / float64(mp.tm.ticksPerQuarter))
	mp.profStop(ProfileTicksToSeconds, start)
	return timeunits.Seconds(s)
}

// SecondsToTicksBatch converts a sequence of wall-clock positions to ticks.
// Output is same-length and order-preserving. Sorted inputs (the common
// real-time playback case) are converted with a single monotone cursor into
// the segment table instead of a binary search per sample.
func (mp *Mapper) SecondsToTicksBatch(in []timeunits.Seconds) []timeunits.Ticks {
	start := mp.profStart()
	out := make([]timeunits.Ticks, len(in))
	ppq := float64(mp.tm.ticksPerQuarter)
	mp.forwardBatch(in, func(i int, beats float64) {
		out[i] = timeunits.Ticks(beats * ppq)
	})
	mp.profStop(ProfileSecondsBatch, start)
	return out
}

// SecondsToBeatsBatch converts a sequence of wall-clock positions to beats.
func (mp *Mapper) SecondsToBeatsBatch(in []timeunits.Seconds) []timeunits.Beats {
	start := mp.profStart()
	out := make([]timeunits.Beats, len(in))
	mp.forwardBatch(in, func(i int, beats float64) {
		out[i] = timeunits.Beats(beats)
	})
	mp.profStop(ProfileSecondsBatch, start)
	return out
}

// TicksToSecondsBatch converts a sequence of tick positions to seconds.
func (mp *Mapper) TicksToSecondsBatch(in []timeunits.Ticks) []timeunits.Seconds {
	start := mp.profStart()
	ppq := float64(mp.tm.ticksPerQuarter)
	beats := make([]float64, len(in))
	for i, t := range in {
		beats[i] = float64(t) / ppq
	}
	out := mp.inverseBatch(beats)
	mp.profStop(ProfileTicksBatch, start)
	return out
}

// BeatsToSecondsBatch converts a sequence of beat positions to seconds.
func (mp *Mapper) BeatsToSecondsBatch(in []timeunits.Beats) []timeunits.Seconds {
	start := mp.profStart()
	beats := make([]float64, len(in))
	for i, b := range in {
		beats[i] = float64(b)
	}
	out := mp.inverseBatch(beats)
	mp.profStop(ProfileTicksBatch, start)
	return out
}

// beatsAtSeconds is the scalar forward conversion: clamp, locate the
// containing segment, integrate the segment's tempo function from its start.
func (mp *Mapper) beatsAtSeconds(s float64) float64 {
	if s < 0 {
		s = 0
	}
	idx := mp.segmentAtTime(s)
	return mp.beatsInSegment(idx, s)
}

// beatsInSegment evaluates cumulative beats at time s, which must lie in
// segment idx.
func (mp *Mapper) beatsInSegment(idx int, s float64) float64 {
	seg := &mp.tm.segments[idx]
	tau := s - seg.StartTime

	if seg.Curve == CurveLinear && math.Abs(seg.EndBPM-seg.StartBPM) > rampEpsilon {
		// Instantaneous rate ramps linearly from StartBPM to EndBPM across
		// the segment; the integral up to tau is bpm0*tau plus the
		// triangular correction term.
		dt := mp.tm.segments[idx+1].StartTime - seg.StartTime
		return seg.StartBeats + (seg.StartBPM*tau+(seg.EndBPM-seg.StartBPM)*tau*tau/(2*dt))/60.0
	}
	return seg.StartBeats + seg.StartBPM/60.0*tau
}

// secondsAtBeats is the scalar inverse conversion.
func (mp *Mapper) secondsAtBeats(b float64) float64 {
	if b < 0 {
		b = 0
	}
	idx := mp.segmentAtBeats(b)
	return mp.secondsInSegment(idx, b)
}

// secondsInSegment solves for the time at which cumulative beats reach b
// within segment idx.
func (mp *Mapper) secondsInSegment(idx int, b float64) float64 {
	seg := &mp.tm.segments[idx]
	db := b - seg.StartBeats

	if seg.Curve == CurveLinear && math.Abs(seg.EndBPM-seg.StartBPM) > rampEpsilon {
		// Solve a*tau^2 + bpm0*tau - 60*db = 0 for tau, where
		// a = (bpm1-bpm0)/(2*dt). The rate is positive throughout the
		// segment, so the function is monotonic and exactly one root lies
		// in range; the stable form 2c/(bpm0+sqrt(disc)) selects it without
		// cancellation.
		dt := mp.tm.segments[idx+1].StartTime - seg.StartTime
		a := (seg.EndBPM - seg.StartBPM) / (2 * dt)
		c := 60.0 * db
		disc := seg.StartBPM*seg.StartBPM + 4*a*c
		if disc < 0 {
			disc = 0
		}
		tau := 2 * c / (seg.StartBPM + math.Sqrt(disc))
		return seg.StartTime + tau
	}
	return seg.StartTime + db*60.0/seg.StartBPM
}

// forwardBatch runs the forward conversion over a slice, amortizing segment
// lookup with a cursor when the input is sorted.
func (mp *Mapper) forwardBatch(in []timeunits.Seconds, emit func(i int, beats float64)) {
	if sortedSeconds(in) {
		cursor := 0
		for i, v := range in {
			s := float64(v)
			if s < 0 {
				s = 0
			}
			cursor = mp.advanceTimeCursor(cursor, s)
			emit(i, mp.beatsInSegment(cursor, s))
		}
		return
	}
	for i, v := range in {
		emit(i, mp.beatsAtSeconds(float64(v)))
	}
}

// inverseBatch runs the inverse conversion over beat positions, amortizing
// segment lookup with a cursor when the input is sorted.
func (mp *Mapper) inverseBatch(beats []float64) []timeunits.Seconds {
	out := make([]timeunits.Seconds, len(beats))
	if sort.Float64sAreSorted(beats) {
		cursor := 0
		for i, b := range beats {
			if b < 0 {
				b = 0
			}
			cursor = mp.advanceBeatCursor(cursor, b)
			out[i] = timeunits.Seconds(mp.secondsInSegment(cursor, b))
		}
		return out
	}
	for i, b := range beats {
		out[i] = timeunits.Seconds(mp.secondsAtBeats(b))
	}
	return out
}

// segmentAtTime binary-searches for the segment whose half-open time range
// contains s. The last segment is open-ended.
func (mp *Mapper) segmentAtTime(s float64) int {
	segs := mp.tm.segments
	idx := sort.Search(len(segs), func(i int) bool {
		return segs[i].StartTime > s
	}) - 1
	if idx < 0 {
		// Structurally impossible: the first segment always starts at zero
		// and inputs are clamped non-negative.
		panic(fmt.Sprintf("tempomap: no segment contains time %v", s))
	}
	return idx
}

// segmentAtBeats binary-searches for the segment whose half-open beat range
// contains b.
func (mp *Mapper) segmentAtBeats(b float64) int {
	segs := mp.tm.segments
	idx := sort.Search(len(segs), func(i int) bool {
		return segs[i].StartBeats > b
	}) - 1
	if idx < 0 {
		panic(fmt.Sprintf("tempomap: no segment contains beat %v", b))
	}
	return idx
}

// advanceTimeCursor moves a monotone cursor forward until segment cursor
// contains time s.
func (mp *Mapper) advanceTimeCursor(cursor int, s float64) int {
	segs := mp.tm.segments
	for cursor+1 < len(segs) && segs[cursor+1].StartTime <= s {
		cursor++
	}
	return cursor
}

// advanceBeatCursor moves a monotone cursor forward until segment cursor
// contains beat b.
func (mp *Mapper) advanceBeatCursor(cursor int, b float64) int {
	segs := mp.tm.segments
	for cursor+1 < len(segs) && segs[cursor+1].StartBeats <= b {
		cursor++
	}
	return cursor
}

// sortedSeconds reports whether the input sequence is non-decreasing.
func sortedSeconds(in []timeunits.Seconds) bool {
	for i := 1; i < len(in); i++ {
		if in[i] < in[i-1] {
			return false
		}
	}
	return true
}
