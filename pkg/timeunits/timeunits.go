// Package timeunits defines typed wrappers for the quantities the timing
// engine converts between: ticks, beats, and wall-clock seconds.
//
// All three are float64 underneath. Keeping them as distinct types prevents
// the classic unit-confusion bug where a tick count is passed where a beat
// count is expected; the compiler rejects the mix-up instead of the user
// hearing it.
package timeunits

import "time"

const (
	// DefaultTicksPerQuarter is the canonical timeline resolution: the number
	// of ticks in one quarter-note beat.
	DefaultTicksPerQuarter = 960

	// DefaultBPM is the tempo assumed before any tempo information is set.
	DefaultBPM = 120.0

	// DefaultBeatsPerBar is the bar length used for bar-aligned window
	// queries when the timeline has not configured one.
	DefaultBeatsPerBar = 4.0
)

// Ticks is a position or duration on the canonical discrete timeline.
// Fractional values are legal; rounding happens only at presentation
// boundaries so that round-trip conversions stay accurate.
type Ticks float64

// Beats is a position or duration in quarter-note beats.
type Beats float64

// Seconds is a position or duration in wall-clock seconds.
type Seconds float64

// Beats converts a tick quantity to beats at the given resolution.
func (t Ticks) Beats(ticksPerQuarter int) Beats {
	return Beats(float64(t) / float64(ticksPerQuarter))
}

// Ticks converts a beat quantity to ticks at the given resolution.
func (b Beats) Ticks(ticksPerQuarter int) Ticks {
	return Ticks(float64(b) * float64(ticksPerQuarter))
}

// Duration converts seconds to a time.Duration.
func (s Seconds) Duration() time.Duration {
	return time.Duration(float64(s) * float64(time.Second))
}

// FromDuration converts a time.Duration to Seconds.
func FromDuration(d time.Duration) Seconds {
	return Seconds(d.Seconds())
}
