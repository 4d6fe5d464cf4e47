package tempomap

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidTempoEvent is returned when a tempo change event fails validation.
// Construction rejects the whole event list; callers keep their previous map.
var ErrInvalidTempoEvent = errors.New("invalid tempo event")

// Curve describes how tempo evolves across the segment starting at an event.
type Curve int

const (
	// CurveStep holds the event's BPM constant until the next event.
	CurveStep Curve = iota
	// CurveLinear ramps BPM linearly from this event's BPM to the next
	// event's BPM across the interval. The final segment of a map is always
	// held constant because there is no next event to ramp to.
	CurveLinear
)

// String returns the wire name of the curve ("step" or "linear").
func (c Curve) String() string {
	switch c {
	case CurveLinear:
		return "linear"
	default:
		return "step"
	}
}

// ParseCurve converts a wire name to a Curve. The empty string means step,
// matching persisted scene data where the field is optional.
func ParseCurve(s string) (Curve, error) {
	switch s {
	case "", "step":
		return CurveStep, nil
	case "linear":
		return CurveLinear, nil
	default:
		return CurveStep, fmt.Errorf("unknown curve %q", s)
	}
}

// MarshalJSON encodes the curve as its wire name.
func (c Curve) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// UnmarshalJSON decodes a curve from its wire name.
func (c *Curve) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("curve must be a JSON string, got %s", data)
	}
	parsed, err := ParseCurve(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ChangeEvent is a raw tempo change supplied by the editor UI or persisted
// scene data: at Time seconds the tempo becomes BPM, evolving according to
// Curve until the next event.
type ChangeEvent struct {
	Time  float64 `json:"time"`
	BPM   float64 `json:"bpm"`
	Curve Curve   `json:"curve,omitempty"`
}

// validate checks a single event. BPM must be strictly positive and finite;
// Time must be finite and non-negative.
func (e ChangeEvent) validate() error {
	if math.IsNaN(e.BPM) || math.IsInf(e.BPM, 0) || e.BPM <= 0 {
		return fmt.Errorf("%w: bpm must be positive and finite, got %v", ErrInvalidTempoEvent, e.BPM)
	}
	if math.IsNaN(e.Time) || math.IsInf(e.Time, 0) {
		return fmt.Errorf("%w: time must be finite, got %v", ErrInvalidTempoEvent, e.Time)
	}
	if e.Time < 0 {
		return fmt.Errorf("%w: time must be non-negative, got %v", ErrInvalidTempoEvent, e.Time)
	}
	return nil
}
