// Package smfutil imports tempo maps from Standard MIDI Files.
//
// SMF tempo meta events are positioned in ticks, while the timing engine's
// change events are positioned in wall-clock seconds. The conversion walks
// the events in tick order, accumulating the duration of each tempo segment
// at that segment's own tempo, so maps with many changes land at the right
// second offsets.
package smfutil

import (
	"fmt"
	"os"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/kagelight/tempocore/pkg/tempomap"
)

// tickTempo is a tempo change at an absolute tick position, as found in the
// file before conversion to seconds.
type tickTempo struct {
	tick uint32
	bpm  float64
}

// ExtractTempoEvents collects all Set Tempo meta events from every track of
// the file and returns them as stepped tempo change events in seconds, along
// with the file's ticks-per-quarter resolution.
//
// When the file declares no tempo at tick zero, the SMF default of 120 BPM
// is synthesized there, matching how sequencers interpret such files. SMF
// has no ramp notion, so every returned event is a step.
func ExtractTempoEvents(data *smf.SMF) ([]tempomap.ChangeEvent, int, error) {
	mt, ok := data.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, 0, fmt.Errorf("unsupported time format %v, expected metric ticks", data.TimeFormat)
	}
	ppq := int(mt.Resolution())
	if ppq <= 0 {
		return nil, 0, fmt.Errorf("invalid ticks per quarter %d in file header", ppq)
	}

	var raw []tickTempo
	for _, track := range data.Tracks {
		var currentTick uint32
		for _, ev := range track {
			currentTick += ev.Delta

			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) {
				if bpm <= 0 {
					return nil, 0, fmt.Errorf("%w: tempo %v at tick %d", tempomap.ErrInvalidTempoEvent, bpm, currentTick)
				}
				raw = append(raw, tickTempo{tick: currentTick, bpm: bpm})
			}
		}
	}

	sort.SliceStable(raw, func(i, j int) bool {
		return raw[i].tick < raw[j].tick
	})

	// Collapse duplicate tick positions, keeping the later declaration.
	deduped := raw[:0]
	for _, tt := range raw {
		if n := len(deduped); n > 0 && deduped[n-1].tick == tt.tick {
			deduped[n-1] = tt
			continue
		}
		deduped = append(deduped, tt)
	}

	if len(deduped) == 0 || deduped[0].tick > 0 {
		deduped = append([]tickTempo{{tick: 0, bpm: 120}}, deduped...)
	}

	// Convert tick positions to seconds segment by segment: each stretch
	// between consecutive tempo events runs at the earlier event's tempo.
	events := make([]tempomap.ChangeEvent, len(deduped))
	seconds := 0.0
	for i, tt := range deduped {
		if i > 0 {
			prev := deduped[i-1]
			deltaBeats := float64(tt.tick-prev.tick) / float64(ppq)
			seconds += deltaBeats * 60.0 / prev.bpm
		}
		events[i] = tempomap.ChangeEvent{
			Time:  seconds,
			BPM:   tt.bpm,
			Curve: tempomap.CurveStep,
		}
	}

	return events, ppq, nil
}

// ReadTempoEvents reads a Standard MIDI File from disk and extracts its
// tempo map.
func ReadTempoEvents(path string) ([]tempomap.ChangeEvent, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open MIDI file: %w", err)
	}
	defer f.Close()

	data, err := smf.ReadFrom(f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse MIDI file %s: %w", path, err)
	}

	return ExtractTempoEvents(data)
}
