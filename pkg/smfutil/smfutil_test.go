package smfutil

import (
	"bytes"
	"math"
	"testing"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/kagelight/tempocore/pkg/tempomap"
)

// tempoMessage builds a raw Set Tempo meta event for the given BPM.
func tempoMessage(bpm float64) smf.Message {
	microsPerBeat := uint32(60000000.0 / bpm)
	return smf.Message([]byte{
		0xFF, 0x51, 0x03,
		byte(microsPerBeat >> 16),
		byte(microsPerBeat >> 8),
		byte(microsPerBeat),
	})
}

// buildTestSMF writes an SMF with the given (deltaTicks, bpm) tempo events
// and reads it back, exercising the same parse path production uses.
func buildTestSMF(t *testing.T, ppq uint16, tempos []struct {
	delta uint32
	bpm   float64
}) *smf.SMF {
	t.Helper()

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(ppq)

	var track smf.Track
	for _, ev := range tempos {
		track.Add(ev.delta, tempoMessage(ev.bpm))
	}
	track.Close(0)

	if err := s.Add(track); err != nil {
		t.Fatalf("Failed to add track: %v", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("Failed to write SMF: %v", err)
	}

	parsed, err := smf.ReadFrom(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Failed to read SMF back: %v", err)
	}
	return parsed
}

func TestExtractTempoEvents_DefaultTempo(t *testing.T) {
	data := buildTestSMF(t, 480, nil)

	events, ppq, err := ExtractTempoEvents(data)
	if err != nil {
		t.Fatalf("ExtractTempoEvents failed: %v", err)
	}

	if ppq != 480 {
		t.Errorf("Expected 480 ticks per quarter, got %d", ppq)
	}
	if len(events) != 1 {
		t.Fatalf("Expected single default event, got %d", len(events))
	}
	if events[0].Time != 0 || events[0].BPM != 120 {
		t.Errorf("Expected default 120 BPM at time 0, got %+v", events[0])
	}
}

func TestExtractTempoEvents_ConvertsTicksToSeconds(t *testing.T) {
	// 120 BPM at tick 0, 60 BPM at tick 960. At 480 PPQ, tick 960 is two
	// beats into a 120 BPM stretch, so the change lands at 1.0 seconds.
	data := buildTestSMF(t, 480, []struct {
		delta uint32
		bpm   float64
	}{
		{0, 120},
		{960, 60},
	})

	events, ppq, err := ExtractTempoEvents(data)
	if err != nil {
		t.Fatalf("ExtractTempoEvents failed: %v", err)
	}

	if ppq != 480 {
		t.Errorf("Expected 480 ticks per quarter, got %d", ppq)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].Time != 0 || events[0].BPM != 120 {
		t.Errorf("Event 0: expected 120 BPM at 0s, got %+v", events[0])
	}
	if math.Abs(events[1].Time-1.0) > 1e-9 || events[1].BPM != 60 {
		t.Errorf("Event 1: expected 60 BPM at 1.0s, got %+v", events[1])
	}
	if events[1].Curve != tempomap.CurveStep {
		t.Errorf("SMF events must be stepped, got %v", events[1].Curve)
	}
}

func TestExtractTempoEvents_SynthesizesLeadingDefault(t *testing.T) {
	// First tempo declared at tick 480; the stretch before it runs at the
	// SMF default of 120 BPM, so the change lands at 0.5 seconds.
	data := buildTestSMF(t, 480, []struct {
		delta uint32
		bpm   float64
	}{
		{480, 240},
	})

	events, _, err := ExtractTempoEvents(data)
	if err != nil {
		t.Fatalf("ExtractTempoEvents failed: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("Expected synthesized default plus declared event, got %d", len(events))
	}
	if events[0].Time != 0 || events[0].BPM != 120 {
		t.Errorf("Expected synthesized 120 BPM at 0s, got %+v", events[0])
	}
	if math.Abs(events[1].Time-0.5) > 1e-9 {
		t.Errorf("Expected declared tempo at 0.5s, got %v", events[1].Time)
	}
}

func TestExtractTempoEvents_FeedsTempoMap(t *testing.T) {
	data := buildTestSMF(t, 480, []struct {
		delta uint32
		bpm   float64
	}{
		{0, 120},
		{480, 140},
		{480, 100},
	})

	events, ppq, err := ExtractTempoEvents(data)
	if err != nil {
		t.Fatalf("ExtractTempoEvents failed: %v", err)
	}

	tm, err := tempomap.New(events, 120, ppq)
	if err != nil {
		t.Fatalf("Extracted events did not build a tempo map: %v", err)
	}
	if tm.NumSegments() != 3 {
		t.Errorf("Expected 3 segments, got %d", tm.NumSegments())
	}

	// Cumulative ticks at each boundary must reproduce the tick positions
	// the events were declared at.
	segs := tm.Segments()
	wantTicks := []float64{0, 480, 960}
	for i, seg := range segs {
		if math.Abs(seg.StartTicks-wantTicks[i]) > 1e-6 {
			t.Errorf("Segment %d: expected %v cumulative ticks, got %v", i, wantTicks[i], seg.StartTicks)
		}
	}
}

func TestExtractTempoEvents_RejectsNonMetricTime(t *testing.T) {
	s := smf.New()
	s.TimeFormat = nil

	if _, _, err := ExtractTempoEvents(s); err == nil {
		t.Error("Expected error for a file without metric ticks")
	}
}
