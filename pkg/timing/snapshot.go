package timing

import (
	"github.com/kagelight/tempocore/pkg/tempomap"
	"github.com/kagelight/tempocore/pkg/timeunits"
)

// Snapshot is an immutable capture of a Manager's mapping state. Export and
// render pipelines take one before scheduling frame-to-tick mappings so that
// later live-tempo edits cannot perturb values already handed out.
//
// The snapshot deep-copies the resolved segment table at creation; it shares
// nothing with the manager afterwards and may be read concurrently from any
// number of export workers.
type Snapshot struct {
	ticksPerQuarter int
	mapper          *tempomap.Mapper
}

// NewExportSnapshot freezes the manager's current tempo mapping.
func NewExportSnapshot(m *Manager) *Snapshot {
	m.mu.RLock()
	tm := m.mapper.TempoMap()
	m.mu.RUnlock()

	frozen := tm.Clone()
	return &Snapshot{
		ticksPerQuarter: frozen.TicksPerQuarter(),
		mapper:          tempomap.NewMapper(frozen),
	}
}

// TicksPerQuarter returns the tick resolution frozen into the snapshot.
func (s *Snapshot) TicksPerQuarter() int {
	return s.ticksPerQuarter
}

// SecondsToTicks converts against the frozen segment table.
func (s *Snapshot) SecondsToTicks(sec timeunits.Seconds) timeunits.Ticks {
	return s.mapper.SecondsToTicks(sec)
}

// TicksToSeconds converts against the frozen segment table.
func (s *Snapshot) TicksToSeconds(t timeunits.Ticks) timeunits.Seconds {
	return s.mapper.TicksToSeconds(t)
}

// SecondsToBeats converts against the frozen segment table.
func (s *Snapshot) SecondsToBeats(sec timeunits.Seconds) timeunits.Beats {
	return s.mapper.SecondsToBeats(sec)
}

// BeatsToSeconds converts against the frozen segment table.
func (s *Snapshot) BeatsToSeconds(b timeunits.Beats) timeunits.Seconds {
	return s.mapper.BeatsToSeconds(b)
}
