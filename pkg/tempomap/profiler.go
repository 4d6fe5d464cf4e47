package tempomap

import "time"

// ProfileKind identifies the logical operation category a profiler sample
// belongs to.
type ProfileKind string

const (
	ProfileSecondsToTicks ProfileKind = "seconds-to-ticks"
	ProfileTicksToSeconds ProfileKind = "ticks-to-seconds"
	ProfileSecondsBatch   ProfileKind = "seconds-batch"
	ProfileTicksBatch     ProfileKind = "ticks-batch"
)

// Profiler receives one sample per conversion call. Implementations must be
// safe for concurrent use if the mapper is shared across goroutines.
type Profiler interface {
	Record(kind ProfileKind, elapsed time.Duration)
}

// profStart returns the call start time, or the zero time when profiling is
// disabled so the call costs only a nil check.
func (mp *Mapper) profStart() time.Time {
	if mp.prof == nil {
		return time.Time{}
	}
	return time.Now()
}

// profStop records a sample if profiling is enabled.
func (mp *Mapper) profStop(kind ProfileKind, start time.Time) {
	if mp.prof == nil {
		return
	}
	mp.prof.Record(kind, time.Since(start))
}
