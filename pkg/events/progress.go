package events

import (
	"context"
	"sync"
	"time"
)

// Phase names the coarse stage an investigation is in. Each phase owns a
// fixed band of the progress percentage.
type Phase string

const (
	PhaseRouting      Phase = "routing"
	PhaseSeeding      Phase = "seeding"
	PhaseForming      Phase = "forming"
	PhaseProbing      Phase = "probing"
	PhaseSynthesizing Phase = "synthesizing"
	PhaseDone         Phase = "done"

	// PhaseCancelled tags the terminal error event of a consumer-aborted
	// run; the tracker itself never enters it.
	PhaseCancelled Phase = "cancelled"
)

// phaseBands maps each phase to its [lo, hi] progress band. Probing
// interpolates inside its band by completed source count.
var phaseBands = map[Phase][2]int{
	PhaseRouting:      {0, 10},
	PhaseSeeding:      {10, 30},
	PhaseForming:      {30, 40},
	PhaseProbing:      {40, 90},
	PhaseSynthesizing: {90, 99},
	PhaseDone:         {100, 100},
}

// Tracker computes deterministic progress from the current phase and
// probe completion counts. Safe for concurrent use.
type Tracker struct {
	mu           sync.Mutex
	phase        Phase
	sourcesDone  int
	sourcesTotal int
}

func NewTracker() *Tracker {
	return &Tracker{phase: PhaseRouting}
}

// SetPhase advances the tracker to a new phase.
func (t *Tracker) SetPhase(p Phase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = p
}

// SetSourcesTotal records how many probe invocations are expected during
// the probing phase. A best-effort estimate; the band interpolation
// saturates rather than overshooting.
func (t *Tracker) SetSourcesTotal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sourcesTotal = n
}

// SourceCompleted counts one finished probe.
func (t *Tracker) SourceCompleted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sourcesDone++
}

// Snapshot returns the heartbeat payload for the current state.
func (t *Tracker) Snapshot(now time.Time) Heartbeat {
	t.mu.Lock()
	defer t.mu.Unlock()

	band := phaseBands[t.phase]
	percent := band[0]
	if t.phase == PhaseProbing && t.sourcesTotal > 0 {
		done := t.sourcesDone
		if done > t.sourcesTotal {
			done = t.sourcesTotal
		}
		percent = band[0] + (band[1]-band[0])*done/t.sourcesTotal
	}
	return Heartbeat{
		TS:               now,
		ProgressPercent:  percent,
		Phase:            t.phase,
		SourcesCompleted: t.sourcesDone,
		SourcesTotal:     t.sourcesTotal,
	}
}

// RunHeartbeat publishes a heartbeat every interval until ctx ends or
// the stream terminates. Runs in its own goroutine.
func RunHeartbeat(ctx context.Context, stream *Stream, tracker *Tracker, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if stream.Terminated() {
				return
			}
			stream.Publish(TypeHeartbeat, tracker.Snapshot(now))
		}
	}
}
