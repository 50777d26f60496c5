package coordinator

import "github.com/anstrom/netrecon/internal/netmap"

// Tracker filters progress events that arrive out of phase order.
//
// An event whose phase ordinal is lower than the last accepted phase is
// stale and discarded. Complete is always accepted and ends tracking. This
// assumes producers never legitimately return to an earlier phase once a
// later one has started.
type Tracker struct {
	last    netmap.ScanPhase
	started bool
	done    bool
}

// NewTracker returns a tracker that has accepted nothing yet.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Apply reports whether p should be applied. Accepted events advance the
// tracker.
func (t *Tracker) Apply(p netmap.ScanProgress) bool {
	if t.done {
		return false
	}
	if p.Phase == netmap.PhaseComplete {
		t.last = netmap.PhaseComplete
		t.started = true
		t.done = true
		return true
	}
	if t.started && p.Phase.Ordinal() < t.last.Ordinal() {
		return false
	}
	t.last = p.Phase
	t.started = true
	return true
}

// Phase returns the last accepted phase.
func (t *Tracker) Phase() netmap.ScanPhase {
	return t.last
}

// Done reports whether Complete has been accepted.
func (t *Tracker) Done() bool {
	return t.done
}
