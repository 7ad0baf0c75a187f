package ledger

import (
	"slices"

	"github.com/BikerAndy/site-signin/internal/signin/types"
)

// Ledger is the append-only sequence of visit events. It keeps the index of
// each worker's latest event so the roster can be read without a rescan; the
// index is rebuilt from the events on construction and only ever updated by
// Append.
type Ledger struct {
	events []types.VisitEvent
	latest map[string]int
	newID  func() string
}

// NewLedger loads events in their stored order. newID assigns ids to
// appended events.
func NewLedger(events []types.VisitEvent, newID func() string) *Ledger {
	l := &Ledger{
		events: slices.Clone(events),
		newID:  newID,
	}
	l.rebuild()
	return l
}

func (l *Ledger) rebuild() {
	l.latest = make(map[string]int, len(l.events))
	for i, ev := range l.events {
		l.latest[ev.WorkerID] = i
	}
}

// Append assigns a fresh id to ev, adds it to the end of the ledger and
// returns the stored event.
func (l *Ledger) Append(ev types.VisitEvent) types.VisitEvent {
	ev.ID = l.newID()
	ev.PPEWorn = slices.Clone(ev.PPEWorn)
	l.events = append(l.events, ev)
	l.latest[ev.WorkerID] = len(l.events) - 1
	return ev
}

// All returns the events oldest first.
func (l *Ledger) All() []types.VisitEvent {
	out := make([]types.VisitEvent, len(l.events))
	copy(out, l.events)
	return out
}

func (l *Ledger) Len() int { return len(l.events) }

// Latest returns the most recent event for workerID.
func (l *Ledger) Latest(workerID string) (types.VisitEvent, bool) {
	i, ok := l.latest[workerID]
	if !ok {
		return types.VisitEvent{}, false
	}
	return l.events[i], true
}

// OnSite reports whether workerID's most recent event is an IN.
func (l *Ledger) OnSite(workerID string) bool {
	ev, ok := l.Latest(workerID)
	return ok && ev.Direction == types.DirectionIn
}

// Roster returns the on-site workers from the cached latest-event index,
// ordered by the ledger position of their latest event.
func (l *Ledger) Roster(workers map[string]types.WorkerProfile) []types.RosterEntry {
	idx := make([]int, 0, len(l.latest))
	for _, i := range l.latest {
		if l.events[i].Direction == types.DirectionIn {
			idx = append(idx, i)
		}
	}
	slices.Sort(idx)

	out := make([]types.RosterEntry, 0, len(idx))
	for _, i := range idx {
		out = append(out, entry(l.events[i], workers))
	}
	return out
}

func (l *Ledger) clear() {
	l.events = nil
	l.latest = make(map[string]int)
}

// Reset empties the directory and the ledger together.
func Reset(d *Directory, l *Ledger) {
	d.clear()
	l.clear()
}
