package ledger

import "github.com/BikerAndy/site-signin/internal/signin/types"

// DeriveRoster computes who is on site from the full event history in one
// pass. The last event per worker wins, so duplicate sign-ins or sign-outs do
// not change the result. Workers without events are never on site.
//
// Ledger.Roster answers the same question from its cached index; this full
// scan is the reference that cache is checked against.
func DeriveRoster(visits []types.VisitEvent, workers map[string]types.WorkerProfile) []types.RosterEntry {
	last := make(map[string]int, len(visits))
	for i, ev := range visits {
		last[ev.WorkerID] = i
	}

	out := make([]types.RosterEntry, 0, len(last))
	for i, ev := range visits {
		if last[ev.WorkerID] != i || ev.Direction != types.DirectionIn {
			continue
		}
		out = append(out, entry(ev, workers))
	}
	return out
}

func entry(ev types.VisitEvent, workers map[string]types.WorkerProfile) types.RosterEntry {
	w, ok := workers[ev.WorkerID]
	if !ok {
		w = types.WorkerProfile{ID: ev.WorkerID}
	}
	return types.RosterEntry{Worker: w, SinceIn: ev}
}
