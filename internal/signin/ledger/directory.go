// Package ledger holds the worker directory, the append-only visit ledger
// and the roster derived from it.
package ledger

import "github.com/BikerAndy/site-signin/internal/signin/types"

// Directory maps worker ids to profiles and remembers insertion order.
// It is not safe for concurrent use; the owning service serializes access.
type Directory struct {
	order []string
	byID  map[string]types.WorkerProfile
}

func NewDirectory(profiles []types.WorkerProfile) *Directory {
	d := &Directory{byID: make(map[string]types.WorkerProfile, len(profiles))}
	for _, p := range profiles {
		d.Upsert(p)
	}
	return d
}

// Upsert replaces the whole profile stored under p.ID, or inserts it.
func (d *Directory) Upsert(p types.WorkerProfile) {
	if _, ok := d.byID[p.ID]; !ok {
		d.order = append(d.order, p.ID)
	}
	d.byID[p.ID] = p
}

func (d *Directory) Find(id string) (types.WorkerProfile, bool) {
	p, ok := d.byID[id]
	return p, ok
}

// All returns a snapshot in insertion order.
func (d *Directory) All() []types.WorkerProfile {
	out := make([]types.WorkerProfile, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.byID[id])
	}
	return out
}

func (d *Directory) Len() int { return len(d.order) }

// Lookup returns a copy of the id → profile map for joins.
func (d *Directory) Lookup() map[string]types.WorkerProfile {
	out := make(map[string]types.WorkerProfile, len(d.byID))
	for k, v := range d.byID {
		out[k] = v
	}
	return out
}

func (d *Directory) clear() {
	d.order = nil
	d.byID = make(map[string]types.WorkerProfile)
}
