package assign

import (
	"github.com/fieldops/dispatchd/core/geo"
	"github.com/fieldops/dispatchd/core/model"
)

const capacityEpsilon = 1e-9

// Ledger tracks running per-technician assignment counts within a batch. It
// is the only mutable state of a run: every commit goes through it, so the
// capacity bound holds at every point of the batch, not just at the end.
type Ledger struct {
	counts map[string]int
}

// NewLedger seeds the ledger from the technicians' pre-existing assignments.
func NewLedger(techs []model.Technician) *Ledger {
	l := &Ledger{counts: make(map[string]int, len(techs))}
	for _, t := range techs {
		l.counts[t.ID] = t.Assigned
	}
	return l
}

// Assigned returns the running assignment count for a technician.
func (l *Ledger) Assigned(techID string) int { return l.counts[techID] }

// Commit records one more assignment for the technician.
func (l *Ledger) Commit(techID string) { l.counts[techID]++ }

// Ratio returns the technician's current workload ratio.
func (l *Ledger) Ratio(t model.Technician) float64 {
	if t.Capacity <= 0 {
		return 1
	}
	return geo.WorkloadRatio(l.counts[t.ID], t.Capacity)
}

// HasHeadroom reports whether one more assignment would keep the technician
// within capacity times maxRatio. Checking the post-commit count here is what
// keeps committed batches within the bound.
func (l *Ledger) HasHeadroom(t model.Technician, maxRatio float64) bool {
	if t.Capacity <= 0 {
		return false
	}
	return float64(l.counts[t.ID]+1) <= float64(t.Capacity)*maxRatio+capacityEpsilon
}
