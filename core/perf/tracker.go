// Package perf builds per-technician performance profiles from historical
// outcomes. Profiles are computed once per batch run and read-only after.
package perf

import (
	"github.com/fieldops/dispatchd/core/history"
	"github.com/fieldops/dispatchd/core/model"
)

// BaselineSuccessRate is the fleet-wide success rate the adjustment is
// anchored on: a technician at the baseline is neither boosted nor reduced.
const BaselineSuccessRate = 0.75

// Tracker holds the per-technician profiles for one run.
type Tracker struct {
	profiles map[string]model.PerformanceProfile
}

// Build aggregates the feature table into per-technician profiles.
func Build(table *history.Table) *Tracker {
	type agg struct {
		jobs    int
		success int
		distSum float64
		workSum float64
	}
	byTech := make(map[string]*agg)
	for _, r := range table.Rows {
		a, ok := byTech[r.TechnicianID]
		if !ok {
			a = &agg{}
			byTech[r.TechnicianID] = a
		}
		a.jobs++
		if r.Productive {
			a.success++
		}
		a.distSum += r.DistanceKM
		a.workSum += r.WorkloadRatio
	}

	t := &Tracker{profiles: make(map[string]model.PerformanceProfile, len(byTech))}
	for id, a := range byTech {
		rate := float64(a.success) / float64(a.jobs)
		avgWork := a.workSum / float64(a.jobs)
		experience := float64(a.jobs) / 50.0
		if experience > 1 {
			experience = 1
		}
		load := avgWork
		if load > 1 {
			load = 1
		}
		t.profiles[id] = model.PerformanceProfile{
			TechnicianID: id,
			SuccessRate:  rate,
			JobCount:     a.jobs,
			AvgDistance:  a.distSum / float64(a.jobs),
			AvgWorkload:  avgWork,
			Score:        0.6*rate + 0.2*experience + 0.2*(1-load),
		}
	}
	return t
}

// Profile returns the profile for a technician, if they appear in history.
func (t *Tracker) Profile(techID string) (model.PerformanceProfile, bool) {
	if t == nil {
		return model.PerformanceProfile{}, false
	}
	p, ok := t.profiles[techID]
	return p, ok
}

// Len returns the number of tracked technicians.
func (t *Tracker) Len() int {
	if t == nil {
		return 0
	}
	return len(t.profiles)
}
