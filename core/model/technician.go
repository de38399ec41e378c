package model

import (
	"fmt"
	"strings"
	"time"
)

// Technician represents a field worker that can take dispatch jobs.
type Technician struct {
	ID              string
	PrimarySkill    string
	SecondarySkills []string
	City            string
	Latitude        float64
	Longitude       float64
	Capacity        int // maximum jobs per day

	// Assigned is the number of jobs already booked for the day being
	// processed. It is the only mutable field in the data model and is
	// owned exclusively by the selector's capacity ledger.
	Assigned int
}

// Skills returns the primary skill followed by any secondary skills.
func (t Technician) Skills() []string {
	out := make([]string, 0, 1+len(t.SecondarySkills))
	out = append(out, t.PrimarySkill)
	out = append(out, t.SecondarySkills...)
	return out
}

// SameCity reports whether the technician works in the given city.
// Comparison is case-insensitive, matching the source data conventions.
func (t Technician) SameCity(city string) bool {
	return city != "" && strings.EqualFold(t.City, city)
}

// Validate checks that the technician record is usable by the engine.
// Capacity must be positive: workload ratios divide by it.
func (t Technician) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("technician: missing id")
	}
	if t.Capacity <= 0 {
		return fmt.Errorf("technician %s: capacity must be positive", t.ID)
	}
	return nil
}

// AvailabilitySet is a read-only lookup of (technician, day) availability.
// A technician with no record for a day is treated as unavailable.
type AvailabilitySet struct {
	days map[string]map[string]bool
}

// NewAvailabilitySet returns an empty availability lookup.
func NewAvailabilitySet() *AvailabilitySet {
	return &AvailabilitySet{days: make(map[string]map[string]bool)}
}

func dayKey(t time.Time) string { return t.Format("2006-01-02") }

// Set records availability for a technician on a given day.
func (a *AvailabilitySet) Set(techID string, day time.Time, available bool) {
	k := dayKey(day)
	m, ok := a.days[k]
	if !ok {
		m = make(map[string]bool)
		a.days[k] = m
	}
	m[techID] = available
}

// Available reports whether the technician has an availability record for
// the day and it is positive.
func (a *AvailabilitySet) Available(techID string, day time.Time) bool {
	if a == nil {
		return false
	}
	return a.days[dayKey(day)][techID]
}

// CountAvailable returns the number of technicians marked available on a day.
func (a *AvailabilitySet) CountAvailable(day time.Time) int {
	n := 0
	for _, ok := range a.days[dayKey(day)] {
		if ok {
			n++
		}
	}
	return n
}
