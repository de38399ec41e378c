package model

import (
	"fmt"
	"time"
)

// Priority classifies how urgent a dispatch is.
type Priority string

const (
	PriorityCritical Priority = "Critical"
	PriorityHigh     Priority = "High"
	PriorityNormal   Priority = "Normal"
	PriorityLow      Priority = "Low"
)

// Factor returns the multiplicative adjustment applied by the rule-based
// success estimator for this priority. Unknown priorities are neutral.
func (p Priority) Factor() float64 {
	switch p {
	case PriorityCritical:
		return 1.10
	case PriorityHigh:
		return 1.05
	case PriorityLow:
		return 0.95
	default:
		return 1.0
	}
}

// Dispatch is a single field job waiting for a technician. Dispatches are
// immutable once loaded; the selector consumes each one exactly once.
type Dispatch struct {
	ID            string
	RequiredSkill string
	City          string
	Latitude      float64
	Longitude     float64
	Appointment   time.Time // scheduled start of the appointment window
	Priority      Priority
	ServiceTier   string
	Equipment     string // installed equipment type, "None" when absent
	FirstTimeFix  bool

	// InitialTechnician holds the incumbent assignment from the source
	// system, if any. Used only for before/after comparison in the run
	// summary.
	InitialTechnician string
}

// Date returns the appointment day, truncated to midnight UTC.
func (d Dispatch) Date() time.Time {
	y, m, day := d.Appointment.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// Validate checks the fields the engine cannot work without.
func (d Dispatch) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("dispatch: missing id")
	}
	if d.RequiredSkill == "" {
		return fmt.Errorf("dispatch %s: missing required skill", d.ID)
	}
	if d.Appointment.IsZero() {
		return fmt.Errorf("dispatch %s: missing appointment time", d.ID)
	}
	return nil
}
