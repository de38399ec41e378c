package model

import "time"

// Assignment outcome reason codes for unassigned dispatches.
const (
	ReasonNoMatch        = "no match found"
	ReasonBelowThreshold = "below success threshold"
)

// Assignment is the terminal output record for one dispatch. It is created
// exactly once and never mutated after being appended to the result.
type Assignment struct {
	DispatchID   string
	TechnicianID string // empty when unassigned

	DistanceKM    float64
	WorkloadRatio float64 // technician workload at the moment of assignment
	SkillMatch    string  // exact / same_category / related_category / none
	Confidence    float64
	SuccessProb   float64
	FinalScore    float64

	// Level names the candidate-generation stage that produced the match:
	// level_1..level_3 for cascading fallback, ml_exhaustive for the ML
	// strategy, no_match when unassigned.
	Level    string
	Reason   string // populated only when unassigned
	Warnings []string
}

// Assigned reports whether a technician was committed for the dispatch.
func (a Assignment) Assigned() bool { return a.TechnicianID != "" }

// HistoryRecord is one completed dispatch from the historical outcomes
// table. It carries everything needed to rebuild training features.
type HistoryRecord struct {
	DispatchID    string
	RequiredSkill string
	City          string
	TechnicianID  string
	Appointment   time.Time
	DistanceKM    float64
	DurationMin   float64
	ServiceTier   string
	Equipment     string
	FirstTimeFix  bool
	Productive    bool // the binary success outcome
}

// PerformanceProfile is a per-technician read-only aggregate derived from
// historical outcomes.
type PerformanceProfile struct {
	TechnicianID string
	SuccessRate  float64
	JobCount     int
	AvgDistance  float64
	AvgWorkload  float64
	Score        float64 // composite performance score
}
