// Package metrics defines the sink consumed by the assignment engine.
// Implementations live under infra/metrics.
package metrics

import "time"

// AssignmentEvent is emitted once per dispatch, assigned or not.
type AssignmentEvent struct {
	DispatchID   string
	TechnicianID string
	City         string
	Level        string
	Assigned     bool
	Reason       string
	DistanceKM   float64
	SuccessProb  float64
	FinalScore   float64
	Time         time.Time
}

// RunSummary is emitted once at the end of a batch run.
type RunSummary struct {
	RunID          string
	Estimator      string
	Total          int
	Assigned       int
	Unassigned     int
	AssignmentRate float64
	AvgDistanceKM  float64
	AvgSuccessProb float64
	Duration       time.Duration
	Time           time.Time
}

// Sink receives assignment telemetry. Implementations must be safe for
// concurrent use.
type Sink interface {
	RecordAssignment(ev AssignmentEvent) error
	RecordRunSummary(s RunSummary) error
	Flush() error
	Close() error
}

// Nop discards all events.
type Nop struct{}

func (Nop) RecordAssignment(AssignmentEvent) error { return nil }
func (Nop) RecordRunSummary(RunSummary) error      { return nil }
func (Nop) Flush() error                           { return nil }
func (Nop) Close() error                           { return nil }
