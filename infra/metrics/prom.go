package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/fieldops/dispatchd/core/metrics"
)

// PromSink records assignment events in Prometheus metrics.
type PromSink struct {
	assignments *prometheus.CounterVec
	distance    *prometheus.HistogramVec
	successProb *prometheus.HistogramVec
	runRate     prometheus.Gauge
}

// NewPromSink registers assignment metrics on the default Prometheus
// registerer. The Prometheus server should be started separately.
func NewPromSink() (coremetrics.Sink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_assignments_total",
		Help: "Total number of dispatch assignment decisions",
	}, []string{"city", "level", "assigned"})
	distance := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_assignment_distance_km",
		Help:    "Technician-to-dispatch distance of committed assignments",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
	}, []string{"city", "level"})
	successProb := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_assignment_success_probability",
		Help:    "Predicted success probability of committed assignments",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	}, []string{"city", "level"})
	runRate := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_run_assignment_rate",
		Help: "Assignment rate of the most recent batch run",
	})

	if err := reg.Register(assignments); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			assignments = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(distance); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			distance = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(successProb); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			successProb = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(runRate); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			runRate = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		assignments: assignments,
		distance:    distance,
		successProb: successProb,
		runRate:     runRate,
	}, nil
}

// RecordAssignment increments the decision counter and, for committed
// assignments, observes distance and predicted success.
func (s *PromSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	s.assignments.WithLabelValues(ev.City, ev.Level, strconv.FormatBool(ev.Assigned)).Inc()
	if ev.Assigned {
		s.distance.WithLabelValues(ev.City, ev.Level).Observe(ev.DistanceKM)
		s.successProb.WithLabelValues(ev.City, ev.Level).Observe(ev.SuccessProb)
	}
	return nil
}

// RecordRunSummary sets the batch-level gauge.
func (s *PromSink) RecordRunSummary(sum coremetrics.RunSummary) error {
	if s.runRate != nil {
		s.runRate.Set(sum.AssignmentRate)
	}
	return nil
}

func (s *PromSink) Flush() error { return nil }
func (s *PromSink) Close() error { return nil }
