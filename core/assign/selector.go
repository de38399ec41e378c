package assign

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/dispatchd/core/geo"
	"github.com/fieldops/dispatchd/core/logger"
	"github.com/fieldops/dispatchd/core/metrics"
	"github.com/fieldops/dispatchd/core/model"
	"github.com/fieldops/dispatchd/core/predict"
	"github.com/fieldops/dispatchd/core/skills"
)

// Default distance bands for assignment warnings, in kilometers.
const (
	DefaultIdealDistanceKM = 50.0
	DefaultMaxDistanceKM   = 250.0
)

// Assignment warning texts.
const (
	WarnOverCapacity  = "assigned above 100% capacity"
	WarnLowSuccess    = "low success probability accepted"
	WarnBeyondIdeal   = "distance above ideal range"
	WarnBeyondMaximum = "distance above maximum range"
)

// Options control one batch run.
type Options struct {
	// UseML switches candidate generation from cascading skill levels to the
	// exhaustive strategy and enforces MinSuccessThreshold.
	UseML bool
	// MinSuccessThreshold rejects candidates below this predicted success
	// probability when UseML is set. In rule mode it only produces warnings.
	MinSuccessThreshold float64
	// MaxCapacityRatio bounds running assignments at capacity*ratio.
	MaxCapacityRatio float64

	Weights     Weights
	Multipliers predict.TierMultipliers

	IdealDistanceKM float64
	MaxDistanceKM   float64
}

func (o Options) idealDistance() float64 {
	if o.IdealDistanceKM > 0 {
		return o.IdealDistanceKM
	}
	return DefaultIdealDistanceKM
}

func (o Options) maxDistance() float64 {
	if o.MaxDistanceKM > 0 {
		return o.MaxDistanceKM
	}
	return DefaultMaxDistanceKM
}

// Summary aggregates one batch run.
type Summary struct {
	Total          int
	Assigned       int
	Unassigned     int
	AssignmentRate float64
	AvgDistanceKM  float64
	AvgSuccessProb float64
	LevelCounts    map[string]int
	WarningCount   int

	// Incumbent comparison against the technicians the input already named.
	// The distance delta is the mean of (chosen - incumbent) travel distance
	// over replaced incumbents; negative means the batch moved work closer.
	IncumbentRetained        int
	IncumbentReplaced        int
	IncumbentDistanceDeltaKM float64
}

// Result is the output of one batch run.
type Result struct {
	RunID       string
	Assignments []model.Assignment
	Summary     Summary
	Duration    time.Duration
}

// Selector assigns a batch of dispatches. Dispatches are processed strictly
// in input order: earlier dispatches consume capacity that later ones no
// longer see, which is part of the batch contract.
type Selector struct {
	Techs     []model.Technician
	Avail     *model.AvailabilitySet
	Matcher   *skills.Matcher
	Estimator predict.Estimator
	Sink      metrics.Sink
	Log       logger.Logger
	Opts      Options

	ledger *Ledger
}

type scored struct {
	candidate
	prob  float64
	conf  float64
	final float64
}

// Run assigns the batch and returns one assignment record per dispatch, in
// input order.
func (s *Selector) Run(dispatches []model.Dispatch) *Result {
	start := time.Now()
	if s.Sink == nil {
		s.Sink = metrics.Nop{}
	}
	if s.Log == nil {
		s.Log = logger.Nop{}
	}
	s.ledger = NewLedger(s.Techs)

	res := &Result{
		RunID:       uuid.NewString(),
		Assignments: make([]model.Assignment, 0, len(dispatches)),
	}
	res.Summary.LevelCounts = make(map[string]int)

	byID := make(map[string]model.Technician, len(s.Techs))
	for _, t := range s.Techs {
		byID[t.ID] = t
	}

	var distSum, probSum float64
	var deltaSum float64
	var deltaN int
	for _, d := range dispatches {
		a := s.assignOne(d)
		res.Assignments = append(res.Assignments, a)

		res.Summary.Total++
		res.Summary.LevelCounts[a.Level]++
		res.Summary.WarningCount += len(a.Warnings)
		if a.Assigned() {
			res.Summary.Assigned++
			distSum += a.DistanceKM
			probSum += a.SuccessProb
			if d.InitialTechnician != "" {
				if d.InitialTechnician == a.TechnicianID {
					res.Summary.IncumbentRetained++
				} else {
					res.Summary.IncumbentReplaced++
					if inc, ok := byID[d.InitialTechnician]; ok {
						deltaSum += a.DistanceKM - geo.DistanceKM(d.Latitude, d.Longitude, inc.Latitude, inc.Longitude)
						deltaN++
					}
				}
			}
		} else {
			res.Summary.Unassigned++
		}

		if err := s.Sink.RecordAssignment(metrics.AssignmentEvent{
			DispatchID:   d.ID,
			TechnicianID: a.TechnicianID,
			City:         d.City,
			Level:        a.Level,
			Assigned:     a.Assigned(),
			Reason:       a.Reason,
			DistanceKM:   a.DistanceKM,
			SuccessProb:  a.SuccessProb,
			FinalScore:   a.FinalScore,
			Time:         time.Now(),
		}); err != nil {
			s.Log.Errorf("metrics sink rejected assignment event: %v", err)
		}
	}

	if res.Summary.Assigned > 0 {
		res.Summary.AssignmentRate = float64(res.Summary.Assigned) / float64(res.Summary.Total)
		res.Summary.AvgDistanceKM = distSum / float64(res.Summary.Assigned)
		res.Summary.AvgSuccessProb = probSum / float64(res.Summary.Assigned)
	}
	if deltaN > 0 {
		res.Summary.IncumbentDistanceDeltaKM = deltaSum / float64(deltaN)
	}
	res.Duration = time.Since(start)

	if err := s.Sink.RecordRunSummary(metrics.RunSummary{
		RunID:          res.RunID,
		Estimator:      s.Estimator.Name(),
		Total:          res.Summary.Total,
		Assigned:       res.Summary.Assigned,
		Unassigned:     res.Summary.Unassigned,
		AssignmentRate: res.Summary.AssignmentRate,
		AvgDistanceKM:  res.Summary.AvgDistanceKM,
		AvgSuccessProb: res.Summary.AvgSuccessProb,
		Duration:       res.Duration,
		Time:           time.Now(),
	}); err != nil {
		s.Log.Errorf("metrics sink rejected run summary: %v", err)
	}
	s.Log.Infof("run %s: %d/%d assigned (%.1f%%) in %s",
		res.RunID, res.Summary.Assigned, res.Summary.Total,
		100*res.Summary.AssignmentRate, res.Duration)
	return res
}

func (s *Selector) assignOne(d model.Dispatch) model.Assignment {
	var cands []candidate
	var level string
	if s.Opts.UseML {
		cands, level = s.exhaustive(d)
	} else {
		cands, level = s.cascade(d)
	}
	if len(cands) == 0 {
		s.Log.Debugf("dispatch %s: no eligible technician", d.ID)
		return model.Assignment{DispatchID: d.ID, Level: LevelNoMatch, Reason: model.ReasonNoMatch}
	}

	pool := s.score(d, cands)
	if s.Opts.UseML {
		kept := pool[:0]
		for _, c := range pool {
			if c.prob >= s.Opts.MinSuccessThreshold {
				kept = append(kept, c)
			}
		}
		if len(kept) == 0 {
			s.Log.Debugf("dispatch %s: all %d candidates below success threshold %.2f",
				d.ID, len(pool), s.Opts.MinSuccessThreshold)
			return model.Assignment{DispatchID: d.ID, Level: LevelNoMatch, Reason: model.ReasonBelowThreshold}
		}
		pool = kept
	}

	best := pick(pool)
	s.ledger.Commit(best.tech.ID)

	a := model.Assignment{
		DispatchID:    d.ID,
		TechnicianID:  best.tech.ID,
		DistanceKM:    best.distance,
		WorkloadRatio: s.ledger.Ratio(best.tech),
		SkillMatch:    string(best.match.Type),
		Confidence:    best.conf,
		SuccessProb:   best.prob,
		FinalScore:    best.final,
		Level:         level,
	}
	if a.WorkloadRatio > 1+capacityEpsilon {
		a.Warnings = append(a.Warnings, WarnOverCapacity)
	}
	if !s.Opts.UseML && best.prob < s.Opts.MinSuccessThreshold {
		a.Warnings = append(a.Warnings, WarnLowSuccess)
	}
	if best.distance > s.Opts.maxDistance() {
		a.Warnings = append(a.Warnings, WarnBeyondMaximum)
	} else if best.distance > s.Opts.idealDistance() {
		a.Warnings = append(a.Warnings, WarnBeyondIdeal)
	}
	return a
}

// score computes success probability, confidence and the final score for
// every candidate. Confidence is normalized within the candidate set: the
// farthest and busiest candidates define the scale.
func (s *Selector) score(d model.Dispatch, cands []candidate) []scored {
	maxDist, maxWork := 0.0, 0.0
	for _, c := range cands {
		if c.distance > maxDist {
			maxDist = c.distance
		}
		if c.workload > maxWork {
			maxWork = c.workload
		}
	}

	out := make([]scored, 0, len(cands))
	for _, c := range cands {
		f := predict.Features{
			DistanceKM:    c.distance,
			SkillScore:    c.match.Score,
			SkillTier:     c.match.Type,
			WorkloadRatio: c.workload,
			Hour:          d.Appointment.Hour(),
			Weekday:       d.Appointment.Weekday(),
			Weekend:       d.Appointment.Weekday() == time.Saturday || d.Appointment.Weekday() == time.Sunday,
			ServiceTier:   d.ServiceTier,
			Equipment:     d.Equipment,
			FirstTimeFix:  d.FirstTimeFix,
			Priority:      d.Priority,
			TechnicianID:  c.tech.ID,
		}
		prob := s.Estimator.Predict(f)

		normDist, normWork := 0.0, 0.0
		if maxDist > 0 {
			normDist = c.distance / maxDist
		}
		if maxWork > 0 {
			normWork = c.workload / maxWork
		}
		conf := s.Opts.Multipliers.Get(c.match.Type) * (1 - (0.6*normDist + 0.4*normWork))
		if conf < 0 {
			conf = 0
		}

		out = append(out, scored{
			candidate: c,
			prob:      prob,
			conf:      conf,
			final:     s.Opts.Weights.Success*prob + s.Opts.Weights.Confidence*conf,
		})
	}
	return out
}

// pick orders candidates by final score descending, then distance ascending,
// then technician ID, and returns the winner. Candidates whose score came
// out NaN sort behind every scored candidate, so a batch with corrupt
// coordinates still falls back to the nearest usable technician.
func pick(pool []scored) scored {
	sort.SliceStable(pool, func(i, j int) bool {
		fi, fj := pool[i].final, pool[j].final
		if math.IsNaN(fi) != math.IsNaN(fj) {
			return !math.IsNaN(fi)
		}
		if !math.IsNaN(fi) && fi != fj {
			return fi > fj
		}
		di, dj := pool[i].distance, pool[j].distance
		if math.IsNaN(di) != math.IsNaN(dj) {
			return !math.IsNaN(di)
		}
		if !math.IsNaN(di) && di != dj {
			return di < dj
		}
		return pool[i].tech.ID < pool[j].tech.ID
	})
	return pool[0]
}
