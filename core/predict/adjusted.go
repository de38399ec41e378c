package predict

import "github.com/fieldops/dispatchd/core/perf"

// Adjusted wraps an estimator and scales its output by the candidate
// technician's historical success rate relative to the fleet baseline. A
// technician at the baseline is unchanged; the adjustment band is
// 0.7 + 0.3*rate/baseline, so even a zero-rate technician keeps 70% of the
// base probability.
type Adjusted struct {
	Base    Estimator
	Tracker *perf.Tracker
}

func (a Adjusted) Name() string { return a.Base.Name() + "+perf" }

func (a Adjusted) Predict(f Features) float64 {
	p := a.Base.Predict(f)
	profile, ok := a.Tracker.Profile(f.TechnicianID)
	if !ok {
		return p
	}
	return clip(p*(0.7+0.3*profile.SuccessRate/perf.BaselineSuccessRate), 0, 1)
}
