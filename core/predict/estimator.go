// Package predict trains and serves dispatch success estimators. Which
// estimator a run gets depends on how much usable history is available: a
// fixed baseline when there is nothing to learn from, a rule-based model for
// thin history, a logistic model once the basic threshold is met, and
// gradient-boosted trees when the enhanced threshold is met and enabled.
package predict

import (
	"errors"
	"time"

	"github.com/fieldops/dispatchd/core/model"
	"github.com/fieldops/dispatchd/core/skills"
)

// ErrInsufficientData is returned by trainers when the history cannot support
// the requested model. Callers fall back down the estimator ladder.
var ErrInsufficientData = errors.New("predict: insufficient training data")

// Features is the fixed record every estimator predicts from. Basic models
// read only the first three fields; the enhanced model reads all of them.
type Features struct {
	DistanceKM    float64
	SkillScore    float64
	SkillTier     skills.MatchType
	WorkloadRatio float64

	Hour         int
	Weekday      time.Weekday
	Weekend      bool
	ServiceTier  string
	Equipment    string
	FirstTimeFix bool

	Priority     model.Priority
	TechnicianID string
}

// Estimator maps candidate features to a success probability in [0, 1].
type Estimator interface {
	Predict(f Features) float64
	Name() string
}

// DefaultBaseline is the probability served when no model can be trained.
const DefaultBaseline = 0.60

// Baseline is the bottom of the estimator ladder: a constant probability,
// used when history is empty or contains a single outcome class.
type Baseline struct {
	Prob float64
}

func (b Baseline) Predict(Features) float64 { return b.Prob }
func (b Baseline) Name() string             { return "baseline" }

// Blended mixes the rule-based estimate with a trained model's estimate.
// RuleWeight 1 is pure rules, 0 is pure model.
type Blended struct {
	Rules      Estimator
	Model      Estimator
	RuleWeight float64
}

func (b Blended) Predict(f Features) float64 {
	return b.RuleWeight*b.Rules.Predict(f) + (1-b.RuleWeight)*b.Model.Predict(f)
}

func (b Blended) Name() string { return "blended(" + b.Rules.Name() + "," + b.Model.Name() + ")" }

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
