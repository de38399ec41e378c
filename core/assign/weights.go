// Package assign runs the batch assignment loop: candidate generation,
// scoring, deterministic selection and capacity commits.
package assign

import (
	"github.com/fieldops/dispatchd/core/history"
	"github.com/fieldops/dispatchd/core/logger"
	"github.com/fieldops/dispatchd/core/predict"
)

// Weights balances predicted success against confidence in the final score.
// They always sum to 1.
type Weights struct {
	Success    float64
	Confidence float64
}

// DefaultWeights is used when optimization is disabled or history is thin.
var DefaultWeights = Weights{Success: 0.75, Confidence: 0.25}

// weightMinRecords is the history size below which optimization is skipped.
const weightMinRecords = 50

var weightGrid = []Weights{
	{0.55, 0.45},
	{0.60, 0.40},
	{0.65, 0.35},
	{0.70, 0.30},
	{0.75, 0.25},
}

// OptimizeWeights grid-searches the score weights against history: each
// candidate weighting is scored by the AUC of the weighted combination of
// skill score and distance proximity against the recorded outcome. Ties keep
// the earlier grid entry so runs are reproducible.
func OptimizeWeights(table *history.Table, log logger.Logger) Weights {
	if table == nil || len(table.Rows) < weightMinRecords {
		log.Infof("history too thin for weight optimization, using defaults %.2f/%.2f",
			DefaultWeights.Success, DefaultWeights.Confidence)
		return DefaultWeights
	}

	maxDist := 0.0
	for _, r := range table.Rows {
		if r.DistanceKM > maxDist {
			maxDist = r.DistanceKM
		}
	}
	if maxDist <= 0 {
		return DefaultWeights
	}

	outcomes := make([]bool, len(table.Rows))
	for i, r := range table.Rows {
		outcomes[i] = r.Productive
	}

	best := DefaultWeights
	bestAUC := -1.0
	scores := make([]float64, len(table.Rows))
	for _, w := range weightGrid {
		for i, r := range table.Rows {
			proximity := 1 - r.DistanceKM/maxDist
			scores[i] = w.Success*r.SkillScore + w.Confidence*proximity
		}
		if auc := predict.AUC(scores, outcomes); auc > bestAUC {
			bestAUC = auc
			best = w
		}
	}
	log.Infof("optimized score weights: success=%.2f confidence=%.2f auc=%.3f",
		best.Success, best.Confidence, bestAUC)
	return best
}
