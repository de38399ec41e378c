package predict

import (
	"errors"

	"github.com/fieldops/dispatchd/core/history"
	"github.com/fieldops/dispatchd/core/logger"
)

// TrainOptions selects which rungs of the estimator ladder are reachable and
// how the final estimator is assembled.
type TrainOptions struct {
	// EnableEnhanced allows the boosted model when history is deep enough.
	EnableEnhanced bool
	// RuleWeight blends the rule table into a trained model's output.
	// 0 serves the trained model alone, 1 serves the rule table alone.
	RuleWeight float64
	// Multipliers feed the rule-based estimator, learned or priors.
	Multipliers TierMultipliers
}

// Train picks and fits the best estimator the history supports. Every
// failure falls one rung down the ladder; the rule table and the fixed
// baseline can always be served.
func Train(table *history.Table, opts TrainOptions, log logger.Logger) Estimator {
	rules := Rules{Multipliers: opts.Multipliers}

	if table == nil || len(table.Rows) == 0 || singleClass(table.Rows) {
		log.Warnf("history has no outcome variance, serving fixed baseline %.2f", DefaultBaseline)
		return Baseline{Prob: DefaultBaseline}
	}
	if table.Mode == history.ModeInsufficient {
		log.Infof("history below training threshold (%d rows), serving rule table", len(table.Rows))
		return rules
	}

	var trained Estimator
	if table.Mode == history.ModeEnhanced && opts.EnableEnhanced {
		boosted, err := TrainBoosted(table.Rows, log)
		if err == nil {
			trained = boosted
		} else if !errors.Is(err, ErrInsufficientData) {
			log.Errorf("boosted training failed: %v", err)
		}
	}
	if trained == nil {
		logistic, err := TrainLogistic(table.Rows, log)
		if err != nil {
			log.Warnf("logistic training unavailable (%v), serving rule table", err)
			return rules
		}
		trained = logistic
	}

	var final Estimator = trained
	if opts.RuleWeight > 0 {
		final = Blended{Rules: rules, Model: trained, RuleWeight: clip(opts.RuleWeight, 0, 1)}
	}
	for _, w := range Validate(final) {
		log.Warnf("model validation: %s", w)
	}
	return final
}
