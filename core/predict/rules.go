package predict

import "github.com/fieldops/dispatchd/core/skills"

// Rule-based success table, used when history is too thin to train a model
// and as the rule side of a blended estimator.
const (
	ruleBaseExact   = 0.92
	ruleBaseSame    = 0.88
	ruleBaseRelated = 0.85
	ruleBaseNone    = 0.60

	ruleShortDistanceKM  = 10.0
	ruleShortDistanceAdd = 0.03
	ruleLowWorkload      = 0.80
	ruleLowWorkloadAdd   = 0.02
	ruleAlignedScore     = 0.95
)

// Rules scores candidates from a fixed decision table. When Multipliers is
// set, learned tier multipliers replace the static non-exact baselines.
type Rules struct {
	Multipliers TierMultipliers
}

func (r Rules) Name() string { return "rules" }

func (r Rules) Predict(f Features) float64 {
	base := r.tierBase(f.SkillTier)
	short := f.DistanceKM < ruleShortDistanceKM
	light := f.WorkloadRatio < ruleLowWorkload

	p := base
	if short {
		p += ruleShortDistanceAdd
	}
	if light {
		p += ruleLowWorkloadAdd
	}
	if f.SkillTier == skills.MatchExact && short && light {
		p = ruleAlignedScore
	}
	return clip(p*f.Priority.Factor(), 0, 1)
}

func (r Rules) tierBase(tier skills.MatchType) float64 {
	if tier == skills.MatchExact {
		return ruleBaseExact
	}
	if r.Multipliers != nil {
		return clip(ruleBaseExact*r.Multipliers.Get(tier), 0.30, ruleBaseExact)
	}
	switch tier {
	case skills.MatchSameCategory:
		return ruleBaseSame
	case skills.MatchRelatedCategory:
		return ruleBaseRelated
	default:
		return ruleBaseNone
	}
}
