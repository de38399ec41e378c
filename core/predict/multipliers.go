package predict

import (
	"github.com/fieldops/dispatchd/core/history"
	"github.com/fieldops/dispatchd/core/skills"
)

// Prior multipliers used until a tier has enough observed outcomes.
const (
	priorExact   = 1.00
	priorSame    = 0.85
	priorRelated = 0.60
	priorNone    = 0.40

	multEmpiricalMin = 10 // samples for a fully empirical multiplier
	multBlendMin     = 5  // samples for a blended multiplier
	multFloor        = 0.30
	multCeil         = 1.00
)

// TierMultipliers scales success expectations by skill-match tier. They feed
// both the rule-based estimator and the confidence computation.
type TierMultipliers map[skills.MatchType]float64

// DefaultMultipliers returns the fixed priors.
func DefaultMultipliers() TierMultipliers {
	return TierMultipliers{
		skills.MatchExact:           priorExact,
		skills.MatchSameCategory:    priorSame,
		skills.MatchRelatedCategory: priorRelated,
		skills.MatchNone:            priorNone,
	}
}

// Get returns the multiplier for a tier, falling back to the prior when the
// tier is absent.
func (m TierMultipliers) Get(tier skills.MatchType) float64 {
	if m != nil {
		if v, ok := m[tier]; ok {
			return v
		}
	}
	return DefaultMultipliers()[tier]
}

// LearnMultipliers derives tier multipliers from observed outcomes, relative
// to the exact-match success rate. Tiers with at least multEmpiricalMin
// samples use the empirical ratio, tiers between multBlendMin and
// multEmpiricalMin blend 70% empirical with 30% prior, and thinner tiers keep
// the prior. All results are clipped to [multFloor, multCeil].
func LearnMultipliers(table *history.Table) TierMultipliers {
	type tally struct{ n, ok int }
	counts := make(map[skills.MatchType]*tally)
	for _, r := range table.Rows {
		c, found := counts[r.SkillTier]
		if !found {
			c = &tally{}
			counts[r.SkillTier] = c
		}
		c.n++
		if r.Productive {
			c.ok++
		}
	}

	exactRate := priorExact
	if c, found := counts[skills.MatchExact]; found && c.n >= multBlendMin && c.ok > 0 {
		exactRate = float64(c.ok) / float64(c.n)
	}

	out := DefaultMultipliers()
	for tier, prior := range out {
		if tier == skills.MatchExact {
			continue
		}
		c, found := counts[tier]
		if !found || c.n < multBlendMin {
			continue
		}
		empirical := (float64(c.ok) / float64(c.n)) / exactRate
		var v float64
		if c.n >= multEmpiricalMin {
			v = empirical
		} else {
			v = 0.7*empirical + 0.3*prior
		}
		out[tier] = clip(v, multFloor, multCeil)
	}
	return out
}
