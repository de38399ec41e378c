package predict

import (
	"fmt"

	"github.com/fieldops/dispatchd/core/skills"
)

// Counterfactual probes used to sanity-check a trained model against the
// business principles it should have learned. Violations are warnings, not
// errors: a model trained on skewed history may still be the best available.
const (
	probeNearKM    = 5.0
	probeFarKM     = 40.0
	probeLightLoad = 0.20
	probeHeavyLoad = 0.95
	probeWeakSkill = 0.30
	probeMidSkill  = 0.80
	probeMidLoad   = 0.60
	probeMidKM     = 15.0
)

// Validate probes the estimator with paired feature records that differ in a
// single input and reports every case where the preferable input did not
// score strictly higher. A tie is a failure too: a model that predicts the
// same probability at 5km and 40km has not learned distance at all.
func Validate(e Estimator) []string {
	var warnings []string

	base := Features{
		DistanceKM:    probeMidKM,
		SkillScore:    probeMidSkill,
		SkillTier:     skills.MatchSameCategory,
		WorkloadRatio: probeMidLoad,
		Hour:          10,
	}

	near, far := base, base
	near.DistanceKM = probeNearKM
	far.DistanceKM = probeFarKM
	if e.Predict(near) <= e.Predict(far) {
		warnings = append(warnings, fmt.Sprintf(
			"model does not favor near jobs: p(%.0fkm)=%.3f vs p(%.0fkm)=%.3f",
			probeNearKM, e.Predict(near), probeFarKM, e.Predict(far)))
	}

	light, heavy := base, base
	light.WorkloadRatio = probeLightLoad
	heavy.WorkloadRatio = probeHeavyLoad
	if e.Predict(light) <= e.Predict(heavy) {
		warnings = append(warnings, fmt.Sprintf(
			"model does not favor idle technicians: p(load %.2f)=%.3f vs p(load %.2f)=%.3f",
			probeLightLoad, e.Predict(light), probeHeavyLoad, e.Predict(heavy)))
	}

	strong, weak := base, base
	strong.SkillScore = 1.0
	strong.SkillTier = skills.MatchExact
	weak.SkillScore = probeWeakSkill
	weak.SkillTier = skills.MatchNone
	if e.Predict(strong) <= e.Predict(weak) {
		warnings = append(warnings, fmt.Sprintf(
			"model does not favor skill matches: p(exact)=%.3f vs p(none)=%.3f",
			e.Predict(strong), e.Predict(weak)))
	}

	return warnings
}
