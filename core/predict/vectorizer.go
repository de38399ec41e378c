package predict

import (
	"sort"

	"github.com/fieldops/dispatchd/core/history"
)

// vectorizer turns the full feature record into a numeric vector for the
// enhanced model. Categorical vocabularies are built from the training rows
// and sorted so the column layout is stable across runs; unseen categories at
// prediction time contribute an all-zero block.
type vectorizer struct {
	tiers      []string
	equipments []string
}

func newVectorizer(rows []history.Row) *vectorizer {
	tierSet := make(map[string]struct{})
	equipSet := make(map[string]struct{})
	for _, r := range rows {
		tierSet[r.ServiceTier] = struct{}{}
		equipSet[r.Equipment] = struct{}{}
	}
	return &vectorizer{tiers: sortedKeys(tierSet), equipments: sortedKeys(equipSet)}
}

func (v *vectorizer) vector(f Features) []float64 {
	out := make([]float64, 0, 8+len(v.tiers)+len(v.equipments))
	out = append(out,
		f.DistanceKM,
		f.SkillScore,
		f.SkillTier.Encode(),
		f.WorkloadRatio,
		float64(f.Hour),
		float64(f.Weekday),
		boolFeature(f.Weekend),
		boolFeature(f.FirstTimeFix),
	)
	out = appendOneHot(out, v.tiers, f.ServiceTier)
	out = appendOneHot(out, v.equipments, f.Equipment)
	return out
}

func appendOneHot(out []float64, vocab []string, value string) []float64 {
	for _, v := range vocab {
		if v == value {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
	}
	return out
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
