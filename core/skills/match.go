package skills

import "math"

// Match couples a match type with its numeric score in [0,1].
type Match struct {
	Type  MatchType
	Score float64
}

// Default tier scores. Exact is fixed at 1.0; the others act as priors that
// a learned compatibility table can override per skill pair.
const (
	defaultSameCategoryScore    = 0.85
	defaultRelatedCategoryScore = 0.60
	defaultNoneScore            = 0.30

	compatMinSamples = 3
)

// PairOutcome is one historical (required skill, technician skill) outcome
// used to learn the compatibility table.
type PairOutcome struct {
	RequiredSkill string
	TechSkill     string
	Productive    bool
}

type pairKey struct{ required, tech string }

type pairStat struct {
	score float64
	rate  float64
	count int
}

// Matcher scores (required skill, technician skill) pairs. Without learned
// data it falls back to the taxonomy tier priors.
type Matcher struct {
	tax           *Taxonomy
	compat        map[pairKey]pairStat
	unknownScore  float64
	learnedCompat bool
}

// NewMatcher returns a Matcher over the given taxonomy with prior scores.
func NewMatcher(tax *Taxonomy) *Matcher {
	return &Matcher{
		tax:          tax,
		compat:       make(map[pairKey]pairStat),
		unknownScore: defaultNoneScore,
	}
}

// Learn builds the skill-pair compatibility table from historical outcomes.
// Scores are historical success rates normalised by the exact-match
// baseline; pairs with fewer than three samples keep conservative defaults.
func (m *Matcher) Learn(history []PairOutcome) {
	type agg struct{ success, total int }
	pairs := make(map[pairKey]*agg)
	var exactSuccess, exactTotal int
	for _, h := range history {
		if h.RequiredSkill == "" || h.TechSkill == "" {
			continue
		}
		k := pairKey{h.RequiredSkill, h.TechSkill}
		a, ok := pairs[k]
		if !ok {
			a = &agg{}
			pairs[k] = a
		}
		a.total++
		if h.Productive {
			a.success++
		}
		if h.RequiredSkill == h.TechSkill {
			exactTotal++
			if h.Productive {
				exactSuccess++
			}
		}
	}
	baseline := 0.5
	if exactTotal > 0 {
		baseline = float64(exactSuccess) / float64(exactTotal)
	}

	m.compat = make(map[pairKey]pairStat, len(pairs))
	var nonExactSum float64
	var nonExactN int
	for k, a := range pairs {
		rate := float64(a.success) / float64(a.total)
		var score float64
		switch {
		case k.required == k.tech:
			score = 1.0
		case a.total < compatMinSamples:
			score = defaultNoneScore
		case baseline <= 0:
			score = 0.5
		default:
			score = clamp(0.3+0.7*rate/baseline, 0.1, 0.95)
		}
		m.compat[k] = pairStat{score: score, rate: rate, count: a.total}
		if k.required != k.tech {
			nonExactSum += score
			nonExactN++
		}
	}
	if nonExactN > 0 {
		m.unknownScore = clamp(nonExactSum/float64(nonExactN), 0.2, 0.6)
	}
	m.learnedCompat = true
}

// Match returns the match type and score for a required/technician skill
// pair. Exact matches always score 1.0.
func (m *Matcher) Match(required, skill string) Match {
	typ := m.tax.Classify(required, skill)
	if typ == MatchExact {
		return Match{Type: MatchExact, Score: 1.0}
	}
	if m.learnedCompat {
		if s, ok := m.compat[pairKey{required, skill}]; ok {
			return Match{Type: typ, Score: s.score}
		}
		// Some history records the pair in the opposite direction.
		if s, ok := m.compat[pairKey{skill, required}]; ok {
			return Match{Type: typ, Score: s.score}
		}
		return Match{Type: typ, Score: m.unknownScore}
	}
	switch typ {
	case MatchSameCategory:
		return Match{Type: typ, Score: defaultSameCategoryScore}
	case MatchRelatedCategory:
		return Match{Type: typ, Score: defaultRelatedCategoryScore}
	default:
		return Match{Type: MatchNone, Score: defaultNoneScore}
	}
}

// BestMatch scores the required skill against every skill the technician
// has and returns the closest match.
func (m *Matcher) BestMatch(required string, techSkills []string) Match {
	best := Match{Type: MatchNone, Score: 0}
	first := true
	for _, s := range techSkills {
		cur := m.Match(required, s)
		if first || cur.Type.Better(best.Type) || (cur.Type == best.Type && cur.Score > best.Score) {
			best = cur
			first = false
		}
	}
	return best
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
