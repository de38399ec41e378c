package assign

import (
	"github.com/fieldops/dispatchd/core/geo"
	"github.com/fieldops/dispatchd/core/model"
	"github.com/fieldops/dispatchd/core/skills"
)

// Candidate-generation level labels recorded on assignments.
const (
	LevelExact        = "level_1"
	LevelSameCategory = "level_2"
	LevelRelated      = "level_3"
	LevelMLExhaustive = "ml_exhaustive"
	LevelNoMatch      = "no_match"
)

// candidate is one eligible technician for one dispatch, with the inputs the
// scorer needs. workload is the ratio before this dispatch commits.
type candidate struct {
	tech     model.Technician
	match    skills.Match
	distance float64
	workload float64
}

// eligible applies the hard filter: available on the dispatch day, working
// the dispatch city, and capacity headroom for one more job.
func (s *Selector) eligible(d model.Dispatch, t model.Technician) bool {
	if !s.Avail.Available(t.ID, d.Appointment) {
		return false
	}
	if !t.SameCity(d.City) {
		return false
	}
	return s.ledger.HasHeadroom(t, s.Opts.MaxCapacityRatio)
}

func (s *Selector) newCandidate(d model.Dispatch, t model.Technician) candidate {
	return candidate{
		tech:     t,
		match:    s.Matcher.BestMatch(d.RequiredSkill, t.Skills()),
		distance: geo.DistanceKM(d.Latitude, d.Longitude, t.Latitude, t.Longitude),
		workload: s.ledger.Ratio(t),
	}
}

// cascade generates candidates level by level and stops at the first level
// that produces any: exact matches first, then same category, then related.
func (s *Selector) cascade(d model.Dispatch) ([]candidate, string) {
	levels := []struct {
		label string
		tier  skills.MatchType
	}{
		{LevelExact, skills.MatchExact},
		{LevelSameCategory, skills.MatchSameCategory},
		{LevelRelated, skills.MatchRelatedCategory},
	}
	for _, lvl := range levels {
		var out []candidate
		for _, t := range s.Techs {
			if !s.eligible(d, t) {
				continue
			}
			c := s.newCandidate(d, t)
			if c.match.Type == lvl.tier {
				out = append(out, c)
			}
		}
		if len(out) > 0 {
			return out, lvl.label
		}
	}
	return nil, LevelNoMatch
}

// exhaustive generates every eligible technician regardless of skill tier.
// The scorer, not the generator, decides how much a weak match costs.
func (s *Selector) exhaustive(d model.Dispatch) ([]candidate, string) {
	var out []candidate
	for _, t := range s.Techs {
		if s.eligible(d, t) {
			out = append(out, s.newCandidate(d, t))
		}
	}
	if len(out) == 0 {
		return nil, LevelNoMatch
	}
	return out, LevelMLExhaustive
}
