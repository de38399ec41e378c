// Package skills holds the static skill taxonomy and the match scoring used
// by both candidate generation and the success models.
package skills

// MatchType classifies how well a technician skill fits a required skill.
type MatchType string

const (
	MatchExact           MatchType = "exact"
	MatchSameCategory    MatchType = "same_category"
	MatchRelatedCategory MatchType = "related_category"
	MatchNone            MatchType = "none"
)

// rank orders match types from best to worst. Lower is better.
func (m MatchType) rank() int {
	switch m {
	case MatchExact:
		return 0
	case MatchSameCategory:
		return 1
	case MatchRelatedCategory:
		return 2
	default:
		return 3
	}
}

// Better reports whether m is a strictly closer match than other.
func (m MatchType) Better(other MatchType) bool { return m.rank() < other.rank() }

// Encode maps the match type onto the numeric feature used by the enhanced
// success model: 2 exact, 1 same category, 0 otherwise.
func (m MatchType) Encode() float64 {
	switch m {
	case MatchExact:
		return 2
	case MatchSameCategory:
		return 1
	default:
		return 0
	}
}

// Taxonomy is the fixed skill -> category mapping plus a symmetric category
// adjacency relation. Loaded once at startup, never mutated.
type Taxonomy struct {
	categoryOf map[string]string
	members    map[string][]string
	related    map[string][]string
}

// NewTaxonomy builds a taxonomy from category membership and adjacency
// tables. The adjacency lists are taken as given; callers provide them
// already symmetric.
func NewTaxonomy(members map[string][]string, related map[string][]string) *Taxonomy {
	t := &Taxonomy{
		categoryOf: make(map[string]string),
		members:    make(map[string][]string, len(members)),
		related:    make(map[string][]string, len(related)),
	}
	for cat, skills := range members {
		cp := make([]string, len(skills))
		copy(cp, skills)
		t.members[cat] = cp
		for _, s := range skills {
			t.categoryOf[s] = cat
		}
	}
	for cat, adj := range related {
		cp := make([]string, len(adj))
		copy(cp, adj)
		t.related[cat] = cp
	}
	return t
}

// DefaultTaxonomy returns the built-in field-service skill taxonomy.
func DefaultTaxonomy() *Taxonomy {
	return NewTaxonomy(
		map[string][]string{
			"critical":     {"Network troubleshooting", "Line repair", "Service restoration", "Connectivity diagnosis"},
			"installation": {"Fiber ONT installation", "Copper ONT installation", "GPON equipment setup", "Router installation"},
			"upgrade":      {"Equipment upgrade", "Bandwidth upgrade", "Service migration"},
			"support":      {"Network support", "Cable maintenance", "Equipment check"},
		},
		map[string][]string{
			"critical":     {"support", "installation"},
			"installation": {"upgrade", "support"},
			"upgrade":      {"installation", "support"},
			"support":      {"critical", "installation"},
		},
	)
}

// Category returns the category of a skill, if it is in the taxonomy.
func (t *Taxonomy) Category(skill string) (string, bool) {
	c, ok := t.categoryOf[skill]
	return c, ok
}

// Members returns the skills in a category.
func (t *Taxonomy) Members(category string) []string { return t.members[category] }

// RelatedCategories returns the categories adjacent to the given one.
func (t *Taxonomy) RelatedCategories(category string) []string { return t.related[category] }

// Classify returns the match type between a required skill and a technician
// skill using only taxonomy lookups.
func (t *Taxonomy) Classify(required, skill string) MatchType {
	if required == "" || skill == "" {
		return MatchNone
	}
	if required == skill {
		return MatchExact
	}
	reqCat, okReq := t.Category(required)
	skillCat, okSkill := t.Category(skill)
	if !okReq || !okSkill {
		return MatchNone
	}
	if reqCat == skillCat {
		return MatchSameCategory
	}
	for _, adj := range t.related[reqCat] {
		if adj == skillCat {
			return MatchRelatedCategory
		}
	}
	return MatchNone
}
