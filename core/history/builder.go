// Package history turns raw historical dispatch outcomes into the feature
// table consumed by model training, performance tracking and the weight
// optimizer.
package history

import (
	"errors"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/fieldops/dispatchd/core/geo"
	"github.com/fieldops/dispatchd/core/logger"
	"github.com/fieldops/dispatchd/core/model"
	"github.com/fieldops/dispatchd/core/skills"
)

// Sample thresholds below which a feature mode is not trustworthy.
const (
	MinBasicSamples    = 500
	MinEnhancedSamples = 2000

	outlierZScore = 3.0
)

// ErrNoUsableHistory is returned when nothing remains after joining and
// cleaning the historical records.
var ErrNoUsableHistory = errors.New("history: no usable records after cleaning")

// Mode selects which feature set a table supports.
type Mode int

const (
	// ModeInsufficient marks a table too small even for the basic model.
	ModeInsufficient Mode = iota
	// ModeBasic supports the 3-feature classifier.
	ModeBasic
	// ModeEnhanced supports the 9-feature classifier.
	ModeEnhanced
)

func (m Mode) String() string {
	switch m {
	case ModeBasic:
		return "basic"
	case ModeEnhanced:
		return "enhanced"
	default:
		return "insufficient"
	}
}

// Row is one cleaned, model-ready historical observation.
type Row struct {
	TechnicianID string

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

	RequiredSkill string
	TechSkill     string

	DurationMin float64
	Productive  bool
}

// Table is the output of the feature builder.
type Table struct {
	Rows    []Row
	Mode    Mode
	Trimmed int // outlier rows removed
}

// Builder joins historical records with the technician roster and derives
// the training features.
type Builder struct {
	matcher *skills.Matcher
	techs   map[string]model.Technician
	enhance bool
	log     logger.Logger
}

// NewBuilder returns a Builder. enhance requests the enhanced feature set
// when the sample size allows it.
func NewBuilder(matcher *skills.Matcher, techs []model.Technician, enhance bool, log logger.Logger) *Builder {
	if log == nil {
		log = logger.Nop{}
	}
	idx := make(map[string]model.Technician, len(techs))
	for _, t := range techs {
		idx[t.ID] = t
	}
	return &Builder{matcher: matcher, techs: idx, enhance: enhance, log: log}
}

// Build produces the cleaned feature table. Records whose technician is not
// in the roster are dropped.
func (b *Builder) Build(records []model.HistoryRecord) (*Table, error) {
	joined := make([]model.HistoryRecord, 0, len(records))
	for _, r := range records {
		if _, ok := b.techs[r.TechnicianID]; !ok {
			continue
		}
		if r.Appointment.IsZero() || r.DistanceKM < 0 {
			continue
		}
		joined = append(joined, r)
	}
	if len(joined) == 0 {
		return nil, ErrNoUsableHistory
	}

	// Chronological order so the per-day running count reflects the
	// workload state at the time each dispatch was assigned.
	sort.SliceStable(joined, func(i, j int) bool {
		return joined[i].Appointment.Before(joined[j].Appointment)
	})

	type techDay struct {
		tech string
		day  string
	}
	before := make(map[techDay]int)

	rows := make([]Row, 0, len(joined))
	for _, r := range joined {
		tech := b.techs[r.TechnicianID]
		key := techDay{r.TechnicianID, r.Appointment.Format("2006-01-02")}
		assignedBefore := before[key]
		before[key]++

		workload := geo.WorkloadRatio(assignedBefore, tech.Capacity)
		match := b.matcher.BestMatch(r.RequiredSkill, tech.Skills())

		rows = append(rows, Row{
			TechnicianID:  r.TechnicianID,
			DistanceKM:    r.DistanceKM,
			SkillScore:    match.Score,
			SkillTier:     match.Type,
			WorkloadRatio: clampF(workload, 0, 1),
			Hour:          r.Appointment.Hour(),
			Weekday:       r.Appointment.Weekday(),
			Weekend:       isWeekend(r.Appointment.Weekday()),
			ServiceTier:   orDefault(r.ServiceTier, "Standard"),
			Equipment:     orDefault(r.Equipment, "None"),
			FirstTimeFix:  r.FirstTimeFix,
			RequiredSkill: r.RequiredSkill,
			TechSkill:     tech.PrimarySkill,
			DurationMin:   r.DurationMin,
			Productive:    r.Productive,
		})
	}

	rows, trimmed := trimOutliers(rows)
	if len(rows) == 0 {
		return nil, ErrNoUsableHistory
	}

	t := &Table{Rows: rows, Trimmed: trimmed, Mode: b.mode(len(rows))}
	b.log.Infof("history: %d rows (%d outliers trimmed), %s feature mode",
		len(rows), trimmed, t.Mode)
	return t, nil
}

func (b *Builder) mode(n int) Mode {
	switch {
	case b.enhance && n >= MinEnhancedSamples:
		return ModeEnhanced
	case n >= MinBasicSamples:
		return ModeBasic
	default:
		return ModeInsufficient
	}
}

// trimOutliers drops rows whose duration z-score is at or above 3. Rows
// without a duration are kept untouched.
func trimOutliers(rows []Row) ([]Row, int) {
	durs := make([]float64, 0, len(rows))
	for _, r := range rows {
		if r.DurationMin > 0 {
			durs = append(durs, r.DurationMin)
		}
	}
	if len(durs) < 2 {
		return rows, 0
	}
	mean, std := stat.MeanStdDev(durs, nil)
	if std == 0 {
		return rows, 0
	}
	kept := rows[:0]
	trimmed := 0
	for _, r := range rows {
		if r.DurationMin > 0 {
			z := (r.DurationMin - mean) / std
			if z >= outlierZScore || z <= -outlierZScore {
				trimmed++
				continue
			}
		}
		kept = append(kept, r)
	}
	return kept, trimmed
}

// PairOutcomes projects the raw records into the matcher's learning input.
// It applies the same inner join as Build but no cleaning, so the matcher
// sees every recorded pairing.
func (b *Builder) PairOutcomes(records []model.HistoryRecord) []skills.PairOutcome {
	out := make([]skills.PairOutcome, 0, len(records))
	for _, r := range records {
		tech, ok := b.techs[r.TechnicianID]
		if !ok {
			continue
		}
		out = append(out, skills.PairOutcome{
			RequiredSkill: r.RequiredSkill,
			TechSkill:     tech.PrimarySkill,
			Productive:    r.Productive,
		})
	}
	return out
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
